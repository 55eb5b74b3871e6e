package model

import "time"

// AlertType mirrors the three alarm classes the upstream sources can raise.
type AlertType string

const (
	AlertDisconnect AlertType = "disconnect"
	AlertTempUp     AlertType = "tempUp"
	AlertTempDown   AlertType = "tempDown"
)

// Alert is an immutable, UI-visible abnormal condition. Once constructed it
// is never mutated in place — an upsert replaces the stored value wholesale.
type Alert struct {
	ID          string    `json:"id"`
	DateTime    string    `json:"date_time"`
	AlertType   AlertType `json:"alert_type"`
	Device      string    `json:"device"`
	Description string    `json:"description"`
}

// MuteStatus is the wire shape returned by get_mute_status / toggle_alerts_mute
// and broadcast on alerts://mute_changed.
type MuteStatus struct {
	Muted     bool       `json:"muted"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// DeviceStatusUpdate is forwarded to the UI on every accepted DB payload.
type DeviceStatusUpdate struct {
	Timestamp time.Time `json:"timestamp"`
	Status    [6]int    `json:"status"`
}

// RemovedEvent is the payload of alerts://removed.
type RemovedEvent struct {
	ID string `json:"id"`
}

// FormatDateTime renders t in the wire format spec'd for Alert.DateTime:
// DD/MM/YYYY HH:MM:SS in t's own zone. Callers that want local wall-clock
// must pass a Local-zoned value (t.Local()); this does not re-localize, so
// a GMT-6-zoned value formats as GMT-6 regardless of the host's zone.
func FormatDateTime(t time.Time) string {
	return t.Format("02/01/2006 15:04:05")
}
