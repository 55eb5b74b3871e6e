package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"coldwatch/internal/alerts"
	"coldwatch/internal/config"
	"coldwatch/internal/events"
	"coldwatch/internal/model"
)

// deviceLabels maps slot index (0-5) to its fixed human-readable device
// label, per §4.4.
var deviceLabels = [6]string{
	"Bodega - microbiología refri 2",
	"Bodega - microbiología refri 1",
	"Bodega - química refri 1",
	"Bodega - banco de sangre",
	"Bodega - química refri 2",
	"Bodega - Inmunología refri 1",
}

const tempAlertDescription = "Temperatura fuera de rango 2 - 8 °C"

const eventTimeout = 60 * time.Second

// changePayload is the shape of the LISTEN/NOTIFY payload: a "new" record
// carrying the six-slot status array and the row's commit timestamp.
type changePayload struct {
	New struct {
		Status    []int  `json:"status"`
		Timestamp string `json:"timestamp"`
	} `json:"new"`
}

// parsePayload validates and decodes one NOTIFY payload. Per §4.4 the
// array must be exactly 6 integers each 0 or 1; anything else is dropped.
func parsePayload(raw string) (status [6]int, ts time.Time, err error) {
	var p changePayload
	if jsonErr := json.Unmarshal([]byte(raw), &p); jsonErr != nil {
		return status, ts, fmt.Errorf("db: malformed payload: %w", jsonErr)
	}
	if len(p.New.Status) != len(status) {
		return status, ts, fmt.Errorf("db: status must have %d slots, got %d", len(status), len(p.New.Status))
	}
	for _, v := range p.New.Status {
		if v != 0 && v != 1 {
			return status, ts, fmt.Errorf("db: status slot out of range: %d", v)
		}
	}
	copy(status[:], p.New.Status)
	ts = time.Now().UTC()
	if p.New.Timestamp != "" {
		if parsed, parseErr := time.Parse(time.RFC3339, p.New.Timestamp); parseErr == nil {
			ts = parsed.UTC()
		}
	}
	return status, ts, nil
}

// toGMTMinus6 converts a UTC instant to the fixed GMT-6 offset used for
// alert timestamps sourced from the database, per §4.4.
func toGMTMinus6(t time.Time) time.Time {
	return t.In(time.FixedZone("GMT-6", -6*60*60))
}

// diffSlots implements the §4.4 diff algorithm as a pure function so it
// can be exercised without a live database.
func diffSlots(lastSeen, current [6]int, ts time.Time) (upserts []model.Alert, removes []string) {
	localTS := model.FormatDateTime(toGMTMinus6(ts))
	for i := 0; i < 6; i++ {
		switch {
		case lastSeen[i] == 0 && current[i] == 1:
			upserts = append(upserts, model.Alert{
				ID:          dbAlertID(i),
				DateTime:    localTS,
				AlertType:   model.AlertTempUp,
				Device:      deviceLabels[i],
				Description: tempAlertDescription,
			})
		case lastSeen[i] == 1 && current[i] == 0:
			removes = append(removes, dbAlertID(i))
		}
	}
	return upserts, removes
}

func dbAlertID(i int) string {
	return fmt.Sprintf("db:%d", i)
}

// RunDBChangeFeedLoop opens a LISTEN subscription on cfg's watch channel
// and applies diffs to store until ctx is done. last_seen starts as the
// all-zero baseline (§9 open question, resolved to "emit added for
// pre-existing 1s on the very first payload").
func RunDBChangeFeedLoop(ctx context.Context, cfg *config.Manager, store *alerts.Store, bus *events.Bus, connected *ConnState, logger *slog.Logger) {
	current := cfg.Get()
	if !current.HasDBCredentials() {
		logger.Info("db change feed not started: no credentials configured")
		return
	}

	var lastSeen [6]int
	backoff := NewBackoff()

	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := pgx.Connect(ctx, cfg.Get().SupabaseDBDSN)
		if err != nil {
			connected.SetDB(false)
			logger.Warn("db connect failed", "err", err)
			if !Sleep(ctx, backoff.Next()) {
				return
			}
			continue
		}

		channel := cfg.Get().DBWatchChannel
		if _, err := conn.Exec(ctx, fmt.Sprintf("LISTEN %s", pgx.Identifier{channel}.Sanitize())); err != nil {
			connected.SetDB(false)
			logger.Warn("db listen failed", "err", err)
			_ = conn.Close(ctx)
			if !Sleep(ctx, backoff.Next()) {
				return
			}
			continue
		}

		connected.SetDB(true)
		backoff.Reset()
		logger.Info("db change feed connected", "channel", channel)

		lastSeen = consumeNotifications(ctx, conn, store, bus, lastSeen, logger)
		connected.SetDB(false)
		_ = conn.Close(ctx)

		if ctx.Err() != nil {
			return
		}
		if !Sleep(ctx, backoff.Next()) {
			return
		}
	}
}

// consumeNotifications blocks on WaitForNotification until ctx is done,
// a per-event 60s timeout elapses (triggering reconnect), or the
// connection errors. It returns the updated last_seen baseline.
func consumeNotifications(ctx context.Context, conn *pgx.Conn, store *alerts.Store, bus *events.Bus, lastSeen [6]int, logger *slog.Logger) [6]int {
	for {
		waitCtx, cancel := context.WithTimeout(ctx, eventTimeout)
		notification, err := conn.WaitForNotification(waitCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return lastSeen
			}
			logger.Warn("db wait for notification failed or timed out, reconnecting", "err", err)
			return lastSeen
		}

		status, ts, parseErr := parsePayload(notification.Payload)
		if parseErr != nil {
			logger.Warn("db payload invalid, dropping", "err", parseErr)
			continue
		}

		upserts, removes := diffSlots(lastSeen, status, ts)
		for _, a := range upserts {
			store.Upsert(a)
		}
		for _, id := range removes {
			store.Remove(id)
		}
		lastSeen = status

		if bus != nil {
			bus.Emit("device://status_changed", model.DeviceStatusUpdate{Timestamp: ts, Status: status})
		}
	}
}
