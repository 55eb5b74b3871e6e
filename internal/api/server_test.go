package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coldwatch/internal/alerts"
	"coldwatch/internal/config"
	"coldwatch/internal/events"
	"coldwatch/internal/ingest"
	"coldwatch/internal/model"
	"coldwatch/internal/mute"
)

func newTestServer() *Server {
	bus := events.New()
	return &Server{
		cfg:     &config.Manager{},
		alerts:  alerts.New(bus, nil),
		mute:    mute.New(0, bus, nil),
		conns:   ingest.NewConnState(),
		bus:     bus,
		version: "test",
	}
}

func TestHandleActiveAlertsReturnsSnapshot(t *testing.T) {
	s := newTestServer()
	s.alerts.Upsert(model.Alert{ID: "mqtt:A1", AlertType: model.AlertTempUp})

	req := httptest.NewRequest(http.MethodGet, "/commands/active_alerts", nil)
	rec := httptest.NewRecorder()
	s.handleActiveAlerts(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []model.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected body: %v", err)
	}
	if len(got) != 1 || got[0].ID != "mqtt:A1" {
		t.Fatalf("unexpected alerts: %+v", got)
	}
}

func TestHandleActiveAlertsRejectsNonGet(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/commands/active_alerts", nil)
	rec := httptest.NewRecorder()
	s.handleActiveAlerts(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleRemoveAlertRemovesAndReportsBool(t *testing.T) {
	s := newTestServer()
	s.alerts.Upsert(model.Alert{ID: "mqtt:A1"})

	body := strings.NewReader(`{"id":"mqtt:A1"}`)
	req := httptest.NewRequest(http.MethodPost, "/commands/remove_alert", body)
	rec := httptest.NewRecorder()
	s.handleRemoveAlert(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var removed bool
	if err := json.Unmarshal(rec.Body.Bytes(), &removed); err != nil {
		t.Fatalf("unexpected body: %v", err)
	}
	if !removed {
		t.Fatalf("expected remove_alert to report true")
	}
	if s.alerts.Contains("mqtt:A1") {
		t.Fatalf("expected alert to be gone from the store")
	}
}

func TestHandleToggleMuteFlipsStatus(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/commands/toggle_mute", nil)
	rec := httptest.NewRecorder()
	s.handleToggleMute(rec, req)

	var status model.MuteStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unexpected body: %v", err)
	}
	if !status.Muted {
		t.Fatalf("expected mute to be active after toggling from the initial state")
	}
}

func TestHandleMQTTConnectedReflectsConnState(t *testing.T) {
	s := newTestServer()
	s.conns.SetMQTT(true)

	req := httptest.NewRequest(http.MethodGet, "/commands/mqtt_connected", nil)
	rec := httptest.NewRecorder()
	s.handleMQTTConnected(rec, req)

	var connected bool
	if err := json.Unmarshal(rec.Body.Bytes(), &connected); err != nil {
		t.Fatalf("unexpected body: %v", err)
	}
	if !connected {
		t.Fatalf("expected mqtt_connected true")
	}
}
