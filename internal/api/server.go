// Package api exposes the command/event surface described in spec §4.8:
// one JSON endpoint per UI command, an SSE stream for the four UI-bound
// events, and a Prometheus exposition endpoint.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coldwatch/internal/alerts"
	"coldwatch/internal/config"
	"coldwatch/internal/events"
	"coldwatch/internal/ingest"
	"coldwatch/internal/mute"
	"coldwatch/internal/probe"
)

// Server holds every collaborator the command surface needs to answer a
// request without reaching back into main.
type Server struct {
	cfg     *config.Manager
	alerts  *alerts.Store
	mute    *mute.Controller
	conns   *ingest.ConnState
	bus     *events.Bus
	logger  *slog.Logger
	version string
}

// Start wires the mux and begins serving on cfg's API_ADDR. It returns
// the *http.Server so the caller can track it; shutdown is driven by ctx.
func Start(ctx context.Context, cfg *config.Manager, alertsStore *alerts.Store, muteCtl *mute.Controller, conns *ingest.ConnState, bus *events.Bus, logger *slog.Logger, version string) *http.Server {
	s := &Server{cfg: cfg, alerts: alertsStore, mute: muteCtl, conns: conns, bus: bus, logger: logger, version: version}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/commands/active_alerts", s.handleActiveAlerts)
	mux.HandleFunc("/commands/remove_alert", s.handleRemoveAlert)
	mux.HandleFunc("/commands/check_internet_connection", s.handleCheckInternet)
	mux.HandleFunc("/commands/mute_status", s.handleMuteStatus)
	mux.HandleFunc("/commands/toggle_mute", s.handleToggleMute)
	mux.HandleFunc("/commands/mqtt_connected", s.handleMQTTConnected)
	mux.HandleFunc("/commands/supabase_connected", s.handleSupabaseConnected)
	mux.HandleFunc("/events", s.handleEvents)
	mux.Handle("/metrics", promhttp.Handler())

	addr := cfg.Get().APIAddr
	httpServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server error", "err", err)
		}
	}()
	logger.Info("command surface listening", "addr", addr)
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"time":               time.Now().UTC().Format(time.RFC3339Nano),
		"version":            s.version,
		"mqtt_connected":     s.conns.MQTT(),
		"supabase_connected": s.conns.DB(),
		"active_alerts":      len(s.alerts.Snapshot()),
	})
}

// get_active_alerts
func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.alerts.Snapshot())
}

// remove_alert {id} -> bool
func (s *Server) handleRemoveAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	removed := s.alerts.Remove(req.ID)
	writeJSON(w, http.StatusOK, removed)
}

// check_internet_connection -> bool
func (s *Server) handleCheckInternet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, probe.Reachable(r.Context()))
}

// get_mute_status
func (s *Server) handleMuteStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.mute.Status())
}

// toggle_alerts_mute
func (s *Server) handleToggleMute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.mute.Toggle())
}

// is_mqtt_connected
func (s *Server) handleMQTTConnected(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.conns.MQTT())
}

// is_supabase_connected
func (s *Server) handleSupabaseConnected(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.conns.DB())
}

// handleEvents streams alerts://added, alerts://removed, alerts://mute_changed
// and device://status_changed as Server-Sent Events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev.Payload)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, payload)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
