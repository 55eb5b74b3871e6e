// Command coldwatch runs the alert ingestion and arbitration engine: the
// MQTT and database source loops, the alert store, the mute and buzzer
// controllers, and the HTTP command/event surface.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"coldwatch/internal/alerts"
	"coldwatch/internal/api"
	"coldwatch/internal/buzzer"
	"coldwatch/internal/config"
	"coldwatch/internal/events"
	"coldwatch/internal/ingest"
	"coldwatch/internal/logging"
	"coldwatch/internal/metrics"
	"coldwatch/internal/mute"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewManager(config.ResolvePath())
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(cfg.Get().LogLevel)
	logger.Info("coldwatch starting", "version", version, "config_path", cfg.Path())

	metrics.Init()

	bus := events.New()
	alertStore := alerts.New(bus, logging.Component(logger, "alerts"))
	muteCtl := mute.New(cfg.Get().MuteDuration, bus, logging.Component(logger, "mute"))
	alertStore.SetForceClear(muteCtl.ForceClear)

	driver := buzzer.NewDriver(logging.Component(logger, "buzzer"))
	buzzerCtl := buzzer.NewController(driver, alertStore.IsEmpty, func() bool { return muteCtl.Status().Muted }, cfg, logging.Component(logger, "buzzer"))

	conns := ingest.NewConnState()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		muteCtl.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		buzzerCtl.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ingest.RunMQTTLoop(ctx, cfg, alertStore, conns, logging.Component(logger, "mqtt"))
	}()

	if cfg.Get().HasDBCredentials() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ingest.RunDBChangeFeedLoop(ctx, cfg, alertStore, bus, conns, logging.Component(logger, "db"))
		}()
	} else {
		logger.Info("db change feed not started: SUPABASE_URL absent, running with MQTT only")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		runMetricsSync(ctx, alertStore, muteCtl, driver, buzzerCtl, conns)
	}()

	httpServer := api.Start(ctx, cfg, alertStore, muteCtl, conns, bus, logging.Component(logger, "api"), version)
	_ = httpServer

	<-ctx.Done()
	logger.Info("shutdown signal received, draining")

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(1 * time.Second):
		logger.Warn("shutdown drain timed out after 1s, exiting anyway")
	}
	logger.Info("coldwatch stopped")
}

// runMetricsSync periodically copies core state into the Prometheus
// gauges. It is not on the hot path of any component — the gauges are a
// read-only projection, polled rather than pushed. The only metric updated
// at its source is the alert store's added/removed event counter.
func runMetricsSync(ctx context.Context, store *alerts.Store, muteCtl *mute.Controller, driver *buzzer.Driver, buzzerCtl *buzzer.Controller, conns *ingest.ConnState) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetMQTTConnected(conns.MQTT())
			metrics.SetDBConnected(conns.DB())
			metrics.SetMuteActive(muteCtl.Status().Muted)
			metrics.SetActiveAlerts(len(store.Snapshot()))
			metrics.SetBuzzerDisabled(driver.Disabled())
			metrics.SetGPIOFaultCount(driver.FailureCount())
			metrics.SetBuzzerSounding(buzzerCtl.Sounding())
		}
	}
}
