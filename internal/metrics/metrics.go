// Package metrics exposes the small set of operational gauges a
// refrigeration HMI backend needs to export: connectivity, buzzer/mute
// state, active alert count, and the GPIO fault counter.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "coldwatch_"

var (
	registerOnce sync.Once

	mqttConnected     prometheus.Gauge
	dbConnected       prometheus.Gauge
	buzzerSounding    prometheus.Gauge
	buzzerDisabled    prometheus.Gauge
	muteActive        prometheus.Gauge
	activeAlertsGauge prometheus.Gauge
	gpioFaultCount    prometheus.Gauge
	alertEventsTotal  *prometheus.CounterVec
)

// Init registers the gauges/counters exactly once. Safe to call from
// multiple goroutines; only the first call does anything.
func Init() {
	registerOnce.Do(func() {
		mqttConnected = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "mqtt_connected",
			Help: "1 if the MQTT broker connection is currently up",
		})
		dbConnected = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "db_connected",
			Help: "1 if the database change feed connection is currently up",
		})
		buzzerSounding = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "buzzer_sounding",
			Help: "1 if the buzzer controller's desired state is Sounding",
		})
		buzzerDisabled = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "buzzer_disabled",
			Help: "1 if the buzzer driver has latched disabled after exhausting its fault budget",
		})
		muteActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "mute_active",
			Help: "1 if the audible annunciator is currently muted",
		})
		activeAlertsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "active_alerts",
			Help: "Number of alerts currently in the store",
		})
		gpioFaultCount = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "gpio_fault_count",
			Help: "Current consecutive GPIO I/O failure count",
		})
		alertEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "alert_events_total",
			Help: "Total alert store mutations by kind",
		}, []string{"kind"})

		prometheus.MustRegister(
			mqttConnected,
			dbConnected,
			buzzerSounding,
			buzzerDisabled,
			muteActive,
			activeAlertsGauge,
			gpioFaultCount,
			alertEventsTotal,
		)
	})
}

func setBool(g prometheus.Gauge, v bool) {
	if g == nil {
		return
	}
	if v {
		g.Set(1)
	} else {
		g.Set(0)
	}
}

func SetMQTTConnected(v bool)  { setBool(mqttConnected, v) }
func SetDBConnected(v bool)    { setBool(dbConnected, v) }
func SetBuzzerSounding(v bool) { setBool(buzzerSounding, v) }
func SetBuzzerDisabled(v bool) { setBool(buzzerDisabled, v) }
func SetMuteActive(v bool)     { setBool(muteActive, v) }

func SetActiveAlerts(n int) {
	if activeAlertsGauge != nil {
		activeAlertsGauge.Set(float64(n))
	}
}

func SetGPIOFaultCount(n int) {
	if gpioFaultCount != nil {
		gpioFaultCount.Set(float64(n))
	}
}

// IncAlertEvent increments the added/removed counter, kind being "added"
// or "removed".
func IncAlertEvent(kind string) {
	if alertEventsTotal != nil {
		alertEventsTotal.WithLabelValues(kind).Inc()
	}
}
