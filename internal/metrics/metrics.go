// Package metrics holds the Prometheus collectors of the status bar.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tray metrics
	TrayConnectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statusbar_tray_connect_attempts_total",
			Help: "Tray connection attempts by result",
		},
		[]string{"result"},
	)

	TrayEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statusbar_tray_events_total",
			Help: "Tray events relayed from the tray host by event name",
		},
		[]string{"event"},
	)

	TrayReplayedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "statusbar_tray_replayed_events_total",
			Help: "Cached menu events replayed to new subscribers",
		},
	)

	TraySubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "statusbar_tray_subscribers",
			Help: "Current number of tray event subscribers",
		},
	)

	TrayCachedMenus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "statusbar_tray_cached_menus",
			Help: "Number of tray items with a cached menu path",
		},
	)

	// Broadcast metrics
	BroadcastDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statusbar_broadcast_dropped_total",
			Help: "Values discarded because a subscriber fell behind, by hub",
		},
		[]string{"hub"},
	)

	// Inhibit metrics
	InhibitCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statusbar_inhibit_commands_total",
			Help: "Inhibit commands received from the variable bus by command",
		},
		[]string{"command"},
	)

	InhibitActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "statusbar_inhibit_active",
			Help: "Whether idle inhibition is active (1 = active, 0 = inactive)",
		},
	)
)

func init() {
	prometheus.MustRegister(TrayConnectAttempts)
	prometheus.MustRegister(TrayEvents)
	prometheus.MustRegister(TrayReplayedEvents)
	prometheus.MustRegister(TraySubscribers)
	prometheus.MustRegister(TrayCachedMenus)
	prometheus.MustRegister(BroadcastDropped)
	prometheus.MustRegister(InhibitCommands)
	prometheus.MustRegister(InhibitActive)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
