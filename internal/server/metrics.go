package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the Prometheus instruments the server exports on /metrics.
type Metrics struct {
	RoomsCreated        prometheus.Counter
	ActiveRooms         prometheus.Gauge
	ConnectedClients    prometheus.Gauge
	ActionsProcessed    *prometheus.CounterVec
	ActionsRejected     *prometheus.CounterVec
	ActionsDeduped      prometheus.Counter
	EventsEmitted       *prometheus.CounterVec
	BroadcastsDelivered prometheus.Counter
}

// NewMetrics registers the server's instruments with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RoomsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "liaptui_rooms_created_total",
			Help: "Rooms created since startup.",
		}),
		ActiveRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "liaptui_rooms_active",
			Help: "Rooms currently alive.",
		}),
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "liaptui_clients_connected",
			Help: "WebSocket clients currently connected.",
		}),
		ActionsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liaptui_actions_processed_total",
			Help: "Accepted game actions by type.",
		}, []string{"type"}),
		ActionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liaptui_actions_rejected_total",
			Help: "Rejected game actions by type.",
		}, []string{"type"}),
		ActionsDeduped: factory.NewCounter(prometheus.CounterOpts{
			Name: "liaptui_actions_deduped_total",
			Help: "Actions dropped by the enqueue dedup window.",
		}),
		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liaptui_events_emitted_total",
			Help: "Engine events emitted by type.",
		}, []string{"type"}),
		BroadcastsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "liaptui_broadcasts_delivered_total",
			Help: "Events fanned out to room occupants.",
		}),
	}
}
