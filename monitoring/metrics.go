package monitoring

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	connectedSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "room_sessions_connected",
			Help: "Currently connected websocket sessions per room type",
		},
		[]string{"room_type"},
	)

	activeRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rooms_active_total",
			Help: "Current number of rooms with at least one session",
		},
	)

	inboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_inbound_messages_total",
			Help: "Inbound websocket messages per room type",
		},
		[]string{"room_type"},
	)

	broadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_broadcasts_total",
			Help: "Events broadcast to rooms",
		},
		[]string{"event"},
	)

	bids = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_bids_total",
			Help: "Bid submissions by outcome",
		},
		[]string{"status"},
	)

	closures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_closures_total",
			Help: "Listing closures by trigger source",
		},
		[]string{"trigger"},
	)

	chatMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Delivered direct messages",
		},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_sweep_duration_seconds",
			Help:    "Duration of expiry scheduler sweeps",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)
)

func TrackConnect(roomType string)    { connectedSessions.WithLabelValues(roomType).Inc() }
func TrackDisconnect(roomType string) { connectedSessions.WithLabelValues(roomType).Dec() }
func SetActiveRooms(n int)            { activeRooms.Set(float64(n)) }

func TrackInbound(roomType string) { inboundMessages.WithLabelValues(roomType).Inc() }
func TrackBroadcast(event string)  { broadcasts.WithLabelValues(event).Inc() }

func TrackBid(status string)      { bids.WithLabelValues(status).Inc() }
func TrackClosure(trigger string) { closures.WithLabelValues(trigger).Inc() }
func TrackChatMessage()           { chatMessages.Inc() }

func ObserveSweep(d time.Duration) { sweepDuration.Observe(d.Seconds()) }

// StartMetricsServer exposes /metrics on its own port.
func StartMetricsServer(port string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		addr := ":" + port
		logger.Info("metrics server listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
}
