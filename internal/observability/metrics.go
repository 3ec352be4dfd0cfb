package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// WebSocketRoomConnections is the gauge of connections per channel room.
	WebSocketRoomConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "haven_websocket_room_connections",
		Help: "Number of WebSocket connections per channel room",
	}, []string{"channel_id"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "haven_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// MessageThroughput counts messages processed per channel.
	MessageThroughput = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_message_throughput_total",
		Help: "Total number of messages processed",
	}, []string{"channel_id", "message_type"})

	// CommandsTotal counts slash commands by kind and outcome.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_commands_total",
		Help: "Total slash commands dispatched by kind and outcome",
	}, []string{"kind", "outcome"})

	// KickVotesTotal counts kick votes recorded, including those that banned.
	KickVotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_kick_votes_total",
		Help: "Total kick votes recorded by result",
	}, []string{"result"})

	// ChannelsSweptTotal counts channels deleted by the inactivity sweep.
	ChannelsSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "haven_channels_swept_total",
		Help: "Total channels deleted by the inactivity sweep",
	})

	// SweepFailuresTotal counts per-channel sweep failures.
	SweepFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "haven_sweep_failures_total",
		Help: "Total per-channel failures during inactivity sweeps",
	})
)
