package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RelationshipTransitions counts friend-request transitions by name and outcome.
	RelationshipTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_relationship_transitions_total",
		Help: "Friend request transitions by type and outcome",
	}, []string{"transition", "outcome"})

	// MessagesPosted counts messages appended to threads.
	MessagesPosted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "murmur_messages_posted_total",
		Help: "Total number of messages appended to threads",
	})

	// RedisErrors counts Redis command failures by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// ActiveWebSockets is the number of open realtime connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "murmur_websocket_connections",
		Help: "Number of open realtime websocket connections",
	})

	// RealtimeEvents counts inbound realtime events by event name.
	RealtimeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_realtime_events_total",
		Help: "Inbound realtime events by name",
	}, []string{"event"})
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the process-wide HTTP metrics collector.
// fiberprometheus registers on the default registry, so it is built once.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}

// MetricsMiddleware records request metrics through the given collector.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return p.Middleware
}

// ObserveTransition records the outcome of a relationship transition.
func ObserveTransition(transition string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RelationshipTransitions.WithLabelValues(transition, outcome).Inc()
}
