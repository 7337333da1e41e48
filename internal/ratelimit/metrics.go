package ratelimit

import "github.com/prometheus/client_golang/prometheus"

// metrics are the Prometheus gauges/counters exposing limiter state so
// operators can watch throttling without reading logs.
type metrics struct {
	rateFactor      prometheus.Gauge
	requestsAllowed prometheus.Counter
	rateLimitEvents prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		rateFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corpusgraph",
			Subsystem: "ratelimit",
			Name:      "factor",
			Help:      "Current multiplier applied to the configured quota, in (0,1].",
		}),
		requestsAllowed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "corpusgraph",
			Subsystem: "ratelimit",
			Name:      "requests_allowed_total",
			Help:      "Number of index-service requests permitted by the limiter.",
		}),
		rateLimitEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "corpusgraph",
			Subsystem: "ratelimit",
			Name:      "rate_limited_total",
			Help:      "Number of 429 responses reported to the limiter.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.rateFactor, m.requestsAllowed, m.rateLimitEvents)
	}

	return m
}

// breakerMetrics are the Prometheus gauges/counters exposing circuit
// breaker state, kept distinct from limiter metrics so both can share a
// single Registerer without name collisions.
type breakerMetrics struct {
	trips prometheus.Counter
	state prometheus.Gauge
}

func newBreakerMetrics(reg prometheus.Registerer) *breakerMetrics {
	m := &breakerMetrics{
		trips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "corpusgraph",
			Subsystem: "ratelimit",
			Name:      "breaker_trips_total",
			Help:      "Number of times the circuit breaker opened or halted.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corpusgraph",
			Subsystem: "ratelimit",
			Name:      "breaker_state",
			Help:      "0=closed, 1=open (cooling down), 2=halted.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.trips, m.state)
	}

	return m
}
