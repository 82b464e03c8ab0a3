// Package metrics declares prometheus metrics of model updates, deployments and queues.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var Updates = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "modelfab",
	Subsystem: "update",
	Name:      "requests",
	Help:      "model update requests by outcome",
}, []string{"outcome"})

var UpdateDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "modelfab",
	Subsystem: "update",
	Name:      "duration_seconds",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
}, []string{"outcome"})

var ModelVersion = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "modelfab",
	Subsystem: "model",
	Name:      "version",
	Help:      "the latest model version seen by this process",
})

var Deployments = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "modelfab",
	Subsystem: "deploy",
	Name:      "requests",
	Help:      "deployment requests by outcome",
}, []string{"outcome"})

var DeployedNodes = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "modelfab",
	Subsystem: "deploy",
	Name:      "nodes",
	Help:      "top-level nodes deployed",
})

var QueueMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "modelfab",
	Subsystem: "queue",
	Name:      "messages",
	Help:      "queue messages by channel and event (pushed, processed, dropped, failed)",
}, []string{"channel", "event"})

var Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "modelfab",
	Subsystem: "http",
	Name:      "requests",
	Help:      "API requests by method, route and status",
}, []string{"method", "route", "status"})

var RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "modelfab",
	Subsystem: "http",
	Name:      "duration_seconds",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})

// ObserveRequest records an API request. route is the registered path, not the requested one.
func ObserveRequest(method string, route string, status int, d time.Duration) {
	Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// outcomes
const (
	Accepted   = "accepted"
	Rejected   = "rejected"
	Failed     = "failed"
	Deployed   = "deployed"
	Invalid    = "invalid"
	RolledBack = "rolledback"
)

// queue events
const (
	Pushed    = "pushed"
	Processed = "processed"
	Dropped   = "dropped"
	Retried   = "retried"
)

// Collectors are all metrics of this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		Updates, UpdateDuration, ModelVersion, Deployments, DeployedNodes, QueueMessages,
		Requests, RequestDuration,
	}
}

// Register registers all metrics to the registerer.
func Register(r prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
