package link

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	packetsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "amasp",
		Name:      "packets_received_total",
		Help:      "Number of valid packets received",
	}, []string{"kind"})
	packetsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "amasp",
		Name:      "packets_sent_total",
		Help:      "Number of packets sent",
	}, []string{"kind"})
	readTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "amasp",
		Name:      "read_timeouts_total",
		Help:      "Number of read attempts that did not yield a packet",
	})
	framesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "amasp",
		Name:      "frames_discarded_total",
		Help:      "Number of discarded frames by reason",
	}, []string{"reason"})
	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "amasp",
		Name:      "request_duration_seconds",
		Help:      "Time between sending a request and receiving its response",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	requestsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "amasp",
		Name:      "requests_failed_total",
		Help:      "Number of failed requests by reason",
	}, []string{"reason"})
	requestsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "amasp",
		Name:      "requests_dropped_total",
		Help:      "Number of requests a slave dropped because its queue was full",
	})
	linkRole = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "amasp",
		Name:      "link_role",
		Help:      "Role of the running link",
	}, []string{"role"})
)
