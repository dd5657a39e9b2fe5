// Package metrics provides internal Prometheus metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector owns every metric the service exposes.
type Collector struct {
	conversationsStarted   *prometheus.CounterVec
	conversationsCompleted *prometheus.CounterVec
	conversationDuration   *prometheus.HistogramVec
	parleysTotal           prometheus.Counter
	actTimeoutsTotal       *prometheus.CounterVec
	finalRatings           prometheus.Histogram
	violationsTotal        *prometheus.CounterVec
	recordWritesTotal      *prometheus.CounterVec
}

// NewCollector registers all metrics on reg (nil uses the default
// registerer).
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		conversationsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversations_started_total",
				Help:      "Conversations started, by model variant",
			},
			[]string{"model"},
		),
		conversationsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversations_completed_total",
				Help:      "Conversations that reached a final rating, by model variant",
			},
			[]string{"model"},
		),
		conversationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversation_duration_seconds",
				Help:      "Wall-clock duration from first to final parley",
				Buckets:   prometheus.ExponentialBuckets(15, 2, 10),
			},
			[]string{"model"},
		),
		parleysTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parleys_total",
				Help:      "Turn-engine invocations across all conversations",
			},
		),
		actTimeoutsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "act_timeouts_total",
				Help:      "Participant act timeouts, by party",
			},
			[]string{"party"},
		),
		finalRatings: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "final_rating",
				Help:      "Distribution of final conversation ratings",
				Buckets:   []float64{1, 2, 3, 4, 5},
			},
		),
		violationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "acceptability_violations_total",
				Help:      "Acceptability violations flagged at termination, by tag",
			},
			[]string{"tag"},
		),
		recordWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "record_writes_total",
				Help:      "Terminal records written, by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// ConversationStarted counts a new conversation against its model variant.
func (c *Collector) ConversationStarted(model string) {
	c.conversationsStarted.WithLabelValues(model).Inc()
}

// ConversationCompleted records completion, its duration and final rating.
func (c *Collector) ConversationCompleted(model string, duration time.Duration, rating int) {
	c.conversationsCompleted.WithLabelValues(model).Inc()
	c.conversationDuration.WithLabelValues(model).Observe(duration.Seconds())
	c.finalRatings.Observe(float64(rating))
}

// Parley counts one engine invocation.
func (c *Collector) Parley() {
	c.parleysTotal.Inc()
}

// ActTimeout counts a participant act timeout. party is "human" or "bot".
func (c *Collector) ActTimeout(party string) {
	c.actTimeoutsTotal.WithLabelValues(party).Inc()
}

// Violation counts one flagged acceptability violation tag.
func (c *Collector) Violation(tag string) {
	c.violationsTotal.WithLabelValues(tag).Inc()
}

// RecordWrite counts a sink write attempt. outcome is "ok" or "error".
func (c *Collector) RecordWrite(outcome string) {
	c.recordWritesTotal.WithLabelValues(outcome).Inc()
}
