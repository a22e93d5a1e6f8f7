// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the dialog engine's prometheus instruments.
type Collector struct {
	turnsTotal           *prometheus.CounterVec
	turnDuration         *prometheus.HistogramVec
	dialogBeginsTotal    *prometheus.CounterVec
	dialogEndsTotal      *prometheus.CounterVec
	promptAttemptsTotal  *prometheus.CounterVec
	recognitionFailures  *prometheus.CounterVec
	skillRequestsTotal   *prometheus.CounterVec
	activeDialogDepth    *prometheus.GaugeVec
}

var (
	defaultCollector *Collector
	defaultOnce      sync.Once
)

// Default returns the process-wide collector registered against the default
// prometheus registerer.
func Default() *Collector {
	defaultOnce.Do(func() {
		defaultCollector = NewCollector("convoflow", prometheus.DefaultRegisterer)
	})
	return defaultCollector
}

// NewCollector creates a collector registered against reg.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto(reg)

	c := &Collector{}
	c.turnsTotal = factory.counter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turns_total",
		Help:      "Total number of turns driven through the dialog manager",
	}, []string{"status"})

	c.turnDuration = factory.histogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "turn_duration_seconds",
		Help:      "Turn execution duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	c.dialogBeginsTotal = factory.counter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dialog_begins_total",
		Help:      "Total number of dialogs pushed onto a stack",
	}, []string{"dialog"})

	c.dialogEndsTotal = factory.counter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dialog_ends_total",
		Help:      "Total number of dialogs popped off a stack",
	}, []string{"dialog", "reason"})

	c.promptAttemptsTotal = factory.counter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prompt_attempts_total",
		Help:      "Total number of prompt recognition attempts",
	}, []string{"prompt"})

	c.recognitionFailures = factory.counter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prompt_recognition_failures_total",
		Help:      "Total number of prompt inputs that failed recognition",
	}, []string{"prompt"})

	c.skillRequestsTotal = factory.counter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "skill_requests_total",
		Help:      "Total number of activities forwarded to skills",
	}, []string{"skill", "status"})

	c.activeDialogDepth = factory.gauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_dialog_depth",
		Help:      "Depth of the dialog stack after the last turn",
	}, []string{"channel"})

	return c
}

func (c *Collector) RecordTurn(status string, seconds float64) {
	c.turnsTotal.WithLabelValues(status).Inc()
	c.turnDuration.WithLabelValues(status).Observe(seconds)
}

func (c *Collector) RecordDialogBegin(dialogID string) {
	c.dialogBeginsTotal.WithLabelValues(dialogID).Inc()
}

func (c *Collector) RecordDialogEnd(dialogID, reason string) {
	c.dialogEndsTotal.WithLabelValues(dialogID, reason).Inc()
}

func (c *Collector) RecordPromptAttempt(promptID string, succeeded bool) {
	c.promptAttemptsTotal.WithLabelValues(promptID).Inc()
	if !succeeded {
		c.recognitionFailures.WithLabelValues(promptID).Inc()
	}
}

func (c *Collector) RecordSkillRequest(skillID, status string) {
	c.skillRequestsTotal.WithLabelValues(skillID, status).Inc()
}

func (c *Collector) RecordStackDepth(channelID string, depth int) {
	c.activeDialogDepth.WithLabelValues(channelID).Set(float64(depth))
}

// promauto-style factory over an explicit registerer so tests can use a
// private registry without colliding with the default one.
type factory struct {
	reg prometheus.Registerer
}

func promauto(reg prometheus.Registerer) factory {
	return factory{reg: reg}
}

func (f factory) counter(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	v := prometheus.NewCounterVec(opts, labels)
	f.reg.MustRegister(v)
	return v
}

func (f factory) histogram(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	v := prometheus.NewHistogramVec(opts, labels)
	f.reg.MustRegister(v)
	return v
}

func (f factory) gauge(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	v := prometheus.NewGaugeVec(opts, labels)
	f.reg.MustRegister(v)
	return v
}
