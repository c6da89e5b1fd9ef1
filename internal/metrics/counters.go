package metrics

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mbsim"

// Counters instruments one stepper. Each instance owns its registry so that
// concurrent runs in one process do not share totals.
type Counters struct {
	registry    *prometheus.Registry
	accepted    prometheus.Counter
	rejected    prometheus.Counter
	evaluations prometheus.Counter
	events      *prometheus.CounterVec
	stepSize    prometheus.Histogram
}

func NewCounters() *Counters {
	c := &Counters{
		registry: prometheus.NewRegistry(),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_accepted_total",
			Help:      "Integrator steps committed to the state.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_rejected_total",
			Help:      "Trial steps rejected by the error test.",
		}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rhs_evaluations_total",
			Help:      "Right-hand side evaluations.",
		}),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_fired_total",
				Help:      "Scheduled reporter invocations.",
			},
			[]string{"reporter"},
		),
		stepSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_size_seconds",
			Help:      "Accepted step sizes.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 8),
		}),
	}
	c.registry.MustRegister(c.accepted, c.rejected, c.evaluations, c.events, c.stepSize)
	return c
}

func (c *Counters) Registry() *prometheus.Registry { return c.registry }

// ObserveStep records one accepted step of size h that needed rejected
// retries and evaluations right-hand side calls.
func (c *Counters) ObserveStep(h float64, rejected, evaluations int) {
	c.accepted.Inc()
	c.rejected.Add(float64(rejected))
	c.evaluations.Add(float64(evaluations))
	c.stepSize.Observe(h)
}

// ObserveFailure records the work spent on a step that was never accepted.
func (c *Counters) ObserveFailure(rejected, evaluations int) {
	c.rejected.Add(float64(rejected))
	c.evaluations.Add(float64(evaluations))
}

func (c *Counters) EventFired(reporter string) {
	c.events.WithLabelValues(reporter).Inc()
}

// Snapshot flattens the registry into name → value. Labeled series are keyed
// as name{label=value}; histograms contribute _count and _sum.
func (c *Counters) Snapshot() map[string]float64 {
	out := make(map[string]float64)
	families, err := c.registry.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				parts := make([]string, 0, len(labels))
				for _, l := range labels {
					parts = append(parts, l.GetName()+"="+l.GetValue())
				}
				sort.Strings(parts)
				key += "{" + strings.Join(parts, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				out[key+"_count"] = float64(m.GetHistogram().GetSampleCount())
				out[key+"_sum"] = m.GetHistogram().GetSampleSum()
			}
		}
	}
	return out
}
