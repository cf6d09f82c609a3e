// Package metrics instruments slot allocation and admin mutations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Claim outcomes recorded by ClaimFinished.
const (
	OutcomeClaimed        = "claimed"
	OutcomeSlotsFull      = "slots_full"
	OutcomeRetryExhausted = "retry_exhausted"
	OutcomeRejected       = "rejected"
	OutcomeError          = "error"
)

// Collector receives lineup instrumentation events.
type Collector interface {
	// ClaimFinished records the outcome of one ClaimNextSlot call and how
	// many insert attempts it took.
	ClaimFinished(outcome string, attempts int)
	// PositionCollision records one insert lost to a concurrent writer.
	PositionCollision()
	// AdminOperation records an admin mutation and whether it succeeded.
	AdminOperation(op string, ok bool)
}

// Nop discards everything.
type Nop struct{}

var _ Collector = Nop{}

func (Nop) ClaimFinished(string, int)   {}
func (Nop) PositionCollision()          {}
func (Nop) AdminOperation(string, bool) {}

// Prometheus implements Collector with Prometheus counters and histograms.
type Prometheus struct {
	claims     *prometheus.CounterVec
	attempts   prometheus.Histogram
	collisions prometheus.Counter
	admin      *prometheus.CounterVec
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus creates and registers the lineup metrics.
// A nil registerer uses prometheus.DefaultRegisterer; an empty namespace
// defaults to "lineup".
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "lineup"
	}

	p := &Prometheus{
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "claims_total",
			Help:      "Slot claims by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "claim_attempts",
			Help:      "Insert attempts per slot claim.",
			Buckets:   []float64{1, 2, 3, 5, 8},
		}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "position_collisions_total",
			Help:      "Inserts rejected because another writer took the position first.",
		}),
		admin: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "operations_total",
			Help:      "Admin entry mutations by operation and result.",
		}, []string{"op", "result"}),
	}

	for _, c := range []prometheus.Collector{p.claims, p.attempts, p.collisions, p.admin} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) ClaimFinished(outcome string, attempts int) {
	p.claims.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		p.attempts.Observe(float64(attempts))
	}
}

func (p *Prometheus) PositionCollision() {
	p.collisions.Inc()
}

func (p *Prometheus) AdminOperation(op string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	p.admin.WithLabelValues(op, result).Inc()
}
