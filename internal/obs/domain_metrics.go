package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BillingQueryTotal counts billing info queries by status filter.
	BillingQueryTotal *prometheus.CounterVec
	// AssignmentEventsTotal counts assignment lifecycle events by action.
	AssignmentEventsTotal *prometheus.CounterVec
	// CartCheckoutTotal counts checkout outcomes.
	CartCheckoutTotal *prometheus.CounterVec
	// CacheLookupTotal counts cache lookups by cache name and result.
	CacheLookupTotal *prometheus.CounterVec
	// OverdueSweepDuration records the duration of overdue sweeps in milliseconds.
	OverdueSweepDuration prometheus.Histogram
	// OverdueNoticesTotal counts notices produced by the overdue sweep.
	OverdueNoticesTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BillingQueryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_query_total",
			Help:      "Count of billing info queries by status filter.",
		}, []string{"status"})
		AssignmentEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignment_events_total",
			Help:      "Count of assignment lifecycle events by action.",
		}, []string{"action"})
		CartCheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_checkout_total",
			Help:      "Count of cart checkout outcomes.",
		}, []string{"result"})
		CacheLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookup_total",
			Help:      "Count of cache lookups by cache name and result.",
		}, []string{"cache", "result"})
		OverdueSweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "overdue_sweep_duration_ms",
			Help:      "Duration of overdue renewal sweeps in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		})
		OverdueNoticesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overdue_notices_total",
			Help:      "Number of overdue notices produced by the sweep.",
		})

		mustRegisterCollector(reg, BillingQueryTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BillingQueryTotal = v
			}
		})
		mustRegisterCollector(reg, AssignmentEventsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				AssignmentEventsTotal = v
			}
		})
		mustRegisterCollector(reg, CartCheckoutTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartCheckoutTotal = v
			}
		})
		mustRegisterCollector(reg, CacheLookupTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CacheLookupTotal = v
			}
		})
		mustRegisterCollector(reg, OverdueSweepDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				OverdueSweepDuration = v
			}
		})
		mustRegisterCollector(reg, OverdueNoticesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OverdueNoticesTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
