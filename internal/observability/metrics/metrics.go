// Package metrics exposes prometheus instruments for the settlement core.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics captures wallet, order, commission and job health signals.
type Metrics struct {
	walletMutations     *prometheus.CounterVec
	insufficientBalance prometheus.Counter
	ordersCreated       *prometheus.CounterVec
	orderTransitions    *prometheus.CounterVec
	duplicatesBlocked   prometheus.Counter
	commissionAccruals  prometheus.Counter
	jobRuns             *prometheus.CounterVec
	jobErrors           *prometheus.CounterVec
	jobDuration         *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide instruments registered on the default
// prometheus registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = newMetrics(promauto.With(prometheus.DefaultRegisterer))
	})
	return defaultMetrics
}

func newMetrics(factory promauto.Factory) *Metrics {
	return &Metrics{
		walletMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datamart_wallet_mutations_total",
			Help: "Wallet balance mutations by type.",
		}, []string{"type"}),
		insufficientBalance: factory.NewCounter(prometheus.CounterOpts{
			Name: "datamart_wallet_insufficient_balance_total",
			Help: "Debits rejected for insufficient balance.",
		}),
		ordersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datamart_orders_created_total",
			Help: "Orders created by order type.",
		}, []string{"type"}),
		orderTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datamart_order_transitions_total",
			Help: "Order status transitions.",
		}, []string{"from", "to"}),
		duplicatesBlocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "datamart_duplicate_orders_blocked_total",
			Help: "Order submissions blocked by the duplicate check.",
		}),
		commissionAccruals: factory.NewCounter(prometheus.CounterOpts{
			Name: "datamart_commission_accruals_total",
			Help: "Real-time commission accruals applied.",
		}),
		jobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datamart_scheduler_job_runs_total",
			Help: "Scheduler job executions.",
		}, []string{"job"}),
		jobErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "datamart_scheduler_job_errors_total",
			Help: "Scheduler job failures.",
		}, []string{"job"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datamart_scheduler_job_duration_seconds",
			Help:    "Scheduler job wall time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
}

func (m *Metrics) IncWalletMutation(txType string) {
	m.walletMutations.WithLabelValues(txType).Inc()
}

func (m *Metrics) IncInsufficientBalance() {
	m.insufficientBalance.Inc()
}

func (m *Metrics) IncOrderCreated(orderType string) {
	m.ordersCreated.WithLabelValues(orderType).Inc()
}

func (m *Metrics) IncOrderTransition(from, to string) {
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncDuplicateBlocked() {
	m.duplicatesBlocked.Inc()
}

func (m *Metrics) IncCommissionAccrual() {
	m.commissionAccruals.Inc()
}

func (m *Metrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *Metrics) IncJobError(job string) {
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *Metrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}
