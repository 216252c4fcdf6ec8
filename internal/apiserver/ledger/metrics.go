package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 借还指标
type Metrics struct {
	BorrowsTotal   prometheus.Counter
	ReturnsTotal   prometheus.Counter
	ConflictsTotal *prometheus.CounterVec
}

// NewMetrics 创建指标实例并注册到 reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BorrowsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "library",
			Subsystem: "ledger",
			Name:      "borrows_total",
			Help:      "Total borrows created",
		}),
		ReturnsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "library",
			Subsystem: "ledger",
			Name:      "returns_total",
			Help:      "Total returns recorded",
		}),
		ConflictsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "library",
			Subsystem: "ledger",
			Name:      "conflicts_total",
			Help:      "Ledger writes rejected by an integrity rule",
		}, []string{"reason"}),
	}
}
