package api

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the analysis endpoints.
type Metrics struct {
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	RowsRead         prometheus.Histogram
	OutliersFlagged  prometheus.Counter
}

// NewMetrics registers and returns analysis metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triangle_analyses_total",
			Help: "Total triangle analyses by outcome code.",
		}, []string{"code"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triangle_analysis_duration_seconds",
			Help:    "Duration of load plus analysis in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms .. ~8s
		}),
		RowsRead: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triangle_rows_read",
			Help:    "Input rows per analyzed triangle.",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8), // 10 .. ~164k
		}),
		OutliersFlagged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triangle_outliers_flagged_total",
			Help: "Link ratios flagged as outliers across all analyses.",
		}),
	}
	reg.MustRegister(m.AnalysesTotal, m.AnalysisDuration, m.RowsRead, m.OutliersFlagged)
	return m
}
