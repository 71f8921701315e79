package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditgw_operations_total",
			Help: "Billable operation outcomes by feature",
		},
		[]string{"feature", "outcome"}, // charged|insufficient|error
	)

	SettingsCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditgw_settings_cache_total",
			Help: "Settings cache lookups by result",
		},
		[]string{"result"}, // hit|miss
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creditgw_request_duration_seconds",
			Help:    "Privileged request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "class"}, // ok|client_error|server_error
	)

	UsageIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "creditgw_usage_ingested_total",
			Help: "Usage events written to ClickHouse by the ingest worker",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		OperationsTotal,
		SettingsCacheTotal,
		RequestDuration,
		UsageIngestedTotal,
	)
}
