// Package metrics holds the Prometheus collectors shared by the jobs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests counts IMS requests by endpoint kind and outcome.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ims_weather",
		Name:      "api_requests_total",
		Help:      "IMS API requests by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	// APIRetries counts attempts that returned an empty or error payload.
	APIRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ims_weather",
		Name:      "api_retries_total",
		Help:      "IMS API attempts retried.",
	}, []string{"endpoint"})

	// StationsCollected counts station columns written by a collection.
	StationsCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ims_weather",
		Name:      "stations_collected_total",
		Help:      "Station columns collected, by series kind.",
	}, []string{"kind"})

	// RowsMerged counts values written into yearly tables by incremental updates.
	RowsMerged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ims_weather",
		Name:      "values_merged_total",
		Help:      "Values merged into yearly tables, by series kind.",
	}, []string{"kind"})

	// JobRuns counts scheduled job runs by job and outcome.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ims_weather",
		Name:      "job_runs_total",
		Help:      "Scheduled job runs by job and outcome.",
	}, []string{"job", "outcome"})
)
