/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus instruments exported at /metrics.
type Metrics struct {
	JobsSubmitted   *prometheus.CounterVec
	JobsCompleted   *prometheus.CounterVec
	JobsRejected    *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	TestsTotal      *prometheus.CounterVec
	ClusterLoad     prometheus.Gauge
	PodsByPhase     *prometheus.GaugeVec
	JobsByState     *prometheus.GaugeVec
	ReadyNodes      prometheus.Gauge
	SchedulesFired  prometheus.Counter
	AlertsDelivered *prometheus.CounterVec
}

// NewMetrics registers the platform instruments on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "testexec_jobs_submitted_total",
			Help: "Test jobs accepted for execution.",
		}, []string{"lob", "team"}),
		JobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "testexec_jobs_completed_total",
			Help: "Test jobs that reached a terminal state.",
		}, []string{"lob", "team", "status"}),
		JobsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "testexec_jobs_rejected_total",
			Help: "Test job submissions rejected before execution.",
		}, []string{"lob", "reason"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "testexec_job_duration_seconds",
			Help:    "Wall-clock duration of completed test jobs.",
			Buckets: prometheus.ExponentialBuckets(30, 2, 10),
		}, []string{"lob"}),
		TestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "testexec_tests_total",
			Help: "Individual test outcomes across completed jobs.",
		}, []string{"lob", "status"}),
		ClusterLoad: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "testexec_cluster_load",
			Help: "Coarse cluster utilization heuristic.",
		}),
		PodsByPhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "testexec_cluster_pods",
			Help: "Pods per lob namespace by phase.",
		}, []string{"namespace", "phase"}),
		JobsByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "testexec_cluster_jobs",
			Help: "Jobs per lob namespace by state.",
		}, []string{"namespace", "state"}),
		ReadyNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "testexec_cluster_ready_nodes",
			Help: "Nodes currently reporting Ready.",
		}),
		SchedulesFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "testexec_schedules_fired_total",
			Help: "Schedule evaluations that enqueued a job.",
		}),
		AlertsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "testexec_alerts_delivered_total",
			Help: "Alert notifications dispatched by severity.",
		}, []string{"severity"}),
	}
	reg.MustRegister(
		m.JobsSubmitted, m.JobsCompleted, m.JobsRejected, m.JobDuration,
		m.TestsTotal, m.ClusterLoad, m.PodsByPhase, m.JobsByState,
		m.ReadyNodes, m.SchedulesFired, m.AlertsDelivered,
	)
	return m
}
