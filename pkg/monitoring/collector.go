/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package monitoring

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/testexec/pkg/cluster"
)

// Collector polls the cluster for pod, job and node counts across the lob
// namespaces and feeds every emitted metric through alert evaluation.
type Collector struct {
	provider    cluster.Interface
	policyStore PolicySource
	evaluator   *Evaluator
	metrics     *Metrics
}

// NewCollector creates a cluster metrics collector.
func NewCollector(provider cluster.Interface, policyStore PolicySource, evaluator *Evaluator, metrics *Metrics) *Collector {
	return &Collector{
		provider:    provider,
		policyStore: policyStore,
		evaluator:   evaluator,
		metrics:     metrics,
	}
}

// CollectClusterMetrics gathers a snapshot of the lob namespaces. Runs on a
// five minute tick.
func (c *Collector) CollectClusterMetrics(ctx context.Context) error {
	prefix := c.policyStore.GetLobNamespacePrefix(ctx)
	namespaces, err := c.provider.ListNamespaces(ctx, prefix)
	if err != nil {
		klog.ErrorS(err, "failed to list lob namespaces")
		return err
	}

	var totalRunning int
	for _, ns := range namespaces {
		pods, err := c.provider.ListPods(ctx, ns.Name, "")
		if err != nil {
			klog.ErrorS(err, "failed to list pods", "namespace", ns.Name)
			continue
		}
		running, pending, failed := 0, 0, 0
		for i := range pods {
			switch pods[i].Status.Phase {
			case corev1.PodRunning:
				running++
			case corev1.PodPending:
				pending++
			case corev1.PodFailed:
				failed++
			}
		}
		totalRunning += running
		c.metrics.PodsByPhase.WithLabelValues(ns.Name, "Running").Set(float64(running))
		c.metrics.PodsByPhase.WithLabelValues(ns.Name, "Pending").Set(float64(pending))
		c.metrics.PodsByPhase.WithLabelValues(ns.Name, "Failed").Set(float64(failed))

		dims := map[string]string{"Namespace": ns.Name}
		c.evaluator.EvaluateMetric(ctx, MetricClusterRunningPods, float64(running), dims)
		c.evaluator.EvaluateMetric(ctx, MetricClusterPendingPods, float64(pending), dims)
		c.evaluator.EvaluateMetric(ctx, MetricClusterFailedPods, float64(failed), dims)

		jobs, err := c.provider.ListJobs(ctx, ns.Name, "")
		if err != nil {
			klog.ErrorS(err, "failed to list jobs", "namespace", ns.Name)
			continue
		}
		active, succeeded, jobsFailed := 0, 0, 0
		for i := range jobs {
			status := jobs[i].Status
			switch {
			case status.Active > 0:
				active++
			case status.Succeeded > 0:
				succeeded++
			case status.Failed > 0:
				jobsFailed++
			}
		}
		c.metrics.JobsByState.WithLabelValues(ns.Name, "Active").Set(float64(active))
		c.metrics.JobsByState.WithLabelValues(ns.Name, "Succeeded").Set(float64(succeeded))
		c.metrics.JobsByState.WithLabelValues(ns.Name, "Failed").Set(float64(jobsFailed))
	}

	nodes, err := c.provider.ListNodes(ctx)
	if err != nil {
		klog.ErrorS(err, "failed to list nodes")
		return err
	}
	readyNodes := 0
	for i := range nodes {
		for _, cond := range nodes[i].Status.Conditions {
			if cond.Type == corev1.NodeReady && cond.Status == corev1.ConditionTrue {
				readyNodes++
				break
			}
		}
	}
	c.metrics.ReadyNodes.Set(float64(readyNodes))
	c.evaluator.EvaluateMetric(ctx, MetricClusterReadyNodes, float64(readyNodes), nil)

	load := ClusterLoad(totalRunning, readyNodes)
	c.metrics.ClusterLoad.Set(load)
	c.evaluator.EvaluateMetric(ctx, MetricClusterLoad, load, nil)

	klog.Infof("collected cluster metrics: namespaces=%d, running_pods=%d, ready_nodes=%d, load=%.3f",
		len(namespaces), totalRunning, readyNodes, load)
	return nil
}

// ClusterLoad is a coarse utilization heuristic assuming roughly ten runner
// pods per node.
func ClusterLoad(runningPods, readyNodes int) float64 {
	denom := readyNodes * 10
	if denom < 1 {
		denom = 1
	}
	return float64(runningPods) / float64(denom)
}
