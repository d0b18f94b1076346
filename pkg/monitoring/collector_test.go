/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gotest.tools/assert"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	testingclock "k8s.io/utils/clock/testing"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	"github.com/AMD-AIG-AIMA/testexec/pkg/cluster"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring/channel"
)

func TestClusterLoad(t *testing.T) {
	assert.Equal(t, ClusterLoad(0, 0), 0.0)
	assert.Equal(t, ClusterLoad(5, 0), 5.0)
	assert.Equal(t, ClusterLoad(5, 1), 0.5)
	assert.Equal(t, ClusterLoad(20, 2), 1.0)
}

func TestCollectClusterMetrics(t *testing.T) {
	clientSet := fake.NewSimpleClientset(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "testexec-acme"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "kube-system"}},
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "runner-1", Namespace: "testexec-acme"},
			Status:     corev1.PodStatus{Phase: corev1.PodRunning},
		},
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "runner-2", Namespace: "testexec-acme"},
			Status:     corev1.PodStatus{Phase: corev1.PodPending},
		},
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "other", Namespace: "kube-system"},
			Status:     corev1.PodStatus{Phase: corev1.PodRunning},
		},
		&batchv1.Job{
			ObjectMeta: metav1.ObjectMeta{Name: "test-job-1", Namespace: "testexec-acme"},
			Status:     batchv1.JobStatus{Succeeded: 1},
		},
		&corev1.Node{
			ObjectMeta: metav1.ObjectMeta{Name: "node-1"},
			Status: corev1.NodeStatus{Conditions: []corev1.NodeCondition{
				{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
			}},
		},
		&corev1.Node{
			ObjectMeta: metav1.ObjectMeta{Name: "node-2"},
			Status: corev1.NodeStatus{Conditions: []corev1.NodeCondition{
				{Type: corev1.NodeReady, Status: corev1.ConditionFalse},
			}},
		},
	)
	provider := cluster.NewProviderWithClientSet(cluster.ProviderAKS, clientSet)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	notifier := NewNotifierWithChannels(map[string]channel.Channel{})
	stub := newStubPolicy(nil, v1.AlertNotifications{})
	evaluator := NewEvaluator(stub, notifier, testingclock.NewFakeClock(time.Now()))
	collector := NewCollector(provider, stub, evaluator, metrics)

	assert.NilError(t, collector.CollectClusterMetrics(context.Background()))

	assert.Equal(t, testutil.ToFloat64(metrics.PodsByPhase.WithLabelValues("testexec-acme", "Running")), 1.0)
	assert.Equal(t, testutil.ToFloat64(metrics.PodsByPhase.WithLabelValues("testexec-acme", "Pending")), 1.0)
	assert.Equal(t, testutil.ToFloat64(metrics.JobsByState.WithLabelValues("testexec-acme", "Succeeded")), 1.0)
	assert.Equal(t, testutil.ToFloat64(metrics.ReadyNodes), 1.0)
	assert.Equal(t, testutil.ToFloat64(metrics.ClusterLoad), 0.1)
}
