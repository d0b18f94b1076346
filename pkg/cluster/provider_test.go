/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package cluster

import (
	"context"
	"strings"
	"testing"
	"time"

	"gotest.tools/assert"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
)

func TestCreateTestJob(t *testing.T) {
	clientSet := fake.NewSimpleClientset()
	p := NewProviderWithClientSet(ProviderAKS, clientSet)

	name, err := p.CreateTestJob(context.Background(), &TestJobSpec{
		JobName:        "test-job-abc",
		Namespace:      "testexec-acme",
		Image:          "registry.example.com/dotnet:latest",
		RepoUrl:        "https://example/r.git",
		TimeoutMinutes: 60,
		Limits: v1.ContainerLimits{
			CpuLimit:      "2",
			MemoryLimit:   "2Gi",
			CpuRequest:    "500m",
			MemoryRequest: "512Mi",
		},
		EnvVars: map[string]string{"DEBUG": "1", "REPO_URL": "https://forged"},
	})
	assert.NilError(t, err)
	assert.Equal(t, name, "test-job-abc")

	job, err := clientSet.BatchV1().Jobs("testexec-acme").Get(context.Background(), "test-job-abc", metav1.GetOptions{})
	assert.NilError(t, err)
	assert.Equal(t, *job.Spec.ActiveDeadlineSeconds, int64(3600))
	assert.Equal(t, *job.Spec.BackoffLimit, int32(0))

	podSpec := job.Spec.Template.Spec
	assert.Equal(t, podSpec.RestartPolicy, corev1.RestartPolicyNever)
	assert.Equal(t, len(podSpec.Containers), 1)

	container := podSpec.Containers[0]
	assert.Equal(t, container.Image, "registry.example.com/dotnet:latest")
	envs := map[string]string{}
	for _, e := range container.Env {
		envs[e.Name] = e.Value
	}
	// The repo url from the submission wins over any override.
	assert.Equal(t, envs["REPO_URL"], "https://example/r.git")
	assert.Equal(t, envs["DEBUG"], "1")
	assert.Equal(t, container.Resources.Limits.Cpu().String(), "2")
	assert.Equal(t, container.Resources.Requests.Memory().String(), "512Mi")
}

func TestCreateTestJobInvalidSpec(t *testing.T) {
	p := NewProviderWithClientSet(ProviderAKS, fake.NewSimpleClientset())
	_, err := p.CreateTestJob(context.Background(), &TestJobSpec{JobName: "x"})
	assert.Assert(t, err != nil)
}

func TestIsJobCompleted(t *testing.T) {
	cases := []struct {
		succeeded, failed int32
		completed         bool
	}{
		{0, 0, false},
		{1, 0, true},
		{0, 1, true},
		{1, 1, true},
	}
	for _, tc := range cases {
		job := &batchv1.Job{
			ObjectMeta: metav1.ObjectMeta{Name: "j1", Namespace: "ns"},
			Status:     batchv1.JobStatus{Succeeded: tc.succeeded, Failed: tc.failed},
		}
		p := NewProviderWithClientSet(ProviderAKS, fake.NewSimpleClientset(job))
		completed, err := p.IsJobCompleted(context.Background(), "j1", "ns")
		assert.NilError(t, err)
		assert.Equal(t, completed, tc.completed, "succeeded=%d failed=%d", tc.succeeded, tc.failed)
	}
}

func TestGetJobLogsNoPods(t *testing.T) {
	p := NewProviderWithClientSet(ProviderAKS, fake.NewSimpleClientset())
	logs, err := p.GetJobLogs(context.Background(), "test-job-abc", "ns")
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(logs, NoPodsFoundMessage))
	assert.Assert(t, strings.Contains(logs, "test-job-abc"))
}

func TestGetJobLogsFirstPod(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "test-job-abc-xyz",
			Namespace: "ns",
			Labels:    map[string]string{jobNameLabel: "test-job-abc"},
		},
	}
	p := NewProviderWithClientSet(ProviderAKS, fake.NewSimpleClientset(pod))
	logs, err := p.GetJobLogs(context.Background(), "test-job-abc", "ns")
	assert.NilError(t, err)
	// The fake clientset serves a canned log body.
	assert.Assert(t, logs != "")
}

func TestCreateNamespaceIfNotExistsIdempotent(t *testing.T) {
	p := NewProviderWithClientSet(ProviderAKS, fake.NewSimpleClientset())
	assert.NilError(t, p.CreateNamespaceIfNotExists(context.Background(), "testexec-acme"))
	assert.NilError(t, p.CreateNamespaceIfNotExists(context.Background(), "testexec-acme"))
}

func TestListNamespacesByPrefix(t *testing.T) {
	p := NewProviderWithClientSet(ProviderAKS, fake.NewSimpleClientset(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "testexec-acme"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "testexec-beta"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "kube-system"}},
	))
	namespaces, err := p.ListNamespaces(context.Background(), "testexec-")
	assert.NilError(t, err)
	assert.Equal(t, len(namespaces), 2)
}

func TestCleanupCompletedJobs(t *testing.T) {
	old := metav1.NewTime(time.Now().UTC().Add(-48 * time.Hour))
	recent := metav1.NewTime(time.Now().UTC().Add(-time.Hour))
	p := NewProviderWithClientSet(ProviderAKS, fake.NewSimpleClientset(
		&batchv1.Job{
			ObjectMeta: metav1.ObjectMeta{Name: "old-done", Namespace: "ns"},
			Status:     batchv1.JobStatus{Succeeded: 1, CompletionTime: &old},
		},
		&batchv1.Job{
			ObjectMeta: metav1.ObjectMeta{Name: "recent-done", Namespace: "ns"},
			Status:     batchv1.JobStatus{Succeeded: 1, CompletionTime: &recent},
		},
		&batchv1.Job{
			ObjectMeta: metav1.ObjectMeta{Name: "still-running", Namespace: "ns"},
			Status:     batchv1.JobStatus{Active: 1},
		},
	))
	deleted, err := p.CleanupCompletedJobs(context.Background(), "ns", 24*time.Hour)
	assert.NilError(t, err)
	assert.Equal(t, deleted, 1)

	jobs, err := p.ListJobs(context.Background(), "ns", "")
	assert.NilError(t, err)
	assert.Equal(t, len(jobs), 2)
}
