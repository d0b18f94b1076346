/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"gotest.tools/assert"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	"github.com/AMD-AIG-AIMA/testexec/pkg/cluster"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring"
	"github.com/AMD-AIG-AIMA/testexec/pkg/policy"
)

type stubPolicy struct {
	cfg     *v1.AdminConfiguration
	configs []*v1.UserConfiguration
}

func (s *stubPolicy) GetAdminConfiguration(context.Context, bool) (*v1.AdminConfiguration, error) {
	return s.cfg, nil
}

func (s *stubPolicy) GetLobNamespacePrefix(context.Context) string {
	return s.cfg.Cluster.LobNamespacePrefix
}

func (s *stubPolicy) ListUserConfigurations(context.Context, policy.Scope) ([]*v1.UserConfiguration, error) {
	return s.configs, nil
}

func newTestOrchestrator(clientSet *fake.Clientset) *Orchestrator {
	provider := cluster.NewProviderWithClientSet(cluster.ProviderAKS, clientSet)
	stub := &stubPolicy{cfg: policy.DefaultAdminConfiguration()}
	resolver := cluster.NewNamespaceResolver(provider, stub.GetLobNamespacePrefix)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	o := NewOrchestrator(provider, resolver, stub, metrics)
	o.registry = "registry.example.com"
	return o
}

func TestNewJobName(t *testing.T) {
	name := NewJobName()
	assert.Assert(t, strings.HasPrefix(name, "test-job-"))
	assert.Equal(t, len(name), len("test-job-")+32)
	assert.Assert(t, name != NewJobName())
}

func TestImageName(t *testing.T) {
	o := newTestOrchestrator(fake.NewSimpleClientset())
	assert.Equal(t, o.ImageName("DotNet"), "registry.example.com/dotnet:latest")
	assert.Equal(t, o.ImageName("JAVA"), "registry.example.com/java:latest")
}

func TestCreateTestJob(t *testing.T) {
	clientSet := fake.NewSimpleClientset()
	o := newTestOrchestrator(clientSet)

	jobName, err := o.CreateTestJob(context.Background(), &v1.JobRequest{
		RepoUrl:       "https://example/r.git",
		TestImageType: "DotNet",
		LobId:         "ACME",
		TeamId:        "pay",
		UserId:        "u1",
	})
	assert.NilError(t, err)
	assert.Assert(t, strings.HasPrefix(jobName, "test-job-"))

	// Namespace is derived from the lowercased lob and created on demand.
	_, err = clientSet.CoreV1().Namespaces().Get(context.Background(), "testexec-acme", metav1.GetOptions{})
	assert.NilError(t, err)

	job, err := clientSet.BatchV1().Jobs("testexec-acme").Get(context.Background(), jobName, metav1.GetOptions{})
	assert.NilError(t, err)
	assert.Equal(t, job.Spec.Template.Spec.Containers[0].Image, "registry.example.com/dotnet:latest")
	// Default timeout from the admin policy.
	assert.Equal(t, *job.Spec.ActiveDeadlineSeconds, int64(60*60))
}

func TestCreateTestJobAppliesUserEnvVars(t *testing.T) {
	clientSet := fake.NewSimpleClientset()
	o := newTestOrchestrator(clientSet)
	o.policyStore.(*stubPolicy).configs = []*v1.UserConfiguration{
		{Name: "newest", EnvVars: map[string]string{"DEBUG": "1", "REPO_URL": "https://forged"}},
		{Name: "older", EnvVars: map[string]string{"DEBUG": "0", "REGION": "us-east"}},
	}

	jobName, err := o.CreateTestJob(context.Background(), &v1.JobRequest{
		RepoUrl:       "https://example/r.git",
		TestImageType: "DotNet",
		LobId:         "acme",
		TeamId:        "pay",
		UserId:        "u1",
	})
	assert.NilError(t, err)

	job, err := clientSet.BatchV1().Jobs("testexec-acme").Get(context.Background(), jobName, metav1.GetOptions{})
	assert.NilError(t, err)
	env := map[string]string{}
	for _, entry := range job.Spec.Template.Spec.Containers[0].Env {
		env[entry.Name] = entry.Value
	}
	// The newest configuration wins a collision, REPO_URL stays reserved.
	assert.Equal(t, env["DEBUG"], "1")
	assert.Equal(t, env["REGION"], "us-east")
	assert.Equal(t, env["REPO_URL"], "https://example/r.git")
}

func TestCreateTestJobHonorsShorterTimeout(t *testing.T) {
	clientSet := fake.NewSimpleClientset()
	o := newTestOrchestrator(clientSet)

	jobName, err := o.CreateTestJob(context.Background(), &v1.JobRequest{
		RepoUrl:        "https://example/r.git",
		TestImageType:  "Java",
		LobId:          "acme",
		TeamId:         "pay",
		TimeoutMinutes: 15,
	})
	assert.NilError(t, err)

	job, err := clientSet.BatchV1().Jobs("testexec-acme").Get(context.Background(), jobName, metav1.GetOptions{})
	assert.NilError(t, err)
	assert.Equal(t, *job.Spec.ActiveDeadlineSeconds, int64(15*60))
}

func TestIsJobCompletedAndCleanup(t *testing.T) {
	clientSet := fake.NewSimpleClientset()
	o := newTestOrchestrator(clientSet)

	jobName, err := o.CreateTestJob(context.Background(), &v1.JobRequest{
		RepoUrl:       "https://example/r.git",
		TestImageType: "DotNet",
		LobId:         "acme",
		TeamId:        "pay",
	})
	assert.NilError(t, err)

	done, err := o.IsJobCompleted(context.Background(), jobName, "acme")
	assert.NilError(t, err)
	assert.Assert(t, !done)

	assert.NilError(t, o.CleanupTestJob(context.Background(), jobName, "acme"))

	_, err = clientSet.BatchV1().Jobs("testexec-acme").Get(context.Background(), jobName, metav1.GetOptions{})
	assert.Assert(t, err != nil)
}
