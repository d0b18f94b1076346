/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	"github.com/AMD-AIG-AIMA/testexec/pkg/cluster"
	commonconfig "github.com/AMD-AIG-AIMA/testexec/pkg/config"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring"
	"github.com/AMD-AIG-AIMA/testexec/pkg/policy"
)

const jobNamePrefix = "test-job-"

// PolicySource is the slice of the policy store the orchestrator depends on.
type PolicySource interface {
	GetAdminConfiguration(ctx context.Context, useCache bool) (*v1.AdminConfiguration, error)
	ListUserConfigurations(ctx context.Context, scope policy.Scope) ([]*v1.UserConfiguration, error)
}

// Orchestrator turns validated submissions into cluster workloads. It holds
// no job state of its own; the database is owned by the tracker and runtime
// state by the cluster.
type Orchestrator struct {
	provider    cluster.Interface
	resolver    *cluster.NamespaceResolver
	policyStore PolicySource
	metrics     *monitoring.Metrics
	registry    string
}

// NewOrchestrator creates a job orchestrator.
func NewOrchestrator(provider cluster.Interface, resolver *cluster.NamespaceResolver,
	policyStore PolicySource, metrics *monitoring.Metrics) *Orchestrator {
	return &Orchestrator{
		provider:    provider,
		resolver:    resolver,
		policyStore: policyStore,
		metrics:     metrics,
		registry:    commonconfig.GetContainerRegistry(),
	}
}

// NewJobName generates a cluster job name with a 32 character random hex
// suffix.
func NewJobName() string {
	return jobNamePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ImageName computes the runner image reference for a test image type.
func (o *Orchestrator) ImageName(testImageType string) string {
	return fmt.Sprintf("%s/%s:latest", o.registry, strings.ToLower(testImageType))
}

// CreateTestJob resolves the lob's namespace, ensures it exists and creates
// the runner workload. Database state is untouched here; on failure the
// caller rolls back its own record.
func (o *Orchestrator) CreateTestJob(ctx context.Context, req *v1.JobRequest) (string, error) {
	startTime := time.Now().UTC()
	namespace, err := o.resolver.EnsureNamespaceExists(ctx, req.LobId)
	if err != nil {
		return "", err
	}

	cfg, err := o.policyStore.GetAdminConfiguration(ctx, true)
	if err != nil {
		return "", err
	}
	timeoutMinutes := cfg.ResourceManagement.DefaultJobTimeoutMinutes
	if req.TimeoutMinutes > 0 && req.TimeoutMinutes < timeoutMinutes {
		timeoutMinutes = req.TimeoutMinutes
	}

	jobName := NewJobName()
	spec := &cluster.TestJobSpec{
		JobName:        jobName,
		Namespace:      namespace,
		Image:          o.ImageName(req.TestImageType),
		RepoUrl:        req.RepoUrl,
		TimeoutMinutes: timeoutMinutes,
		EnvVars:        o.userEnvVars(ctx, req),
		Limits:         cfg.ResourceManagement.DefaultContainerLimits,
	}
	if _, err = o.provider.CreateTestJob(ctx, spec); err != nil {
		klog.ErrorS(err, "failed to create cluster job",
			"namespace", namespace, "imageType", req.TestImageType, "lob", req.LobId)
		return "", err
	}

	o.metrics.JobsSubmitted.WithLabelValues(req.LobId, req.TeamId).Inc()
	klog.Infof("created test job %s in %s for lob %s (image type %s, took %v)",
		jobName, namespace, req.LobId, req.TestImageType, time.Since(startTime))
	return jobName, nil
}

// userEnvVars merges the env var overrides of the submitter's stored
// configurations. Configurations are listed newest first, so on a name
// collision the newest value wins. A read failure only skips the overrides,
// the submission still goes through.
func (o *Orchestrator) userEnvVars(ctx context.Context, req *v1.JobRequest) map[string]string {
	configs, err := o.policyStore.ListUserConfigurations(ctx, policy.Scope{
		LobId:  req.LobId,
		TeamId: req.TeamId,
		UserId: req.UserId,
	})
	if err != nil {
		klog.ErrorS(err, "failed to load user configurations, submitting without env overrides",
			"lob", req.LobId, "user", req.UserId)
		return nil
	}
	var envVars map[string]string
	for _, cfg := range configs {
		for name, value := range cfg.EnvVars {
			if _, ok := envVars[name]; ok {
				continue
			}
			if envVars == nil {
				envVars = map[string]string{}
			}
			envVars[name] = value
		}
	}
	return envVars
}

// IsJobCompleted reports whether the cluster job reached a terminal state.
func (o *Orchestrator) IsJobCompleted(ctx context.Context, jobName, lobId string) (bool, error) {
	namespace := o.resolver.GetNamespaceForLob(ctx, lobId)
	return o.provider.IsJobCompleted(ctx, jobName, namespace)
}

// GetTestResults returns the runner's log stream, which carries the result
// XML between sentinel markers.
func (o *Orchestrator) GetTestResults(ctx context.Context, jobName, lobId string) (string, error) {
	namespace := o.resolver.GetNamespaceForLob(ctx, lobId)
	return o.provider.GetJobLogs(ctx, jobName, namespace)
}

// CleanupTestJob deletes the cluster job and its pods.
func (o *Orchestrator) CleanupTestJob(ctx context.Context, jobName, lobId string) error {
	namespace := o.resolver.GetNamespaceForLob(ctx, lobId)
	return o.provider.DeleteJob(ctx, jobName, namespace)
}
