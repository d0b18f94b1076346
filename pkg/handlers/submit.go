/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"context"

	"k8s.io/klog/v2"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	"github.com/AMD-AIG-AIMA/testexec/pkg/tracker"
)

// WorkloadCreator turns a validated request into a cluster workload.
type WorkloadCreator interface {
	CreateTestJob(ctx context.Context, req *v1.JobRequest) (string, error)
}

// JobPipeline is the submission path shared by user requests and fired
// schedules: persist a Running row, create the workload, bind the two.
type JobPipeline struct {
	tracker      *tracker.Tracker
	orchestrator WorkloadCreator
}

// NewJobPipeline creates a job submission pipeline.
func NewJobPipeline(trk *tracker.Tracker, orchestrator WorkloadCreator) *JobPipeline {
	return &JobPipeline{tracker: trk, orchestrator: orchestrator}
}

// Submit runs the full submission pipeline and returns the job id and the
// cluster job name. When the workload cannot be created the row is marked
// Failed so it does not count against the quota forever.
func (p *JobPipeline) Submit(ctx context.Context, req *v1.JobRequest) (string, string, error) {
	jobId, err := p.tracker.CreateJob(ctx, req)
	if err != nil {
		return "", "", err
	}
	clusterJobName, err := p.orchestrator.CreateTestJob(ctx, req)
	if err != nil {
		if updErr := p.tracker.UpdateJobStatus(ctx, jobId, v1.JobFailed); updErr != nil {
			klog.ErrorS(updErr, "failed to mark job failed after submit error", "id", jobId)
		}
		return "", "", err
	}
	if err = p.tracker.BindClusterJob(ctx, jobId, clusterJobName); err != nil {
		return "", "", err
	}
	return jobId, clusterJobName, nil
}

// SubmitScheduledJob feeds a fired schedule through the same pipeline.
func (p *JobPipeline) SubmitScheduledJob(ctx context.Context, req *v1.JobRequest) error {
	_, _, err := p.Submit(ctx, req)
	return err
}
