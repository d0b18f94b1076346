/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	dbclient "github.com/AMD-AIG-AIMA/testexec/pkg/database/client"
	dbutils "github.com/AMD-AIG-AIMA/testexec/pkg/database/utils"
	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
	"github.com/AMD-AIG-AIMA/testexec/pkg/messaging"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring"
	"github.com/AMD-AIG-AIMA/testexec/pkg/storage"
)

const (
	resultsFileName = "test-results.xml"
	fullLogFileName = "full-log.txt"

	artifactTimeoutSecond = 60
)

// Database is the slice of the relational client the tracker depends on.
type Database interface {
	InsertTestJob(ctx context.Context, job *dbclient.TestJob) error
	GetTestJob(ctx context.Context, jobId string) (*dbclient.TestJob, error)
	UpdateTestJobStatus(ctx context.Context, jobId string, status v1.JobStatus) error
	SetClusterJobName(ctx context.Context, jobId, clusterJobName string) error
	CompleteTestJob(ctx context.Context, job *dbclient.TestJob, results []*dbclient.TestResult) error
	CountRunningJobsByLob(ctx context.Context, lobId string) (int, error)
	CountRunningJobsByTeam(ctx context.Context, lobId, teamId string) (int, error)
	GetTestResults(ctx context.Context, jobId string) ([]*dbclient.TestResult, error)
}

// Runner is the cluster-facing surface the tracker uses to converge a
// Running row with its workload.
type Runner interface {
	IsJobCompleted(ctx context.Context, jobName, lobId string) (bool, error)
	GetTestResults(ctx context.Context, jobName, lobId string) (string, error)
	CleanupTestJob(ctx context.Context, jobName, lobId string) error
}

// Tracker owns the persisted job lifecycle. Rows are created in the Running
// state at submission and transition to a terminal state exactly once; the
// cluster remains the source of truth for runtime state in between.
type Tracker struct {
	dbClient    Database
	runner      Runner
	store       storage.Interface
	producer    messaging.Producer
	policyStore monitoring.PolicySource
	evaluator   *monitoring.Evaluator
	metrics     *monitoring.Metrics
	clock       clock.Clock
}

// NewTracker creates a job tracker. The store and producer are optional; a
// nil value disables the corresponding post-commit side effect.
func NewTracker(dbClient Database, runner Runner, store storage.Interface,
	producer messaging.Producer, policyStore monitoring.PolicySource,
	evaluator *monitoring.Evaluator, metrics *monitoring.Metrics, clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Tracker{
		dbClient:    dbClient,
		runner:      runner,
		store:       store,
		producer:    producer,
		policyStore: policyStore,
		evaluator:   evaluator,
		metrics:     metrics,
		clock:       clk,
	}
}

// CreateJob validates the request, enforces the concurrency quotas and
// inserts a Running row. The cluster workload is created by the caller
// afterwards and bound with BindClusterJob.
func (t *Tracker) CreateJob(ctx context.Context, req *v1.JobRequest) (string, error) {
	if req == nil {
		return "", commonerrors.NewBadRequest("the input is empty")
	}
	if err := req.Validate(); err != nil {
		return "", commonerrors.NewBadRequest(err.Error())
	}
	if err := t.checkQuota(ctx, req.LobId, req.TeamId); err != nil {
		return "", err
	}

	jobId := uuid.NewString()
	row := &dbclient.TestJob{
		JobId:         jobId,
		LobId:         req.LobId,
		TeamId:        req.TeamId,
		RepoUrl:       req.RepoUrl,
		TestImageType: req.TestImageType,
		Status:        string(v1.JobRunning),
		StartTime:     dbutils.NullTime(t.clock.Now().UTC()),
		CreatedBy:     dbutils.NullString(req.UserId),
		ScheduleId:    dbutils.NullString(req.ScheduleId),
	}
	if err := t.dbClient.InsertTestJob(ctx, row); err != nil {
		return "", commonerrors.NewInternalError(fmt.Sprintf("failed to persist job: %v", err))
	}
	return jobId, nil
}

// checkQuota rejects the submission when the lob or team already has its
// maximum number of Running jobs.
func (t *Tracker) checkQuota(ctx context.Context, lobId, teamId string) error {
	cfg, err := t.policyStore.GetAdminConfiguration(ctx, true)
	if err != nil {
		return err
	}
	if limit := cfg.ResourceManagement.MaxConcurrentJobsPerLob; limit > 0 {
		running, err := t.dbClient.CountRunningJobsByLob(ctx, lobId)
		if err != nil {
			return err
		}
		if running >= limit {
			t.metrics.JobsRejected.WithLabelValues(lobId, "lob-quota").Inc()
			return commonerrors.NewQuotaExceeded(
				fmt.Sprintf("lob has %d running jobs, limit is %d", running, limit))
		}
	}
	if limit := cfg.ResourceManagement.MaxConcurrentJobsPerTeam; limit > 0 {
		running, err := t.dbClient.CountRunningJobsByTeam(ctx, lobId, teamId)
		if err != nil {
			return err
		}
		if running >= limit {
			t.metrics.JobsRejected.WithLabelValues(lobId, "team-quota").Inc()
			return commonerrors.NewQuotaExceeded(
				fmt.Sprintf("team has %d running jobs, limit is %d", running, limit))
		}
	}
	return nil
}

// BindClusterJob records the cluster workload created for the job.
func (t *Tracker) BindClusterJob(ctx context.Context, jobId, clusterJobName string) error {
	return t.dbClient.SetClusterJobName(ctx, jobId, clusterJobName)
}

// UpdateJobStatus applies a non-terminal status transition. Exposed for
// external signals; completion goes through CompleteJob.
func (t *Tracker) UpdateJobStatus(ctx context.Context, jobId string, status v1.JobStatus) error {
	return t.dbClient.UpdateTestJobStatus(ctx, jobId, status)
}

// GetJob returns the persisted job row.
func (t *Tracker) GetJob(ctx context.Context, jobId string) (*dbclient.TestJob, error) {
	return t.dbClient.GetTestJob(ctx, jobId)
}

// GetJobResults returns the persisted per-test results of a job.
func (t *Tracker) GetJobResults(ctx context.Context, jobId string) ([]*dbclient.TestResult, error) {
	return t.dbClient.GetTestResults(ctx, jobId)
}

// SyncJob re-derives a Running job's status from the cluster. When the
// workload reached a terminal state its logs are fetched, the report XML is
// extracted and the job is completed. Terminal rows are returned as-is.
func (t *Tracker) SyncJob(ctx context.Context, jobId string) (*dbclient.TestJob, error) {
	job, err := t.dbClient.GetTestJob(ctx, jobId)
	if err != nil {
		return nil, err
	}
	if v1.JobStatus(job.Status).IsTerminal() || !job.ClusterJobName.Valid {
		return job, nil
	}

	clusterJobName := job.ClusterJobName.String
	done, err := t.runner.IsJobCompleted(ctx, clusterJobName, job.LobId)
	if err != nil {
		if commonerrors.IsNotFound(err) {
			// The workload is gone; nothing more will ever arrive.
			if err = t.CompleteJob(ctx, jobId, v1.JobFailed, "", ""); err != nil {
				return nil, err
			}
			return t.dbClient.GetTestJob(ctx, jobId)
		}
		return nil, err
	}
	if !done {
		return job, nil
	}

	logs, err := t.runner.GetTestResults(ctx, clusterJobName, job.LobId)
	if err != nil {
		klog.ErrorS(err, "failed to fetch runner logs", "id", jobId, "clusterJob", clusterJobName)
		logs = ""
	}
	resultsXml := ExtractResultsXml(logs)
	tests, parseErr := ParseTestResults(resultsXml)
	status := v1.JobSucceeded
	if parseErr != nil || len(tests) == 0 || Summarize(tests).Failed > 0 {
		status = v1.JobFailed
	}
	if err = t.CompleteJob(ctx, jobId, status, resultsXml, logs); err != nil {
		return nil, err
	}
	return t.dbClient.GetTestJob(ctx, jobId)
}

// CleanupJob deletes the cluster workload of a job. The row is kept; only
// runtime state is torn down.
func (t *Tracker) CleanupJob(ctx context.Context, jobId string) error {
	job, err := t.dbClient.GetTestJob(ctx, jobId)
	if err != nil {
		return err
	}
	if !job.ClusterJobName.Valid {
		return nil
	}
	err = t.runner.CleanupTestJob(ctx, job.ClusterJobName.String, job.LobId)
	if commonerrors.IsNotFound(err) {
		return nil
	}
	return err
}

// CompleteJob is the central convergence point of the job lifecycle. The
// status transition and the parsed result rows commit in one transaction;
// artifact upload, telemetry and the bus message run after commit as
// best-effort steps. An oversized artifact fails only its own step. When a
// concurrent caller already finalized the row the call returns nil and none
// of the side effects run again.
func (t *Tracker) CompleteJob(ctx context.Context, jobId string, status v1.JobStatus,
	resultsXml, artifactStream string) error {
	tests, parseErr := ParseTestResults(resultsXml)
	if parseErr != nil {
		klog.ErrorS(parseErr, "failed to parse test report, continuing with partial counts", "id", jobId)
	}
	summary := Summarize(tests)

	job, err := t.dbClient.GetTestJob(ctx, jobId)
	if err != nil {
		return err
	}

	endTime := t.clock.Now().UTC()
	job.Status = string(status)
	job.EndTime = dbutils.NullTime(endTime)
	job.TestsPassed = summary.Passed
	job.TestsFailed = summary.Failed
	job.TestsSkipped = summary.Skipped

	results := make([]*dbclient.TestResult, 0, len(tests))
	for _, test := range tests {
		results = append(results, &dbclient.TestResult{
			ResultId:        uuid.NewString(),
			JobId:           jobId,
			TestName:        test.Name,
			Status:          string(test.Status),
			DurationSeconds: test.DurationSeconds,
			ErrorMessage:    dbutils.NullString(test.ErrorMessage),
			StackTrace:      dbutils.NullString(test.StackTrace),
		})
	}
	if err = t.dbClient.CompleteTestJob(ctx, job, results); err != nil {
		if commonerrors.IsAlreadyExist(err) {
			// Lost the terminal transition to a concurrent caller. The
			// winner runs the side effects.
			klog.Infof("job %s was already completed, skipping side effects", jobId)
			return nil
		}
		return err
	}

	startTime := dbutils.ParseNullTime(job.StartTime)
	uploadErr := t.uploadArtifacts(ctx, job, artifactStream, resultsXml, tests, startTime, endTime)
	t.emitTelemetry(ctx, job, summary, startTime, endTime)
	t.publishMetadata(ctx, job, summary, startTime, endTime)
	return uploadErr
}

// uploadArtifacts stores the raw report and the synthesized log. The size
// cap applies to the artifact stream; exceeding it surfaces to the caller
// without undoing the committed transition.
func (t *Tracker) uploadArtifacts(ctx context.Context, job *dbclient.TestJob,
	artifactStream, resultsXml string, tests []ParsedTest, startTime, endTime time.Time) error {
	if t.store == nil || artifactStream == "" {
		return nil
	}
	cfg, err := t.policyStore.GetAdminConfiguration(ctx, true)
	if err != nil {
		klog.ErrorS(err, "failed to load retention policy, skipping artifact upload", "id", job.JobId)
		return nil
	}
	if maxMb := cfg.Retention.MaxTestResultFileSizeMb; maxMb > 0 && len(artifactStream) > maxMb*1024*1024 {
		return commonerrors.NewRequestEntityTooLargeError(
			fmt.Sprintf("test result file exceeds %d MB limit", maxMb))
	}

	report := resultsXml
	if report == "" {
		report = artifactStream
	}
	key := storage.ArtifactKey(job.LobId, job.TeamId, job.JobId, resultsFileName)
	if err = t.store.PutObject(ctx, key, report, artifactTimeoutSecond); err != nil {
		klog.ErrorS(err, "failed to upload test report", "id", job.JobId, "key", key)
	}
	fullLog := SynthesizeFullLog(job.JobId, job.RepoUrl, v1.JobStatus(job.Status),
		startTime, endTime, tests)
	key = storage.ArtifactKey(job.LobId, job.TeamId, job.JobId, fullLogFileName)
	if err = t.store.PutObject(ctx, key, fullLog, artifactTimeoutSecond); err != nil {
		klog.ErrorS(err, "failed to upload full log", "id", job.JobId, "key", key)
	}
	return nil
}

// emitTelemetry records the execution metrics and evaluates the alert rules
// bound to them.
func (t *Tracker) emitTelemetry(ctx context.Context, job *dbclient.TestJob,
	summary Summary, startTime, endTime time.Time) {
	duration := endTime.Sub(startTime).Seconds()
	if duration < 0 {
		duration = 0
	}
	// The fail rate is a percentage from 0 to 100, the same scale the alert
	// rule thresholds use.
	failRate := 0.0
	if total := summary.Total(); total > 0 {
		failRate = float64(summary.Failed) / float64(total) * 100
	}

	t.metrics.JobsCompleted.WithLabelValues(job.LobId, job.TeamId, job.Status).Inc()
	t.metrics.JobDuration.WithLabelValues(job.LobId).Observe(duration)
	t.metrics.TestsTotal.WithLabelValues(job.LobId, string(v1.TestPassed)).Add(float64(summary.Passed))
	t.metrics.TestsTotal.WithLabelValues(job.LobId, string(v1.TestFailed)).Add(float64(summary.Failed))
	t.metrics.TestsTotal.WithLabelValues(job.LobId, string(v1.TestSkipped)).Add(float64(summary.Skipped))
	klog.Infof("completed test job %s for lob %s: status=%s passed=%d failed=%d skipped=%d failRate=%.1f%% duration=%.1fs",
		job.JobId, job.LobId, job.Status, summary.Passed, summary.Failed, summary.Skipped,
		failRate, duration)

	dims := map[string]string{"LobId": job.LobId, "TeamId": job.TeamId}
	t.evaluator.EvaluateMetric(ctx, monitoring.MetricTestExecutionDuration, duration, dims)
	t.evaluator.EvaluateMetric(ctx, monitoring.MetricTestExecutionFailRate, failRate, dims)
	if v1.JobStatus(job.Status) != v1.JobSucceeded {
		t.evaluator.EvaluateMetric(ctx, monitoring.MetricTestExecutionFailed, 1, dims)
	}
}

// publishMetadata sends the completion summary to the bus. Transport errors
// are logged and never fail the completed job.
func (t *Tracker) publishMetadata(ctx context.Context, job *dbclient.TestJob,
	summary Summary, startTime, endTime time.Time) {
	if t.producer == nil {
		return
	}
	msg := &v1.TestResultMetadataMessage{
		JobId:           job.JobId,
		LobId:           job.LobId,
		TeamId:          job.TeamId,
		Status:          v1.JobStatus(job.Status),
		TotalTests:      summary.Total(),
		TestsPassed:     summary.Passed,
		TestsFailed:     summary.Failed,
		TestsSkipped:    summary.Skipped,
		StartTime:       startTime,
		EndTime:         endTime,
		DurationSeconds: endTime.Sub(startTime).Seconds(),
	}
	if err := t.producer.PublishTestResultMetadata(ctx, msg); err != nil {
		klog.ErrorS(err, "failed to publish result metadata", "id", job.JobId)
	}
}
