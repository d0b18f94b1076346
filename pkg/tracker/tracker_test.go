/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tracker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gotest.tools/assert"
	testingclock "k8s.io/utils/clock/testing"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	dbclient "github.com/AMD-AIG-AIMA/testexec/pkg/database/client"
	dbutils "github.com/AMD-AIG-AIMA/testexec/pkg/database/utils"
	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring/channel"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring/model"
	"github.com/AMD-AIG-AIMA/testexec/pkg/policy"
	"github.com/AMD-AIG-AIMA/testexec/pkg/storage"
)

type fakeDatabase struct {
	jobs    map[string]*dbclient.TestJob
	results map[string][]*dbclient.TestResult
}

func newFakeDatabase() *fakeDatabase {
	return &fakeDatabase{
		jobs:    map[string]*dbclient.TestJob{},
		results: map[string][]*dbclient.TestResult{},
	}
}

func (f *fakeDatabase) InsertTestJob(_ context.Context, job *dbclient.TestJob) error {
	cp := *job
	f.jobs[job.JobId] = &cp
	return nil
}

func (f *fakeDatabase) GetTestJob(_ context.Context, jobId string) (*dbclient.TestJob, error) {
	job, ok := f.jobs[jobId]
	if !ok {
		return nil, commonerrors.NewNotFound(commonerrors.JobKind, jobId)
	}
	cp := *job
	return &cp, nil
}

func (f *fakeDatabase) UpdateTestJobStatus(_ context.Context, jobId string, status v1.JobStatus) error {
	if job, ok := f.jobs[jobId]; ok {
		job.Status = string(status)
	}
	return nil
}

func (f *fakeDatabase) SetClusterJobName(_ context.Context, jobId, clusterJobName string) error {
	if job, ok := f.jobs[jobId]; ok {
		job.ClusterJobName = dbutils.NullString(clusterJobName)
	}
	return nil
}

func (f *fakeDatabase) CompleteTestJob(_ context.Context, job *dbclient.TestJob, results []*dbclient.TestResult) error {
	existing, ok := f.jobs[job.JobId]
	if !ok {
		return commonerrors.NewNotFound(commonerrors.JobKind, job.JobId)
	}
	if existing.Status != string(v1.JobRunning) {
		return commonerrors.NewAlreadyExist(fmt.Sprintf("job %s is no longer running", job.JobId))
	}
	cp := *job
	f.jobs[job.JobId] = &cp
	f.results[job.JobId] = append(f.results[job.JobId], results...)
	return nil
}

func (f *fakeDatabase) CountRunningJobsByLob(_ context.Context, lobId string) (int, error) {
	cnt := 0
	for _, job := range f.jobs {
		if job.LobId == lobId && job.Status == string(v1.JobRunning) {
			cnt++
		}
	}
	return cnt, nil
}

func (f *fakeDatabase) CountRunningJobsByTeam(_ context.Context, lobId, teamId string) (int, error) {
	cnt := 0
	for _, job := range f.jobs {
		if job.LobId == lobId && job.TeamId == teamId && job.Status == string(v1.JobRunning) {
			cnt++
		}
	}
	return cnt, nil
}

func (f *fakeDatabase) GetTestResults(_ context.Context, jobId string) ([]*dbclient.TestResult, error) {
	return f.results[jobId], nil
}

type fakeRunner struct {
	completed bool
	missing   bool
	logs      string
	deleted   []string
}

func (f *fakeRunner) IsJobCompleted(_ context.Context, jobName, _ string) (bool, error) {
	if f.missing {
		return false, commonerrors.NewNotFound(commonerrors.JobKind, jobName)
	}
	return f.completed, nil
}

func (f *fakeRunner) GetTestResults(context.Context, string, string) (string, error) {
	return f.logs, nil
}

func (f *fakeRunner) CleanupTestJob(_ context.Context, jobName, _ string) error {
	f.deleted = append(f.deleted, jobName)
	return nil
}

type fakeStore struct {
	objects map[string]string
}

func (f *fakeStore) PutObject(_ context.Context, key, value string, _ int64) error {
	f.objects[key] = value
	return nil
}

func (f *fakeStore) GetObject(_ context.Context, key string, _ int64) (string, error) {
	return f.objects[key], nil
}

func (f *fakeStore) DeleteObject(_ context.Context, key string, _ int64) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) ListKeys(_ context.Context, prefix string, _ int64) ([]string, error) {
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (f *fakeStore) DeletePrefix(ctx context.Context, prefix string, timeout int64) (int, error) {
	keys, _ := f.ListKeys(ctx, prefix, timeout)
	for _, key := range keys {
		delete(f.objects, key)
	}
	return len(keys), nil
}

func (f *fakeStore) GeneratePresignedURL(_ context.Context, key string, _ int32) (string, error) {
	return "https://store.example/" + key, nil
}

var _ storage.Interface = &fakeStore{}

type fakeProducer struct {
	messages []*v1.TestResultMetadataMessage
}

func (f *fakeProducer) PublishTestResultMetadata(_ context.Context, msg *v1.TestResultMetadataMessage) error {
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

type captureChannel struct {
	payloads []model.WebhookPayload
}

func (c *captureChannel) Init(channel.Config) error { return nil }

func (c *captureChannel) Name() string { return model.ChannelWebhook }

func (c *captureChannel) Send(_ context.Context, msg *model.Message) error {
	c.payloads = append(c.payloads, msg.Webhook.Payload)
	return nil
}

type stubPolicy struct {
	cfg *v1.AdminConfiguration
}

func (s *stubPolicy) GetAdminConfiguration(context.Context, bool) (*v1.AdminConfiguration, error) {
	return s.cfg, nil
}

func (s *stubPolicy) GetLobNamespacePrefix(context.Context) string {
	return s.cfg.Cluster.LobNamespacePrefix
}

type trackerFixture struct {
	tracker  *Tracker
	db       *fakeDatabase
	runner   *fakeRunner
	store    *fakeStore
	producer *fakeProducer
	alerts   *captureChannel
	clock    *testingclock.FakeClock
	cfg      *v1.AdminConfiguration
}

func newTrackerFixture() *trackerFixture {
	db := newFakeDatabase()
	runner := &fakeRunner{}
	store := &fakeStore{objects: map[string]string{}}
	producer := &fakeProducer{}
	alerts := &captureChannel{}
	clk := testingclock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cfg := policy.DefaultAdminConfiguration()
	stub := &stubPolicy{cfg: cfg}
	notifier := monitoring.NewNotifierWithChannels(map[string]channel.Channel{model.ChannelWebhook: alerts})
	evaluator := monitoring.NewEvaluator(stub, notifier, clk)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	return &trackerFixture{
		tracker:  NewTracker(db, runner, store, producer, stub, evaluator, metrics, clk),
		db:       db,
		runner:   runner,
		store:    store,
		producer: producer,
		alerts:   alerts,
		clock:    clk,
		cfg:      cfg,
	}
}

func (f *trackerFixture) submit(t *testing.T) string {
	t.Helper()
	jobId, err := f.tracker.CreateJob(context.Background(), &v1.JobRequest{
		RepoUrl:       "https://example/r.git",
		TestImageType: "DotNet",
		LobId:         "acme",
		TeamId:        "pay",
		UserId:        "u1",
	})
	assert.NilError(t, err)
	return jobId
}

func TestCreateJob(t *testing.T) {
	f := newTrackerFixture()
	jobId := f.submit(t)
	assert.Equal(t, len(jobId), 36)

	job, err := f.tracker.GetJob(context.Background(), jobId)
	assert.NilError(t, err)
	assert.Equal(t, job.Status, string(v1.JobRunning))
	assert.Equal(t, dbutils.ParseNullTime(job.StartTime), f.clock.Now().UTC())
	assert.Equal(t, dbutils.ParseNullString(job.CreatedBy), "u1")
	assert.Assert(t, !job.EndTime.Valid)
}

func TestCreateJobValidation(t *testing.T) {
	f := newTrackerFixture()
	_, err := f.tracker.CreateJob(context.Background(), &v1.JobRequest{
		TestImageType: "DotNet", LobId: "acme", TeamId: "pay",
	})
	assert.Assert(t, commonerrors.IsBadRequest(err))
}

func TestCreateJobLobQuota(t *testing.T) {
	f := newTrackerFixture()
	f.cfg.ResourceManagement.MaxConcurrentJobsPerLob = 1
	f.submit(t)

	_, err := f.tracker.CreateJob(context.Background(), &v1.JobRequest{
		RepoUrl: "https://example/r.git", TestImageType: "Java",
		LobId: "acme", TeamId: "core",
	})
	assert.Assert(t, commonerrors.IsQuotaExceeded(err))
}

func TestCreateJobTeamQuota(t *testing.T) {
	f := newTrackerFixture()
	f.cfg.ResourceManagement.MaxConcurrentJobsPerTeam = 1
	f.submit(t)

	// Same team is capped; a sibling team is not.
	_, err := f.tracker.CreateJob(context.Background(), &v1.JobRequest{
		RepoUrl: "https://example/r.git", TestImageType: "Java",
		LobId: "acme", TeamId: "pay",
	})
	assert.Assert(t, commonerrors.IsQuotaExceeded(err))

	_, err = f.tracker.CreateJob(context.Background(), &v1.JobRequest{
		RepoUrl: "https://example/r.git", TestImageType: "Java",
		LobId: "acme", TeamId: "core",
	})
	assert.NilError(t, err)
}

func TestCompleteJob(t *testing.T) {
	f := newTrackerFixture()
	jobId := f.submit(t)
	f.clock.Step(90 * time.Second)

	report := `<tests><test name='t1' result='Passed' duration='0.5'/>` +
		`<test name='t2' result='Failed' duration='1.2'><failure><message>boom</message></failure></test></tests>`
	assert.NilError(t, f.tracker.CompleteJob(context.Background(), jobId, v1.JobSucceeded, report, "raw runner log"))

	job, err := f.tracker.GetJob(context.Background(), jobId)
	assert.NilError(t, err)
	assert.Equal(t, job.Status, string(v1.JobSucceeded))
	assert.Equal(t, job.TestsPassed, 1)
	assert.Equal(t, job.TestsFailed, 1)
	assert.Equal(t, job.TestsSkipped, 0)
	assert.Equal(t, dbutils.ParseNullTime(job.EndTime), f.clock.Now().UTC())

	rows, err := f.tracker.GetJobResults(context.Background(), jobId)
	assert.NilError(t, err)
	assert.Equal(t, len(rows), 2)

	// Both artifacts land under the job's prefix.
	assert.Assert(t, f.store.objects["acme/pay/"+jobId+"/test-results.xml"] != "")
	assert.Assert(t, strings.Contains(f.store.objects["acme/pay/"+jobId+"/full-log.txt"], "Totals: 1 passed, 1 failed, 0 skipped"))

	assert.Equal(t, len(f.producer.messages), 1)
	msg := f.producer.messages[0]
	assert.Equal(t, msg.JobId, jobId)
	assert.Equal(t, msg.TotalTests, 2)
	assert.Equal(t, msg.DurationSeconds, 90.0)
}

func TestCompleteJobMalformedXml(t *testing.T) {
	f := newTrackerFixture()
	jobId := f.submit(t)

	// The status transition still commits with zero counts.
	assert.NilError(t, f.tracker.CompleteJob(context.Background(), jobId, v1.JobFailed, "<not xml", ""))

	job, err := f.tracker.GetJob(context.Background(), jobId)
	assert.NilError(t, err)
	assert.Equal(t, job.Status, string(v1.JobFailed))
	assert.Equal(t, job.TestsPassed, 0)
	assert.Equal(t, job.TestsFailed, 0)
	assert.Equal(t, job.TestsSkipped, 0)

	rows, err := f.tracker.GetJobResults(context.Background(), jobId)
	assert.NilError(t, err)
	assert.Equal(t, len(rows), 0)
}

func TestCompleteJobCountersMatchStoredResults(t *testing.T) {
	f := newTrackerFixture()
	jobId := f.submit(t)

	// "Errored" normalizes to Unknown; the row is still stored and counted.
	report := `<tests><test name='t1' result='Errored'/><test name='t2' result='Passed'/></tests>`
	assert.NilError(t, f.tracker.CompleteJob(context.Background(), jobId, v1.JobFailed, report, ""))

	job, err := f.tracker.GetJob(context.Background(), jobId)
	assert.NilError(t, err)
	rows, err := f.tracker.GetJobResults(context.Background(), jobId)
	assert.NilError(t, err)
	assert.Equal(t, job.TestsPassed+job.TestsFailed+job.TestsSkipped, len(rows))
	assert.Equal(t, job.TestsPassed, 1)
	assert.Equal(t, job.TestsFailed, 1)
}

func TestCompleteJobExactlyOnce(t *testing.T) {
	f := newTrackerFixture()
	jobId := f.submit(t)

	report := `<tests><test name='t1' result='Passed'/></tests>`
	assert.NilError(t, f.tracker.CompleteJob(context.Background(), jobId, v1.JobSucceeded, report, "raw log"))

	// A racing second completion loses the transition: the first status
	// stays, no duplicate result rows, no duplicate bus message.
	assert.NilError(t, f.tracker.CompleteJob(context.Background(), jobId, v1.JobFailed, report, "raw log"))

	job, err := f.tracker.GetJob(context.Background(), jobId)
	assert.NilError(t, err)
	assert.Equal(t, job.Status, string(v1.JobSucceeded))

	rows, err := f.tracker.GetJobResults(context.Background(), jobId)
	assert.NilError(t, err)
	assert.Equal(t, len(rows), 1)
	assert.Equal(t, len(f.producer.messages), 1)
}

func TestCompleteJobFailRateAlert(t *testing.T) {
	f := newTrackerFixture()
	f.cfg.Alerts.Rules = []v1.AlertRule{{
		Id:                "fail-rate",
		Name:              "high fail rate",
		Metric:            monitoring.MetricTestExecutionFailRate,
		Threshold:         50,
		Operator:          v1.OperatorGreaterThan,
		TimeWindowMinutes: 30,
		Severity:          v1.SeverityCritical,
		Enabled:           true,
	}}
	f.cfg.Alerts.Notifications = v1.AlertNotifications{
		WebhookEnabled: true,
		WebhookUrls:    []string{"https://hooks.example/alerts"},
	}
	jobId := f.submit(t)

	// Two of three tests failed; the metric value is 66.6667 percent and
	// crosses the percent-scale threshold.
	report := `<tests><test name='t1' result='Failed'/><test name='t2' result='Failed'/>` +
		`<test name='t3' result='Passed'/></tests>`
	assert.NilError(t, f.tracker.CompleteJob(context.Background(), jobId, v1.JobFailed, report, ""))

	assert.Equal(t, len(f.alerts.payloads), 1)
	assert.Assert(t, strings.Contains(f.alerts.payloads[0].Message, monitoring.MetricTestExecutionFailRate))
	assert.Assert(t, strings.Contains(f.alerts.payloads[0].Message, "66.6667"))
}

func TestCompleteJobUnknownJob(t *testing.T) {
	f := newTrackerFixture()
	err := f.tracker.CompleteJob(context.Background(), "missing", v1.JobSucceeded, "", "")
	assert.Assert(t, commonerrors.IsNotFound(err))
}

func TestCompleteJobOversizedArtifact(t *testing.T) {
	f := newTrackerFixture()
	f.cfg.Retention.MaxTestResultFileSizeMb = 1
	jobId := f.submit(t)

	big := strings.Repeat("x", 1024*1024+1)
	err := f.tracker.CompleteJob(context.Background(), jobId, v1.JobSucceeded,
		`<tests><test name='t1' result='Passed'/></tests>`, big)
	assert.Assert(t, err != nil)
	assert.Assert(t, strings.Contains(err.Error(), "exceeds 1 MB"))

	// The transition committed and the bus message went out; only the
	// artifact upload was aborted.
	job, getErr := f.tracker.GetJob(context.Background(), jobId)
	assert.NilError(t, getErr)
	assert.Equal(t, job.Status, string(v1.JobSucceeded))
	assert.Equal(t, len(f.store.objects), 0)
	assert.Equal(t, len(f.producer.messages), 1)
}

func TestSyncJobCompletesFromCluster(t *testing.T) {
	f := newTrackerFixture()
	jobId := f.submit(t)
	assert.NilError(t, f.tracker.BindClusterJob(context.Background(), jobId, "test-job-abc"))

	// Still running: no transition.
	job, err := f.tracker.SyncJob(context.Background(), jobId)
	assert.NilError(t, err)
	assert.Equal(t, job.Status, string(v1.JobRunning))

	f.runner.completed = true
	f.runner.logs = "setup\n" + resultsBeginMarker +
		"\n<tests><test name='t1' result='Passed' duration='0.1'/></tests>\n" +
		resultsEndMarker + "\n"
	job, err = f.tracker.SyncJob(context.Background(), jobId)
	assert.NilError(t, err)
	assert.Equal(t, job.Status, string(v1.JobSucceeded))
	assert.Equal(t, job.TestsPassed, 1)
}

func TestSyncJobFailsOnFailedTests(t *testing.T) {
	f := newTrackerFixture()
	jobId := f.submit(t)
	assert.NilError(t, f.tracker.BindClusterJob(context.Background(), jobId, "test-job-abc"))

	f.runner.completed = true
	f.runner.logs = `<tests><test name='t1' result='Failed'/></tests>`
	job, err := f.tracker.SyncJob(context.Background(), jobId)
	assert.NilError(t, err)
	assert.Equal(t, job.Status, string(v1.JobFailed))
	assert.Equal(t, job.TestsFailed, 1)
}

func TestSyncJobVanishedWorkload(t *testing.T) {
	f := newTrackerFixture()
	jobId := f.submit(t)
	assert.NilError(t, f.tracker.BindClusterJob(context.Background(), jobId, "test-job-abc"))

	f.runner.missing = true
	job, err := f.tracker.SyncJob(context.Background(), jobId)
	assert.NilError(t, err)
	assert.Equal(t, job.Status, string(v1.JobFailed))
}

func TestSyncJobTerminalIsStable(t *testing.T) {
	f := newTrackerFixture()
	jobId := f.submit(t)
	assert.NilError(t, f.tracker.CompleteJob(context.Background(), jobId, v1.JobSucceeded, "", ""))

	f.runner.completed = true
	f.runner.logs = `<tests><test name='t1' result='Failed'/></tests>`
	job, err := f.tracker.SyncJob(context.Background(), jobId)
	assert.NilError(t, err)
	assert.Equal(t, job.Status, string(v1.JobSucceeded))
	assert.Equal(t, len(f.producer.messages), 1)
}

func TestCleanupJob(t *testing.T) {
	f := newTrackerFixture()
	jobId := f.submit(t)
	assert.NilError(t, f.tracker.BindClusterJob(context.Background(), jobId, "test-job-abc"))

	assert.NilError(t, f.tracker.CleanupJob(context.Background(), jobId))
	assert.DeepEqual(t, f.runner.deleted, []string{"test-job-abc"})
}
