/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package apiserver

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	"github.com/AMD-AIG-AIMA/testexec/pkg/cluster"
	commonconfig "github.com/AMD-AIG-AIMA/testexec/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/testexec/pkg/database/client"
	"github.com/AMD-AIG-AIMA/testexec/pkg/handlers"
	"github.com/AMD-AIG-AIMA/testexec/pkg/messaging"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring/channel"
	"github.com/AMD-AIG-AIMA/testexec/pkg/options"
	"github.com/AMD-AIG-AIMA/testexec/pkg/orchestrator"
	"github.com/AMD-AIG-AIMA/testexec/pkg/policy"
	"github.com/AMD-AIG-AIMA/testexec/pkg/schedule"
	"github.com/AMD-AIG-AIMA/testexec/pkg/storage"
	"github.com/AMD-AIG-AIMA/testexec/pkg/tracker"
)

const (
	collectMetricsPeriod     = 5 * time.Minute
	processSchedulesPeriod   = 5 * time.Minute
	cleanupClusterJobsPeriod = 4 * time.Hour

	// Daily workers fire at a fixed UTC hour.
	retentionHourUTC    = 0
	dailySummaryHourUTC = 8

	shutdownTimeout = 30 * time.Second
)

type Server struct {
	opts       *options.Options
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	isInited   bool

	dbClient    *dbclient.Client
	provider    cluster.Interface
	policyStore *policy.Store
	store       storage.Interface
	producer    messaging.Producer
	notifier    *monitoring.Notifier
	collector   *monitoring.Collector
	tracker     *tracker.Tracker
	schedules   *schedule.Engine
}

// NewServer creates and returns a new Server instance. Every component is
// constructed exactly once here and handed to its consumers explicitly.
func NewServer() (*Server, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	s := &Server{
		opts:   &options.Options{},
		ctx:    ctx,
		cancel: cancel,
	}
	if err := s.init(); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// init performs the initial setup of the server including flag parsing,
// logging initialization, configuration loading, and component wiring.
func (s *Server) init() error {
	gin.SetMode(gin.ReleaseMode)
	var err error
	if err = s.opts.InitFlags(); err != nil {
		klog.ErrorS(err, "failed to parse flags")
		return err
	}
	if err = s.initLogs(); err != nil {
		klog.ErrorS(err, "failed to init logs")
		return err
	}
	if err = s.initConfig(); err != nil {
		klog.ErrorS(err, "failed to init config")
		return err
	}
	if err = s.initComponents(); err != nil {
		klog.ErrorS(err, "failed to init components")
		return err
	}
	s.isInited = true
	return nil
}

// initLogs routes klog to the configured log file.
func (s *Server) initLogs() error {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	if s.opts.LogfilePath != "" {
		if err := fs.Set("log_file", s.opts.LogfilePath); err != nil {
			return err
		}
		if err := fs.Set("logtostderr", "false"); err != nil {
			return err
		}
		if err := fs.Set("alsologtostderr", "true"); err != nil {
			return err
		}
	}
	if s.opts.LogFileSize > 0 {
		if err := fs.Set("log_file_max_size", strconv.Itoa(s.opts.LogFileSize)); err != nil {
			return err
		}
	}
	return nil
}

// initConfig loads the server configuration from the specified config file path.
func (s *Server) initConfig() error {
	fullPath, err := filepath.Abs(s.opts.Config)
	if err != nil {
		return err
	}
	if err = commonconfig.LoadConfig(fullPath); err != nil {
		return fmt.Errorf("config path: %s, err: %v", fullPath, err)
	}
	if s.opts.KubeConfig != "" {
		commonconfig.SetKubeConfigPath(s.opts.KubeConfig)
	}
	return nil
}

// initComponents builds the component graph bottom-up: database, cluster
// backend, policy store, optional storage and messaging, monitoring, then
// the tracker, schedule engine and HTTP surface on top.
func (s *Server) initComponents() error {
	var err error
	if s.dbClient, err = dbclient.NewClient(); err != nil {
		return err
	}
	if s.provider, err = cluster.NewProvider(); err != nil {
		return err
	}
	s.policyStore = policy.NewStore(s.dbClient, nil)
	resolver := cluster.NewNamespaceResolver(s.provider, s.policyStore.GetLobNamespacePrefix)

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)
	if commonconfig.IsNotificationEnabled() {
		if s.notifier, err = monitoring.NewNotifier(s.ctx); err != nil {
			return err
		}
	} else {
		s.notifier = monitoring.NewNotifierWithChannels(map[string]channel.Channel{})
	}
	evaluator := monitoring.NewEvaluator(s.policyStore, s.notifier, nil)
	s.collector = monitoring.NewCollector(s.provider, s.policyStore, evaluator, metrics)

	if commonconfig.IsStorageEnabled() {
		// Artifact expiry is handled by the retention worker, not a bucket
		// lifecycle rule, so the policy change takes effect without restarts.
		if s.store, err = storage.NewClient(s.ctx, storage.Option{}); err != nil {
			return err
		}
	}
	if commonconfig.IsMessagingEnabled() {
		if s.producer, err = messaging.NewProducer(); err != nil {
			return err
		}
	}

	orch := orchestrator.NewOrchestrator(s.provider, resolver, s.policyStore, metrics)
	s.tracker = tracker.NewTracker(s.dbClient, orch, s.store, s.producer,
		s.policyStore, evaluator, metrics, nil)
	pipeline := handlers.NewJobPipeline(s.tracker, orch)
	s.schedules = schedule.NewEngine(s.dbClient, pipeline, metrics, nil)

	handler := handlers.NewHandler(s.tracker, pipeline, s.schedules,
		s.policyStore, s.dbClient, s.provider, s.notifier)
	if commonconfig.GetServerPort() <= 0 {
		return fmt.Errorf("the apiserver port is not defined")
	}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", commonconfig.GetServerPort()),
		Handler: handlers.InitHttpHandlers(handler, registry),
	}
	return nil
}

// Start begins the server operation by starting the HTTP server and the
// background workers. It waits for a signal to stop and then calls Stop to
// shut down services.
func (s *Server) Start() {
	if !s.isInited {
		klog.Errorf("please init api-server first")
		return
	}
	gin.EnableJsonDecoderDisallowUnknownFields()

	klog.Infof("starting api-server")
	go func() {
		klog.Infof("http-server listen port: %d", commonconfig.GetServerPort())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.ErrorS(err, "failed to start http server")
			os.Exit(-1)
		}
	}()

	s.runTicker("collect-cluster-metrics", collectMetricsPeriod, s.collector.CollectClusterMetrics)
	s.runTicker("process-scheduled-jobs", processSchedulesPeriod, s.processScheduledJobs)
	s.runTicker("cleanup-completed-jobs", cleanupClusterJobsPeriod, s.cleanupCompletedJobs)
	s.runDaily("cleanup-old-test-results", retentionHourUTC, s.cleanupOldTestResults)
	s.runDaily("send-test-notification", dailySummaryHourUTC, s.sendDailySummary)

	<-s.ctx.Done()
	s.Stop()
}

// Stop gracefully shuts down the HTTP server, stops the workers and closes
// the external connections.
func (s *Server) Stop() {
	klog.Info("shutting down http server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		klog.ErrorS(err, "failed to shutdown httpserver")
	}
	s.cancel()
	s.wg.Wait()

	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			klog.ErrorS(err, "failed to close kafka producer")
		}
	}
	if s.dbClient != nil {
		s.dbClient.Close()
	}
	klog.Info("apiserver is stopped")
	klog.Flush()
}

// runTicker runs a worker on a fixed period until shutdown. Each tick is
// bounded to half the period so a stuck dependency cannot pile up runs.
func (s *Server) runTicker(name string, period time.Duration, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(s.ctx, period/2)
				if err := fn(ctx); err != nil {
					klog.ErrorS(err, "background worker failed", "worker", name)
				}
				cancel()
			}
		}
	}()
}

// runDaily runs a worker once a day at the given UTC hour until shutdown.
func (s *Server) runDaily(name string, hourUTC int, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			now := time.Now().UTC()
			next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
			if !next.After(now) {
				next = next.Add(24 * time.Hour)
			}
			timer := time.NewTimer(next.Sub(now))
			select {
			case <-s.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				ctx, cancel := context.WithTimeout(s.ctx, time.Hour)
				if err := fn(ctx); err != nil {
					klog.ErrorS(err, "background worker failed", "worker", name)
				}
				cancel()
			}
		}
	}()
}

func (s *Server) processScheduledJobs(ctx context.Context) error {
	fired, err := s.schedules.ProcessDueSchedules(ctx)
	if err != nil {
		return err
	}
	if fired > 0 {
		klog.Infof("fired %d scheduled test jobs", fired)
	}
	return nil
}

// cleanupCompletedJobs removes finished cluster workloads from every lob
// namespace once they are older than the configured age.
func (s *Server) cleanupCompletedJobs(ctx context.Context) error {
	cfg, err := s.policyStore.GetAdminConfiguration(ctx, true)
	if err != nil {
		return err
	}
	if !cfg.ResourceManagement.AutoCleanupJobs {
		return nil
	}
	olderThan := time.Duration(cfg.ResourceManagement.CleanupAfterHours) * time.Hour

	prefix := s.policyStore.GetLobNamespacePrefix(ctx)
	namespaces, err := s.provider.ListNamespaces(ctx, prefix)
	if err != nil {
		return err
	}
	total := 0
	for i := range namespaces {
		deleted, err := s.provider.CleanupCompletedJobs(ctx, namespaces[i].Name, olderThan)
		if err != nil {
			klog.ErrorS(err, "failed to cleanup completed jobs", "namespace", namespaces[i].Name)
			continue
		}
		total += deleted
	}
	if total > 0 {
		klog.Infof("cleaned up %d completed cluster jobs across %d namespaces", total, len(namespaces))
	}
	return nil
}

// cleanupOldTestResults enforces the retention policy: test result rows past
// their retention window are purged first, then job rows and their stored
// artifacts past the history window.
func (s *Server) cleanupOldTestResults(ctx context.Context) error {
	cfg, err := s.policyStore.GetAdminConfiguration(ctx, true)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	if days := cfg.Retention.TestResultsRetentionDays; days > 0 {
		cutoff := now.AddDate(0, 0, -days)
		deleted, err := s.dbClient.DeleteTestResultsBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		klog.Infof("retention: deleted %d test result rows older than %s", deleted, cutoff.Format(time.RFC3339))
	}

	if days := cfg.Retention.JobHistoryRetentionDays; days > 0 {
		cutoff := now.AddDate(0, 0, -days)
		if s.store != nil {
			s.pruneArtifactsBefore(ctx, cutoff)
		}
		deleted, err := s.dbClient.DeleteTestJobsBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		klog.Infof("retention: deleted %d job rows older than %s", deleted, cutoff.Format(time.RFC3339))
	}
	return nil
}

// pruneArtifactsBefore deletes the stored artifacts of jobs that are about to
// fall out of the history window. Artifact keys derive from the job row, so
// this must run before the rows are deleted and select the same rows by
// end_time. Failures are logged and the worker moves on; the bucket is
// revisited on the next run.
func (s *Server) pruneArtifactsBefore(ctx context.Context, cutoff time.Time) {
	const batchSize = 1000
	jobs, err := s.dbClient.SelectTestJobs(ctx,
		dbclient.ExpiredTestJobsQuery(cutoff),
		[]string{dbclient.EndTime + " " + dbclient.ASC}, batchSize, 0)
	if err != nil {
		klog.ErrorS(err, "failed to select jobs for artifact pruning")
		return
	}
	pruned := 0
	for _, job := range jobs {
		prefix := storage.JobPrefix(job.LobId, job.TeamId, job.JobId)
		deleted, err := s.store.DeletePrefix(ctx, prefix, storage.DefaultTimeout)
		if err != nil {
			klog.ErrorS(err, "failed to prune artifacts", "jobId", job.JobId)
			continue
		}
		pruned += deleted
	}
	if pruned > 0 {
		klog.Infof("retention: pruned %d artifacts for %d expired jobs", pruned, len(jobs))
	}
}

// sendDailySummary pushes a roll-up of the last 24 hours through the alert
// notification channels.
func (s *Server) sendDailySummary(ctx context.Context) error {
	cfg, err := s.policyStore.GetAdminConfiguration(ctx, true)
	if err != nil {
		return err
	}
	until := time.Now().UTC()
	since := until.Add(-24 * time.Hour)
	summary, err := s.dbClient.GetExecutionSummary(ctx, &dbclient.ReportFilter{Since: since, Until: until})
	if err != nil {
		return err
	}
	message := fmt.Sprintf(
		"Jobs: %d total, %d succeeded, %d failed, %d running. Tests: %d passed, %d failed, %d skipped. Average duration: %.0fs.",
		summary.TotalJobs, summary.SucceededJobs, summary.FailedJobs, summary.RunningJobs,
		summary.TestsPassed, summary.TestsFailed, summary.TestsSkipped, summary.AvgDurationSeconds)
	s.notifier.SendNotification(ctx, "Daily test execution summary", message,
		v1.SeverityInformation, map[string]string{"Source": "daily-summary"}, &cfg.Alerts.Notifications)
	return nil
}
