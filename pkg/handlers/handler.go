/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	dbclient "github.com/AMD-AIG-AIMA/testexec/pkg/database/client"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring"
	"github.com/AMD-AIG-AIMA/testexec/pkg/policy"
	"github.com/AMD-AIG-AIMA/testexec/pkg/schedule"
	"github.com/AMD-AIG-AIMA/testexec/pkg/tracker"
	"github.com/AMD-AIG-AIMA/testexec/pkg/utils"
)

// Reporting is the read-side surface of the relational client used by the
// admin endpoints and the health probe.
type Reporting interface {
	Ping(ctx context.Context) error
	GetExecutionSummary(ctx context.Context, filter *dbclient.ReportFilter) (*dbclient.ExecutionSummary, error)
	GetLobSummaries(ctx context.Context, since, until time.Time) ([]*dbclient.LobSummary, error)
	SelectJobsReport(ctx context.Context, filter *dbclient.ReportFilter, limit, offset int) ([]*dbclient.TestJob, int, error)
	GetTopFailingTests(ctx context.Context, filter *dbclient.ReportFilter, limit int) ([]*dbclient.FailingTest, error)
}

// ClusterPinger is the health-probe view of the cluster backend.
type ClusterPinger interface {
	Ping(ctx context.Context) error
}

// Handler handles the HTTP surface of the control plane.
type Handler struct {
	tracker     *tracker.Tracker
	pipeline    *JobPipeline
	schedules   *schedule.Engine
	policyStore *policy.Store
	reporting   Reporting
	cluster     ClusterPinger
	notifier    *monitoring.Notifier
}

// NewHandler creates the HTTP handler from its collaborators.
func NewHandler(trk *tracker.Tracker, pipeline *JobPipeline, schedules *schedule.Engine,
	policyStore *policy.Store, reporting Reporting, clusterPinger ClusterPinger,
	notifier *monitoring.Notifier) *Handler {
	return &Handler{
		tracker:     trk,
		pipeline:    pipeline,
		schedules:   schedules,
		policyStore: policyStore,
		reporting:   reporting,
		cluster:     clusterPinger,
		notifier:    notifier,
	}
}

// handle is the common wrapper for JSON endpoints.
func handle(c *gin.Context, fn func(c *gin.Context) (interface{}, error)) {
	result, err := fn(c)
	if err != nil {
		utils.AbortWithApiError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleYaml is the common wrapper for endpoints that answer with a YAML
// document.
func handleYaml(c *gin.Context, fn func(c *gin.Context) ([]byte, error)) {
	body, err := fn(c)
	if err != nil {
		utils.AbortWithApiError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/yaml", body)
}
