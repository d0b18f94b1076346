/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"sigs.k8s.io/yaml"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	dbclient "github.com/AMD-AIG-AIMA/testexec/pkg/database/client"
	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
)

const (
	defaultPageSize       = 50
	defaultFailingLimit   = 10
	defaultSummaryWindow  = 30 * 24 * time.Hour
	maxReportPageSize     = 500
	timeQueryLayout       = time.RFC3339
	defaultAlertTestTitle = "Test alert"
)

// GetAdminConfiguration handles GET /admin/configuration.
func (h *Handler) GetAdminConfiguration(c *gin.Context) {
	handleYaml(c, func(c *gin.Context) ([]byte, error) {
		cfg, err := h.policyStore.GetAdminConfiguration(c.Request.Context(), false)
		if err != nil {
			return nil, err
		}
		return yaml.Marshal(cfg)
	})
}

// PutAdminConfiguration handles PUT /admin/configuration with a YAML body.
func (h *Handler) PutAdminConfiguration(c *gin.Context) {
	handleYaml(c, func(c *gin.Context) ([]byte, error) {
		body, err := c.GetRawData()
		if err != nil {
			return nil, commonerrors.NewBadRequest(err.Error())
		}
		cfg := &v1.AdminConfiguration{}
		if err = yaml.Unmarshal(body, cfg); err != nil {
			return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid configuration yaml: %v", err))
		}
		if err = h.policyStore.SaveAdminConfiguration(c.Request.Context(), cfg); err != nil {
			return nil, err
		}
		return yaml.Marshal(cfg)
	})
}

// ListJobsReport handles GET /admin/jobs.
func (h *Handler) ListJobsReport(c *gin.Context) {
	handle(c, h.listJobsReport)
}

func (h *Handler) listJobsReport(c *gin.Context) (interface{}, error) {
	filter, err := reportFilterFromQuery(c)
	if err != nil {
		return nil, err
	}
	page, pageSize, err := pagination(c)
	if err != nil {
		return nil, err
	}
	rows, total, err := h.reporting.SelectJobsReport(c.Request.Context(), filter, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	jobs := make([]JobView, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, toJobView(row))
	}
	return gin.H{"total": total, "page": page, "pageSize": pageSize, "jobs": jobs}, nil
}

// GetJobsSummary handles GET /admin/jobs/summary.
func (h *Handler) GetJobsSummary(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		filter, err := reportFilterFromQuery(c)
		if err != nil {
			return nil, err
		}
		return h.reporting.GetExecutionSummary(c.Request.Context(), filter)
	})
}

// GetLobsSummary handles GET /admin/lobs/summary.
func (h *Handler) GetLobsSummary(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		filter, err := reportFilterFromQuery(c)
		if err != nil {
			return nil, err
		}
		since, until := filter.Since, filter.Until
		if until.IsZero() {
			until = time.Now().UTC()
		}
		if since.IsZero() {
			since = until.Add(-defaultSummaryWindow)
		}
		summaries, err := h.reporting.GetLobSummaries(c.Request.Context(), since, until)
		if err != nil {
			return nil, err
		}
		return gin.H{"since": since, "until": until, "lobs": summaries}, nil
	})
}

// GetFailingTests handles GET /admin/tests/failing.
func (h *Handler) GetFailingTests(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		filter, err := reportFilterFromQuery(c)
		if err != nil {
			return nil, err
		}
		limit, err := intQuery(c, "limit", defaultFailingLimit)
		if err != nil {
			return nil, err
		}
		tests, err := h.reporting.GetTopFailingTests(c.Request.Context(), filter, limit)
		if err != nil {
			return nil, err
		}
		return gin.H{"tests": tests}, nil
	})
}

type alertTestRequest struct {
	Title    string `json:"title,omitempty"`
	Message  string `json:"message,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// TestAlert handles POST /admin/alerts/test by pushing one notification
// through the configured channels.
func (h *Handler) TestAlert(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		body := &alertTestRequest{}
		if err := c.ShouldBindJSON(body); err != nil {
			return nil, commonerrors.NewBadRequest(err.Error())
		}
		if body.Title == "" {
			body.Title = defaultAlertTestTitle
		}
		if body.Message == "" {
			body.Message = "This is a test notification from the test execution platform."
		}
		severity := v1.AlertSeverity(body.Severity)
		switch severity {
		case "":
			severity = v1.SeverityInformation
		case v1.SeverityInformation, v1.SeverityWarning, v1.SeverityCritical:
		default:
			return nil, commonerrors.NewBadRequest(fmt.Sprintf("unknown severity %q", body.Severity))
		}
		cfg, err := h.policyStore.GetAdminConfiguration(c.Request.Context(), true)
		if err != nil {
			return nil, err
		}
		h.notifier.SendNotification(c.Request.Context(), body.Title, body.Message,
			severity, map[string]string{"Source": "alert-test"}, &cfg.Alerts.Notifications)
		return gin.H{"message": "test notification sent"}, nil
	})
}

// reportFilterFromQuery builds a report filter from the query string. All
// values end up as bound SQL parameters.
func reportFilterFromQuery(c *gin.Context) (*dbclient.ReportFilter, error) {
	filter := &dbclient.ReportFilter{
		LobId:  c.Query("lob_id"),
		TeamId: c.Query("team_id"),
		Status: c.Query("status"),
	}
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(timeQueryLayout, raw)
		if err != nil {
			return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid since: %v", err))
		}
		filter.Since = t.UTC()
	}
	if raw := c.Query("until"); raw != "" {
		t, err := time.Parse(timeQueryLayout, raw)
		if err != nil {
			return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid until: %v", err))
		}
		filter.Until = t.UTC()
	}
	return filter, nil
}

func pagination(c *gin.Context) (page, pageSize int, err error) {
	if page, err = intQuery(c, "page", 1); err != nil {
		return 0, 0, err
	}
	if pageSize, err = intQuery(c, "page_size", defaultPageSize); err != nil {
		return 0, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxReportPageSize {
		pageSize = maxReportPageSize
	}
	return page, pageSize, nil
}

func intQuery(c *gin.Context, name string, defaultValue int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, commonerrors.NewBadRequest(fmt.Sprintf("invalid %s: %v", name, err))
	}
	return value, nil
}
