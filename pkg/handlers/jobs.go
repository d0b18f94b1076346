/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	dbclient "github.com/AMD-AIG-AIMA/testexec/pkg/database/client"
	dbutils "github.com/AMD-AIG-AIMA/testexec/pkg/database/utils"
	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
)

type createJobRequest struct {
	RepoUrl        string `json:"repoUrl"`
	TestImageType  string `json:"testImageType"`
	TimeoutMinutes int    `json:"timeoutMinutes,omitempty"`
	Branch         string `json:"branch,omitempty"`
	TestFilter     string `json:"testFilter,omitempty"`
}

// JobView is the API shape of a persisted job.
type JobView struct {
	JobId         string     `json:"jobId"`
	LobId         string     `json:"lobId"`
	TeamId        string     `json:"teamId"`
	RepoUrl       string     `json:"repoUrl"`
	TestImageType string     `json:"testImageType"`
	Status        string     `json:"status"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	TestsPassed   int        `json:"testsPassed"`
	TestsFailed   int        `json:"testsFailed"`
	TestsSkipped  int        `json:"testsSkipped"`
	CreatedBy     string     `json:"createdBy,omitempty"`
	ScheduleId    string     `json:"scheduleId,omitempty"`
}

// TestResultView is the API shape of one persisted test result.
type TestResultView struct {
	TestName        string  `json:"testName"`
	Status          string  `json:"status"`
	DurationSeconds float64 `json:"durationSeconds"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`
	StackTrace      string  `json:"stackTrace,omitempty"`
}

func toJobView(row *dbclient.TestJob) JobView {
	return JobView{
		JobId:         row.JobId,
		LobId:         row.LobId,
		TeamId:        row.TeamId,
		RepoUrl:       row.RepoUrl,
		TestImageType: row.TestImageType,
		Status:        row.Status,
		StartTime:     dbutils.ParseNullTime(row.StartTime),
		EndTime:       dbutils.ParseNullTimePtr(row.EndTime),
		TestsPassed:   row.TestsPassed,
		TestsFailed:   row.TestsFailed,
		TestsSkipped:  row.TestsSkipped,
		CreatedBy:     dbutils.ParseNullString(row.CreatedBy),
		ScheduleId:    dbutils.ParseNullString(row.ScheduleId),
	}
}

func toResultViews(rows []*dbclient.TestResult) []TestResultView {
	views := make([]TestResultView, 0, len(rows))
	for _, row := range rows {
		views = append(views, TestResultView{
			TestName:        row.TestName,
			Status:          row.Status,
			DurationSeconds: row.DurationSeconds,
			ErrorMessage:    dbutils.ParseNullString(row.ErrorMessage),
			StackTrace:      dbutils.ParseNullString(row.StackTrace),
		})
	}
	return views
}

// CreateJob handles POST /jobs.
func (h *Handler) CreateJob(c *gin.Context) {
	handle(c, h.createJob)
}

func (h *Handler) createJob(c *gin.Context) (interface{}, error) {
	body := &createJobRequest{}
	if err := c.ShouldBindJSON(body); err != nil {
		return nil, commonerrors.NewBadRequest(err.Error())
	}
	req := &v1.JobRequest{
		RepoUrl:        body.RepoUrl,
		TestImageType:  body.TestImageType,
		TimeoutMinutes: body.TimeoutMinutes,
		Branch:         body.Branch,
		TestFilter:     body.TestFilter,
		LobId:          c.GetString(LobId),
		TeamId:         c.GetString(TeamId),
		UserId:         c.GetString(UserId),
	}
	jobId, clusterJobName, err := h.pipeline.Submit(c.Request.Context(), req)
	if err != nil {
		return nil, err
	}
	klog.Infof("created test job %s (%s) for lob %s team %s by %s",
		jobId, clusterJobName, req.LobId, req.TeamId, req.UserId)
	return gin.H{
		"jobId":   jobId,
		"message": fmt.Sprintf("Test job created and running: %s", clusterJobName),
	}, nil
}

// GetJob handles GET /jobs/:jobId. The status is re-derived by polling the
// cluster on every call; a workload that finished since the last call is
// completed inline.
func (h *Handler) GetJob(c *gin.Context) {
	handle(c, h.getJob)
}

func (h *Handler) getJob(c *gin.Context) (interface{}, error) {
	job, err := h.ownedJob(c)
	if err != nil {
		return nil, err
	}
	return gin.H{"jobId": job.JobId, "status": job.Status}, nil
}

// GetJobResults handles GET /jobs/:jobId/results.
func (h *Handler) GetJobResults(c *gin.Context) {
	handle(c, h.getJobResults)
}

func (h *Handler) getJobResults(c *gin.Context) (interface{}, error) {
	job, err := h.ownedJob(c)
	if err != nil {
		return nil, err
	}
	rsp := gin.H{"jobId": job.JobId, "status": job.Status}
	if v1.JobStatus(job.Status).IsTerminal() {
		rows, err := h.tracker.GetJobResults(c.Request.Context(), job.JobId)
		if err != nil {
			return nil, err
		}
		rsp["results"] = toResultViews(rows)
		rsp["testsPassed"] = job.TestsPassed
		rsp["testsFailed"] = job.TestsFailed
		rsp["testsSkipped"] = job.TestsSkipped
	}
	return rsp, nil
}

// CleanupJob handles POST /jobs/:jobId/cleanup.
func (h *Handler) CleanupJob(c *gin.Context) {
	handle(c, h.cleanupJob)
}

func (h *Handler) cleanupJob(c *gin.Context) (interface{}, error) {
	job, err := h.ownedJob(c)
	if err != nil {
		return nil, err
	}
	if err = h.tracker.CleanupJob(c.Request.Context(), job.JobId); err != nil {
		return nil, err
	}
	return gin.H{"jobId": job.JobId, "message": "cluster resources cleaned up"}, nil
}

// ownedJob syncs and returns the job, hiding rows of other lobs.
func (h *Handler) ownedJob(c *gin.Context) (*dbclient.TestJob, error) {
	jobId := c.Param("jobId")
	job, err := h.tracker.SyncJob(c.Request.Context(), jobId)
	if err != nil {
		return nil, err
	}
	if job.LobId != c.GetString(LobId) {
		return nil, commonerrors.NewNotFound(commonerrors.JobKind, jobId)
	}
	return job, nil
}
