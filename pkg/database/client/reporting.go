/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
)

// ReportFilter narrows reporting queries. Zero values mean no constraint.
// All filter values are bound as SQL parameters, never spliced into the
// query text.
type ReportFilter struct {
	LobId  string
	TeamId string
	Status string
	Since  time.Time
	Until  time.Time
}

// ExecutionSummary aggregates job and test outcomes over a filter window.
type ExecutionSummary struct {
	TotalJobs          int     `db:"total_jobs"`
	SucceededJobs      int     `db:"succeeded_jobs"`
	FailedJobs         int     `db:"failed_jobs"`
	RunningJobs        int     `db:"running_jobs"`
	TestsPassed        int     `db:"tests_passed"`
	TestsFailed        int     `db:"tests_failed"`
	TestsSkipped       int     `db:"tests_skipped"`
	AvgDurationSeconds float64 `db:"avg_duration_seconds"`
}

// LobSummary is the per-lob roll-up for the admin report.
type LobSummary struct {
	LobId         string  `db:"lob_id"`
	TotalJobs     int     `db:"total_jobs"`
	SucceededJobs int     `db:"succeeded_jobs"`
	FailedJobs    int     `db:"failed_jobs"`
	RunningJobs   int     `db:"running_jobs"`
	PassRate      float64 `db:"pass_rate"`
}

// FailingTest counts how often a named test has failed in the window.
type FailingTest struct {
	TestName     string `db:"test_name"`
	FailureCount int    `db:"failure_count"`
	JobCount     int    `db:"job_count"`
}

// toQuery translates the filter to a parameterized conjunction over test_job
// columns.
func (f *ReportFilter) toQuery() sqrl.And {
	dbTags := GetTestJobFieldTags()
	query := sqrl.And{}
	if f == nil {
		return query
	}
	if f.LobId != "" {
		query = append(query, sqrl.Eq{GetFieldTag(dbTags, "LobId"): f.LobId})
	}
	if f.TeamId != "" {
		query = append(query, sqrl.Eq{GetFieldTag(dbTags, "TeamId"): f.TeamId})
	}
	if f.Status != "" {
		query = append(query, sqrl.Eq{GetFieldTag(dbTags, "Status"): f.Status})
	}
	if !f.Since.IsZero() {
		query = append(query, sqrl.GtOrEq{StartTime: f.Since})
	}
	if !f.Until.IsZero() {
		query = append(query, sqrl.Lt{StartTime: f.Until})
	}
	return query
}

// GetExecutionSummary aggregates job counts by status and test totals for the
// filter window. The status parameters in the FILTER clauses precede the
// filter parameters, so placeholders are renumbered after building.
func (c *Client) GetExecutionSummary(ctx context.Context, filter *ReportFilter) (*ExecutionSummary, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	sql, args, err := sqrl.Select(
		"COUNT(*) AS total_jobs",
		"COUNT(*) FILTER (WHERE status = ?) AS succeeded_jobs",
		"COUNT(*) FILTER (WHERE status = ?) AS failed_jobs",
		"COUNT(*) FILTER (WHERE status = ?) AS running_jobs",
		"COALESCE(SUM(tests_passed), 0) AS tests_passed",
		"COALESCE(SUM(tests_failed), 0) AS tests_failed",
		"COALESCE(SUM(tests_skipped), 0) AS tests_skipped",
		"COALESCE(AVG(EXTRACT(EPOCH FROM (end_time - start_time))), 0) AS avg_duration_seconds").
		From(TTestJob).
		Where(filter.toQuery()).ToSql()
	if err != nil {
		return nil, err
	}
	args = append([]interface{}{
		string(v1.JobSucceeded), string(v1.JobFailed), string(v1.JobRunning),
	}, args...)
	if sql, err = sqrl.Dollar.ReplacePlaceholders(sql); err != nil {
		return nil, err
	}

	summary := &ExecutionSummary{}
	ctx2, cancel := c.withRequestTimeout(ctx)
	defer cancel()
	if err = db.GetContext(ctx2, summary, sql, args...); err != nil {
		klog.ErrorS(err, "failed to select execution summary")
		return nil, err
	}
	return summary, nil
}

// GetLobSummaries rolls jobs up per lob for the admin report window.
func (c *Client) GetLobSummaries(ctx context.Context, since, until time.Time) ([]*LobSummary, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	filter := &ReportFilter{Since: since, Until: until}
	builder := sqrl.Select(
		"lob_id",
		"COUNT(*) AS total_jobs",
		"COUNT(*) FILTER (WHERE status = ?) AS succeeded_jobs",
		"COUNT(*) FILTER (WHERE status = ?) AS failed_jobs",
		"COUNT(*) FILTER (WHERE status = ?) AS running_jobs",
		"COALESCE(SUM(tests_passed)::float / NULLIF(SUM(tests_passed) + SUM(tests_failed), 0), 0) AS pass_rate").
		From(TTestJob).
		Where(filter.toQuery()).
		GroupBy("lob_id").
		OrderBy("total_jobs " + DESC)
	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	args = append([]interface{}{
		string(v1.JobSucceeded), string(v1.JobFailed), string(v1.JobRunning),
	}, args...)
	if sql, err = sqrl.Dollar.ReplacePlaceholders(sql); err != nil {
		return nil, err
	}

	var summaries []*LobSummary
	ctx2, cancel := c.withRequestTimeout(ctx)
	defer cancel()
	if err = db.SelectContext(ctx2, &summaries, sql, args...); err != nil {
		klog.ErrorS(err, "failed to select lob summaries")
		return nil, err
	}
	return summaries, nil
}

// SelectJobsReport returns one page of jobs matching the filter, newest
// first, plus the total match count for pagination.
func (c *Client) SelectJobsReport(ctx context.Context, filter *ReportFilter, limit, offset int) ([]*TestJob, int, error) {
	query := filter.toQuery()
	total, err := c.CountTestJobs(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	jobs, err := c.SelectTestJobs(ctx, query, []string{StartTime + " " + DESC}, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// GetTopFailingTests lists the tests with the most failures in the window.
func (c *Client) GetTopFailingTests(ctx context.Context, filter *ReportFilter, limit int) ([]*FailingTest, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	query := sqrl.And{sqrl.Eq{"r.status": string(v1.TestFailed)}}
	if filter != nil {
		if filter.LobId != "" {
			query = append(query, sqrl.Eq{"j.lob_id": filter.LobId})
		}
		if filter.TeamId != "" {
			query = append(query, sqrl.Eq{"j.team_id": filter.TeamId})
		}
		if !filter.Since.IsZero() {
			query = append(query, sqrl.GtOrEq{"j.start_time": filter.Since})
		}
		if !filter.Until.IsZero() {
			query = append(query, sqrl.Lt{"j.start_time": filter.Until})
		}
	}
	if limit <= 0 {
		limit = 10
	}
	sql, args, err := sqrl.Select(
		"r.test_name",
		"COUNT(*) AS failure_count",
		"COUNT(DISTINCT r.job_id) AS job_count").
		PlaceholderFormat(sqrl.Dollar).
		From(TTestResult+" r").
		Join(TTestJob+" j ON j.job_id = r.job_id").
		Where(query).
		GroupBy("r.test_name").
		OrderBy("failure_count "+DESC, "r.test_name "+ASC).
		Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, err
	}

	var tests []*FailingTest
	ctx2, cancel := c.withRequestTimeout(ctx)
	defer cancel()
	if err = db.SelectContext(ctx2, &tests, sql, args...); err != nil {
		klog.ErrorS(err, "failed to select top failing tests")
		return nil, err
	}
	return tests, nil
}
