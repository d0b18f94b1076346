/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	dbutils "github.com/AMD-AIG-AIMA/testexec/pkg/database/utils"
	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
)

const (
	TTestJob    = "test_job"
	TTestResult = "test_result"
)

var (
	getTestJobCmd          = fmt.Sprintf(`SELECT * FROM %s WHERE job_id = $1 LIMIT 1`, TTestJob)
	insertTestJobFormat    = `INSERT INTO ` + TTestJob + ` (%s) VALUES (%s)`
	insertTestResultFormat = `INSERT INTO ` + TTestResult + ` (%s) VALUES (%s)`
	updateTestJobStatusCmd = fmt.Sprintf(`UPDATE %s SET status = $2 WHERE job_id = $1`, TTestJob)
	bindClusterJobCmd      = fmt.Sprintf(`UPDATE %s SET cluster_job_name = $2 WHERE job_id = $1`, TTestJob)
	// completeTestJobCmd only matches a Running row, so concurrent
	// completions race on the guard and exactly one wins.
	completeTestJobCmd = fmt.Sprintf(`UPDATE %s
		SET status = :status,
		    end_time = :end_time,
		    tests_passed = :tests_passed,
		    tests_failed = :tests_failed,
		    tests_skipped = :tests_skipped
		WHERE job_id = :job_id AND status = '%s'`, TTestJob, v1.JobRunning)
)

// InsertTestJob persists a newly submitted job in the Running state.
func (c *Client) InsertTestJob(ctx context.Context, job *TestJob) error {
	if job == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.NamedExecContext(ctx, generateCommand(*job, insertTestJobFormat, "id"), job)
	if err != nil {
		klog.ErrorS(err, "failed to insert test job db", "id", job.JobId)
	}
	return err
}

// GetTestJob retrieves a job by ID.
func (c *Client) GetTestJob(ctx context.Context, jobId string) (*TestJob, error) {
	if jobId == "" {
		return nil, commonerrors.NewBadRequest("jobId is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var jobs []*TestJob
	if err = db.SelectContext(ctx, &jobs, getTestJobCmd, jobId); err != nil {
		klog.ErrorS(err, "failed to select test job", "id", jobId)
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, commonerrors.NewNotFound(commonerrors.JobKind, jobId)
	}
	return jobs[0], nil
}

// UpdateTestJobStatus updates the status column of a job.
func (c *Client) UpdateTestJobStatus(ctx context.Context, jobId string, status v1.JobStatus) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, updateTestJobStatusCmd, jobId, string(status))
	if err != nil {
		klog.ErrorS(err, "failed to update test job db", "JobId", jobId)
		return err
	}
	return nil
}

// SetClusterJobName binds a job record to the workload created for it in the
// cluster.
func (c *Client) SetClusterJobName(ctx context.Context, jobId, clusterJobName string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, bindClusterJobCmd, jobId, clusterJobName)
	if err != nil {
		klog.ErrorS(err, "failed to bind cluster job db", "JobId", jobId, "clusterJob", clusterJobName)
		return err
	}
	return nil
}

// CompleteTestJob finalizes a Running job and records its per-test results
// in one transaction. The job row and the result rows commit or roll back
// together. When the row is no longer Running the transaction rolls back and
// AlreadyExist is returned; the caller that lost the race must not repeat
// the completion side effects.
func (c *Client) CompleteTestJob(ctx context.Context, job *TestJob, results []*TestResult) error {
	if job == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	ctx2, cancel := c.withRequestTimeout(ctx)
	defer cancel()

	tx, err := db.BeginTxx(ctx2, nil)
	if err != nil {
		klog.ErrorS(err, "failed to begin tx", "id", job.JobId)
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				klog.ErrorS(rbErr, "failed to rollback tx", "id", job.JobId)
			}
		}
	}()

	var res sql.Result
	if res, err = tx.NamedExecContext(ctx2, completeTestJobCmd, job); err != nil {
		klog.ErrorS(err, "failed to complete test job db", "id", job.JobId)
		return err
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		err = commonerrors.NewAlreadyExist(fmt.Sprintf("job %s is no longer running", job.JobId))
		return err
	}
	insertResultCmd := generateCommand(TestResult{}, insertTestResultFormat, "id")
	for _, result := range results {
		if result == nil {
			continue
		}
		if _, err = tx.NamedExecContext(ctx2, insertResultCmd, result); err != nil {
			klog.ErrorS(err, "failed to insert test result db", "id", job.JobId, "test", result.TestName)
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		klog.ErrorS(err, "failed to commit tx", "id", job.JobId)
		return err
	}
	return nil
}

// SelectTestJobs retrieves multiple job records.
func (c *Client) SelectTestJobs(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*TestJob, error) {
	startTime := time.Now().UTC()
	defer func() {
		if query != nil {
			strQuery := dbutils.CvtToSqlStr(query)
			klog.Infof("select test job, query: %s, orderBy: %v, limit: %d, offset: %d, cost (%v)",
				strQuery, orderBy, limit, offset, time.Since(startTime))
		}
	}()
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}

	builder := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TTestJob).
		Where(query).
		OrderBy(orderBy...).
		Offset(uint64(offset))
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var jobs []*TestJob
	ctx2, cancel := c.withRequestTimeout(ctx)
	defer cancel()
	err = db.SelectContext(ctx2, &jobs, sql, args...)
	return jobs, err
}

// CountTestJobs returns the total count of jobs matching the criteria.
func (c *Client) CountTestJobs(ctx context.Context, query sqrl.Sqlizer) (int, error) {
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}
	sql, args, err := sqrl.Select("COUNT(*)").PlaceholderFormat(sqrl.Dollar).From(TTestJob).Where(query).ToSql()
	if err != nil {
		return 0, err
	}
	var cnt int
	err = db.GetContext(ctx, &cnt, sql, args...)
	return cnt, err
}

// CountRunningJobsByLob counts the jobs currently running for a lob.
func (c *Client) CountRunningJobsByLob(ctx context.Context, lobId string) (int, error) {
	dbTags := GetTestJobFieldTags()
	return c.CountTestJobs(ctx, sqrl.And{
		sqrl.Eq{GetFieldTag(dbTags, "LobId"): lobId},
		sqrl.Eq{GetFieldTag(dbTags, "Status"): string(v1.JobRunning)},
	})
}

// CountRunningJobsByTeam counts the jobs currently running for a team.
func (c *Client) CountRunningJobsByTeam(ctx context.Context, lobId, teamId string) (int, error) {
	dbTags := GetTestJobFieldTags()
	return c.CountTestJobs(ctx, sqrl.And{
		sqrl.Eq{GetFieldTag(dbTags, "LobId"): lobId},
		sqrl.Eq{GetFieldTag(dbTags, "TeamId"): teamId},
		sqrl.Eq{GetFieldTag(dbTags, "Status"): string(v1.JobRunning)},
	})
}

// SelectRunningJobs returns all jobs still in the Running state, used by the
// tracker to reconcile against the cluster.
func (c *Client) SelectRunningJobs(ctx context.Context) ([]*TestJob, error) {
	dbTags := GetTestJobFieldTags()
	return c.SelectTestJobs(ctx,
		sqrl.Eq{GetFieldTag(dbTags, "Status"): string(v1.JobRunning)},
		[]string{StartTime + " " + ASC}, 0, 0)
}

// GetTestResults retrieves the per-test results of a completed job.
func (c *Client) GetTestResults(ctx context.Context, jobId string) ([]*TestResult, error) {
	if jobId == "" {
		return nil, commonerrors.NewBadRequest("jobId is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	sql, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TTestResult).
		Where(sqrl.Eq{"job_id": jobId}).
		OrderBy("test_name " + ASC).ToSql()
	if err != nil {
		return nil, err
	}
	var results []*TestResult
	ctx2, cancel := c.withRequestTimeout(ctx)
	defer cancel()
	if err = db.SelectContext(ctx2, &results, sql, args...); err != nil {
		klog.ErrorS(err, "failed to select test results", "id", jobId)
		return nil, err
	}
	return results, nil
}

// DeleteTestResultsBefore removes result rows whose parent job ended before
// the cutoff. Used by the retention worker.
func (c *Client) DeleteTestResultsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE job_id IN (SELECT job_id FROM %s WHERE end_time < $1)`,
		TTestResult, TTestJob)
	res, err := db.ExecContext(ctx, cmd, cutoff)
	if err != nil {
		klog.ErrorS(err, "failed to delete old test results", "cutoff", cutoff)
		return 0, err
	}
	return res.RowsAffected()
}

// ExpiredTestJobsQuery matches the terminal jobs that ended before the
// cutoff, the same rows DeleteTestJobsBefore removes. The retention worker
// prunes stored artifacts with this query before deleting the rows.
func ExpiredTestJobsQuery(cutoff time.Time) sqrl.Sqlizer {
	dbTags := GetTestJobFieldTags()
	return sqrl.And{
		sqrl.Lt{GetFieldTag(dbTags, "EndTime"): cutoff},
		sqrl.NotEq{GetFieldTag(dbTags, "Status"): string(v1.JobRunning)},
	}
}

// DeleteTestJobsBefore removes terminal job rows that ended before the cutoff.
func (c *Client) DeleteTestJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE end_time < $1 AND status <> $2`, TTestJob)
	res, err := db.ExecContext(ctx, cmd, cutoff, string(v1.JobRunning))
	if err != nil {
		klog.ErrorS(err, "failed to delete old test jobs", "cutoff", cutoff)
		return 0, err
	}
	return res.RowsAffected()
}
