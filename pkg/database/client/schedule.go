/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	dbutils "github.com/AMD-AIG-AIMA/testexec/pkg/database/utils"
	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
)

const (
	TSchedule = "test_job_schedule"
)

var (
	getScheduleCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE schedule_id = $1 LIMIT 1`, TSchedule)
	insertScheduleFormat = `INSERT INTO ` + TSchedule + ` (%s) VALUES (%s)`
	// markScheduleRunCmd advances the run counter atomically and deactivates
	// the schedule once max_runs is reached. max_runs <= 0 means unlimited.
	markScheduleRunCmd = fmt.Sprintf(`UPDATE %s
		SET run_count = run_count + 1,
		    last_run_time = $2,
		    is_active = CASE WHEN max_runs > 0 AND run_count + 1 >= max_runs THEN false ELSE is_active END
		WHERE schedule_id = $1`, TSchedule)
	updateScheduleCmd = fmt.Sprintf(`UPDATE %s
		SET name = :name,
		    repo_url = :repo_url,
		    test_image_type = :test_image_type,
		    schedule_type = :schedule_type,
		    interval_minutes = :interval_minutes,
		    days_of_week = :days_of_week,
		    days_of_month = :days_of_month,
		    time_of_day = :time_of_day,
		    scheduled_time = :scheduled_time,
		    max_runs = :max_runs,
		    is_active = :is_active
		WHERE schedule_id = :schedule_id`, TSchedule)
)

// InsertSchedule persists a new schedule.
func (c *Client) InsertSchedule(ctx context.Context, schedule *TestJobSchedule) error {
	if schedule == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.NamedExecContext(ctx, generateCommand(*schedule, insertScheduleFormat, "id"), schedule)
	if err != nil {
		klog.ErrorS(err, "failed to insert schedule db", "id", schedule.ScheduleId)
	}
	return err
}

// GetSchedule retrieves a schedule by ID.
func (c *Client) GetSchedule(ctx context.Context, scheduleId string) (*TestJobSchedule, error) {
	if scheduleId == "" {
		return nil, commonerrors.NewBadRequest("scheduleId is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var schedules []*TestJobSchedule
	if err = db.SelectContext(ctx, &schedules, getScheduleCmd, scheduleId); err != nil {
		klog.ErrorS(err, "failed to select schedule", "id", scheduleId)
		return nil, err
	}
	if len(schedules) == 0 {
		return nil, commonerrors.NewNotFound(commonerrors.ScheduleKind, scheduleId)
	}
	return schedules[0], nil
}

// UpdateSchedule replaces the shape columns of a schedule. Run bookkeeping
// is left alone; that belongs to MarkScheduleRun.
func (c *Client) UpdateSchedule(ctx context.Context, schedule *TestJobSchedule) error {
	if schedule == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	res, err := db.NamedExecContext(ctx, updateScheduleCmd, schedule)
	if err != nil {
		klog.ErrorS(err, "failed to update schedule db", "id", schedule.ScheduleId)
		return err
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return commonerrors.NewNotFound(commonerrors.ScheduleKind, schedule.ScheduleId)
	}
	return nil
}

// SelectSchedules retrieves multiple schedule records.
func (c *Client) SelectSchedules(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*TestJobSchedule, error) {
	startTime := time.Now().UTC()
	defer func() {
		if query != nil {
			strQuery := dbutils.CvtToSqlStr(query)
			klog.Infof("select schedule, query: %s, orderBy: %v, limit: %d, offset: %d, cost (%v)",
				strQuery, orderBy, limit, offset, time.Since(startTime))
		}
	}()
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}

	builder := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TSchedule).
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

	var schedules []*TestJobSchedule
	ctx2, cancel := c.withRequestTimeout(ctx)
	defer cancel()
	err = db.SelectContext(ctx2, &schedules, sql, args...)
	return schedules, err
}

// SelectActiveSchedules returns every active schedule, oldest first. The
// schedule engine scans these each tick.
func (c *Client) SelectActiveSchedules(ctx context.Context) ([]*TestJobSchedule, error) {
	dbTags := GetScheduleFieldTags()
	return c.SelectSchedules(ctx,
		sqrl.Eq{GetFieldTag(dbTags, "IsActive"): true},
		[]string{CreatedAt + " " + ASC}, 0, 0)
}

// SelectSchedulesByTeam returns a team's schedules, newest first.
func (c *Client) SelectSchedulesByTeam(ctx context.Context, lobId, teamId string) ([]*TestJobSchedule, error) {
	dbTags := GetScheduleFieldTags()
	return c.SelectSchedules(ctx, sqrl.And{
		sqrl.Eq{GetFieldTag(dbTags, "LobId"): lobId},
		sqrl.Eq{GetFieldTag(dbTags, "TeamId"): teamId},
	}, []string{CreatedAt + " " + DESC}, 0, 0)
}

// MarkScheduleRun advances the run counter after a schedule fires and
// deactivates the schedule once max_runs is reached.
func (c *Client) MarkScheduleRun(ctx context.Context, scheduleId string, runTime time.Time) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, markScheduleRunCmd, scheduleId, runTime)
	if err != nil {
		klog.ErrorS(err, "failed to mark schedule run db", "ScheduleId", scheduleId)
		return err
	}
	return nil
}

// SetScheduleActive flips the active flag of a schedule.
func (c *Client) SetScheduleActive(ctx context.Context, scheduleId string, active bool) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`UPDATE %s SET is_active=$2 WHERE schedule_id=$1`, TSchedule)
	_, err = db.ExecContext(ctx, cmd, scheduleId, active)
	if err != nil {
		klog.ErrorS(err, "failed to update schedule db", "ScheduleId", scheduleId)
		return err
	}
	return nil
}

// DeleteSchedule removes a schedule permanently.
func (c *Client) DeleteSchedule(ctx context.Context, scheduleId string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE schedule_id=$1`, TSchedule)
	res, err := db.ExecContext(ctx, cmd, scheduleId)
	if err != nil {
		klog.ErrorS(err, "failed to delete schedule db", "ScheduleId", scheduleId)
		return err
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return commonerrors.NewNotFound(commonerrors.ScheduleKind, scheduleId)
	}
	return nil
}
