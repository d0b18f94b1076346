/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
	"sigs.k8s.io/yaml"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	dbclient "github.com/AMD-AIG-AIMA/testexec/pkg/database/client"
	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring"
)

// ScheduledByUserId marks jobs fired by the engine rather than a person.
const ScheduledByUserId = "scheduler"

// Database is the slice of the relational client the engine depends on.
type Database interface {
	InsertSchedule(ctx context.Context, schedule *dbclient.TestJobSchedule) error
	UpdateSchedule(ctx context.Context, schedule *dbclient.TestJobSchedule) error
	GetSchedule(ctx context.Context, scheduleId string) (*dbclient.TestJobSchedule, error)
	SelectActiveSchedules(ctx context.Context) ([]*dbclient.TestJobSchedule, error)
	SelectSchedulesByTeam(ctx context.Context, lobId, teamId string) ([]*dbclient.TestJobSchedule, error)
	MarkScheduleRun(ctx context.Context, scheduleId string, runTime time.Time) error
	DeleteSchedule(ctx context.Context, scheduleId string) error
}

// Submitter feeds fired schedules into the same pipeline as user
// submissions.
type Submitter interface {
	SubmitScheduledJob(ctx context.Context, req *v1.JobRequest) error
}

// Engine owns the persistent schedules and fires the due ones on each tick.
type Engine struct {
	dbClient  Database
	submitter Submitter
	metrics   *monitoring.Metrics
	clock     clock.Clock
}

// NewEngine creates a schedule engine.
func NewEngine(dbClient Database, submitter Submitter, metrics *monitoring.Metrics, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Engine{
		dbClient:  dbClient,
		submitter: submitter,
		metrics:   metrics,
		clock:     clk,
	}
}

// CreateScheduleFromYaml validates and persists a schedule. Identity and
// tenancy come from the claims, never from the body; a new schedule is
// always armed.
func (e *Engine) CreateScheduleFromYaml(ctx context.Context, lobId, teamId string, body []byte) (*v1.TestJobSchedule, error) {
	s := &v1.TestJobSchedule{}
	if err := yaml.Unmarshal(body, s); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid schedule yaml: %v", err))
	}
	s.Id = uuid.NewString()
	s.LobId = lobId
	s.TeamId = teamId
	s.RunCount = 0
	s.IsActive = true
	s.CreatedAt = e.clock.Now().UTC()
	s.LastRunTime = nil
	if err := ValidateSchedule(s); err != nil {
		return nil, err
	}
	if err := e.dbClient.InsertSchedule(ctx, dbclient.ToScheduleRow(s)); err != nil {
		return nil, commonerrors.NewInternalError(fmt.Sprintf("failed to persist schedule: %v", err))
	}
	return s, nil
}

// UpdateScheduleFromYaml replaces the shape of an owned schedule. Identity
// and run bookkeeping survive the update.
func (e *Engine) UpdateScheduleFromYaml(ctx context.Context, lobId, teamId, scheduleId string, body []byte) (*v1.TestJobSchedule, error) {
	existing, err := e.getOwned(ctx, lobId, scheduleId)
	if err != nil {
		return nil, err
	}
	if existing.TeamId != teamId {
		return nil, commonerrors.NewNotFound(commonerrors.ScheduleKind, scheduleId)
	}

	s := &v1.TestJobSchedule{}
	if err = yaml.Unmarshal(body, s); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid schedule yaml: %v", err))
	}
	s.Id = existing.Id
	s.LobId = existing.LobId
	s.TeamId = existing.TeamId
	s.RunCount = existing.RunCount
	s.CreatedAt = existing.CreatedAt
	s.LastRunTime = existing.LastRunTime
	if err = ValidateSchedule(s); err != nil {
		return nil, err
	}
	if err = e.dbClient.UpdateSchedule(ctx, dbclient.ToScheduleRow(s)); err != nil {
		return nil, err
	}
	return s, nil
}

// GetSchedule returns an owned schedule.
func (e *Engine) GetSchedule(ctx context.Context, lobId, scheduleId string) (*v1.TestJobSchedule, error) {
	return e.getOwned(ctx, lobId, scheduleId)
}

// ListSchedules returns the team's schedules, newest first.
func (e *Engine) ListSchedules(ctx context.Context, lobId, teamId string) ([]*v1.TestJobSchedule, error) {
	rows, err := e.dbClient.SelectSchedulesByTeam(ctx, lobId, teamId)
	if err != nil {
		return nil, err
	}
	schedules := make([]*v1.TestJobSchedule, 0, len(rows))
	for _, row := range rows {
		schedules = append(schedules, dbclient.FromScheduleRow(row))
	}
	return schedules, nil
}

// DeleteSchedule removes an owned schedule.
func (e *Engine) DeleteSchedule(ctx context.Context, lobId, scheduleId string) error {
	if _, err := e.getOwned(ctx, lobId, scheduleId); err != nil {
		return err
	}
	return e.dbClient.DeleteSchedule(ctx, scheduleId)
}

// getOwned loads a schedule and hides it from other lobs.
func (e *Engine) getOwned(ctx context.Context, lobId, scheduleId string) (*v1.TestJobSchedule, error) {
	row, err := e.dbClient.GetSchedule(ctx, scheduleId)
	if err != nil {
		return nil, err
	}
	s := dbclient.FromScheduleRow(row)
	if s.LobId != lobId {
		return nil, commonerrors.NewNotFound(commonerrors.ScheduleKind, scheduleId)
	}
	return s, nil
}

// ProcessDueSchedules fires every due schedule at most once. A schedule
// that should have fired several times since the previous tick fires once;
// missed ticks collapse. Returns the number of schedules fired.
func (e *Engine) ProcessDueSchedules(ctx context.Context) (int, error) {
	rows, err := e.dbClient.SelectActiveSchedules(ctx)
	if err != nil {
		return 0, err
	}
	now := e.clock.Now().UTC()
	fired := 0
	for _, row := range rows {
		s := dbclient.FromScheduleRow(row)
		if !IsDue(s, now) {
			continue
		}
		req := &v1.JobRequest{
			RepoUrl:       s.RepoUrl,
			TestImageType: s.TestImageType,
			LobId:         s.LobId,
			TeamId:        s.TeamId,
			UserId:        ScheduledByUserId,
			ScheduleId:    s.Id,
		}
		if err = e.submitter.SubmitScheduledJob(ctx, req); err != nil {
			klog.ErrorS(err, "failed to submit scheduled job", "schedule", s.Id, "lob", s.LobId)
			continue
		}
		if err = e.dbClient.MarkScheduleRun(ctx, s.Id, now); err != nil {
			klog.ErrorS(err, "failed to mark schedule run", "schedule", s.Id)
			continue
		}
		e.metrics.SchedulesFired.Inc()
		fired++
		klog.Infof("fired schedule %s (%s) for lob %s team %s", s.Id, s.Name, s.LobId, s.TeamId)
	}
	return fired, nil
}

// IsDue evaluates whether a schedule should fire at the given UTC instant.
func IsDue(s *v1.TestJobSchedule, now time.Time) bool {
	if s == nil || !s.IsActive {
		return false
	}
	if s.MaxRuns > 0 && s.RunCount >= s.MaxRuns {
		return false
	}
	now = now.UTC()
	switch s.ScheduleType {
	case v1.ScheduleRunOnce:
		return s.LastRunTime == nil && s.ScheduledTime != nil && !now.Before(*s.ScheduledTime)
	case v1.ScheduleInterval:
		if s.IntervalMinutes <= 0 {
			return false
		}
		base := s.CreatedAt
		if s.LastRunTime != nil {
			base = *s.LastRunTime
		}
		return !now.Before(base.Add(time.Duration(s.IntervalMinutes) * time.Minute))
	case v1.ScheduleWeekly:
		return containsDay(s.DaysOfWeek, int(now.Weekday())) && dueToday(s, now)
	case v1.ScheduleMonthly:
		return containsDay(s.DaysOfMonth, now.Day()) && dueToday(s, now)
	default:
		return false
	}
}

// dueToday reports whether the time-of-day has elapsed and the schedule has
// not already fired for it today.
func dueToday(s *v1.TestJobSchedule, now time.Time) bool {
	target, ok := parseTimeOfDay(s.TimeOfDay)
	if !ok || minuteOfDay(now) < target {
		return false
	}
	if s.LastRunTime == nil {
		return true
	}
	last := s.LastRunTime.UTC()
	if last.Year() != now.Year() || last.YearDay() != now.YearDay() {
		return true
	}
	// Fired today already; only due again if the firing preceded the
	// configured time (the schedule was edited to a later slot).
	return minuteOfDay(last) < target
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// parseTimeOfDay parses "HH:MM" to minutes since midnight.
func parseTimeOfDay(value string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// ValidateSchedule enforces the per-type shape invariants.
func ValidateSchedule(s *v1.TestJobSchedule) error {
	if s.Name == "" {
		return commonerrors.NewBadRequest("name is required")
	}
	if s.RepoUrl == "" {
		return commonerrors.NewBadRequest("repoUrl is required")
	}
	if s.TestImageType == "" {
		return commonerrors.NewBadRequest("testImageType is required")
	}
	if s.MaxRuns < 0 {
		return commonerrors.NewBadRequest("maxRuns must not be negative")
	}
	switch s.ScheduleType {
	case v1.ScheduleRunOnce:
		if s.ScheduledTime == nil {
			return commonerrors.NewBadRequest("scheduledTime is required for RunOnce schedules")
		}
	case v1.ScheduleInterval:
		if s.IntervalMinutes <= 0 {
			return commonerrors.NewBadRequest("intervalMinutes must be positive for Interval schedules")
		}
	case v1.ScheduleWeekly:
		if len(s.DaysOfWeek) == 0 {
			return commonerrors.NewBadRequest("daysOfWeek is required for Weekly schedules")
		}
		for _, d := range s.DaysOfWeek {
			if d < 0 || d > 6 {
				return commonerrors.NewBadRequest(fmt.Sprintf("daysOfWeek entry %d is out of range 0..6", d))
			}
		}
		if _, ok := parseTimeOfDay(s.TimeOfDay); !ok {
			return commonerrors.NewBadRequest("timeOfDay must be HH:MM for Weekly schedules")
		}
	case v1.ScheduleMonthly:
		if len(s.DaysOfMonth) == 0 {
			return commonerrors.NewBadRequest("daysOfMonth is required for Monthly schedules")
		}
		for _, d := range s.DaysOfMonth {
			if d < 1 || d > 31 {
				return commonerrors.NewBadRequest(fmt.Sprintf("daysOfMonth entry %d is out of range 1..31", d))
			}
		}
		if _, ok := parseTimeOfDay(s.TimeOfDay); !ok {
			return commonerrors.NewBadRequest("timeOfDay must be HH:MM for Monthly schedules")
		}
	default:
		return commonerrors.NewBadRequest(fmt.Sprintf("unknown schedule type %q", s.ScheduleType))
	}
	return nil
}
