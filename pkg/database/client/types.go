/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	dbutils "github.com/AMD-AIG-AIMA/testexec/pkg/database/utils"
)

const (
	DESC = "desc"
	ASC  = "asc"

	CreatedAt = "created_at"
	StartTime = "start_time"
	EndTime   = "end_time"
)

type TestJob struct {
	Id             int64          `db:"id"`
	JobId          string         `db:"job_id"`
	LobId          string         `db:"lob_id"`
	TeamId         string         `db:"team_id"`
	RepoUrl        string         `db:"repo_url"`
	TestImageType  string         `db:"test_image_type"`
	// ClusterJobName maps the record to its workload in the cluster.
	ClusterJobName sql.NullString `db:"cluster_job_name"`
	Status         string         `db:"status"`
	StartTime      pq.NullTime    `db:"start_time"`
	EndTime        pq.NullTime    `db:"end_time"`
	TestsPassed    int            `db:"tests_passed"`
	TestsFailed    int            `db:"tests_failed"`
	TestsSkipped   int            `db:"tests_skipped"`
	CreatedBy      sql.NullString `db:"created_by"`
	ScheduleId     sql.NullString `db:"schedule_id"`
}

// GetTestJobFieldTags returns the TestJobFieldTags value.
func GetTestJobFieldTags() map[string]string {
	j := TestJob{}
	return getFieldTags(j)
}

type TestResult struct {
	Id              int64          `db:"id"`
	ResultId        string         `db:"result_id"`
	JobId           string         `db:"job_id"`
	TestName        string         `db:"test_name"`
	Status          string         `db:"status"`
	DurationSeconds float64        `db:"duration_seconds"`
	ErrorMessage    sql.NullString `db:"error_message"`
	StackTrace      sql.NullString `db:"stack_trace"`
}

// GetTestResultFieldTags returns the TestResultFieldTags value.
func GetTestResultFieldTags() map[string]string {
	r := TestResult{}
	return getFieldTags(r)
}

type TestJobSchedule struct {
	Id              int64          `db:"id"`
	ScheduleId      string         `db:"schedule_id"`
	Name            string         `db:"name"`
	LobId           string         `db:"lob_id"`
	TeamId          string         `db:"team_id"`
	RepoUrl         string         `db:"repo_url"`
	TestImageType   string         `db:"test_image_type"`
	ScheduleType    string         `db:"schedule_type"`
	IntervalMinutes int            `db:"interval_minutes"`
	DaysOfWeek      sql.NullString `db:"days_of_week"`
	DaysOfMonth     sql.NullString `db:"days_of_month"`
	TimeOfDay       sql.NullString `db:"time_of_day"`
	ScheduledTime   pq.NullTime    `db:"scheduled_time"`
	MaxRuns         int            `db:"max_runs"`
	RunCount        int            `db:"run_count"`
	IsActive        bool           `db:"is_active"`
	CreatedAt       pq.NullTime    `db:"created_at"`
	LastRunTime     pq.NullTime    `db:"last_run_time"`
}

// GetScheduleFieldTags returns the ScheduleFieldTags value.
func GetScheduleFieldTags() map[string]string {
	s := TestJobSchedule{}
	return getFieldTags(s)
}

type AdminConfiguration struct {
	Id         int64       `db:"id"`
	ConfigId   string      `db:"config_id"`
	Name       string      `db:"name"`
	ConfigYaml string      `db:"config_yaml"`
	CreatedAt  pq.NullTime `db:"created_at"`
	UpdatedAt  pq.NullTime `db:"updated_at"`
}

// GetAdminConfigurationFieldTags returns the AdminConfigurationFieldTags value.
func GetAdminConfigurationFieldTags() map[string]string {
	cfg := AdminConfiguration{}
	return getFieldTags(cfg)
}

type UserConfiguration struct {
	Id         int64       `db:"id"`
	ConfigId   string      `db:"config_id"`
	Name       string      `db:"name"`
	LobId      string      `db:"lob_id"`
	TeamId     string      `db:"team_id"`
	UserId     string      `db:"user_id"`
	ConfigYaml string      `db:"config_yaml"`
	CreatedAt  pq.NullTime `db:"created_at"`
	UpdatedAt  pq.NullTime `db:"updated_at"`
}

// GetUserConfigurationFieldTags returns the UserConfigurationFieldTags value.
func GetUserConfigurationFieldTags() map[string]string {
	cfg := UserConfiguration{}
	return getFieldTags(cfg)
}

// getFieldTags retrieves FieldTags for internal use.
func getFieldTags(obj interface{}) map[string]string {
	result := make(map[string]string)
	t := reflect.TypeOf(obj)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		result[strings.ToLower(field.Name)] = field.Tag.Get("db")
	}
	return result
}

// generateCommand generates SQL command string using reflection
// Iterates through struct fields and builds column and value lists
// Skips fields with specified ignoreTag
// Returns formatted SQL command with columns and values
func generateCommand(obj interface{}, format, ignoreTag string) string {
	t := reflect.TypeOf(obj)
	columns := make([]string, 0, t.NumField())
	values := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("db")
		if tag == ignoreTag {
			continue
		}
		columns = append(columns, tag)
		values = append(values, fmt.Sprintf(":%s", tag))
	}
	cmd := fmt.Sprintf(format, strings.Join(columns, ", "), strings.Join(values, ", "))
	return cmd
}

// GetFieldTag returns the FieldTag value.
func GetFieldTag(tags map[string]string, name string) string {
	name = strings.ToLower(name)
	return tags[name]
}

// JoinDays serializes a day set to its comma-separated column form.
// The set is deduplicated and sorted so the column round-trips stably.
func JoinDays(days []int) string {
	if len(days) == 0 {
		return ""
	}
	seen := make(map[int]bool, len(days))
	uniq := make([]int, 0, len(days))
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			uniq = append(uniq, d)
		}
	}
	sort.Ints(uniq)
	parts := make([]string, 0, len(uniq))
	for _, d := range uniq {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

// ParseDays parses the comma-separated day column back to a day set.
// Blank and malformed entries are skipped.
func ParseDays(value string) []int {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var days []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	return days
}

// ToScheduleRow converts the API schedule to its row form.
func ToScheduleRow(s *v1.TestJobSchedule) *TestJobSchedule {
	return &TestJobSchedule{
		ScheduleId:      s.Id,
		Name:            s.Name,
		LobId:           s.LobId,
		TeamId:          s.TeamId,
		RepoUrl:         s.RepoUrl,
		TestImageType:   s.TestImageType,
		ScheduleType:    string(s.ScheduleType),
		IntervalMinutes: s.IntervalMinutes,
		DaysOfWeek:      dbutils.NullString(JoinDays(s.DaysOfWeek)),
		DaysOfMonth:     dbutils.NullString(JoinDays(s.DaysOfMonth)),
		TimeOfDay:       dbutils.NullString(s.TimeOfDay),
		ScheduledTime:   dbutils.NullTimePtr(s.ScheduledTime),
		MaxRuns:         s.MaxRuns,
		RunCount:        s.RunCount,
		IsActive:        s.IsActive,
		CreatedAt:       dbutils.NullTime(s.CreatedAt),
		LastRunTime:     dbutils.NullTimePtr(s.LastRunTime),
	}
}

// FromScheduleRow converts a schedule row back to its API form.
func FromScheduleRow(row *TestJobSchedule) *v1.TestJobSchedule {
	return &v1.TestJobSchedule{
		Id:              row.ScheduleId,
		Name:            row.Name,
		LobId:           row.LobId,
		TeamId:          row.TeamId,
		RepoUrl:         row.RepoUrl,
		TestImageType:   row.TestImageType,
		ScheduleType:    v1.ScheduleType(row.ScheduleType),
		IntervalMinutes: row.IntervalMinutes,
		DaysOfWeek:      ParseDays(dbutils.ParseNullString(row.DaysOfWeek)),
		DaysOfMonth:     ParseDays(dbutils.ParseNullString(row.DaysOfMonth)),
		TimeOfDay:       dbutils.ParseNullString(row.TimeOfDay),
		ScheduledTime:   dbutils.ParseNullTimePtr(row.ScheduledTime),
		MaxRuns:         row.MaxRuns,
		RunCount:        row.RunCount,
		IsActive:        row.IsActive,
		CreatedAt:       dbutils.ParseNullTime(row.CreatedAt),
		LastRunTime:     dbutils.ParseNullTimePtr(row.LastRunTime),
	}
}
