/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package v1

import (
	"time"
)

type (
	JobStatus    string
	TestStatus   string
	ScheduleType string
)

const (
	JobRunning   JobStatus = "Running"
	JobSucceeded JobStatus = "Succeeded"
	JobFailed    JobStatus = "Failed"

	TestPassed  TestStatus = "Passed"
	TestFailed  TestStatus = "Failed"
	TestSkipped TestStatus = "Skipped"
	TestUnknown TestStatus = "Unknown"

	ScheduleRunOnce  ScheduleType = "RunOnce"
	ScheduleInterval ScheduleType = "Interval"
	ScheduleWeekly   ScheduleType = "Weekly"
	ScheduleMonthly  ScheduleType = "Monthly"
)

// IsTerminal reports whether the job status is a terminal state.
func (s JobStatus) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// JobRequest is the validated request to run one repository's test suite.
// LobId, TeamId and UserId are server-derived from auth claims, never from
// the client body.
type JobRequest struct {
	RepoUrl        string `json:"repoUrl"`
	TestImageType  string `json:"testImageType"`
	LobId          string `json:"lobId"`
	TeamId         string `json:"teamId"`
	UserId         string `json:"userId"`
	ScheduleId     string `json:"scheduleId,omitempty"`
	TimeoutMinutes int    `json:"timeoutMinutes,omitempty"`
	Branch         string `json:"branch,omitempty"`
	TestFilter     string `json:"testFilter,omitempty"`
}

// Validate checks the request invariants shared by user submissions and
// schedule-driven submissions.
func (r *JobRequest) Validate() error {
	if r.RepoUrl == "" {
		return missingField("repoUrl")
	}
	if r.TestImageType == "" {
		return missingField("testImageType")
	}
	if r.LobId == "" {
		return missingField("lobId")
	}
	if r.TeamId == "" {
		return missingField("teamId")
	}
	return nil
}

type fieldError string

func (e fieldError) Error() string { return string(e) + " is required" }

func missingField(name string) error { return fieldError(name) }

// TestJobSchedule is a persistent rule that fires jobs on a time pattern.
type TestJobSchedule struct {
	Id            string       `json:"id,omitempty"`
	Name          string       `json:"name"`
	LobId         string       `json:"lobId,omitempty"`
	TeamId        string       `json:"teamId,omitempty"`
	RepoUrl       string       `json:"repoUrl"`
	TestImageType string       `json:"testImageType"`
	ScheduleType  ScheduleType `json:"scheduleType"`
	// IntervalMinutes is required for Interval schedules.
	IntervalMinutes int `json:"intervalMinutes,omitempty"`
	// DaysOfWeek holds weekdays 0 (Sunday) through 6; required for Weekly.
	DaysOfWeek []int `json:"daysOfWeek,omitempty"`
	// DaysOfMonth holds days 1 through 31; required for Monthly.
	DaysOfMonth []int `json:"daysOfMonth,omitempty"`
	// TimeOfDay is "HH:MM" in UTC; required for Weekly and Monthly.
	TimeOfDay string `json:"timeOfDay,omitempty"`
	// ScheduledTime is the UTC instant for RunOnce schedules.
	ScheduledTime *time.Time `json:"scheduledTime,omitempty"`
	MaxRuns       int        `json:"maxRuns,omitempty"`
	RunCount      int        `json:"runCount,omitempty"`
	IsActive      bool       `json:"isActive"`
	CreatedAt     time.Time  `json:"createdAt,omitempty"`
	LastRunTime   *time.Time `json:"lastRunTime,omitempty"`
}

type AlertOperator string

const (
	OperatorGreaterThan AlertOperator = "GreaterThan"
	OperatorLessThan    AlertOperator = "LessThan"
	OperatorEquals      AlertOperator = "Equals"
)

type AlertSeverity string

const (
	SeverityInformation AlertSeverity = "Information"
	SeverityWarning     AlertSeverity = "Warning"
	SeverityCritical    AlertSeverity = "Critical"
)

type AlertRule struct {
	Id                string            `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	Metric            string            `json:"metric"`
	Threshold         float64           `json:"threshold"`
	Operator          AlertOperator     `json:"operator"`
	TimeWindowMinutes int               `json:"timeWindowMinutes"`
	Severity          AlertSeverity     `json:"severity"`
	Enabled           bool              `json:"enabled"`
	// Dimensions must all be present and equal in an emitted metric's
	// dimensions for the rule to match.
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

type AlertNotifications struct {
	EmailEnabled bool `json:"emailEnabled"`
	// EmailSeverities lists severities that are delivered by email.
	EmailSeverities []AlertSeverity `json:"emailSeverities,omitempty"`
	EmailRecipients []string        `json:"emailRecipients,omitempty"`
	WebhookEnabled  bool            `json:"webhookEnabled"`
	WebhookUrls     []string        `json:"webhookUrls,omitempty"`
}

type ContainerLimits struct {
	CpuLimit      string `json:"cpuLimit"`
	MemoryLimit   string `json:"memoryLimit"`
	CpuRequest    string `json:"cpuRequest"`
	MemoryRequest string `json:"memoryRequest"`
}

type ResourceManagement struct {
	MaxConcurrentJobsPerLob  int             `json:"maxConcurrentJobsPerLob"`
	MaxConcurrentJobsPerTeam int             `json:"maxConcurrentJobsPerTeam"`
	DefaultJobTimeoutMinutes int             `json:"defaultJobTimeoutMinutes"`
	DefaultContainerLimits   ContainerLimits `json:"defaultContainerLimits"`
	AutoCleanupJobs          bool            `json:"autoCleanupJobs"`
	CleanupAfterHours        int             `json:"cleanupAfterHours"`
}

type RetentionPolicy struct {
	TestResultsRetentionDays int `json:"testResultsRetentionDays"`
	JobHistoryRetentionDays  int `json:"jobHistoryRetentionDays"`
	MaxTestResultFileSizeMb  int `json:"maxTestResultFileSizeMb"`
}

type ClusterSettings struct {
	SystemNamespace    string   `json:"systemNamespace"`
	LobNamespacePrefix string   `json:"lobNamespacePrefix"`
	NodePools          []string `json:"nodePools,omitempty"`
}

type RateLimits struct {
	RequestsPerMinute int `json:"requestsPerMinute,omitempty"`
}

type AlertSettings struct {
	Rules         []AlertRule        `json:"rules,omitempty"`
	Notifications AlertNotifications `json:"notifications"`
}

// AdminConfiguration is the singleton policy document that bounds all tenant
// behavior. It is persisted as a YAML blob; identity and timestamps are
// assigned by the store.
type AdminConfiguration struct {
	Id                 string             `json:"id,omitempty"`
	Name               string             `json:"name,omitempty"`
	ResourceManagement ResourceManagement `json:"resourceManagement"`
	Retention          RetentionPolicy    `json:"retention"`
	Cluster            ClusterSettings    `json:"cluster"`
	RateLimits         RateLimits         `json:"rateLimits"`
	Alerts             AlertSettings      `json:"alerts"`
	CreatedAt          time.Time          `json:"createdAt,omitempty"`
	UpdatedAt          time.Time          `json:"updatedAt,omitempty"`
}

// UserConfiguration carries per-user job-shape overrides bounded by the
// admin configuration.
type UserConfiguration struct {
	Id        string            `json:"id,omitempty"`
	Name      string            `json:"name,omitempty"`
	LobId     string            `json:"lobId,omitempty"`
	TeamId    string            `json:"teamId,omitempty"`
	UserId    string            `json:"userId,omitempty"`
	EnvVars   map[string]string `json:"envVars,omitempty"`
	Limits    ContainerLimits   `json:"limits,omitempty"`
	Schedule  *TestJobSchedule  `json:"schedule,omitempty"`
	CreatedAt time.Time         `json:"createdAt,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty"`
}

// TestResultMetadataMessage is published to the bus after a job completes,
// keyed by the job id.
type TestResultMetadataMessage struct {
	JobId           string    `json:"jobId"`
	LobId           string    `json:"lobId"`
	TeamId          string    `json:"teamId"`
	Status          JobStatus `json:"status"`
	TotalTests      int       `json:"totalTests"`
	TestsPassed     int       `json:"testsPassed"`
	TestsFailed     int       `json:"testsFailed"`
	TestsSkipped    int       `json:"testsSkipped"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationSeconds float64   `json:"durationSeconds"`
}
