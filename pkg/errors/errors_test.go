/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"fmt"
	"net/http"
	"testing"

	"gotest.tools/assert"
)

func TestErrorCodes(t *testing.T) {
	err := NewBadRequest("repoUrl is empty")
	assert.Equal(t, IsBadRequest(err), true)
	assert.Equal(t, IsNotFound(err), false)
	assert.Equal(t, int(err.Status().Code), http.StatusBadRequest)
	assert.Equal(t, GetErrorCode(err), BadRequest)

	err = NewQuotaExceeded("too many running jobs")
	assert.Equal(t, IsQuotaExceeded(err), true)
	assert.Equal(t, int(err.Status().Code), http.StatusTooManyRequests)

	err = NewClusterUnavailable("apiserver unreachable")
	assert.Equal(t, IsClusterUnavailable(err), true)
	assert.Equal(t, int(err.Status().Code), http.StatusServiceUnavailable)
}

func TestNotFoundKinds(t *testing.T) {
	err := NewNotFound(JobKind, "job-1")
	assert.Equal(t, IsNotFound(err), true)
	assert.Equal(t, GetErrorCode(err), JobNotFound)

	err = NewNotFound(ScheduleKind, "sched-1")
	assert.Equal(t, GetErrorCode(err), ScheduleNotFound)

	err = NewNotFound(ConfigKind, "cfg-1")
	assert.Equal(t, GetErrorCode(err), ConfigNotFound)

	err = NewNotFound("Other", "x")
	assert.Equal(t, GetErrorCode(err), NotFound)
}

func TestIgnoreNotFound(t *testing.T) {
	assert.Assert(t, IgnoreNotFound(nil) == nil)
	assert.Assert(t, IgnoreNotFound(NewNotFound(JobKind, "j")) == nil)
	internal := NewInternalError("boom")
	assert.Assert(t, IgnoreNotFound(internal) == internal)
}

func TestIsTestExec(t *testing.T) {
	assert.Equal(t, IsTestExec(nil), false)
	assert.Equal(t, IsTestExec(fmt.Errorf("plain")), false)
	assert.Equal(t, IsTestExec(NewUnauthorized("no claims")), true)
	assert.Equal(t, GetErrorCode(fmt.Errorf("plain")), "")
}
