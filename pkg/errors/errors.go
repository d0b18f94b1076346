/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"fmt"
	"net/http"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const TestExecPrefix = "TestExec."

/*
   5-digit Error Code Convention: [xx][yyy]
   [xx] Business ID (00–99), used to distinguish errors from different business interfaces.
   00: General errors
   01: Job-related errors
   02: Schedule-related errors
   03: Configuration-related errors
   [yyy] Error code range (000–999)
*/

// public: 00xxx
const (
	InternalError         = TestExecPrefix + "00001"
	BadRequest            = TestExecPrefix + "00002"
	Forbidden             = TestExecPrefix + "00003"
	AlreadyExist          = TestExecPrefix + "00004"
	NotFound              = TestExecPrefix + "00005"
	RequestEntityTooLarge = TestExecPrefix + "00006"
	QuotaExceeded         = TestExecPrefix + "00007"
	Unauthorized          = TestExecPrefix + "00008"
	ClusterUnavailable    = TestExecPrefix + "00009"
)

// job: 01xxx
const (
	JobNotFound = TestExecPrefix + "01001"
)

// schedule: 02xxx
const (
	ScheduleNotFound = TestExecPrefix + "02001"
)

// configuration: 03xxx
const (
	ConfigNotFound = TestExecPrefix + "03001"
)

// kinds used in not-found details
const (
	JobKind      = "TestJob"
	ScheduleKind = "TestJobSchedule"
	ConfigKind   = "Configuration"
)

// IsTestExec returns true if the specified error carries a testexec reason code.
func IsTestExec(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(string(apierrors.ReasonForError(err)), TestExecPrefix)
}

func IsBadRequest(err error) bool {
	return apierrors.ReasonForError(err) == BadRequest
}

func IsInternal(err error) bool {
	return apierrors.ReasonForError(err) == InternalError
}

func IsAlreadyExist(err error) bool {
	return apierrors.ReasonForError(err) == AlreadyExist
}

func IsQuotaExceeded(err error) bool {
	return apierrors.ReasonForError(err) == QuotaExceeded
}

func IsUnauthorized(err error) bool {
	return apierrors.ReasonForError(err) == Unauthorized
}

func IsForbidden(err error) bool {
	return apierrors.ReasonForError(err) == Forbidden
}

func IsClusterUnavailable(err error) bool {
	return apierrors.ReasonForError(err) == ClusterUnavailable
}

func IsNotFound(err error) bool {
	reason := apierrors.ReasonForError(err)
	if reason == NotFound || reason == JobNotFound ||
		reason == ScheduleNotFound || reason == ConfigNotFound {
		return true
	}
	return apierrors.IsNotFound(err)
}

// IgnoreNotFound drops not-found errors so callers can treat them as success.
func IgnoreNotFound(err error) error {
	if err == nil || IsNotFound(err) {
		return nil
	}
	return err
}

func GetErrorCode(err error) string {
	if err == nil || !IsTestExec(err) {
		return ""
	}
	return string(apierrors.ReasonForError(err))
}

func NewBadRequest(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusBadRequest,
		Reason:  BadRequest,
		Message: fmt.Sprintf("Bad request. %s", message),
	}}
}

func NewInternalError(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusInternalServerError,
		Reason:  InternalError,
		Message: fmt.Sprintf("Internal error. %s", message),
	}}
}

func NewAlreadyExist(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusConflict,
		Reason:  AlreadyExist,
		Message: message,
	}}
}

func NewForbidden(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusForbidden,
		Reason:  Forbidden,
		Message: message,
	}}
}

func NotFoundErrorCode(kind string) metav1.StatusReason {
	switch kind {
	case JobKind:
		return JobNotFound
	case ScheduleKind:
		return ScheduleNotFound
	case ConfigKind:
		return ConfigNotFound
	default:
		return NotFound
	}
}

func NewNotFound(kind, name string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status: metav1.StatusFailure,
		Code:   http.StatusNotFound,
		Reason: NotFoundErrorCode(kind),
		Details: &metav1.StatusDetails{
			Kind: kind,
			Name: name,
		},
		Message: fmt.Sprintf("%s %s not found.", kind, name),
	}}
}

func NewNotFoundWithMessage(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusNotFound,
		Reason:  NotFound,
		Message: message,
	}}
}

func NewRequestEntityTooLargeError(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusRequestEntityTooLarge,
		Reason:  RequestEntityTooLarge,
		Message: fmt.Sprintf("Request entity is too large: %s", message),
	}}
}

func NewQuotaExceeded(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusTooManyRequests,
		Reason:  QuotaExceeded,
		Message: message,
	}}
}

func NewUnauthorized(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusUnauthorized,
		Reason:  Unauthorized,
		Message: message,
	}}
}

func NewClusterUnavailable(message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    http.StatusServiceUnavailable,
		Reason:  ClusterUnavailable,
		Message: message,
	}}
}
