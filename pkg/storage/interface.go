/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package storage

import (
	"context"
	"fmt"
)

// Interface is the artifact store used for test result files. Objects are
// laid out as {lob_id}/{team_id}/{job_id}/{file_name}.
type Interface interface {
	PutObject(ctx context.Context, key, value string, timeout int64) error
	GetObject(ctx context.Context, key string, timeout int64) (string, error)
	DeleteObject(ctx context.Context, key string, timeout int64) error
	ListKeys(ctx context.Context, prefix string, timeout int64) ([]string, error)
	DeletePrefix(ctx context.Context, prefix string, timeout int64) (int, error)
	GeneratePresignedURL(ctx context.Context, key string, expireHour int32) (string, error)
}

// ArtifactKey builds the canonical object key for a job artifact.
func ArtifactKey(lobId, teamId, jobId, fileName string) string {
	return fmt.Sprintf("%s/%s/%s/%s", lobId, teamId, jobId, fileName)
}

// JobPrefix builds the object prefix that covers every artifact of a job.
func JobPrefix(lobId, teamId, jobId string) string {
	return fmt.Sprintf("%s/%s/%s/", lobId, teamId, jobId)
}
