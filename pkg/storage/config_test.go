/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package storage

import (
	"testing"

	"gotest.tools/assert"
)

func TestArtifactKeyLayout(t *testing.T) {
	key := ArtifactKey("acme", "pay", "job-1", "test-results.xml")
	assert.Equal(t, key, "acme/pay/job-1/test-results.xml")

	prefix := JobPrefix("acme", "pay", "job-1")
	assert.Equal(t, prefix, "acme/pay/job-1/")
}

func TestNewConfigFromCredentialsValidation(t *testing.T) {
	tests := []struct {
		name                        string
		ak, sk, endpoint, region, b string
		wantErr                     bool
	}{
		{
			name: "valid", ak: "ak", sk: "sk",
			endpoint: "http://localhost:9000", region: "us-east-1", b: "test-results",
			wantErr: false,
		},
		{name: "missing access key", sk: "sk", endpoint: "http://localhost:9000", b: "test-results", wantErr: true},
		{name: "missing secret key", ak: "ak", endpoint: "http://localhost:9000", b: "test-results", wantErr: true},
		{name: "missing endpoint", ak: "ak", sk: "sk", b: "test-results", wantErr: true},
		{name: "missing bucket", ak: "ak", sk: "sk", endpoint: "http://localhost:9000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewConfigFromCredentials(tt.ak, tt.sk, tt.endpoint, tt.region, tt.b)
			if tt.wantErr {
				assert.Assert(t, err != nil, "expected error but got none")
				return
			}
			assert.NilError(t, err)
			assert.Equal(t, *cfg.Bucket, tt.b)
		})
	}
}
