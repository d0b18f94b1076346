/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gotest.tools/assert"

	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring/model"
)

func TestWebhookChannel_Send(t *testing.T) {
	var received model.WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.Header.Get("Content-Type"), "application/json")
		assert.NilError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	webhook := &WebhookChannel{}
	assert.NilError(t, webhook.Init(Config{}))

	msg := &model.Message{
		Webhook: &model.WebhookMessage{
			Urls: []string{server.URL},
			Payload: model.WebhookPayload{
				Title:      "ALERT: high fail rate",
				Message:    "fail rate 0.40 exceeded threshold 0.25",
				Severity:   "Critical",
				Dimensions: map[string]string{"LobId": "acme"},
				Timestamp:  time.Now().UTC(),
			},
		},
	}
	assert.NilError(t, webhook.Send(context.Background(), msg))
	assert.Equal(t, received.Severity, "Critical")
	assert.Equal(t, received.Dimensions["LobId"], "acme")
}

func TestWebhookChannel_SendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	webhook := &WebhookChannel{}
	assert.NilError(t, webhook.Init(Config{}))

	msg := &model.Message{
		Webhook: &model.WebhookMessage{
			Urls:    []string{server.URL},
			Payload: model.WebhookPayload{Title: "t"},
		},
	}
	err := webhook.Send(context.Background(), msg)
	assert.Assert(t, err != nil)
}
