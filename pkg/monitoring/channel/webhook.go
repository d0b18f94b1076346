/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"k8s.io/klog/v2"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring/model"
)

const webhookTimeout = 10 * time.Second

type WebhookChannel struct {
	httpClient *http.Client
}

// Name returns the channel name.
func (w *WebhookChannel) Name() string {
	return model.ChannelWebhook
}

// Init initializes the notification channel.
func (w *WebhookChannel) Init(_ Config) error {
	w.httpClient = &http.Client{Timeout: webhookTimeout}
	return nil
}

// Send POSTs the JSON payload to each configured URL. A failing URL does not
// block delivery to the others.
func (w *WebhookChannel) Send(ctx context.Context, message *model.Message) error {
	if w.httpClient == nil {
		return fmt.Errorf("webhook channel not initialized")
	}
	if message == nil || message.Webhook == nil {
		return fmt.Errorf("message is nil")
	}
	if len(message.Webhook.Urls) == 0 {
		return fmt.Errorf("no webhook urls provided")
	}

	body, err := json.Marshal(message.Webhook.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	var errs []error
	for _, url := range message.Webhook.Urls {
		if err := w.post(ctx, url, body); err != nil {
			klog.ErrorS(err, "failed to post webhook", "url", url)
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

func (w *WebhookChannel) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
