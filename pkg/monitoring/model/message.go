/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package model

import "time"

const (
	ChannelEmail   = "email"
	ChannelWebhook = "webhook"
)

type Message struct {
	Email   *EmailMessage
	Webhook *WebhookMessage
}

// GetChannels returns the list of channels for message delivery.
func (m Message) GetChannels() []string {
	channels := []string{}
	if m.Email != nil {
		channels = append(channels, ChannelEmail)
	}
	if m.Webhook != nil {
		channels = append(channels, ChannelWebhook)
	}
	return channels
}

type EmailMessage struct {
	To      []string
	Title   string
	Content string
}

// WebhookMessage is POSTed as JSON to each configured URL.
type WebhookMessage struct {
	Urls    []string
	Payload WebhookPayload
}

type WebhookPayload struct {
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Severity   string            `json:"severity"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
