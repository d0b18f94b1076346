/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package monitoring

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring/channel"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring/model"
)

// Notifier routes alert notifications to the configured channels according
// to the alert notification settings. Transport failures are logged, never
// surfaced to the caller's request path.
type Notifier struct {
	channels map[string]channel.Channel
}

// NewNotifier initializes a notifier from the system-wide notification
// settings.
func NewNotifier(ctx context.Context) (*Notifier, error) {
	conf := channel.ReadConfig()
	channels, err := channel.InitChannels(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Notifier{channels: channels}, nil
}

// NewNotifierWithChannels wraps explicit channels, used by tests.
func NewNotifierWithChannels(channels map[string]channel.Channel) *Notifier {
	return &Notifier{channels: channels}
}

// SendNotification delivers one alert notification. Email goes out when the
// settings enable it for the alert's severity; webhooks go out whenever
// enabled.
func (n *Notifier) SendNotification(ctx context.Context, title, message string,
	severity v1.AlertSeverity, dimensions map[string]string, settings *v1.AlertNotifications) {
	logAlert(title, message, severity, dimensions)
	if settings == nil {
		return
	}

	if settings.EmailEnabled && severityEnabled(severity, settings.EmailSeverities) && len(settings.EmailRecipients) > 0 {
		n.send(ctx, model.ChannelEmail, &model.Message{
			Email: &model.EmailMessage{
				To:      settings.EmailRecipients,
				Title:   title,
				Content: message,
			},
		})
	}
	if settings.WebhookEnabled && len(settings.WebhookUrls) > 0 {
		n.send(ctx, model.ChannelWebhook, &model.Message{
			Webhook: &model.WebhookMessage{
				Urls: settings.WebhookUrls,
				Payload: model.WebhookPayload{
					Title:      title,
					Message:    message,
					Severity:   string(severity),
					Dimensions: dimensions,
					Timestamp:  time.Now().UTC(),
				},
			},
		})
	}
}

func (n *Notifier) send(ctx context.Context, channelName string, msg *model.Message) {
	ch, exists := n.channels[channelName]
	if !exists {
		klog.Warningf("channel %s does not exist", channelName)
		return
	}
	if err := ch.Send(ctx, msg); err != nil {
		klog.Errorf("failed to send message to channel %s: %v", channelName, err)
	}
}

func severityEnabled(severity v1.AlertSeverity, enabled []v1.AlertSeverity) bool {
	// An empty list means every severity is delivered.
	if len(enabled) == 0 {
		return true
	}
	for _, s := range enabled {
		if s == severity {
			return true
		}
	}
	return false
}

func logAlert(title, message string, severity v1.AlertSeverity, dimensions map[string]string) {
	switch severity {
	case v1.SeverityCritical:
		klog.Errorf("ALERT [%s] %s: %s, dimensions: %v", severity, title, message, dimensions)
	case v1.SeverityWarning:
		klog.Warningf("ALERT [%s] %s: %s, dimensions: %v", severity, title, message, dimensions)
	default:
		klog.Infof("ALERT [%s] %s: %s, dimensions: %v", severity, title, message, dimensions)
	}
}
