/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gotest.tools/assert"
	testingclock "k8s.io/utils/clock/testing"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring/channel"
	"github.com/AMD-AIG-AIMA/testexec/pkg/monitoring/model"
	"github.com/AMD-AIG-AIMA/testexec/pkg/policy"
)

type stubPolicy struct {
	cfg *v1.AdminConfiguration
}

func (s *stubPolicy) GetAdminConfiguration(context.Context, bool) (*v1.AdminConfiguration, error) {
	return s.cfg, nil
}

func (s *stubPolicy) GetLobNamespacePrefix(context.Context) string {
	return policy.DefaultLobNamespacePrefix
}

func newStubPolicy(rules []v1.AlertRule, notifications v1.AlertNotifications) *stubPolicy {
	cfg := policy.DefaultAdminConfiguration()
	cfg.Alerts.Rules = rules
	cfg.Alerts.Notifications = notifications
	return &stubPolicy{cfg: cfg}
}

func TestViolatedOperators(t *testing.T) {
	cases := []struct {
		value, threshold float64
		operator         v1.AlertOperator
		want             bool
	}{
		{2.0, 1.0, v1.OperatorGreaterThan, true},
		{1.0, 1.0, v1.OperatorGreaterThan, false},
		{0.5, 1.0, v1.OperatorLessThan, true},
		{1.5, 1.0, v1.OperatorLessThan, false},
		{1.00001, 1.0, v1.OperatorEquals, true},
		{1.001, 1.0, v1.OperatorEquals, false},
		{1.0, 1.0, v1.AlertOperator("Unknown"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, violated(tc.value, tc.threshold, tc.operator), tc.want,
			"value=%v threshold=%v op=%s", tc.value, tc.threshold, tc.operator)
	}
}

func TestDimensionsMatch(t *testing.T) {
	assert.Assert(t, dimensionsMatch(nil, map[string]string{"LobId": "acme"}))
	assert.Assert(t, dimensionsMatch(map[string]string{"LobId": "acme"}, map[string]string{"LobId": "acme", "TeamId": "pay"}))
	assert.Assert(t, !dimensionsMatch(map[string]string{"LobId": "acme"}, map[string]string{"LobId": "other"}))
	assert.Assert(t, !dimensionsMatch(map[string]string{"LobId": "acme"}, nil))
}

func TestEvaluateMetricDispatchesWebhook(t *testing.T) {
	var deliveries []model.WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload model.WebhookPayload
		assert.NilError(t, json.NewDecoder(r.Body).Decode(&payload))
		deliveries = append(deliveries, payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rules := []v1.AlertRule{{
		Id:                "fail-rate",
		Name:              "high fail rate",
		Metric:            MetricTestExecutionFailRate,
		Threshold:         25,
		Operator:          v1.OperatorGreaterThan,
		TimeWindowMinutes: 30,
		Severity:          v1.SeverityCritical,
		Enabled:           true,
	}}
	notifications := v1.AlertNotifications{
		WebhookEnabled: true,
		WebhookUrls:    []string{server.URL},
	}

	webhook := &channel.WebhookChannel{}
	assert.NilError(t, webhook.Init(channel.Config{}))
	notifier := NewNotifierWithChannels(map[string]channel.Channel{model.ChannelWebhook: webhook})

	clk := testingclock.NewFakeClock(time.Now())
	evaluator := NewEvaluator(newStubPolicy(rules, notifications), notifier, clk)

	evaluator.EvaluateMetric(context.Background(), MetricTestExecutionFailRate, 40, map[string]string{"LobId": "acme"})
	assert.Equal(t, len(deliveries), 1)
	assert.Equal(t, deliveries[0].Severity, string(v1.SeverityCritical))

	// Value below the threshold does not fire.
	evaluator.EvaluateMetric(context.Background(), MetricTestExecutionFailRate, 10, map[string]string{"LobId": "other"})
	assert.Equal(t, len(deliveries), 1)
}

func TestEvaluateMetricCooldown(t *testing.T) {
	fired := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fired++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rules := []v1.AlertRule{{
		Id:                "fail-rate",
		Name:              "high fail rate",
		Metric:            MetricTestExecutionFailRate,
		Threshold:         25,
		Operator:          v1.OperatorGreaterThan,
		TimeWindowMinutes: 30,
		Severity:          v1.SeverityWarning,
		Enabled:           true,
	}}
	notifications := v1.AlertNotifications{WebhookEnabled: true, WebhookUrls: []string{server.URL}}

	webhook := &channel.WebhookChannel{}
	assert.NilError(t, webhook.Init(channel.Config{}))
	notifier := NewNotifierWithChannels(map[string]channel.Channel{model.ChannelWebhook: webhook})

	clk := testingclock.NewFakeClock(time.Now())
	evaluator := NewEvaluator(newStubPolicy(rules, notifications), notifier, clk)
	dims := map[string]string{"LobId": "acme"}

	evaluator.EvaluateMetric(context.Background(), MetricTestExecutionFailRate, 40, dims)
	assert.Equal(t, fired, 1)

	// Within half the window the same alert key is suppressed.
	clk.Step(10 * time.Minute)
	evaluator.EvaluateMetric(context.Background(), MetricTestExecutionFailRate, 50, dims)
	assert.Equal(t, fired, 1)

	// A different dimension set fires independently.
	evaluator.EvaluateMetric(context.Background(), MetricTestExecutionFailRate, 50, map[string]string{"LobId": "beta"})
	assert.Equal(t, fired, 2)

	// Past the cooldown the alert fires again.
	clk.Step(10 * time.Minute)
	evaluator.EvaluateMetric(context.Background(), MetricTestExecutionFailRate, 50, dims)
	assert.Equal(t, fired, 3)
}

func TestAlertKeyStable(t *testing.T) {
	a := alertKey("r1", map[string]string{"b": "2", "a": "1"})
	b := alertKey("r1", map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, a, b)
	assert.Equal(t, alertKey("r1", nil), "r1")
	assert.Assert(t, a != alertKey("r2", map[string]string{"a": "1", "b": "2"}))
}

func TestSeverityEnabled(t *testing.T) {
	assert.Assert(t, severityEnabled(v1.SeverityCritical, nil))
	assert.Assert(t, severityEnabled(v1.SeverityCritical, []v1.AlertSeverity{v1.SeverityCritical}))
	assert.Assert(t, !severityEnabled(v1.SeverityInformation, []v1.AlertSeverity{v1.SeverityCritical, v1.SeverityWarning}))
}
