/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package monitoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
)

// PolicySource is the slice of the policy store the monitoring components
// depend on.
type PolicySource interface {
	GetAdminConfiguration(ctx context.Context, useCache bool) (*v1.AdminConfiguration, error)
	GetLobNamespacePrefix(ctx context.Context) string
}

const (
	// equalityTolerance is used for the Equals operator.
	equalityTolerance = 1e-4

	recentAlertRetention = 24 * time.Hour
)

// Metric names emitted by the platform. Duration is in seconds and FailRate
// is a percentage from 0 to 100; alert rule thresholds compare on the same
// scale.
const (
	MetricTestExecutionDuration = "TestExecution.Duration"
	MetricTestExecutionFailRate = "TestExecution.FailRate"
	MetricTestExecutionFailed   = "TestExecution.Failed"
	MetricClusterLoad           = "Cluster.Load"
	MetricClusterRunningPods    = "Cluster.RunningPods"
	MetricClusterPendingPods    = "Cluster.PendingPods"
	MetricClusterFailedPods     = "Cluster.FailedPods"
	MetricClusterReadyNodes     = "Cluster.ReadyNodes"
)

// Evaluator matches emitted metrics against the admin alert rules and
// dispatches notifications, deduplicating alert storms per rule and
// dimension set.
type Evaluator struct {
	policyStore PolicySource
	notifier    *Notifier
	clock       clock.Clock

	mu           sync.Mutex
	recentAlerts map[string]time.Time
	lastPrune    time.Time
}

// NewEvaluator creates an alert evaluator over the policy store.
func NewEvaluator(policyStore PolicySource, notifier *Notifier, clk clock.Clock) *Evaluator {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Evaluator{
		policyStore:  policyStore,
		notifier:     notifier,
		clock:        clk,
		recentAlerts: make(map[string]time.Time),
		lastPrune:    clk.Now(),
	}
}

// EvaluateMetric tests one emitted metric value against every enabled rule
// for that metric. Rule dimensions, when declared, must all be present and
// equal in the emitted dimensions.
func (e *Evaluator) EvaluateMetric(ctx context.Context, name string, value float64, dimensions map[string]string) {
	cfg, err := e.policyStore.GetAdminConfiguration(ctx, true)
	if err != nil {
		klog.ErrorS(err, "failed to load alert rules, skipping evaluation", "metric", name)
		return
	}
	for i := range cfg.Alerts.Rules {
		rule := &cfg.Alerts.Rules[i]
		if !rule.Enabled || rule.Metric != name {
			continue
		}
		if !dimensionsMatch(rule.Dimensions, dimensions) {
			continue
		}
		if !violated(value, rule.Threshold, rule.Operator) {
			continue
		}
		if e.suppressed(rule, dimensions) {
			continue
		}
		title := fmt.Sprintf("ALERT: %s", rule.Name)
		message := fmt.Sprintf("metric %s value %.4f violated threshold %.4f (%s)",
			name, value, rule.Threshold, rule.Operator)
		e.notifier.SendNotification(ctx, title, message, rule.Severity, dimensions, &cfg.Alerts.Notifications)
	}
}

// dimensionsMatch reports whether every declared rule dimension is present
// and equal in the emitted dimensions.
func dimensionsMatch(ruleDims, emitted map[string]string) bool {
	for key, want := range ruleDims {
		if got, ok := emitted[key]; !ok || got != want {
			return false
		}
	}
	return true
}

func violated(value, threshold float64, operator v1.AlertOperator) bool {
	switch operator {
	case v1.OperatorGreaterThan:
		return value > threshold
	case v1.OperatorLessThan:
		return value < threshold
	case v1.OperatorEquals:
		return math.Abs(value-threshold) < equalityTolerance
	default:
		return false
	}
}

// suppressed records the alert and reports whether an alert with the same
// key fired within half the rule's time window. Old entries are pruned on
// the way through.
func (e *Evaluator) suppressed(rule *v1.AlertRule, dimensions map[string]string) bool {
	key := alertKey(rule.Id, dimensions)
	cooldown := time.Duration(rule.TimeWindowMinutes) * time.Minute / 2
	now := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if now.Sub(e.lastPrune) > time.Hour {
		for k, at := range e.recentAlerts {
			if now.Sub(at) > recentAlertRetention {
				delete(e.recentAlerts, k)
			}
		}
		e.lastPrune = now
	}

	if at, ok := e.recentAlerts[key]; ok && now.Sub(at) < cooldown {
		return true
	}
	e.recentAlerts[key] = now
	return false
}

// alertKey composes a stable dedup key from the rule id and the sorted
// dimension pairs.
func alertKey(ruleId string, dimensions map[string]string) string {
	if len(dimensions) == 0 {
		return ruleId
	}
	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(ruleId)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(dimensions[k])
	}
	return b.String()
}
