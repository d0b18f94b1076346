/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonconfig "github.com/AMD-AIG-AIMA/testexec/pkg/config"
)

func TestNewProducerWithoutBrokers(t *testing.T) {
	commonconfig.SetValue("messaging.kafka.bootstrap_servers", []string{})
	_, err := NewProducer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no kafka bootstrap servers")
}

func TestNewProducer(t *testing.T) {
	commonconfig.SetValue("messaging.kafka.bootstrap_servers", []string{"localhost:9092"})
	commonconfig.SetValue("messaging.kafka.test_results_topic", "test-results-metadata")

	producer, err := NewProducer()
	require.NoError(t, err)
	defer producer.Close()

	// A nil message is rejected before anything touches the wire.
	err = producer.PublishTestResultMetadata(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}
