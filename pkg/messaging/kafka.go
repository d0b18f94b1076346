/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"k8s.io/klog/v2"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	commonconfig "github.com/AMD-AIG-AIMA/testexec/pkg/config"
)

// Producer publishes messages to the result metadata topic.
type Producer interface {
	PublishTestResultMetadata(ctx context.Context, msg *v1.TestResultMetadataMessage) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer from the messaging settings.
func NewProducer() (Producer, error) {
	brokers := commonconfig.GetKafkaBootstrapServers()
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka bootstrap servers configured")
	}
	acks := kafka.RequireAll
	if commonconfig.IsKafkaAcksLocal() {
		acks = kafka.RequireOne
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        commonconfig.GetKafkaTestResultsTopic(),
		Balancer:     &kafka.Hash{},
		RequiredAcks: acks,
		WriteTimeout: time.Duration(commonconfig.GetKafkaWriteTimeoutSecond()) * time.Second,
	}
	klog.Infof("init kafka producer successfully! brokers: %v, topic: %s", brokers, writer.Topic)
	return &kafkaProducer{writer: writer}, nil
}

// PublishTestResultMetadata publishes one completion message keyed by the
// job id, so all messages of a job land on the same partition.
func (p *kafkaProducer) PublishTestResultMetadata(ctx context.Context, msg *v1.TestResultMetadataMessage) error {
	if msg == nil {
		return fmt.Errorf("the message is empty")
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal result metadata: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.JobId),
		Value: value,
	})
	if err != nil {
		klog.ErrorS(err, "failed to publish result metadata", "jobId", msg.JobId)
	}
	return err
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}
