/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"k8s.io/utils/pointer"

	commonconfig "github.com/AMD-AIG-AIMA/testexec/pkg/config"
)

type Config struct {
	aws.Config
	Bucket *string
}

// NewConfig creates an object storage configuration from the system-wide
// storage settings.
func NewConfig() (*Config, error) {
	if !commonconfig.IsStorageEnabled() {
		return nil, fmt.Errorf("storage is disabled")
	}
	return NewConfigFromCredentials(
		commonconfig.GetStorageAccessKey(),
		commonconfig.GetStorageSecretKey(),
		commonconfig.GetStorageEndpoint(),
		commonconfig.GetStorageRegion(),
		commonconfig.GetStorageBucket())
}

// NewConfigFromCredentials creates an object storage configuration from
// explicit credentials and endpoint.
func NewConfigFromCredentials(ak, sk, endpoint, region, bucket string) (*Config, error) {
	if ak == "" {
		return nil, fmt.Errorf("the storage AccessKey is empty")
	}
	if sk == "" {
		return nil, fmt.Errorf("the storage SecretKey is empty")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("the storage endpoint is empty")
	}
	if bucket == "" {
		return nil, fmt.Errorf("the storage bucket is empty")
	}

	credProvider := credentials.NewStaticCredentialsProvider(ak, sk, "")

	// Self-hosted object stores commonly run with self-signed certificates.
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		},
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credProvider),
		config.WithHTTPClient(httpClient),
		config.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: endpoint,
				}, nil
			}),
		),
	)
	if err != nil {
		return nil, err
	}
	return &Config{
		Config: cfg,
		Bucket: pointer.String(bucket),
	}, nil
}
