/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"k8s.io/klog/v2"
	"k8s.io/utils/pointer"
)

const (
	DefaultTimeout = 180
)

type Option struct {
	// ExpireDay configures a bucket lifecycle rule that expires artifacts
	// after the given number of days. Zero disables the rule.
	ExpireDay int32
}

// Client wraps the S3 API for artifact storage.
type Client struct {
	*Config
	opt      Option
	s3Client *s3.Client
}

// NewClient creates an artifact store client from the system-wide storage
// settings.
func NewClient(ctx context.Context, opt Option) (Interface, error) {
	config, err := NewConfig()
	if err != nil {
		return nil, err
	}
	return NewClientFromConfig(ctx, config, opt)
}

// NewClientFromConfig creates an artifact store client from an explicit
// configuration.
func NewClientFromConfig(ctx context.Context, config *Config, opt Option) (Interface, error) {
	s3Client := s3.NewFromConfig(config.Config, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	cli := &Client{
		Config:   config,
		opt:      opt,
		s3Client: s3Client,
	}
	if err := cli.checkBucketExisted(ctx); err != nil {
		return nil, err
	}
	if err := cli.setLifecycleRule(ctx); err != nil {
		return nil, err
	}
	klog.Infof("init storage client successfully! bucket: %s", *config.Bucket)
	return cli, nil
}

// checkBucketExisted checks BucketExisted and returns the result.
func (c *Client) checkBucketExisted(ctx context.Context) error {
	input := &s3.HeadBucketInput{
		Bucket: c.Bucket,
	}
	timeoutCtx, cancel := WithOptionalTimeout(ctx, DefaultTimeout)
	defer cancel()

	if _, err := c.s3Client.HeadBucket(timeoutCtx, input); err != nil {
		return err
	}
	return nil
}

// setLifecycleRule set bucket lifecycle rules.
func (c *Client) setLifecycleRule(ctx context.Context) error {
	if c.opt.ExpireDay <= 0 {
		return nil
	}
	input := &s3.PutBucketLifecycleConfigurationInput{
		Bucket: c.Bucket,
		LifecycleConfiguration: &types.BucketLifecycleConfiguration{
			Rules: []types.LifecycleRule{
				{
					ID:     aws.String(fmt.Sprintf("expire-after-%d-day", c.opt.ExpireDay)),
					Status: types.ExpirationStatusEnabled,
					Expiration: &types.LifecycleExpiration{
						Days: pointer.Int32(c.opt.ExpireDay),
					},
				},
			},
		},
	}
	timeoutCtx, cancel := WithOptionalTimeout(ctx, DefaultTimeout)
	defer cancel()
	_, err := c.s3Client.PutBucketLifecycleConfiguration(timeoutCtx, input)
	return err
}

// PutObject uploads an artifact.
func (c *Client) PutObject(ctx context.Context, key, value string, timeout int64) error {
	if c == nil {
		return fmt.Errorf("please init client first")
	}
	if key == "" || value == "" {
		return fmt.Errorf("the object key or value is empty")
	}
	input := &s3.PutObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
		Body:   bytes.NewReader([]byte(value)),
	}
	timeoutCtx, cancel := WithOptionalTimeout(ctx, timeout)
	defer cancel()

	_, err := c.s3Client.PutObject(timeoutCtx, input)
	return err
}

// GetObject downloads an artifact and returns its content.
func (c *Client) GetObject(ctx context.Context, key string, timeout int64) (string, error) {
	if c == nil {
		return "", fmt.Errorf("please init client first")
	}
	if key == "" {
		return "", fmt.Errorf("the object key is empty")
	}
	timeoutCtx, cancel := WithOptionalTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.s3Client.GetObject(timeoutCtx, &s3.GetObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeleteObject deletes one artifact.
func (c *Client) DeleteObject(ctx context.Context, key string, timeout int64) error {
	if c == nil {
		return fmt.Errorf("please init client first")
	}
	if key == "" {
		return fmt.Errorf("the object key is empty")
	}
	timeoutCtx, cancel := WithOptionalTimeout(ctx, timeout)
	defer cancel()

	_, err := c.s3Client.DeleteObject(timeoutCtx, &s3.DeleteObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	})
	return err
}

// ListKeys lists every object key under a prefix.
func (c *Client) ListKeys(ctx context.Context, prefix string, timeout int64) ([]string, error) {
	if c == nil {
		return nil, fmt.Errorf("please init client first")
	}
	timeoutCtx, cancel := WithOptionalTimeout(ctx, timeout)
	defer cancel()

	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: c.Bucket,
		Prefix: aws.String(prefix),
	})
	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(timeoutCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := *obj.Key
			if strings.HasSuffix(key, "/") {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// DeletePrefix deletes every object under a prefix, returning how many were
// removed. Used by the retention worker after database rows are purged.
func (c *Client) DeletePrefix(ctx context.Context, prefix string, timeout int64) (int, error) {
	keys, err := c.ListKeys(ctx, prefix, timeout)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, key := range keys {
		if err := c.DeleteObject(ctx, key, timeout); err != nil {
			klog.ErrorS(err, "failed to delete artifact", "key", key)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// GeneratePresignedURL generates a presigned URL for temporary artifact
// access.
func (c *Client) GeneratePresignedURL(ctx context.Context, key string, expireHour int32) (string, error) {
	presigner := s3.NewPresignClient(c.s3Client)

	resp, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = time.Duration(expireHour) * time.Hour
	})
	if err != nil {
		return "", err
	}
	return resp.URL, nil
}

// WithOptionalTimeout add optional timeout to context.
func WithOptionalTimeout(parent context.Context, timeout int64) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, time.Duration(timeout)*time.Second)
}
