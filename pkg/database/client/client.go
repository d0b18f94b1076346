/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"

	commonconfig "github.com/AMD-AIG-AIMA/testexec/pkg/config"
	"github.com/AMD-AIG-AIMA/testexec/pkg/database/utils"
	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
)

// Client manages the sqlx connection pool against the relational store.
// It is constructed once at process start and passed to every component
// that persists state.
type Client struct {
	db              *sqlx.DB
	*utils.DBConfig // Embedded database configuration
}

// NewClient creates a database client from the loaded configuration.
// It validates the parameters, connects and pings the database.
func NewClient() (*Client, error) {
	cfg := &utils.DBConfig{
		DBName:         commonconfig.GetDBName(),
		Username:       commonconfig.GetDBUser(),
		Password:       commonconfig.GetDBPassword(),
		Host:           commonconfig.GetDBHost(),
		Port:           commonconfig.GetDBPort(),
		SSLMode:        commonconfig.GetDBSslMode(),
		MaxOpenConns:   commonconfig.GetDBMaxOpenConns(),
		MaxIdleConns:   commonconfig.GetDBMaxIdleConns(),
		MaxLifetime:    time.Duration(commonconfig.GetDBMaxLifetimeSecond()) * time.Second,
		MaxIdleTime:    time.Duration(commonconfig.GetDBMaxIdleTimeSecond()) * time.Second,
		ConnectTimeout: commonconfig.GetDBConnectTimeoutSecond(),
		RequestTimeout: time.Duration(commonconfig.GetDBRequestTimeoutSecond()) * time.Second,
	}
	return NewClientWithConfig(cfg)
}

// NewClientWithConfig creates a database client from an explicit configuration.
func NewClientWithConfig(cfg *utils.DBConfig) (*Client, error) {
	if err := checkParams(cfg); err != nil {
		klog.ErrorS(err, "failed to check db params")
		return nil, err
	}
	db, err := utils.Connect(cfg, utils.PgDriver)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		klog.ErrorS(err, "failed to ping db")
		return nil, err
	}
	klog.Infof("init db-client successfully! conn-timeout: %d(s), request-timeout: %v",
		cfg.ConnectTimeout, cfg.RequestTimeout)
	return &Client{db: db, DBConfig: cfg}, nil
}

// Close performs the Close operation.
func (c *Client) Close() {
	err := c.db.Close()
	if err != nil {
		klog.ErrorS(err, "failed to close db connection")
	}
}

// Ping verifies the database connection, used by the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.db == nil {
		return commonerrors.NewInternalError("the client of db has not been initialized")
	}
	return c.db.PingContext(ctx)
}

// getDB retrieves DB for internal use.
func (c *Client) getDB() (*sqlx.DB, error) {
	if c == nil || c.db == nil {
		return nil, commonerrors.NewInternalError("the client of db has not been initialized")
	}
	return c.db.Unsafe(), nil
}

// withRequestTimeout bounds ctx by the configured per-request timeout.
func (c *Client) withRequestTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.RequestTimeout > 0 {
		return context.WithTimeout(ctx, c.RequestTimeout)
	}
	return ctx, func() {}
}

// checkParams checks Params and returns the result.
func checkParams(cfg *utils.DBConfig) error {
	var errs []error
	if cfg.DBName == "" {
		errs = append(errs, fmt.Errorf("dbname not found"))
	}
	if cfg.Username == "" {
		errs = append(errs, fmt.Errorf("username not found"))
	}
	if cfg.Password == "" {
		errs = append(errs, fmt.Errorf("password not found"))
	}
	if cfg.Host == "" {
		errs = append(errs, fmt.Errorf("host not found"))
	}
	if cfg.SSLMode == "" {
		errs = append(errs, fmt.Errorf("ssl_mode not found"))
	}
	if cfg.Port == 0 {
		errs = append(errs, fmt.Errorf("port not found"))
	}
	return utilerrors.NewAggregate(errs)
}
