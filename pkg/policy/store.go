/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
	"sigs.k8s.io/yaml"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	dbclient "github.com/AMD-AIG-AIMA/testexec/pkg/database/client"
	dbutils "github.com/AMD-AIG-AIMA/testexec/pkg/database/utils"
	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
)

const (
	// DefaultLobNamespacePrefix is the compiled-in fallback used when the
	// admin configuration cannot be read.
	DefaultLobNamespacePrefix = "testexec-"

	defaultSystemNamespace = "testexec-system"
	defaultAdminConfigName = "default"

	adminConfigCacheTTL = 5 * time.Minute
)

// Database is the slice of the database client the policy store depends on.
type Database interface {
	GetLatestAdminConfiguration(ctx context.Context) (*dbclient.AdminConfiguration, error)
	InsertAdminConfiguration(ctx context.Context, cfg *dbclient.AdminConfiguration) error
	GetUserConfiguration(ctx context.Context, configId string) (*dbclient.UserConfiguration, error)
	InsertUserConfiguration(ctx context.Context, cfg *dbclient.UserConfiguration) error
	UpdateUserConfiguration(ctx context.Context, cfg *dbclient.UserConfiguration) error
	SelectUserConfigurations(ctx context.Context, lobId, teamId, userId string) ([]*dbclient.UserConfiguration, error)
	DeleteUserConfiguration(ctx context.Context, configId string) error
}

// Store loads and saves the admin policy document and per-user overrides.
// The admin configuration is cached in-process for a bounded TTL; readers
// tolerate a stale value until the next refresh, writers invalidate on save.
type Store struct {
	dbClient Database
	clock    clock.Clock

	mu       sync.RWMutex
	cached   *v1.AdminConfiguration
	cachedAt time.Time
}

// NewStore creates a policy store over the database client.
func NewStore(dbClient Database, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store{dbClient: dbClient, clock: clk}
}

// DefaultAdminConfiguration returns the policy applied on first boot, before
// an administrator has saved one.
func DefaultAdminConfiguration() *v1.AdminConfiguration {
	return &v1.AdminConfiguration{
		Name: defaultAdminConfigName,
		ResourceManagement: v1.ResourceManagement{
			MaxConcurrentJobsPerLob:  10,
			MaxConcurrentJobsPerTeam: 5,
			DefaultJobTimeoutMinutes: 60,
			DefaultContainerLimits: v1.ContainerLimits{
				CpuLimit:      "2",
				MemoryLimit:   "2Gi",
				CpuRequest:    "500m",
				MemoryRequest: "512Mi",
			},
			AutoCleanupJobs:   true,
			CleanupAfterHours: 24,
		},
		Retention: v1.RetentionPolicy{
			TestResultsRetentionDays: 30,
			JobHistoryRetentionDays:  90,
			MaxTestResultFileSizeMb:  10,
		},
		Cluster: v1.ClusterSettings{
			SystemNamespace:    defaultSystemNamespace,
			LobNamespacePrefix: DefaultLobNamespacePrefix,
		},
		RateLimits: v1.RateLimits{
			RequestsPerMinute: 60,
		},
		Alerts: v1.AlertSettings{
			Notifications: v1.AlertNotifications{},
		},
	}
}

// GetAdminConfiguration returns the current admin policy. With useCache it
// serves the cached copy while within the TTL. If no configuration has ever
// been saved, the default is persisted and returned.
func (s *Store) GetAdminConfiguration(ctx context.Context, useCache bool) (*v1.AdminConfiguration, error) {
	if useCache {
		s.mu.RLock()
		if s.cached != nil && s.clock.Since(s.cachedAt) < adminConfigCacheTTL {
			cfg := s.cached
			s.mu.RUnlock()
			return cfg, nil
		}
		s.mu.RUnlock()
	}

	row, err := s.dbClient.GetLatestAdminConfiguration(ctx)
	if commonerrors.IsNotFound(err) {
		klog.Infof("no admin configuration found, saving the default")
		cfg := DefaultAdminConfiguration()
		if err = s.SaveAdminConfiguration(ctx, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	cfg := &v1.AdminConfiguration{}
	if err = yaml.Unmarshal([]byte(row.ConfigYaml), cfg); err != nil {
		klog.ErrorS(err, "failed to unmarshal admin configuration", "id", row.ConfigId)
		return nil, commonerrors.NewInternalError(fmt.Sprintf("invalid admin configuration document: %v", err))
	}
	cfg.Id = row.ConfigId
	cfg.Name = row.Name
	cfg.CreatedAt = dbutils.ParseNullTime(row.CreatedAt)
	cfg.UpdatedAt = dbutils.ParseNullTime(row.UpdatedAt)

	s.mu.Lock()
	s.cached = cfg
	s.cachedAt = s.clock.Now()
	s.mu.Unlock()
	return cfg, nil
}

// SaveAdminConfiguration serializes the policy to YAML and appends a new
// version. Identity and timestamps are assigned here, never taken from the
// caller's document. The cache is replaced under the write lock.
func (s *Store) SaveAdminConfiguration(ctx context.Context, cfg *v1.AdminConfiguration) error {
	if cfg == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	now := s.clock.Now().UTC()
	if cfg.Id == "" {
		cfg.Id = uuid.NewString()
		cfg.CreatedAt = now
	}
	if cfg.Name == "" {
		cfg.Name = defaultAdminConfigName
	}
	cfg.UpdatedAt = now

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return commonerrors.NewInternalError(fmt.Sprintf("failed to marshal admin configuration: %v", err))
	}
	row := &dbclient.AdminConfiguration{
		ConfigId:   cfg.Id,
		Name:       cfg.Name,
		ConfigYaml: string(body),
		CreatedAt:  dbutils.NullTime(now),
		UpdatedAt:  dbutils.NullTime(now),
	}
	if err = s.dbClient.InsertAdminConfiguration(ctx, row); err != nil {
		return err
	}

	s.mu.Lock()
	s.cached = cfg
	s.cachedAt = now
	s.mu.Unlock()
	return nil
}

// GetLobNamespacePrefix returns the namespace prefix from the cached admin
// policy, falling back to the compiled-in default on any failure. It never
// blocks on a fresh database read beyond what the cache requires.
func (s *Store) GetLobNamespacePrefix(ctx context.Context) string {
	cfg, err := s.GetAdminConfiguration(ctx, true)
	if err != nil || cfg.Cluster.LobNamespacePrefix == "" {
		if err != nil {
			klog.ErrorS(err, "failed to load admin configuration, using default namespace prefix")
		}
		return DefaultLobNamespacePrefix
	}
	return cfg.Cluster.LobNamespacePrefix
}
