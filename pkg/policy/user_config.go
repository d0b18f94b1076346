/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package policy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
	dbclient "github.com/AMD-AIG-AIMA/testexec/pkg/database/client"
	dbutils "github.com/AMD-AIG-AIMA/testexec/pkg/database/utils"
	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
)

// Scope identifies the tenant a user configuration belongs to. It always
// comes from auth claims, never from the request body.
type Scope struct {
	LobId  string
	TeamId string
	UserId string
}

// CreateUserConfigurationFromYaml parses the document, stamps server-assigned
// identity over whatever the body claims, validates the overrides against the
// admin policy and persists the result.
func (s *Store) CreateUserConfigurationFromYaml(ctx context.Context, body []byte, scope Scope) (*v1.UserConfiguration, error) {
	cfg, err := s.parseAndValidate(ctx, body)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	cfg.Id = uuid.NewString()
	cfg.LobId = scope.LobId
	cfg.TeamId = scope.TeamId
	cfg.UserId = scope.UserId
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	row, err := toUserConfigRow(cfg)
	if err != nil {
		return nil, err
	}
	if err = s.dbClient.InsertUserConfiguration(ctx, row); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UpdateUserConfigurationFromYaml rewrites an existing configuration. The
// stored identity wins over anything in the body, and the caller's scope must
// own the record.
func (s *Store) UpdateUserConfigurationFromYaml(ctx context.Context, configId string, body []byte, scope Scope) (*v1.UserConfiguration, error) {
	existing, err := s.GetUserConfiguration(ctx, configId, scope)
	if err != nil {
		return nil, err
	}
	cfg, err := s.parseAndValidate(ctx, body)
	if err != nil {
		return nil, err
	}
	cfg.Id = existing.Id
	cfg.LobId = existing.LobId
	cfg.TeamId = existing.TeamId
	cfg.UserId = existing.UserId
	cfg.CreatedAt = existing.CreatedAt
	cfg.UpdatedAt = s.clock.Now().UTC()

	row, err := toUserConfigRow(cfg)
	if err != nil {
		return nil, err
	}
	if err = s.dbClient.UpdateUserConfiguration(ctx, row); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetUserConfiguration loads one configuration and checks the caller owns it.
func (s *Store) GetUserConfiguration(ctx context.Context, configId string, scope Scope) (*v1.UserConfiguration, error) {
	row, err := s.dbClient.GetUserConfiguration(ctx, configId)
	if err != nil {
		return nil, err
	}
	if row.LobId != scope.LobId || row.TeamId != scope.TeamId || row.UserId != scope.UserId {
		return nil, commonerrors.NewNotFound(commonerrors.ConfigKind, configId)
	}
	return fromUserConfigRow(row)
}

// ListUserConfigurations returns every configuration owned by the scope.
func (s *Store) ListUserConfigurations(ctx context.Context, scope Scope) ([]*v1.UserConfiguration, error) {
	rows, err := s.dbClient.SelectUserConfigurations(ctx, scope.LobId, scope.TeamId, scope.UserId)
	if err != nil {
		return nil, err
	}
	cfgs := make([]*v1.UserConfiguration, 0, len(rows))
	for _, row := range rows {
		cfg, err := fromUserConfigRow(row)
		if err != nil {
			klog.ErrorS(err, "skipping invalid user configuration", "id", row.ConfigId)
			continue
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}

// DeleteUserConfiguration removes a configuration owned by the scope.
func (s *Store) DeleteUserConfiguration(ctx context.Context, configId string, scope Scope) error {
	if _, err := s.GetUserConfiguration(ctx, configId, scope); err != nil {
		return err
	}
	return s.dbClient.DeleteUserConfiguration(ctx, configId)
}

// parseAndValidate unmarshals a user configuration document and checks its
// overrides against the current admin policy.
func (s *Store) parseAndValidate(ctx context.Context, body []byte) (*v1.UserConfiguration, error) {
	cfg := &v1.UserConfiguration{}
	if err := yaml.Unmarshal(body, cfg); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid configuration document: %v", err))
	}
	admin, err := s.GetAdminConfiguration(ctx, true)
	if err != nil {
		return nil, err
	}
	if err = ValidateUserConfiguration(cfg, admin); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateUserConfiguration enforces that user resource overrides never
// exceed the admin caps.
func ValidateUserConfiguration(cfg *v1.UserConfiguration, admin *v1.AdminConfiguration) error {
	if cfg == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	caps := admin.ResourceManagement.DefaultContainerLimits
	if cfg.Limits.CpuLimit != "" {
		userCpu, err := ParseCPUCores(cfg.Limits.CpuLimit)
		if err != nil {
			return commonerrors.NewBadRequest(fmt.Sprintf("invalid cpu limit %q: %v", cfg.Limits.CpuLimit, err))
		}
		adminCpu, err := ParseCPUCores(caps.CpuLimit)
		if err == nil && userCpu > adminCpu {
			return commonerrors.NewBadRequest(fmt.Sprintf(
				"cpu limit %s exceeds the allowed maximum %s", cfg.Limits.CpuLimit, caps.CpuLimit))
		}
	}
	if cfg.Limits.MemoryLimit != "" {
		userMem, err := ParseMemoryBytes(cfg.Limits.MemoryLimit)
		if err != nil {
			return commonerrors.NewBadRequest(fmt.Sprintf("invalid memory limit %q: %v", cfg.Limits.MemoryLimit, err))
		}
		adminMem, err := ParseMemoryBytes(caps.MemoryLimit)
		if err == nil && userMem > adminMem {
			return commonerrors.NewBadRequest(fmt.Sprintf(
				"memory limit %s exceeds the allowed maximum %s", cfg.Limits.MemoryLimit, caps.MemoryLimit))
		}
	}
	return nil
}

func toUserConfigRow(cfg *v1.UserConfiguration) (*dbclient.UserConfiguration, error) {
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, commonerrors.NewInternalError(fmt.Sprintf("failed to marshal user configuration: %v", err))
	}
	return &dbclient.UserConfiguration{
		ConfigId:   cfg.Id,
		Name:       cfg.Name,
		LobId:      cfg.LobId,
		TeamId:     cfg.TeamId,
		UserId:     cfg.UserId,
		ConfigYaml: string(body),
		CreatedAt:  dbutils.NullTime(cfg.CreatedAt),
		UpdatedAt:  dbutils.NullTime(cfg.UpdatedAt),
	}, nil
}

func fromUserConfigRow(row *dbclient.UserConfiguration) (*v1.UserConfiguration, error) {
	cfg := &v1.UserConfiguration{}
	if err := yaml.Unmarshal([]byte(row.ConfigYaml), cfg); err != nil {
		return nil, commonerrors.NewInternalError(fmt.Sprintf("invalid user configuration document: %v", err))
	}
	// Stored identity always wins over the document body.
	cfg.Id = row.ConfigId
	cfg.Name = row.Name
	cfg.LobId = row.LobId
	cfg.TeamId = row.TeamId
	cfg.UserId = row.UserId
	cfg.CreatedAt = dbutils.ParseNullTime(row.CreatedAt)
	cfg.UpdatedAt = dbutils.ParseNullTime(row.UpdatedAt)
	return cfg, nil
}
