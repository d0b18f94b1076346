/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
)

const (
	TAdminConfiguration = "admin_configuration"
	TUserConfiguration  = "user_configuration"
)

var (
	insertAdminConfigFormat = `INSERT INTO ` + TAdminConfiguration + ` (%s) VALUES (%s)`
	getLatestAdminConfigCmd = fmt.Sprintf(`SELECT * FROM %s ORDER BY created_at DESC LIMIT 1`, TAdminConfiguration)
	insertUserConfigFormat  = `INSERT INTO ` + TUserConfiguration + ` (%s) VALUES (%s)`
	getUserConfigCmd        = fmt.Sprintf(`SELECT * FROM %s WHERE config_id = $1 LIMIT 1`, TUserConfiguration)
	updateUserConfigCmd     = fmt.Sprintf(`UPDATE %s
		SET name = :name,
		    config_yaml = :config_yaml,
		    updated_at = :updated_at
		WHERE config_id = :config_id`, TUserConfiguration)
)

// InsertAdminConfiguration appends a new admin configuration version. Versions
// are never updated in place; the newest created_at wins on read.
func (c *Client) InsertAdminConfiguration(ctx context.Context, cfg *AdminConfiguration) error {
	if cfg == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.NamedExecContext(ctx, generateCommand(*cfg, insertAdminConfigFormat, "id"), cfg)
	if err != nil {
		klog.ErrorS(err, "failed to insert admin configuration db", "id", cfg.ConfigId)
	}
	return err
}

// GetLatestAdminConfiguration returns the most recently created admin
// configuration version.
func (c *Client) GetLatestAdminConfiguration(ctx context.Context) (*AdminConfiguration, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var cfgs []*AdminConfiguration
	if err = db.SelectContext(ctx, &cfgs, getLatestAdminConfigCmd); err != nil {
		klog.ErrorS(err, "failed to select admin configuration")
		return nil, err
	}
	if len(cfgs) == 0 {
		return nil, commonerrors.NewNotFound(commonerrors.ConfigKind, "admin")
	}
	return cfgs[0], nil
}

// InsertUserConfiguration persists a new user configuration.
func (c *Client) InsertUserConfiguration(ctx context.Context, cfg *UserConfiguration) error {
	if cfg == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.NamedExecContext(ctx, generateCommand(*cfg, insertUserConfigFormat, "id"), cfg)
	if err != nil {
		klog.ErrorS(err, "failed to insert user configuration db", "id", cfg.ConfigId)
	}
	return err
}

// UpdateUserConfiguration rewrites the document of an existing user
// configuration.
func (c *Client) UpdateUserConfiguration(ctx context.Context, cfg *UserConfiguration) error {
	if cfg == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	res, err := db.NamedExecContext(ctx, updateUserConfigCmd, cfg)
	if err != nil {
		klog.ErrorS(err, "failed to update user configuration db", "id", cfg.ConfigId)
		return err
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return commonerrors.NewNotFound(commonerrors.ConfigKind, cfg.ConfigId)
	}
	return nil
}

// GetUserConfiguration retrieves a user configuration by ID.
func (c *Client) GetUserConfiguration(ctx context.Context, configId string) (*UserConfiguration, error) {
	if configId == "" {
		return nil, commonerrors.NewBadRequest("configId is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var cfgs []*UserConfiguration
	if err = db.SelectContext(ctx, &cfgs, getUserConfigCmd, configId); err != nil {
		klog.ErrorS(err, "failed to select user configuration", "id", configId)
		return nil, err
	}
	if len(cfgs) == 0 {
		return nil, commonerrors.NewNotFound(commonerrors.ConfigKind, configId)
	}
	return cfgs[0], nil
}

// SelectUserConfigurations returns a user's configurations, newest first.
func (c *Client) SelectUserConfigurations(ctx context.Context, lobId, teamId, userId string) ([]*UserConfiguration, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	dbTags := GetUserConfigurationFieldTags()
	query := sqrl.And{
		sqrl.Eq{GetFieldTag(dbTags, "LobId"): lobId},
		sqrl.Eq{GetFieldTag(dbTags, "TeamId"): teamId},
		sqrl.Eq{GetFieldTag(dbTags, "UserId"): userId},
	}
	sql, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TUserConfiguration).
		Where(query).
		OrderBy(CreatedAt + " " + DESC).ToSql()
	if err != nil {
		return nil, err
	}
	var cfgs []*UserConfiguration
	ctx2, cancel := c.withRequestTimeout(ctx)
	defer cancel()
	err = db.SelectContext(ctx2, &cfgs, sql, args...)
	return cfgs, err
}

// DeleteUserConfiguration removes a user configuration permanently.
func (c *Client) DeleteUserConfiguration(ctx context.Context, configId string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE config_id=$1`, TUserConfiguration)
	res, err := db.ExecContext(ctx, cmd, configId)
	if err != nil {
		klog.ErrorS(err, "failed to delete user configuration db", "ConfigId", configId)
		return err
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return commonerrors.NewNotFound(commonerrors.ConfigKind, configId)
	}
	return nil
}
