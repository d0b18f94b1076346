/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"github.com/gin-gonic/gin"
	"sigs.k8s.io/yaml"

	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
	"github.com/AMD-AIG-AIMA/testexec/pkg/policy"
)

func claimScope(c *gin.Context) policy.Scope {
	return policy.Scope{
		LobId:  c.GetString(LobId),
		TeamId: c.GetString(TeamId),
		UserId: c.GetString(UserId),
	}
}

// CreateConfiguration handles POST /configurations with a YAML body.
func (h *Handler) CreateConfiguration(c *gin.Context) {
	handleYaml(c, func(c *gin.Context) ([]byte, error) {
		body, err := c.GetRawData()
		if err != nil {
			return nil, commonerrors.NewBadRequest(err.Error())
		}
		cfg, err := h.policyStore.CreateUserConfigurationFromYaml(c.Request.Context(), body, claimScope(c))
		if err != nil {
			return nil, err
		}
		return yaml.Marshal(cfg)
	})
}

// ListConfigurations handles GET /configurations.
func (h *Handler) ListConfigurations(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		configs, err := h.policyStore.ListUserConfigurations(c.Request.Context(), claimScope(c))
		if err != nil {
			return nil, err
		}
		return gin.H{"configurations": configs}, nil
	})
}

// GetConfiguration handles GET /configurations/:configId.
func (h *Handler) GetConfiguration(c *gin.Context) {
	handleYaml(c, func(c *gin.Context) ([]byte, error) {
		cfg, err := h.policyStore.GetUserConfiguration(c.Request.Context(), c.Param("configId"), claimScope(c))
		if err != nil {
			return nil, err
		}
		return yaml.Marshal(cfg)
	})
}

// UpdateConfiguration handles PUT /configurations/:configId with a YAML body.
func (h *Handler) UpdateConfiguration(c *gin.Context) {
	handleYaml(c, func(c *gin.Context) ([]byte, error) {
		body, err := c.GetRawData()
		if err != nil {
			return nil, commonerrors.NewBadRequest(err.Error())
		}
		cfg, err := h.policyStore.UpdateUserConfigurationFromYaml(c.Request.Context(),
			c.Param("configId"), body, claimScope(c))
		if err != nil {
			return nil, err
		}
		return yaml.Marshal(cfg)
	})
}

// DeleteConfiguration handles DELETE /configurations/:configId.
func (h *Handler) DeleteConfiguration(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		configId := c.Param("configId")
		if err := h.policyStore.DeleteUserConfiguration(c.Request.Context(), configId, claimScope(c)); err != nil {
			return nil, err
		}
		return gin.H{"configId": configId, "message": "configuration deleted"}, nil
	})
}
