/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"github.com/gin-gonic/gin"
	"sigs.k8s.io/yaml"

	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
)

// CreateSchedule handles POST /schedules with a YAML body.
func (h *Handler) CreateSchedule(c *gin.Context) {
	handleYaml(c, func(c *gin.Context) ([]byte, error) {
		body, err := c.GetRawData()
		if err != nil {
			return nil, commonerrors.NewBadRequest(err.Error())
		}
		s, err := h.schedules.CreateScheduleFromYaml(c.Request.Context(),
			c.GetString(LobId), c.GetString(TeamId), body)
		if err != nil {
			return nil, err
		}
		return yaml.Marshal(s)
	})
}

// ListSchedules handles GET /schedules.
func (h *Handler) ListSchedules(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		schedules, err := h.schedules.ListSchedules(c.Request.Context(),
			c.GetString(LobId), c.GetString(TeamId))
		if err != nil {
			return nil, err
		}
		return gin.H{"schedules": schedules}, nil
	})
}

// GetSchedule handles GET /schedules/:scheduleId.
func (h *Handler) GetSchedule(c *gin.Context) {
	handleYaml(c, func(c *gin.Context) ([]byte, error) {
		s, err := h.schedules.GetSchedule(c.Request.Context(),
			c.GetString(LobId), c.Param("scheduleId"))
		if err != nil {
			return nil, err
		}
		return yaml.Marshal(s)
	})
}

// UpdateSchedule handles PUT /schedules/:scheduleId with a YAML body.
func (h *Handler) UpdateSchedule(c *gin.Context) {
	handleYaml(c, func(c *gin.Context) ([]byte, error) {
		body, err := c.GetRawData()
		if err != nil {
			return nil, commonerrors.NewBadRequest(err.Error())
		}
		s, err := h.schedules.UpdateScheduleFromYaml(c.Request.Context(),
			c.GetString(LobId), c.GetString(TeamId), c.Param("scheduleId"), body)
		if err != nil {
			return nil, err
		}
		return yaml.Marshal(s)
	})
}

// DeleteSchedule handles DELETE /schedules/:scheduleId.
func (h *Handler) DeleteSchedule(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		scheduleId := c.Param("scheduleId")
		if err := h.schedules.DeleteSchedule(c.Request.Context(),
			c.GetString(LobId), scheduleId); err != nil {
			return nil, err
		}
		return gin.H{"scheduleId": scheduleId, "message": "schedule deleted"}, nil
	})
}
