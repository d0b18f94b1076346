/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ComponentStatus reports the health of one dependency.
type ComponentStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Health handles GET /health. The probe is anonymous and never fails the
// request; a degraded dependency shows up in the body.
func (h *Handler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	components := []ComponentStatus{
		{Name: "database", Status: "ok"},
		{Name: "cluster", Status: "ok"},
	}
	if err := h.reporting.Ping(ctx); err != nil {
		components[0].Status = "unavailable"
		components[0].Error = err.Error()
	}
	if err := h.cluster.Ping(ctx); err != nil {
		components[1].Status = "unavailable"
		components[1].Error = err.Error()
	}

	status := "ok"
	for _, component := range components {
		if component.Status != "ok" {
			status = "degraded"
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "components": components})
}
