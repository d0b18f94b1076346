/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
	"github.com/AMD-AIG-AIMA/testexec/pkg/utils"
)

// InitHttpHandlers creates the gin engine and registers every route. The
// tenant surface requires forwarded claims; the admin surface requires the
// admin role; /health and /metrics are anonymous.
func InitHttpHandlers(h *Handler, registry *prometheus.Registry) *gin.Engine {
	engine := gin.New()
	engine.Use(Logger(), gin.Recovery())
	engine.NoRoute(func(c *gin.Context) {
		utils.AbortWithApiError(c, commonerrors.NewNotFoundWithMessage(c.Request.RequestURI+" not found"))
	})

	engine.GET("health", h.Health)
	if registry != nil {
		engine.GET("metrics", gin.WrapH(
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	group := engine.Group("/", Claims())
	{
		group.POST("jobs", h.CreateJob)
		group.GET("jobs/:jobId", h.GetJob)
		group.GET("jobs/:jobId/results", h.GetJobResults)
		group.POST("jobs/:jobId/cleanup", h.CleanupJob)

		group.POST("schedules", h.CreateSchedule)
		group.GET("schedules", h.ListSchedules)
		group.GET("schedules/:scheduleId", h.GetSchedule)
		group.PUT("schedules/:scheduleId", h.UpdateSchedule)
		group.DELETE("schedules/:scheduleId", h.DeleteSchedule)

		group.POST("configurations", h.CreateConfiguration)
		group.GET("configurations", h.ListConfigurations)
		group.GET("configurations/:configId", h.GetConfiguration)
		group.PUT("configurations/:configId", h.UpdateConfiguration)
		group.DELETE("configurations/:configId", h.DeleteConfiguration)
	}

	admin := engine.Group("admin", RequireAdmin())
	{
		admin.GET("configuration", h.GetAdminConfiguration)
		admin.PUT("configuration", h.PutAdminConfiguration)
		admin.GET("jobs", h.ListJobsReport)
		admin.GET("jobs/summary", h.GetJobsSummary)
		admin.GET("lobs/summary", h.GetLobsSummary)
		admin.GET("tests/failing", h.GetFailingTests)
		admin.POST("alerts/test", h.TestAlert)
	}

	return engine
}
