/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	commonerrors "github.com/AMD-AIG-AIMA/testexec/pkg/errors"
	"github.com/AMD-AIG-AIMA/testexec/pkg/utils"
)

// Claim keys on the gin context and the trusted gateway headers carrying
// them. The gateway authenticates the caller; this service only reads the
// forwarded identity.
const (
	LobId  = "lobId"
	TeamId = "teamId"
	UserId = "userId"

	HeaderLobId    = "X-Lob-Id"
	HeaderTeamId   = "X-Team-Id"
	HeaderUserId   = "X-User-Id"
	HeaderUserRole = "X-User-Role"

	AdminRole = "admin"
)

// Logger logs one line per request with the status and latency.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		klog.Infof("%s %s status=%d latency=%v errors=%d",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(startTime), len(c.Errors))
		for _, err := range c.Errors {
			klog.ErrorS(err.Err, "request error", "path", c.Request.URL.Path)
		}
	}
}

// Claims extracts the tenancy claims and rejects requests without them.
func Claims() gin.HandlerFunc {
	return func(c *gin.Context) {
		lobId := c.GetHeader(HeaderLobId)
		teamId := c.GetHeader(HeaderTeamId)
		userId := c.GetHeader(HeaderUserId)
		if lobId == "" || teamId == "" || userId == "" {
			utils.AbortWithApiError(c, commonerrors.NewUnauthorized("missing auth claims"))
			return
		}
		c.Set(LobId, lobId)
		c.Set(TeamId, teamId)
		c.Set(UserId, userId)
		c.Next()
	}
}

// RequireAdmin gates the admin surface on the forwarded role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetHeader(HeaderUserRole)
		if role == "" {
			utils.AbortWithApiError(c, commonerrors.NewUnauthorized("missing auth claims"))
			return
		}
		if role != AdminRole {
			utils.AbortWithApiError(c, commonerrors.NewForbidden("admin role required"))
			return
		}
		c.Next()
	}
}
