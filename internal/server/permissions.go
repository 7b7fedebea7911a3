package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/console/internal/observability/logger"
	"github.com/smallbiznis/console/internal/permission"
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
	"go.uber.org/zap"
)

const maxCheckedPermissions = 100

type checkPermissionsRequest struct {
	Permissions []rbacdomain.Permission `json:"permissions"`
}

func (s *Server) GetMyPermissions(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	perms, err := s.rbac.AllPermissions(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if perms == nil {
		perms = []rbacdomain.Permission{}
	}

	c.JSON(http.StatusOK, gin.H{"data": perms})
}

// CheckPermissions answers each requested permission independently, in
// request order.
func (s *Server) CheckPermissions(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req checkPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Permissions) > maxCheckedPermissions {
		AbortWithError(c, newValidationError("permissions", "too_many_permissions", "too many permissions"))
		return
	}
	for i := range req.Permissions {
		req.Permissions[i].Action = strings.TrimSpace(req.Permissions[i].Action)
		if req.Permissions[i].Action == "" {
			AbortWithError(c, newValidationError("permissions.action", "invalid_action", "action is required"))
			return
		}
	}

	ctx := c.Request.Context()
	granted, err := s.rbac.AllPermissions(ctx, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	answers, err := permission.CheckEach(ctx, s.checker, userID, granted, req.Permissions)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("permission check failed", zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": answers})
}

// AssignRoles replaces the target user's roles and refreshes their menu.
func (s *Server) AssignRoles(c *gin.Context) {
	userID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || userID == 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req rbacdomain.AssignRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	if _, err := s.rbac.GetUser(ctx, userID); err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.rbac.AssignRoles(ctx, userID, req.Roles); err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.menus.RefreshUser(ctx, userID); err != nil {
		logger.WithContext(ctx, s.log).Error("settings menu refresh after role change failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}

	roles, err := s.rbac.Roles(ctx, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": userID.String(), "roles": roles}})
}
