package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetSettingsMenu returns the caller's settings menu. By default it waits
// for the in-flight resolution and hides links the caller may not see.
func (s *Server) GetSettingsMenu(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	wait, err := queryBool(c, "wait", true)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	includeHidden, err := queryBool(c, "include_hidden", false)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	menu, err := s.menus.Menu(c.Request.Context(), userID, wait)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !includeHidden {
		menu = menu.Visible()
	}

	c.JSON(http.StatusOK, gin.H{"data": menu})
}

// RefreshSettingsMenu starts a new resolution and returns without waiting.
func (s *Server) RefreshSettingsMenu(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.menus.Refresh(c.Request.Context(), userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "refreshing"})
}

func queryBool(c *gin.Context, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, newValidationError(key, "invalid_"+key, "must be a boolean")
	}
	return value, nil
}
