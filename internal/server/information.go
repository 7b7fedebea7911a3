package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetInformation(c *gin.Context) {
	info := s.info.Information(c.Request.Context(), s.edition.Name())
	c.JSON(http.StatusOK, gin.H{"data": info})
}
