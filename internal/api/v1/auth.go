package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lightspeed/jobforge/internal/auth"
)

func (h *Handlers) registerAuthRoutes(group *gin.RouterGroup) {
	group.POST("/login", h.login)
	group.POST("/logout", h.middleware.RequireAuth(), h.logout)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "errorType": "Validation"})
		return
	}

	principal, err := h.verifier.Verify(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	token, expires, err := h.tokens.Issue(principal.Username)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"username": principal.Username,
		"expires":  expires,
	})
}

// logout is advisory only: it confirms the caller holds a valid token and
// revokes nothing, so an issued token stays valid until it expires.
func (h *Handlers) logout(c *gin.Context) {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "errorType": "Auth"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
