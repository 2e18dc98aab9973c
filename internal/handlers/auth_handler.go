package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/login and returns a signed token for the user.
func (h *Handler) Login(c *gin.Context) {
	if h.tokens == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Login is not enabled"})
		return
	}
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err, "Failed to log in")
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Name, string(user.Role), user.ClientIDs)
	if err != nil {
		h.fail(c, err, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}
