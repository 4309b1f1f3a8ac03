// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"leadcrm-service/internal/domain/auth"
	"leadcrm-service/internal/middleware"
	"leadcrm-service/internal/pkg/response"
	service "leadcrm-service/internal/service/auth"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *service.Service
}

func NewAuthHandler(authService *service.Service) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register creates a new agent account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err, "failed to register")
		return
	}
	response.Success(c, http.StatusCreated, "account created", user)
}

// Login verifies credentials and returns an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		response.FromError(c, err, "login failed")
		return
	}
	response.Success(c, http.StatusOK, "logged in", resp)
}

// Profile returns the authenticated user's account.
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}

	user, err := h.authService.Profile(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err, "failed to load profile")
		return
	}
	response.Success(c, http.StatusOK, "profile retrieved", user)
}
