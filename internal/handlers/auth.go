package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/noteguard/backend/internal/services"
	"github.com/noteguard/backend/pkg/response"
)

type AuthHandler struct {
	sessions *services.SessionService
}

func NewAuthHandler(sessions *services.SessionService) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email             string `json:"email" binding:"required,email"`
	Password          string `json:"password" binding:"required"`
	DeviceFingerprint string `json:"deviceFingerprint" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken      string `json:"refreshToken" binding:"required"`
	DeviceFingerprint string `json:"deviceFingerprint" binding:"required"`
}

type LogoutRequest struct {
	RefreshToken      string `json:"refreshToken" binding:"required"`
	DeviceFingerprint string `json:"deviceFingerprint" binding:"required"`
}

// Register handles account creation
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.sessions.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, resp)
}

// Login authenticates and establishes a session on one device
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password, req.DeviceFingerprint, c.ClientIP())
	if err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, resp)
}

// Refresh rotates a refresh token
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken, req.DeviceFingerprint, c.ClientIP())
	if err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, resp)
}

// Logout revokes a refresh token; always succeeds for dead tokens
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), req.RefreshToken, req.DeviceFingerprint, c.ClientIP()); err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, nil)
}

// ConfirmEmail confirms an account's email address
// GET /api/auth/confirm-email?userId=...&token=...
func (h *AuthHandler) ConfirmEmail(c *gin.Context) {
	userID := c.Query("userId")
	confirmToken := c.Query("token")
	if userID == "" || confirmToken == "" {
		response.BadRequest(c, "userId and token are required")
		return
	}

	if err := h.sessions.ConfirmEmail(c.Request.Context(), userID, confirmToken); err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, nil)
}

func (h *AuthHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDuplicateAccount):
		response.Conflict(c, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrEmailNotConfirmed),
		errors.Is(err, services.ErrInvalidOrExpiredToken),
		errors.Is(err, services.ErrReuseDetected):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrAccountNotFound):
		response.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrStorageUnavailable):
		response.ServiceUnavailable(c, "storage temporarily unavailable")
	default:
		response.ServerError(c, err.Error())
	}
}
