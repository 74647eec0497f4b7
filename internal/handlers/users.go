package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	accountService services.AccountService
	logger         *slog.Logger
}

func NewUserHandler(accountService services.AccountService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{accountService: accountService, logger: logger}
}

type ProfileResponse struct {
	Message string         `json:"message"`
	User    models.Profile `json:"user"`
}

func (h *UserHandler) GetUserProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	profile, err := h.accountService.Profile(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateUserProfile applies the supplied fields only. PUT and PATCH behave
// the same way.
func (h *UserHandler) UpdateUserProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var update services.ProfileUpdate
	if !bindJSON(c, &update) {
		return
	}

	profile, err := h.accountService.UpdateProfile(c.Request.Context(), userID, update)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{
		Message: "Profile updated successfully",
		User:    profile,
	})
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.accountService.ChangePassword(c.Request.Context(), userID, req)
	switch {
	case err == nil:
		h.logger.InfoContext(c.Request.Context(), "password changed", "user_id", userID)
		c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
	case errors.Is(err, services.ErrOldPasswordIncorrect), errors.Is(err, services.ErrNewPasswordMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.handleError(c, err)
	}
}

func (h *UserHandler) handleError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, verr.Fields)
	case errors.Is(err, services.ErrUserNotFound):
		// The account behind a still valid token was removed.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
	default:
		h.logger.ErrorContext(c.Request.Context(), "account request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process account request"})
	}
}
