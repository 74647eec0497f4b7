package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type RegisterHandler struct {
	accountService services.AccountService
	logger         *slog.Logger
}

func NewRegisterHandler(accountService services.AccountService, logger *slog.Logger) *RegisterHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegisterHandler{accountService: accountService, logger: logger}
}

type RegistrationResponse struct {
	Message string         `json:"message"`
	User    models.Profile `json:"user"`
}

func (h *RegisterHandler) Registration(c *gin.Context) {
	var req services.RegistrationRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.accountService.Register(c.Request.Context(), req)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, verr.Fields)
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "registration failed", "username", req.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	h.logger.InfoContext(c.Request.Context(), "user registered", "user_id", profile.ID, "username", profile.Username)
	c.JSON(http.StatusCreated, RegistrationResponse{
		Message: "User registered successfully",
		User:    profile,
	})
}
