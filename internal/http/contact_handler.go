package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio-chat/internal/domain"
	"portfolio-chat/internal/service"
)

// ContactHandler recibe el formulario de contacto del sitio.
type ContactHandler struct {
	logger  *zap.Logger
	contact *service.ContactService
}

func NewContactHandler(logger *zap.Logger, contact *service.ContactService) *ContactHandler {
	return &ContactHandler{logger: logger, contact: contact}
}

// SubmitContact maneja POST /contact.
func (h *ContactHandler) SubmitContact(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		Email   string `json:"email" binding:"required,email"`
		Subject string `json:"subject"`
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid contact request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.contact.Submit(c.Request.Context(), domain.ContactRequest{
		Name:     req.Name,
		Email:    req.Email,
		Subject:  req.Subject,
		Message:  req.Message,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrContactInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrContactRateLimited):
			var throttled *service.ThrottledError
			if errors.As(err, &throttled) {
				setRetryAfter(c, throttled.RetryAfter)
			}
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		case errors.Is(err, service.ErrContactSendFailure), errors.Is(err, service.ErrContactNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email delivery unavailable"})
		default:
			h.logger.Error("contact submit failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send contact message"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "received"})
}
