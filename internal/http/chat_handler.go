package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio-chat/internal/service"
)

// ChatHandler expone el widget de chat sobre HTTP.
type ChatHandler struct {
	logger        *zap.Logger
	sessions      *service.SessionService
	conversations *service.ConversationRegistry
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(
	logger *zap.Logger,
	sessions *service.SessionService,
	conversations *service.ConversationRegistry,
) *ChatHandler {
	return &ChatHandler{
		logger:        logger,
		sessions:      sessions,
		conversations: conversations,
	}
}

// CreateSession maneja POST /chat/session.
func (h *ChatHandler) CreateSession(c *gin.Context) {
	session, err := h.sessions.IssueForClient(c.Request.Context(), c.ClientIP())
	if err != nil {
		var throttled *service.ThrottledError
		if errors.As(err, &throttled) {
			h.logger.Info("session issue throttled", zap.String("client_ip", c.ClientIP()))
			setRetryAfter(c, throttled.RetryAfter)
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many sessions"})
			return
		}
		h.logger.Error("issue session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	conv := h.conversations.Open(session.ID)
	c.JSON(http.StatusCreated, gin.H{
		"session":      session,
		"conversation": conv.Snapshot(),
	})
}

// CloseSession maneja DELETE /chat/session.
func (h *ChatHandler) CloseSession(c *gin.Context) {
	claims, ok := GetVisitorClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
		return
	}
	h.conversations.Close(claims.VisitorID)
	c.Status(http.StatusNoContent)
}

// GetConversation maneja GET /chat/conversation.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	conv, ok := h.conversation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv.Snapshot()})
}

// UpdateDraft maneja PUT /chat/draft.
func (h *ChatHandler) UpdateDraft(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid draft request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	conv, ok := h.conversation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv.UpdateDraft(req.Text)})
}

// PostMessage maneja POST /chat/message.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid post message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	conv, ok := h.conversation(c)
	if !ok {
		return
	}

	snapshot, err := conv.Submit(c.Request.Context(), req.Text)
	if err != nil {
		h.writeSendError(c, err, snapshot)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": snapshot})
}

// PostSuggestion maneja POST /chat/suggestion.
func (h *ChatHandler) PostSuggestion(c *gin.Context) {
	var req struct {
		Question string `json:"question" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid suggestion request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	conv, ok := h.conversation(c)
	if !ok {
		return
	}

	snapshot, err := conv.AskSuggestion(c.Request.Context(), req.Question)
	if err != nil {
		h.writeSendError(c, err, snapshot)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": snapshot})
}

// conversation devuelve la conversacion del visitante, reabriendola si el
// proceso se reinicio; los contadores viven en el store.
func (h *ChatHandler) conversation(c *gin.Context) (*service.Conversation, bool) {
	claims, ok := GetVisitorClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
		return nil, false
	}
	return h.conversations.Open(claims.VisitorID), true
}

func (h *ChatHandler) writeSendError(c *gin.Context, err error, snapshot service.ConversationSnapshot) {
	var (
		validationErr *service.ValidationError
		rateLimitErr  *service.RateLimitError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":        validationErr.Message,
			"code":         validationErr.Code,
			"conversation": snapshot,
		})
	case errors.As(err, &rateLimitErr):
		body := gin.H{
			"error":        rateLimitErr.Error(),
			"code":         string(rateLimitErr.Reason),
			"conversation": snapshot,
		}
		if rateLimitErr.Reason == service.SessionLimitExceeded {
			body["hours_remaining"] = rateLimitErr.HoursRemaining
		}
		c.JSON(http.StatusTooManyRequests, body)
	case errors.Is(err, service.ErrSendInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "a message is already being sent", "conversation": snapshot})
	case errors.Is(err, service.ErrUnknownSuggestion):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown suggestion", "conversation": snapshot})
	case errors.Is(err, service.ErrConversationClosed):
		c.JSON(http.StatusGone, gin.H{"error": "conversation closed"})
	default:
		h.logger.Error("chat send failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
	}
}

// setRetryAfter redondea hacia arriba a segundos enteros.
func setRetryAfter(c *gin.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
}
