package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"portfolio-chat/internal/domain"
	"portfolio-chat/internal/webhook"
)

const (
	WelcomeMessageID   = "chat-welcome"
	WelcomeMessageText = "Hola! Soy tu asistente virtual. ¿En qué puedo ayudarte hoy?"
	PlaceholderText    = "Escribiendo…"
	TransportErrorText = "No pude conectarme con el asistente. ¡Intenta otra vez!"
)

// DefaultSuggestedQuestions son las preguntas frecuentes que ofrece el widget.
var DefaultSuggestedQuestions = []string{
	"¿Cuál fue tu mayor logro?",
	"¿Cómo manejas el trabajo en equipo?",
	"¿Qué esperas del próximo rol y equipo?",
}

var (
	ErrSendInProgress     = errors.New("send already in progress")
	ErrUnknownSuggestion  = errors.New("unknown suggestion")
	ErrConversationClosed = errors.New("conversation closed")
)

// ConversationSnapshot es lo que la capa de presentacion necesita para renderizar.
type ConversationSnapshot struct {
	Messages            []domain.ChatMessage `json:"messages"`
	IsOpen              bool                 `json:"is_open"`
	IsSending           bool                 `json:"is_sending"`
	ValidationError     string               `json:"validation_error,omitempty"`
	RateLimitMessage    string               `json:"rate_limit_message,omitempty"`
	RemainingCharacters int                  `json:"remaining_characters"`
	Suggestions         []string             `json:"suggestions"`
}

// Conversation mantiene el estado del widget de un visitante.
// Solo admite un envio en vuelo a la vez: inFlight se toma antes de consultar el
// limiter y se suelta cuando se resuelve la respuesta o el limiter rechaza.
type Conversation struct {
	mu sync.Mutex

	visitorID        string
	messages         []domain.ChatMessage
	draft            string
	validationError  string
	rateLimitMessage string
	suggestions      []string
	inFlight         bool
	sending          bool
	closed           bool

	sender  webhook.Sender
	limiter *ChatRateLimiter
	logger  *zap.Logger
	now     func() time.Time
}

func NewConversation(visitorID string, sender webhook.Sender, limiter *ChatRateLimiter, logger *zap.Logger) *Conversation {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewChatRateLimiter(nil, logger)
	}
	c := &Conversation{
		visitorID:   strings.TrimSpace(visitorID),
		suggestions: append([]string(nil), DefaultSuggestedQuestions...),
		sender:      sender,
		limiter:     limiter,
		logger:      logger,
		now:         time.Now,
	}
	c.messages = []domain.ChatMessage{{
		ID:        WelcomeMessageID,
		Role:      domain.RoleAssistant,
		Text:      WelcomeMessageText,
		Timestamp: c.now().UnixMilli(),
	}}
	return c
}

// Submit envia el texto escrito por el visitante.
func (c *Conversation) Submit(ctx context.Context, text string) (ConversationSnapshot, error) {
	trimmed := strings.TrimSpace(text)

	c.mu.Lock()
	if err := c.checkOpenLocked(); err != nil {
		c.mu.Unlock()
		return c.Snapshot(), err
	}
	if trimmed == "" {
		c.draft = ""
		c.validationError = ErrEmptyMessage.Message
		c.mu.Unlock()
		return c.Snapshot(), ErrEmptyMessage
	}
	if c.inFlight {
		c.mu.Unlock()
		return c.Snapshot(), ErrSendInProgress
	}
	if err := ValidateMessageText(trimmed); err != nil {
		c.validationError = err.Error()
		c.mu.Unlock()
		return c.Snapshot(), err
	}
	c.inFlight = true
	c.mu.Unlock()

	if err := c.consumeRateLimit(ctx); err != nil {
		return c.Snapshot(), err
	}

	c.mu.Lock()
	c.draft = ""
	c.suggestions = nil
	placeholderID, history := c.beginExchangeLocked(trimmed)
	c.mu.Unlock()

	c.completeExchange(ctx, placeholderID, trimmed, history)
	return c.Snapshot(), nil
}

// AskSuggestion envia una de las preguntas sugeridas que aun no se uso.
func (c *Conversation) AskSuggestion(ctx context.Context, question string) (ConversationSnapshot, error) {
	c.mu.Lock()
	if err := c.checkOpenLocked(); err != nil {
		c.mu.Unlock()
		return c.Snapshot(), err
	}
	if c.inFlight {
		c.mu.Unlock()
		return c.Snapshot(), ErrSendInProgress
	}
	if c.suggestionIndexLocked(question) == -1 {
		c.mu.Unlock()
		return c.Snapshot(), ErrUnknownSuggestion
	}
	c.inFlight = true
	c.mu.Unlock()

	if err := c.consumeRateLimit(ctx); err != nil {
		return c.Snapshot(), err
	}

	c.mu.Lock()
	// Con el slot tomado nadie mas puede consumir sugerencias.
	if idx := c.suggestionIndexLocked(question); idx != -1 {
		c.suggestions = append(c.suggestions[:idx:idx], c.suggestions[idx+1:]...)
	}
	placeholderID, history := c.beginExchangeLocked(question)
	c.mu.Unlock()

	c.completeExchange(ctx, placeholderID, question, history)
	return c.Snapshot(), nil
}

// UpdateDraft valida el borrador a medida que el visitante escribe.
func (c *Conversation) UpdateDraft(text string) ConversationSnapshot {
	c.mu.Lock()
	c.draft = text
	trimmed := strings.TrimSpace(text)
	c.validationError = ""
	if trimmed != "" {
		if err := ValidateMessageText(trimmed); err != nil {
			c.validationError = err.Error()
		}
	}
	c.mu.Unlock()
	return c.Snapshot()
}

// Close oculta el widget sin descartar los mensajes. Un envio en vuelo igual se resuelve.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Reopen vuelve a mostrar el widget con el historial intacto.
func (c *Conversation) Reopen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = false
}

// InFlight indica si hay un envio tomado, aunque todavia no se vea el placeholder.
func (c *Conversation) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Conversation) Snapshot() ConversationSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	suggestions := append([]string{}, c.suggestions...)
	return ConversationSnapshot{
		Messages:            append([]domain.ChatMessage(nil), c.messages...),
		IsOpen:              !c.closed,
		IsSending:           c.sending,
		ValidationError:     c.validationError,
		RateLimitMessage:    c.rateLimitMessage,
		RemainingCharacters: RemainingCharacters(c.draft),
		Suggestions:         suggestions,
	}
}

func (c *Conversation) checkOpenLocked() error {
	if c.closed {
		return ErrConversationClosed
	}
	return nil
}

// consumeRateLimit se llama sin el lock y con el slot ya tomado, asi el I/O del
// store no bloquea los Snapshot. Si el limiter rechaza, libera el slot.
func (c *Conversation) consumeRateLimit(ctx context.Context) error {
	err := c.limiter.Allow(ctx, c.visitorID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.inFlight = false
		c.rateLimitMessage = err.Error()
		return err
	}
	c.rateLimitMessage = ""
	return nil
}

func (c *Conversation) suggestionIndexLocked(question string) int {
	for i, s := range c.suggestions {
		if s == question {
			return i
		}
	}
	return -1
}

// beginExchangeLocked agrega el mensaje del usuario y su placeholder en un solo paso
// y toma el slot de envio. El historial excluye el placeholder.
func (c *Conversation) beginExchangeLocked(text string) (string, []domain.HistoryEntry) {
	now := c.now().UnixMilli()
	userMsg := domain.ChatMessage{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Text:      text,
		Timestamp: now,
	}
	placeholder := domain.ChatMessage{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		Text:      PlaceholderText,
		Timestamp: now,
		Pending:   true,
	}

	history := make([]domain.HistoryEntry, 0, len(c.messages)+1)
	for _, m := range c.messages {
		history = append(history, m.HistoryEntry())
	}
	history = append(history, userMsg.HistoryEntry())

	c.messages = append(c.messages, userMsg, placeholder)
	c.validationError = ""
	c.sending = true
	return placeholder.ID, history
}

func (c *Conversation) completeExchange(ctx context.Context, placeholderID, text string, history []domain.HistoryEntry) {
	// La llamada no se cancela si el visitante se va; solo la corta el timeout del transporte.
	reply, err := c.send(context.WithoutCancel(ctx), text, history)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sending = false
	c.inFlight = false
	for i := range c.messages {
		if c.messages[i].ID != placeholderID {
			continue
		}
		c.messages[i].Pending = false
		c.messages[i].Timestamp = c.now().UnixMilli()
		if err != nil {
			c.logger.Error("chat webhook failed", zap.String("visitor_id", c.visitorID), zap.Error(err))
			c.messages[i].Text = TransportErrorText
			c.messages[i].Error = true
			return
		}
		c.messages[i].Text = reply
		c.messages[i].Error = false
		return
	}
}

func (c *Conversation) send(ctx context.Context, text string, history []domain.HistoryEntry) (string, error) {
	if c.sender == nil {
		return "", webhook.ErrWebhookNotConfigured
	}
	return c.sender.Send(ctx, text, history)
}
