package email

import (
	"context"
	"errors"

	"portfolio-chat/internal/domain"
)

// Sender define la interfaz para reenviar mensajes del formulario de contacto.
type Sender interface {
	SendContactMessage(ctx context.Context, req domain.ContactRequest) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendContactMessage(_ context.Context, _ domain.ContactRequest) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
