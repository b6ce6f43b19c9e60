package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"portfolio-chat/internal/domain"
	"portfolio-chat/internal/email"
)

var (
	ErrContactInvalid       = errors.New("contact request invalid")
	ErrContactRateLimited   = errors.New("contact rate limited")
	ErrContactSendFailure   = errors.New("contact email send failed")
	ErrContactNotConfigured = errors.New("contact service not configured")
)

// ContactService valida y reenvia por email los mensajes del formulario de contacto.
type ContactService struct {
	logger  *zap.Logger
	sender  email.Sender
	limiter Throttle
}

const (
	ContactLimitPerWindow = 5
	ContactWindow         = time.Hour
)

// NewContactService usa un throttle en memoria de 5 por hora si limiter es nil.
func NewContactService(logger *zap.Logger, sender email.Sender, limiter Throttle) *ContactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewMemoryThrottle(ContactWindow, ContactLimitPerWindow)
	}
	return &ContactService{
		logger:  logger,
		sender:  sender,
		limiter: limiter,
	}
}

func (s *ContactService) Submit(ctx context.Context, req domain.ContactRequest) error {
	if s == nil || s.sender == nil {
		return ErrContactNotConfigured
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)

	if err := validateContact(req); err != nil {
		return err
	}
	if res := s.limiter.Take(ctx, req.ClientIP); !res.Allowed {
		s.logger.Info("contact throttled", zap.String("client_ip", req.ClientIP))
		return &ThrottledError{Err: ErrContactRateLimited, RetryAfter: res.RetryAfter}
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	if err := s.sender.SendContactMessage(ctx, req); err != nil {
		s.logger.Warn("contact email failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrContactSendFailure, err)
	}
	s.logger.Info("contact message forwarded", zap.String("email", req.Email))
	return nil
}

func validateContact(req domain.ContactRequest) error {
	nameLen := utf8.RuneCountInString(req.Name)
	if nameLen < 2 || nameLen > 100 {
		return fmt.Errorf("%w: name", ErrContactInvalid)
	}
	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email {
		return fmt.Errorf("%w: email", ErrContactInvalid)
	}
	if utf8.RuneCountInString(req.Subject) > 150 {
		return fmt.Errorf("%w: subject", ErrContactInvalid)
	}
	msgLen := utf8.RuneCountInString(req.Message)
	if msgLen < 10 || msgLen > 2000 {
		return fmt.Errorf("%w: message", ErrContactInvalid)
	}
	if urlPattern.MatchString(req.Message) {
		return fmt.Errorf("%w: message", ErrContactInvalid)
	}
	return nil
}
