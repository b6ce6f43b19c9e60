package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"portfolio-chat/internal/domain"
)

type mockContactSender struct {
	last  domain.ContactRequest
	calls int
	err   error
}

func (m *mockContactSender) SendContactMessage(_ context.Context, req domain.ContactRequest) error {
	m.calls++
	m.last = req
	return m.err
}

type mockThrottle struct {
	allow      bool
	retryAfter time.Duration
	lastKey    string
}

func (m *mockThrottle) Take(_ context.Context, key string) ThrottleResult {
	m.lastKey = key
	if !m.allow {
		return ThrottleResult{RetryAfter: m.retryAfter}
	}
	return ThrottleResult{Allowed: true}
}

func validContact() domain.ContactRequest {
	return domain.ContactRequest{
		Name:     " Ana ",
		Email:    " Ana@Example.com ",
		Subject:  "Propuesta",
		Message:  "Hola, me gustaria hablar de un proyecto.",
		ClientIP: "10.0.0.1",
	}
}

func TestContactServiceSubmit_Success(t *testing.T) {
	sender := &mockContactSender{}
	limiter := &mockThrottle{allow: true}
	svc := NewContactService(nil, sender, limiter)

	if err := svc.Submit(context.Background(), validContact()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sender.calls != 1 {
		t.Fatalf("expected one email, got %d", sender.calls)
	}
	if sender.last.Name != "Ana" || sender.last.Email != "ana@example.com" {
		t.Fatalf("expected normalized fields, got %+v", sender.last)
	}
	if sender.last.CreatedAt.IsZero() {
		t.Fatalf("expected created_at default")
	}
	if limiter.lastKey != "10.0.0.1" {
		t.Fatalf("expected limiter keyed by ip, got %q", limiter.lastKey)
	}
}

func TestContactServiceSubmit_Validation(t *testing.T) {
	sender := &mockContactSender{}
	svc := NewContactService(nil, sender, &mockThrottle{allow: true})

	mutations := []func(*domain.ContactRequest){
		func(r *domain.ContactRequest) { r.Name = "A" },
		func(r *domain.ContactRequest) { r.Email = "not-an-email" },
		func(r *domain.ContactRequest) { r.Email = "Ana <ana@example.com>" },
		func(r *domain.ContactRequest) { r.Subject = strings.Repeat("s", 151) },
		func(r *domain.ContactRequest) { r.Message = "corto" },
		func(r *domain.ContactRequest) { r.Message = strings.Repeat("m", 2001) },
		func(r *domain.ContactRequest) { r.Message = "mira mi sitio en https://example.com por favor" },
	}
	for i, mutate := range mutations {
		req := validContact()
		mutate(&req)
		if err := svc.Submit(context.Background(), req); !errors.Is(err, ErrContactInvalid) {
			t.Fatalf("case %d expected ErrContactInvalid, got %v", i, err)
		}
	}
	if sender.calls != 0 {
		t.Fatalf("invalid requests must not be sent")
	}
}

func TestContactServiceSubmit_RateLimited(t *testing.T) {
	sender := &mockContactSender{}
	svc := NewContactService(nil, sender, &mockThrottle{allow: false, retryAfter: 25 * time.Minute})

	err := svc.Submit(context.Background(), validContact())
	if !errors.Is(err, ErrContactRateLimited) {
		t.Fatalf("expected ErrContactRateLimited, got %v", err)
	}
	var throttled *ThrottledError
	if !errors.As(err, &throttled) || throttled.RetryAfter != 25*time.Minute {
		t.Fatalf("expected retry after 25m, got %v", err)
	}
	if sender.calls != 0 {
		t.Fatalf("throttled requests must not be sent")
	}
}

func TestContactServiceSubmit_SendFailure(t *testing.T) {
	sender := &mockContactSender{err: errors.New("smtp down")}
	svc := NewContactService(nil, sender, &mockThrottle{allow: true})

	if err := svc.Submit(context.Background(), validContact()); !errors.Is(err, ErrContactSendFailure) {
		t.Fatalf("expected ErrContactSendFailure, got %v", err)
	}
}

func TestContactService_NotConfigured(t *testing.T) {
	var svc *ContactService
	if err := svc.Submit(context.Background(), validContact()); !errors.Is(err, ErrContactNotConfigured) {
		t.Fatalf("expected ErrContactNotConfigured, got %v", err)
	}
}
