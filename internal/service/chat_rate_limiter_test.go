package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio-chat/internal/domain"
)

func TestConsumeRateLimit_PerMinuteCap(t *testing.T) {
	state := domain.RateLimitState{}
	now := int64(1_700_000_000_000)

	for i := 0; i < MaxMessagesPerMinute; i++ {
		var err *RateLimitError
		state, err = ConsumeRateLimit(state, now+int64(i)*1000)
		if err != nil {
			t.Fatalf("message %d: expected accept, got %v", i+1, err)
		}
	}

	next, err := ConsumeRateLimit(state, now+10_000)
	if err == nil || err.Reason != PerMinuteLimitExceeded {
		t.Fatalf("expected per-minute rejection, got %v", err)
	}
	if next.SessionCount != MaxMessagesPerMinute {
		t.Fatalf("rejection must not increment session count, got %d", next.SessionCount)
	}
	if len(next.Timestamps) != MaxMessagesPerMinute {
		t.Fatalf("expected %d timestamps, got %d", MaxMessagesPerMinute, len(next.Timestamps))
	}

	// Pasada la ventana desde el mas viejo, se libera un lugar.
	after, err := ConsumeRateLimit(next, now+60_001)
	if err != nil {
		t.Fatalf("expected accept after oldest timestamp expired, got %v", err)
	}
	if after.SessionCount != MaxMessagesPerMinute+1 {
		t.Fatalf("expected session count %d, got %d", MaxMessagesPerMinute+1, after.SessionCount)
	}
	if len(after.Timestamps) != MaxMessagesPerMinute {
		t.Fatalf("expected pruned timestamps, got %v", after.Timestamps)
	}
}

func TestConsumeRateLimit_SessionCap(t *testing.T) {
	state := domain.RateLimitState{}
	start := int64(1_700_000_000_000)

	for i := 0; i < MaxSessionMessages; i++ {
		var err *RateLimitError
		state, err = ConsumeRateLimit(state, start+int64(i)*16_000)
		if err != nil {
			t.Fatalf("message %d: expected accept, got %v", i+1, err)
		}
	}
	if state.SessionResetAt != start+sessionWindowMs {
		t.Fatalf("expected reset anchored at first send, got %d", state.SessionResetAt)
	}

	now := start + int64(MaxSessionMessages)*16_000
	next, err := ConsumeRateLimit(state, now)
	if err == nil || err.Reason != SessionLimitExceeded {
		t.Fatalf("expected session rejection, got %v", err)
	}
	if err.HoursRemaining != 24 {
		t.Fatalf("expected 24 hours remaining, got %d", err.HoursRemaining)
	}
	if next.SessionCount != MaxSessionMessages {
		t.Fatalf("expected session count preserved, got %d", next.SessionCount)
	}

	// Cerca del final de la ventana el minimo reportado es 1 hora.
	_, err = ConsumeRateLimit(next, state.SessionResetAt-1)
	if err == nil || err.HoursRemaining != 1 {
		t.Fatalf("expected 1 hour remaining, got %v", err)
	}

	reset, err := ConsumeRateLimit(next, state.SessionResetAt)
	if err != nil {
		t.Fatalf("expected accept after session window, got %v", err)
	}
	if reset.SessionCount != 1 || reset.SessionResetAt != state.SessionResetAt+sessionWindowMs {
		t.Fatalf("expected fresh session, got %+v", reset)
	}
}

func TestConsumeRateLimit_PrunesOnRejection(t *testing.T) {
	now := int64(10_000_000)
	state := domain.RateLimitState{
		SessionCount:   MaxSessionMessages,
		SessionResetAt: now + hourMs,
		Timestamps:     []int64{now - 120_000, now - 61_000},
	}

	next, err := ConsumeRateLimit(state, now)
	if err == nil || err.Reason != SessionLimitExceeded {
		t.Fatalf("expected session rejection, got %v", err)
	}
	if len(next.Timestamps) != 0 {
		t.Fatalf("expected expired timestamps pruned, got %v", next.Timestamps)
	}
	if len(state.Timestamps) != 2 {
		t.Fatalf("input state must not be mutated")
	}
}

func TestConsumeRateLimit_ExpiredSessionResets(t *testing.T) {
	now := int64(50_000_000)
	state := domain.RateLimitState{SessionCount: 7, SessionResetAt: now - 1}

	next, err := ConsumeRateLimit(state, now)
	if err != nil {
		t.Fatalf("expected accept, got %v", err)
	}
	if next.SessionCount != 1 || next.SessionResetAt != now+sessionWindowMs {
		t.Fatalf("expected reset session, got %+v", next)
	}
}

func TestConsumeRateLimit_StrayCountWithoutWindowResets(t *testing.T) {
	state := domain.RateLimitState{SessionCount: MaxSessionMessages, SessionResetAt: 0}
	if _, err := ConsumeRateLimit(state, 1000); err != nil {
		t.Fatalf("count without active window must reset, got %v", err)
	}
}

func TestRateLimitError_Messages(t *testing.T) {
	perMinute := &RateLimitError{Reason: PerMinuteLimitExceeded}
	if perMinute.Error() != "Solo puedes enviar 4 mensajes por minuto. Intenta en unos segundos." {
		t.Fatalf("unexpected message %q", perMinute.Error())
	}
	oneHour := &RateLimitError{Reason: SessionLimitExceeded, HoursRemaining: 1}
	if oneHour.Error() != "Alcanzaste el máximo de 10 mensajes por día. Vuelve en 1 hora." {
		t.Fatalf("unexpected message %q", oneHour.Error())
	}
	hours := &RateLimitError{Reason: SessionLimitExceeded, HoursRemaining: 5}
	if hours.Error() != "Alcanzaste el máximo de 10 mensajes por día. Vuelve en 5 horas." {
		t.Fatalf("unexpected message %q", hours.Error())
	}
	if !errors.Is(hours, ErrRateLimited) {
		t.Fatalf("expected errors.Is ErrRateLimited")
	}
}

type recordingRateLimitStore struct {
	state   domain.RateLimitState
	loadErr error
	saveErr error
	saves   int
	lastKey string
}

func (s *recordingRateLimitStore) Load(_ context.Context, key string) (domain.RateLimitState, error) {
	s.lastKey = key
	if s.loadErr != nil {
		return domain.RateLimitState{}, s.loadErr
	}
	return s.state.Clone(), nil
}

func (s *recordingRateLimitStore) Save(_ context.Context, key string, state domain.RateLimitState) error {
	s.lastKey = key
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.state = state.Clone()
	return nil
}

func TestChatRateLimiter_PersistsOnEveryCall(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	store := &recordingRateLimitStore{
		state: domain.RateLimitState{Timestamps: []int64{
			now.UnixMilli() - 100_000,
			now.UnixMilli() - 3000,
			now.UnixMilli() - 2000,
			now.UnixMilli() - 1000,
			now.UnixMilli() - 500,
		}, SessionCount: 4, SessionResetAt: now.UnixMilli() + hourMs},
	}
	limiter := NewChatRateLimiter(store, nil)

	err := limiter.CheckAndConsume(context.Background(), " visitor-1 ", now)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("expected rejection to persist, got %d saves", store.saves)
	}
	if store.lastKey != "visitor-1" {
		t.Fatalf("expected trimmed key, got %q", store.lastKey)
	}
	if len(store.state.Timestamps) != 4 {
		t.Fatalf("expected pruned state persisted, got %v", store.state.Timestamps)
	}

	if err := limiter.CheckAndConsume(context.Background(), "visitor-1", now.Add(61*time.Second)); err != nil {
		t.Fatalf("expected accept after window, got %v", err)
	}
	if store.saves != 2 || store.state.SessionCount != 5 {
		t.Fatalf("expected accepted state persisted, got %+v (%d saves)", store.state, store.saves)
	}
}

func TestChatRateLimiter_StoreFailuresDegrade(t *testing.T) {
	store := &recordingRateLimitStore{
		loadErr: errors.New("storage disabled"),
		saveErr: errors.New("quota exceeded"),
	}
	limiter := NewChatRateLimiter(store, nil)

	if err := limiter.CheckAndConsume(context.Background(), "v1", time.Now()); err != nil {
		t.Fatalf("expected store failures to be non-fatal, got %v", err)
	}
}

func TestChatRateLimiter_AllowUsesClock(t *testing.T) {
	current := time.UnixMilli(1_700_000_000_000)
	limiter := NewChatRateLimiter(nil, nil).WithClock(func() time.Time { return current })
	ctx := context.Background()

	for i := 0; i < MaxMessagesPerMinute; i++ {
		if err := limiter.Allow(ctx, "v1"); err != nil {
			t.Fatalf("message %d: expected accept, got %v", i+1, err)
		}
	}
	if err := limiter.Allow(ctx, "v1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected per-minute rejection, got %v", err)
	}
	if err := limiter.Allow(ctx, "v2"); err != nil {
		t.Fatalf("expected other visitor unaffected, got %v", err)
	}

	current = current.Add(time.Minute)
	if err := limiter.Allow(ctx, "v1"); err != nil {
		t.Fatalf("expected accept after a minute, got %v", err)
	}
}

type blockingRateLimitStore struct {
	RateLimitStore
	blockKey string
	entered  chan struct{}
	release  chan struct{}
}

func (s *blockingRateLimitStore) Load(ctx context.Context, key string) (domain.RateLimitState, error) {
	if key == s.blockKey {
		close(s.entered)
		<-s.release
	}
	return s.RateLimitStore.Load(ctx, key)
}

func TestChatRateLimiter_SlowKeyDoesNotBlockOthers(t *testing.T) {
	store := &blockingRateLimitStore{
		RateLimitStore: NewMemoryRateLimitStore(),
		blockKey:       "slow-visitor",
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	limiter := NewChatRateLimiter(store, nil)

	other := ""
	for i := 0; i < 256; i++ {
		candidate := "visitor-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		if limiter.lockFor(candidate) != limiter.lockFor(store.blockKey) {
			other = candidate
			break
		}
	}
	if other == "" {
		t.Fatalf("no key on a different stripe")
	}

	slowDone := make(chan error, 1)
	go func() { slowDone <- limiter.Allow(context.Background(), store.blockKey) }()
	<-store.entered

	fastDone := make(chan error, 1)
	go func() { fastDone <- limiter.Allow(context.Background(), other) }()
	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("expected other visitor accepted, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("other visitor blocked behind slow store call")
	}

	close(store.release)
	if err := <-slowDone; err != nil {
		t.Fatalf("slow visitor: %v", err)
	}
}
