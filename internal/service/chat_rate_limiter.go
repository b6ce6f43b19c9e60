package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"portfolio-chat/internal/domain"
)

const (
	MaxMessagesPerMinute = 4
	MaxSessionMessages   = 10

	rateWindowMs    int64 = 60 * 1000
	sessionWindowMs int64 = 24 * 60 * 60 * 1000
	hourMs          int64 = 60 * 60 * 1000
)

// RateLimitReason identifica que limite rechazo el envio.
type RateLimitReason string

const (
	PerMinuteLimitExceeded RateLimitReason = "per_minute_limit_exceeded"
	SessionLimitExceeded   RateLimitReason = "session_limit_exceeded"
)

var ErrRateLimited = errors.New("rate limited")

// RateLimitError describe un rechazo; HoursRemaining solo aplica al limite de sesion.
type RateLimitError struct {
	Reason         RateLimitReason
	HoursRemaining int
}

func (e *RateLimitError) Error() string {
	if e.Reason == SessionLimitExceeded {
		unit := "horas"
		if e.HoursRemaining == 1 {
			unit = "hora"
		}
		return fmt.Sprintf("Alcanzaste el máximo de %d mensajes por día. Vuelve en %d %s.", MaxSessionMessages, e.HoursRemaining, unit)
	}
	return fmt.Sprintf("Solo puedes enviar %d mensajes por minuto. Intenta en unos segundos.", MaxMessagesPerMinute)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// ConsumeRateLimit aplica las dos ventanas sobre state en el instante now (epoch millis).
// Devuelve siempre el estado a persistir: podado si se rechaza, incrementado si se acepta.
func ConsumeRateLimit(state domain.RateLimitState, now int64) (domain.RateLimitState, *RateLimitError) {
	next := domain.RateLimitState{
		SessionCount:   state.SessionCount,
		SessionResetAt: state.SessionResetAt,
	}
	if next.SessionResetAt == 0 || now >= next.SessionResetAt {
		next.SessionCount = 0
		next.SessionResetAt = 0
	}

	next.Timestamps = make([]int64, 0, len(state.Timestamps)+1)
	for _, ts := range state.Timestamps {
		if now-ts < rateWindowMs {
			next.Timestamps = append(next.Timestamps, ts)
		}
	}

	if len(next.Timestamps) >= MaxMessagesPerMinute {
		return next, &RateLimitError{Reason: PerMinuteLimitExceeded}
	}

	if next.SessionCount >= MaxSessionMessages {
		remaining := next.SessionResetAt - now
		hours := int((remaining + hourMs - 1) / hourMs)
		if hours < 1 {
			hours = 1
		}
		return next, &RateLimitError{Reason: SessionLimitExceeded, HoursRemaining: hours}
	}

	next.Timestamps = append(next.Timestamps, now)
	next.SessionCount++
	if next.SessionResetAt == 0 {
		next.SessionResetAt = now + sessionWindowMs
	}
	return next, nil
}

const limiterStripes = 64

// ChatRateLimiter limita los envios del chat por visitante usando un RateLimitStore.
// La lectura-modificacion-escritura se serializa por clave dentro del proceso;
// varias replicas sobre el mismo store no se coordinan entre si.
type ChatRateLimiter struct {
	stripes  [limiterStripes]sync.Mutex
	store    RateLimitStore
	logger   *zap.Logger
	now      func() time.Time
	rejected metric.Int64Counter
}

func NewChatRateLimiter(store RateLimitStore, logger *zap.Logger) *ChatRateLimiter {
	if store == nil {
		store = NewMemoryRateLimitStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rejected, err := otel.Meter("portfolio-chat/service").Int64Counter(
		"chat.rate_limited",
		metric.WithDescription("Mensajes rechazados por rate limit"),
	)
	if err != nil {
		logger.Warn("rate limit counter", zap.Error(err))
	}
	return &ChatRateLimiter{
		store:    store,
		logger:   logger,
		now:      time.Now,
		rejected: rejected,
	}
}

// WithClock reemplaza el reloj; pensado para tests y clientes embebidos.
func (l *ChatRateLimiter) WithClock(now func() time.Time) *ChatRateLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

// Allow consume un envio para key en el instante actual.
func (l *ChatRateLimiter) Allow(ctx context.Context, key string) error {
	return l.CheckAndConsume(ctx, key, l.now())
}

// CheckAndConsume carga, evalua y persiste el estado de key dentro de la misma seccion critica.
func (l *ChatRateLimiter) CheckAndConsume(ctx context.Context, key string, now time.Time) error {
	key = strings.TrimSpace(key)

	mu := l.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	state, err := l.store.Load(ctx, key)
	if err != nil {
		l.logger.Warn("rate limit load failed, using empty state", zap.String("key", key), zap.Error(err))
		state = domain.RateLimitState{}
	}

	next, rlErr := ConsumeRateLimit(state, now.UnixMilli())

	if err := l.store.Save(ctx, key, next); err != nil {
		l.logger.Warn("rate limit save failed", zap.String("key", key), zap.Error(err))
	}

	if rlErr != nil {
		if l.rejected != nil {
			l.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(rlErr.Reason))))
		}
		l.logger.Info("chat message rate limited",
			zap.String("key", key),
			zap.String("reason", string(rlErr.Reason)),
		)
		return rlErr
	}
	return nil
}

func (l *ChatRateLimiter) lockFor(key string) *sync.Mutex {
	return &l.stripes[xxhash.Sum64String(key)%limiterStripes]
}
