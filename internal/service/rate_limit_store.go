package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"portfolio-chat/internal/domain"
)

// RateLimitStore persiste el estado de rate limit por clave de visitante.
// Un valor ausente se devuelve como estado cero, sin error.
type RateLimitStore interface {
	Load(ctx context.Context, key string) (domain.RateLimitState, error)
	Save(ctx context.Context, key string, state domain.RateLimitState) error
}

// stateTTL es cuanto vive una clave sin escrituras; pasado ese plazo su estado ya es cero.
const stateTTL = time.Duration(sessionWindowMs)*time.Millisecond + time.Minute

type memoryEntry struct {
	state     domain.RateLimitState
	expiresAt time.Time
}

type memoryRateLimitStore struct {
	mu        sync.Mutex
	items     map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryRateLimitStore vence cada clave igual que el TTL de Redis.
func NewMemoryRateLimitStore() RateLimitStore {
	return newMemoryRateLimitStore(time.Now)
}

func newMemoryRateLimitStore(now func() time.Time) *memoryRateLimitStore {
	return &memoryRateLimitStore{
		items: make(map[string]memoryEntry),
		now:   now,
	}
}

func (s *memoryRateLimitStore) Load(_ context.Context, key string) (domain.RateLimitState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[key]
	if !ok || !s.now().Before(entry.expiresAt) {
		return domain.RateLimitState{}, nil
	}
	return entry.state.Clone(), nil
}

func (s *memoryRateLimitStore) Save(_ context.Context, key string, state domain.RateLimitState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.items[key] = memoryEntry{state: state.Clone(), expiresAt: now.Add(stateTTL)}
	s.sweepLocked(now)
	return nil
}

// sweepLocked corre como mucho una vez por minuto.
func (s *memoryRateLimitStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < time.Minute {
		return
	}
	for key, entry := range s.items {
		if !now.Before(entry.expiresAt) {
			delete(s.items, key)
		}
	}
	s.lastSweep = now
}

func (s *memoryRateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type redisRateLimitStore struct {
	client redisKV
	prefix string
	ttl    time.Duration
}

// NewRedisRateLimitStore guarda cada estado como JSON con TTL de una sesion completa.
func NewRedisRateLimitStore(client *redis.Client) RateLimitStore {
	if client == nil {
		return nil
	}
	return &redisRateLimitStore{
		client: client,
		prefix: "chat:rl:",
		ttl:    stateTTL,
	}
}

func (s *redisRateLimitStore) Load(ctx context.Context, key string) (domain.RateLimitState, error) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RateLimitState{}, nil
	}
	if err != nil {
		return domain.RateLimitState{}, err
	}
	return DecodeRateLimitState(raw), nil
}

func (s *redisRateLimitStore) Save(ctx context.Context, key string, state domain.RateLimitState) error {
	payload, err := EncodeRateLimitState(state)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+key, payload, s.ttl).Err()
}

// EncodeRateLimitState serializa el estado con timestamps siempre como arreglo.
func EncodeRateLimitState(state domain.RateLimitState) ([]byte, error) {
	if state.Timestamps == nil {
		state.Timestamps = []int64{}
	}
	return json.Marshal(state)
}

// DecodeRateLimitState nunca falla: un valor malformado se trata como estado cero
// y los campos no numericos se descartan.
func DecodeRateLimitState(raw []byte) domain.RateLimitState {
	var snapshot struct {
		SessionCount   any `json:"sessionCount"`
		SessionResetAt any `json:"sessionResetAt"`
		Timestamps     any `json:"timestamps"`
	}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return domain.RateLimitState{}
	}

	state := domain.RateLimitState{Timestamps: []int64{}}
	if n, ok := toNumber(snapshot.SessionCount); ok && n > 0 {
		state.SessionCount = int(n)
	}
	if n, ok := toNumber(snapshot.SessionResetAt); ok && n > 0 {
		state.SessionResetAt = int64(n)
	}
	if items, ok := snapshot.Timestamps.([]any); ok {
		for _, item := range items {
			if n, ok := toNumber(item); ok {
				state.Timestamps = append(state.Timestamps, int64(n))
			}
		}
	}
	return state
}

func toNumber(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
