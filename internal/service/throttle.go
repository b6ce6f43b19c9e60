package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Throttle cuenta pedidos por clave (normalmente la IP) en ventanas fijas.
type Throttle interface {
	Take(ctx context.Context, key string) ThrottleResult
}

// ThrottleResult es la decision para un pedido; RetryAfter solo aplica si fue rechazado.
type ThrottleResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

// ThrottledError envuelve el sentinel del caso de uso con el tiempo de espera.
type ThrottledError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return e.Err.Error()
}

func (e *ThrottledError) Unwrap() error {
	return e.Err
}

func throttleKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "unknown"
	}
	return key
}

type fixedWindow struct {
	start time.Time
	count int
}

// MemoryThrottle guarda una ventana por clave y descarta las vencidas.
type MemoryThrottle struct {
	mu        sync.Mutex
	window    time.Duration
	limit     int
	now       func() time.Time
	windows   map[string]fixedWindow
	lastSweep time.Time
}

func NewMemoryThrottle(window time.Duration, limit int) *MemoryThrottle {
	if window <= 0 {
		window = time.Minute
	}
	if limit <= 0 {
		limit = 1
	}
	return &MemoryThrottle{
		window:  window,
		limit:   limit,
		now:     time.Now,
		windows: make(map[string]fixedWindow),
	}
}

func (t *MemoryThrottle) WithClock(now func() time.Time) *MemoryThrottle {
	if now != nil {
		t.now = now
	}
	return t
}

func (t *MemoryThrottle) Take(_ context.Context, key string) ThrottleResult {
	key = throttleKey(key)

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.sweepLocked(now)

	w, ok := t.windows[key]
	if !ok || now.Sub(w.start) >= t.window {
		w = fixedWindow{start: now}
	}
	if w.count >= t.limit {
		t.windows[key] = w
		return ThrottleResult{RetryAfter: w.start.Add(t.window).Sub(now)}
	}
	w.count++
	t.windows[key] = w
	return ThrottleResult{Allowed: true}
}

// Len devuelve cuantas claves siguen en memoria.
func (t *MemoryThrottle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}

// sweepLocked recorre el mapa a lo sumo una vez por ventana.
func (t *MemoryThrottle) sweepLocked(now time.Time) {
	if now.Sub(t.lastSweep) < t.window {
		return
	}
	for k, w := range t.windows {
		if now.Sub(w.start) >= t.window {
			delete(t.windows, k)
		}
	}
	t.lastSweep = now
}

// redisThrottleScript incrementa el contador y devuelve {cuenta, ms hasta que vence}.
// Si la clave quedo sin TTL se lo repone.
const redisThrottleScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisThrottle struct {
	client redisEvaler
	prefix string
	window time.Duration
	limit  int
	logger *zap.Logger
}

// NewRedisThrottle comparte la ventana entre replicas. Ante errores de Redis deja pasar.
func NewRedisThrottle(client *redis.Client, prefix string, window time.Duration, limit int, logger *zap.Logger) Throttle {
	if client == nil {
		return nil
	}
	return newRedisThrottle(client, prefix, window, limit, logger)
}

func newRedisThrottle(client redisEvaler, prefix string, window time.Duration, limit int, logger *zap.Logger) *redisThrottle {
	if window < time.Millisecond {
		window = time.Minute
	}
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisThrottle{
		client: client,
		prefix: prefix,
		window: window,
		limit:  limit,
		logger: logger,
	}
}

func (t *redisThrottle) Take(ctx context.Context, key string) ThrottleResult {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	redisKey := t.prefix + throttleKey(key)
	vals, err := t.client.Eval(ctx, redisThrottleScript, []string{redisKey}, t.window.Milliseconds()).Int64Slice()
	if err != nil || len(vals) != 2 {
		t.logger.Warn("redis throttle unavailable, allowing", zap.String("key", redisKey), zap.Error(err))
		return ThrottleResult{Allowed: true}
	}
	if vals[0] > int64(t.limit) {
		return ThrottleResult{RetryAfter: time.Duration(vals[1]) * time.Millisecond}
	}
	return ThrottleResult{Allowed: true}
}
