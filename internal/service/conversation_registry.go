package service

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"portfolio-chat/internal/webhook"
)

// DefaultConversationIdleTTL es cuanto sobrevive una conversacion sin actividad.
const DefaultConversationIdleTTL = 2 * time.Hour

const registrySweepInterval = time.Minute

type registryEntry struct {
	conv     *Conversation
	lastSeen time.Time
}

// ConversationRegistry guarda en memoria las conversaciones por visitante.
// Los mensajes nunca se persisten: cerrar el widget solo lo oculta y las
// conversaciones inactivas se descartan pasado idleTTL.
type ConversationRegistry struct {
	mu        sync.Mutex
	entries   map[string]*registryEntry
	sender    webhook.Sender
	limiter   *ChatRateLimiter
	logger    *zap.Logger
	idleTTL   time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewConversationRegistry(sender webhook.Sender, limiter *ChatRateLimiter, logger *zap.Logger) *ConversationRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = NewChatRateLimiter(nil, logger)
	}
	return &ConversationRegistry{
		entries: make(map[string]*registryEntry),
		sender:  sender,
		limiter: limiter,
		logger:  logger,
		idleTTL: DefaultConversationIdleTTL,
		now:     time.Now,
	}
}

func (r *ConversationRegistry) WithIdleTTL(ttl time.Duration) *ConversationRegistry {
	if ttl > 0 {
		r.idleTTL = ttl
	}
	return r
}

func (r *ConversationRegistry) WithClock(now func() time.Time) *ConversationRegistry {
	if now != nil {
		r.now = now
	}
	return r
}

// Open devuelve la conversacion del visitante, creandola si no existe.
// Una conversacion cerrada se vuelve a mostrar con su historial.
func (r *ConversationRegistry) Open(visitorID string) *Conversation {
	visitorID = strings.TrimSpace(visitorID)
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= registrySweepInterval {
		r.sweepLocked(now)
	}

	if entry, ok := r.entries[visitorID]; ok {
		entry.lastSeen = now
		entry.conv.Reopen()
		return entry.conv
	}
	conv := NewConversation(visitorID, r.sender, r.limiter, r.logger)
	r.entries[visitorID] = &registryEntry{conv: conv, lastSeen: now}
	r.logger.Info("conversation opened", zap.String("visitor_id", visitorID))
	return conv
}

// Close oculta la conversacion. Devuelve false si no existia.
func (r *ConversationRegistry) Close(visitorID string) bool {
	visitorID = strings.TrimSpace(visitorID)
	r.mu.Lock()
	entry, ok := r.entries[visitorID]
	if ok {
		entry.lastSeen = r.now()
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	entry.conv.Close()
	r.logger.Info("conversation closed", zap.String("visitor_id", visitorID))
	return true
}

// Sweep descarta las conversaciones inactivas y devuelve cuantas quito.
func (r *ConversationRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(r.now())
}

// sweepLocked respeta los envios en vuelo: su respuesta todavia tiene que resolverse.
func (r *ConversationRegistry) sweepLocked(now time.Time) int {
	removed := 0
	for id, entry := range r.entries {
		if now.Sub(entry.lastSeen) < r.idleTTL || entry.conv.InFlight() {
			continue
		}
		entry.conv.Close()
		delete(r.entries, id)
		removed++
	}
	r.lastSweep = now
	if removed > 0 {
		r.logger.Info("idle conversations evicted", zap.Int("count", removed))
	}
	return removed
}

func (r *ConversationRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
