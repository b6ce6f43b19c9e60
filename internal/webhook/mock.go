package webhook

import (
	"context"
	"sync"

	"portfolio-chat/internal/domain"
)

// MockSender permite tests sin llamar al webhook real.
type MockSender struct {
	mu      sync.Mutex
	Reply   string
	Err     error
	Calls   int
	Message string
	History []domain.HistoryEntry
	// Block, si no es nil, retiene Send hasta que se cierre.
	Block chan struct{}
}

func (m *MockSender) Send(ctx context.Context, message string, history []domain.HistoryEntry) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.Message = message
	m.History = append([]domain.HistoryEntry(nil), history...)
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.Reply, m.Err
}

// LastCall devuelve el ultimo mensaje e historial recibidos.
func (m *MockSender) LastCall() (string, []domain.HistoryEntry, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Message, m.History, m.Calls
}
