package domain

// Role identifica al autor de un mensaje del chat.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage es un mensaje visible en el widget. Timestamp en epoch millis.
type ChatMessage struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Pending   bool   `json:"pending,omitempty"`
	Error     bool   `json:"error,omitempty"`
}

// HistoryEntry es la forma en que un mensaje viaja al webhook.
type HistoryEntry struct {
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

func (m ChatMessage) HistoryEntry() HistoryEntry {
	return HistoryEntry{Role: m.Role, Text: m.Text, Timestamp: m.Timestamp}
}
