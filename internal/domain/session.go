package domain

import "time"

// VisitorSession identifica a un visitante anonimo del widget.
type VisitorSession struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
