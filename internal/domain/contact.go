package domain

import "time"

// ContactRequest es lo que envia el formulario de contacto del sitio.
type ContactRequest struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message"`
	ClientIP  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
