package service

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

const (
	MinMessageLength = 3
	MaxMessageLength = 600
)

var urlPattern = regexp.MustCompile(`(?i)(https?://|www\.)`)

// ValidationError es un error local del texto del mensaje; nunca llega al webhook.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrEmptyMessage       = &ValidationError{Code: "empty_message", Message: "Escribe un mensaje antes de enviarlo."}
	ErrMessageTooShort    = &ValidationError{Code: "too_short", Message: fmt.Sprintf("Escribe al menos %d caracteres.", MinMessageLength)}
	ErrMessageTooLong     = &ValidationError{Code: "too_long", Message: fmt.Sprintf("El mensaje supera el máximo de %d caracteres.", MaxMessageLength)}
	ErrMessageContainsURL = &ValidationError{Code: "contains_url", Message: "Por seguridad, evita compartir enlaces o URLs."}
)

// ValidateMessageText revisa un texto ya recortado. Gana la primera regla que falle.
func ValidateMessageText(text string) error {
	length := utf8.RuneCountInString(text)
	switch {
	case length == 0:
		return ErrEmptyMessage
	case length < MinMessageLength:
		return ErrMessageTooShort
	case length > MaxMessageLength:
		return ErrMessageTooLong
	case urlPattern.MatchString(text):
		return ErrMessageContainsURL
	}
	return nil
}

// RemainingCharacters calcula cuantos caracteres quedan para el borrador.
func RemainingCharacters(draft string) int {
	remaining := MaxMessageLength - utf8.RuneCountInString(draft)
	if remaining < 0 {
		return 0
	}
	return remaining
}
