package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultFallbackReply se muestra cuando el webhook responde sin nada usable.
const DefaultFallbackReply = "No pude obtener una respuesta del asistente. Intenta nuevamente en unos segundos."

// replyKeys se revisan en este orden dentro de un objeto JSON.
var replyKeys = []string{"reply", "message", "text"}

// StatusError indica que el webhook respondio con un status fuera de 2xx.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) != "" {
		return e.Body
	}
	return fmt.Sprintf("webhook responded with %d", e.StatusCode)
}

// ParseReply convierte la respuesta HTTP del webhook en el texto a mostrar.
func ParseReply(statusCode int, contentType, body string) (string, error) {
	if statusCode < 200 || statusCode > 299 {
		return "", &StatusError{StatusCode: statusCode, Body: body}
	}

	trimmed := strings.TrimSpace(body)
	if trimmed != "" && strings.Contains(strings.ToLower(contentType), "application/json") {
		var payload any
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
			if reply, ok := extractReply(payload); ok {
				return reply, nil
			}
		}
	}

	if trimmed != "" {
		return trimmed, nil
	}
	return DefaultFallbackReply, nil
}

func extractReply(payload any) (string, bool) {
	switch v := payload.(type) {
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case map[string]any:
		for _, key := range replyKeys {
			raw, ok := v[key].(string)
			if !ok {
				continue
			}
			if s := strings.TrimSpace(raw); s != "" {
				return s, true
			}
		}
	case []any:
		for _, item := range v {
			if s, ok := extractReply(item); ok {
				return s, true
			}
		}
	}
	return "", false
}
