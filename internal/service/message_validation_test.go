package service

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateMessageText(t *testing.T) {
	cases := []struct {
		name string
		text string
		want error
	}{
		{name: "empty", text: "", want: ErrEmptyMessage},
		{name: "too short", text: "ab", want: ErrMessageTooShort},
		{name: "min length", text: "abc", want: nil},
		{name: "max length", text: strings.Repeat("a", MaxMessageLength), want: nil},
		{name: "too long", text: strings.Repeat("a", MaxMessageLength+1), want: ErrMessageTooLong},
		{name: "http url", text: "mira http://example.com", want: ErrMessageContainsURL},
		{name: "https upper", text: "mira HTTPS://example.com", want: ErrMessageContainsURL},
		{name: "www", text: "visita WWW.example.com", want: ErrMessageContainsURL},
		{name: "short beats url", text: "ww", want: ErrMessageTooShort},
		{name: "long beats url", text: "www." + strings.Repeat("a", MaxMessageLength), want: ErrMessageTooLong},
		{name: "accents counted as characters", text: "¿Qué?", want: nil},
		{name: "multibyte short", text: "¿é", want: ErrMessageTooShort},
		{name: "plain question", text: "¿Cuál fue tu mayor logro?", want: nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateMessageText(c.text)
			if c.want == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, c.want) {
				t.Fatalf("expected %v, got %v", c.want, err)
			}
		})
	}
}

func TestValidateMessageText_ValidationErrorAs(t *testing.T) {
	err := ValidateMessageText("x")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if vErr.Code != "too_short" {
		t.Fatalf("unexpected code %q", vErr.Code)
	}
}

func TestRemainingCharacters(t *testing.T) {
	if got := RemainingCharacters(""); got != MaxMessageLength {
		t.Fatalf("expected %d, got %d", MaxMessageLength, got)
	}
	if got := RemainingCharacters("hola"); got != MaxMessageLength-4 {
		t.Fatalf("expected %d, got %d", MaxMessageLength-4, got)
	}
	if got := RemainingCharacters(strings.Repeat("a", MaxMessageLength+20)); got != 0 {
		t.Fatalf("expected floor at 0, got %d", got)
	}
}
