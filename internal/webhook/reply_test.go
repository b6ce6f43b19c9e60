package webhook

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		want        string
	}{
		{name: "json string", status: 200, contentType: "application/json", body: `"Hello there"`, want: "Hello there"},
		{name: "json string trimmed", status: 200, contentType: "application/json", body: `"  hola  "`, want: "hola"},
		{name: "reply key", status: 200, contentType: "application/json", body: `{"reply":"Hi!"}`, want: "Hi!"},
		{name: "message key", status: 200, contentType: "application/json", body: `{"message":"Hi!"}`, want: "Hi!"},
		{name: "text key", status: 200, contentType: "application/json", body: `{"text":"Hi!"}`, want: "Hi!"},
		{name: "reply wins over message", status: 200, contentType: "application/json", body: `{"reply":"A","message":"B"}`, want: "A"},
		{name: "empty reply falls to message", status: 200, contentType: "application/json", body: `{"reply":"  ","message":"B"}`, want: "B"},
		{name: "non string reply skipped", status: 200, contentType: "application/json", body: `{"reply":42,"text":"C"}`, want: "C"},
		{name: "array first usable", status: 200, contentType: "application/json; charset=utf-8", body: `[{"foo":1},{"message":"from array"},"later"]`, want: "from array"},
		{name: "nested array", status: 200, contentType: "application/json", body: `[["", "deep"]]`, want: "deep"},
		{name: "object without keys returns raw body", status: 200, contentType: "application/json", body: `{"foo":"bar"}`, want: `{"foo":"bar"}`},
		{name: "malformed json returns raw body", status: 200, contentType: "application/json", body: `{"reply": "oops"`, want: `{"reply": "oops"`},
		{name: "plain text", status: 200, contentType: "text/plain", body: "  respuesta en texto  ", want: "respuesta en texto"},
		{name: "json body with text content type", status: 200, contentType: "text/plain", body: `{"reply":"Hi!"}`, want: `{"reply":"Hi!"}`},
		{name: "empty body", status: 200, contentType: "application/json", body: "   ", want: DefaultFallbackReply},
		{name: "json null", status: 200, contentType: "application/json", body: "null", want: "null"},
		{name: "created status", status: 201, contentType: "application/json", body: `{"reply":"ok"}`, want: "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.status, tt.contentType, tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReply_NonSuccessStatus(t *testing.T) {
	_, err := ParseReply(http.StatusInternalServerError, "text/plain", "server error")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "server error", err.Error())
}

func TestParseReply_NonSuccessEmptyBody(t *testing.T) {
	_, err := ParseReply(http.StatusBadGateway, "", "")
	require.Error(t, err)
	assert.Equal(t, "webhook responded with 502", err.Error())
}
