package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"portfolio-chat/internal/domain"
)

// Sender define la interfaz para enviar un mensaje al asistente remoto.
type Sender interface {
	Send(ctx context.Context, message string, history []domain.HistoryEntry) (string, error)
}

var ErrWebhookNotConfigured = errors.New("webhook url not configured")

const acceptHeader = "application/json, text/plain;q=0.9,*/*;q=0.8"

// HTTPClient implementa Sender haciendo POST al webhook de automatizacion.
type HTTPClient struct {
	url     string
	client  *http.Client
	logger  *zap.Logger
	tracer  trace.Tracer
	latency metric.Float64Histogram
}

// NewHTTPClient construye un cliente con timeout propio; timeout <= 0 usa 30s.
func NewHTTPClient(url string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	latency, err := otel.Meter("portfolio-chat/webhook").Float64Histogram(
		"webhook.latency",
		metric.WithDescription("Duracion de las llamadas al webhook"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("webhook latency histogram", zap.Error(err))
	}
	return &HTTPClient{
		url:     strings.TrimSpace(url),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		tracer:  otel.Tracer("portfolio-chat/webhook"),
		latency: latency,
	}
}

type sendRequest struct {
	Message string                `json:"message"`
	History []domain.HistoryEntry `json:"history"`
}

func (c *HTTPClient) Send(ctx context.Context, message string, history []domain.HistoryEntry) (string, error) {
	if c == nil || c.url == "" {
		return "", ErrWebhookNotConfigured
	}
	if history == nil {
		history = []domain.HistoryEntry{}
	}

	ctx, span := c.tracer.Start(ctx, "webhook_call")
	defer span.End()
	span.SetAttributes(attribute.Int("chat.history_length", len(history)))

	start := time.Now()
	reply, status, err := c.do(ctx, sendRequest{Message: message, History: history})
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Int("http.status_code", status))
	if c.latency != nil {
		c.latency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.Bool("error", err != nil)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return reply, nil
}

func (c *HTTPClient) do(ctx context.Context, payload sendRequest) (string, int, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	// Un body ilegible se trata como vacio.
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("webhook read body failed", zap.Error(err))
		respBody = nil
	}

	reply, err := ParseReply(resp.StatusCode, resp.Header.Get("Content-Type"), string(respBody))
	if err != nil {
		c.logger.Warn("webhook error status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return "", resp.StatusCode, err
	}
	return reply, resp.StatusCode, nil
}
