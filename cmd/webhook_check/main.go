package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"portfolio-chat/internal/config"
	"portfolio-chat/internal/domain"
	"portfolio-chat/internal/service"
	"portfolio-chat/internal/webhook"
)

type Scenario struct {
	Name    string
	Message string
	History []domain.HistoryEntry
}

func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	client := webhook.NewHTTPClient(cfg.WebhookURL, cfg.WebhookTimeout, logger)

	now := time.Now().UnixMilli()
	welcome := domain.HistoryEntry{Role: domain.RoleAssistant, Text: service.WelcomeMessageText, Timestamp: now}

	var scenarios []Scenario
	for i, q := range service.DefaultSuggestedQuestions {
		scenarios = append(scenarios, Scenario{
			Name:    fmt.Sprintf("Sugerencia %d", i+1),
			Message: q,
			History: []domain.HistoryEntry{welcome, {Role: domain.RoleUser, Text: q, Timestamp: now}},
		})
	}
	scenarios = append(scenarios, Scenario{
		Name:    "Sin historial",
		Message: "Hola, ¿quién eres?",
	})

	passed := 0
	total := len(scenarios)

	for _, sc := range scenarios {
		fmt.Printf("=== Ejecutando: %s ===\n", sc.Name)

		start := time.Now()
		reply, err := client.Send(ctx, sc.Message, sc.History)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("❌ FAIL [%s] %v (%s)\n\n", sc.Name, err, elapsed.Round(time.Millisecond))
			continue
		}

		fmt.Println("--- Respuesta ---")
		fmt.Println(reply)
		fmt.Println("-----------------")

		if strings.TrimSpace(reply) == "" || reply == webhook.DefaultFallbackReply {
			fmt.Printf("❌ FAIL [%s] respuesta vacia o generica (%s)\n\n", sc.Name, elapsed.Round(time.Millisecond))
			continue
		}
		fmt.Printf("✅ PASS [%s] %s\n\n", sc.Name, elapsed.Round(time.Millisecond))
		passed++
	}

	fmt.Printf("Tests: %d/%d pasaron\n", passed, total)
	if passed != total {
		os.Exit(1)
	}
	os.Exit(0)
}
