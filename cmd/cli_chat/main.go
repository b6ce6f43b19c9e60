package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"portfolio-chat/internal/config"
	"portfolio-chat/internal/domain"
	"portfolio-chat/internal/service"
	"portfolio-chat/internal/webhook"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	store := service.NewMemoryRateLimitStore()
	if strings.EqualFold(cfg.RateLimitStore, "redis") && cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		store = service.NewRedisRateLimitStore(rdb)
	}

	visitorID := strings.TrimSpace(os.Getenv("CLI_VISITOR_ID"))
	if visitorID == "" {
		visitorID = "cli-" + uuid.NewString()
	}

	client := webhook.NewHTTPClient(cfg.WebhookURL, cfg.WebhookTimeout, logger)
	limiter := service.NewChatRateLimiter(store, logger)
	conv := service.NewConversation(visitorID, client, limiter, logger)
	defer conv.Close()

	fmt.Println("===== Chat del portfolio =====")
	fmt.Println("Comandos: /sugerencias, /1../3 para enviar una sugerencia, /salir")
	printed := printNew(conv.Snapshot(), 0)
	printSuggestions(conv.Snapshot())

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)

		var snapshot service.ConversationSnapshot
		switch {
		case line == "/salir":
			fmt.Println("Hasta luego.")
			return
		case line == "/sugerencias":
			printSuggestions(conv.Snapshot())
			continue
		case strings.HasPrefix(line, "/"):
			question, ok := pickSuggestion(conv.Snapshot(), line[1:])
			if !ok {
				fmt.Println("Sugerencia no disponible.")
				continue
			}
			fmt.Println(question)
			snapshot, err = conv.AskSuggestion(ctx, question)
		default:
			snapshot, err = conv.Submit(ctx, line)
		}

		if err != nil {
			var rlErr *service.RateLimitError
			var vErr *service.ValidationError
			switch {
			case errors.As(err, &rlErr):
				fmt.Println(rlErr.Error())
			case errors.As(err, &vErr):
				fmt.Println(vErr.Message)
			default:
				fmt.Printf("error: %v\n", err)
			}
			continue
		}
		printed = printNew(snapshot, printed)
	}
}

// printNew imprime las respuestas del asistente a partir de from y devuelve el nuevo total.
func printNew(snapshot service.ConversationSnapshot, from int) int {
	for _, m := range snapshot.Messages[from:] {
		if m.Role != domain.RoleAssistant {
			continue
		}
		ts := time.UnixMilli(m.Timestamp).Format("15:04")
		if m.Error {
			fmt.Printf("[%s] (!) %s\n", ts, m.Text)
			continue
		}
		fmt.Printf("[%s] Asistente: %s\n", ts, m.Text)
	}
	return len(snapshot.Messages)
}

func printSuggestions(snapshot service.ConversationSnapshot) {
	if len(snapshot.Suggestions) == 0 {
		return
	}
	fmt.Println("Preguntas sugeridas:")
	for i, s := range snapshot.Suggestions {
		fmt.Printf("  /%d %s\n", i+1, s)
	}
}

func pickSuggestion(snapshot service.ConversationSnapshot, raw string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 || n > len(snapshot.Suggestions) {
		return "", false
	}
	return snapshot.Suggestions[n-1], true
}
