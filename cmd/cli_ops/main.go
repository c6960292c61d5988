package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"vita-ops/internal/config"
	"vita-ops/internal/db"
	"vita-ops/internal/llm"
	"vita-ops/internal/repository"
	"vita-ops/internal/service"
)

// cli_ops simula una conversacion de chat contra el pipeline real: cada
// linea se ingesta como mensaje, y las lineas que empiezan con "/" se
// despachan como comandos del bot.
func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	issueRepo := repository.NewPgIssueRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)
	vectorIndex := repository.NewPgVectorIndex(pool)

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMEmbeddingModel, logger)
	classifier := service.NewClassifierService(llmClient, logger)
	summarizer := service.NewSummaryService(llmClient, logger, cfg.SummaryMaxLen)

	linkerCfg := service.LinkerConfig{
		SimilarityThreshold: cfg.SimilarityThreshold,
		ReopenWindow:        time.Duration(cfg.ReopenWindowMinutes) * time.Minute,
		RecentTitleScan:     cfg.RecentTitleScan,
		TitleMaxLen:         cfg.TitleMaxLen,
		SearchTopK:          cfg.SearchTopK,
		IssueSource:         "CLI",
	}
	linkerSvc := service.NewLinkerService(issueRepo, messageRepo, vectorIndex, classifier, llmClient, summarizer, linkerCfg, logger)
	commandSvc := service.NewCommandService(issueRepo, messageRepo, vectorIndex, llmClient, summarizer, cfg.SearchTopK, logger)

	conversationID := "cli-" + uuid.NewString()
	fmt.Println("===== Ops Pipeline CLI =====")
	fmt.Printf("Conversation: %s\n", conversationID)
	fmt.Println("Escribe mensajes para ingestarlos; usa /search, /latest_issues o /issue_conversations. Ctrl+D para salir.")

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			fmt.Println(commandSvc.Execute(ctx, strings.TrimPrefix(line, "/")))
			continue
		}

		msg, err := linkerSvc.Ingest(ctx, service.IngestInput{
			ConversationID: conversationID,
			MessageID:      uuid.NewString(),
			SenderID:       "cli-user",
			TimestampMS:    time.Now().UTC().UnixMilli(),
			Text:           line,
		})
		if errors.Is(err, service.ErrAlreadyIndexed) {
			fmt.Println("(mensaje ya indexado)")
			continue
		}
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}

		fmt.Printf("[%s/%s/%s]", msg.Role, msg.Category, msg.Severity)
		if msg.IssueID != "" {
			fmt.Printf(" issue=%s", msg.IssueID)
		}
		fmt.Println()
	}
}
