package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"vita-ops/internal/domain"
	"vita-ops/internal/llm"
)

const classifyPromptTemplate = `Classify this engineering message:

Statement: %q

Return ONLY this JSON (no extra text):
{"role": "incident|discussion|resolution", "category": "database|cache|auth|network|security|deployment|other", "severity": "low|medium|high"}

Rules:
- role:
  - "resolution" ONLY if the message explicitly states that a problem is ALREADY fixed, resolved, closed, working now, back to normal, or the issue is gone. Examples: "fixed it", "issue resolved", "back to normal now". Tentative statements ("i think i got it", "let me try restarting") are discussions, not resolutions.
  - "incident" if it reports an active problem, failure, error, outage, or something broken.
  - "discussion" for everything else: suggestions, questions, plans, explanations, acknowledgments, casual chat.
- category: database, cache, auth, network, security, deployment, or other
- severity: low, medium, or high

JSON:`

// ClassifierService clasifica mensajes de ingenieria con el LLM. Un solo
// intento por mensaje; cualquier falla degrada a la tupla por defecto.
type ClassifierService struct {
	llmClient llm.Client
	logger    *zap.Logger
}

func NewClassifierService(llmClient llm.Client, logger *zap.Logger) *ClassifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassifierService{llmClient: llmClient, logger: logger}
}

// Classify nunca propaga errores: la ingesta no se bloquea por una
// clasificacion fallida o malformada.
func (s *ClassifierService) Classify(ctx context.Context, text string) domain.Classification {
	prompt := fmt.Sprintf(classifyPromptTemplate, text)

	response, err := s.llmClient.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("classification failed", zap.Error(err))
		return domain.DefaultClassification()
	}

	jsonStr := extractJSONObject(response)
	if jsonStr == "" {
		s.logger.Warn("classification returned no json", zap.String("response", clip(response, 200)))
		return domain.DefaultClassification()
	}

	var parsed domain.Classification
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		s.logger.Warn("classification json invalid", zap.Error(err))
		return domain.DefaultClassification()
	}

	parsed.Role = strings.ToLower(strings.TrimSpace(parsed.Role))
	parsed.Category = strings.ToLower(strings.TrimSpace(parsed.Category))
	parsed.Severity = strings.ToLower(strings.TrimSpace(parsed.Severity))

	// Falta algun campo o el role esta fuera del conjunto cerrado: tupla
	// por defecto completa, nunca una clasificacion parcialmente valida.
	if parsed.Role == "" || parsed.Category == "" || parsed.Severity == "" || !domain.ValidRole(parsed.Role) {
		s.logger.Warn("classification incomplete", zap.Any("parsed", parsed))
		return domain.DefaultClassification()
	}

	if !domain.ValidCategory(parsed.Category) {
		parsed.Category = domain.CategoryOther
	}
	if !domain.ValidSeverity(parsed.Severity) {
		parsed.Severity = domain.SeverityLow
	}

	return parsed
}

// clip corta s a n runas como maximo.
func clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// clipEllipsis corta s a n runas agregando un marcador si hubo recorte.
func clipEllipsis(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
