package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"vita-ops/internal/domain"
	"vita-ops/internal/llm"
)

const summaryPromptTemplate = `Summarize this incident resolution in 1-2 sentences.

Problem: %q

Investigation: %q

Resolution: %q

Provide a concise summary of how the issue was resolved (what was done and the outcome).

Summary:`

// SummaryService genera la narrativa de resolucion de un issue. Si el LLM
// falla o devuelve algo sospechosamente corto, cae al texto crudo de las
// resoluciones; siempre devuelve una cadena no vacia.
type SummaryService struct {
	llmClient llm.Client
	logger    *zap.Logger
	maxLen    int
}

func NewSummaryService(llmClient llm.Client, logger *zap.Logger, maxLen int) *SummaryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLen <= 0 {
		maxLen = 500
	}
	return &SummaryService{llmClient: llmClient, logger: logger, maxLen: maxLen}
}

// Summarize arma el prompt con un incidente, hasta tres discusiones y todas
// las resoluciones del issue. extraResolution es el texto del mensaje de
// resolucion que esta cerrando el issue (aun no persistido).
func (s *SummaryService) Summarize(ctx context.Context, messages []domain.Message, extraResolution string) string {
	if len(messages) == 0 && strings.TrimSpace(extraResolution) == "" {
		return "No resolution details available."
	}

	var incident string
	var discussions []string
	var resolutions []string

	for _, m := range messages {
		switch m.Role {
		case domain.RoleIncident:
			if incident == "" {
				incident = m.Text
			}
		case domain.RoleDiscussion:
			if len(discussions) < 3 {
				discussions = append(discussions, m.Text)
			}
		case domain.RoleResolution:
			resolutions = append(resolutions, m.Text)
		}
	}
	if strings.TrimSpace(extraResolution) != "" {
		resolutions = append(resolutions, extraResolution)
	}

	if len(resolutions) == 0 {
		return "Resolved (no resolution message recorded)."
	}

	incidentText := "Unknown issue"
	if incident != "" {
		incidentText = clip(incident, 100)
	}
	discussionText := "No investigation notes"
	if len(discussions) > 0 {
		discussionText = clip(strings.Join(discussions, "; "), 150)
	}
	resolutionText := clip(strings.Join(resolutions, "; "), 150)

	prompt := fmt.Sprintf(summaryPromptTemplate, incidentText, discussionText, resolutionText)

	response, err := s.llmClient.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("resolution summary failed", zap.Error(err))
		return clip(resolutionText, s.maxLen)
	}

	summary := strings.TrimSpace(response)
	if strings.HasPrefix(summary, `"`) && strings.HasSuffix(summary, `"`) && len(summary) >= 2 {
		summary = summary[1 : len(summary)-1]
	}

	if len(summary) <= 10 {
		s.logger.Warn("resolution summary too short, using fallback", zap.String("summary", summary))
		return clip(resolutionText, s.maxLen)
	}

	return clip(summary, s.maxLen)
}
