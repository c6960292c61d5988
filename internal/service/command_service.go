package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"vita-ops/internal/domain"
	"vita-ops/internal/repository"
)

const commandUsage = "Usage: search <query>, latest_issues, or issue_conversations <issue_id>"

// CommandService resuelve los comandos del bot. Es un camino de solo
// lectura sobre los almacenes; siempre devuelve texto, nunca un error al
// usuario del chat.
type CommandService struct {
	issues     repository.IssueRepository
	messages   repository.MessageRepository
	vectors    repository.VectorIndex
	embedder   Embedder
	summarizer Summarizer
	topK       int
	logger     *zap.Logger
}

func NewCommandService(
	issues repository.IssueRepository,
	messages repository.MessageRepository,
	vectors repository.VectorIndex,
	embedder Embedder,
	summarizer Summarizer,
	topK int,
	logger *zap.Logger,
) *CommandService {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandService{
		issues:     issues,
		messages:   messages,
		vectors:    vectors,
		embedder:   embedder,
		summarizer: summarizer,
		topK:       topK,
		logger:     logger,
	}
}

// Execute parsea y despacha un comando de texto.
func (s *CommandService) Execute(ctx context.Context, commandText string) string {
	tokens := strings.Fields(strings.TrimSpace(commandText))
	if len(tokens) == 0 {
		return commandUsage
	}

	cmd := strings.ToLower(tokens[0])
	args := strings.TrimSpace(strings.Join(tokens[1:], " "))

	switch cmd {
	case "search":
		if args == "" {
			return "Usage: search <query>"
		}
		return s.searchIssues(ctx, args)
	case "latest_issues", "issues":
		return s.latestIssues(ctx)
	case "issue_conversations":
		return s.issueConversations(ctx, args)
	case "issue":
		if args != "" {
			return s.issueDetails(ctx, args)
		}
	}

	return "Unknown command. Try: search, latest_issues, issue_conversations <issue_id>."
}

// searchIssues busca issues pasados por similitud contra los incidentes
// indexados y muestra incidente + resumen de resolucion + metadatos.
func (s *CommandService) searchIssues(ctx context.Context, query string) string {
	embedding, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		s.logger.Warn("search embedding failed", zap.Error(err))
		return "Search is unavailable right now."
	}

	hits, err := s.vectors.SearchByRole(ctx, embedding, domain.RoleIncident, s.topK)
	if err != nil {
		s.logger.Warn("search vector lookup failed", zap.Error(err))
		return "Search is unavailable right now."
	}
	if len(hits) == 0 {
		return fmt.Sprintf("No similar incidents found for `%s`.", query)
	}

	// Issues distintos preservando orden de score.
	seen := make(map[string]bool)
	var issueIDs []string
	for _, h := range hits {
		if h.IssueID == "" || seen[h.IssueID] {
			continue
		}
		seen[h.IssueID] = true
		issueIDs = append(issueIDs, h.IssueID)
	}
	if len(issueIDs) == 0 {
		return "No past issues found."
	}
	if len(issueIDs) > 3 {
		issueIDs = issueIDs[:3]
	}

	lines := []string{fmt.Sprintf("*Past incidents similar to:* `%s`\n", query)}

	idx := 0
	for _, issueID := range issueIDs {
		messages, err := s.messages.ListByIssueID(ctx, issueID)
		if err != nil || len(messages) == 0 {
			continue
		}

		var incident *domain.Message
		var resolutions []domain.Message
		for i, m := range messages {
			if m.Role == domain.RoleIncident && incident == nil {
				incident = &messages[i]
			}
			if m.Role == domain.RoleResolution {
				resolutions = append(resolutions, m)
			}
		}
		if incident == nil {
			continue
		}

		status := "Open"
		resolutionSummary := "Open (no resolution yet)"
		resolvedAt := ""
		if len(resolutions) > 0 {
			status = "Resolved"
			resolutionSummary = s.summarizer.Summarize(ctx, messages, "")
			var latest int64
			for _, m := range resolutions {
				if m.TimestampMS > latest {
					latest = m.TimestampMS
				}
			}
			resolvedAt = formatMS(latest)
		}

		idx++
		lines = append(lines, fmt.Sprintf("*#%d. %s*", idx, clip(incident.Text, 100)))
		lines = append(lines, fmt.Sprintf("Category: %s | Severity: %s | Status: %s", incident.Category, incident.Severity, status))
		lines = append(lines, fmt.Sprintf("Resolution: %s", resolutionSummary))
		if resolvedAt != "" {
			lines = append(lines, fmt.Sprintf("Resolved at: %s", resolvedAt))
		}
		lines = append(lines, "")
	}

	if idx == 0 {
		return "No past issues found."
	}
	return strings.Join(lines, "\n")
}

func (s *CommandService) latestIssues(ctx context.Context) string {
	issues, err := s.issues.ListOpen(ctx, 5)
	if err != nil {
		s.logger.Warn("open issues lookup failed", zap.Error(err))
		issues = nil
	}
	if len(issues) == 0 {
		return "No open issues at the moment."
	}

	lines := []string{"*Latest Open Issues:*\n"}
	for idx, issue := range issues {
		openedAt := "N/A"
		if issue.OpenedAt > 0 {
			openedAt = formatMS(issue.OpenedAt)
		}
		lines = append(lines, fmt.Sprintf("*#%d. %s*", idx+1, issue.Title))
		lines = append(lines, fmt.Sprintf("ID: %s...", clip(issue.IssueID, 12)))
		lines = append(lines, fmt.Sprintf("Source: %s | Category: %s | Severity: %s", issue.Source, issue.Category, issue.Severity))
		lines = append(lines, fmt.Sprintf("Opened at: %s", openedAt))
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (s *CommandService) issueConversations(ctx context.Context, issueID string) string {
	if issueID == "" {
		return "Usage: issue_conversations <issue_id>"
	}

	messages, err := s.messages.ListByIssueID(ctx, issueID)
	if err != nil {
		s.logger.Warn("issue messages lookup failed", zap.Error(err), zap.String("issue_id", issueID))
		messages = nil
	}
	if len(messages) == 0 {
		return fmt.Sprintf("No messages found for issue `%s`.", issueID)
	}

	if len(messages) > 30 {
		messages = messages[:30]
	}

	lines := []string{fmt.Sprintf("*Conversations for issue:* `%s`\n", issueID)}
	for _, m := range messages {
		ts := "N/A"
		if m.TimestampMS > 0 {
			ts = formatMS(m.TimestampMS)
		}
		lines = append(lines, fmt.Sprintf("- `%s` [%s] %s: %s", ts, m.Role, m.SenderID, m.Text))
	}
	return strings.Join(lines, "\n")
}

func (s *CommandService) issueDetails(ctx context.Context, issueID string) string {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		s.logger.Warn("issue lookup failed", zap.Error(err), zap.String("issue_id", issueID))
		issue = nil
	}
	if issue == nil {
		return fmt.Sprintf("No issue found for `%s`.", issueID)
	}

	lines := []string{
		fmt.Sprintf("*%s*", issue.Title),
		fmt.Sprintf("Status: %s | Category: %s | Severity: %s", issue.Status, issue.Category, issue.Severity),
		fmt.Sprintf("Opened at: %s", formatMS(issue.OpenedAt)),
	}
	if issue.ResolvedAt > 0 {
		lines = append(lines, fmt.Sprintf("Resolved at: %s", formatMS(issue.ResolvedAt)))
	}
	if issue.ResolutionSummary != "" {
		lines = append(lines, fmt.Sprintf("Resolution: %s", issue.ResolutionSummary))
	}
	return strings.Join(lines, "\n")
}

func formatMS(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}
