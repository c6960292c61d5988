package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"vita-ops/internal/domain"
	"vita-ops/internal/repository"
)

var errTest = errors.New("test error")

func newTestCommands(issues *fakeIssueRepo, messages *fakeMessageRepo, vectors *fakeVectorIndex, embedder Embedder, summarizer Summarizer) *CommandService {
	return NewCommandService(issues, messages, vectors, embedder, summarizer, 5, nil)
}

func TestExecuteEmptyCommandShowsUsage(t *testing.T) {
	svc := newTestCommands(&fakeIssueRepo{}, &fakeMessageRepo{}, &fakeVectorIndex{}, &mockEmbedder{vec: []float32{0.1}}, &mockSummarizer{})

	out := svc.Execute(context.Background(), "   ")
	if out != commandUsage {
		t.Fatalf("expected usage message, got %q", out)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	svc := newTestCommands(&fakeIssueRepo{}, &fakeMessageRepo{}, &fakeVectorIndex{}, &mockEmbedder{vec: []float32{0.1}}, &mockSummarizer{})

	out := svc.Execute(context.Background(), "frobnicate now")
	if !strings.Contains(out, "Unknown command") {
		t.Fatalf("expected unknown command message, got %q", out)
	}
}

func TestExecuteSearchWithoutArgs(t *testing.T) {
	svc := newTestCommands(&fakeIssueRepo{}, &fakeMessageRepo{}, &fakeVectorIndex{}, &mockEmbedder{vec: []float32{0.1}}, &mockSummarizer{})

	out := svc.Execute(context.Background(), "search")
	if out != "Usage: search <query>" {
		t.Fatalf("expected search usage, got %q", out)
	}
}

func TestSearchFindsResolvedIssue(t *testing.T) {
	issues := &fakeIssueRepo{}
	messages := &fakeMessageRepo{messages: []domain.Message{
		{MessageID: "m1", IssueID: "issue-1", Role: domain.RoleIncident, Text: "db down in prod", Category: "database", Severity: "high", TimestampMS: 1000},
		{MessageID: "m2", IssueID: "issue-1", Role: domain.RoleResolution, Text: "restarted pod", TimestampMS: 2000},
	}}
	vectors := &fakeVectorIndex{hits: []repository.VectorHit{
		{MessageID: "m1", Role: domain.RoleIncident, IssueID: "issue-1", Score: 0.9},
	}}
	summarizer := &mockSummarizer{out: "Restarted the pod."}
	svc := newTestCommands(issues, messages, vectors, &mockEmbedder{vec: []float32{0.1}}, summarizer)

	out := svc.Execute(context.Background(), "search database outage")
	if !strings.Contains(out, "db down in prod") {
		t.Fatalf("expected incident text in output, got %q", out)
	}
	if !strings.Contains(out, "Status: Resolved") {
		t.Fatalf("expected resolved status, got %q", out)
	}
	if !strings.Contains(out, "Restarted the pod.") {
		t.Fatalf("expected summary in output, got %q", out)
	}
	if !strings.Contains(out, "Resolved at:") {
		t.Fatalf("expected resolved timestamp, got %q", out)
	}
}

func TestSearchOpenIssueHasNoSummary(t *testing.T) {
	messages := &fakeMessageRepo{messages: []domain.Message{
		{MessageID: "m1", IssueID: "issue-1", Role: domain.RoleIncident, Text: "api 500s", Category: "network", Severity: "medium", TimestampMS: 1000},
	}}
	vectors := &fakeVectorIndex{hits: []repository.VectorHit{
		{MessageID: "m1", Role: domain.RoleIncident, IssueID: "issue-1", Score: 0.9},
	}}
	summarizer := &mockSummarizer{}
	svc := newTestCommands(&fakeIssueRepo{}, messages, vectors, &mockEmbedder{vec: []float32{0.1}}, summarizer)

	out := svc.Execute(context.Background(), "search api errors")
	if !strings.Contains(out, "Open (no resolution yet)") {
		t.Fatalf("expected open issue marker, got %q", out)
	}
	if summarizer.calls != 0 {
		t.Fatalf("expected no summarizer call for open issues")
	}
}

func TestSearchNoHits(t *testing.T) {
	svc := newTestCommands(&fakeIssueRepo{}, &fakeMessageRepo{}, &fakeVectorIndex{}, &mockEmbedder{vec: []float32{0.1}}, &mockSummarizer{})

	out := svc.Execute(context.Background(), "search nothing here")
	if !strings.Contains(out, "No similar incidents found") {
		t.Fatalf("expected no-hits message, got %q", out)
	}
}

func TestSearchUnavailableWhenEmbeddingFails(t *testing.T) {
	svc := newTestCommands(&fakeIssueRepo{}, &fakeMessageRepo{}, &fakeVectorIndex{}, &mockEmbedder{err: errTest}, &mockSummarizer{})

	out := svc.Execute(context.Background(), "search db outage")
	if out != "Search is unavailable right now." {
		t.Fatalf("expected unavailable message, got %q", out)
	}
}

func TestLatestIssuesEmpty(t *testing.T) {
	svc := newTestCommands(&fakeIssueRepo{}, &fakeMessageRepo{}, &fakeVectorIndex{}, &mockEmbedder{vec: []float32{0.1}}, &mockSummarizer{})

	out := svc.Execute(context.Background(), "latest_issues")
	if out != "No open issues at the moment." {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestLatestIssuesListsOpenOnly(t *testing.T) {
	issues := &fakeIssueRepo{issues: []domain.Issue{
		{IssueID: "issue-1111-2222-3333", Title: "db down", Source: "Cliq", Category: "database", Severity: "high", Status: domain.IssueStatusOpen, OpenedAt: 1700000000000},
		{IssueID: "issue-resolved", Title: "old stuff", Status: domain.IssueStatusResolved, OpenedAt: 100, ResolvedAt: 200},
	}}
	svc := newTestCommands(issues, &fakeMessageRepo{}, &fakeVectorIndex{}, &mockEmbedder{vec: []float32{0.1}}, &mockSummarizer{})

	out := svc.Execute(context.Background(), "issues")
	if !strings.Contains(out, "db down") {
		t.Fatalf("expected open issue listed, got %q", out)
	}
	if strings.Contains(out, "old stuff") {
		t.Fatalf("resolved issues must not be listed, got %q", out)
	}
	if !strings.Contains(out, "ID: issue-1111-2...") {
		t.Fatalf("expected truncated id, got %q", out)
	}
}

func TestIssueConversationsListsMessages(t *testing.T) {
	messages := &fakeMessageRepo{messages: []domain.Message{
		{MessageID: "m1", IssueID: "issue-1", Role: domain.RoleIncident, SenderID: "alice", Text: "db down", TimestampMS: 1700000000000},
		{MessageID: "m2", IssueID: "issue-1", Role: domain.RoleResolution, SenderID: "bob", Text: "fixed", TimestampMS: 1700000100000},
	}}
	svc := newTestCommands(&fakeIssueRepo{}, messages, &fakeVectorIndex{}, &mockEmbedder{vec: []float32{0.1}}, &mockSummarizer{})

	out := svc.Execute(context.Background(), "issue_conversations issue-1")
	if !strings.Contains(out, "[incident] alice: db down") {
		t.Fatalf("expected incident line, got %q", out)
	}
	if !strings.Contains(out, "[resolution] bob: fixed") {
		t.Fatalf("expected resolution line, got %q", out)
	}
}

func TestIssueConversationsUnknownIssue(t *testing.T) {
	svc := newTestCommands(&fakeIssueRepo{}, &fakeMessageRepo{}, &fakeVectorIndex{}, &mockEmbedder{vec: []float32{0.1}}, &mockSummarizer{})

	out := svc.Execute(context.Background(), "issue_conversations nope")
	if !strings.Contains(out, "No messages found") {
		t.Fatalf("expected empty issue message, got %q", out)
	}
}

func TestIssueDetails(t *testing.T) {
	issues := &fakeIssueRepo{issues: []domain.Issue{{
		IssueID:           "issue-1",
		Title:             "db down",
		Status:            domain.IssueStatusResolved,
		Category:          "database",
		Severity:          "high",
		OpenedAt:          1700000000000,
		ResolvedAt:        1700000500000,
		ResolutionSummary: "Restarted the pod.",
	}}}
	svc := newTestCommands(issues, &fakeMessageRepo{}, &fakeVectorIndex{}, &mockEmbedder{vec: []float32{0.1}}, &mockSummarizer{})

	out := svc.Execute(context.Background(), "issue issue-1")
	if !strings.Contains(out, "db down") || !strings.Contains(out, "Restarted the pod.") {
		t.Fatalf("expected issue details, got %q", out)
	}
}
