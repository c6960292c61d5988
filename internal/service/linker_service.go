package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vita-ops/internal/domain"
	"vita-ops/internal/email"
	"vita-ops/internal/repository"
)

// ErrAlreadyIndexed marca una reingesta del mismo message_id; la ingesta es
// idempotente y el duplicado se detecta antes de clasificar.
var ErrAlreadyIndexed = errors.New("message already indexed")

// Classifier etiqueta el texto de un mensaje. Nunca falla: degrada a la
// tupla por defecto.
type Classifier interface {
	Classify(ctx context.Context, text string) domain.Classification
}

// Embedder convierte texto en un vector de dimension fija.
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Summarizer produce la narrativa de resolucion de un issue.
type Summarizer interface {
	Summarize(ctx context.Context, messages []domain.Message, extraResolution string) string
}

// LinkerConfig agrupa los parametros del enlazador. Vienen de configuracion
// explicita, nunca de estado global.
type LinkerConfig struct {
	SimilarityThreshold float64
	ReopenWindow        time.Duration
	RecentTitleScan     int
	TitleMaxLen         int
	SearchTopK          int
	IssueSource         string
}

// IngestInput es un mensaje entrante todavia sin clasificar.
type IngestInput struct {
	ConversationID string
	MessageID      string
	SenderID       string
	TimestampMS    int64
	Text           string
}

// LinkerService decide a que issue pertenece cada mensaje entrante, crea
// issues nuevos y dispara el cierre con resumen. Es el unico escritor de
// issue_id en mensajes y el unico creador/cerrador de issues.
//
// El Issue Store y el indice vectorial son sistemas independientes sin
// transaccion cruzada: la completitud parcial (uno actualizado, el otro no)
// es un resultado normal, no excepcional.
type LinkerService struct {
	issues     repository.IssueRepository
	messages   repository.MessageRepository
	vectors    repository.VectorIndex
	classifier Classifier
	embedder   Embedder
	summarizer Summarizer
	alerts     email.AlertSender
	alertTo    string
	cfg        LinkerConfig
	logger     *zap.Logger
}

func NewLinkerService(
	issues repository.IssueRepository,
	messages repository.MessageRepository,
	vectors repository.VectorIndex,
	classifier Classifier,
	embedder Embedder,
	summarizer Summarizer,
	cfg LinkerConfig,
	logger *zap.Logger,
) *LinkerService {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.75
	}
	if cfg.ReopenWindow <= 0 {
		cfg.ReopenWindow = 5 * time.Minute
	}
	if cfg.RecentTitleScan <= 0 {
		cfg.RecentTitleScan = 5
	}
	if cfg.TitleMaxLen <= 0 {
		cfg.TitleMaxLen = 100
	}
	if cfg.SearchTopK <= 0 {
		cfg.SearchTopK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkerService{
		issues:     issues,
		messages:   messages,
		vectors:    vectors,
		classifier: classifier,
		embedder:   embedder,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger,
	}
}

// WithAlerts habilita avisos por correo al abrir issues de severidad alta.
func (s *LinkerService) WithAlerts(sender email.AlertSender, to string) *LinkerService {
	s.alerts = sender
	s.alertTo = to
	return s
}

// Ingest ejecuta el pipeline completo para un mensaje: chequeo de duplicado,
// clasificacion, embedding, enlace a issue y persistencia final incondicional
// en ambos almacenes. Las fallas de colaboradores degradan a defaults; el
// mensaje nunca se descarta.
func (s *LinkerService) Ingest(ctx context.Context, in IngestInput) (*domain.Message, error) {
	if exists, err := s.vectors.Exists(ctx, in.MessageID); err == nil && exists {
		s.logger.Info("message already indexed, skipping", zap.String("message_id", in.MessageID))
		return nil, ErrAlreadyIndexed
	}

	cls := s.classifier.Classify(ctx, in.Text)

	embedding, err := s.embedder.CreateEmbedding(ctx, in.Text)
	if err != nil {
		// Sin vector el mensaje igual se persiste; solo pierde su entrada
		// en el indice y el matching por similitud de esta pasada.
		s.logger.Warn("embedding failed, message will not be indexed",
			zap.Error(err), zap.String("message_id", in.MessageID))
		embedding = nil
	}

	issueID := s.linkIssue(ctx, in, cls, embedding)

	msg := domain.Message{
		ConversationID: in.ConversationID,
		MessageID:      in.MessageID,
		SenderID:       in.SenderID,
		TimestampMS:    in.TimestampMS,
		Text:           in.Text,
		Role:           cls.Role,
		Category:       cls.Category,
		Severity:       cls.Severity,
		IssueID:        issueID,
	}

	if err := s.messages.Insert(ctx, msg); err != nil {
		s.logger.Error("message store insert failed",
			zap.Error(err), zap.String("message_id", in.MessageID))
	}

	if len(embedding) > 0 {
		point := repository.VectorPoint{
			MessageID:      in.MessageID,
			Embedding:      embedding,
			ConversationID: in.ConversationID,
			SenderID:       in.SenderID,
			Role:           cls.Role,
			Category:       cls.Category,
			Severity:       cls.Severity,
			IssueID:        issueID,
		}
		if err := s.vectors.Upsert(ctx, point); err != nil {
			s.logger.Error("vector upsert failed",
				zap.Error(err), zap.String("message_id", in.MessageID))
		}
	}

	return &msg, nil
}

func (s *LinkerService) linkIssue(ctx context.Context, in IngestInput, cls domain.Classification, embedding []float32) string {
	switch cls.Role {
	case domain.RoleIncident:
		return s.linkIncident(ctx, in, cls, embedding)
	case domain.RoleDiscussion, domain.RoleResolution:
		return s.linkFollowUp(ctx, in, cls)
	}
	return ""
}

// linkIncident resuelve el issue de un reporte de incidente: primero
// supresion de titulos duplicados sobre los issues tocados recientemente,
// despues similitud vectorial contra incidentes de issues abiertos, y si
// nada coincide, issue nuevo.
func (s *LinkerService) linkIncident(ctx context.Context, in IngestInput, cls domain.Classification, embedding []float32) string {
	normalized := strings.ToLower(strings.TrimSpace(in.Text))

	recent, err := s.issues.ListRecent(ctx, s.cfg.RecentTitleScan)
	if err != nil {
		s.logger.Warn("recent issues lookup failed", zap.Error(err))
		recent = nil
	}

	for _, issue := range recent {
		if strings.ToLower(strings.TrimSpace(issue.Title)) != normalized {
			continue
		}

		if issue.ResolvedAt > 0 {
			sinceClose := time.Duration(in.TimestampMS-issue.ResolvedAt) * time.Millisecond
			if sinceClose < s.cfg.ReopenWindow {
				// Mismo incidente re-brotando justo despues del cierre:
				// se liga al issue resuelto sin reabrir su status.
				s.logger.Info("linking to recently closed issue",
					zap.String("issue_id", issue.IssueID),
					zap.Duration("since_close", sinceClose))
				return issue.IssueID
			}
		}

		if issue.IsOpen() {
			s.logger.Info("reusing open issue with same title", zap.String("issue_id", issue.IssueID))
			return issue.IssueID
		}
	}

	if len(embedding) > 0 {
		if issueID := s.findSimilarOpenIncident(ctx, embedding); issueID != "" {
			return issueID
		}
	}

	issueID := uuid.NewString()
	issue := domain.Issue{
		IssueID:  issueID,
		Title:    clipEllipsis(in.Text, s.cfg.TitleMaxLen),
		Source:   s.cfg.IssueSource,
		Category: cls.Category,
		Severity: cls.Severity,
		Status:   domain.IssueStatusOpen,
		OpenedAt: in.TimestampMS,
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		// El mensaje conserva el issue_id aunque la fila no haya quedado;
		// los dos almacenes no se mantienen consistentes entre si.
		s.logger.Error("issue create failed", zap.Error(err), zap.String("issue_id", issueID))
	} else {
		s.logger.Info("created new issue",
			zap.String("issue_id", issueID),
			zap.String("severity", issue.Severity))
		s.notifyHighSeverity(ctx, issue)
	}

	return issueID
}

// findSimilarOpenIncident busca el incidente indexado mas parecido cuyo
// issue siga abierto y supere el umbral. Empates se resuelven por score mas
// alto; en empate exacto gana el primero visto.
func (s *LinkerService) findSimilarOpenIncident(ctx context.Context, embedding []float32) string {
	open, err := s.issues.ListOpen(ctx, 0)
	if err != nil {
		s.logger.Warn("open issues lookup failed", zap.Error(err))
		return ""
	}
	openIDs := make(map[string]bool, len(open))
	for _, issue := range open {
		openIDs[issue.IssueID] = true
	}
	if len(openIDs) == 0 {
		return ""
	}

	hits, err := s.vectors.SearchByRole(ctx, embedding, domain.RoleIncident, s.cfg.SearchTopK)
	if err != nil {
		s.logger.Warn("vector search failed", zap.Error(err))
		return ""
	}

	bestIssueID := ""
	bestScore := 0.0
	for _, h := range hits {
		if h.IssueID == "" || !openIDs[h.IssueID] {
			continue
		}
		if h.Score >= s.cfg.SimilarityThreshold && h.Score > bestScore {
			bestIssueID = h.IssueID
			bestScore = h.Score
		}
	}

	if bestIssueID != "" {
		s.logger.Info("linked incident by similarity",
			zap.String("issue_id", bestIssueID),
			zap.Float64("score", bestScore))
	}
	return bestIssueID
}

// linkFollowUp liga discusiones y resoluciones al issue abierto mas reciente
// de todo el sistema (no por conversacion; heuristica heredada, ver DESIGN).
// Si no hay ninguno abierto, cae al ultimo issue visto en la conversacion.
func (s *LinkerService) linkFollowUp(ctx context.Context, in IngestInput, cls domain.Classification) string {
	issueID := ""

	latest, err := s.issues.FindLatestOpen(ctx)
	if err != nil {
		s.logger.Warn("latest open issue lookup failed", zap.Error(err))
	}
	if latest != nil {
		issueID = latest.IssueID
	} else {
		fallbackID, err := s.messages.LastLinkedIssueID(ctx, in.ConversationID)
		if err != nil {
			s.logger.Warn("conversation issue fallback failed", zap.Error(err))
		}
		issueID = fallbackID
	}

	if cls.Role == domain.RoleResolution && issueID != "" {
		s.resolveIssue(ctx, issueID, in)
	}

	return issueID
}

// resolveIssue cierra el issue con un resumen generado. Si guardar el
// resumen falla, el issue queda abierto pero el mensaje conserva su vinculo;
// no hay reintento automatico.
func (s *LinkerService) resolveIssue(ctx context.Context, issueID string, in IngestInput) {
	history, err := s.messages.ListByIssueID(ctx, issueID)
	if err != nil {
		s.logger.Warn("issue history lookup failed", zap.Error(err), zap.String("issue_id", issueID))
		history = nil
	}

	summary := s.summarizer.Summarize(ctx, history, in.Text)

	if err := s.issues.MarkResolved(ctx, issueID, in.TimestampMS, summary); err != nil {
		s.logger.Error("store resolution summary failed",
			zap.Error(err), zap.String("issue_id", issueID))
		return
	}

	s.logger.Info("issue resolved", zap.String("issue_id", issueID))
}

func (s *LinkerService) notifyHighSeverity(ctx context.Context, issue domain.Issue) {
	if s.alerts == nil || s.alertTo == "" || issue.Severity != domain.SeverityHigh {
		return
	}
	if err := s.alerts.SendIncidentAlert(ctx, s.alertTo, issue.Title, issue.Category, issue.Severity); err != nil {
		s.logger.Warn("incident alert failed", zap.Error(err), zap.String("issue_id", issue.IssueID))
	}
}
