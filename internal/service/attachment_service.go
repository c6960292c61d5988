package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"vita-ops/internal/storage"
)

// VisionAnalyzer describe imagenes compartidas en el chat.
type VisionAnalyzer interface {
	DescribeImage(ctx context.Context, imageURL string) (string, error)
}

// DocumentOCR extrae texto de documentos adjuntos.
type DocumentOCR interface {
	ExtractText(ctx context.Context, data []byte, fileName string) (string, error)
}

type disabledVision struct{}

func NewDisabledVision() VisionAnalyzer { return disabledVision{} }

func (disabledVision) DescribeImage(context.Context, string) (string, error) {
	return "", errors.New("vision analyzer disabled")
}

type disabledOCR struct{}

func NewDisabledOCR() DocumentOCR { return disabledOCR{} }

func (disabledOCR) ExtractText(context.Context, []byte, string) (string, error) {
	return "", errors.New("document ocr disabled")
}

// plainTextOCR lee documentos de texto plano tal cual; otros formatos
// requieren un motor OCR externo.
type plainTextOCR struct{}

func NewPlainTextOCR() DocumentOCR { return plainTextOCR{} }

func (plainTextOCR) ExtractText(_ context.Context, data []byte, fileName string) (string, error) {
	lower := strings.ToLower(fileName)
	if !strings.HasSuffix(lower, ".txt") && !strings.HasSuffix(lower, ".log") && !strings.HasSuffix(lower, ".md") {
		return "", fmt.Errorf("unsupported document format: %s", fileName)
	}
	return string(data), nil
}

// AttachmentInput es un adjunto entrante junto al mensaje que lo trae.
type AttachmentInput struct {
	ConversationID string
	MessageID      string
	SenderID       string
	TimestampMS    int64
	FileName       string
	FileURL        string
	ContentType    string
	Comment        string
}

// incidentKeywords son las senales minimas para tratar el contenido de un
// adjunto como reporte de incidente.
var incidentKeywords = []string{
	"error", "failed", "down", "outage", "critical",
	"production", "database", "timeout", "crash", "exception",
}

// AttachmentService descarga adjuntos, los archiva en el object store y los
// convierte en texto analizable. Solo los adjuntos con pinta de incidente
// llegan al pipeline de ingesta.
type AttachmentService struct {
	store      storage.ObjectStore
	vision     VisionAnalyzer
	ocr        DocumentOCR
	downloader *http.Client
	logger     *zap.Logger
}

func NewAttachmentService(store storage.ObjectStore, vision VisionAnalyzer, ocr DocumentOCR, logger *zap.Logger) *AttachmentService {
	if store == nil {
		store = storage.NewDisabledStore()
	}
	if vision == nil {
		vision = NewDisabledVision()
	}
	if ocr == nil {
		ocr = NewDisabledOCR()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{
		store:      store,
		vision:     vision,
		ocr:        ocr,
		downloader: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// Process baja el adjunto, lo sube al bucket y devuelve un IngestInput
// derivado. El segundo retorno indica si el contenido amerita ingesta.
func (s *AttachmentService) Process(ctx context.Context, in AttachmentInput) (IngestInput, bool, error) {
	data, err := s.download(ctx, in.FileURL)
	if err != nil {
		return IngestInput{}, false, fmt.Errorf("download attachment: %w", err)
	}

	key := "attachments/" + in.MessageID + "_" + in.FileName
	objectURL, err := s.store.Upload(ctx, key, data, in.ContentType)
	if err != nil {
		// Sin copia archivada el analisis sigue con la URL original.
		s.logger.Warn("attachment upload failed",
			zap.Error(err), zap.String("message_id", in.MessageID))
		objectURL = in.FileURL
	}

	kind := attachmentKind(in.ContentType, in.FileName)

	var analysis string
	switch kind {
	case "img":
		analysis, err = s.vision.DescribeImage(ctx, objectURL)
		if err != nil {
			s.logger.Warn("image analysis failed",
				zap.Error(err), zap.String("message_id", in.MessageID))
		}
	case "doc":
		analysis, err = s.ocr.ExtractText(ctx, data, in.FileName)
		if err != nil {
			s.logger.Warn("document text extraction failed",
				zap.Error(err), zap.String("message_id", in.MessageID))
		}
	}

	text := strings.TrimSpace(in.Comment)
	if analysis != "" {
		if text != "" {
			text += "\n"
		}
		text += fmt.Sprintf("[Attachment %s] %s", in.FileName, strings.TrimSpace(analysis))
	}

	if text == "" || !looksLikeIncident(text) {
		s.logger.Info("attachment skipped, no incident signal",
			zap.String("message_id", in.MessageID), zap.String("file", in.FileName))
		return IngestInput{}, false, nil
	}

	return IngestInput{
		ConversationID: in.ConversationID,
		MessageID:      kind + "_" + in.MessageID,
		SenderID:       in.SenderID,
		TimestampMS:    in.TimestampMS,
		Text:           text,
	}, true, nil
}

func (s *AttachmentService) download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.downloader.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("download failed: status=%d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 20<<20))
}

func attachmentKind(contentType, fileName string) string {
	ct := strings.ToLower(contentType)
	name := strings.ToLower(fileName)
	switch {
	case strings.HasPrefix(ct, "image/"),
		strings.HasSuffix(name, ".png"), strings.HasSuffix(name, ".jpg"),
		strings.HasSuffix(name, ".jpeg"), strings.HasSuffix(name, ".gif"):
		return "img"
	case strings.HasPrefix(ct, "application/pdf"), strings.HasPrefix(ct, "text/"),
		strings.HasSuffix(name, ".pdf"), strings.HasSuffix(name, ".txt"),
		strings.HasSuffix(name, ".log"), strings.HasSuffix(name, ".md"),
		strings.HasSuffix(name, ".doc"), strings.HasSuffix(name, ".docx"):
		return "doc"
	}
	return "file"
}

// looksLikeIncident exige alguna palabra clave de incidente y descarta los
// analisis que dicen explicitamente que no hay problema.
func looksLikeIncident(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "no incident") {
		return false
	}
	for _, kw := range incidentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
