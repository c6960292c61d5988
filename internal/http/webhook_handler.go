package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vita-ops/internal/domain"
	"vita-ops/internal/service"
)

// Ingester es el pipeline de ingesta visto desde los webhooks.
type Ingester interface {
	Ingest(ctx context.Context, in service.IngestInput) (*domain.Message, error)
}

// AttachmentProcessor convierte adjuntos en entradas de ingesta.
type AttachmentProcessor interface {
	Process(ctx context.Context, in service.AttachmentInput) (service.IngestInput, bool, error)
}

// WebhookHandler recibe los eventos del bot de chat. El productor reenvia el
// formulario crudo a la cola de eventos; el consumidor los desarma y los
// manda al pipeline de ingesta.
type WebhookHandler struct {
	linker      Ingester
	attachments AttachmentProcessor
	limiter     service.EventRateLimiter
	queueURL    string
	botName     string
	client      *http.Client
	logger      *zap.Logger
}

func NewWebhookHandler(
	linker Ingester,
	attachments AttachmentProcessor,
	limiter service.EventRateLimiter,
	queueURL, botName string,
	logger *zap.Logger,
) *WebhookHandler {
	if botName == "" {
		botName = "workspace-vita"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		linker:      linker,
		attachments: attachments,
		limiter:     limiter,
		queueURL:    queueURL,
		botName:     botName,
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
	}
}

// eventEnvelope es el sobre con el que la cola entrega eventos encolados.
type eventEnvelope struct {
	Events []struct {
		Data struct {
			Data eventData `json:"data"`
		} `json:"data"`
	} `json:"events"`
}

// eventData replica el formulario del bot: user, chat y raw llegan como
// strings JSON anidados, no como objetos.
type eventData struct {
	Source    string `json:"source"`
	Operation string `json:"operation"`
	User      string `json:"user"`
	Chat      string `json:"chat"`
	Raw       string `json:"raw"`
}

type rawMessage struct {
	Message struct {
		ID      string `json:"id"`
		Content struct {
			Text string `json:"text"`
			File struct {
				Name        string `json:"name"`
				URL         string `json:"url"`
				ContentType string `json:"content_type"`
			} `json:"file"`
			Comment string `json:"comment"`
		} `json:"content"`
		Type string `json:"type"`
	} `json:"message"`
	Time int64 `json:"time"`
}

type eventUser struct {
	ID         string `json:"id"`
	ZohoUserID string `json:"zoho_user_id"`
}

type eventChat struct {
	ID string `json:"id"`
}

// ReceiveEvents maneja POST /bot/events: empaqueta el formulario del bot y
// lo publica en la cola. Sin cola configurada, procesa el evento en linea.
func (h *WebhookHandler) ReceiveEvents(c *gin.Context) {
	data := eventData{
		Source:    "chat_bot",
		Operation: c.PostForm("operation"),
		User:      c.PostForm("user"),
		Chat:      c.PostForm("chat"),
		Raw:       c.PostForm("data"),
	}

	if h.queueURL == "" {
		status := h.processEvent(c.Request.Context(), data)
		c.JSON(http.StatusOK, gin.H{"status": status})
		return
	}

	payload, err := json.Marshal(gin.H{"data": data})
	if err != nil {
		h.logger.Error("marshal event failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, h.queueURL, bytes.NewReader(payload))
	if err != nil {
		h.logger.Error("create queue request failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("publish to event queue failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "queue_error"})
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	h.logger.Info("event published", zap.Int("queue_status", resp.StatusCode))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ConsumeEvents maneja POST /events/consume: la cola entrega aqui los
// eventos encolados. Siempre responde 200; un evento malformado se ignora,
// no se reintenta.
func (h *WebhookHandler) ConsumeEvents(c *gin.Context) {
	var envelope eventEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		h.logger.Warn("invalid event envelope", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "parse_error"})
		return
	}

	if len(envelope.Events) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "no_events"})
		return
	}

	status := h.processEvent(c.Request.Context(), envelope.Events[0].Data.Data)
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *WebhookHandler) processEvent(ctx context.Context, data eventData) string {
	if data.Raw == "" || data.User == "" || data.Chat == "" {
		return "ignored"
	}

	var raw rawMessage
	var user eventUser
	var chat eventChat
	if err := json.Unmarshal([]byte(data.Raw), &raw); err != nil {
		h.logger.Warn("parse raw payload failed", zap.Error(err))
		return "parse_error"
	}
	if err := json.Unmarshal([]byte(data.User), &user); err != nil {
		h.logger.Warn("parse user payload failed", zap.Error(err))
		return "parse_error"
	}
	if err := json.Unmarshal([]byte(data.Chat), &chat); err != nil {
		h.logger.Warn("parse chat payload failed", zap.Error(err))
		return "parse_error"
	}

	senderID := user.ZohoUserID
	if senderID == "" {
		senderID = user.ID
	}
	conversationID := chat.ID
	messageID := raw.Message.ID
	messageText := raw.Message.Content.Text
	timestampMS := raw.Time

	if h.limiter != nil && !h.limiter.Allow(conversationID) {
		h.logger.Warn("event rate limited", zap.String("conversation_id", conversationID))
		return "rate_limited"
	}

	if raw.Message.Type == "file" && raw.Message.Content.File.URL != "" && h.attachments != nil {
		return h.processAttachment(ctx, raw, conversationID, senderID)
	}

	if messageText == "" || messageID == "" {
		return "bad_raw"
	}

	// Las menciones al bot son comandos, no conversacion a indexar.
	txtLower := strings.ToLower(messageText)
	if strings.Contains(txtLower, "@"+strings.ToLower(h.botName)) || strings.Contains(messageText, "{@b-") {
		h.logger.Info("skipping bot command", zap.String("message_id", messageID))
		return "command_skipped"
	}

	_, err := h.linker.Ingest(ctx, service.IngestInput{
		ConversationID: conversationID,
		MessageID:      messageID,
		SenderID:       senderID,
		TimestampMS:    timestampMS,
		Text:           messageText,
	})
	if errors.Is(err, service.ErrAlreadyIndexed) {
		return "already_indexed"
	}
	if err != nil {
		h.logger.Error("ingest failed", zap.Error(err), zap.String("message_id", messageID))
		return "error"
	}
	return "processed"
}

func (h *WebhookHandler) processAttachment(ctx context.Context, raw rawMessage, conversationID, senderID string) string {
	in, ok, err := h.attachments.Process(ctx, service.AttachmentInput{
		ConversationID: conversationID,
		MessageID:      raw.Message.ID,
		SenderID:       senderID,
		TimestampMS:    raw.Time,
		FileName:       raw.Message.Content.File.Name,
		FileURL:        raw.Message.Content.File.URL,
		ContentType:    raw.Message.Content.File.ContentType,
		Comment:        raw.Message.Content.Comment,
	})
	if err != nil {
		h.logger.Error("attachment processing failed",
			zap.Error(err), zap.String("message_id", raw.Message.ID))
		return "attachment_error"
	}
	if !ok {
		return "attachment_skipped"
	}

	if _, err := h.linker.Ingest(ctx, in); err != nil {
		if errors.Is(err, service.ErrAlreadyIndexed) {
			return "already_indexed"
		}
		h.logger.Error("attachment ingest failed", zap.Error(err), zap.String("message_id", in.MessageID))
		return "error"
	}
	return "processed_attachment"
}

// ProcessAttachment maneja POST /bot/attachment: variante por formulario
// para plataformas que mandan el adjunto como URL directa.
func (h *WebhookHandler) ProcessAttachment(c *gin.Context) {
	if h.attachments == nil {
		c.JSON(http.StatusOK, gin.H{"status": "attachments_disabled"})
		return
	}

	var raw rawMessage
	raw.Message.ID = c.PostForm("message_id")
	raw.Message.Content.File.URL = c.PostForm("file_url")
	raw.Message.Content.File.Name = c.PostForm("file_name")
	raw.Message.Content.File.ContentType = c.PostForm("content_type")
	raw.Message.Content.Comment = c.PostForm("comment")
	raw.Time = time.Now().UTC().UnixMilli()

	if raw.Message.Content.File.URL == "" || raw.Message.ID == "" {
		c.JSON(http.StatusOK, gin.H{"status": "missing_file_url"})
		return
	}

	status := h.processAttachment(
		c.Request.Context(), raw,
		c.PostForm("conversation_id"), c.PostForm("sender_id"),
	)
	c.JSON(http.StatusOK, gin.H{"status": status})
}
