package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"vita-ops/internal/domain"
	"vita-ops/internal/repository"
	"vita-ops/internal/service"
)

// AdminHandler expone operaciones de mantenimiento protegidas con JWT:
// reindexado del indice vectorial y conteos de depuracion.
type AdminHandler struct {
	jwtSvc       *service.JWTService
	passwordHash string
	messages     repository.MessageRepository
	vectors      repository.VectorIndex
	embedder     service.Embedder
	logger       *zap.Logger
}

func NewAdminHandler(
	jwtSvc *service.JWTService,
	passwordHash string,
	messages repository.MessageRepository,
	vectors repository.VectorIndex,
	embedder service.Embedder,
	logger *zap.Logger,
) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		jwtSvc:       jwtSvc,
		passwordHash: passwordHash,
		messages:     messages,
		vectors:      vectors,
		embedder:     embedder,
		logger:       logger,
	}
}

// Login maneja POST /admin/login.
func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if h.passwordHash == "" || h.jwtSvc == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin api not configured"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	pair, err := h.jwtSvc.GeneratePair("admin")
	if err != nil {
		h.logger.Error("generate token pair failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Refresh maneja POST /admin/refresh.
func (h *AdminHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	pair, err := h.jwtSvc.RefreshPair(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Reindex maneja POST /admin/reindex: recalcula embeddings de los mensajes
// guardados y los vuelca al indice. Corre en el request, pensado para
// volumenes chicos; los errores por mensaje se saltan.
func (h *AdminHandler) Reindex(c *gin.Context) {
	const batchSize = 200

	ctx := c.Request.Context()
	reindexed := 0
	failed := 0

	for offset := 0; ; offset += batchSize {
		messages, err := h.messages.ListAll(ctx, batchSize, offset)
		if err != nil {
			h.logger.Error("list messages failed", zap.Error(err), zap.Int("offset", offset))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list messages"})
			return
		}
		if len(messages) == 0 {
			break
		}

		for _, m := range messages {
			if err := h.reindexMessage(ctx, m); err != nil {
				h.logger.Warn("reindex message failed",
					zap.Error(err), zap.String("message_id", m.MessageID))
				failed++
				continue
			}
			reindexed++
		}
	}

	h.logger.Info("reindex complete", zap.Int("reindexed", reindexed), zap.Int("failed", failed))
	c.JSON(http.StatusOK, gin.H{"reindexed": reindexed, "failed": failed})
}

func (h *AdminHandler) reindexMessage(ctx context.Context, m domain.Message) error {
	embedding, err := h.embedder.CreateEmbedding(ctx, m.Text)
	if err != nil {
		return err
	}
	return h.vectors.Upsert(ctx, repository.VectorPoint{
		MessageID:      m.MessageID,
		Embedding:      embedding,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Role:           m.Role,
		Category:       m.Category,
		Severity:       m.Severity,
		IssueID:        m.IssueID,
	})
}

// DebugVectors maneja GET /admin/debug/vectors.
func (h *AdminHandler) DebugVectors(c *gin.Context) {
	count, err := h.vectors.Count(c.Request.Context())
	if err != nil {
		h.logger.Error("vector count failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not count vectors"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vector_count": count})
}
