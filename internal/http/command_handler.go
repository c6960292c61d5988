package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CommandExecutor resuelve un comando de texto del bot.
type CommandExecutor interface {
	Execute(ctx context.Context, commandText string) string
}

// CommandHandler atiende los comandos del bot y los endpoints de lectura.
type CommandHandler struct {
	commands CommandExecutor
	logger   *zap.Logger
}

func NewCommandHandler(commands CommandExecutor, logger *zap.Logger) *CommandHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandHandler{
		commands: commands,
		logger:   logger,
	}
}

// BotCommand maneja POST /bot/command. La plataforma espera siempre 200 con
// un campo text; los errores se devuelven como texto al usuario.
func (h *CommandHandler) BotCommand(c *gin.Context) {
	commandText := c.PostForm("commandText")
	text := h.commands.Execute(c.Request.Context(), commandText)
	c.JSON(http.StatusOK, gin.H{"text": text})
}

// Search maneja GET /search?q=...
func (h *CommandHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query"})
		return
	}
	text := h.commands.Execute(c.Request.Context(), "search "+query)
	c.JSON(http.StatusOK, gin.H{"text": text})
}

// LatestIssues maneja GET /issues/latest.
func (h *CommandHandler) LatestIssues(c *gin.Context) {
	text := h.commands.Execute(c.Request.Context(), "latest_issues")
	c.JSON(http.StatusOK, gin.H{"text": text})
}

// IssueConversations maneja GET /issues/:issue_id/messages.
func (h *CommandHandler) IssueConversations(c *gin.Context) {
	issueID := c.Param("issue_id")
	text := h.commands.Execute(c.Request.Context(), "issue_conversations "+issueID)
	c.JSON(http.StatusOK, gin.H{"text": text})
}
