package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vita-ops/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	webhookH *WebhookHandler,
	commandH *CommandHandler,
	oauthH *OAuthHandler,
	adminH *AdminHandler,
	jwtSvc *service.JWTService,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Webhooks del bot.
	r.POST("/bot/events", webhookH.ReceiveEvents)
	r.POST("/events/consume", webhookH.ConsumeEvents)
	r.POST("/bot/attachment", webhookH.ProcessAttachment)
	r.POST("/bot/command", commandH.BotCommand)

	// API de lectura.
	r.GET("/search", commandH.Search)
	issues := r.Group("/issues")
	issues.GET("/latest", commandH.LatestIssues)
	issues.GET("/:issue_id/messages", commandH.IssueConversations)

	// OAuth de la plataforma de chat.
	oauth := r.Group("/oauth")
	oauth.GET("/login", oauthH.Login)
	oauth.GET("/callback", oauthH.Callback)

	// Operaciones de mantenimiento.
	admin := r.Group("/admin")
	admin.POST("/login", adminH.Login)
	admin.POST("/refresh", adminH.Refresh)

	protected := admin.Group("")
	protected.Use(JWTAuthMiddleware(jwtSvc))
	protected.POST("/reindex", adminH.Reindex)
	protected.GET("/debug/vectors", adminH.DebugVectors)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
