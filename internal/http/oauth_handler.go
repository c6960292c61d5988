package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vita-ops/internal/config"
	"vita-ops/internal/service"
)

// OAuthHandler maneja el flujo de autorizacion del bot contra la plataforma
// de chat. El token resultante se persiste para sobrevivir reinicios.
type OAuthHandler struct {
	cfg    config.ChatConfig
	tokens service.ChatTokenStore
	client *http.Client
	logger *zap.Logger
}

func NewOAuthHandler(cfg config.ChatConfig, tokens service.ChatTokenStore, logger *zap.Logger) *OAuthHandler {
	if tokens == nil {
		tokens = service.NewMemoryChatTokenStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthHandler{
		cfg:    cfg,
		tokens: tokens,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// Login maneja GET /oauth/login: redirige al consentimiento de la plataforma.
func (h *OAuthHandler) Login(c *gin.Context) {
	if h.cfg.ClientID == "" || h.cfg.AuthURL == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "oauth not configured"})
		return
	}

	params := url.Values{}
	params.Set("client_id", h.cfg.ClientID)
	params.Set("scope", h.cfg.Scope)
	params.Set("response_type", "code")
	params.Set("redirect_uri", h.cfg.RedirectURI)
	params.Set("access_type", "offline")
	params.Set("prompt", "consent")

	c.Redirect(http.StatusFound, h.cfg.AuthURL+"?"+params.Encode())
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Error        string `json:"error"`
}

// Callback maneja GET /oauth/callback: intercambia el code por tokens.
func (h *OAuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", h.cfg.ClientID)
	form.Set("client_secret", h.cfg.ClientSecret)
	form.Set("redirect_uri", h.cfg.RedirectURI)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(
		c.Request.Context(), http.MethodPost, h.cfg.TokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		h.logger.Error("create token request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token exchange failed"})
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("token exchange failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "token exchange failed"})
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "token exchange failed"})
		return
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		h.logger.Warn("token response without access token",
			zap.String("error", tr.Error), zap.Int("status", resp.StatusCode))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to get access token"})
		return
	}

	token := service.ChatToken{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().UTC().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if err := h.tokens.Save(c.Request.Context(), token); err != nil {
		h.logger.Error("save chat token failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store token"})
		return
	}

	h.logger.Info("oauth token stored")
	c.JSON(http.StatusOK, gin.H{"status": "oauth successful"})
}
