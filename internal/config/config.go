package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuracion del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8000"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	LLMAPIKey         string `env:"LLM_API_KEY,required"`
	LLMBaseURL        string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel          string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMEmbeddingModel string `env:"LLM_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	// Parametros del enlazador de issues. El umbral depende del espacio de
	// embeddings configurado; no es una constante portable.
	SimilarityThreshold float64 `env:"SIMILARITY_THRESHOLD" envDefault:"0.75"`
	ReopenWindowMinutes int     `env:"REOPEN_WINDOW_MINUTES" envDefault:"5"`
	RecentTitleScan     int     `env:"RECENT_TITLE_SCAN" envDefault:"5"`
	TitleMaxLen         int     `env:"TITLE_MAX_LEN" envDefault:"100"`
	SummaryMaxLen       int     `env:"SUMMARY_MAX_LEN" envDefault:"500"`
	SearchTopK          int     `env:"SEARCH_TOP_K" envDefault:"5"`
	IssueSource         string  `env:"ISSUE_SOURCE" envDefault:"Cliq"`

	// OAuth contra la plataforma de chat.
	ChatClientID     string `env:"CHAT_CLIENT_ID"`
	ChatClientSecret string `env:"CHAT_CLIENT_SECRET"`
	ChatAuthURL      string `env:"CHAT_AUTH_URL"`
	ChatTokenURL     string `env:"CHAT_TOKEN_URL"`
	ChatRedirectURI  string `env:"CHAT_REDIRECT_URI" envDefault:"http://localhost:8000/oauth/callback"`
	ChatOAuthScope   string `env:"CHAT_OAUTH_SCOPE"`
	BotName          string `env:"BOT_NAME" envDefault:"workspace-vita"`

	// Cola de eventos intermedia (producer -> consumer).
	EventQueueURL string `env:"EVENT_QUEUE_URL"`

	// Almacenamiento de objetos para adjuntos.
	BucketURL   string `env:"BUCKET_URL"`
	BucketToken string `env:"BUCKET_TOKEN"`

	// Alertas por correo para incidentes de severidad alta.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`
	AlertEmail   string `env:"ALERT_EMAIL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// API administrativa (reindex/debug).
	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`
	AdminPasswordHash    string `env:"ADMIN_PASSWORD_HASH"`
}

// ChatConfig agrupa los parametros OAuth de la plataforma de chat.
type ChatConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURI  string
	Scope        string
}

// Chat devuelve la vista OAuth de la configuracion.
func (c *Config) Chat() ChatConfig {
	return ChatConfig{
		ClientID:     c.ChatClientID,
		ClientSecret: c.ChatClientSecret,
		AuthURL:      c.ChatAuthURL,
		TokenURL:     c.ChatTokenURL,
		RedirectURI:  c.ChatRedirectURI,
		Scope:        c.ChatOAuthScope,
	}
}

// LoadConfig carga la configuracion desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
