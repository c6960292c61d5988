package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoChatToken indica que no hay token OAuth guardado para el bot.
var ErrNoChatToken = errors.New("no chat token stored")

// ChatToken es el par de tokens OAuth emitido por la plataforma de chat.
type ChatToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reporta si el access token ya vencio (con un margen de 60s).
func (t ChatToken) Expired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(t.ExpiresAt.Add(-60 * time.Second))
}

// ChatTokenStore persiste el token OAuth del bot entre reinicios.
type ChatTokenStore interface {
	Save(ctx context.Context, token ChatToken) error
	Load(ctx context.Context) (ChatToken, error)
}

type memoryChatTokenStore struct {
	mu    sync.Mutex
	token *ChatToken
}

func NewMemoryChatTokenStore() ChatTokenStore {
	return &memoryChatTokenStore{}
}

func (s *memoryChatTokenStore) Save(_ context.Context, token ChatToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = &token
	return nil
}

func (s *memoryChatTokenStore) Load(_ context.Context) (ChatToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return ChatToken{}, ErrNoChatToken
	}
	return *s.token, nil
}

type redisChatTokenStore struct {
	client *redis.Client
	prefix string
}

func NewRedisChatTokenStore(client *redis.Client) ChatTokenStore {
	if client == nil {
		return nil
	}
	return &redisChatTokenStore{
		client: client,
		prefix: "chat:oauth:",
	}
}

func (s *redisChatTokenStore) Save(ctx context.Context, token ChatToken) error {
	if strings.TrimSpace(token.AccessToken) == "" {
		return errors.New("access token is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	expiresAt := ""
	if !token.ExpiresAt.IsZero() {
		expiresAt = token.ExpiresAt.UTC().Format(time.RFC3339)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.prefix+"access", token.AccessToken, 0)
	pipe.Set(ctx, s.prefix+"refresh", token.RefreshToken, 0)
	pipe.Set(ctx, s.prefix+"expires_at", expiresAt, 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisChatTokenStore) Load(ctx context.Context) (ChatToken, error) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	access, err := s.client.Get(ctx, s.prefix+"access").Result()
	if errors.Is(err, redis.Nil) {
		return ChatToken{}, ErrNoChatToken
	}
	if err != nil {
		return ChatToken{}, err
	}

	token := ChatToken{AccessToken: access}
	if refresh, err := s.client.Get(ctx, s.prefix+"refresh").Result(); err == nil {
		token.RefreshToken = refresh
	}
	if raw, err := s.client.Get(ctx, s.prefix+"expires_at").Result(); err == nil && raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			token.ExpiresAt = ts
		}
	}
	return token, nil
}
