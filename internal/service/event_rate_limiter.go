package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventRateLimiter limita cuantos eventos de webhook se procesan por
// conversacion dentro de una ventana. Un limiter nil siempre permite.
type EventRateLimiter interface {
	Allow(key string) bool
}

const redisEventAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisEventRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

func NewRedisEventRateLimiter(client *redis.Client, window time.Duration, max int) EventRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 30
	}
	return &redisEventRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "events:rl:",
	}
}

// Allow falla abierto: si redis no responde, el evento se procesa igual.
func (l *redisEventRateLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalizedKey := strings.ToLower(strings.TrimSpace(key))
	if normalizedKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	redisKey := l.prefix + normalizedKey
	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	count, err := l.client.Eval(ctx, redisEventAllowScript, []string{redisKey}, seconds).Int()
	if err != nil {
		return true
	}
	return count <= l.max
}
