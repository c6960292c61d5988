package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryChatTokenStore(t *testing.T) {
	store := NewMemoryChatTokenStore()

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNoChatToken) {
		t.Fatalf("expected ErrNoChatToken, got %v", err)
	}

	token := ChatToken{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
	if err := store.Save(context.Background(), token); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.AccessToken != "access-1" || loaded.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected token %+v", loaded)
	}
}

func TestChatTokenExpired(t *testing.T) {
	if (ChatToken{}).Expired() {
		t.Fatalf("token without expiry must not report expired")
	}

	fresh := ChatToken{ExpiresAt: time.Now().UTC().Add(time.Hour)}
	if fresh.Expired() {
		t.Fatalf("fresh token must not report expired")
	}

	stale := ChatToken{ExpiresAt: time.Now().UTC().Add(-time.Minute)}
	if !stale.Expired() {
		t.Fatalf("stale token must report expired")
	}

	// Margen de 60s: un token que vence en 30s ya se considera vencido.
	closeCall := ChatToken{ExpiresAt: time.Now().UTC().Add(30 * time.Second)}
	if !closeCall.Expired() {
		t.Fatalf("token inside the refresh margin must report expired")
	}
}
