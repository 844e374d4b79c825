package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	manager := NewSessionManager(time.Hour)

	token, expiresAt, err := manager.Create(7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if token == "" {
		t.Fatal("Create returned empty token")
	}
	if remaining := time.Until(expiresAt); remaining < 59*time.Minute {
		t.Fatalf("expiry too soon: %v", remaining)
	}

	userID, _, ok, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !ok || userID != 7 {
		t.Fatalf("Validate = (%d, %t), want (7, true)", userID, ok)
	}

	if err := manager.Revoke(token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, _, ok, _ := manager.Validate(token); ok {
		t.Fatal("Validate succeeded after Revoke")
	}
}

func TestCreateRejectsInvalidUserID(t *testing.T) {
	manager := NewSessionManager(time.Hour)
	if _, _, err := manager.Create(0); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("Create(0) error = %v, want ErrInvalidUserID", err)
	}
}

func TestValidateExpiredSession(t *testing.T) {
	manager := NewSessionManager(time.Hour)
	current := time.Now()
	manager.now = func() time.Time { return current }

	token, _, err := manager.Create(7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	current = current.Add(2 * time.Hour)
	if _, _, ok, err := manager.Validate(token); err != nil || ok {
		t.Fatalf("Validate expired = (%t, %v), want (false, nil)", ok, err)
	}
	// Eager deletion: the token must be gone from the store as well.
	if record, ok, _ := manager.store.Get(token); ok {
		t.Fatalf("expired session still stored: %+v", record)
	}
}

func TestValidateUnknownToken(t *testing.T) {
	manager := NewSessionManager(time.Hour)
	if _, _, ok, err := manager.Validate("deadbeef"); err != nil || ok {
		t.Fatalf("Validate unknown = (%t, %v), want (false, nil)", ok, err)
	}
	if _, _, ok, err := manager.Validate(""); err != nil || ok {
		t.Fatalf("Validate empty = (%t, %v), want (false, nil)", ok, err)
	}
}

func TestPurgeExpired(t *testing.T) {
	store := NewMemorySessionStore()
	manager := NewSessionManager(time.Minute, WithStore(store))

	token, _, err := manager.Create(7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Save("stale", 8, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := manager.PurgeExpired(); err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if _, ok, _ := store.Get("stale"); ok {
		t.Fatal("stale session survived purge")
	}
	if _, ok, _ := store.Get(token); !ok {
		t.Fatal("live session was purged")
	}
}

func TestWithTokenLength(t *testing.T) {
	manager := NewSessionManager(time.Hour, WithTokenLength(16))
	token, _, err := manager.Create(7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(token) != 32 {
		t.Fatalf("token length = %d hex chars, want 32", len(token))
	}
}
