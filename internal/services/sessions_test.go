package services

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/skydrive/backend/internal/config"
	"github.com/skydrive/backend/internal/models"
	"gorm.io/gorm"
)

func newSessionTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(&models.User{}, &models.Session{}); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}
	return db
}

func newSessionTestService(t *testing.T, lifetime time.Duration) (*SessionService, *gorm.DB) {
	t.Helper()

	db := newSessionTestDB(t)
	svc := NewSessionService(db, config.SessionConfig{
		Secret:        "test-secret",
		Lifetime:      lifetime,
		SweepInterval: time.Minute,
	})
	return svc, db
}

func createSessionTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{Username: username, PasswordHash: "irrelevant"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user: %v", err)
	}
	return user
}

func TestSessionRoundtrip(t *testing.T) {
	svc, db := newSessionTestService(t, time.Hour)
	user := createSessionTestUser(t, db, "alice")

	token, expiresAt, err := svc.Create(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("failed creating session: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty token")
	}
	if until := time.Until(expiresAt); until < 59*time.Minute || until > time.Hour {
		t.Fatalf("unexpected session lifetime, expires in %v", until)
	}

	// The plaintext token must never reach the table.
	var session models.Session
	if err := db.First(&session).Error; err != nil {
		t.Fatalf("expected a session row: %v", err)
	}
	if session.Token == token {
		t.Fatal("session table must store a hash, not the plaintext token")
	}

	resolved, err := svc.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("failed resolving session: %v", err)
	}
	if resolved == nil || resolved.ID != user.ID {
		t.Fatalf("expected user %s, got %+v", user.ID, resolved)
	}
}

func TestSessionResolveDegradesToAnonymous(t *testing.T) {
	t.Run("unknown token", func(t *testing.T) {
		svc, _ := newSessionTestService(t, time.Hour)

		user, err := svc.Resolve(context.Background(), "made-up-token")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user != nil {
			t.Fatalf("expected nil user, got %+v", user)
		}
	})

	t.Run("expired session", func(t *testing.T) {
		svc, db := newSessionTestService(t, -time.Minute)
		owner := createSessionTestUser(t, db, "bob")

		token, _, err := svc.Create(context.Background(), owner.ID)
		if err != nil {
			t.Fatalf("failed creating session: %v", err)
		}

		user, err := svc.Resolve(context.Background(), token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user != nil {
			t.Fatalf("expected nil user for an expired session, got %+v", user)
		}
	})

	t.Run("deleted user", func(t *testing.T) {
		svc, db := newSessionTestService(t, time.Hour)
		owner := createSessionTestUser(t, db, "carol")

		token, _, err := svc.Create(context.Background(), owner.ID)
		if err != nil {
			t.Fatalf("failed creating session: %v", err)
		}

		if err := db.Delete(&models.User{}, "id = ?", owner.ID).Error; err != nil {
			t.Fatalf("failed deleting user: %v", err)
		}

		user, err := svc.Resolve(context.Background(), token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user != nil {
			t.Fatalf("expected nil user after account deletion, got %+v", user)
		}
	})
}

func TestSessionInvalidate(t *testing.T) {
	svc, db := newSessionTestService(t, time.Hour)
	owner := createSessionTestUser(t, db, "dave")

	token, _, err := svc.Create(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("failed creating session: %v", err)
	}

	if err := svc.Invalidate(context.Background(), token); err != nil {
		t.Fatalf("failed invalidating session: %v", err)
	}

	user, err := svc.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil user after invalidation, got %+v", user)
	}
}

func TestSessionSweep(t *testing.T) {
	svc, db := newSessionTestService(t, time.Hour)
	owner := createSessionTestUser(t, db, "erin")

	if _, _, err := svc.Create(context.Background(), owner.ID); err != nil {
		t.Fatalf("failed creating session: %v", err)
	}

	expired := models.Session{
		Token:     "hash-of-an-expired-token",
		UserID:    owner.ID,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	if err := db.Create(&expired).Error; err != nil {
		t.Fatalf("failed seeding expired session: %v", err)
	}

	removed, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed session, got %d", removed)
	}

	var remaining int64
	if err := db.Model(&models.Session{}).Count(&remaining).Error; err != nil {
		t.Fatalf("failed counting sessions: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected the live session to survive, got %d rows", remaining)
	}
}
