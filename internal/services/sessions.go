package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skydrive/backend/internal/config"
	"github.com/skydrive/backend/internal/models"
	"github.com/skydrive/backend/pkg/logger"
	"github.com/skydrive/backend/pkg/utils"
	"gorm.io/gorm"
)

// SessionService issues and resolves opaque session tokens. Only a
// keyed hash of the token is stored, so a leaked sessions table cannot
// be replayed against the API.
type SessionService struct {
	db  *gorm.DB
	cfg config.SessionConfig

	stopOnce sync.Once
	stop     chan struct{}
}

func NewSessionService(db *gorm.DB, cfg config.SessionConfig) *SessionService {
	return &SessionService{
		db:   db,
		cfg:  cfg,
		stop: make(chan struct{}),
	}
}

// Create opens a new session for userID and returns the plaintext
// token handed to the client.
func (s *SessionService) Create(ctx context.Context, userID uuid.UUID) (string, time.Time, error) {
	token, err := utils.NewToken(32)
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := time.Now().Add(s.cfg.Lifetime)
	session := models.Session{
		Token:     utils.HashSessionToken(s.cfg.Secret, token),
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Resolve maps a client token to its user. A missing, expired or
// orphaned session resolves to (nil, nil): the caller proceeds
// anonymously. Only infrastructure failures return an error.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.User, error) {
	var session models.Session
	err := s.db.WithContext(ctx).
		Where("token = ?", utils.HashSessionToken(s.cfg.Secret, token)).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if session.Expired(time.Now()) {
		return nil, nil
	}

	var user models.User
	err = s.db.WithContext(ctx).First(&user, "id = ?", session.UserID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Invalidate deletes the session behind token, if any.
func (s *SessionService) Invalidate(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).
		Where("token = ?", utils.HashSessionToken(s.cfg.Secret, token)).
		Delete(&models.Session{}).Error
}

// Sweep hard-deletes every expired session row.
func (s *SessionService) Sweep(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", time.Now()).
		Delete(&models.Session{})
	return result.RowsAffected, result.Error
}

// StartSweeper runs Sweep periodically until Stop is called.
func (s *SessionService) StartSweeper() {
	go func() {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				removed, err := s.Sweep(context.Background())
				if err != nil {
					logger.Error("session_sweep_failed", err, nil)
					continue
				}
				if removed > 0 {
					logger.Info("session_sweep", map[string]interface{}{
						"removed": removed,
					})
				}
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *SessionService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
