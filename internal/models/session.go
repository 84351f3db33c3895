package models

import (
	"time"

	"github.com/google/uuid"
)

// Session maps an opaque token handed to the client to a user id. Rows
// expire a fixed lifetime after creation and are removed by a periodic
// sweep.
type Session struct {
	Token     string    `json:"-" gorm:"type:varchar(64);primaryKey"`
	UserID    uuid.UUID `json:"userID" gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null;index"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

func (Session) TableName() string {
	return "sessions"
}

// Expired reports whether the session is past its absolute lifetime.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
