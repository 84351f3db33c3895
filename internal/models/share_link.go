package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TargetKind discriminates folder and file targets in routes and
// share-link payloads.
type TargetKind string

const (
	TargetFolder TargetKind = "folder"
	TargetFile   TargetKind = "file"
)

func ParseTargetKind(value string) (TargetKind, bool) {
	switch TargetKind(strings.ToLower(strings.TrimSpace(value))) {
	case TargetFolder:
		return TargetFolder, true
	case TargetFile:
		return TargetFile, true
	default:
		return "", false
	}
}

// ShareLink grants unauthenticated, time-limited read access to exactly
// one folder or file. The exactly-one invariant is backed by a CHECK
// constraint added during migration.
type ShareLink struct {
	BaseModel
	Token     string     `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	FolderID  *uuid.UUID `json:"folderID,omitempty" gorm:"type:uuid;index"`
	FileID    *uuid.UUID `json:"fileID,omitempty" gorm:"type:uuid;index"`
	CreatedBy uuid.UUID  `json:"createdBy" gorm:"type:uuid;not null;index"`
	ExpiresAt time.Time  `json:"expiresAt" gorm:"not null;index"`

	Folder *Folder `json:"folder,omitempty" gorm:"foreignKey:FolderID"`
	File   *File   `json:"file,omitempty" gorm:"foreignKey:FileID"`
}

func (ShareLink) TableName() string {
	return "share_links"
}

// Expired reports whether the link is past its expiry at the given time.
func (s *ShareLink) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Kind returns which side of the folder/file reference is set.
func (s *ShareLink) Kind() TargetKind {
	if s.FileID != nil {
		return TargetFile
	}
	return TargetFolder
}
