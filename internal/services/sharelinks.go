package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/skydrive/backend/internal/models"
	"github.com/skydrive/backend/pkg/utils"
	"gorm.io/gorm"
)

var (
	ErrLinkNotFound = errors.New("share link not found")
	ErrLinkExpired  = errors.New("share link expired")
)

// ShareLinkService mints and resolves time-limited share tokens. The
// token itself is the capability: anyone holding the URL can read the
// target until the link expires.
type ShareLinkService struct {
	db        *gorm.DB
	hierarchy *HierarchyService
	baseURL   string
}

func NewShareLinkService(db *gorm.DB, hierarchy *HierarchyService, baseURL string) *ShareLinkService {
	return &ShareLinkService{db: db, hierarchy: hierarchy, baseURL: baseURL}
}

// Create mints a link for a folder or file the user owns. durationSpec
// is parsed with ParseShareDuration; ownership failures surface as the
// target's not-found error.
func (s *ShareLinkService) Create(ctx context.Context, userID uuid.UUID, kind models.TargetKind, targetID uuid.UUID, durationSpec string) (*models.ShareLink, string, error) {
	duration, err := utils.ParseShareDuration(durationSpec)
	if err != nil {
		return nil, "", err
	}

	link := models.ShareLink{
		CreatedBy: userID,
		ExpiresAt: time.Now().Add(duration),
	}

	switch kind {
	case models.TargetFolder:
		folder, err := s.hierarchy.Folder(ctx, userID, targetID)
		if err != nil {
			return nil, "", err
		}
		link.FolderID = &folder.ID
	case models.TargetFile:
		file, err := s.hierarchy.FileForUser(ctx, userID, targetID)
		if err != nil {
			return nil, "", err
		}
		link.FileID = &file.ID
	default:
		return nil, "", ErrLinkNotFound
	}

	token, err := utils.NewToken(24)
	if err != nil {
		return nil, "", err
	}
	link.Token = token

	if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
		return nil, "", err
	}
	return &link, s.baseURL + "/share/" + token, nil
}

// Resolve looks a token up and loads its target. Expired links are
// reported distinctly from unknown ones so callers can say 410 instead
// of 404.
func (s *ShareLinkService) Resolve(ctx context.Context, token string) (*models.ShareLink, error) {
	var link models.ShareLink
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	if link.Expired(time.Now()) {
		return nil, ErrLinkExpired
	}

	switch {
	case link.FolderID != nil:
		var folder models.Folder
		err := s.db.WithContext(ctx).
			Preload("Subfolders", byUpdatedDesc).
			Preload("Files", byUpdatedDesc).
			First(&folder, "id = ?", *link.FolderID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrLinkNotFound
			}
			return nil, err
		}
		link.Folder = &folder
	case link.FileID != nil:
		var file models.File
		err := s.db.WithContext(ctx).First(&file, "id = ?", *link.FileID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrLinkNotFound
			}
			return nil, err
		}
		link.File = &file
	default:
		return nil, ErrLinkNotFound
	}

	return &link, nil
}
