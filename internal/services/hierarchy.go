package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/skydrive/backend/internal/models"
	"github.com/skydrive/backend/internal/storage"
	"gorm.io/gorm"
)

var (
	ErrFolderNotFound = errors.New("folder not found")
	ErrFileNotFound   = errors.New("file not found")
)

// HierarchyService manages a user's folder/file tree. Every lookup and
// mutation is scoped to the acting user: a folder or file owned by
// someone else is indistinguishable from one that does not exist.
type HierarchyService struct {
	db    *gorm.DB
	store storage.ObjectStore
}

func NewHierarchyService(db *gorm.DB, store storage.ObjectStore) *HierarchyService {
	return &HierarchyService{db: db, store: store}
}

func byUpdatedDesc(db *gorm.DB) *gorm.DB {
	return db.Order("updated_at DESC")
}

// RootFolder returns the user's single parentless folder with its
// direct subfolders and files.
func (h *HierarchyService) RootFolder(ctx context.Context, userID uuid.UUID) (*models.Folder, error) {
	var folder models.Folder
	err := h.db.WithContext(ctx).
		Preload("Subfolders", byUpdatedDesc).
		Preload("Files", byUpdatedDesc).
		Where("user_id = ? AND parent_id IS NULL", userID).
		First(&folder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFolderNotFound
		}
		return nil, err
	}
	return &folder, nil
}

// Folder returns the folder only when it belongs to userID, with its
// parent reference and contents ordered most-recently-updated first.
func (h *HierarchyService) Folder(ctx context.Context, userID, folderID uuid.UUID) (*models.Folder, error) {
	var folder models.Folder
	err := h.db.WithContext(ctx).
		Preload("Parent").
		Preload("Subfolders", byUpdatedDesc).
		Preload("Files", byUpdatedDesc).
		Where("id = ? AND user_id = ?", folderID, userID).
		First(&folder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFolderNotFound
		}
		return nil, err
	}
	return &folder, nil
}

// AddSubfolder creates a folder with the default name under parentID.
// The parent must belong to userID.
func (h *HierarchyService) AddSubfolder(ctx context.Context, userID, parentID uuid.UUID) (*models.Folder, error) {
	var parent models.Folder
	err := h.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", parentID, userID).
		First(&parent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFolderNotFound
		}
		return nil, err
	}

	subfolder := models.Folder{
		Name:     models.DefaultSubfolderName,
		UserID:   userID,
		ParentID: &parent.ID,
	}
	if err := h.db.WithContext(ctx).Create(&subfolder).Error; err != nil {
		return nil, err
	}
	return &subfolder, nil
}

// FileForUser resolves a file while enforcing the transitive ownership
// chain file -> folder -> user.
func (h *HierarchyService) FileForUser(ctx context.Context, userID, fileID uuid.UUID) (*models.File, error) {
	var file models.File
	err := h.db.WithContext(ctx).
		Joins("JOIN folders ON folders.id = files.folder_id AND folders.deleted_at IS NULL").
		Where("files.id = ? AND folders.user_id = ?", fileID, userID).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return &file, nil
}

// CreateFile records an uploaded object inside a folder. Ownership of
// the folder must have been checked by the caller.
func (h *HierarchyService) CreateFile(ctx context.Context, folderID uuid.UUID, name, storagePath, contentType string, size int64) (*models.File, error) {
	file := models.File{
		Name:        name,
		StoragePath: storagePath,
		ContentType: contentType,
		Size:        size,
		FolderID:    folderID,
	}
	if err := h.db.WithContext(ctx).Create(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func (h *HierarchyService) RenameFolder(ctx context.Context, userID, folderID uuid.UUID, name string) (*models.Folder, error) {
	var folder models.Folder
	err := h.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", folderID, userID).
		First(&folder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFolderNotFound
		}
		return nil, err
	}

	if err := h.db.WithContext(ctx).Model(&folder).Update("name", name).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}

func (h *HierarchyService) RenameFile(ctx context.Context, userID, fileID uuid.UUID, name string) (*models.File, error) {
	file, err := h.FileForUser(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}

	if err := h.db.WithContext(ctx).Model(file).Update("name", name).Error; err != nil {
		return nil, err
	}
	return file, nil
}

// DeleteFolder removes a folder and, recursively, everything beneath
// it: subfolders, files, their remote objects, and any share links
// referencing the deleted rows. Ownership is checked once at the root
// of the cascade; descendants belong to the same user by invariant.
func (h *HierarchyService) DeleteFolder(ctx context.Context, userID, folderID uuid.UUID) (*models.Folder, error) {
	var folder models.Folder
	err := h.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", folderID, userID).
		First(&folder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFolderNotFound
		}
		return nil, err
	}

	if err := h.deleteFolderRecursive(ctx, folder.ID); err != nil {
		return nil, err
	}
	return &folder, nil
}

func (h *HierarchyService) deleteFolderRecursive(ctx context.Context, folderID uuid.UUID) error {
	var subfolders []models.Folder
	if err := h.db.WithContext(ctx).Where("parent_id = ?", folderID).Find(&subfolders).Error; err != nil {
		return err
	}
	for _, sub := range subfolders {
		if err := h.deleteFolderRecursive(ctx, sub.ID); err != nil {
			return err
		}
	}

	var files []models.File
	if err := h.db.WithContext(ctx).Where("folder_id = ?", folderID).Find(&files).Error; err != nil {
		return err
	}
	for i := range files {
		if err := h.removeFile(ctx, &files[i]); err != nil {
			return err
		}
	}

	if err := h.db.WithContext(ctx).Where("folder_id = ?", folderID).Delete(&models.ShareLink{}).Error; err != nil {
		return err
	}
	return h.db.WithContext(ctx).Delete(&models.Folder{}, "id = ?", folderID).Error
}

// DeleteFile removes a single file, its remote object and its share
// links.
func (h *HierarchyService) DeleteFile(ctx context.Context, userID, fileID uuid.UUID) (*models.File, error) {
	file, err := h.FileForUser(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}

	if err := h.removeFile(ctx, file); err != nil {
		return nil, err
	}
	return file, nil
}

func (h *HierarchyService) removeFile(ctx context.Context, file *models.File) error {
	if file.StoragePath != "" {
		if err := h.store.Delete(ctx, file.StoragePath); err != nil {
			return err
		}
	}
	if err := h.db.WithContext(ctx).Where("file_id = ?", file.ID).Delete(&models.ShareLink{}).Error; err != nil {
		return err
	}
	return h.db.WithContext(ctx).Delete(&models.File{}, "id = ?", file.ID).Error
}

// AllFolders lists every folder the user owns, oldest first.
func (h *HierarchyService) AllFolders(ctx context.Context, userID uuid.UUID) ([]models.Folder, error) {
	var folders []models.Folder
	err := h.db.WithContext(ctx).
		Preload("Subfolders").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&folders).Error
	if err != nil {
		return nil, err
	}
	return folders, nil
}

// AllFiles lists every file across the user's tree, oldest first.
func (h *HierarchyService) AllFiles(ctx context.Context, userID uuid.UUID) ([]models.File, error) {
	var files []models.File
	err := h.db.WithContext(ctx).
		Joins("JOIN folders ON folders.id = files.folder_id AND folders.deleted_at IS NULL").
		Where("folders.user_id = ?", userID).
		Order("files.created_at ASC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}
