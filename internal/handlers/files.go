package handlers

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/skydrive/backend/internal/config"
	"github.com/skydrive/backend/internal/middleware"
	"github.com/skydrive/backend/internal/services"
	"github.com/skydrive/backend/internal/storage"
	"github.com/skydrive/backend/pkg/logger"
	"github.com/skydrive/backend/pkg/utils"
)

// UploadFieldName is the multipart form field carrying the file.
const UploadFieldName = "uploaded_file"

type FilesHandler struct {
	Hierarchy *services.HierarchyService
	Storage   storage.ObjectStore
	Upload    config.UploadConfig
}

func NewFilesHandler(hierarchy *services.HierarchyService, store storage.ObjectStore, upload config.UploadConfig) *FilesHandler {
	return &FilesHandler{Hierarchy: hierarchy, Storage: store, Upload: upload}
}

// UploadFile stages the incoming file on local disk, pushes it to the
// object store and records it under the target folder. The staging
// file is removed on every exit path.
func (h *FilesHandler) UploadFile(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	folderID, ok := parseUUID(c.Params("folderId"))
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	folder, err := h.Hierarchy.Folder(c.Context(), user.ID, folderID)
	if err != nil {
		if errors.Is(err, services.ErrFolderNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "folder not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading folder")
	}

	fileHeader, err := c.FormFile(UploadFieldName)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, UploadFieldName+" is required")
	}

	if fileHeader.Size > h.Upload.MaxBytes {
		return utils.Error(c, fiber.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
	}

	filename := filepath.Base(strings.TrimSpace(fileHeader.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file name")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	stagingPath := filepath.Join(h.Upload.TempDir, uuid.New().String())
	if err := c.SaveFile(fileHeader, stagingPath); err != nil {
		logger.ErrorWithUser(user.ID.String(), "upload_staging_failed", err, map[string]interface{}{
			"folder_id": folder.ID.String(),
			"filename":  filename,
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed staging upload")
	}
	defer func() {
		_ = os.Remove(stagingPath)
	}()

	src, err := os.Open(stagingPath)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed staging upload")
	}
	defer src.Close()

	objectName := fmt.Sprintf("%s/%s/%s", user.ID, uuid.New(), filename)
	if err := h.Storage.Upload(c.Context(), objectName, src, fileHeader.Size, contentType); err != nil {
		logger.ErrorWithUser(user.ID.String(), "upload_store_failed", err, map[string]interface{}{
			"folder_id": folder.ID.String(),
			"object":    objectName,
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed uploading file")
	}

	entry, err := h.Hierarchy.CreateFile(c.Context(), folder.ID, filename, objectName, contentType, fileHeader.Size)
	if err != nil {
		// Roll the orphaned object back so storage and the database
		// stay in step.
		if delErr := h.Storage.Delete(c.Context(), objectName); delErr != nil {
			logger.ErrorWithUser(user.ID.String(), "upload_rollback_failed", delErr, map[string]interface{}{
				"object": objectName,
			})
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed recording file")
	}

	logger.InfoWithUser(user.ID.String(), "file_uploaded", map[string]interface{}{
		"file_id":   entry.ID.String(),
		"folder_id": folder.ID.String(),
		"filename":  filename,
		"size":      entry.Size,
	})

	return utils.Success(c, fiber.StatusCreated, entry)
}

// GetFile returns a single file's metadata for the detail view.
func (h *FilesHandler) GetFile(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	fileID, ok := parseUUID(c.Params("fileId"))
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	file, err := h.Hierarchy.FileForUser(c.Context(), user.ID, fileID)
	if err != nil {
		if errors.Is(err, services.ErrFileNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading file")
	}

	return utils.Success(c, fiber.StatusOK, filePayload(file))
}

// DownloadFile streams the file's bytes as an attachment. When the
// object store cannot serve the object the client is sent back to the
// containing folder instead of an error page.
func (h *FilesHandler) DownloadFile(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	fileID, ok := parseUUID(c.Params("fileId"))
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	file, err := h.Hierarchy.FileForUser(c.Context(), user.ID, fileID)
	if err != nil {
		if errors.Is(err, services.ErrFileNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading file")
	}

	obj, err := h.Storage.Download(c.Context(), file.StoragePath)
	if err != nil {
		logger.ErrorWithUser(user.ID.String(), "download_fetch_failed", err, map[string]interface{}{
			"file_id": file.ID.String(),
			"object":  file.StoragePath,
		})
		return c.Redirect("/drive/"+file.FolderID.String(), fiber.StatusFound)
	}

	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		logger.ErrorWithUser(user.ID.String(), "download_stat_failed", err, map[string]interface{}{
			"file_id": file.ID.String(),
			"object":  file.StoragePath,
		})
		return c.Redirect("/drive/"+file.FolderID.String(), fiber.StatusFound)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = file.ContentType
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Name))
	return c.SendStream(obj, int(info.Size))
}
