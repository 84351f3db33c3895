package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/skydrive/backend/internal/middleware"
	"github.com/skydrive/backend/internal/models"
	"github.com/skydrive/backend/internal/services"
	"github.com/skydrive/backend/pkg/logger"
	"github.com/skydrive/backend/pkg/utils"
)

type DriveHandler struct {
	Hierarchy *services.HierarchyService
}

func NewDriveHandler(hierarchy *services.HierarchyService) *DriveHandler {
	return &DriveHandler{Hierarchy: hierarchy}
}

// Root redirects to the user's root folder view.
func (h *DriveHandler) Root(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	folder, err := h.Hierarchy.RootFolder(c.Context(), user.ID)
	if err != nil {
		if errors.Is(err, services.ErrFolderNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "root folder not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading root folder")
	}

	return c.Redirect("/drive/"+folder.ID.String(), fiber.StatusFound)
}

func (h *DriveHandler) Folder(c *fiber.Ctx) error {
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

	return utils.Success(c, fiber.StatusOK, folderViewPayload(folder))
}

func (h *DriveHandler) AddSubfolder(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	parentID, ok := parseUUID(c.Params("folderId"))
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	subfolder, err := h.Hierarchy.AddSubfolder(c.Context(), user.ID, parentID)
	if err != nil {
		if errors.Is(err, services.ErrFolderNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "folder not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating subfolder")
	}

	logger.InfoWithUser(user.ID.String(), "subfolder_created", map[string]interface{}{
		"folder_id": subfolder.ID.String(),
		"parent_id": parentID.String(),
	})

	return utils.Success(c, fiber.StatusCreated, subfolder)
}

type renameRequest struct {
	Name string `json:"name" form:"name"`
}

func (h *DriveHandler) Rename(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	kind, ok := models.ParseTargetKind(c.Params("type"))
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "invalid target type")
	}
	id, ok := parseUUID(c.Params("id"))
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "invalid id")
	}

	var req renameRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}
	if len(req.Name) > 255 {
		return utils.Error(c, fiber.StatusBadRequest, "name must be at most 255 characters")
	}

	var renamed interface{}
	var err error
	switch kind {
	case models.TargetFolder:
		renamed, err = h.Hierarchy.RenameFolder(c.Context(), user.ID, id, req.Name)
	case models.TargetFile:
		renamed, err = h.Hierarchy.RenameFile(c.Context(), user.ID, id, req.Name)
	}
	if err != nil {
		if errors.Is(err, services.ErrFolderNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "folder not found")
		}
		if errors.Is(err, services.ErrFileNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed renaming "+string(kind))
	}

	logger.InfoWithUser(user.ID.String(), "target_renamed", map[string]interface{}{
		"kind": string(kind),
		"id":   id.String(),
		"name": req.Name,
	})

	return utils.Success(c, fiber.StatusOK, renamed)
}

func (h *DriveHandler) Delete(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	kind, ok := models.ParseTargetKind(c.Params("type"))
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "invalid target type")
	}
	id, ok := parseUUID(c.Params("id"))
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "invalid id")
	}

	var deleted interface{}
	var err error
	switch kind {
	case models.TargetFolder:
		deleted, err = h.Hierarchy.DeleteFolder(c.Context(), user.ID, id)
	case models.TargetFile:
		deleted, err = h.Hierarchy.DeleteFile(c.Context(), user.ID, id)
	}
	if err != nil {
		if errors.Is(err, services.ErrFolderNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "folder not found")
		}
		if errors.Is(err, services.ErrFileNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting "+string(kind))
	}

	logger.InfoWithUser(user.ID.String(), "target_deleted", map[string]interface{}{
		"kind": string(kind),
		"id":   id.String(),
	})

	return utils.Success(c, fiber.StatusOK, deleted)
}

// AllFolders returns every folder the user owns as a flat list, oldest
// first.
func (h *DriveHandler) AllFolders(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	folders, err := h.Hierarchy.AllFolders(c.Context(), user.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading folders")
	}
	return utils.Success(c, fiber.StatusOK, folders)
}

// AllFiles returns every file across the user's tree as a flat list,
// oldest first.
func (h *DriveHandler) AllFiles(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	files, err := h.Hierarchy.AllFiles(c.Context(), user.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading files")
	}
	return utils.Success(c, fiber.StatusOK, files)
}

// folderViewPayload shapes a folder and its immediate contents for the
// drive view, attaching human-readable timestamps and sizes.
func folderViewPayload(folder *models.Folder) fiber.Map {
	subfolders := make([]fiber.Map, 0, len(folder.Subfolders))
	for i := range folder.Subfolders {
		subfolders = append(subfolders, subfolderPayload(&folder.Subfolders[i]))
	}

	files := make([]fiber.Map, 0, len(folder.Files))
	for i := range folder.Files {
		files = append(files, filePayload(&folder.Files[i]))
	}

	payload := fiber.Map{
		"id":                 folder.ID,
		"name":               folder.Name,
		"parentID":           folder.ParentID,
		"isRoot":             folder.IsRoot(),
		"createdAt":          folder.CreatedAt,
		"updatedAt":          folder.UpdatedAt,
		"formattedCreatedAt": utils.FormatRelativeTime(folder.CreatedAt),
		"formattedUpdatedAt": utils.FormatRelativeTime(folder.UpdatedAt),
		"subfolders":         subfolders,
		"files":              files,
	}
	if folder.Parent != nil {
		payload["parent"] = fiber.Map{
			"id":   folder.Parent.ID,
			"name": folder.Parent.Name,
		}
	}
	return payload
}

func subfolderPayload(folder *models.Folder) fiber.Map {
	return fiber.Map{
		"id":                 folder.ID,
		"name":               folder.Name,
		"createdAt":          folder.CreatedAt,
		"updatedAt":          folder.UpdatedAt,
		"formattedCreatedAt": utils.FormatRelativeTime(folder.CreatedAt),
		"formattedUpdatedAt": utils.FormatRelativeTime(folder.UpdatedAt),
	}
}

func filePayload(file *models.File) fiber.Map {
	return fiber.Map{
		"id":                 file.ID,
		"name":               file.Name,
		"folderID":           file.FolderID,
		"contentType":        file.ContentType,
		"size":               file.Size,
		"formattedSize":      utils.FormatByteSize(file.Size),
		"createdAt":          file.CreatedAt,
		"updatedAt":          file.UpdatedAt,
		"formattedCreatedAt": utils.FormatRelativeTime(file.CreatedAt),
		"formattedUpdatedAt": utils.FormatRelativeTime(file.UpdatedAt),
	}
}
