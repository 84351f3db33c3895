package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/skydrive/backend/internal/middleware"
	"github.com/skydrive/backend/internal/models"
	"github.com/skydrive/backend/internal/services"
	"github.com/skydrive/backend/internal/storage"
	"github.com/skydrive/backend/pkg/logger"
	"github.com/skydrive/backend/pkg/utils"
)

type SharesHandler struct {
	Links   *services.ShareLinkService
	Storage storage.ObjectStore
	Mailer  services.Mailer
}

func NewSharesHandler(links *services.ShareLinkService, store storage.ObjectStore, mailer services.Mailer) *SharesHandler {
	return &SharesHandler{Links: links, Storage: store, Mailer: mailer}
}

type createShareRequest struct {
	Kind           string `json:"kind" form:"kind"`
	TargetID       string `json:"targetID" form:"targetID"`
	Duration       string `json:"duration" form:"duration"`
	RecipientEmail string `json:"recipientEmail" form:"recipientEmail"`
}

// Create mints a time-limited share link for a folder or file the user
// owns, optionally notifying a recipient by e-mail.
func (h *SharesHandler) Create(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req createShareRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	kind, ok := models.ParseTargetKind(req.Kind)
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "invalid target type")
	}
	targetID, ok := parseUUID(req.TargetID)
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "invalid target id")
	}

	req.RecipientEmail = strings.TrimSpace(req.RecipientEmail)
	if req.RecipientEmail != "" {
		if _, err := mail.ParseAddress(req.RecipientEmail); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid recipient e-mail address")
		}
	}

	link, url, err := h.Links.Create(c.Context(), user.ID, kind, targetID, req.Duration)
	if err != nil {
		if errors.Is(err, utils.ErrInvalidDuration) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid duration")
		}
		if errors.Is(err, services.ErrFolderNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "folder not found")
		}
		if errors.Is(err, services.ErrFileNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating share link")
	}

	logger.InfoWithUser(user.ID.String(), "share_link_created", map[string]interface{}{
		"link_id":    link.ID.String(),
		"kind":       string(kind),
		"target_id":  targetID.String(),
		"expires_at": link.ExpiresAt,
	})

	if req.RecipientEmail != "" {
		// Notify outside the request outcome: a relay hiccup must not
		// fail a share that already exists.
		if err := h.Mailer.SendShareNotification(c.Context(), req.RecipientEmail, url, link.ExpiresAt); err != nil {
			logger.ErrorWithUser(user.ID.String(), "share_notification_failed", err, map[string]interface{}{
				"link_id":   link.ID.String(),
				"recipient": req.RecipientEmail,
			})
		}
	}

	return utils.Success(c, fiber.StatusCreated, fiber.Map{
		"url":       url,
		"kind":      link.Kind(),
		"expiresAt": link.ExpiresAt,
	})
}

// Resolve serves a share link to anyone holding the token.
func (h *SharesHandler) Resolve(c *fiber.Ctx) error {
	link, err := h.resolveToken(c.Context(), c.Params("token"))
	if err != nil {
		return h.linkError(c, err)
	}

	switch link.Kind() {
	case models.TargetFolder:
		return utils.Success(c, fiber.StatusOK, fiber.Map{
			"kind":      models.TargetFolder,
			"expiresAt": link.ExpiresAt,
			"folder":    folderViewPayload(link.Folder),
		})
	default:
		payload := filePayload(link.File)
		payload["downloadPath"] = "/share/" + link.Token + "/download"
		return utils.Success(c, fiber.StatusOK, fiber.Map{
			"kind":      models.TargetFile,
			"expiresAt": link.ExpiresAt,
			"file":      payload,
		})
	}
}

// Download streams the bytes behind a file share link.
func (h *SharesHandler) Download(c *fiber.Ctx) error {
	link, err := h.resolveToken(c.Context(), c.Params("token"))
	if err != nil {
		return h.linkError(c, err)
	}

	if link.Kind() != models.TargetFile {
		return utils.Error(c, fiber.StatusBadRequest, "share link does not reference a file")
	}

	file := link.File
	obj, err := h.Storage.Download(c.Context(), file.StoragePath)
	if err != nil {
		logger.Error("share_download_fetch_failed", err, map[string]interface{}{
			"link_id": link.ID.String(),
			"object":  file.StoragePath,
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed downloading file")
	}

	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return utils.Error(c, fiber.StatusInternalServerError, "failed downloading file")
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = file.ContentType
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Name))
	return c.SendStream(obj, int(info.Size))
}

func (h *SharesHandler) resolveToken(ctx context.Context, token string) (*models.ShareLink, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, services.ErrLinkNotFound
	}
	return h.Links.Resolve(ctx, token)
}

func (h *SharesHandler) linkError(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrLinkExpired) {
		return utils.Error(c, fiber.StatusGone, "share link has expired")
	}
	if errors.Is(err, services.ErrLinkNotFound) {
		return utils.Error(c, fiber.StatusNotFound, "share link not found")
	}
	return utils.Error(c, fiber.StatusInternalServerError, "failed resolving share link")
}
