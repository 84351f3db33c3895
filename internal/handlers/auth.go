package handlers

import (
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/skydrive/backend/internal/middleware"
	"github.com/skydrive/backend/internal/models"
	"github.com/skydrive/backend/internal/services"
	"github.com/skydrive/backend/pkg/logger"
	"github.com/skydrive/backend/pkg/utils"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB       *gorm.DB
	Sessions *services.SessionService
}

func NewAuthHandler(db *gorm.DB, sessions *services.SessionService) *AuthHandler {
	return &AuthHandler{DB: db, Sessions: sessions}
}

type signUpRequest struct {
	Username        string `json:"username" form:"username"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var req signUpRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	fields := map[string]string{}
	if req.Username == "" {
		fields["username"] = "username cannot be empty"
	} else if len(req.Username) > 255 {
		fields["username"] = "username must be at most 255 characters"
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			fields["email"] = "not a valid e-mail address"
		} else if len(req.Email) > 50 {
			fields["email"] = "e-mail must be at most 50 characters"
		}
	}
	if len(req.Password) < 4 {
		fields["password"] = "password must be at least 4 characters"
	}
	if req.ConfirmPassword != req.Password {
		fields["confirmPassword"] = "passwords do not match"
	}

	if _, taken := fields["username"]; !taken && req.Username != "" {
		var existing models.User
		err := h.DB.First(&existing, "username = ?", req.Username).Error
		if err == nil {
			fields["username"] = "username is already taken"
		} else if err != gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusInternalServerError, "failed checking existing user")
		}
	}

	if len(fields) > 0 {
		return utils.ValidationFailed(c, fields)
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to hash password")
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: passwordHash,
	}
	if req.Email != "" {
		user.Email = &req.Email
	}

	// The account and its root folder exist together or not at all.
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		root := models.Folder{
			Name:   models.RootFolderName,
			UserID: user.ID,
		}
		return tx.Create(&root).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	logger.Info("user_signed_up", map[string]interface{}{
		"user_id":  user.ID.String(),
		"username": user.Username,
	})

	token, expiresAt, err := h.Sessions.Create(c.Context(), user.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating session")
	}
	setSessionCookie(c, token, expiresAt)

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"user": user})
}

type logInRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (h *AuthHandler) LogIn(c *fiber.Ctx) error {
	var req logInRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)

	if req.Username == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "username and password are required")
	}

	var user models.User
	if err := h.DB.First(&user, "username = ?", req.Username).Error; err != nil {
		logger.Warn("login_failed_user_not_found", map[string]interface{}{
			"username": req.Username,
			"ip":       c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		logger.Warn("login_failed_invalid_password", map[string]interface{}{
			"user_id":  user.ID.String(),
			"username": req.Username,
			"ip":       c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	token, expiresAt, err := h.Sessions.Create(c.Context(), user.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating session")
	}
	setSessionCookie(c, token, expiresAt)

	logger.Info("user_login", map[string]interface{}{
		"user_id":  user.ID.String(),
		"username": user.Username,
		"ip":       c.IP(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"user": user})
}

func (h *AuthHandler) LogOut(c *fiber.Ctx) error {
	token := c.Cookies(middleware.SessionCookie)
	if token != "" {
		if err := h.Sessions.Invalidate(c.Context(), token); err != nil {
			logger.Error("logout_invalidate_failed", err, map[string]interface{}{
				"ip": c.IP(),
			})
		}
	}
	clearSessionCookie(c)
	return c.Redirect("/", fiber.StatusFound)
}

func setSessionCookie(c *fiber.Ctx, token string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Expires:  expiresAt,
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
	})
}
