package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/skydrive/backend/internal/config"
	"github.com/skydrive/backend/internal/middleware"
	"github.com/skydrive/backend/internal/models"
	"github.com/skydrive/backend/internal/services"
	"github.com/skydrive/backend/internal/storage"
	"github.com/skydrive/backend/pkg/logger"
	"github.com/skydrive/backend/pkg/utils"
	"gorm.io/gorm"
)

const testUploadLimit = 10 * 1024 * 1024

type testEnv struct {
	app       *fiber.App
	db        *gorm.DB
	store     *fakeStore
	mailer    *fakeMailer
	sessions  *services.SessionService
	hierarchy *services.HierarchyService
	tempDir   string
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
	})

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

	err = db.AutoMigrate(
		&models.User{},
		&models.Folder{},
		&models.File{},
		&models.ShareLink{},
		&models.Session{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	store := newFakeStore()
	mailer := &fakeMailer{}
	tempDir := t.TempDir()

	sessionCfg := config.SessionConfig{
		Secret:        "test-secret",
		Lifetime:      time.Hour,
		SweepInterval: time.Minute,
	}
	uploadCfg := config.UploadConfig{
		TempDir:  tempDir,
		MaxBytes: testUploadLimit,
	}

	sessionService := services.NewSessionService(db, sessionCfg)
	hierarchyService := services.NewHierarchyService(db, store)
	shareLinkService := services.NewShareLinkService(db, hierarchyService, "http://localhost:8080")

	authHandler := NewAuthHandler(db, sessionService)
	driveHandler := NewDriveHandler(hierarchyService)
	filesHandler := NewFilesHandler(hierarchyService, store, uploadCfg)
	sharesHandler := NewSharesHandler(shareLinkService, store, mailer)

	authMiddleware := middleware.NewAuthMiddleware(sessionService)

	app := fiber.New(fiber.Config{BodyLimit: testUploadLimit + 1024*1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS("http://localhost:3000"))
	app.Use(middleware.RequestLogger())
	app.Use(authMiddleware.LoadUser)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return utils.Success(c, fiber.StatusOK, fiber.Map{
			"app":  "skydrive",
			"user": middleware.GetCurrentUser(c),
		})
	})

	app.Post("/sign-up", authHandler.SignUp)
	app.Post("/log-in", authHandler.LogIn)
	app.Get("/log-out", authHandler.LogOut)

	drive := app.Group("/drive", authMiddleware.RequireAuth)
	drive.Get("/", driveHandler.Root)
	drive.Get("/driveFolder/all-folders", driveHandler.AllFolders)
	drive.Get("/driveFolder/all-files", driveHandler.AllFiles)
	drive.Post("/share", sharesHandler.Create)
	drive.Get("/file/:fileId", filesHandler.GetFile)
	drive.Get("/file/:fileId/download", filesHandler.DownloadFile)
	drive.Post("/:type/:id/rename", driveHandler.Rename)
	drive.Post("/:type/:id/delete", driveHandler.Delete)
	drive.Get("/:folderId", driveHandler.Folder)
	drive.Post("/:folderId/add-subfolder", driveHandler.AddSubfolder)
	drive.Post("/:folderId/upload", filesHandler.UploadFile)

	app.Get("/share/:token", sharesHandler.Resolve)
	app.Get("/share/:token/download", sharesHandler.Download)

	app.Use(func(c *fiber.Ctx) error {
		return utils.Error(c, fiber.StatusNotFound, "page not found")
	})

	return &testEnv{
		app:       app,
		db:        db,
		store:     store,
		mailer:    mailer,
		sessions:  sessionService,
		hierarchy: hierarchyService,
		tempDir:   tempDir,
	}
}

// createTestUser provisions a user with their root folder, opens a
// session and returns the plaintext session token.
func createTestUser(t *testing.T, env *testEnv, username, password string) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
	}
	if err := env.db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	root := &models.Folder{
		Name:   models.RootFolderName,
		UserID: user.ID,
	}
	if err := env.db.Create(root).Error; err != nil {
		t.Fatalf("failed creating root folder: %v", err)
	}

	token, _, err := env.sessions.Create(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("failed creating session: %v", err)
	}

	return user, token
}

func rootFolderOf(t *testing.T, env *testEnv, userID uuid.UUID) *models.Folder {
	t.Helper()

	var folder models.Folder
	err := env.db.Where("user_id = ? AND parent_id IS NULL", userID).First(&folder).Error
	if err != nil {
		t.Fatalf("failed loading root folder: %v", err)
	}
	return &folder
}

func authCookie(token string) map[string]string {
	return map[string]string{"Cookie": middleware.SessionCookie + "=" + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func performUpload(t *testing.T, app *fiber.App, path, filename string, content []byte, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(UploadFieldName, filename)
	if err != nil {
		t.Fatalf("failed creating multipart field: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed writing multipart content: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	requestHeaders["Content-Type"] = writer.FormDataContentType()

	return performRequest(t, app, http.MethodPost, path, &buf, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func dataOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()

	if success, _ := body["success"].(bool); !success {
		t.Fatalf("expected success=true, got %+v", body)
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %T", body["data"])
	}
	return data
}

type fakeObject struct {
	data        []byte
	contentType string
}

// fakeStore is an in-memory ObjectStore used in place of MinIO.
type fakeStore struct {
	mu            sync.Mutex
	objects       map[string]fakeObject
	failUploads   bool
	failDownloads bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]fakeObject{}}
}

func (s *fakeStore) Upload(_ context.Context, objectName string, reader io.Reader, _ int64, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUploads {
		return errors.New("upload rejected")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.objects[objectName] = fakeObject{data: data, contentType: contentType}
	return nil
}

func (s *fakeStore) Download(_ context.Context, objectName string) (storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failDownloads {
		return nil, errors.New("download rejected")
	}
	obj, ok := s.objects[objectName]
	if !ok {
		return nil, errors.New("object not found")
	}
	return &fakeStoredObject{
		Reader: bytes.NewReader(obj.data),
		info: storage.ObjectInfo{
			Size:        int64(len(obj.data)),
			ContentType: obj.contentType,
		},
	}, nil
}

func (s *fakeStore) Delete(_ context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, objectName)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.objects)
}

type fakeStoredObject struct {
	*bytes.Reader
	info storage.ObjectInfo
}

func (o *fakeStoredObject) Close() error {
	return nil
}

func (o *fakeStoredObject) Stat() (storage.ObjectInfo, error) {
	return o.info, nil
}

type sentMail struct {
	recipient string
	linkURL   string
	expiresAt time.Time
}

// fakeMailer records notifications instead of dialing a relay.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) SendShareNotification(_ context.Context, recipient, linkURL string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, sentMail{recipient: recipient, linkURL: linkURL, expiresAt: expiresAt})
	return nil
}

func (m *fakeMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sent)
}

func (m *fakeMailer) lastSent() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}
