package handlers

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/learncircle/backend/internal/ai"
	"github.com/learncircle/backend/internal/config"
	"github.com/learncircle/backend/internal/database"
	"github.com/learncircle/backend/internal/middleware"
	"github.com/learncircle/backend/internal/models"
	"github.com/learncircle/backend/internal/services"
	"github.com/learncircle/backend/pkg/logger"
	"github.com/learncircle/backend/pkg/utils"
	"github.com/wneessen/go-mail"
	"gorm.io/gorm"
)

type testEnv struct {
	app        *fiber.App
	db         *gorm.DB
	blobs      *fakeBlobStore
	transcribe *fakeTranscriber
	chat       *fakeChat
	mail       *fakeMailTransport
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
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

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	blobs := newFakeBlobStore()
	transcribe := &fakeTranscriber{text: "We reviewed goroutines and channels."}
	chat := &fakeChat{reply: "Here is a short answer grounded in the notes."}
	mailTransport := newFakeMailTransport()

	mailer := services.NewMailerWithTransport(config.SMTPConfig{
		From:     "noreply@test.local",
		FromName: "Test Sender",
	}, func() (services.MailTransport, error) {
		return mailTransport, nil
	})

	membershipService := services.NewMembershipService(db)
	schedulerService := services.NewSchedulerService(db)
	captureService := services.NewCaptureService(db, blobs, transcribe, chat)
	assistantService := services.NewAssistantService(db, chat)

	authHandler := NewAuthHandler(db)
	groupsHandler := NewGroupsHandler(db, membershipService, mailer)
	invitationsHandler := NewInvitationsHandler(membershipService)
	meetingsHandler := NewMeetingsHandler(db, schedulerService, mailer)
	recordingsHandler := NewRecordingsHandler(db, schedulerService, captureService, mailer)
	chatHandler := NewChatHandler(schedulerService, assistantService)
	notesHandler := NewNotesHandler(db, schedulerService)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 30 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	groupRoutes := api.Group("/groups", authMiddleware.RequireAuth)
	groupRoutes.Post("/", middleware.HostOnly, groupsHandler.Create)
	groupRoutes.Get("/", groupsHandler.List)
	groupRoutes.Get("/hosted", middleware.HostOnly, groupsHandler.Hosted)
	groupRoutes.Get("/:id", groupsHandler.Get)
	groupRoutes.Post("/:id/invitations", middleware.HostOnly, groupsHandler.Invite)
	groupRoutes.Get("/:id/meetings", meetingsHandler.ByGroup)

	invitationRoutes := api.Group("/invitations", authMiddleware.RequireAuth)
	invitationRoutes.Get("/", invitationsHandler.ListMine)
	invitationRoutes.Post("/:id/accept", invitationsHandler.Accept)
	invitationRoutes.Post("/:id/decline", invitationsHandler.Decline)

	meetingRoutes := api.Group("/meetings", authMiddleware.RequireAuth)
	meetingRoutes.Post("/", middleware.HostOnly, meetingsHandler.Create)
	meetingRoutes.Get("/", meetingsHandler.List)
	meetingRoutes.Get("/upcoming", meetingsHandler.Upcoming)
	meetingRoutes.Get("/reminders", middleware.HostOnly, meetingsHandler.Reminders)
	meetingRoutes.Post("/reminders/dispatch", middleware.HostOnly, meetingsHandler.DispatchReminders)
	meetingRoutes.Get("/:id", meetingsHandler.Get)
	meetingRoutes.Post("/:id/follow-up", middleware.HostOnly, meetingsHandler.CreateFollowUp)
	meetingRoutes.Get("/:id/follow-up", meetingsHandler.GetFollowUp)

	meetingRoutes.Post("/:id/audio", middleware.HostOnly, recordingsHandler.UploadAudio)
	meetingRoutes.Get("/:id/audio", recordingsHandler.DownloadAudio)
	meetingRoutes.Get("/:id/audio-url", recordingsHandler.AudioURL)
	meetingRoutes.Get("/:id/recording", recordingsHandler.Get)
	meetingRoutes.Put("/:id/recording", middleware.HostOnly, recordingsHandler.SaveTranscript)
	meetingRoutes.Post("/:id/minutes/generate", middleware.HostOnly, recordingsHandler.GenerateMinutes)
	meetingRoutes.Post("/:id/minutes", middleware.HostOnly, recordingsHandler.SaveMinutes)
	meetingRoutes.Post("/:id/minutes/email", middleware.HostOnly, recordingsHandler.EmailMinutes)

	meetingRoutes.Post("/:id/chat", chatHandler.Ask)
	meetingRoutes.Get("/:id/chat", chatHandler.History)
	meetingRoutes.Delete("/:id/chat", chatHandler.Clear)

	meetingRoutes.Put("/:id/note", notesHandler.Save)
	meetingRoutes.Get("/:id/note", notesHandler.GetMine)
	meetingRoutes.Get("/:id/notes", notesHandler.List)

	return &testEnv{
		app:        app,
		db:         db,
		blobs:      blobs,
		transcribe: transcribe,
		chat:       chat,
		mail:       mailTransport,
	}
}

type fakeBlobStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objectName] = data
	return nil
}

func (f *fakeBlobStore) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectName]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectName)
	return nil
}

func (f *fakeBlobStore) PresignedGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[objectName]; !ok {
		return "", fmt.Errorf("object %s not found", objectName)
	}
	return "https://blobs.test/" + objectName, nil
}

func (f *fakeBlobStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeChat struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]ai.Message
}

func (f *fakeChat) Complete(ctx context.Context, messages []ai.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeMailTransport struct {
	mu      sync.Mutex
	dialErr error
	failTo  map[string]bool
	sent    []string
}

func newFakeMailTransport() *fakeMailTransport {
	return &fakeMailTransport{failTo: map[string]bool{}}
}

func (f *fakeMailTransport) DialWithContext(ctx context.Context) error {
	return f.dialErr
}

func (f *fakeMailTransport) Send(msgs ...*mail.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range msgs {
		recipients, err := msg.GetRecipients()
		if err != nil {
			return err
		}
		for _, recipient := range recipients {
			if f.failTo[recipient] {
				return fmt.Errorf("delivery to %s refused", recipient)
			}
		}
		f.sent = append(f.sent, recipients...)
	}
	return nil
}

func (f *fakeMailTransport) Close() error { return nil }

func (f *fakeMailTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

func (f *fakeMailTransport) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.sent...)
}

func createTestUser(t *testing.T, db *gorm.DB, name, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
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

func performAudioUpload(t *testing.T, app *fiber.App, path string, audio []byte, filename string, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		t.Fatalf("failed creating multipart form: %v", err)
	}
	if _, err := part.Write(audio); err != nil {
		t.Fatalf("failed writing multipart body: %v", err)
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

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object in envelope, got %+v", body)
	}
	return data
}

func dataList(t *testing.T, body map[string]any) []any {
	t.Helper()
	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("expected data array in envelope, got %+v", body)
	}
	return data
}

func createGroupViaAPI(t *testing.T, env *testEnv, token, name string) string {
	t.Helper()

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/", map[string]any{"name": name}, authHeaders(token))
	assertStatus(t, resp, http.StatusCreated)
	data := dataMap(t, decodeJSONMap(t, resp))
	id, _ := data["id"].(string)
	if id == "" {
		t.Fatalf("group creation returned no id: %+v", data)
	}
	return id
}

func createMeetingViaAPI(t *testing.T, env *testEnv, token, groupID, title string, scheduledAt *time.Time) string {
	t.Helper()

	payload := map[string]any{"title": title, "groupID": groupID}
	if scheduledAt != nil {
		payload["scheduledAt"] = scheduledAt.Format(time.RFC3339)
	}
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/meetings/", payload, authHeaders(token))
	assertStatus(t, resp, http.StatusCreated)
	data := dataMap(t, decodeJSONMap(t, resp))
	id, _ := data["id"].(string)
	if id == "" {
		t.Fatalf("meeting creation returned no id: %+v", data)
	}
	return id
}

// joinGroup walks the invitation flow end to end: invite by email, look the
// invitation up as the invitee and accept it.
func joinGroup(t *testing.T, env *testEnv, hostToken, groupID string, member *models.User, memberToken string) {
	t.Helper()

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/"+groupID+"/invitations",
		map[string]any{"email": member.Email}, authHeaders(hostToken))
	assertStatus(t, resp, http.StatusCreated)
	invitation := dataMap(t, decodeJSONMap(t, resp))
	invitationID, _ := invitation["id"].(string)

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/invitations/"+invitationID+"/accept", nil, authHeaders(memberToken))
	assertStatus(t, resp, http.StatusOK)
	_ = decodeJSONMap(t, resp)
}
