package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/myeljoud/lireddit-server/internal/handlers"
	"github.com/myeljoud/lireddit-server/internal/mailer"
	"github.com/myeljoud/lireddit-server/internal/models"
	"github.com/myeljoud/lireddit-server/internal/tokens"
	"github.com/myeljoud/lireddit-server/internal/votes"
)

var testJWTSecret = []byte("router-test-secret")

// testDatabase adapts a sqlite handle to the database.Service surface.
type testDatabase struct {
	db *gorm.DB
}

func (d *testDatabase) GetDB() *gorm.DB { return d.db }

func (d *testDatabase) Health() map[string]string {
	return map[string]string{"status": "up"}
}

func (d *testDatabase) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// fakeTokenStore is an in-memory stand-in for the redis reset store.
type fakeTokenStore struct {
	mu     sync.Mutex
	byTok  map[string]int
	nextID int
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{byTok: map[string]int{}}
}

func (s *fakeTokenStore) Create(_ context.Context, userID int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	token := fmt.Sprintf("reset-token-%d", s.nextID)
	s.byTok[token] = userID
	return token, nil
}

func (s *fakeTokenStore) Consume(_ context.Context, token string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.byTok[token]
	if !ok {
		return 0, tokens.ErrTokenNotFound
	}
	delete(s.byTok, token)
	return userID, nil
}

// recordingMailer captures outgoing mail for assertions.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

func (m *recordingMailer) Send(to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

var _ mailer.Mailer = (*recordingMailer)(nil)

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	resets *fakeTokenStore
	mail   *recordingMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&models.User{}, &models.Post{}, &models.Vote{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	voteService, err := votes.NewService(votes.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("unexpected vote service error: %v", err)
	}

	resets := newFakeTokenStore()
	mail := &recordingMailer{}

	handler := handlers.NewHandler(handlers.Dependencies{
		DB:           db,
		Votes:        voteService,
		ResetTokens:  resets,
		Mailer:       mail,
		JWTSecret:    testJWTSecret,
		ResetURLBase: "http://localhost:3030/change-password",
	})

	srv := New(&testDatabase{db: db}, handler, testJWTSecret, nil)

	return &testEnv{
		router: srv.RegisterRoutes(),
		db:     db,
		resets: resets,
		mail:   mail,
	}
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

// registerUser creates an account through the API and returns its token
// and user id.
func (env *testEnv) registerUser(t *testing.T, username string) (string, int) {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", username, w.Code, w.Body.String())
	}
	body := decodeJSON(t, w)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("register %s: no token in response", username)
	}
	user, _ := body["user"].(map[string]any)
	id, _ := user["id"].(float64)
	if id <= 0 {
		t.Fatalf("register %s: no user id in response", username)
	}
	return token, int(id)
}

// createPost creates a post through the API and returns its id.
func (env *testEnv) createPost(t *testing.T, token, title string) int {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/posts", token, gin.H{
		"title": title,
		"body":  "this is a post body long enough to pass validation",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create post: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeJSON(t, w)
	id, _ := body["id"].(float64)
	if id <= 0 {
		t.Fatalf("create post: no id in response")
	}
	return int(id)
}

func fieldOf(t *testing.T, body map[string]any) string {
	t.Helper()
	errs, _ := body["errors"].([]any)
	if len(errs) == 0 {
		t.Fatalf("expected field errors, got %v", body)
	}
	first, _ := errs[0].(map[string]any)
	field, _ := first["field"].(string)
	return field
}
