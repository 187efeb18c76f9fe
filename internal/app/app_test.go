package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/service"
	"lms_backend/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubGateway struct{}

func (stubGateway) CreateTransaction(_ context.Context, req service.ChargeRequest) (*service.ChargeResponse, error) {
	return &service.ChargeResponse{Token: "tok-" + req.OrderID, RedirectURL: "https://pay.example.com/" + req.OrderID}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	db     *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	cfg := &config.Config{
		Server:  config.ServerConfig{Port: "0", Mode: "test"},
		JWT:     config.JWTConfig{Secret: "app-test-secret", ExpireTime: time.Hour},
		Storage: config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		Payment: config.PaymentConfig{ServerKey: "SB-Mid-server-app", PendingTTLHours: 24},
		VideoCache: config.VideoCacheConfig{
			Backend:             "memory",
			MaxAgeHours:         24,
			MaxEntryMB:          8,
			FetchTimeoutSeconds: 5,
			HandleTTLMinutes:    10,
		},
	}
	a := New(cfg, db, nil, stubGateway{})
	return &testServer{t: t, router: a.Router, db: db}
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *testServer) login(name, email string) string {
	s.t.Helper()
	w, _ := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": name, "email": email, "password": "password123"})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	w, env := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "password123"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	return data.Token
}

func TestLearnerJourney(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("0123456789"))
	}))
	defer media.Close()

	s := newTestServer(t)
	token := s.login("Ada", "ada@example.com")

	course := testutil.CreateCourse(t, s.db, "Free Go", 0, model.CoursePublished)
	ch := testutil.CreateChapter(t, s.db, course.ID, 1)
	lesson := testutil.CreateLesson(t, s.db, ch.ID, 1)
	require.NoError(t, s.db.Model(lesson).Update("video_url", media.URL+"/intro.mp4").Error)

	w, env := s.do(http.MethodGet, "/api/courses", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(1), page.Total)

	playerPath := "/api/courses/" + course.ID + "/lessons/" + lesson.ID + "/player"
	w, _ = s.do(http.MethodGet, playerPath, token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = s.do(http.MethodPost, "/api/courses/"+course.ID+"/checkout", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var checkout struct {
		Enrollment struct {
			Status string `json:"status"`
		} `json:"enrollment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &checkout))
	assert.Equal(t, "active", checkout.Enrollment.Status)

	w, env = s.do(http.MethodGet, playerPath, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var player struct {
		Source struct {
			PlayableURL     string `json:"playableUrl"`
			ServedFromCache bool   `json:"servedFromCache"`
		} `json:"source"`
		Completed bool `json:"completed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &player))
	require.True(t, strings.HasPrefix(player.Source.PlayableURL, "/api/media/blobs/"))
	assert.False(t, player.Source.ServedFromCache)
	assert.False(t, player.Completed)

	req := httptest.NewRequest(http.MethodGet, player.Source.PlayableURL, nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "2345", rec.Body.String())
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))

	w, env = s.do(http.MethodPost, "/api/lessons/"+lesson.ID+"/complete", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var completion struct {
		Completion struct {
			IsCompleted       bool   `json:"isCompleted"`
			CertificateNumber string `json:"certificateNumber"`
		} `json:"completion"`
		NextLesson *struct{} `json:"nextLesson"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &completion))
	assert.True(t, completion.Completion.IsCompleted)
	assert.Nil(t, completion.NextLesson)
	require.NotEmpty(t, completion.Completion.CertificateNumber)

	w, _ = s.do(http.MethodGet, "/api/certificates/verify/"+completion.Completion.CertificateNumber, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodDelete, player.Source.PlayableURL, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(http.MethodDelete, player.Source.PlayableURL, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = s.do(http.MethodGet, playerPath, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &player))
	assert.True(t, player.Source.ServedFromCache)
	assert.True(t, player.Completed)
}

func TestRouteProtection(t *testing.T) {
	s := newTestServer(t)
	token := s.login("Bob", "bob@example.com")

	w, _ := s.do(http.MethodGet, "/api/enrollments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodGet, "/api/admin/dashboard", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodPost, "/api/admin/courses", token, map[string]string{"title": "Nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodGet, "/api/courses/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDisabledUserTokenRejected(t *testing.T) {
	s := newTestServer(t)
	token := s.login("Eve", "eve@example.com")

	w, _ := s.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, s.db.Model(&model.User{}).Where("email = ?", "eve@example.com").Update("disabled", true).Error)

	w, _ = s.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(http.MethodGet, "/api/enrollments", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	course := testutil.CreateCourse(t, s.db, "Paid Go", 1000, model.CoursePublished)
	w, _ = s.do(http.MethodPost, "/api/courses/"+course.ID+"/checkout", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	require.NoError(t, s.db.Model(&model.User{}).Where("email = ?", "eve@example.com").Update("disabled", false).Error)
	w, _ = s.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPaymentNotificationRejectsBadSignature(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodPost, "/api/payments/notifications", "", map[string]string{
		"order_id":           "ORD-1",
		"status_code":        "200",
		"gross_amount":       "10000.00",
		"transaction_status": "settlement",
		"signature_key":      "forged",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, "/api/payments/notifications", "", map[string]string{"transaction_status": "settlement"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfigCallbacksAdjustVideoCacheRetention(t *testing.T) {
	db := testutil.DB(t)
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		JWT:        config.JWTConfig{Secret: "s"},
		Storage:    config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		VideoCache: config.VideoCacheConfig{Backend: "memory", MaxAgeHours: 24},
	}
	a := New(cfg, db, nil, stubGateway{})
	assert.Equal(t, 24*time.Hour, a.services.resolver.MaxAge())

	for _, cb := range a.configCallbacks {
		cb(&config.Config{VideoCache: config.VideoCacheConfig{MaxAgeHours: 2}, RateLimit: config.RateLimitConfig{MaxRequests: 100, WindowMinutes: 1}})
	}
	assert.Equal(t, 2*time.Hour, a.services.resolver.MaxAge())
}
