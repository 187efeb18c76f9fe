package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestLimiterUpdate(t *testing.T) {
	l := NewLimiter(2, time.Hour)
	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"))

	l.Update(0, time.Hour)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("1.1.1.1"))
	}
}

func TestLimiterCleanup(t *testing.T) {
	now := time.Now()
	l := NewLimiter(10, time.Minute)
	l.now = func() time.Time { return now }
	l.Allow("1.1.1.1")

	assert.Zero(t, l.Cleanup())
	l.now = func() time.Time { return now.Add(5 * time.Minute) }
	assert.Equal(t, 1, l.Cleanup())
}

func TestLimiterMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(NewLimiter(1, time.Hour).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, want, w.Code, "request %d", i)
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://lms.example.com"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://lms.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://lms.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
