package util

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lms_backend/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCertificateNumber(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := GenerateCertificateNumber(now)
	b := GenerateCertificateNumber(now)

	assert.True(t, strings.HasPrefix(a, "CERT-"))
	parts := strings.Split(a, "-")
	require.Len(t, parts, 3)
	assert.Len(t, parts[2], 6)
	assert.NotEqual(t, a, b, "random suffix should differ")
}

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{Email: "ada@example.com", Role: model.Instructor}
	user.ID = "u-1"

	token, err := GenerateJWT(user, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, model.Instructor, claims.Role)

	_, err = ParseJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=0&limit=1000", nil)

	page, limit := ParsePagination(c)
	assert.Equal(t, DefaultPage, page)
	assert.Equal(t, MaxLimit, limit)
	assert.Equal(t, 0, Offset(page, limit))
}

func TestIsAllowedVideoExt(t *testing.T) {
	assert.True(t, IsAllowedVideoExt("intro.MP4"))
	assert.False(t, IsAllowedVideoExt("notes.pdf"))
}
