package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSessionCookie(t *testing.T) {
	w := httptest.NewRecorder()
	SetSessionCookie(w, "token-value", 2*time.Hour, CookieConfig{Name: "lantern_session", Domain: "example.com", Secure: true})

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "lantern_session", c.Name)
	assert.Equal(t, "token-value", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 7200, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestClearSessionCookie(t *testing.T) {
	w := httptest.NewRecorder()
	ClearSessionCookie(w, CookieConfig{Name: "lantern_session"})

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestGetSessionCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := GetSessionCookie(req, "lantern_session")
	assert.ErrorIs(t, err, http.ErrNoCookie)

	req.AddCookie(&http.Cookie{Name: "lantern_session", Value: "abc"})
	token, err := GetSessionCookie(req, "lantern_session")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}
