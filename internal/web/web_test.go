package web

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestWeb(t *testing.T) *Web {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	tpl := template.Must(template.New("login.html").Parse(`login {{.Error}}`))
	template.Must(tpl.New("dashboard.html").Parse(`dash {{.Username}}`))
	return &Web{
		tpl:          tpl,
		username:     "admin",
		passwordHash: string(hash),
		port:         "0",
		sessions:     map[string]struct{}{},
	}
}

func postLogin(w *Web, user, pass string) *httptest.ResponseRecorder {
	form := url.Values{"username": {user}, "password": {pass}}
	req := httptest.NewRequest(http.MethodPost, "/web/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	w.handleLogin(rr, req)
	return rr
}

func TestLoginSuccess(t *testing.T) {
	w := newTestWeb(t)
	rr := postLogin(w, "admin", "hunter2")

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/web/dashboard", rr.Header().Get("Location"))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.True(t, w.validSession(cookies[0].Value))
}

func TestLoginWrongPassword(t *testing.T) {
	w := newTestWeb(t)
	rr := postLogin(w, "admin", "wrong")

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "error")
	assert.Empty(t, rr.Result().Cookies())
}

func TestRequireAuthRedirectsWithoutSession(t *testing.T) {
	w := newTestWeb(t)
	called := false
	h := w.requireAuth(func(http.ResponseWriter, *http.Request) { called = true })

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/web/dashboard", nil))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/web/login", rr.Header().Get("Location"))
	assert.False(t, called)
}

func TestRequireAuthAcceptsSession(t *testing.T) {
	w := newTestWeb(t)
	token := w.newSession()

	called := false
	h := w.requireAuth(func(http.ResponseWriter, *http.Request) { called = true })
	req := httptest.NewRequest(http.MethodGet, "/web/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})

	rr := httptest.NewRecorder()
	h(rr, req)
	assert.True(t, called)
}

func TestRequireAuthUnconfigured(t *testing.T) {
	w := newTestWeb(t)
	w.passwordHash = ""
	h := w.requireAuth(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/web/dashboard", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestLogoutDropsSession(t *testing.T) {
	w := newTestWeb(t)
	token := w.newSession()

	req := httptest.NewRequest(http.MethodGet, "/web/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	rr := httptest.NewRecorder()
	w.handleLogout(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.False(t, w.validSession(token))
}
