package web

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/local/lawcorpus/internal/config"
	"github.com/local/lawcorpus/internal/statuscheck"
)

// Web is the operator dashboard: submit documents, watch progress and see
// corpus label balance. It talks to the ingest API over loopback so the
// two surfaces stay independent.
type Web struct {
	tpl          *template.Template
	username     string
	passwordHash string
	port         string
	checker      *statuscheck.Checker

	mu       sync.Mutex
	sessions map[string]struct{}
}

func New(cfg config.WebConfig, checker *statuscheck.Checker) *Web {
	tpl := template.Must(template.ParseGlob(filepath.Join("web", "templates", "*.html")))
	return &Web{
		tpl:          tpl,
		username:     cfg.User,
		passwordHash: cfg.PasswordHash,
		port:         getenv("PORT", "8080"),
		checker:      checker,
		sessions:     map[string]struct{}{},
	}
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/web/login", w.handleLogin)
	mux.HandleFunc("/web/logout", w.handleLogout)
	mux.HandleFunc("/web/", w.requireAuth(w.handleDashboard))
	mux.HandleFunc("/web/dashboard", w.requireAuth(w.handleDashboard))
	mux.HandleFunc("/web/submit", w.requireAuth(w.handleSubmit))
	mux.HandleFunc("/web/upload", w.requireAuth(w.handleUpload))
	mux.HandleFunc("/web/progress/", w.requireAuth(w.handleProgress))
	mux.HandleFunc("/web/result/", w.requireAuth(w.handleResult))
	mux.HandleFunc("/web/status", w.requireAuth(w.handleStatus))
}

func (w *Web) render(wr http.ResponseWriter, name string, data any) {
	if err := w.tpl.ExecuteTemplate(wr, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("render failed")
	}
}

func (w *Web) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(wr http.ResponseWriter, r *http.Request) {
		if w.username == "" || w.passwordHash == "" {
			http.Error(wr, "dashboard login not configured", http.StatusForbidden)
			return
		}
		c, err := r.Cookie("session")
		if err != nil || !w.validSession(c.Value) {
			http.Redirect(wr, r, "/web/login", http.StatusSeeOther)
			return
		}
		next(wr, r)
	}
}

func (w *Web) validSession(token string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.sessions[token]
	return ok
}

func (w *Web) newSession() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	token := hex.EncodeToString(buf)
	w.mu.Lock()
	w.sessions[token] = struct{}{}
	w.mu.Unlock()
	return token
}

func (w *Web) dropSession(token string) {
	w.mu.Lock()
	delete(w.sessions, token)
	w.mu.Unlock()
}

func (w *Web) handleLogin(wr http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.render(wr, "login.html", map[string]any{"Error": r.URL.Query().Get("error")})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Redirect(wr, r, "/web/login?error=invalid+form", http.StatusSeeOther)
			return
		}
		user := r.Form.Get("username")
		pass := r.Form.Get("password")
		if user == w.username && bcrypt.CompareHashAndPassword([]byte(w.passwordHash), []byte(pass)) == nil {
			http.SetCookie(wr, &http.Cookie{
				Name: "session", Value: w.newSession(), Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode,
			})
			http.Redirect(wr, r, "/web/dashboard", http.StatusSeeOther)
			return
		}
		log.Warn().Str("user", user).Msg("failed dashboard login")
		http.Redirect(wr, r, "/web/login?error=invalid+credentials", http.StatusSeeOther)
	default:
		wr.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (w *Web) handleLogout(wr http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie("session"); err == nil {
		w.dropSession(c.Value)
	}
	http.SetCookie(wr, &http.Cookie{Name: "session", Value: "", Path: "/", MaxAge: -1})
	http.Redirect(wr, r, "/web/login", http.StatusSeeOther)
}

func (w *Web) handleDashboard(wr http.ResponseWriter, r *http.Request) {
	stats := w.corpusStats()
	w.render(wr, "dashboard.html", map[string]any{
		"Username": w.username,
		"Stats":    stats,
	})
}

type corpusStats struct {
	Path   string         `json:"path"`
	Total  int            `json:"total"`
	Labels map[string]int `json:"labels"`
}

func (w *Web) corpusStats() corpusStats {
	var stats corpusStats
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%s/corpus/stats", w.port))
	if err != nil {
		return stats
	}
	defer resp.Body.Close()
	_ = json.NewDecoder(resp.Body).Decode(&stats)
	return stats
}

// handleSubmit forwards a path submission to the ingest API.
func (w *Web) handleSubmit(wr http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(wr, "invalid form", http.StatusBadRequest)
		return
	}
	body := map[string]any{
		"path":             r.Form.Get("path"),
		"document":         r.Form.Get("document"),
		"dump_images":      r.Form.Get("dump_images") == "on",
		"ground_truth_url": r.Form.Get("ground_truth_url"),
	}
	b, _ := json.Marshal(body)
	resp, err := http.Post(fmt.Sprintf("http://127.0.0.1:%s/documents", w.port), "application/json", bytes.NewReader(b))
	if err != nil {
		http.Error(wr, "request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(wr, resp.Body)
}

// handleUpload re-wraps the browser's multipart body for the ingest API.
func (w *Web) handleUpload(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(wr, "invalid multipart form", http.StatusBadRequest)
		return
	}

	var b bytes.Buffer
	mw := multipart.NewWriter(&b)

	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(wr, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()
	fw, err := mw.CreateFormFile("file", hdr.Filename)
	if err != nil {
		http.Error(wr, "upload error", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(fw, file); err != nil {
		http.Error(wr, "upload error", http.StatusInternalServerError)
		return
	}
	for _, k := range []string{"dump_images", "ground_truth_url"} {
		if v := r.FormValue(k); v != "" {
			_ = mw.WriteField(k, v)
		}
	}
	_ = mw.Close()

	url := fmt.Sprintf("http://127.0.0.1:%s/documents/upload", w.port)
	req, _ := http.NewRequest(http.MethodPost, url, &b)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		http.Error(wr, "request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(wr, resp.Body)
}

func (w *Web) handleProgress(wr http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/web/progress/")
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%s/progress/%s", w.port, jobID))
	if err != nil {
		http.Error(wr, "progress failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(wr, resp.Body)
}

func (w *Web) handleResult(wr http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/web/result/")
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%s/result/%s", w.port, jobID))
	if err != nil {
		http.Error(wr, "result failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	for _, h := range []string{"Content-Type", "Content-Disposition"} {
		if v := resp.Header.Get(h); v != "" {
			wr.Header().Set(h, v)
		}
	}
	wr.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(wr, resp.Body)
}

// handleStatus reports dependency health for the ops page.
func (w *Web) handleStatus(wr http.ResponseWriter, r *http.Request) {
	if w.checker == nil {
		http.Error(wr, "status checks not configured", http.StatusNotImplemented)
		return
	}
	wr.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(wr).Encode(w.checker.Summary(r.Context()))
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
