package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/lawcorpus/internal/corpus"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Standing Doctrine</title></head>
<body>
<article>
<h1>Standing Doctrine</h1>
<p>The doctrine of standing limits federal courts to actual cases and controversies.</p>
<p>Its modern form requires injury in fact, causation, and redressability.</p>
</article>
<ol class="footnotes">
<li>See Lujan v. Defenders of Wildlife, 504 U.S. 555, 560 (1992).</li>
</ol>
</body></html>`

type fakeLimiter struct {
	openHosts map[string]bool
	busy      bool
	opened    []string
	closed    []string
}

func (f *fakeLimiter) Allow(host string) (func(), bool) {
	if f.busy {
		return func() {}, false
	}
	return func() {}, true
}

func (f *fakeLimiter) IsOpen(ctx context.Context, host string) bool { return f.openHosts[host] }
func (f *fakeLimiter) Open(ctx context.Context, host string)        { f.opened = append(f.opened, host) }
func (f *fakeLimiter) Close(ctx context.Context, host string)       { f.closed = append(f.closed, host) }

func TestFetchArticleLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")

	svc, _, _, _ := newTestService(t)
	lim := &fakeLimiter{openHosts: map[string]bool{}}
	svc.deps.Limiter = lim

	article, err := svc.fetchArticle(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, article.BodyParagraphs, 2)
	assert.Equal(t, []string{host}, lim.closed)

	lim.busy = true
	_, err = svc.fetchArticle(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many concurrent fetches")

	lim.busy = false
	lim.openHosts[host] = true
	_, err = svc.fetchArticle(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cooling down")
}

func TestFetchArticleOpensCooldownOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")

	svc, _, _, _ := newTestService(t)
	lim := &fakeLimiter{openHosts: map[string]bool{}}
	svc.deps.Limiter = lim

	_, err := svc.fetchArticle(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, []string{host}, lim.opened)
	assert.Empty(t, lim.closed)
}

func TestHandleGroundTruth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	svc, _, st, sm := newTestService(t)
	done := jobStatus(1, 1, 0)
	done.Status = "success"
	st.m["j9"] = done
	_ = sm.SavePageSamples(context.Background(), "j9", 1, []corpus.Sample{
		sample("a", "The doctrine of standing limits federal courts to actual cases and controversies.", corpus.LabelBody, 1),
		sample("b", "See Lujan v. Defenders of Wildlife, 504 U.S. 555, 560 (1992).", corpus.LabelCitation, 1),
	})

	body := strings.NewReader(`{"job_id":"j9","url":"` + srv.URL + `"}`)
	rr := httptest.NewRecorder()
	svc.handleGroundTruth(rr, httptest.NewRequest(http.MethodPost, "/groundtruth", body))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Matched float64 `json:"matched"`
		Pairs   int     `json:"pairs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Pairs)
	assert.InDelta(t, 2.0/3.0, resp.Matched, 0.01)

	report, err := os.ReadFile(filepath.Join(svc.cfg.Dir, "reports", "j9.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "smith_v_jones")
}

func TestHandleGroundTruthJobNotFinished(t *testing.T) {
	svc, _, st, _ := newTestService(t)
	st.m["j10"] = jobStatus(2, 1, 0)

	body := strings.NewReader(`{"job_id":"j10","url":"http://example.com/a"}`)
	rr := httptest.NewRecorder()
	svc.handleGroundTruth(rr, httptest.NewRequest(http.MethodPost, "/groundtruth", body))
	assert.Equal(t, http.StatusConflict, rr.Code)
}
