package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Vol. 104 - Standing Doctrine Revisited</title></head>
<body>
<nav>Home | Issues | About</nav>
<article>
  <h1>Standing   Doctrine Revisited</h1>
  <p>The modern doctrine of standing traces to a handful of
     mid-century decisions.</p>
  <p>Those decisions, as <em>Part II</em> shows, rested on a
     <a href="/misreading">misreading</a> of the case law.</p>
  <div class="footnotes">
    <ol>
      <li><p>See Lujan v. Defenders of Wildlife, 504 U.S. 555, 560 (1992).</p></li>
      <li><p>Id. at 561.</p></li>
    </ol>
  </div>
</article>
<footer>Copyright notice</footer>
</body>
</html>`

func TestNewScraperTimeout(t *testing.T) {
	assert.Equal(t, 5*time.Second, NewScraper(5*time.Second).client.Timeout)
	assert.Equal(t, defaultTimeout, NewScraper(0).client.Timeout)
}

func TestParseArticle(t *testing.T) {
	s := NewScraper(0)
	src := DefaultSource()

	art, err := s.Parse(strings.NewReader(articleHTML), src)
	require.NoError(t, err)

	assert.Equal(t, "Standing Doctrine Revisited", art.Title)

	require.Len(t, art.BodyParagraphs, 2)
	assert.Equal(t, "The modern doctrine of standing traces to a handful of mid-century decisions.", art.BodyParagraphs[0])
	// Emphasis and link markup inside the paragraph degrades to plain text.
	assert.Equal(t, "Those decisions, as Part II shows, rested on a misreading of the case law.", art.BodyParagraphs[1])

	require.Len(t, art.Footnotes, 2)
	assert.Equal(t, "See Lujan v. Defenders of Wildlife, 504 U.S. 555, 560 (1992).", art.Footnotes[0])
	assert.Equal(t, "Id. at 561.", art.Footnotes[1])
}

func TestParseFootnotesNotDuplicatedIntoBody(t *testing.T) {
	// Footnote paragraphs also match "article p"; they must only come out
	// of the footnote selector.
	s := NewScraper(0)
	art, err := s.Parse(strings.NewReader(articleHTML), DefaultSource())
	require.NoError(t, err)

	for _, p := range art.BodyParagraphs {
		assert.NotContains(t, p, "Lujan")
		assert.NotContains(t, p, "Id. at")
	}
}

func TestParseStripsChrome(t *testing.T) {
	s := NewScraper(0)
	art, err := s.Parse(strings.NewReader(articleHTML), DefaultSource())
	require.NoError(t, err)

	joined := strings.Join(art.BodyParagraphs, " ")
	assert.NotContains(t, joined, "Home | Issues")
	assert.NotContains(t, joined, "Copyright")
}

func TestParseNoContent(t *testing.T) {
	s := NewScraper(0)
	_, err := s.Parse(strings.NewReader("<html><body><div>nothing matching</div></body></html>"), DefaultSource())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selectors matched no content")
}

func TestParseCustomSource(t *testing.T) {
	html := `<html><body>
	<div class="law-body"><span class="para">Custom layout paragraph.</span></div>
	<div class="law-notes"><div class="note">1 See supra note 3.</div></div>
	</body></html>`

	src := Source{
		Name:             "custom",
		BodySelector:     ".law-body .para",
		FootnoteSelector: ".law-notes .note",
	}
	s := NewScraper(0)
	art, err := s.Parse(strings.NewReader(html), src)
	require.NoError(t, err)
	require.Len(t, art.BodyParagraphs, 1)
	assert.Equal(t, "Custom layout paragraph.", art.BodyParagraphs[0])
	require.Len(t, art.Footnotes, 1)
	assert.Equal(t, "1 See supra note 3.", art.Footnotes[0])
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	s := NewScraper(0)
	art, err := s.Fetch(context.Background(), srv.URL, DefaultSource())
	require.NoError(t, err)
	assert.Equal(t, srv.URL, art.URL)
	assert.Len(t, art.BodyParagraphs, 2)
}

func TestFetchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewScraper(0)
	_, err := s.Fetch(context.Background(), srv.URL, DefaultSource())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
