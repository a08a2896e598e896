// Package scrape extracts ground-truth article text from law-review HTML
// editions. It is selector-driven: each publisher gets a Source describing
// where body paragraphs and footnotes live, and goquery does the traversal.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "lawcorpus/1.0 (+corpus-builder)"
)

// Source describes where article content lives in one publisher's HTML.
type Source struct {
	Name string
	// BodySelector matches body-text paragraphs.
	BodySelector string
	// FootnoteSelector matches individual footnote entries.
	FootnoteSelector string
	// StripSelector matches elements removed before extraction (nav bars,
	// share buttons, inline footnote popups duplicated in the body).
	StripSelector string
}

// DefaultSource covers the common law-review article layout: prose in
// <p> under the article element, footnotes in an ordered list inside a
// footnotes container.
func DefaultSource() Source {
	return Source{
		Name:             "default",
		BodySelector:     "article p, main p, .article-content p, #content p",
		FootnoteSelector: ".footnotes li, .footnote, ol.footnotes li, #footnotes li",
		StripSelector:    "script, style, nav, header, footer, aside, .share, .sidebar",
	}
}

// Article is the scraped ground truth for one document.
type Article struct {
	Title          string
	URL            string
	BodyParagraphs []string
	Footnotes      []string
}

// Scraper fetches and parses article HTML.
type Scraper struct {
	client    *http.Client
	converter *md.Converter
	userAgent string
}

// NewScraper builds a scraper with the given fetch timeout; zero or
// negative falls back to the 30s default.
func NewScraper(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Scraper{
		client:    &http.Client{Timeout: timeout},
		converter: md.NewConverter("", true, nil),
		userAgent: defaultUserAgent,
	}
}

// Fetch downloads a URL and extracts its article content.
func (s *Scraper) Fetch(ctx context.Context, rawURL string, src Source) (*Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	art, err := s.Parse(resp.Body, src)
	if err != nil {
		return nil, err
	}
	art.URL = rawURL

	log.Info().
		Str("url", rawURL).
		Str("source", src.Name).
		Str("title", art.Title).
		Int("body_paragraphs", len(art.BodyParagraphs)).
		Int("footnotes", len(art.Footnotes)).
		Msg("Article scraped")
	return art, nil
}

// Parse extracts article content from an HTML stream.
func (s *Scraper) Parse(r io.Reader, src Source) (*Article, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	if src.StripSelector != "" {
		doc.Find(src.StripSelector).Remove()
	}

	art := &Article{Title: extractTitle(doc)}

	// Footnotes first: removing them from the tree keeps duplicated
	// footnote text out of the body selection when selectors overlap.
	doc.Find(src.FootnoteSelector).Each(func(_ int, sel *goquery.Selection) {
		if text := s.selectionText(sel); text != "" {
			art.Footnotes = append(art.Footnotes, text)
		}
	})
	doc.Find(src.FootnoteSelector).Remove()

	doc.Find(src.BodySelector).Each(func(_ int, sel *goquery.Selection) {
		if text := s.selectionText(sel); text != "" {
			art.BodyParagraphs = append(art.BodyParagraphs, text)
		}
	})

	if len(art.BodyParagraphs) == 0 && len(art.Footnotes) == 0 {
		return nil, fmt.Errorf("source %q: selectors matched no content", src.Name)
	}
	return art, nil
}

func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return collapseSpace(t)
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return collapseSpace(t)
	}
	if t, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		return collapseSpace(strings.TrimSpace(t))
	}
	return ""
}

// selectionText converts one matched element to plain text, going through
// markdown so emphasis and links inside paragraphs degrade cleanly.
func (s *Scraper) selectionText(sel *goquery.Selection) string {
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return collapseSpace(sel.Text())
	}
	text, err := s.converter.ConvertString(html)
	if err != nil {
		log.Warn().Err(err).Msg("Markdown conversion failed, falling back to raw text")
		return collapseSpace(sel.Text())
	}
	return collapseSpace(stripMarkdownSyntax(text))
}

var (
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdEmphasisRegex = regexp.MustCompile(`(\*{1,3}|_{1,3})([^*_]+)(\*{1,3}|_{1,3})`)
	mdListRegex     = regexp.MustCompile(`^\s*(?:[-*+]|\d+\.)\s+`)
	spaceRegex      = regexp.MustCompile(`\s+`)
)

// stripMarkdownSyntax reduces converted markdown to plain text: link,
// emphasis and list markers removed, text preserved. Footnote entries come
// out of <li> elements, which the converter renders as list items.
func stripMarkdownSyntax(s string) string {
	s = mdLinkRegex.ReplaceAllString(s, "$1")
	s = mdEmphasisRegex.ReplaceAllString(s, "$2")
	s = mdListRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\\", "")
	return s
}

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
}
