// Package layout performs coordinate-level analysis of law-review PDF pages:
// grouping positioned text into lines, locating the footnote region by the
// font-size drop in the lower page, and flagging repository cover sheets.
// Boxes are geometry.Rects in PDF point space (origin bottom-left).
package layout

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"github.com/local/lawcorpus/internal/geometry"
)

// Word is one positioned text fragment with its box in PDF points.
type Word struct {
	Text     string
	Box      geometry.Rect
	FontSize float64
}

// Line is a row of words sharing a baseline.
type Line struct {
	Words    []Word
	Box      geometry.Rect
	FontSize float64
}

// Text joins the line's words left to right.
func (l Line) Text() string {
	parts := make([]string, 0, len(l.Words))
	for _, w := range l.Words {
		parts = append(parts, w.Text)
	}
	return strings.Join(parts, " ")
}

// RegionKind labels a detected page region.
type RegionKind string

const (
	RegionBody     RegionKind = "body"
	RegionFootnote RegionKind = "footnote"
)

// Region is a contiguous block of lines with one layout role.
type Region struct {
	Kind  RegionKind
	Box   geometry.Rect
	Lines []Line
}

// PageLayout is the analysis result for one page.
type PageLayout struct {
	PageNum  int
	Space    geometry.Space
	Lines    []Line
	Body     *Region
	Footnote *Region
	Cover    bool
}

// Analyzer groups positioned text and detects page regions.
type Analyzer struct {
	// RowTolerance is the Y tolerance (points) for grouping words into a line.
	RowTolerance float64
	// FootnoteSizeRatio is the largest fraction of the body font size a
	// footnote line may have.
	FootnoteSizeRatio float64
	// MinFootnoteLines is how many qualifying trailing lines are needed
	// before a footnote region is reported.
	MinFootnoteLines int
	// ParaGapFactor times the font size is the vertical gap that starts a
	// new paragraph inside a region.
	ParaGapFactor float64
}

// NewAnalyzer returns an Analyzer with defaults tuned on law-review scans.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		RowTolerance:      3.0,
		FootnoteSizeRatio: 0.9,
		MinFootnoteLines:  2,
		ParaGapFactor:     0.8,
	}
}

// AnalyzeFilePage analyzes one page (1-based) of the PDF at path.
func (a *Analyzer) AnalyzeFilePage(path string, pageNum int) (*PageLayout, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	if pageNum < 1 || pageNum > r.NumPage() {
		return nil, fmt.Errorf("page %d out of range (1..%d)", pageNum, r.NumPage())
	}
	p := r.Page(pageNum)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d is null", pageNum)
	}
	return a.AnalyzePage(p, pageNum)
}

// AnalyzeFile analyzes every page of the PDF at path.
func (a *Analyzer) AnalyzeFile(path string) ([]*PageLayout, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var out []*PageLayout
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pl, err := a.AnalyzePage(p, i)
		if err != nil {
			log.Warn().Err(err).Int("page", i).Str("pdf", path).Msg("page layout analysis failed")
			continue
		}
		out = append(out, pl)
	}
	return out, nil
}

// AnalyzePage analyzes a single page (1-based pageNum for reporting).
func (a *Analyzer) AnalyzePage(p pdf.Page, pageNum int) (*PageLayout, error) {
	content := p.Content()
	space := pageSpace(p)

	lines := a.BuildLines(content.Text)
	pl := &PageLayout{PageNum: pageNum, Space: space, Lines: lines}
	pl.Cover = a.IsCoverSheet(lines, space)
	pl.Body, pl.Footnote = a.SplitRegions(lines, space)
	return pl, nil
}

// pageSpace derives the page coordinate space from the MediaBox, falling
// back to US Letter.
func pageSpace(p pdf.Page) geometry.Space {
	mb := p.V.Key("MediaBox")
	if mb.Kind() == pdf.Array && mb.Len() == 4 {
		w := mb.Index(2).Float64() - mb.Index(0).Float64()
		h := mb.Index(3).Float64() - mb.Index(1).Float64()
		if w > 0 && h > 0 {
			return geometry.PDFSpace(w, h)
		}
	}
	return geometry.PDFSpace(612, 792)
}

// BuildLines groups positioned text fragments into baseline rows, sorted
// top of page first.
func (a *Analyzer) BuildLines(texts []pdf.Text) []Line {
	words := make([]Word, 0, len(texts))
	for _, t := range texts {
		s := strings.TrimSpace(t.S)
		if s == "" {
			continue
		}
		words = append(words, Word{
			Text:     s,
			Box:      geometry.Rect{X0: t.X, Y0: t.Y, X1: t.X + t.W, Y1: t.Y + t.FontSize},
			FontSize: t.FontSize,
		})
	}
	if len(words) == 0 {
		return nil
	}

	// Top of page first (PDF Y grows upward), then reading order.
	sort.SliceStable(words, func(i, j int) bool {
		if words[i].Box.Y0 != words[j].Box.Y0 {
			return words[i].Box.Y0 > words[j].Box.Y0
		}
		return words[i].Box.X0 < words[j].Box.X0
	})

	var lines []Line
	cur := Line{Words: []Word{words[0]}, Box: words[0].Box}
	baseline := words[0].Box.Y0

	flush := func() {
		sort.SliceStable(cur.Words, func(i, j int) bool { return cur.Words[i].Box.X0 < cur.Words[j].Box.X0 })
		cur.FontSize = dominantFont(cur.Words)
		lines = append(lines, cur)
	}

	for _, w := range words[1:] {
		if math.Abs(w.Box.Y0-baseline) <= a.RowTolerance {
			cur.Words = append(cur.Words, w)
			cur.Box = geometry.Union(cur.Box, w.Box)
			continue
		}
		flush()
		cur = Line{Words: []Word{w}, Box: w.Box}
		baseline = w.Box.Y0
	}
	flush()
	return lines
}

// dominantFont picks the largest font in the row, so superscript footnote
// markers do not drag a body line down to footnote size.
func dominantFont(words []Word) float64 {
	max := 0.0
	for _, w := range words {
		if w.FontSize > max {
			max = w.FontSize
		}
	}
	return max
}

// BodyFontSize estimates the dominant body font of a page: the line font
// size (rounded to half points) covering the most characters.
func BodyFontSize(lines []Line) float64 {
	weights := make(map[float64]int)
	for _, l := range lines {
		key := math.Round(l.FontSize*2) / 2
		weights[key] += len(l.Text())
	}
	best, bestW := 0.0, -1
	for size, w := range weights {
		if w > bestW || (w == bestW && size > best) {
			best, bestW = size, w
		}
	}
	return best
}
