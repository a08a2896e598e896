package layout

import (
	"math"
	"strings"

	"github.com/local/lawcorpus/internal/geometry"
)

// Banner phrases that repositories stamp on prepended cover sheets.
var coverBannerPhrases = []string{
	"ELECTRONIC COPY AVAILABLE AT",
	"THIS CONTENT DOWNLOADED FROM",
	"DOWNLOADED FROM",
	"HEINONLINE",
	"RECOMMENDED CITATION",
	"FOLLOW THIS AND ADDITIONAL WORKS",
	"CITATION:",
}

// IsCoverSheet reports whether a page is a repository cover sheet rather
// than article content: either it carries a banner phrase, or it is sparse
// and center-aligned the way title sheets are.
func (a *Analyzer) IsCoverSheet(lines []Line, space geometry.Space) bool {
	if len(lines) == 0 {
		return false
	}

	var b strings.Builder
	words := 0
	for _, l := range lines {
		t := l.Text()
		words += len(strings.Fields(t))
		b.WriteString(t)
		b.WriteString("\n")
	}
	upper := strings.ToUpper(b.String())
	for _, phrase := range coverBannerPhrases {
		if strings.Contains(upper, phrase) {
			return true
		}
	}

	if words >= 80 {
		return false
	}
	centered := 0
	for _, l := range lines {
		mid := (l.Box.X0 + l.Box.X1) / 2
		if math.Abs(mid-space.Width/2) <= space.Width*0.15 {
			centered++
		}
	}
	return float64(centered)/float64(len(lines)) >= 0.6
}

// SplitRegions separates a page's lines into body and footnote regions.
// The footnote region is the contiguous run of trailing lines whose font is
// markedly smaller than the page's body font and which sits in the lower
// part of the page. Either region may be nil.
func (a *Analyzer) SplitRegions(lines []Line, space geometry.Space) (body, footnote *Region) {
	if len(lines) == 0 {
		return nil, nil
	}

	bodyFont := BodyFontSize(lines)
	cutoff := bodyFont * a.FootnoteSizeRatio

	// Walk up from the bottom of the page collecting small-font lines.
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].FontSize >= cutoff {
			break
		}
		start = i
	}

	fnLines := lines[start:]
	ok := len(fnLines) >= a.MinFootnoteLines
	if ok {
		// Footnotes never start in the top fifth of a page; a small-font
		// run reaching that high is front-matter, not notes.
		top := fnLines[0].Box.Y1
		if top > space.Height*0.8 {
			ok = false
		}
	}
	if !ok {
		start = len(lines)
		fnLines = nil
	}

	if start > 0 {
		body = makeRegion(RegionBody, lines[:start])
	}
	if len(fnLines) > 0 {
		footnote = makeRegion(RegionFootnote, fnLines)
	}
	return body, footnote
}

func makeRegion(kind RegionKind, lines []Line) *Region {
	r := &Region{Kind: kind, Lines: lines, Box: lines[0].Box}
	for _, l := range lines[1:] {
		r.Box = geometry.Union(r.Box, l.Box)
	}
	return r
}

// RegionParagraphs splits a region's lines into paragraphs on vertical gaps
// larger than ParaGapFactor times the region font, or on a fresh indent.
func (a *Analyzer) RegionParagraphs(r *Region) []string {
	if r == nil || len(r.Lines) == 0 {
		return nil
	}

	var paras []string
	var cur []string
	prev := r.Lines[0]
	cur = append(cur, prev.Text())

	for _, l := range r.Lines[1:] {
		gap := prev.Box.Y0 - l.Box.Y1
		indent := l.Box.X0 - r.Box.X0
		newPara := gap > a.ParaGapFactor*prev.FontSize ||
			(indent > prev.FontSize && prev.Box.X0 <= r.Box.X0+prev.FontSize)
		if newPara {
			paras = append(paras, strings.Join(cur, " "))
			cur = cur[:0]
		}
		cur = append(cur, l.Text())
		prev = l
	}
	if len(cur) > 0 {
		paras = append(paras, strings.Join(cur, " "))
	}
	return paras
}
