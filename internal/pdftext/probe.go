package pdftext

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"time"
)

// PageProbe captures the result of probing a single PDF page.
type PageProbe struct {
	PageIndex int    `json:"page_index"`
	CharCount int    `json:"char_count"`
	Sampled   bool   `json:"sampled"`
	Err       string `json:"err,omitempty"`
}

// Diagnostics provides detailed information about the extractability check.
type Diagnostics struct {
	FilePath           string      `json:"file_path"`
	TotalPages         int         `json:"total_pages"`
	SampledPages       []int       `json:"sampled_pages"`
	TotalCharsInSample int         `json:"total_chars_in_sample"`
	Threshold          int         `json:"threshold"`
	Probes             []PageProbe `json:"probes"`
	HasExtractableText bool        `json:"has_extractable_text"`
	DurationMs         int64       `json:"duration_ms"`
}

// DefaultThreshold is used when a non-positive threshold is passed in.
const DefaultThreshold = 300

// DefaultSamplePages is used when a non-positive sample size is passed in.
const DefaultSamplePages = 5

var whitespaceRegex = regexp.MustCompile(`\s+`)

func stripWhitespace(s string) string {
	return whitespaceRegex.ReplaceAllString(s, "")
}

// Doc abstracts a PDF document for the probe.
type Doc interface {
	NumPage() int
	Page(i int) (Page, error)
	Close() error
}

// Page abstracts a single PDF page for the probe.
type Page interface {
	Text() (string, error)
	Close()
}

// Opener abstracts opening a PDF path into a Doc.
type Opener interface {
	Open(path string) (Doc, error)
}

// defaultOpener is provided in probe_fitz.go using go-fitz.
var defaultOpener Opener

func setDefaultOpener(o Opener) { defaultOpener = o }

// HasExtractableText checks whether a PDF contains extractable text by
// sampling pages; scan-only documents fall below the character threshold
// and need OCR upstream. If threshold <= 0, DefaultThreshold is used.
func HasExtractableText(pdfPath string, threshold int) (bool, *Diagnostics, error) {
	return probeFile(pdfPath, threshold, 0, nil)
}

// HasExtractableTextSample is like HasExtractableText but caps how many
// pages the heuristic samples. If samplePages <= 0, DefaultSamplePages is
// used.
func HasExtractableTextSample(pdfPath string, threshold, samplePages int) (bool, *Diagnostics, error) {
	return probeFile(pdfPath, threshold, samplePages, nil)
}

// HasExtractableTextWithPages is like HasExtractableText but allows
// specifying explicit page indices to sample. If pages is nil, the standard
// sampling heuristic is used.
func HasExtractableTextWithPages(pdfPath string, threshold int, pages []int) (bool, *Diagnostics, error) {
	return probeFile(pdfPath, threshold, 0, pages)
}

func probeFile(pdfPath string, threshold, samplePages int, pages []int) (bool, *Diagnostics, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if samplePages <= 0 {
		samplePages = DefaultSamplePages
	}
	if defaultOpener == nil {
		return false, nil, errors.New("no PDF opener configured")
	}

	start := time.Now()
	d, err := defaultOpener.Open(pdfPath)
	if err != nil {
		return false, nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer d.Close()

	total := d.NumPage()
	if total <= 0 {
		return false, &Diagnostics{
			FilePath:           pdfPath,
			TotalPages:         total,
			SampledPages:       []int{},
			Threshold:          threshold,
			HasExtractableText: false,
			DurationMs:         time.Since(start).Milliseconds(),
		}, nil
	}

	var sampleIdx []int
	if pages != nil {
		sampleIdx = normalizeAndClampPages(pages, total)
	} else {
		sampleIdx = sampleIndices(total, samplePages)
	}

	probes := make([]PageProbe, 0, len(sampleIdx))
	totalChars := 0

	for _, idx := range sampleIdx {
		probe := PageProbe{PageIndex: idx, Sampled: true}
		p, perr := d.Page(idx)
		if perr != nil {
			probe.Err = perr.Error()
			probes = append(probes, probe)
			continue
		}
		text, terr := p.Text()
		p.Close()
		if terr != nil {
			probe.Err = terr.Error()
			probes = append(probes, probe)
			continue
		}

		count := len([]rune(stripWhitespace(text)))
		probe.CharCount = count
		totalChars += count
		probes = append(probes, probe)

		if totalChars >= threshold {
			// Early exit for speed
			break
		}
	}

	diag := &Diagnostics{
		FilePath:           pdfPath,
		TotalPages:         total,
		SampledPages:       sampleIdx,
		TotalCharsInSample: totalChars,
		Threshold:          threshold,
		Probes:             probes,
		HasExtractableText: totalChars >= threshold,
		DurationMs:         time.Since(start).Milliseconds(),
	}
	return diag.HasExtractableText, diag, nil
}

// sampleIndices picks up to max pages: first, middle and last always, plus
// random distinct fills. If N <= max, all pages are sampled.
func sampleIndices(total, max int) []int {
	if total <= 0 {
		return []int{}
	}
	if total <= max {
		idx := make([]int, total)
		for i := 0; i < total; i++ {
			idx[i] = i
		}
		return idx
	}

	mid := total / 2
	base := map[int]struct{}{0: {}, mid: {}, total - 1: {}}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for len(base) < max {
		cand := rnd.Intn(total)
		if _, ok := base[cand]; ok {
			continue
		}
		base[cand] = struct{}{}
	}

	out := make([]int, 0, len(base))
	for i := range base {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// normalizeAndClampPages ensures indices are unique, in-range, and sorted.
func normalizeAndClampPages(pages []int, total int) []int {
	m := make(map[int]struct{})
	for _, p := range pages {
		if p < 0 || p >= total {
			continue
		}
		m[p] = struct{}{}
	}
	out := make([]int, 0, len(m))
	for i := range m {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
