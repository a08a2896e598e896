// Package groundtruth validates PDF extraction against scraped HTML
// editions of the same article. HTML paragraphs are the reference; the
// aligner pairs them with extracted paragraphs and reports what the PDF
// pipeline dropped or mangled.
package groundtruth

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog/log"

	"github.com/local/lawcorpus/internal/corpus"
)

// Minimum token-overlap score for a fuzzy pair. Below this the paragraphs
// are considered unrelated.
const defaultMinOverlap = 0.6

// Pair links a reference (HTML) paragraph to an extracted (PDF) one.
type Pair struct {
	RefIndex int     `json:"ref_index"`
	ExtIndex int     `json:"ext_index"`
	Score    float64 `json:"score"` // 1.0 for exact normalized matches
	Exact    bool    `json:"exact"`
}

// Report is the outcome of aligning one document.
type Report struct {
	Document     string `json:"document"`
	Pairs        []Pair `json:"pairs"`
	UnmatchedRef []int  `json:"unmatched_ref"`
	UnmatchedExt []int  `json:"unmatched_ext"`

	refParas []string
	extParas []string
}

// Matched returns the fraction of reference paragraphs that found a pair.
func (r *Report) Matched() float64 {
	total := len(r.Pairs) + len(r.UnmatchedRef)
	if total == 0 {
		return 0
	}
	return float64(len(r.Pairs)) / float64(total)
}

// Aligner pairs reference and extracted paragraphs.
type Aligner struct {
	// MinOverlap is the token-overlap threshold for fuzzy pairing.
	MinOverlap float64
}

func NewAligner() *Aligner {
	return &Aligner{MinOverlap: defaultMinOverlap}
}

// Align pairs reference paragraphs with extracted ones: exact matches on
// normalized text first, then greedy token-overlap pairing of what is left.
func (a *Aligner) Align(document string, ref, ext []string) *Report {
	rep := &Report{Document: document, refParas: ref, extParas: ext}

	extByNorm := make(map[string]int, len(ext))
	extUsed := make([]bool, len(ext))
	for i := len(ext) - 1; i >= 0; i-- { // earliest occurrence wins
		extByNorm[corpus.NormalizeText(ext[i])] = i
	}

	var fuzzyRef []int
	for ri, p := range ref {
		norm := corpus.NormalizeText(p)
		if ei, ok := extByNorm[norm]; ok && !extUsed[ei] && norm != "" {
			rep.Pairs = append(rep.Pairs, Pair{RefIndex: ri, ExtIndex: ei, Score: 1.0, Exact: true})
			extUsed[ei] = true
			continue
		}
		fuzzyRef = append(fuzzyRef, ri)
	}

	for _, ri := range fuzzyRef {
		best, bestScore := -1, 0.0
		refToks := tokenSet(ref[ri])
		for ei := range ext {
			if extUsed[ei] {
				continue
			}
			if s := overlap(refToks, tokenSet(ext[ei])); s > bestScore {
				best, bestScore = ei, s
			}
		}
		if best >= 0 && bestScore >= a.MinOverlap {
			rep.Pairs = append(rep.Pairs, Pair{RefIndex: ri, ExtIndex: best, Score: bestScore})
			extUsed[best] = true
		} else {
			rep.UnmatchedRef = append(rep.UnmatchedRef, ri)
		}
	}

	for ei := range ext {
		if !extUsed[ei] {
			rep.UnmatchedExt = append(rep.UnmatchedExt, ei)
		}
	}
	sort.Slice(rep.Pairs, func(i, j int) bool { return rep.Pairs[i].RefIndex < rep.Pairs[j].RefIndex })

	log.Info().
		Str("document", document).
		Int("pairs", len(rep.Pairs)).
		Int("unmatched_ref", len(rep.UnmatchedRef)).
		Int("unmatched_ext", len(rep.UnmatchedExt)).
		Float64("matched", rep.Matched()).
		Msg("Ground-truth alignment done")
	return rep
}

// PairDiff renders a word-level diff for one fuzzy pair. Exact pairs
// return the empty string.
func (r *Report) PairDiff(p Pair) string {
	if p.Exact {
		return ""
	}
	return cmp.Diff(tokens(r.refParas[p.RefIndex]), tokens(r.extParas[p.ExtIndex]))
}

// Write renders a human-readable report.
func (r *Report) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "document: %s\nmatched: %.1f%% (%d pairs, %d ref unmatched, %d ext unmatched)\n\n",
		r.Document, r.Matched()*100, len(r.Pairs), len(r.UnmatchedRef), len(r.UnmatchedExt)); err != nil {
		return err
	}
	for _, p := range r.Pairs {
		if p.Exact {
			continue
		}
		if _, err := fmt.Fprintf(w, "fuzzy pair ref[%d] <-> ext[%d] score=%.2f\n%s\n",
			p.RefIndex, p.ExtIndex, p.Score, r.PairDiff(p)); err != nil {
			return err
		}
	}
	for _, ri := range r.UnmatchedRef {
		if _, err := fmt.Fprintf(w, "missing from extraction: ref[%d] %q\n", ri, snippet(r.refParas[ri])); err != nil {
			return err
		}
	}
	for _, ei := range r.UnmatchedExt {
		if _, err := fmt.Fprintf(w, "extra in extraction: ext[%d] %q\n", ei, snippet(r.extParas[ei])); err != nil {
			return err
		}
	}
	return nil
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}

func tokens(s string) []string {
	return strings.Fields(corpus.NormalizeText(s))
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokens(s) {
		set[t] = struct{}{}
	}
	return set
}

// overlap is the Jaccard index of two token sets.
func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
