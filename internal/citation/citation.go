// Package citation separates true body-text paragraphs from footnote
// citations in text extracted from law-review documents. All functions are
// pure and deterministic; callers decide what to do with the verdicts.
package citation

import (
	"strings"
	"unicode"
)

// Line verdict weights. A line needs lineScoreThreshold points before it is
// considered a citation; a lone case name in running prose stays below it.
const (
	weightSignal      = 2
	weightReporter    = 3
	weightSupraInfra  = 2
	weightSection     = 1
	weightYearParen   = 1
	weightCaseName    = 1
	weightPinCite     = 1
	weightHereinafter = 2

	lineScoreThreshold = 3

	// Fraction of a line's letters that must belong to citation fragments
	// before the line counts as a citation. Prose quoting a single case
	// keeps most of its letters after the cite is stripped out.
	minCoverage = 0.4
)

// Evidence is the numeric breakdown behind a paragraph verdict. Exposed so
// diagnostic tooling can explain why a paragraph was labeled.
type Evidence struct {
	Segments     int     `json:"segments"`
	CitationSegs int     `json:"citation_segments"`
	ShortCites   int     `json:"short_cites"`
	Reporters    int     `json:"reporters"`
	Signals      int     `json:"signals"`
	DigitRatio   float64 `json:"digit_ratio"`
	LeadingNote  bool    `json:"leading_note"`
}

// Verdict applies the paragraph decision rule to the collected evidence.
func (e Evidence) Verdict() bool {
	if e.Segments == 0 {
		return false
	}
	// A footnote-numbered paragraph with any citation machinery inside is a
	// citation even when prose is mixed in ("12. See id. at 5. The point...").
	if e.LeadingNote && e.ShortCites+e.Reporters+e.Signals > 0 {
		return true
	}
	if float64(e.CitationSegs)/float64(e.Segments) >= 0.5 {
		return true
	}
	// String cites without signals: several reporters plus digit-heavy text.
	if e.Reporters >= 2 && e.DigitRatio >= 0.08 {
		return true
	}
	return false
}

// IsShortCitation reports whether line is a short-form citation standing on
// its own: "Id.", "Ibid.", "See id. at 55.", "Tribe, supra note 12, at 1065."
// or a bare reporter cite with nothing else around it.
func IsShortCitation(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" {
		return false
	}
	if idCiteRegex.MatchString(s) || supraCiteRegex.MatchString(s) {
		return true
	}
	return isBareReporterCite(s)
}

// isBareReporterCite strips citation fragments out of the line; if almost no
// letters remain, the line was nothing but a citation.
func isBareReporterCite(s string) bool {
	if !reporterCiteRegex.MatchString(s) {
		return false
	}
	return countLetters(stripCiteFragments(s)) <= 4
}

// stripCiteFragments removes the substrings that belong to citation syntax:
// reporter cites, year parentheticals, case names, pin cites, section refs,
// and a leading introductory signal.
func stripCiteFragments(s string) string {
	rest := reporterCiteRegex.ReplaceAllString(s, "")
	// Parentheticals are citation syntax here: years, courts, weight
	// ("(Harlan, J., concurring)"), publication data.
	rest = parenRegex.ReplaceAllString(rest, "")
	rest = caseNameRegex.ReplaceAllString(rest, "")
	rest = pinCiteRegex.ReplaceAllString(rest, "")
	rest = sectionRegex.ReplaceAllString(rest, "")
	rest = allCapsRunRegex.ReplaceAllString(rest, "")
	rest = strings.TrimSpace(rest)
	if sig, ok := leadingSignal(rest); ok {
		rest = rest[len(sig):]
	}
	return rest
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

// coverage returns the fraction of the line's letters consumed by citation
// fragments.
func coverage(s string) float64 {
	before := countLetters(s)
	if before == 0 {
		return 0
	}
	after := countLetters(stripCiteFragments(s))
	return 1 - float64(after)/float64(before)
}

// IsLikelyCitation reports whether a single line reads as a citation rather
// than prose. Short-form citations pass immediately; otherwise the weighted
// signals must reach the line threshold and citation fragments must account
// for a substantial share of the line.
func IsLikelyCitation(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" {
		return false
	}
	if IsShortCitation(s) {
		return true
	}
	return lineScore(s) >= lineScoreThreshold && coverage(s) >= minCoverage
}

func lineScore(s string) int {
	score := 0
	if _, ok := leadingSignal(s); ok {
		score += weightSignal
	}
	if reporterCiteRegex.MatchString(s) {
		score += weightReporter
	}
	if supraInfraRegex.MatchString(s) {
		score += weightSupraInfra
	}
	if sectionRegex.MatchString(s) {
		score += weightSection
	}
	if yearParenRegex.MatchString(s) {
		score += weightYearParen
	}
	if caseNameRegex.MatchString(s) {
		score += weightCaseName
	}
	if pinCiteRegex.MatchString(s) {
		score += weightPinCite
	}
	if hereinafterRegex.MatchString(s) {
		score += weightHereinafter
	}
	return score
}

func leadingSignal(s string) (string, bool) {
	ls := strings.ToLower(strings.TrimSpace(s))
	for _, sig := range citationSignals {
		if strings.HasPrefix(ls, sig) {
			return sig, true
		}
	}
	// A signal can also end the line outright ("But see."); rare, ignore.
	return "", false
}

// IsCitationParagraph reports whether an entire extracted paragraph is
// citation material (a footnote body or a string cite) rather than body text.
func IsCitationParagraph(paragraph string) bool {
	return Score(paragraph).Verdict()
}

// Score computes the evidence used by IsCitationParagraph without applying
// the verdict.
func Score(paragraph string) Evidence {
	ev := Evidence{}
	p := strings.TrimSpace(paragraph)
	if p == "" {
		return ev
	}

	// Numbered-list items and footnote bodies both start with a number;
	// classify the remainder so "1. The court held..." stays body text.
	if leadingNoteRegex.MatchString(p) {
		ev.LeadingNote = true
		if i := strings.IndexFunc(p, unicode.IsSpace); i > 0 {
			p = strings.TrimSpace(p[i:])
		}
	}

	digits, alnum := 0, 0
	for _, r := range p {
		switch {
		case unicode.IsDigit(r):
			digits++
			alnum++
		case unicode.IsLetter(r):
			alnum++
		}
	}
	if alnum > 0 {
		ev.DigitRatio = float64(digits) / float64(alnum)
	}

	for _, line := range strings.Split(p, "\n") {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		ev.Segments++
		if IsShortCitation(s) {
			ev.ShortCites++
		}
		if IsLikelyCitation(s) {
			ev.CitationSegs++
		}
		ev.Reporters += len(reporterCiteRegex.FindAllString(s, -1))
		if _, ok := leadingSignal(s); ok {
			ev.Signals++
		}
	}
	return ev
}
