package pdftext

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Running-head patterns seen across law-review scans: volume markers like
// "[Vol. 104:1409" and bracketed years.
var volumeHeadRegex = regexp.MustCompile(`\[?Vol\.\s*\d+`)

var romanNumeralRegex = regexp.MustCompile(`^[ivxlcdm]+$`)

// CleanPageText removes running headers/footers, bare page numbers, and
// noise lines from one page of extracted text, then repairs lines broken
// mid-sentence and hyphenated across line ends.
func CleanPageText(text string, pageNum int) string {
	lines := strings.Split(text, "\n")
	var cleaned []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			cleaned = append(cleaned, line)
			continue
		}
		if isPageNumber(trimmed, pageNum) {
			continue
		}
		if isRunningHead(trimmed) {
			continue
		}
		if isNoise(trimmed) {
			continue
		}
		cleaned = append(cleaned, line)
	}

	result := strings.Join(cleaned, "\n")
	result = mergeHyphenated(result)
	result = fixBrokenLines(result)
	return strings.TrimSpace(result)
}

// isPageNumber checks if a line is likely a bare page number.
func isPageNumber(line string, pageNum int) bool {
	if n, err := strconv.Atoi(line); err == nil {
		// Printed folios rarely match the physical page index exactly, so
		// any standalone number in plausible range is treated as a folio.
		return n > 0 && n < 10000
	}
	if romanNumeralRegex.MatchString(strings.ToLower(line)) && len(line) <= 8 {
		return true
	}
	patterns := []string{
		fmt.Sprintf("Page %d", pageNum),
		fmt.Sprintf("- %d -", pageNum),
		fmt.Sprintf("[%d]", pageNum),
	}
	for _, p := range patterns {
		if strings.EqualFold(line, p) {
			return true
		}
	}
	return false
}

// isRunningHead checks if a line looks like a journal running header or
// footer.
func isRunningHead(line string) bool {
	if volumeHeadRegex.MatchString(line) && len(line) < 80 {
		return true
	}

	// All caps and short with few words (journal name, article short title).
	if len(line) < 60 && strings.ToUpper(line) == line {
		words := strings.Fields(line)
		if len(words) <= 4 && hasLetter(line) {
			return true
		}
	}

	footerPatterns := []string{
		"ELECTRONIC COPY AVAILABLE AT",
		"DOWNLOADED FROM",
		"HEINONLINE",
		"ALL RIGHTS RESERVED",
		"COPYRIGHT",
	}
	upper := strings.ToUpper(line)
	for _, p := range footerPatterns {
		if strings.Contains(upper, p) && len(line) < 120 {
			return true
		}
	}
	return false
}

// isNoise checks if a line carries no letters or digits at all.
func isNoise(line string) bool {
	for _, r := range line {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func hasLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

// mergeHyphenated joins words hyphenated across line breaks:
// "consti-\ntutional" becomes "constitutional".
func mergeHyphenated(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t")
		for strings.HasSuffix(line, "-") && i < len(lines)-1 {
			next := strings.TrimSpace(lines[i+1])
			if next == "" {
				break
			}
			// Keep the hyphen when the continuation starts uppercase; that
			// is usually a true compound ("Fourth-\nAmendment").
			if next[0] >= 'A' && next[0] <= 'Z' {
				break
			}
			line = strings.TrimSuffix(line, "-") + next
			i++
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// fixBrokenLines joins lines broken mid-sentence: no terminal punctuation
// and a lowercase continuation.
func fixBrokenLines(text string) string {
	lines := strings.Split(text, "\n")
	var fixed []string

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		for trimmed != "" && i < len(lines)-1 {
			next := strings.TrimSpace(lines[i+1])
			if next == "" {
				break
			}
			last := trimmed[len(trimmed)-1]
			if last == '.' || last == '!' || last == '?' || last == ':' || last == ';' {
				break
			}
			first := next[0]
			if first < 'a' || first > 'z' {
				break
			}
			trimmed = trimmed + " " + next
			i++
		}
		if trimmed != "" {
			fixed = append(fixed, trimmed)
		} else {
			fixed = append(fixed, line)
		}
	}
	return strings.Join(fixed, "\n")
}

// Paragraphs splits cleaned page text into trimmed, non-empty paragraphs on
// blank lines.
func Paragraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		p := strings.TrimSpace(block)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
