// Package corpus holds the labeled-sample model and the CSV corpus store.
package corpus

import (
	"crypto/sha1"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Label classifies a text sample for the layout classifier.
type Label string

const (
	LabelBody     Label = "body"
	LabelFootnote Label = "footnote"
	LabelCitation Label = "citation"
	LabelCover    Label = "cover"
)

// ParseLabel validates a label string from CSV or API input.
func ParseLabel(s string) (Label, error) {
	switch Label(strings.ToLower(strings.TrimSpace(s))) {
	case LabelBody:
		return LabelBody, nil
	case LabelFootnote:
		return LabelFootnote, nil
	case LabelCitation:
		return LabelCitation, nil
	case LabelCover:
		return LabelCover, nil
	}
	return "", fmt.Errorf("unknown label %q", s)
}

// Sample is one labeled text span in the corpus.
type Sample struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Label      Label   `json:"label"`
	Source     string  `json:"source"` // "pdf", "html", "manual"
	Document   string  `json:"document"`
	Page       int     `json:"page"`
	Confidence float64 `json:"confidence"`
}

var csvHeader = []string{"id", "text", "label", "source", "document", "page", "confidence"}

// WriteCSV writes samples with the canonical header.
func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range samples {
		rec := []string{
			s.ID,
			s.Text,
			string(s.Label),
			s.Source,
			s.Document,
			strconv.Itoa(s.Page),
			strconv.FormatFloat(s.Confidence, 'f', 4, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes samples to path, creating parent directories.
func WriteFile(path string, samples []Sample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create corpus file: %w", err)
	}
	defer f.Close()
	if err := WriteCSV(f, samples); err != nil {
		return err
	}
	log.Debug().Str("path", path).Int("samples", len(samples)).Msg("wrote corpus file")
	return nil
}

// ReadCSV reads a corpus file, validating the header.
func ReadCSV(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, h := range header {
		if !strings.EqualFold(strings.TrimSpace(h), csvHeader[i]) {
			return nil, fmt.Errorf("unexpected csv header %q at column %d (want %q)", h, i, csvHeader[i])
		}
	}

	var samples []Sample
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		label, err := ParseLabel(rec[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		page, err := strconv.Atoi(rec[5])
		if err != nil {
			return nil, fmt.Errorf("line %d: parse page: %w", line, err)
		}
		conf, err := strconv.ParseFloat(rec[6], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse confidence: %w", line, err)
		}
		samples = append(samples, Sample{
			ID:         rec[0],
			Text:       rec[1],
			Label:      label,
			Source:     rec[3],
			Document:   rec[4],
			Page:       page,
			Confidence: conf,
		})
	}
	return samples, nil
}

// ReadFile reads a corpus CSV from disk.
func ReadFile(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// NormalizeText folds case and collapses whitespace for dedupe keys.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Key is the dedupe identity of a sample: SHA-1 of its normalized text.
// Label is deliberately excluded so conflicting labels for the same text
// collapse to the first occurrence instead of duplicating the sample.
func Key(s Sample) string {
	sum := sha1.Sum([]byte(NormalizeText(s.Text)))
	return hex.EncodeToString(sum[:])
}

// MergeStats summarizes a corpus merge.
type MergeStats struct {
	Total      int `json:"total"`
	Kept       int `json:"kept"`
	Duplicates int `json:"duplicates"`
	Empty      int `json:"empty"`
}

// Merge combines sample sets in order, dropping empty texts and duplicates
// by normalized-text key. Earlier sets win: re-running a merge with an
// already-merged corpus first is stable.
func Merge(sets ...[]Sample) ([]Sample, MergeStats) {
	stats := MergeStats{}
	seen := make(map[string]struct{})
	var out []Sample
	for _, set := range sets {
		for _, s := range set {
			stats.Total++
			if strings.TrimSpace(s.Text) == "" {
				stats.Empty++
				continue
			}
			k := Key(s)
			if _, dup := seen[k]; dup {
				stats.Duplicates++
				continue
			}
			seen[k] = struct{}{}
			out = append(out, s)
		}
	}
	stats.Kept = len(out)
	return out, stats
}

// Distribution counts samples per label.
func Distribution(samples []Sample) map[Label]int {
	dist := make(map[Label]int)
	for _, s := range samples {
		dist[s.Label]++
	}
	return dist
}
