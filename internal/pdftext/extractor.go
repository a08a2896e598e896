// Package pdftext extracts and cleans per-page text from law-review PDFs
// using go-fitz (MuPDF), with pdfcpu as a page-count fallback.
package pdftext

import (
	"fmt"
	"strings"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

// Extractor handles text extraction from PDF files.
type Extractor struct{}

// New creates a new PDF text extractor.
func New() *Extractor {
	return &Extractor{}
}

// PageCount returns the number of pages in a PDF, falling back to pdfcpu
// when MuPDF cannot open the file.
func (e *Extractor) PageCount(pdfPath string) (int, error) {
	doc, err := fitz.New(pdfPath)
	if err == nil {
		defer doc.Close()
		return doc.NumPage(), nil
	}
	log.Warn().Err(err).Str("pdf", pdfPath).Msg("go-fitz failed to open PDF, trying pdfcpu")

	n, err2 := api.PageCountFile(pdfPath)
	if err2 != nil {
		return 0, fmt.Errorf("page count: go-fitz: %v; pdfcpu: %w", err, err2)
	}
	return n, nil
}

// PageText extracts cleaned text from a specific page (1-based).
func (e *Extractor) PageText(pdfPath string, pageNum int) (string, error) {
	log.Debug().Str("pdf", pdfPath).Int("page", pageNum).Msg("extracting page text")

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	idx := pageNum - 1
	if idx < 0 || idx >= doc.NumPage() {
		return "", fmt.Errorf("page %d out of range (document has %d pages)", pageNum, doc.NumPage())
	}

	rawText, err := doc.Text(idx)
	if err != nil {
		return "", fmt.Errorf("extract text from page %d: %w", pageNum, err)
	}

	cleaned := CleanPageText(rawText, pageNum)
	log.Debug().
		Int("page", pageNum).
		Int("raw_chars", len(rawText)).
		Int("cleaned_chars", len(cleaned)).
		Msg("extracted and cleaned page text")
	return cleaned, nil
}

// RawPageText extracts uncleaned text from a specific page (1-based), for
// diagnostics and ground-truth comparison.
func (e *Extractor) RawPageText(pdfPath string, pageNum int) (string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()
	idx := pageNum - 1
	if idx < 0 || idx >= doc.NumPage() {
		return "", fmt.Errorf("page %d out of range (document has %d pages)", pageNum, doc.NumPage())
	}
	text, err := doc.Text(idx)
	if err != nil {
		return "", fmt.Errorf("extract text from page %d: %w", pageNum, err)
	}
	return text, nil
}

// DocumentText extracts cleaned text from all pages with page separators.
func (e *Extractor) DocumentText(pdfPath string) (string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	var result strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			log.Warn().Err(err).Int("page", i+1).Msg("failed to extract text from page")
			pageText = "[page extraction failed]"
		} else {
			pageText = CleanPageText(pageText, i+1)
		}
		if i > 0 {
			result.WriteString("\n\n")
		}
		result.WriteString(fmt.Sprintf("=== Page %d ===\n", i+1))
		result.WriteString(pageText)
	}
	return result.String(), nil
}
