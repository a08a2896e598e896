// Package pageimage renders PDF pages to images for the labeling UI and
// for region-overlay debugging.
package pageimage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	"github.com/local/lawcorpus/internal/geometry"
)

// ColorMode defines the color mode for rendering
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

const (
	DefaultDPI     = 150
	DefaultQuality = 85
)

// Rendered is one rasterized page. Space is the pixel coordinate space of
// the image, so layout boxes in PDF points can be projected onto it with
// geometry.Convert.
type Rendered struct {
	Page   int
	Data   []byte
	Width  int
	Height int
	Space  geometry.Space
}

// RenderPageToJPEG renders a PDF page as an in-memory JPEG.
func RenderPageToJPEG(pdfPath string, pageNum, dpi, quality int, colorMode ColorMode) (*Rendered, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(pageNum-1, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var finalImg image.Image
	if colorMode == ColorGray {
		grayImg := image.NewGray(bounds)
		draw.Draw(grayImg, bounds, img, image.Point{}, draw.Src)
		finalImg = grayImg
	} else {
		finalImg = img
	}

	var buf bytes.Buffer
	opts := &jpeg.Options{Quality: quality}
	if err := jpeg.Encode(&buf, finalImg, opts); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	log.Debug().
		Int("page", pageNum).
		Int("width", width).
		Int("height", height).
		Int("jpeg_size", buf.Len()).
		Int("dpi", dpi).
		Str("color", string(colorMode)).
		Msg("rendered page as JPEG")

	return &Rendered{
		Page:   pageNum,
		Data:   buf.Bytes(),
		Width:  width,
		Height: height,
		Space:  geometry.PixelSpace(float64(width), float64(height), float64(dpi)),
	}, nil
}

// RenderPageToPNG renders a PDF page as an in-memory PNG (lossless, for
// overlay debugging where JPEG artifacts get in the way).
func RenderPageToPNG(pdfPath string, pageNum, dpi int) (*Rendered, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.ImageDPI(pageNum-1, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}

	bounds := img.Bounds()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}

	return &Rendered{
		Page:   pageNum,
		Data:   buf.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Space:  geometry.PixelSpace(float64(bounds.Dx()), float64(bounds.Dy()), float64(dpi)),
	}, nil
}

// DumpDocument renders every page of a PDF into dir as page-NNNN.jpg.
// Returns the written file paths in page order.
func DumpDocument(pdfPath, dir string, dpi, quality int, colorMode ColorMode) ([]string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	pages := doc.NumPage()
	doc.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	var paths []string
	for p := 1; p <= pages; p++ {
		r, err := RenderPageToJPEG(pdfPath, p, dpi, quality, colorMode)
		if err != nil {
			return paths, fmt.Errorf("page %d: %w", p, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("page-%04d.jpg", p))
		if err := os.WriteFile(path, r.Data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	log.Info().
		Str("pdf", pdfPath).
		Str("dir", dir).
		Int("pages", len(paths)).
		Int("dpi", dpi).
		Msg("dumped document page images")
	return paths, nil
}

// EncodeToBase64 converts binary data to base64 string
func EncodeToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeFromBase64 converts base64 string back to binary data
func DecodeFromBase64(b64 string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(b64)
}

// GetImageDimensions extracts dimensions from JPEG bytes
func GetImageDimensions(jpegBytes []byte) (width, height int, err error) {
	img, err := jpeg.Decode(bytes.NewReader(jpegBytes))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode JPEG: %w", err)
	}

	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}
