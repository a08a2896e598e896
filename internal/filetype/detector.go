package filetype

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Route says which pipeline an input file belongs to.
type Route string

const (
	// RoutePDF goes through text extraction and layout analysis.
	RoutePDF Route = "pdf"
	// RouteHTML goes through the ground-truth scraper.
	RouteHTML Route = "html"
	// RouteCorpus is an existing corpus CSV, consumed by the merger.
	RouteCorpus Route = "corpus"
	// RouteImage is a pre-rendered page image (already rasterized upstream).
	RouteImage Route = "image"
	// RouteText is plain text without layout information.
	RouteText Route = "text"
	// RouteReject is everything the pipeline cannot use.
	RouteReject Route = "reject"
)

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	Route       Route
	Supported   bool
	Description string
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, not filename
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	d.classify(info)

	log.Debug().
		Str("mime", info.MIMEType).
		Str("ext", info.Extension).
		Str("route", string(info.Route)).
		Str("file", filePath).
		Msg("detected file type")
	return info, nil
}

// classify maps a MIME type onto a pipeline route.
func (d *Detector) classify(info *FileTypeInfo) {
	mimeType := info.MIMEType

	switch {
	case mimeType == "application/pdf":
		info.Route = RoutePDF
		info.Supported = true
		info.Description = "PDF document"

	case strings.HasPrefix(mimeType, "text/html"):
		info.Route = RouteHTML
		info.Supported = true
		info.Description = "HTML document"

	case strings.HasPrefix(mimeType, "text/csv"):
		info.Route = RouteCorpus
		info.Supported = true
		info.Description = "Corpus CSV"

	case strings.HasPrefix(mimeType, "image/"):
		// Pre-rendered page images carry no extractable text; intake
		// rejects them.
		info.Route = RouteImage
		info.Supported = false
		info.Description = "Page image"

	case strings.HasPrefix(mimeType, "text/") || mimeType == "application/json":
		// Bare text has no layout to classify against; intake rejects it.
		info.Route = RouteText
		info.Supported = false
		info.Description = "Plain text file"

	default:
		info.Route = RouteReject
		info.Supported = false
		info.Description = fmt.Sprintf("Unsupported file type: %s", mimeType)
	}
}
