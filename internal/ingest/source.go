package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/lawcorpus/internal/storage"
)

// resolveLocal turns a document reference into a local file path.
// Supports s3://bucket/key, http(s):// URLs, file:// and plain paths.
// The second return is true when the file is a temp copy the caller
// must clean up after the job.
func (s *Service) resolveLocal(ctx context.Context, jobID, ref string) (string, bool, error) {
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}
	switch {
	case strings.HasPrefix(ref, "s3://"):
		if s.deps.Storage == nil {
			return "", false, fmt.Errorf("s3 ref %q but storage is not configured", ref)
		}
		_, key := storage.ParseRef(ref)
		if key == "" {
			return "", false, fmt.Errorf("invalid s3 ref: %s", ref)
		}
		dst := filepath.Join(os.TempDir(), fmt.Sprintf("s3pdf-%s%s", jobID, filepath.Ext(key)))
		if err := s.deps.Storage.DownloadToFile(ctx, key, dst); err != nil {
			return "", false, err
		}
		return dst, true, nil
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		dst, err := downloadHTTPToTemp(ctx, ref, jobID)
		if err != nil {
			return "", false, err
		}
		return dst, true, nil
	case strings.HasPrefix(ref, "file://"):
		return strings.TrimPrefix(ref, "file://"), false, nil
	default:
		return ref, false, nil
	}
}

func downloadHTTPToTemp(ctx context.Context, url, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d fetching %s", resp.StatusCode, url)
	}
	dst := filepath.Join(os.TempDir(), fmt.Sprintf("pdfdl-%s.pdf", jobID))
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dst)
		return "", err
	}
	return dst, nil
}

// pageCount asks MuPDF first and falls back to pdfcpu, which handles some
// malformed cross-reference tables MuPDF rejects.
func (s *Service) pageCount(path string) (int, error) {
	n, err := s.extractor.PageCount(path)
	if err == nil && n > 0 {
		return n, nil
	}
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("mupdf page count failed, trying pdfcpu")
	}
	n2, err2 := api.PageCountFile(path)
	if err2 != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err2)
	}
	return n2, nil
}
