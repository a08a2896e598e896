package filetype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDetectRoutes(t *testing.T) {
	d := New()

	tests := []struct {
		name      string
		file      string
		data      []byte
		route     Route
		supported bool
	}{
		{
			name:      "pdf",
			file:      "doc.pdf",
			data:      []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"),
			route:     RoutePDF,
			supported: true,
		},
		{
			name:      "html",
			file:      "article.html",
			data:      []byte("<!DOCTYPE html><html><body><p>hi</p></body></html>"),
			route:     RouteHTML,
			supported: true,
		},
		{
			name:      "csv",
			file:      "corpus.csv",
			data:      []byte("id,text,label\n1,some sample,body\n2,another sample,footnote\n"),
			route:     RouteCorpus,
			supported: true,
		},
		{
			name:  "jpeg",
			file:  "page.jpg",
			data:  []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00},
			route: RouteImage,
		},
		{
			name:  "plain text",
			file:  "notes.txt",
			data:  []byte("just some prose without any markup at all\n"),
			route: RouteText,
		},
		{
			name:  "binary garbage",
			file:  "blob.bin",
			data:  []byte{0x00, 0x01, 0x02, 0x03, 0xde, 0xad, 0xbe, 0xef},
			route: RouteReject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := d.Detect(writeTemp(t, tt.file, tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.route, info.Route)
			assert.Equal(t, tt.supported, info.Supported)
		})
	}
}

func TestDetectMissingFile(t *testing.T) {
	_, err := New().Detect(filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Error(t, err)
}
