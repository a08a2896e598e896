package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref    string
		bucket string
		key    string
	}{
		{"s3://corpus-bucket/pdfs/104/article.pdf", "corpus-bucket", "pdfs/104/article.pdf"},
		{"s3://bucket-only", "bucket-only", ""},
		{"plain/key.pdf", "", "plain/key.pdf"},
		{"", "", ""},
	}
	for _, tt := range tests {
		bucket, key := ParseRef(tt.ref)
		assert.Equal(t, tt.bucket, bucket, tt.ref)
		assert.Equal(t, tt.key, key, tt.ref)
	}
}
