package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Client moves source PDFs and corpus artifacts in and out of a bucket.
type S3Client struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucketName string
}

// Options configures bucket access. Empty fields fall back to the default
// AWS credential chain and endpoint.
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewS3Client creates a new S3 client.
func NewS3Client(ctx context.Context, opts Options) (*S3Client, error) {
	var loadOpts []func(*awscfg.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Client{
		client:     cli,
		uploader:   manager.NewUploader(cli),
		downloader: manager.NewDownloader(cli),
		bucketName: opts.Bucket,
	}, nil
}

// ParseRef splits an "s3://bucket/key" reference. Bucket is empty when the
// ref is a bare key.
func ParseRef(ref string) (bucket, key string) {
	if !strings.HasPrefix(ref, "s3://") {
		return "", ref
	}
	rest := strings.TrimPrefix(ref, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

// Download fetches an object into memory.
func (s *S3Client) Download(ctx context.Context, key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	n, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", s.bucketName, key, err)
	}
	log.Debug().Str("key", key).Int64("size", n).Msg("downloaded object from S3")
	return buf.Bytes(), nil
}

// DownloadToFile fetches an object to a local path, creating parent dirs.
func (s *S3Client) DownloadToFile(ctx context.Context, key, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	n, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to download s3://%s/%s: %w", s.bucketName, key, err)
	}
	log.Info().Str("key", key).Str("path", path).Int64("size", n).Msg("downloaded source document")
	return nil
}

// Upload puts bytes under a key with a content type.
func (s *S3Client) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucketName, key, err)
	}
	log.Info().Str("key", key).Int("size", len(data)).Str("content_type", contentType).Msg("uploaded object to S3")
	return nil
}

// UploadFile streams a local file under a key.
func (s *S3Client) UploadFile(ctx context.Context, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return s.uploadReader(ctx, key, f, contentType)
}

func (s *S3Client) uploadReader(ctx context.Context, key string, r io.Reader, contentType string) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucketName, key, err)
	}
	log.Info().Str("key", key).Msg("uploaded file to S3")
	return nil
}

// NextVersion returns the next available integer suffix for a base key
// using pattern baseKey_v{N}. Corpus snapshots are never overwritten.
func (s *S3Client) NextVersion(ctx context.Context, baseKey string) (int, error) {
	if baseKey == "" {
		return 1, nil
	}

	prefix := baseKey + "_v"
	maxVersion := 0

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 1, fmt.Errorf("list versions failed: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			verStr := strings.TrimPrefix(*obj.Key, prefix)
			// trim any extension on the snapshot key
			if i := strings.IndexByte(verStr, '.'); i >= 0 {
				verStr = verStr[:i]
			}
			if n, err := strconv.Atoi(verStr); err == nil && n > maxVersion {
				maxVersion = n
			}
		}
	}

	return maxVersion + 1, nil
}
