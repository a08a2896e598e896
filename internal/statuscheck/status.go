package statuscheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// Checker aggregates health checks for external dependencies used by the dashboard.
type Checker struct {
	redis      RedisPinger
	s3Bucket   string
	httpClient *http.Client
	vastKey    string
	vastURL    string
	corpusDir  string
}

// Options configures the Checker.
type Options struct {
	Redis       RedisPinger
	S3Bucket    string
	HTTPClient  *http.Client
	VastAPIKey  string
	VastBaseURL string
	CorpusDir   string
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses for the dashboard.
type Summary struct {
	Redis     Status `json:"redis"`
	S3        Status `json:"s3"`
	Vast      Status `json:"vast"`
	CorpusDir Status `json:"corpus_dir"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	vastURL := opts.VastBaseURL
	if vastURL == "" {
		vastURL = "https://console.vast.ai/api/v0"
	}
	return &Checker{
		redis:      opts.Redis,
		s3Bucket:   opts.S3Bucket,
		httpClient: client,
		vastKey:    strings.TrimSpace(opts.VastAPIKey),
		vastURL:    vastURL,
		corpusDir:  opts.CorpusDir,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Redis:     c.checkRedis(ctx),
		S3:        c.checkS3(ctx),
		Vast:      c.checkVast(ctx),
		CorpusDir: c.checkCorpusDir(),
	}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: false, Message: "client unavailable"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: err.Error()}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
	if c.s3Bucket == "" {
		return Status{OK: false, Message: "Bucket not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return Status{OK: false, Message: err.Error()}
	}
	cli := s3.NewFromConfig(cfg)
	_, err = cli.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &c.s3Bucket})
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkVast(ctx context.Context) Status {
	if c.vastKey == "" {
		return Status{OK: false, Message: "API key missing"}
	}
	u := fmt.Sprintf("%s/instances/?api_key=%s", c.vastURL, c.vastKey)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Status{OK: false, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return Status{OK: true, Message: "Available"}
}

func (c *Checker) checkCorpusDir() Status {
	if c.corpusDir == "" {
		return Status{OK: false, Message: "Directory not configured"}
	}
	info, err := os.Stat(c.corpusDir)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	if !info.IsDir() {
		return Status{OK: false, Message: "Not a directory"}
	}
	return Status{OK: true, Message: "Writable"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
