package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// CorpusConfig defines where corpus artifacts live and how samples are cut.
type CorpusConfig struct {
	Dir           string
	OutputCSV     string
	ImageDir      string
	ImageDPI      int
	ImageQuality  int
	ImageGray     bool
	MinSampleLen  int
	ProbePages    int
	ProbeMinChars int
}

// ScrapeConfig defines ground-truth scraping behavior.
type ScrapeConfig struct {
	BodySelector     string
	FootnoteSelector string
	StripSelector    string
	Timeout          time.Duration
}

// VastConfig defines vast.ai API access for GPU instance polling.
type VastConfig struct {
	APIKey       string
	InstanceID   int64
	PollInterval time.Duration
}

// WorkerConfig defines worker behavior and limits.
type WorkerConfig struct {
	Concurrency        int
	PageTimeout        time.Duration
	JobMaxAttempts     int
	RetryBaseDelay     time.Duration
	RetryJitter        time.Duration
	RetryBackoffFactor float64
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
	RedisURL     string
	Stream       string
	Group        string
	PollInterval time.Duration
}

// StorageConfig defines S3 connectivity for source PDFs and artifacts.
type StorageConfig struct {
	Bucket    string
	Region    string
	Prefix    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// WebConfig defines the dashboard listener and its login.
type WebConfig struct {
	Addr         string
	User         string
	PasswordHash string // bcrypt
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Corpus  CorpusConfig
	Scrape  ScrapeConfig
	Vast    VastConfig
	Worker  WorkerConfig
	Queue   QueueConfig
	Storage StorageConfig
	Web     WebConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/lawcorpus.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_lawcorpus",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	// Corpus defaults
	cfg.Corpus = CorpusConfig{
		Dir:           getEnv("CORPUS_DIR", "corpus"),
		OutputCSV:     getEnv("CORPUS_OUTPUT_CSV", "corpus/corpus.csv"),
		ImageDir:      getEnv("CORPUS_IMAGE_DIR", "corpus/pages"),
		ImageDPI:      parseInt(getEnv("PAGE_IMAGE_DPI", "150"), 150),
		ImageQuality:  parseInt(getEnv("PAGE_IMAGE_QUALITY", "85"), 85),
		ImageGray:     parseBool(getEnv("PAGE_IMAGE_GRAY", "true")),
		MinSampleLen:  parseInt(getEnv("MIN_SAMPLE_LEN", "20"), 20),
		ProbePages:    parseInt(getEnv("PROBE_PAGES", "5"), 5),
		ProbeMinChars: parseInt(getEnv("PROBE_MIN_CHARS", "300"), 300),
	}

	// Scrape defaults (empty selector falls back to the built-in source)
	cfg.Scrape = ScrapeConfig{
		BodySelector:     getEnv("SCRAPE_BODY_SELECTOR", ""),
		FootnoteSelector: getEnv("SCRAPE_FOOTNOTE_SELECTOR", ""),
		StripSelector:    getEnv("SCRAPE_STRIP_SELECTOR", ""),
		Timeout:          parseDuration(getEnv("SCRAPE_TIMEOUT", "30s"), 30*time.Second),
	}

	// Vast defaults
	cfg.Vast = VastConfig{
		APIKey:       getEnv("VAST_API_KEY", ""),
		InstanceID:   int64(parseInt(getEnv("VAST_INSTANCE_ID", "0"), 0)),
		PollInterval: parseDuration(getEnv("VAST_POLL_INTERVAL", "10s"), 10*time.Second),
	}

	// Worker defaults
	cfg.Worker = WorkerConfig{
		Concurrency:        parseInt(getEnv("WORKER_CONCURRENCY", "8"), 8),
		PageTimeout:        parseDuration(getEnv("PAGE_TIMEOUT", "60s"), 60*time.Second),
		JobMaxAttempts:     parseInt(getEnv("JOB_MAX_ATTEMPTS", "3"), 3),
		RetryBaseDelay:     parseDuration(getEnv("RETRY_BASE_DELAY", "2s"), 2*time.Second),
		RetryJitter:        parseDuration(getEnv("RETRY_JITTER", "200ms"), 200*time.Millisecond),
		RetryBackoffFactor: parseFloat(getEnv("RETRY_BACKOFF_FACTOR", "2.0"), 2.0),
	}

	// Queue defaults
	cfg.Queue = QueueConfig{
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		Stream:       getEnv("QUEUE_STREAM", "jobs:corpus:pages"),
		Group:        getEnv("QUEUE_GROUP", "workers:pages"),
		PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "100ms"), 100*time.Millisecond),
	}

	// Storage defaults
	cfg.Storage = StorageConfig{
		Bucket:    getEnv("S3_BUCKET", ""),
		Region:    getEnv("S3_REGION", "us-east-1"),
		Prefix:    getEnv("S3_PREFIX", "lawcorpus"),
		Endpoint:  getEnv("S3_ENDPOINT", ""),
		AccessKey: getEnv("S3_ACCESS_KEY", ""),
		SecretKey: getEnv("S3_SECRET_KEY", ""),
	}

	// Web defaults
	cfg.Web = WebConfig{
		Addr:         getEnv("WEB_ADDR", ":8080"),
		User:         getEnv("WEB_USER", "admin"),
		PasswordHash: getEnv("WEB_PASSWORD_HASH", ""),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
