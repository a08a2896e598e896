// Package worker consumes page jobs from the queue, runs the extraction
// and classification pipeline, and reports results back to the ingest
// service over its internal endpoints.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/lawcorpus/internal/corpus"
	"github.com/local/lawcorpus/internal/metrics"
)

// Queue is the slice of the job queue the worker needs.
type Queue interface {
	Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error)
	Ack(ctx context.Context, msgID string) error
	EnqueueDelayed(ctx context.Context, payload []byte, executeAt time.Time) error
	AddDLQ(ctx context.Context, payload []byte, reason string) error
	IsCancelled(ctx context.Context, jobID string) (bool, error)
	IsIdemDone(ctx context.Context, key string) (bool, error)
	MarkIdemDone(ctx context.Context, key string, ttl time.Duration) error
}

type Config struct {
	Concurrency        int
	PageTimeout        time.Duration
	MaxAttempts        int
	RetryBaseDelay     time.Duration
	RetryJitter        time.Duration
	RetryBackoffFactor float64
	MinSampleLen       int
}

type Worker struct {
	cfg      Config
	q        Queue
	pipeline *Pipeline
	stop     chan struct{}
}

func New(cfg Config, q Queue) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 60 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	if cfg.RetryBackoffFactor <= 0 {
		cfg.RetryBackoffFactor = 2.0
	}
	return &Worker{
		cfg:      cfg,
		q:        q,
		pipeline: NewPipeline(cfg.MinSampleLen),
		stop:     make(chan struct{}),
	}
}

func (w *Worker) Start() {
	for i := 0; i < w.cfg.Concurrency; i++ {
		go w.loop(i)
	}
}

func (w *Worker) Stop(ctx context.Context) error {
	close(w.stop)
	return nil
}

func (w *Worker) loop(id int) {
	log.Info().Int("worker", id).Msg("page worker started")
	consumer := fmt.Sprintf("worker-%d", id)
	for {
		select {
		case <-w.stop:
			log.Info().Int("worker", id).Msg("page worker stopped")
			return
		default:
		}

		msgID, data, err := w.q.Dequeue(context.Background(), consumer, 2*time.Second)
		if err != nil {
			log.Error().Err(err).Msg("queue dequeue error")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if data == nil {
			continue
		}
		_ = w.q.Ack(context.Background(), msgID)

		var job PageJob
		if err := json.Unmarshal(data, &job); err != nil {
			log.Error().Err(err).Str("msg_id", msgID).Msg("bad job payload, dropping")
			_ = w.q.AddDLQ(context.Background(), data, "unmarshal: "+err.Error())
			continue
		}

		w.handle(id, job, data)
	}
}

func (w *Worker) handle(id int, job PageJob, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.PageTimeout)
	defer cancel()

	if job.JobID != "" {
		if cancelled, _ := w.q.IsCancelled(ctx, job.JobID); cancelled {
			log.Warn().Int("worker", id).Str("job_id", job.JobID).Int("page", job.Page).
				Msg("job cancelled before processing; skipping")
			return
		}
	}
	if done, _ := w.q.IsIdemDone(ctx, job.IdemKey()); done {
		log.Debug().Str("job_id", job.JobID).Int("page", job.Page).Msg("page already processed; skipping")
		return
	}

	samples, err := w.pipeline.ProcessPage(job)
	if err == nil {
		w.reportDone(job, samples)
		_ = w.q.MarkIdemDone(ctx, job.IdemKey(), 24*time.Hour)
		metrics.IncProcessed("success")
		for label, n := range corpus.Distribution(samples) {
			metrics.IncSamples(string(label), n)
		}
		return
	}

	log.Error().Err(err).Str("job_id", job.JobID).Int("page", job.Page).Int("attempt", job.Attempt).
		Msg("page processing failed")

	if w.shouldRetry(job, err) {
		job.Attempt++
		payload, _ := json.Marshal(job)
		delay := w.backoff(job.Attempt)
		if qerr := w.q.EnqueueDelayed(context.Background(), payload, time.Now().Add(delay)); qerr != nil {
			log.Error().Err(qerr).Str("job_id", job.JobID).Msg("failed to schedule retry")
		} else {
			metrics.IncRetry()
			log.Info().Str("job_id", job.JobID).Int("page", job.Page).Dur("delay", delay).
				Int("attempt", job.Attempt).Msg("page retry scheduled")
			return
		}
	}

	_ = w.q.AddDLQ(context.Background(), raw, err.Error())
	metrics.IncProcessed("dlq")
	w.reportFailed(job, err)
}

// shouldRetry allows a delayed retry while the attempt budget lasts.
// Attempt counts from 1, so MaxAttempts=3 means three runs in total.
func (w *Worker) shouldRetry(job PageJob, err error) bool {
	return isTransientError(err) && job.Attempt < w.cfg.MaxAttempts
}

func (w *Worker) backoff(attempt int) time.Duration {
	d := time.Duration(float64(w.cfg.RetryBaseDelay) * math.Pow(w.cfg.RetryBackoffFactor, float64(attempt-1)))
	if w.cfg.RetryJitter > 0 {
		d += time.Duration(rand.Int63n(int64(w.cfg.RetryJitter)))
	}
	return d
}

// Results go back to the ingest service over loopback, keeping workers free
// of store wiring.
func (w *Worker) reportDone(job PageJob, samples []corpus.Sample) {
	port := getenv("PORT", "8080")
	url := fmt.Sprintf("http://127.0.0.1:%s/internal/page_done?job_id=%s&page=%d", port, job.JobID, job.Page)
	body, _ := json.Marshal(map[string]any{"samples": samples})
	if _, err := http.Post(url, "application/json", bytes.NewReader(body)); err != nil {
		log.Error().Err(err).Str("job_id", job.JobID).Int("page", job.Page).Msg("page_done callback failed")
	}
}

func (w *Worker) reportFailed(job PageJob, perr error) {
	port := getenv("PORT", "8080")
	url := fmt.Sprintf("http://127.0.0.1:%s/internal/page_failed?job_id=%s&page=%d", port, job.JobID, job.Page)
	if _, err := http.Post(url, "text/plain", bytes.NewReader([]byte(perr.Error()))); err != nil {
		log.Error().Err(err).Str("job_id", job.JobID).Int("page", job.Page).Msg("page_failed callback failed")
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
