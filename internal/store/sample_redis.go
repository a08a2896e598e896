package store

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/local/lawcorpus/internal/corpus"
)

// SampleStore keeps per-page classification results in Redis until the job
// finalizer collects them into a corpus file.
type SampleStore struct {
	client *redis.Client
}

func NewSampleStore(redisURL string) (*SampleStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &SampleStore{client: c}, nil
}

func (s *SampleStore) Close() error { return s.client.Close() }

func (s *SampleStore) pageKey(jobID string, page int) string {
	return fmt.Sprintf("job:%s:page:%d", jobID, page)
}

// SavePageSamples stores the labeled samples cut out of one page.
func (s *SampleStore) SavePageSamples(ctx context.Context, jobID string, page int, samples []corpus.Sample) error {
	b, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("marshal samples: %w", err)
	}
	return s.client.HSet(ctx, s.pageKey(jobID, page), map[string]interface{}{
		"samples": string(b),
		"count":   len(samples),
	}).Err()
}

// GetPageSamples returns the samples of one page, nil if the page has not
// been processed yet.
func (s *SampleStore) GetPageSamples(ctx context.Context, jobID string, page int) ([]corpus.Sample, error) {
	res, err := s.client.HGet(ctx, s.pageKey(jobID, page), "samples").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var samples []corpus.Sample
	if err := json.Unmarshal([]byte(res), &samples); err != nil {
		return nil, fmt.Errorf("unmarshal samples for page %d: %w", page, err)
	}
	return samples, nil
}

// AggregateSamples collects samples from all pages of a job in page order.
func (s *SampleStore) AggregateSamples(ctx context.Context, jobID string, total int) ([]corpus.Sample, error) {
	var out []corpus.Sample
	for i := 1; i <= total; i++ {
		ps, err := s.GetPageSamples(ctx, jobID, i)
		if err != nil {
			return out, err
		}
		out = append(out, ps...)
	}
	return out, nil
}
