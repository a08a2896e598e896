package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/lawcorpus/internal/corpus"
	"github.com/local/lawcorpus/internal/metrics"
)

// monitorJob watches a running job. The page_done/page_failed handlers do
// the normal finalization; the monitor only covers the two paths no
// callback ever reaches: cancellation and workers that died mid-page.
func (s *Service) monitorJob(jobID string, totalPages int) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	log.Info().Str("job_id", jobID).Int("total_pages", totalPages).Dur("timeout", s.jobTimeout).Msg("job monitor started")

	for {
		select {
		case <-ctx.Done():
			log.Warn().Str("job_id", jobID).Dur("timeout", s.jobTimeout).Msg("job timeout, finalizing with partial results")
			_ = s.deps.Queue.CancelJob(context.Background(), jobID)
			s.finalizeJob(context.Background(), jobID, true)
			return

		case <-ticker.C:
			if cancelled, _ := s.deps.Queue.IsCancelled(context.Background(), jobID); cancelled {
				log.Info().Str("job_id", jobID).Msg("job cancelled, stopping monitor")
				s.cleanupJobTemp(context.Background(), jobID)
				return
			}
			st, ok, err := s.deps.Status.Get(context.Background(), jobID)
			if !ok || err != nil {
				continue
			}
			if st.Status == "cancelled" {
				s.cleanupJobTemp(context.Background(), jobID)
				return
			}
			if st.Status == "success" || st.Status == "failed" {
				return
			}
		}
	}
}

// finalizeJob aggregates the job's page samples, folds them into the output
// corpus and closes out the status record. Safe to call from both the
// callback handlers and the monitor; the first caller wins.
func (s *Service) finalizeJob(ctx context.Context, jobID string, timedOut bool) {
	st, ok, err := s.deps.Status.Get(ctx, jobID)
	if !ok || err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("status missing at finalization")
		return
	}
	if st.Status == "success" || st.Status == "failed" || st.Status == "cancelled" {
		return
	}
	if st.Metadata == nil {
		st.Metadata = map[string]any{}
	}

	total := intFromMeta(st.Metadata, "total_pages")
	document, _ := st.Metadata["document"].(string)

	samples, err := s.deps.Samples.AggregateSamples(ctx, jobID, total)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("sample aggregation failed")
	}
	if len(samples) == 0 {
		now := time.Now()
		st.Status = "failed"
		st.End = &now
		st.Message = "no samples extracted"
		_ = s.deps.Status.Set(ctx, jobID, st)
		metrics.IncDocument("failed")
		s.cleanupJobTemp(ctx, jobID)
		return
	}

	resultPath, err := s.writeJobResult(jobID, samples)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("writing job result failed")
	} else {
		st.Metadata["result_path"] = resultPath
	}

	stats, err := s.mergeIntoOutput(samples)
	if err != nil {
		now := time.Now()
		st.Status = "failed"
		st.End = &now
		st.Message = fmt.Sprintf("corpus merge failed: %v", err)
		_ = s.deps.Status.Set(ctx, jobID, st)
		metrics.IncDocument("failed")
		return
	}
	st.Metadata["samples_total"] = stats.Total
	st.Metadata["samples_kept"] = stats.Kept
	st.Metadata["samples_duplicate"] = stats.Duplicates
	for label, n := range corpus.Distribution(samples) {
		st.Metadata["samples_"+string(label)] = n
	}

	if s.deps.Storage != nil && s.storageCfg.Bucket != "" {
		if url, err := s.uploadSnapshot(ctx, document, samples); err != nil {
			log.Error().Err(err).Str("job_id", jobID).Msg("corpus snapshot upload failed")
		} else {
			st.Metadata["snapshot_url"] = url
		}
	}

	if gtURL, _ := st.Metadata["ground_truth_url"].(string); gtURL != "" {
		if rep, err := s.alignJob(ctx, jobID, document, gtURL, samples); err != nil {
			log.Error().Err(err).Str("job_id", jobID).Str("url", gtURL).Msg("ground truth alignment failed")
			st.Metadata["alignment_error"] = err.Error()
		} else {
			st.Metadata["alignment_matched"] = rep.Matched()
			st.Metadata["alignment_pairs"] = len(rep.Pairs)
			st.Metadata["alignment_missing"] = len(rep.UnmatchedRef)
		}
	}

	now := time.Now()
	st.Status = "success"
	st.Progress = 100
	st.End = &now
	if timedOut {
		st.Message = "completed with partial results (timeout)"
		st.Metadata["timeout_occurred"] = true
	} else {
		st.Message = "completed"
	}
	_ = s.deps.Status.Set(ctx, jobID, st)
	metrics.IncDocument("success")

	s.cleanupJobTemp(ctx, jobID)

	log.Info().
		Str("job_id", jobID).
		Str("document", document).
		Int("samples", len(samples)).
		Int("duplicates", stats.Duplicates).
		Bool("timed_out", timedOut).
		Msg("job finalized")
}

func (s *Service) writeJobResult(jobID string, samples []corpus.Sample) (string, error) {
	dir := filepath.Join(s.cfg.Dir, "results")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(dir, jobID+".csv")
	if err := corpus.WriteFile(p, samples); err != nil {
		return "", err
	}
	return p, nil
}

// uploadSnapshot pushes the job's samples to S3 as a versioned per-document
// CSV. Versions are never overwritten.
func (s *Service) uploadSnapshot(ctx context.Context, document string, samples []corpus.Sample) (string, error) {
	var buf bytes.Buffer
	if err := corpus.WriteCSV(&buf, samples); err != nil {
		return "", err
	}
	baseKey := s.storageCfg.Prefix + "/corpus/" + document
	v, err := s.deps.Storage.NextVersion(ctx, baseKey)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s_v%d.csv", baseKey, v)
	if err := s.deps.Storage.Upload(ctx, key, buf.Bytes(), "text/csv"); err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", s.storageCfg.Bucket, key), nil
}

func (s *Service) cleanupJobTemp(ctx context.Context, jobID string) {
	st, ok, err := s.deps.Status.Get(ctx, jobID)
	if !ok || err != nil {
		return
	}
	if p, _ := st.Metadata["temp_path"].(string); p != "" {
		_ = os.Remove(p)
	}
}
