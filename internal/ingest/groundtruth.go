package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/local/lawcorpus/internal/corpus"
	"github.com/local/lawcorpus/internal/groundtruth"
	"github.com/local/lawcorpus/internal/metrics"
	"github.com/local/lawcorpus/internal/scrape"
)

// scrapeSource builds the selector set from config, falling back to the
// built-in law-review layout when nothing is configured.
func (s *Service) scrapeSource() scrape.Source {
	if s.scrapeCfg.BodySelector == "" {
		return scrape.DefaultSource()
	}
	return scrape.Source{
		Name:             "configured",
		BodySelector:     s.scrapeCfg.BodySelector,
		FootnoteSelector: s.scrapeCfg.FootnoteSelector,
		StripSelector:    s.scrapeCfg.StripSelector,
	}
}

// fetchArticle scrapes the published HTML version of a document, honoring
// the per-host limiter when one is wired in.
func (s *Service) fetchArticle(ctx context.Context, rawURL string) (*scrape.Article, error) {
	if s.deps.Limiter == nil {
		return s.scraper.Fetch(ctx, rawURL, s.scrapeSource())
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse ground truth url: %w", err)
	}
	host := u.Host
	if s.deps.Limiter.IsOpen(ctx, host) {
		return nil, fmt.Errorf("host %s is cooling down after pushback", host)
	}
	release, ok := s.deps.Limiter.Allow(host)
	if !ok {
		return nil, fmt.Errorf("too many concurrent fetches for host %s", host)
	}
	defer release()

	article, err := s.scraper.Fetch(ctx, rawURL, s.scrapeSource())
	if err != nil {
		s.deps.Limiter.Open(ctx, host)
		return nil, err
	}
	s.deps.Limiter.Close(ctx, host)
	return article, nil
}

// alignJob scrapes the published HTML version of a document and aligns its
// paragraphs against the samples extracted from the PDF. The written report
// is the reviewable ground truth for label quality.
func (s *Service) alignJob(ctx context.Context, jobID, document, url string, samples []corpus.Sample) (*groundtruth.Report, error) {
	article, err := s.fetchArticle(ctx, url)
	if err != nil {
		return nil, err
	}

	ref := make([]string, 0, len(article.BodyParagraphs)+len(article.Footnotes))
	ref = append(ref, article.BodyParagraphs...)
	ref = append(ref, article.Footnotes...)

	ext := make([]string, 0, len(samples))
	for _, sm := range samples {
		if sm.Label == corpus.LabelCover {
			continue
		}
		ext = append(ext, sm.Text)
	}

	rep := s.aligner.Align(document, ref, ext)
	metrics.ObserveAlignment(rep.Matched())

	dir := filepath.Join(s.cfg.Dir, "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rep, err
	}
	path := filepath.Join(dir, jobID+".txt")
	f, err := os.Create(path)
	if err != nil {
		return rep, err
	}
	defer f.Close()
	if err := rep.Write(f); err != nil {
		return rep, err
	}
	log.Info().
		Str("job_id", jobID).
		Str("url", url).
		Float64("matched", rep.Matched()).
		Str("report", path).
		Msg("ground truth aligned")
	return rep, nil
}

type groundTruthReq struct {
	JobID string `json:"job_id"`
	URL   string `json:"url"`
}

// handleGroundTruth aligns a finished job against a published HTML version
// on demand, for jobs submitted without a ground_truth_url.
func (s *Service) handleGroundTruth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req groundTruthReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.JobID == "" || req.URL == "" {
		http.Error(w, "missing job_id/url", http.StatusBadRequest)
		return
	}

	st, ok, err := s.deps.Status.Get(r.Context(), req.JobID)
	if err != nil || !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if st.Status != "success" {
		http.Error(w, "job not finished", http.StatusConflict)
		return
	}
	total := intFromMeta(st.Metadata, "total_pages")
	document, _ := st.Metadata["document"].(string)
	samples, err := s.deps.Samples.AggregateSamples(r.Context(), req.JobID, total)
	if err != nil {
		http.Error(w, "cannot load samples: "+err.Error(), http.StatusInternalServerError)
		return
	}

	rep, err := s.alignJob(r.Context(), req.JobID, document, req.URL, samples)
	if err != nil {
		http.Error(w, "alignment failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"job_id":        req.JobID,
		"document":      rep.Document,
		"matched":       rep.Matched(),
		"pairs":         len(rep.Pairs),
		"unmatched_ref": len(rep.UnmatchedRef),
		"unmatched_ext": len(rep.UnmatchedExt),
	})
}
