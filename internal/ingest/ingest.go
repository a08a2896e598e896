package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/lawcorpus/internal/citation"
	"github.com/local/lawcorpus/internal/config"
	"github.com/local/lawcorpus/internal/corpus"
	"github.com/local/lawcorpus/internal/filetype"
	"github.com/local/lawcorpus/internal/groundtruth"
	"github.com/local/lawcorpus/internal/metrics"
	"github.com/local/lawcorpus/internal/pageimage"
	"github.com/local/lawcorpus/internal/pdftext"
	"github.com/local/lawcorpus/internal/scrape"
	"github.com/local/lawcorpus/internal/store"
	"github.com/local/lawcorpus/internal/worker"
)

// Queue is the slice of the job queue the ingest side needs.
type Queue interface {
	Enqueue(ctx context.Context, payload []byte) error
	CancelJob(ctx context.Context, jobID string) error
	IsCancelled(ctx context.Context, jobID string) (bool, error)
}

// StatusStore tracks per-job progress.
type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
	Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

// SampleStore holds per-page classification results until finalization.
type SampleStore interface {
	SavePageSamples(ctx context.Context, jobID string, page int, samples []corpus.Sample) error
	AggregateSamples(ctx context.Context, jobID string, total int) ([]corpus.Sample, error)
}

// Storage is optional S3 access for source PDFs and corpus snapshots.
type Storage interface {
	DownloadToFile(ctx context.Context, key, path string) error
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	NextVersion(ctx context.Context, baseKey string) (int, error)
}

// FetchLimiter keeps ground-truth scraping polite per publisher host.
type FetchLimiter interface {
	Allow(host string) (func(), bool)
	IsOpen(ctx context.Context, host string) bool
	Open(ctx context.Context, host string)
	Close(ctx context.Context, host string)
}

type Dependencies struct {
	Queue   Queue
	Status  StatusStore
	Samples SampleStore
	Storage Storage      // nil when S3 is not configured
	Limiter FetchLimiter // nil disables per-host throttling
}

// Service accepts documents, fans pages out to workers, collects their
// samples and folds finished jobs into the corpus CSV.
type Service struct {
	deps       Dependencies
	cfg        config.CorpusConfig
	scrapeCfg  config.ScrapeConfig
	storageCfg config.StorageConfig
	jobTimeout time.Duration

	detector  *filetype.Detector
	extractor *pdftext.Extractor
	scraper   *scrape.Scraper
	aligner   *groundtruth.Aligner

	finalizeMu sync.Mutex
}

func New(cfg config.Config, deps Dependencies) *Service {
	timeout := cfg.Worker.PageTimeout * 10
	if timeout < time.Minute {
		timeout = time.Minute
	}
	return &Service{
		deps:       deps,
		cfg:        cfg.Corpus,
		scrapeCfg:  cfg.Scrape,
		storageCfg: cfg.Storage,
		jobTimeout: timeout,
		detector:   filetype.New(),
		extractor:  pdftext.New(),
		scraper:    scrape.NewScraper(cfg.Scrape.Timeout),
		aligner:    groundtruth.NewAligner(),
	}
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/documents", s.handleSubmit)
	mux.HandleFunc("/documents/upload", s.handleUpload)
	mux.HandleFunc("/progress/", s.handleProgress)
	mux.HandleFunc("/result/", s.handleResult)
	mux.HandleFunc("/corpus/stats", s.handleCorpusStats)
	mux.HandleFunc("/corpus/merge", s.handleMergeCorpus)
	mux.HandleFunc("/groundtruth", s.handleGroundTruth)
	mux.HandleFunc("/webhook/cancel_job", s.handleCancelJob)
	mux.HandleFunc("/internal/page_done", s.handlePageDone)
	mux.HandleFunc("/internal/page_failed", s.handlePageFailed)
}

// htmlConfidence sits between layout-analyzed PDF samples (1.0) and the
// linear-text fallback (0.6): selectors are reliable but publisher markup
// sometimes folds footnote text into paragraphs.
const htmlConfidence = 0.9

type submitReq struct {
	Path           string `json:"path"`
	Document       string `json:"document"`
	DumpImages     bool   `json:"dump_images"`
	GroundTruthURL string `json:"ground_truth_url"`
}

type submitResp struct {
	Status     string `json:"status"`
	JobID      string `json:"job_id"`
	Message    string `json:"message"`
	TotalPages int    `json:"total_pages,omitempty"`
}

func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	if req.Document == "" {
		req.Document = documentNameFromRef(req.Path)
	}

	jobID := uuid.NewString()
	localPath, isTemp, err := s.resolveLocal(r.Context(), jobID, req.Path)
	if err != nil {
		log.Error().Err(err).Str("path", req.Path).Msg("fetch source failed")
		http.Error(w, "cannot fetch source: "+err.Error(), http.StatusBadGateway)
		return
	}

	info, err := s.detector.Detect(localPath)
	if err != nil {
		http.Error(w, "cannot read file: "+err.Error(), http.StatusBadRequest)
		return
	}
	switch info.Route {
	case filetype.RouteCorpus:
		// An already-labeled corpus CSV merges straight into the output.
		s.mergeCorpusFile(w, localPath, isTemp)
		return
	case filetype.RouteHTML:
		// HTML editions skip the page pipeline: scrape, classify, merge.
		s.ingestHTML(w, req, localPath, isTemp)
		return
	case filetype.RoutePDF:
		// fall through to the page pipeline
	default:
		if isTemp {
			_ = os.Remove(localPath)
		}
		http.Error(w, fmt.Sprintf("unsupported file type %s (%s)", info.MIMEType, info.Route), http.StatusUnsupportedMediaType)
		return
	}

	s.startJob(r.Context(), w, jobID, req, localPath, isTemp)
}

// handleUpload accepts a multipart PDF from the dashboard and runs the same
// pipeline as path submissions.
func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := hdr.Filename
	if name == "" {
		name = "upload.pdf"
	}
	jobID := uuid.NewString()
	uploadDir := filepath.Join(s.cfg.Dir, "uploads")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		http.Error(w, "cannot create upload dir", http.StatusInternalServerError)
		return
	}
	localPath := filepath.Join(uploadDir, jobID+"_"+filepath.Base(name))
	out, err := os.Create(localPath)
	if err != nil {
		http.Error(w, "cannot save upload", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}
	_ = out.Close()

	req := submitReq{
		Path:           localPath,
		Document:       strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)),
		DumpImages:     r.FormValue("dump_images") == "on" || r.FormValue("dump_images") == "true",
		GroundTruthURL: r.FormValue("ground_truth_url"),
	}
	s.startJob(r.Context(), w, jobID, req, localPath, false)
}

// startJob probes the PDF, records the job and fans one queue entry out per
// page. The response is written before any page finishes.
func (s *Service) startJob(ctx context.Context, w http.ResponseWriter, jobID string, req submitReq, localPath string, isTemp bool) {
	total, err := s.pageCount(localPath)
	if err != nil {
		if isTemp {
			_ = os.Remove(localPath)
		}
		http.Error(w, "page count failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	ok, _, probeErr := pdftext.HasExtractableTextSample(localPath, s.cfg.ProbeMinChars, s.cfg.ProbePages)
	if probeErr == nil && !ok {
		if isTemp {
			_ = os.Remove(localPath)
		}
		log.Warn().Str("job_id", jobID).Str("document", req.Document).Msg("document has no extractable text")
		http.Error(w, "document has no extractable text (scanned?)", http.StatusUnprocessableEntity)
		return
	}

	start := time.Now()
	meta := map[string]any{
		"document":     req.Document,
		"local_path":   localPath,
		"source_ref":   req.Path,
		"total_pages":  total,
		"pages_done":   0,
		"pages_failed": 0,
	}
	if isTemp {
		meta["temp_path"] = localPath
	}
	if req.GroundTruthURL != "" {
		meta["ground_truth_url"] = req.GroundTruthURL
	}
	_ = s.deps.Status.Set(ctx, jobID, store.Status{
		Status: "queued", Progress: 0, Message: "queued", Start: &start, Metadata: meta,
	})

	for p := 1; p <= total; p++ {
		job := worker.PageJob{
			JobID:      jobID,
			Document:   req.Document,
			PDFPath:    localPath,
			Page:       p,
			TotalPages: total,
			Attempt:    1,
		}
		data, _ := json.Marshal(job)
		if err := s.deps.Queue.Enqueue(ctx, data); err != nil {
			log.Error().Err(err).Str("job_id", jobID).Msg("enqueue failed")
			http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	_ = s.deps.Status.Set(ctx, jobID, store.Status{
		Status: "processing", Progress: 5, Message: "pages enqueued", Start: &start, Metadata: meta,
	})
	log.Info().Str("job_id", jobID).Str("document", req.Document).Int("pages", total).Msg("job created")

	if req.DumpImages {
		go s.dumpImages(jobID, localPath)
	}
	go s.monitorJob(jobID, total)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(submitResp{
		Status: "ok", JobID: jobID, Message: "document accepted", TotalPages: total,
	})
}

func (s *Service) dumpImages(jobID, pdfPath string) {
	mode := pageimage.ColorRGB
	if s.cfg.ImageGray {
		mode = pageimage.ColorGray
	}
	dir := filepath.Join(s.cfg.ImageDir, jobID)
	paths, err := pageimage.DumpDocument(pdfPath, dir, s.cfg.ImageDPI, s.cfg.ImageQuality, mode)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("page image dump failed")
		return
	}
	log.Info().Str("job_id", jobID).Int("pages", len(paths)).Str("dir", dir).Msg("page images dumped")
}

func (s *Service) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/progress/")
	st, ok, err := s.deps.Status.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"job_id":     id,
		"status":     st.Status,
		"progress":   st.Progress,
		"message":    st.Message,
		"start_time": st.Start,
		"end_time":   st.End,
		"metadata":   st.Metadata,
	})
}

// handleResult serves the per-job sample CSV once the job finished.
func (s *Service) handleResult(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/result/")
	st, ok, err := s.deps.Status.Get(r.Context(), id)
	if err != nil || !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if st.Status != "success" {
		http.Error(w, "not ready", http.StatusAccepted)
		return
	}
	p, _ := st.Metadata["result_path"].(string)
	if p == "" {
		http.Error(w, "result not available", http.StatusNotFound)
		return
	}
	b, err := os.ReadFile(p)
	if err != nil {
		http.Error(w, "failed to read", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=samples_%s.csv", id))
	_, _ = w.Write(b)
}

func (s *Service) handleCorpusStats(w http.ResponseWriter, r *http.Request) {
	samples, err := corpus.ReadFile(s.cfg.OutputCSV)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			samples = nil
		} else {
			http.Error(w, "cannot read corpus: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}
	dist := map[string]int{}
	for label, n := range corpus.Distribution(samples) {
		dist[string(label)] = n
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"path":   s.cfg.OutputCSV,
		"total":  len(samples),
		"labels": dist,
	})
}

type mergeReq struct {
	Path string `json:"path"`
}

// handleMergeCorpus folds an external labeled CSV into the output corpus.
func (s *Service) handleMergeCorpus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req mergeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	s.mergeCorpusFile(w, req.Path, false)
}

func (s *Service) mergeCorpusFile(w http.ResponseWriter, path string, isTemp bool) {
	if isTemp {
		defer os.Remove(path)
	}
	incoming, err := corpus.ReadFile(path)
	if err != nil {
		http.Error(w, "cannot read corpus file: "+err.Error(), http.StatusBadRequest)
		return
	}
	stats, err := s.mergeIntoOutput(incoming)
	if err != nil {
		http.Error(w, "merge failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	log.Info().Str("path", path).Int("kept", stats.Kept).Int("duplicates", stats.Duplicates).Msg("corpus merged")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "merge": stats})
}

// ingestHTML turns a scraped HTML edition into labeled samples and merges
// them into the corpus. No pages, no queue: article paragraphs become body
// or citation samples, footnote entries footnote or citation, all with
// source "html".
func (s *Service) ingestHTML(w http.ResponseWriter, req submitReq, localPath string, isTemp bool) {
	if isTemp {
		defer os.Remove(localPath)
	}
	f, err := os.Open(localPath)
	if err != nil {
		http.Error(w, "cannot read file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer f.Close()

	art, err := s.scraper.Parse(f, s.scrapeSource())
	if err != nil {
		http.Error(w, "cannot parse html: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var samples []corpus.Sample
	appendHTML := func(text string, label corpus.Label) {
		if len(text) < s.cfg.MinSampleLen {
			return
		}
		if citation.IsCitationParagraph(text) {
			label = corpus.LabelCitation
		}
		samples = append(samples, corpus.Sample{
			ID:         uuid.NewString(),
			Text:       text,
			Label:      label,
			Source:     "html",
			Document:   req.Document,
			Confidence: htmlConfidence,
		})
	}
	for _, para := range art.BodyParagraphs {
		appendHTML(para, corpus.LabelBody)
	}
	for _, note := range art.Footnotes {
		appendHTML(note, corpus.LabelFootnote)
	}
	if len(samples) == 0 {
		http.Error(w, "no samples extracted from html", http.StatusUnprocessableEntity)
		return
	}

	stats, err := s.mergeIntoOutput(samples)
	if err != nil {
		http.Error(w, "merge failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	for label, n := range corpus.Distribution(samples) {
		metrics.IncSamples(string(label), n)
	}
	log.Info().Str("document", req.Document).Str("title", art.Title).
		Int("samples", len(samples)).Int("kept", stats.Kept).Msg("html document ingested")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"document": req.Document,
		"samples":  len(samples),
		"merge":    stats,
	})
}

// mergeIntoOutput merges samples into the output CSV. The existing corpus
// goes first so re-submitting a document never duplicates or relabels
// samples already in it.
func (s *Service) mergeIntoOutput(incoming []corpus.Sample) (corpus.MergeStats, error) {
	s.finalizeMu.Lock()
	defer s.finalizeMu.Unlock()

	existing, err := corpus.ReadFile(s.cfg.OutputCSV)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return corpus.MergeStats{}, err
	}
	merged, stats := corpus.Merge(existing, incoming)
	if err := corpus.WriteFile(s.cfg.OutputCSV, merged); err != nil {
		return corpus.MergeStats{}, err
	}
	return stats, nil
}

type cancelReq struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason,omitempty"`
}

func (s *Service) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req cancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.JobID == "" {
		http.Error(w, "missing job_id", http.StatusBadRequest)
		return
	}
	if err := s.deps.Queue.CancelJob(r.Context(), req.JobID); err != nil {
		http.Error(w, "cancel failed", http.StatusInternalServerError)
		return
	}
	st, ok, _ := s.deps.Status.Get(r.Context(), req.JobID)
	if !ok {
		st = store.Status{}
	}
	st.Status = "cancelled"
	if req.Reason != "" {
		st.Message = "cancelled: " + req.Reason
	} else {
		st.Message = "cancelled"
	}
	now := time.Now()
	st.End = &now
	_ = s.deps.Status.Set(r.Context(), req.JobID, st)
	log.Info().Str("job_id", req.JobID).Str("reason", req.Reason).Msg("job cancelled")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "cancelled", "job_id": req.JobID})
}

func (s *Service) handlePageDone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	jobID := r.URL.Query().Get("job_id")
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if jobID == "" || err != nil {
		http.Error(w, "missing job_id/page", http.StatusBadRequest)
		return
	}
	var body struct {
		Samples []corpus.Sample `json:"samples"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if len(body.Samples) > 0 {
		if err := s.deps.Samples.SavePageSamples(r.Context(), jobID, page, body.Samples); err != nil {
			log.Error().Err(err).Str("job_id", jobID).Int("page", page).Msg("save page samples failed")
		}
	}

	st, ok, err := s.deps.Status.Get(r.Context(), jobID)
	if err != nil || !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	done := intFromMeta(st.Metadata, "pages_done") + 1
	failed := intFromMeta(st.Metadata, "pages_failed")
	total := intFromMeta(st.Metadata, "total_pages")
	if st.Metadata == nil {
		st.Metadata = map[string]any{}
	}
	st.Metadata["pages_done"] = done
	if total > 0 {
		st.Progress = int(float64(done+failed) / float64(total) * 100)
	}
	st.Message = fmt.Sprintf("page %d done", page)
	_ = s.deps.Status.Set(r.Context(), jobID, st)

	if total > 0 && done+failed >= total {
		s.finalizeJob(r.Context(), jobID, false)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handlePageFailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	jobID := r.URL.Query().Get("job_id")
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if jobID == "" || err != nil {
		http.Error(w, "missing job_id/page", http.StatusBadRequest)
		return
	}
	reason, _ := io.ReadAll(io.LimitReader(r.Body, 4096))

	st, ok, err := s.deps.Status.Get(r.Context(), jobID)
	if err != nil || !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	done := intFromMeta(st.Metadata, "pages_done")
	failed := intFromMeta(st.Metadata, "pages_failed") + 1
	total := intFromMeta(st.Metadata, "total_pages")
	if st.Metadata == nil {
		st.Metadata = map[string]any{}
	}
	st.Metadata["pages_failed"] = failed
	if total > 0 {
		st.Progress = int(float64(done+failed) / float64(total) * 100)
	}
	st.Message = fmt.Sprintf("page %d failed: %s", page, strings.TrimSpace(string(reason)))
	_ = s.deps.Status.Set(r.Context(), jobID, st)
	log.Warn().Str("job_id", jobID).Int("page", page).Str("reason", string(reason)).Msg("page failed")

	if total > 0 && done+failed >= total {
		s.finalizeJob(r.Context(), jobID, false)
	}
	w.WriteHeader(http.StatusNoContent)
}

func intFromMeta(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func documentNameFromRef(ref string) string {
	base := filepath.Base(strings.TrimSuffix(ref, "/"))
	if i := strings.Index(base, "#"); i >= 0 {
		base = base[:i]
	}
	if i := strings.Index(base, "?"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
