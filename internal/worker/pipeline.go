package worker

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/lawcorpus/internal/citation"
	"github.com/local/lawcorpus/internal/corpus"
	"github.com/local/lawcorpus/internal/layout"
	"github.com/local/lawcorpus/internal/metrics"
	"github.com/local/lawcorpus/internal/pdftext"
)

// Pipeline turns one PDF page into labeled corpus samples. Layout analysis
// is the primary path; when a PDF carries no positioned text the pipeline
// falls back to linear text extraction with lower confidence.
type Pipeline struct {
	analyzer  *layout.Analyzer
	extractor *pdftext.Extractor
	// MinSampleLen drops fragments shorter than this many characters.
	MinSampleLen int
}

func NewPipeline(minSampleLen int) *Pipeline {
	if minSampleLen <= 0 {
		minSampleLen = 20
	}
	return &Pipeline{
		analyzer:     layout.NewAnalyzer(),
		extractor:    pdftext.New(),
		MinSampleLen: minSampleLen,
	}
}

// ProcessPage classifies one page of a local PDF.
func (p *Pipeline) ProcessPage(job PageJob) ([]corpus.Sample, error) {
	start := time.Now()

	pl, err := p.analyzer.AnalyzeFilePage(job.PDFPath, job.Page)
	if err == nil && len(pl.Lines) > 0 {
		samples := p.SamplesFromLayout(job, pl)
		metrics.ObserveStage("layout", time.Since(start))
		return samples, nil
	}
	if err != nil {
		log.Debug().Err(err).Str("pdf", job.PDFPath).Int("page", job.Page).
			Msg("layout analysis unavailable, falling back to text extraction")
	}

	text, terr := p.extractor.PageText(job.PDFPath, job.Page)
	if terr != nil {
		return nil, &ExtractError{Path: job.PDFPath, Page: job.Page, Err: terr}
	}
	if text == "" {
		return nil, &ExtractError{Path: job.PDFPath, Page: job.Page, Err: fmt.Errorf("no extractable text")}
	}
	samples := p.SamplesFromText(job, text)
	metrics.ObserveStage("text", time.Since(start))
	return samples, nil
}

// SamplesFromLayout cuts samples out of an analyzed page: cover sheets
// become one cover sample, body paragraphs split into body vs citation,
// footnote paragraphs into footnote vs citation.
func (p *Pipeline) SamplesFromLayout(job PageJob, pl *layout.PageLayout) []corpus.Sample {
	if pl.Cover {
		text := joinLines(pl.Lines)
		metrics.IncProcessed("cover")
		return []corpus.Sample{p.newSample(job, text, corpus.LabelCover, "pdf", 1.0)}
	}

	var samples []corpus.Sample
	for _, para := range p.analyzer.RegionParagraphs(pl.Body) {
		label := corpus.LabelBody
		if citation.IsCitationParagraph(para) {
			label = corpus.LabelCitation
		}
		samples = p.appendSample(samples, job, para, label, "pdf", 1.0)
	}
	for _, para := range p.analyzer.RegionParagraphs(pl.Footnote) {
		label := corpus.LabelFootnote
		if citation.IsCitationParagraph(para) {
			label = corpus.LabelCitation
		}
		samples = p.appendSample(samples, job, para, label, "pdf", 1.0)
	}
	return samples
}

// SamplesFromText classifies linear page text without layout information.
// Everything rides on the citation heuristics, so confidence is lower.
func (p *Pipeline) SamplesFromText(job PageJob, text string) []corpus.Sample {
	var samples []corpus.Sample
	for _, para := range pdftext.Paragraphs(text) {
		label := corpus.LabelBody
		if citation.IsCitationParagraph(para) {
			label = corpus.LabelCitation
		}
		samples = p.appendSample(samples, job, para, label, "text", 0.6)
	}
	return samples
}

func (p *Pipeline) appendSample(samples []corpus.Sample, job PageJob, text string, label corpus.Label, source string, conf float64) []corpus.Sample {
	if len(text) < p.MinSampleLen {
		return samples
	}
	return append(samples, p.newSample(job, text, label, source, conf))
}

func (p *Pipeline) newSample(job PageJob, text string, label corpus.Label, source string, conf float64) corpus.Sample {
	return corpus.Sample{
		ID:         uuid.NewString(),
		Text:       text,
		Label:      label,
		Source:     source,
		Document:   job.Document,
		Page:       job.Page,
		Confidence: conf,
	}
}

func joinLines(lines []layout.Line) string {
	out := ""
	for _, l := range lines {
		if out != "" {
			out += "\n"
		}
		out += l.Text()
	}
	return out
}
