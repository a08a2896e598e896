package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/lawcorpus/internal/corpus"
	"github.com/local/lawcorpus/internal/geometry"
	"github.com/local/lawcorpus/internal/layout"
)

func makeLine(text string, y, fontSize float64) layout.Line {
	return layout.Line{
		Words:    []layout.Word{{Text: text, Box: geometry.Rect{X0: 72, Y0: y, X1: 522, Y1: y + fontSize}, FontSize: fontSize}},
		Box:      geometry.Rect{X0: 72, Y0: y, X1: 522, Y1: y + fontSize},
		FontSize: fontSize,
	}
}

func makeRegion(kind layout.RegionKind, lines ...layout.Line) *layout.Region {
	box := lines[0].Box
	for _, l := range lines[1:] {
		box = geometry.Union(box, l.Box)
	}
	return &layout.Region{Kind: kind, Box: box, Lines: lines}
}

func testJob() PageJob {
	return PageJob{JobID: "job-1", Document: "104-harv-l-rev", PDFPath: "/tmp/doc.pdf", Page: 3, TotalPages: 40}
}

func TestSamplesFromLayout(t *testing.T) {
	p := NewPipeline(10)

	body := makeRegion(layout.RegionBody,
		makeLine("The modern doctrine of standing rests on three familiar elements.", 700, 10),
	)
	footnote := makeRegion(layout.RegionFootnote,
		makeLine("12. See Lujan v. Defenders of Wildlife, 504 U.S. 555, 560 (1992).", 150, 8),
	)
	pl := &layout.PageLayout{
		PageNum: 3, Space: geometry.PDFSpace(612, 792),
		Lines: append(body.Lines, footnote.Lines...),
		Body:  body, Footnote: footnote,
	}

	samples := p.SamplesFromLayout(testJob(), pl)
	require.Len(t, samples, 2)

	assert.Equal(t, corpus.LabelBody, samples[0].Label)
	assert.Equal(t, "pdf", samples[0].Source)
	assert.Equal(t, 3, samples[0].Page)
	assert.Equal(t, "104-harv-l-rev", samples[0].Document)
	assert.NotEmpty(t, samples[0].ID)

	// A footnote that is pure citation machinery is labeled citation.
	assert.Equal(t, corpus.LabelCitation, samples[1].Label)
}

func TestSamplesFromLayoutProseFootnote(t *testing.T) {
	p := NewPipeline(10)
	footnote := makeRegion(layout.RegionFootnote,
		makeLine("3. The historical record on this point is considerably more tangled than the court allows.", 150, 8),
	)
	pl := &layout.PageLayout{PageNum: 3, Space: geometry.PDFSpace(612, 792), Lines: footnote.Lines, Footnote: footnote}

	samples := p.SamplesFromLayout(testJob(), pl)
	require.Len(t, samples, 1)
	assert.Equal(t, corpus.LabelFootnote, samples[0].Label)
}

func TestSamplesFromLayoutCover(t *testing.T) {
	p := NewPipeline(10)
	line := makeLine("Electronic copy available at: https://ssrn.com/abstract=12345", 700, 10)
	pl := &layout.PageLayout{PageNum: 1, Space: geometry.PDFSpace(612, 792), Lines: []layout.Line{line}, Cover: true}

	samples := p.SamplesFromLayout(testJob(), pl)
	require.Len(t, samples, 1)
	assert.Equal(t, corpus.LabelCover, samples[0].Label)
}

func TestSamplesFromLayoutDropsShortFragments(t *testing.T) {
	p := NewPipeline(50)
	body := makeRegion(layout.RegionBody, makeLine("Too short.", 700, 10))
	pl := &layout.PageLayout{PageNum: 2, Space: geometry.PDFSpace(612, 792), Lines: body.Lines, Body: body}

	assert.Empty(t, p.SamplesFromLayout(testJob(), pl))
}

func TestSamplesFromText(t *testing.T) {
	p := NewPipeline(10)
	text := "The court rejected the argument on procedural grounds and did not reach the merits.\n\n" +
		"See, e.g., Ashcroft v. Iqbal, 556 U.S. 662, 678 (2009); Bell Atl. Corp. v. Twombly, 550 U.S. 544, 570 (2007)."

	samples := p.SamplesFromText(testJob(), text)
	require.Len(t, samples, 2)
	assert.Equal(t, corpus.LabelBody, samples[0].Label)
	assert.Equal(t, corpus.LabelCitation, samples[1].Label)
	assert.Equal(t, "text", samples[0].Source)
	assert.InDelta(t, 0.6, samples[0].Confidence, 0.001)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, isFatalError(os.ErrNotExist))
	assert.True(t, isFatalError(errors.New("page 99 out of range (1..10)")))
	// MuPDF reports missing inputs as a bare string, not os.ErrNotExist.
	assert.True(t, isFatalError(errors.New("fitz: no such file: /tmp/gone.pdf")))
	assert.False(t, isTransientError(errors.New("fitz: no such file: /tmp/gone.pdf")))
	assert.True(t, isFatalError(&ExtractError{Path: "x.pdf", Page: 1, Err: errors.New("no extractable text")}))
	assert.False(t, isFatalError(nil))

	assert.True(t, isTransientError(context.DeadlineExceeded))
	assert.True(t, isTransientError(errors.New("dial tcp: connection refused")))
	assert.False(t, isTransientError(os.ErrNotExist))
	assert.False(t, isTransientError(nil))
	// unknown errors stay retryable
	assert.True(t, isTransientError(errors.New("something odd")))
}

func TestExtractErrorWrapping(t *testing.T) {
	inner := os.ErrNotExist
	err := &ExtractError{Path: "a.pdf", Page: 4, Err: fmt.Errorf("open: %w", inner)}
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "page 4")
}

func TestRetryBudget(t *testing.T) {
	w := New(Config{MaxAttempts: 3}, nil)
	transient := errors.New("dial tcp: connection refused")

	// MaxAttempts=3 means three runs: failures on attempts 1 and 2 are
	// rescheduled, the third goes to the DLQ.
	job := testJob()
	job.Attempt = 1
	assert.True(t, w.shouldRetry(job, transient))
	job.Attempt = 2
	assert.True(t, w.shouldRetry(job, transient))
	job.Attempt = 3
	assert.False(t, w.shouldRetry(job, transient))

	// Fatal errors never retry, whatever the budget.
	job.Attempt = 1
	assert.False(t, w.shouldRetry(job, os.ErrNotExist))
}

func TestBackoff(t *testing.T) {
	w := New(Config{RetryBaseDelay: 2 * time.Second, RetryBackoffFactor: 2.0}, nil)
	assert.Equal(t, 2*time.Second, w.backoff(1))
	assert.Equal(t, 4*time.Second, w.backoff(2))
	assert.Equal(t, 8*time.Second, w.backoff(3))

	w = New(Config{RetryBaseDelay: time.Second, RetryBackoffFactor: 2.0, RetryJitter: 100 * time.Millisecond}, nil)
	d := w.backoff(1)
	assert.GreaterOrEqual(t, d, time.Second)
	assert.Less(t, d, time.Second+150*time.Millisecond)
}

func TestIdemKey(t *testing.T) {
	assert.Equal(t, "job-1:3", testJob().IdemKey())
}
