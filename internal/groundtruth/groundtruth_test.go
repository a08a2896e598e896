package groundtruth

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignExactMatches(t *testing.T) {
	ref := []string{
		"The doctrine of standing has three elements.",
		"Injury in fact is the first of them.",
	}
	ext := []string{
		"Injury in fact is the first of them.",
		"The  doctrine of Standing has three elements.", // case/whitespace noise
	}

	rep := NewAligner().Align("doc-1", ref, ext)
	require.Len(t, rep.Pairs, 2)
	assert.Empty(t, rep.UnmatchedRef)
	assert.Empty(t, rep.UnmatchedExt)
	assert.Equal(t, 1.0, rep.Matched())

	assert.True(t, rep.Pairs[0].Exact)
	assert.Equal(t, 0, rep.Pairs[0].RefIndex)
	assert.Equal(t, 1, rep.Pairs[0].ExtIndex)
	assert.True(t, rep.Pairs[1].Exact)
	assert.Equal(t, 1, rep.Pairs[1].RefIndex)
	assert.Equal(t, 0, rep.Pairs[1].ExtIndex)
}

func TestAlignFuzzyFallback(t *testing.T) {
	ref := []string{"the court held that the statute of limitations had run before filing"}
	// OCR dropped one word and garbled another.
	ext := []string{"the court held that the statute of limitations had run befre filing"}

	rep := NewAligner().Align("doc-2", ref, ext)
	require.Len(t, rep.Pairs, 1)
	p := rep.Pairs[0]
	assert.False(t, p.Exact)
	assert.GreaterOrEqual(t, p.Score, 0.6)
	assert.Less(t, p.Score, 1.0)

	diff := rep.PairDiff(p)
	assert.Contains(t, diff, "befre")
}

func TestAlignUnmatched(t *testing.T) {
	ref := []string{
		"a paragraph about jurisdiction that the extractor lost entirely somehow",
		"shared paragraph present on both sides",
	}
	ext := []string{
		"shared paragraph present on both sides",
		"a running head that leaked into the extraction output",
	}

	rep := NewAligner().Align("doc-3", ref, ext)
	require.Len(t, rep.Pairs, 1)
	assert.Equal(t, []int{0}, rep.UnmatchedRef)
	assert.Equal(t, []int{1}, rep.UnmatchedExt)
	assert.InDelta(t, 0.5, rep.Matched(), 0.001)
}

func TestAlignEmpty(t *testing.T) {
	rep := NewAligner().Align("doc-4", nil, nil)
	assert.Empty(t, rep.Pairs)
	assert.Equal(t, 0.0, rep.Matched())
}

func TestAlignExtUsedOnce(t *testing.T) {
	// Two identical reference paragraphs must not claim the same
	// extracted paragraph twice.
	ref := []string{"repeated text", "repeated text"}
	ext := []string{"repeated text"}

	rep := NewAligner().Align("doc-5", ref, ext)
	require.Len(t, rep.Pairs, 1)
	assert.Len(t, rep.UnmatchedRef, 1)
	assert.Empty(t, rep.UnmatchedExt)
}

func TestReportWrite(t *testing.T) {
	ref := []string{
		"exactly matched paragraph",
		"a paragraph only the reference has and nothing resembles it at all",
	}
	ext := []string{"exactly matched paragraph"}

	rep := NewAligner().Align("doc-6", ref, ext)

	var buf bytes.Buffer
	require.NoError(t, rep.Write(&buf))
	out := buf.String()
	assert.Contains(t, out, "document: doc-6")
	assert.Contains(t, out, "missing from extraction: ref[1]")
	assert.NotContains(t, out, "fuzzy pair")
}

func TestOverlap(t *testing.T) {
	a := tokenSet("one two three four")
	b := tokenSet("one two three five")
	assert.InDelta(t, 0.6, overlap(a, b), 0.001) // 3 shared / 5 union
	assert.Equal(t, 0.0, overlap(a, tokenSet("")))
	assert.Equal(t, 1.0, overlap(a, a))
}
