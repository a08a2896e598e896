package corpus

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(id, text string, label Label) Sample {
	return Sample{ID: id, Text: text, Label: label, Source: "pdf", Document: "doc.pdf", Page: 1, Confidence: 0.9}
}

func TestParseLabel(t *testing.T) {
	for _, ok := range []string{"body", "FOOTNOTE", " citation ", "cover"} {
		_, err := ParseLabel(ok)
		assert.NoError(t, err, ok)
	}
	_, err := ParseLabel("header")
	assert.Error(t, err)
	_, err = ParseLabel("")
	assert.Error(t, err)
}

func TestCSVRoundTrip(t *testing.T) {
	in := []Sample{
		sample("a", "The court held that the statute was invalid.", LabelBody),
		sample("b", "See id. at 5.", LabelCitation),
		{ID: "c", Text: "text with, comma and \"quotes\"", Label: LabelFootnote, Source: "html", Document: "art.html", Page: 3, Confidence: 0.5},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in))

	out, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, in[0].Text, out[0].Text)
	assert.Equal(t, LabelCitation, out[1].Label)
	assert.Equal(t, in[2].Text, out[2].Text)
	assert.Equal(t, 3, out[2].Page)
	assert.InDelta(t, 0.5, out[2].Confidence, 1e-9)
}

func TestReadCSVRejectsBadHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("id,text,tag,source,document,page,confidence\n"))
	assert.Error(t, err)
}

func TestReadCSVRejectsBadLabel(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(
		"id,text,label,source,document,page,confidence\n" +
			"a,hello,header,pdf,doc.pdf,1,0.9\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "corpus.csv")
	in := []Sample{sample("a", "body text", LabelBody)}
	require.NoError(t, WriteFile(path, in))

	out, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "body text", out[0].Text)
}

func TestNormalizeTextAndKey(t *testing.T) {
	a := sample("a", "The  Court\nHeld", LabelBody)
	b := sample("b", "the court held", LabelFootnote)
	assert.Equal(t, "the court held", NormalizeText(a.Text))
	assert.Equal(t, Key(a), Key(b))

	c := sample("c", "something else", LabelBody)
	assert.NotEqual(t, Key(a), Key(c))
}

func TestMerge(t *testing.T) {
	setA := []Sample{
		sample("1", "alpha", LabelBody),
		sample("2", "beta", LabelFootnote),
	}
	setB := []Sample{
		sample("3", "  ALPHA ", LabelCitation), // dup of "alpha" after folding
		sample("4", "", LabelBody),
		sample("5", "gamma", LabelCover),
	}

	merged, stats := Merge(setA, setB)
	require.Len(t, merged, 3)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 3, stats.Kept)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.Empty)

	// First occurrence wins, including its label.
	assert.Equal(t, LabelBody, merged[0].Label)

	// Merging the result with the originals again is stable.
	again, stats2 := Merge(merged, setA, setB)
	assert.Equal(t, merged, again)
	assert.Equal(t, 3, stats2.Kept)
}

func TestDistribution(t *testing.T) {
	dist := Distribution([]Sample{
		sample("1", "a", LabelBody),
		sample("2", "b", LabelBody),
		sample("3", "c", LabelFootnote),
	})
	assert.Equal(t, 2, dist[LabelBody])
	assert.Equal(t, 1, dist[LabelFootnote])
	assert.Zero(t, dist[LabelCover])
}
