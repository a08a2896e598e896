package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonOrdersCorners(t *testing.T) {
	r := Rect{X0: 10, Y0: 20, X1: 2, Y1: 5}.Canon()
	assert.Equal(t, Rect{X0: 2, Y0: 5, X1: 10, Y1: 20}, r)
	assert.Equal(t, 8.0, r.Width())
	assert.Equal(t, 15.0, r.Height())
	assert.Equal(t, 120.0, r.Area())
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, Rect{}.IsEmpty())
	assert.True(t, Rect{X0: 1, Y0: 1, X1: 1, Y1: 5}.IsEmpty())
	assert.False(t, Rect{X0: 0, Y0: 0, X1: 1, Y1: 1}.IsEmpty())
}

func TestUnionIntersect(t *testing.T) {
	a := Rect{X0: 0, Y0: 0, X1: 10, Y1: 10}
	b := Rect{X0: 5, Y0: 5, X1: 15, Y1: 15}

	assert.Equal(t, Rect{X0: 0, Y0: 0, X1: 15, Y1: 15}, Union(a, b))

	inter, ok := Intersect(a, b)
	require.True(t, ok)
	assert.Equal(t, Rect{X0: 5, Y0: 5, X1: 10, Y1: 10}, inter)

	_, ok = Intersect(a, Rect{X0: 20, Y0: 20, X1: 30, Y1: 30})
	assert.False(t, ok)

	// Touching edges do not overlap.
	_, ok = Intersect(a, Rect{X0: 10, Y0: 0, X1: 20, Y1: 10})
	assert.False(t, ok)
}

func TestIoU(t *testing.T) {
	a := Rect{X0: 0, Y0: 0, X1: 10, Y1: 10}

	assert.Equal(t, 1.0, IoU(a, a))
	assert.Equal(t, 0.0, IoU(a, Rect{X0: 20, Y0: 20, X1: 30, Y1: 30}))
	assert.Equal(t, 0.0, IoU(a, Rect{}))

	// 50 overlap / (100+100-50) union
	b := Rect{X0: 0, Y0: 5, X1: 10, Y1: 15}
	assert.InDelta(t, 50.0/150.0, IoU(a, b), 1e-9)

	for _, r := range []Rect{b, {X0: -5, Y0: -5, X1: 5, Y1: 5}, {X0: 2, Y0: 2, X1: 3, Y1: 3}} {
		v := IoU(a, r)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestContains(t *testing.T) {
	outer := Rect{X0: 0, Y0: 0, X1: 100, Y1: 100}
	assert.True(t, outer.Contains(Rect{X0: 10, Y0: 10, X1: 20, Y1: 20}))
	assert.True(t, outer.Contains(outer))
	assert.False(t, outer.Contains(Rect{X0: 90, Y0: 90, X1: 110, Y1: 110}))
}

func TestConvertPointsToPixels(t *testing.T) {
	// US Letter page, 300 DPI render.
	pdf := PDFSpace(612, 792)
	px := PixelSpaceFor(pdf, 300)
	assert.InDelta(t, 2550, px.Width, 1e-9)
	assert.InDelta(t, 3300, px.Height, 1e-9)

	// A 72x72pt box one inch up from the bottom-left corner.
	r := Rect{X0: 0, Y0: 72, X1: 72, Y1: 144}
	got, err := Convert(r, pdf, px)
	require.NoError(t, err)

	// One inch is 300px; the box sits two inches below the top edge after
	// the flip (792-144 = 648pt = 9in from top).
	assert.InDelta(t, 0, got.X0, 1e-9)
	assert.InDelta(t, 300, got.X1, 1e-9)
	assert.InDelta(t, 2700, got.Y0, 1e-9)
	assert.InDelta(t, 3000, got.Y1, 1e-9)
}

func TestConvertRoundTrip(t *testing.T) {
	pdf := PDFSpace(612, 792)
	px := PixelSpaceFor(pdf, 150)

	rects := []Rect{
		{X0: 36, Y0: 36, X1: 576, Y1: 756},
		{X0: 100.5, Y0: 200.25, X1: 300.75, Y1: 400.5},
		{X0: 576, Y0: 756, X1: 36, Y1: 36}, // inverted corners
	}
	for _, r := range rects {
		fwd, err := Convert(r, pdf, px)
		require.NoError(t, err)
		back, err := Convert(fwd, px, pdf)
		require.NoError(t, err)
		want := r.Canon()
		assert.InDelta(t, want.X0, back.X0, 1e-6)
		assert.InDelta(t, want.Y0, back.Y0, 1e-6)
		assert.InDelta(t, want.X1, back.X1, 1e-6)
		assert.InDelta(t, want.Y1, back.Y1, 1e-6)
	}
}

func TestConvertRejectsZeroDPI(t *testing.T) {
	_, err := Convert(Rect{X0: 0, Y0: 0, X1: 1, Y1: 1}, Space{Width: 1, Height: 1, UnitsPerInch: 0}, PDFSpace(612, 792))
	assert.Error(t, err)

	_, err = Convert(Rect{X0: 0, Y0: 0, X1: 1, Y1: 1}, PDFSpace(612, 792), Space{Width: 1, Height: 1})
	assert.Error(t, err)
}

func TestFlipY(t *testing.T) {
	r := Rect{X0: 10, Y0: 20, X1: 30, Y1: 40}
	flipped := FlipY(r, 100)
	assert.Equal(t, Rect{X0: 10, Y0: 60, X1: 30, Y1: 80}, flipped)
	// Flipping twice is the identity.
	assert.Equal(t, r, FlipY(flipped, 100))
}

func TestScaleHelpers(t *testing.T) {
	r := Rect{X0: 72, Y0: 72, X1: 144, Y1: 144}
	px := PointsToPixels(r, 300)
	assert.Equal(t, Rect{X0: 300, Y0: 300, X1: 600, Y1: 600}, px)
	back := PixelsToPoints(px, 300)
	assert.Equal(t, r, back)

	assert.Equal(t, Rect{}, PixelsToPoints(px, 0))
}

func TestNormalizeDenormalize(t *testing.T) {
	s := PDFSpace(612, 792)
	r := Rect{X0: 61.2, Y0: 79.2, X1: 306, Y1: 396}
	n := Normalize(r, s)
	assert.InDelta(t, 0.1, n.X0, 1e-9)
	assert.InDelta(t, 0.1, n.Y0, 1e-9)
	assert.InDelta(t, 0.5, n.X1, 1e-9)
	assert.InDelta(t, 0.5, n.Y1, 1e-9)

	d := Denormalize(n, s)
	assert.InDelta(t, r.X0, d.X0, 1e-9)
	assert.InDelta(t, r.Y1, d.Y1, 1e-9)

	assert.Equal(t, Rect{}, Normalize(r, Space{}))
}

func TestIoUSymmetry(t *testing.T) {
	a := Rect{X0: 0, Y0: 0, X1: 7, Y1: 3}
	b := Rect{X0: 2, Y0: 1, X1: 9, Y1: 5}
	assert.True(t, math.Abs(IoU(a, b)-IoU(b, a)) < 1e-12)
}
