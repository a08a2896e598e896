package geometry

import "fmt"

// Origin names the corner a coordinate system measures from.
type Origin int

const (
	// OriginTopLeft is used by raster images and hOCR.
	OriginTopLeft Origin = iota
	// OriginBottomLeft is used by PDF user space.
	OriginBottomLeft
)

// PointsPerInch is the PDF user-space unit density.
const PointsPerInch = 72.0

// Space describes one page's coordinate system: its extent in the space's
// own units, which corner is the origin, and how many units make an inch.
type Space struct {
	Width        float64
	Height       float64
	Origin       Origin
	UnitsPerInch float64
}

// PDFSpace is the PDF user space of a page with the given size in points.
func PDFSpace(widthPts, heightPts float64) Space {
	return Space{Width: widthPts, Height: heightPts, Origin: OriginBottomLeft, UnitsPerInch: PointsPerInch}
}

// PixelSpace is the raster space of a page rendered at dpi.
func PixelSpace(widthPx, heightPx, dpi float64) Space {
	return Space{Width: widthPx, Height: heightPx, Origin: OriginTopLeft, UnitsPerInch: dpi}
}

// PixelSpaceFor derives the raster space a PDF page occupies when rendered
// at dpi, so callers do not need to know the pixel dimensions up front.
func PixelSpaceFor(pdfSpace Space, dpi float64) Space {
	scale := dpi / pdfSpace.UnitsPerInch
	return PixelSpace(pdfSpace.Width*scale, pdfSpace.Height*scale, dpi)
}

// Convert maps a rectangle between two coordinate systems describing the
// same physical page, applying DPI scaling and the Y-axis flip as needed.
func Convert(r Rect, from, to Space) (Rect, error) {
	if from.UnitsPerInch <= 0 || to.UnitsPerInch <= 0 {
		return Rect{}, fmt.Errorf("convert rect: units per inch must be positive (from=%v to=%v)", from.UnitsPerInch, to.UnitsPerInch)
	}
	r = r.Canon()
	// Normalize to a top-left orientation in the source space.
	if from.Origin == OriginBottomLeft {
		r = FlipY(r, from.Height)
	}
	scale := to.UnitsPerInch / from.UnitsPerInch
	r = Rect{X0: r.X0 * scale, Y0: r.Y0 * scale, X1: r.X1 * scale, Y1: r.Y1 * scale}
	if to.Origin == OriginBottomLeft {
		r = FlipY(r, to.Height)
	}
	return r, nil
}

// FlipY mirrors a rectangle across the horizontal midline of a page of the
// given height, converting between top-left and bottom-left origins.
func FlipY(r Rect, pageHeight float64) Rect {
	r = r.Canon()
	return Rect{X0: r.X0, Y0: pageHeight - r.Y1, X1: r.X1, Y1: pageHeight - r.Y0}
}

// PointsToPixels scales a rectangle from PDF points to pixels at dpi.
// Orientation is unchanged; use Convert for origin flips.
func PointsToPixels(r Rect, dpi float64) Rect {
	s := dpi / PointsPerInch
	return Rect{X0: r.X0 * s, Y0: r.Y0 * s, X1: r.X1 * s, Y1: r.Y1 * s}
}

// PixelsToPoints scales a rectangle from pixels at dpi back to PDF points.
func PixelsToPoints(r Rect, dpi float64) Rect {
	if dpi <= 0 {
		return Rect{}
	}
	s := PointsPerInch / dpi
	return Rect{X0: r.X0 * s, Y0: r.Y0 * s, X1: r.X1 * s, Y1: r.Y1 * s}
}

// Normalize expresses a rectangle as page fractions in [0,1] relative to its
// space. Rectangles may exceed the page; fractions then fall outside [0,1].
func Normalize(r Rect, s Space) Rect {
	if s.Width == 0 || s.Height == 0 {
		return Rect{}
	}
	r = r.Canon()
	return Rect{X0: r.X0 / s.Width, Y0: r.Y0 / s.Height, X1: r.X1 / s.Width, Y1: r.Y1 / s.Height}
}

// Denormalize maps page fractions back into concrete coordinates of s.
func Denormalize(r Rect, s Space) Rect {
	r = r.Canon()
	return Rect{X0: r.X0 * s.Width, Y0: r.Y0 * s.Height, X1: r.X1 * s.Width, Y1: r.Y1 * s.Height}
}
