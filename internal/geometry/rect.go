// Package geometry reconciles the coordinate systems produced by different
// PDF and OCR tools: PDF points (origin bottom-left, 72 per inch), raster
// pixels at some DPI (origin top-left), and normalized page fractions.
package geometry

import "math"

// Rect is an axis-aligned rectangle. X0,Y0 is the corner nearest the space's
// origin after Canon; coordinates are in the owning space's units.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Canon returns the rectangle with ordered corners (X0<=X1, Y0<=Y1).
func (r Rect) Canon() Rect {
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r
}

func (r Rect) Width() float64  { return math.Abs(r.X1 - r.X0) }
func (r Rect) Height() float64 { return math.Abs(r.Y1 - r.Y0) }
func (r Rect) Area() float64   { return r.Width() * r.Height() }

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool { return r.Width() == 0 || r.Height() == 0 }

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	r, o = r.Canon(), o.Canon()
	return o.X0 >= r.X0 && o.Y0 >= r.Y0 && o.X1 <= r.X1 && o.Y1 <= r.Y1
}

// Union returns the smallest rectangle covering both a and b.
func Union(a, b Rect) Rect {
	a, b = a.Canon(), b.Canon()
	return Rect{
		X0: math.Min(a.X0, b.X0),
		Y0: math.Min(a.Y0, b.Y0),
		X1: math.Max(a.X1, b.X1),
		Y1: math.Max(a.Y1, b.Y1),
	}
}

// Intersect returns the overlap of a and b, and whether one exists.
func Intersect(a, b Rect) (Rect, bool) {
	a, b = a.Canon(), b.Canon()
	out := Rect{
		X0: math.Max(a.X0, b.X0),
		Y0: math.Max(a.Y0, b.Y0),
		X1: math.Min(a.X1, b.X1),
		Y1: math.Min(a.Y1, b.Y1),
	}
	if out.X0 >= out.X1 || out.Y0 >= out.Y1 {
		return Rect{}, false
	}
	return out, true
}

// IoU returns intersection-over-union in [0,1]. Degenerate rectangles
// contribute nothing, so IoU with an empty rect is 0.
func IoU(a, b Rect) float64 {
	inter, ok := Intersect(a, b)
	if !ok {
		return 0
	}
	union := a.Area() + b.Area() - inter.Area()
	if union <= 0 {
		return 0
	}
	return inter.Area() / union
}
