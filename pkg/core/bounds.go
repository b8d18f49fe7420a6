package core

import "math"

// Point is a page-local coordinate.
type Point struct {
	X float64
	Y float64
}

// Bounds is a page-local rectangle. It is a value type: replacing the bounds
// of an annotation means constructing a new Bounds.
//
// Persisted records store the four components as separate scalar fields
// (x, y, width, height) rather than a nested object.
type Bounds struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// NewBounds creates Bounds from its four components.
func NewBounds(x, y, width, height float64) Bounds {
	return Bounds{X: x, Y: y, Width: width, Height: height}
}

// BoundsFromArray builds Bounds from an ordered sequence [x, y, width, height].
// Missing components default to 0 so partially specified legacy records
// still load.
func BoundsFromArray(v []float64) Bounds {
	at := func(i int) float64 {
		if i < len(v) {
			return v[i]
		}
		return 0
	}
	return Bounds{X: at(0), Y: at(1), Width: at(2), Height: at(3)}
}

// Array returns the interchange form [x, y, width, height].
func (b Bounds) Array() []float64 {
	return []float64{b.X, b.Y, b.Width, b.Height}
}

// Valid reports whether all components are finite and the size is non-negative.
func (b Bounds) Valid() bool {
	for _, v := range b.Array() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.Width >= 0 && b.Height >= 0
}

// Contains reports whether p lies inside b (edges included).
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.X+b.Width &&
		p.Y >= b.Y && p.Y <= b.Y+b.Height
}

// ApproxEqual compares two rectangles component-wise within eps.
func (b Bounds) ApproxEqual(o Bounds, eps float64) bool {
	return math.Abs(b.X-o.X) <= eps &&
		math.Abs(b.Y-o.Y) <= eps &&
		math.Abs(b.Width-o.Width) <= eps &&
		math.Abs(b.Height-o.Height) <= eps
}
