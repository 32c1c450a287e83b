package sprite

import "github.com/chewxy/math32"

// Vec2 is a 2D vector in pixel or texture space.
type Vec2 struct {
	X, Y float32
}

// V2 is a convenience function to create a Vec2.
func V2(x, y float32) Vec2 {
	return Vec2{X: x, Y: y}
}

// Add returns the sum of two vectors.
func (v Vec2) Add(w Vec2) Vec2 {
	return Vec2{X: v.X + w.X, Y: v.Y + w.Y}
}

// Sub returns the difference of two vectors.
func (v Vec2) Sub(w Vec2) Vec2 {
	return Vec2{X: v.X - w.X, Y: v.Y - w.Y}
}

// Mul returns the component-wise product of two vectors.
func (v Vec2) Mul(w Vec2) Vec2 {
	return Vec2{X: v.X * w.X, Y: v.Y * w.Y}
}

// Scale returns the vector scaled by s.
func (v Vec2) Scale(s float32) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Rotate returns the vector rotated by angle radians.
func (v Vec2) Rotate(angle float32) Vec2 {
	sin, cos := math32.Sincos(angle)
	return Vec2{X: v.X*cos - v.Y*sin, Y: v.X*sin + v.Y*cos}
}

// Rect is an axis-aligned rectangle given by its min and max corners.
// It is used both for texture coordinates and for screen-space bounds.
type Rect struct {
	Min, Max Vec2
}

// UnitRect covers the whole texture: (0,0)-(1,1).
var UnitRect = Rect{Max: Vec2{X: 1, Y: 1}}

// R is a convenience function to create a Rect from its corners.
func R(x0, y0, x1, y1 float32) Rect {
	return Rect{Min: Vec2{X: x0, Y: y0}, Max: Vec2{X: x1, Y: y1}}
}

// Width returns the horizontal extent.
func (r Rect) Width() float32 { return r.Max.X - r.Min.X }

// Height returns the vertical extent.
func (r Rect) Height() float32 { return r.Max.Y - r.Min.Y }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Min.X >= r.Max.X || r.Min.Y >= r.Max.Y
}

// Intersects reports whether r and s share a region of positive area.
// Rectangles that only touch along an edge do not intersect.
func (r Rect) Intersects(s Rect) bool {
	return r.Min.X < s.Max.X && s.Min.X < r.Max.X &&
		r.Min.Y < s.Max.Y && s.Min.Y < r.Max.Y
}

// Union returns the smallest rectangle containing r and s.
// An empty operand is ignored.
func (r Rect) Union(s Rect) Rect {
	if r.Empty() {
		return s
	}
	if s.Empty() {
		return r
	}
	return Rect{
		Min: Vec2{X: math32.Min(r.Min.X, s.Min.X), Y: math32.Min(r.Min.Y, s.Min.Y)},
		Max: Vec2{X: math32.Max(r.Max.X, s.Max.X), Y: math32.Max(r.Max.Y, s.Max.Y)},
	}
}

// Lerp maps a point given in r's unit space (0..1) into r.
func (r Rect) Lerp(u, v float32) Vec2 {
	return Vec2{
		X: r.Min.X + (r.Max.X-r.Min.X)*u,
		Y: r.Min.Y + (r.Max.Y-r.Min.Y)*v,
	}
}

// boundsOf returns the bounding box of the given points.
func boundsOf(pts []Vec2) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	b := Rect{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min.X = math32.Min(b.Min.X, p.X)
		b.Min.Y = math32.Min(b.Min.Y, p.Y)
		b.Max.X = math32.Max(b.Max.X, p.X)
		b.Max.Y = math32.Max(b.Max.Y, p.Y)
	}
	return b
}
