package ept

import (
	"math"

	"github.com/paulmach/orb"
)

// BoundingBox2D is an axis-aligned rectangle with the invariant
// xmin <= xmax and ymin <= ymax. It is backed by an orb.Bound so it plays
// nicely with the rest of the geometry ecosystem (region files, GeoJSON,
// etc.) while keeping the closed-interval semantics EPT queries need.
type BoundingBox2D struct {
	bound orb.Bound
}

// NewBoundingBox2D builds a BoundingBox2D from corner coordinates.
func NewBoundingBox2D(xmin, ymin, xmax, ymax float64) (BoundingBox2D, error) {
	if xmin > xmax {
		return BoundingBox2D{}, &InvalidBoundsError{Axis: "x", Min: xmin, Max: xmax}
	}
	if ymin > ymax {
		return BoundingBox2D{}, &InvalidBoundsError{Axis: "y", Min: ymin, Max: ymax}
	}
	return BoundingBox2D{bound: orb.Bound{Min: orb.Point{xmin, ymin}, Max: orb.Point{xmax, ymax}}}, nil
}

// BoundingBox2DFromShape builds a box from a minimum point plus width/height.
func BoundingBox2DFromShape(xmin, ymin, width, height float64) (BoundingBox2D, error) {
	return NewBoundingBox2D(xmin, ymin, xmin+width, ymin+height)
}

func (b BoundingBox2D) Xmin() float64 { return b.bound.Min[0] }
func (b BoundingBox2D) Ymin() float64 { return b.bound.Min[1] }
func (b BoundingBox2D) Xmax() float64 { return b.bound.Max[0] }
func (b BoundingBox2D) Ymax() float64 { return b.bound.Max[1] }

func (b BoundingBox2D) Width() float64  { return b.Xmax() - b.Xmin() }
func (b BoundingBox2D) Height() float64 { return b.Ymax() - b.Ymin() }
func (b BoundingBox2D) Area() float64   { return b.Width() * b.Height() }

func (b BoundingBox2D) Center() (float64, float64) {
	return (b.Xmax() + b.Xmin()) / 2, (b.Ymax() + b.Ymin()) / 2
}

// Corners returns the four corner points in (xmin,ymin),(xmax,ymin),
// (xmin,ymax),(xmax,ymax) order, matching the original source's layout.
func (b BoundingBox2D) Corners() [4]orb.Point {
	return [4]orb.Point{
		{b.Xmin(), b.Ymin()},
		{b.Xmax(), b.Ymin()},
		{b.Xmin(), b.Ymax()},
		{b.Xmax(), b.Ymax()},
	}
}

// IsNull reports whether the box is degenerate on either axis.
func (b BoundingBox2D) IsNull() bool {
	return isClose(b.Width(), 0) || isClose(b.Height(), 0)
}

func isClose(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// Overlaps is a symmetric, closed-interval overlap test.
func (b BoundingBox2D) Overlaps(other BoundingBox2D) bool {
	xOverlap := b.Xmin() <= other.Xmax() && b.Xmax() >= other.Xmin()
	yOverlap := b.Ymin() <= other.Ymax() && b.Ymax() >= other.Ymin()
	return xOverlap && yOverlap
}

// Contains reports whether other lies fully within self (closed interval).
func (b BoundingBox2D) Contains(other BoundingBox2D) bool {
	topLeftInside := other.Xmin() >= b.Xmin() && other.Ymin() >= b.Ymin()
	bottomRightInside := other.Xmax() <= b.Xmax() && other.Ymax() <= b.Ymax()
	return topLeftInside && bottomRightInside
}

// Intersection returns the overlap between self and other, and false if
// the two boxes do not overlap or the intersection is degenerate.
func (b BoundingBox2D) Intersection(other BoundingBox2D) (BoundingBox2D, bool) {
	xmin := math.Max(b.Xmin(), other.Xmin())
	ymin := math.Max(b.Ymin(), other.Ymin())
	xmax := math.Min(b.Xmax(), other.Xmax())
	ymax := math.Min(b.Ymax(), other.Ymax())

	box, err := NewBoundingBox2D(xmin, ymin, xmax, ymax)
	if err != nil || box.IsNull() {
		return BoundingBox2D{}, false
	}
	return box, true
}

// Grow returns a new box covering both self and the given
// box-as-four-coordinates; the receiver is not modified.
func (b BoundingBox2D) Grow(xmin, ymin, xmax, ymax float64) BoundingBox2D {
	return BoundingBox2D{bound: orb.Bound{
		Min: orb.Point{math.Min(b.Xmin(), xmin), math.Min(b.Ymin(), ymin)},
		Max: orb.Point{math.Max(b.Xmax(), xmax), math.Max(b.Ymax(), ymax)},
	}}
}

// Subtract translates the box by (-x, -y), returning a new box.
func (b BoundingBox2D) Subtract(x, y float64) BoundingBox2D {
	return BoundingBox2D{bound: orb.Bound{
		Min: orb.Point{b.Xmin() - x, b.Ymin() - y},
		Max: orb.Point{b.Xmax() - x, b.Ymax() - y},
	}}
}

func (b BoundingBox2D) Equal(other BoundingBox2D) bool {
	return b.Xmin() == other.Xmin() && b.Ymin() == other.Ymin() &&
		b.Xmax() == other.Xmax() && b.Ymax() == other.Ymax()
}

// BoundingBox3D extends BoundingBox2D with a z interval.
type BoundingBox3D struct {
	BoundingBox2D
	zmin float64
	zmax float64
}

// NewBoundingBox3D builds a box, validating all three axes.
func NewBoundingBox3D(xmin, ymin, zmin, xmax, ymax, zmax float64) (BoundingBox3D, error) {
	b2, err := NewBoundingBox2D(xmin, ymin, xmax, ymax)
	if err != nil {
		return BoundingBox3D{}, err
	}
	if zmin > zmax {
		return BoundingBox3D{}, &InvalidBoundsError{Axis: "z", Min: zmin, Max: zmax}
	}
	return BoundingBox3D{BoundingBox2D: b2, zmin: zmin, zmax: zmax}, nil
}

func (b BoundingBox3D) Zmin() float64 { return b.zmin }
func (b BoundingBox3D) Zmax() float64 { return b.zmax }
func (b BoundingBox3D) Depth() float64 {
	return b.Zmax() - b.Zmin()
}

// Overlaps conjoins the 2D overlap test with a closed z-interval test.
func (b BoundingBox3D) Overlaps(other BoundingBox3D) bool {
	zOverlap := b.zmin <= other.zmax && b.zmax >= other.zmin
	return b.BoundingBox2D.Overlaps(other.BoundingBox2D) && zOverlap
}

func (b BoundingBox3D) Contains(other BoundingBox3D) bool {
	return b.BoundingBox2D.Contains(other.BoundingBox2D) && other.zmin >= b.zmin && other.zmax <= b.zmax
}

func (b BoundingBox3D) Intersection(other BoundingBox3D) (BoundingBox3D, bool) {
	b2, ok := b.BoundingBox2D.Intersection(other.BoundingBox2D)
	if !ok {
		return BoundingBox3D{}, false
	}
	zmin := math.Max(b.zmin, other.zmin)
	zmax := math.Min(b.zmax, other.zmax)
	if isClose(zmax-zmin, 0) {
		return BoundingBox3D{}, false
	}
	return BoundingBox3D{BoundingBox2D: b2, zmin: zmin, zmax: zmax}, true
}

func (b BoundingBox3D) Equal(other BoundingBox3D) bool {
	return b.BoundingBox2D.Equal(other.BoundingBox2D) && b.zmin == other.zmin && b.zmax == other.zmax
}

// Bounds6 returns the [xmin,ymin,zmin,xmax,ymax,zmax] form used in
// entwine.json's "bounds" array.
func (b BoundingBox3D) Bounds6() [6]float64 {
	return [6]float64{b.Xmin(), b.Ymin(), b.zmin, b.Xmax(), b.Ymax(), b.zmax}
}

// BoundingBox3DFromSlice mirrors the Python source's BoundingBox3D(*bounds)
// idiom for a 6-element [xmin,ymin,zmin,xmax,ymax,zmax] slice.
func BoundingBox3DFromSlice(bounds [6]float64) (BoundingBox3D, error) {
	return NewBoundingBox3D(bounds[0], bounds[1], bounds[2], bounds[3], bounds[4], bounds[5])
}
