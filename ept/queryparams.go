package ept

// DepthRange bounds how deep an overlap selection descends the octree.
// DepthEnd == nil means unbounded.
type DepthRange struct {
	DepthBegin int
	DepthEnd   *int
}

// UnboundedDepthRange is the zero-value DepthRange: begin at 0, no end.
func UnboundedDepthRange() DepthRange {
	return DepthRange{DepthBegin: 0}
}

// NewDepthRange builds a bounded DepthRange.
func NewDepthRange(begin, end int) DepthRange {
	e := end
	return DepthRange{DepthBegin: begin, DepthEnd: &e}
}

// IsDeeper reports whether depth has passed the range's end, using the
// inclusive-end semantics the original source's DepthRange.is_deeper
// implements (depth > end), not the half-open range __contains__ uses.
// This is the only depth predicate the overlap selector relies on.
func (r DepthRange) IsDeeper(depth int) (bool, error) {
	if depth < 0 {
		return false, &InvalidDepthError{Depth: depth}
	}
	if r.DepthEnd != nil {
		return depth > *r.DepthEnd, nil
	}
	return false, nil
}

// QueryParams is a read request: the area/volume of interest plus an
// optional depth bound.
type QueryParams struct {
	Bounds     BoundingBox3D
	bounds2D   *BoundingBox2D
	DepthRange DepthRange
}

// NewQueryParams3D builds query parameters from an already-3D bounding box.
func NewQueryParams3D(bounds BoundingBox3D, depthRange DepthRange) QueryParams {
	return QueryParams{Bounds: bounds, DepthRange: depthRange}
}

// NewQueryParams2D accepts a 2D box; call EnsureThreeDBounds before using
// Bounds so the z interval is filled in from the archive's own bounds.
func NewQueryParams2D(bounds BoundingBox2D, depthRange DepthRange) QueryParams {
	return QueryParams{bounds2D: &bounds, DepthRange: depthRange}
}

// EnsureThreeDBounds fills in a missing z interval from referenceBounds
// (the archive's own root bounds), mirroring QueryParams.ensure_3d_bounds:
// a 2D query inherits the full vertical extent of the dataset.
func (p *QueryParams) EnsureThreeDBounds(referenceBounds BoundingBox3D) error {
	if p.bounds2D == nil {
		return nil
	}
	bounds, err := NewBoundingBox3D(
		p.bounds2D.Xmin(), p.bounds2D.Ymin(), referenceBounds.Zmin(),
		p.bounds2D.Xmax(), p.bounds2D.Ymax(), referenceBounds.Zmax(),
	)
	if err != nil {
		return err
	}
	p.Bounds = bounds
	p.bounds2D = nil
	return nil
}
