package ept

// overlapFrame pairs a key with the bounds it was bisected into, so the
// stack need not recompute bounds from scratch at every step.
type overlapFrame struct {
	key    Key
	bounds BoundingBox3D
}

// SelectOverlaps walks the hierarchy map from rootKey/rootBounds and
// returns the string form of every key whose node bounds overlap
// params.Bounds, has a nonzero point count, and whose depth is not past
// params.DepthRange's end (DepthBegin is not applied: shallower keys are
// still selected). It is the iterative, stack-based twin of the
// original source's recursive sync_overlaps: unbounded recursion over an
// octree whose depth is attacker- or dataset-controlled is a stack
// overflow risk, so this reproduces _overlaps's explicit LIFO list
// instead. Children are pushed in direction order 0..7 and therefore
// popped in reverse (7..0); selection order is otherwise unspecified but
// stays stable across runs of the same hierarchy, which is all §8's
// properties require.
func SelectOverlaps(hierarchy map[string]int, rootKey Key, rootBounds BoundingBox3D, params QueryParams) ([]string, error) {
	type frame = overlapFrame
	stack := []frame{{key: rootKey, bounds: rootBounds}}
	var selected []string

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !top.bounds.Overlaps(params.Bounds) {
			continue
		}

		count, ok := hierarchy[top.key.String()]
		if !ok || count == 0 {
			continue
		}

		deeper, err := params.DepthRange.IsDeeper(top.key.D)
		if err != nil {
			return nil, err
		}
		if deeper {
			continue
		}

		selected = append(selected, top.key.String())

		for direction := 0; direction < 8; direction++ {
			childKey, childBounds := Bisect(top.key, top.bounds, direction)
			stack = append(stack, frame{key: childKey, bounds: childBounds})
		}
	}

	return selected, nil
}

// selectOverlapsRecursive is the direct translation of sync_overlaps, kept
// unexported and test-only as the reference implementation the iterative
// form is checked against.
func selectOverlapsRecursive(hierarchy map[string]int, key Key, bounds BoundingBox3D, params QueryParams, out *[]string) error {
	if !bounds.Overlaps(params.Bounds) {
		return nil
	}

	count, ok := hierarchy[key.String()]
	if !ok || count == 0 {
		return nil
	}

	deeper, err := params.DepthRange.IsDeeper(key.D)
	if err != nil {
		return err
	}
	if deeper {
		return nil
	}

	*out = append(*out, key.String())

	for direction := 0; direction < 8; direction++ {
		childKey, childBounds := Bisect(key, bounds, direction)
		if err := selectOverlapsRecursive(hierarchy, childKey, childBounds, params, out); err != nil {
			return err
		}
	}
	return nil
}
