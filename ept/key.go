package ept

import "fmt"

// Key identifies a node in the EPT octree: a depth d and per-axis integer
// coordinates x, y, z. Its string form "d-x-y-z" is the literal addressing
// scheme used for hierarchy JSON object keys and "<key>.laz" tile names.
type Key struct {
	D int
	X int
	Y int
	Z int
}

// RootKey is the key of the octree root: depth 0, origin (0,0,0).
func RootKey() Key {
	return Key{}
}

func (k Key) String() string {
	return fmt.Sprintf("%d-%d-%d-%d", k.D, k.X, k.Y, k.Z)
}

// idAt and setIDAt give bisect a uniform way to step over the three axes,
// matching the original source's Key.id_at/set_id_at pair.
func (k Key) idAt(i int) int {
	switch i {
	case 0:
		return k.X
	case 1:
		return k.Y
	case 2:
		return k.Z
	default:
		panic("id_at index not in range(0, 3)")
	}
}

func (k *Key) setIDAt(i, value int) {
	switch i {
	case 0:
		k.X = value
	case 1:
		k.Y = value
	case 2:
		k.Z = value
	default:
		panic("id_at index not in range(0, 3)")
	}
}

// Bisect produces the child key and child bounds for one of the eight
// octree directions (0..7), where bit i of direction selects the upper
// (1) or lower (0) half of axis i (0=x, 1=y, 2=z). It mirrors the Python
// source's Key.bisect exactly, including the half-width bounds shrink.
func Bisect(parent Key, parentBounds BoundingBox3D, direction int) (Key, BoundingBox3D) {
	bounds := parentBounds.Bounds6()

	child := Key{D: parent.D + 1, X: parent.X, Y: parent.Y, Z: parent.Z}

	for i := 0; i < 3; i++ {
		child.setIDAt(i, 2*child.idAt(i))
		mid := bounds[i] + (bounds[i+3]-bounds[i])/2.0
		positive := direction&(1<<uint(i)) != 0

		if positive {
			bounds[i] = mid
			child.setIDAt(i, child.idAt(i)+1)
		} else {
			bounds[i+3] = mid
		}
	}

	childBounds, err := BoundingBox3DFromSlice(bounds)
	if err != nil {
		// bisecting a valid box along its midpoints can never invert an axis.
		panic(fmt.Sprintf("bisect produced invalid bounds: %v", err))
	}
	return child, childBounds
}
