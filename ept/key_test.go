package ept

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootKeyString(t *testing.T) {
	assert.Equal(t, "0-0-0-0", RootKey().String())
}

func TestBisectSplitsBoundsAtMidpoint(t *testing.T) {
	rootBounds, err := NewBoundingBox3D(0, 0, 0, 8, 8, 8)
	assert.Nil(t, err)

	// direction 0 selects the lower half of every axis.
	child, bounds := Bisect(RootKey(), rootBounds, 0)
	assert.Equal(t, Key{D: 1, X: 0, Y: 0, Z: 0}, child)
	assert.Equal(t, 0.0, bounds.Xmin())
	assert.Equal(t, 4.0, bounds.Xmax())

	// direction 7 (all bits set) selects the upper half of every axis.
	child, bounds = Bisect(RootKey(), rootBounds, 7)
	assert.Equal(t, Key{D: 1, X: 1, Y: 1, Z: 1}, child)
	assert.Equal(t, 4.0, bounds.Xmin())
	assert.Equal(t, 8.0, bounds.Xmax())
	assert.Equal(t, 4.0, bounds.Zmin())
	assert.Equal(t, 8.0, bounds.Zmax())
}

func TestBisectDirectionBitsAreIndependentPerAxis(t *testing.T) {
	rootBounds, _ := NewBoundingBox3D(0, 0, 0, 8, 8, 8)

	// direction 1 (bit 0 set) selects upper x, lower y, lower z.
	child, bounds := Bisect(RootKey(), rootBounds, 1)
	assert.Equal(t, Key{D: 1, X: 1, Y: 0, Z: 0}, child)
	assert.Equal(t, 4.0, bounds.Xmin())
	assert.Equal(t, 0.0, bounds.Ymin())
	assert.Equal(t, 0.0, bounds.Zmin())
}

func TestBisectTwiceHalvesAgain(t *testing.T) {
	rootBounds, _ := NewBoundingBox3D(0, 0, 0, 8, 8, 8)
	child, childBounds := Bisect(RootKey(), rootBounds, 0)
	grandchild, grandchildBounds := Bisect(child, childBounds, 7)
	assert.Equal(t, 2, grandchild.D)
	assert.Equal(t, 2.0, grandchildBounds.Xmin())
	assert.Equal(t, 4.0, grandchildBounds.Xmax())
}
