package ept

import "fmt"

// InvalidBoundsError is returned when a bounding box is constructed with
// a minimum coordinate greater than its maximum on some axis.
type InvalidBoundsError struct {
	Axis string
	Min  float64
	Max  float64
}

func (e *InvalidBoundsError) Error() string {
	return fmt.Sprintf("invalid bounds: %smin (%v) is greater than %smax (%v)", e.Axis, e.Min, e.Axis, e.Max)
}

// InvalidDepthError is returned when a DepthRange is queried with a
// negative depth.
type InvalidDepthError struct {
	Depth int
}

func (e *InvalidDepthError) Error() string {
	return fmt.Sprintf("depth cannot be negative: %d", e.Depth)
}

// UnknownSchemeError is returned when a Source cannot be constructed for
// a root address because its URI scheme is not recognized.
type UnknownSchemeError struct {
	Address string
}

func (e *UnknownSchemeError) Error() string {
	return fmt.Sprintf("unknown scheme for address: %s", e.Address)
}

// FetchFailedError wraps any Source GET failure: network errors, non-2xx
// responses, missing S3 keys, or local I/O errors.
type FetchFailedError struct {
	URI   string
	Cause error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %v", e.URI, e.Cause)
}

func (e *FetchFailedError) Unwrap() error {
	return e.Cause
}

// MalformedHierarchyError is returned when a hierarchy chunk is not a
// flat JSON object of string keys to integer counts.
type MalformedHierarchyError struct {
	Key   string
	Cause error
}

func (e *MalformedHierarchyError) Error() string {
	return fmt.Sprintf("malformed hierarchy chunk %s: %v", e.Key, e.Cause)
}

func (e *MalformedHierarchyError) Unwrap() error {
	return e.Cause
}

// MalformedInfoError is returned when entwine.json is missing required
// fields or has a malformed bounds value.
type MalformedInfoError struct {
	Reason string
}

func (e *MalformedInfoError) Error() string {
	return fmt.Sprintf("malformed entwine.json: %s", e.Reason)
}

// DecodeFailedError is returned when the LAZ/LAS codec rejects a tile.
type DecodeFailedError struct {
	Key   string
	Cause error
}

func (e *DecodeFailedError) Error() string {
	return fmt.Sprintf("decode failed for tile %s: %v", e.Key, e.Cause)
}

func (e *DecodeFailedError) Unwrap() error {
	return e.Cause
}
