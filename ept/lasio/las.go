// Package lasio is a small, self-contained codec for ASPRS LAS 1.2 point
// cloud files, point data format 0. It is a concrete stand-in for the real
// LAZ/LASzip codec an EPT reader depends on in production: LASzip
// compression is a C library binding with no pure-Go implementation in
// this module's dependency stack, so lasio speaks the uncompressed LAS
// wire format instead and treats "compressed" output as an outer gzip
// framing rather than true LASzip entropy coding.
package lasio

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	headerSize       = 227
	pointRecordSize0 = 20
	fileSignature    = "LASF"
)

// Header is the subset of the LAS 1.2 public header block this codec
// reads and writes: the per-axis scale/offset pairs needed to convert
// integer point records to doubles, the point count, and the bounds.
type Header struct {
	ScaleX, ScaleY, ScaleZ    float64
	OffsetX, OffsetY, OffsetZ float64
	MinX, MinY, MinZ          float64
	MaxX, MaxY, MaxZ          float64
}

// PointRecord is one LAS point data format 0 record (20 bytes on the wire).
type PointRecord struct {
	X, Y, Z         int32
	Intensity       uint16
	Flags           uint8
	Classification  uint8
	ScanAngleRank   int8
	UserData        uint8
	PointSourceID   uint16
}

// PointCloud is a decoded LAS file: a header plus its point records. It is
// the concrete type behind the PointCloud contract a query result
// satisfies: X/Y/Z return lazily-computed coordinate slices aligned with
// Points, and Filter/Merge/Clip operate on Points directly.
type PointCloud struct {
	Header Header
	Points []PointRecord
}

// Decode parses a LAS 1.2 file (public header block + point data format 0
// records). It does not attempt to parse variable length records; any
// bytes between the header and PointDataOffset are skipped.
func Decode(data []byte) (*PointCloud, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("lasio: input too short for LAS header (%d bytes)", len(data))
	}
	if string(data[0:4]) != fileSignature {
		return nil, fmt.Errorf("lasio: bad file signature %q", data[0:4])
	}

	pointDataFormat := data[104]
	if pointDataFormat != 0 {
		return nil, fmt.Errorf("lasio: unsupported point data format %d (only format 0)", pointDataFormat)
	}
	recordLength := binary.LittleEndian.Uint16(data[105:107])
	if recordLength < pointRecordSize0 {
		return nil, fmt.Errorf("lasio: point record length %d too short for format 0", recordLength)
	}

	pointDataOffset := binary.LittleEndian.Uint32(data[96:100])
	numPoints := binary.LittleEndian.Uint32(data[107:111])
	globalEncoding := binary.LittleEndian.Uint16(data[6:8])

	pointData := data
	offset := int(pointDataOffset)
	if globalEncoding&0x1 != 0 {
		zr, err := gzip.NewReader(bytes.NewReader(data[pointDataOffset:]))
		if err != nil {
			return nil, fmt.Errorf("lasio: bad gzip framing on point data: %w", err)
		}
		defer zr.Close()
		decompressed, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("lasio: failed to gunzip point data: %w", err)
		}
		pointData = decompressed
		offset = 0
	}

	h := Header{
		ScaleX: readF64(data, 131), ScaleY: readF64(data, 139), ScaleZ: readF64(data, 147),
		OffsetX: readF64(data, 155), OffsetY: readF64(data, 163), OffsetZ: readF64(data, 171),
		MaxX: readF64(data, 179), MinX: readF64(data, 187),
		MaxY: readF64(data, 195), MinY: readF64(data, 203),
		MaxZ: readF64(data, 211), MinZ: readF64(data, 219),
	}

	points := make([]PointRecord, 0, numPoints)
	for i := uint32(0); i < numPoints; i++ {
		end := offset + int(recordLength)
		if end > len(pointData) {
			return nil, fmt.Errorf("lasio: point record %d truncated", i)
		}
		rec := pointData[offset:end]
		points = append(points, PointRecord{
			X:              int32(binary.LittleEndian.Uint32(rec[0:4])),
			Y:              int32(binary.LittleEndian.Uint32(rec[4:8])),
			Z:              int32(binary.LittleEndian.Uint32(rec[8:12])),
			Intensity:      binary.LittleEndian.Uint16(rec[12:14]),
			Flags:          rec[14],
			Classification: rec[15],
			ScanAngleRank:  int8(rec[16]),
			UserData:       rec[17],
			PointSourceID:  binary.LittleEndian.Uint16(rec[18:20]),
		})
		offset = end
	}

	return &PointCloud{Header: h, Points: points}, nil
}

func readF64(data []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(data[off : off+8]))
}

// X returns the decoded world-space X coordinate for every point, in the
// same order as Points: record.X * ScaleX + OffsetX.
func (pc *PointCloud) X() []float64 { return pc.axis(func(r PointRecord) int32 { return r.X }, pc.Header.ScaleX, pc.Header.OffsetX) }

// Y returns the decoded world-space Y coordinate for every point.
func (pc *PointCloud) Y() []float64 { return pc.axis(func(r PointRecord) int32 { return r.Y }, pc.Header.ScaleY, pc.Header.OffsetY) }

// Z returns the decoded world-space Z coordinate for every point.
func (pc *PointCloud) Z() []float64 { return pc.axis(func(r PointRecord) int32 { return r.Z }, pc.Header.ScaleZ, pc.Header.OffsetZ) }

func (pc *PointCloud) axis(pick func(PointRecord) int32, scale, offset float64) []float64 {
	out := make([]float64, len(pc.Points))
	for i, p := range pc.Points {
		out[i] = float64(pick(p))*scale + offset
	}
	return out
}

// Filter returns a new PointCloud retaining only the records for which
// mask[i] is true. mask must have the same length as pc.Points.
func (pc *PointCloud) Filter(mask []bool) (*PointCloud, error) {
	if len(mask) != len(pc.Points) {
		return nil, fmt.Errorf("lasio: mask length %d does not match point count %d", len(mask), len(pc.Points))
	}
	out := &PointCloud{Header: pc.Header}
	for i, keep := range mask {
		if keep {
			out.Points = append(out.Points, pc.Points[i])
		}
	}
	return out, nil
}

// Clip returns a new PointCloud retaining only points whose decoded
// coordinates fall within the closed interval [min, max] on each axis.
func (pc *PointCloud) Clip(xmin, ymin, zmin, xmax, ymax, zmax float64) (*PointCloud, error) {
	x, y, z := pc.X(), pc.Y(), pc.Z()
	mask := make([]bool, len(pc.Points))
	for i := range pc.Points {
		mask[i] = x[i] >= xmin && x[i] <= xmax &&
			y[i] >= ymin && y[i] <= ymax &&
			z[i] >= zmin && z[i] <= zmax
	}
	return pc.Filter(mask)
}

// Merge concatenates the point records of every input cloud into one.
// Every input must share the same scale/offset triple: lasio does not
// renormalize coordinates across inputs with differing offsets, matching
// the original source's pylas.merge which has the same requirement.
func Merge(clouds []*PointCloud) (*PointCloud, error) {
	if len(clouds) == 0 {
		return &PointCloud{}, nil
	}
	head := clouds[0].Header
	out := &PointCloud{Header: head}
	for i, c := range clouds {
		if c.Header.ScaleX != head.ScaleX || c.Header.ScaleY != head.ScaleY || c.Header.ScaleZ != head.ScaleZ ||
			c.Header.OffsetX != head.OffsetX || c.Header.OffsetY != head.OffsetY || c.Header.OffsetZ != head.OffsetZ {
			return nil, fmt.Errorf("lasio: cannot merge cloud %d, scale/offset mismatch", i)
		}
		out.Points = append(out.Points, c.Points...)
	}
	out.recomputeBounds()
	return out, nil
}

func (pc *PointCloud) recomputeBounds() {
	if len(pc.Points) == 0 {
		return
	}
	x, y, z := pc.X(), pc.Y(), pc.Z()
	pc.Header.MinX, pc.Header.MaxX = minMax(x)
	pc.Header.MinY, pc.Header.MaxY = minMax(y)
	pc.Header.MinZ, pc.Header.MaxZ = minMax(z)
}

func minMax(vals []float64) (min, max float64) {
	min, max = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return
}

// Encode serializes pc as a LAS 1.2 file: a 227-byte public header block
// followed by point data format 0 records. When compressed is true the
// point data section is gzip-framed and global encoding bit 0 (0x1) is set
// so a decoder knows to gunzip before parsing records; this is lasio's
// documented stand-in for LASzip, not a wire-compatible .laz file.
func Encode(pc *PointCloud, compressed bool) ([]byte, error) {
	recordData := make([]byte, 0, len(pc.Points)*pointRecordSize0)
	for _, p := range pc.Points {
		var rec [pointRecordSize0]byte
		binary.LittleEndian.PutUint32(rec[0:4], uint32(p.X))
		binary.LittleEndian.PutUint32(rec[4:8], uint32(p.Y))
		binary.LittleEndian.PutUint32(rec[8:12], uint32(p.Z))
		binary.LittleEndian.PutUint16(rec[12:14], p.Intensity)
		rec[14] = p.Flags
		rec[15] = p.Classification
		rec[16] = byte(p.ScanAngleRank)
		rec[17] = p.UserData
		binary.LittleEndian.PutUint16(rec[18:20], p.PointSourceID)
		recordData = append(recordData, rec[:]...)
	}

	if compressed {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(recordData); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		recordData = buf.Bytes()
	}

	header := make([]byte, headerSize)
	copy(header[0:4], fileSignature)
	header[24] = 1 // version major
	header[25] = 2 // version minor

	now := time.Now()
	binary.LittleEndian.PutUint16(header[90:92], uint16(now.YearDay()))
	binary.LittleEndian.PutUint16(header[92:94], uint16(now.Year()))
	binary.LittleEndian.PutUint16(header[94:96], uint16(headerSize))
	binary.LittleEndian.PutUint32(header[96:100], uint32(headerSize))
	binary.LittleEndian.PutUint32(header[100:104], 0) // no VLRs
	header[104] = 0
	binary.LittleEndian.PutUint16(header[105:107], pointRecordSize0)
	binary.LittleEndian.PutUint32(header[107:111], uint32(len(pc.Points)))

	writeF64(header, 131, pc.Header.ScaleX)
	writeF64(header, 139, pc.Header.ScaleY)
	writeF64(header, 147, pc.Header.ScaleZ)
	writeF64(header, 155, pc.Header.OffsetX)
	writeF64(header, 163, pc.Header.OffsetY)
	writeF64(header, 171, pc.Header.OffsetZ)
	writeF64(header, 179, pc.Header.MaxX)
	writeF64(header, 187, pc.Header.MinX)
	writeF64(header, 195, pc.Header.MaxY)
	writeF64(header, 203, pc.Header.MinY)
	writeF64(header, 211, pc.Header.MaxZ)
	writeF64(header, 219, pc.Header.MinZ)

	globalEncoding := uint16(0)
	if compressed {
		globalEncoding |= 0x1
	}
	binary.LittleEndian.PutUint16(header[6:8], globalEncoding)

	out := make([]byte, 0, len(header)+len(recordData))
	out = append(out, header...)
	out = append(out, recordData...)
	return out, nil
}

func writeF64(dst []byte, off int, v float64) {
	binary.LittleEndian.PutUint64(dst[off:off+8], math.Float64bits(v))
}
