// Package segy reads and writes SEG-Y seismic volumes with fixed-length
// traces. Files open either geometry-aware, where inline/crossline numbers
// from the trace headers must form a regular sorted grid, or ignoring
// geometry, where only individual traces can be read.
package segy

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"

	"seisterrain3d/internal/binio"
)

// Layout sizes in bytes
const (
	TextHeaderSize   = 3200
	BinaryHeaderSize = 400
	TraceHeaderSize  = 240
)

// Default 1-based trace header byte positions of the line numbers
const (
	DefaultInlineByte    = 189
	DefaultCrosslineByte = 193
)

// Sample formats
const (
	FormatIBMFloat  = 1
	FormatInt32     = 2
	FormatInt16     = 3
	FormatIEEEFloat = 5
	FormatInt8      = 8
)

var (
	// ErrCorrupt is returned when the file size does not match its headers
	ErrCorrupt = errors.New("segy: corrupt file")

	// ErrInconsistentGeometry is returned when line numbers do not form a
	// regular grid
	ErrInconsistentGeometry = errors.New("segy: inconsistent inline/crossline geometry")

	// ErrNoGeometry is returned by line reads on files opened ignoring geometry
	ErrNoGeometry = errors.New("segy: file opened without geometry")

	// ErrOutOfRange is returned for line, trace or sample positions outside the volume
	ErrOutOfRange = errors.New("segy: position out of range")
)

// UnsupportedFormatError reports an unknown sample format code
type UnsupportedFormatError int

func (e UnsupportedFormatError) Error() string {
	return fmt.Sprintf("segy: unsupported sample format %d", int(e))
}

func bytesPerSample(format int) (int, error) {
	switch format {
	case FormatIBMFloat, FormatInt32, FormatIEEEFloat:
		return 4, nil
	case FormatInt16:
		return 2, nil
	case FormatInt8:
		return 1, nil
	}
	return 0, UnsupportedFormatError(format)
}

// Options controls Open
type Options struct {
	// IgnoreGeometry skips line-number inference; only Trace works
	IgnoreGeometry bool

	// InlineByte, CrosslineByte are 1-based trace header positions;
	// zero selects the defaults
	InlineByte    int
	CrosslineByte int
}

func (o Options) withDefaults() Options {
	if o.InlineByte == 0 {
		o.InlineByte = DefaultInlineByte
	}
	if o.CrosslineByte == 0 {
		o.CrosslineByte = DefaultCrosslineByte
	}
	return o
}

// BinaryHeader holds the fields of the binary file header this package uses
type BinaryHeader struct {
	SampleInterval  int // microseconds
	SamplesPerTrace int
	Format          int
	Revision        int
	ExtendedHeaders int
}

// File is an open SEG-Y volume. Every array it returns is freshly
// allocated and stays valid after Close.
type File struct {
	f     *os.File
	order binary.ByteOrder
	opts  Options

	// Text is the textual header decoded to ASCII
	Text string

	Binary BinaryHeader

	dataStart      int64
	traceSize      int64
	traceCount     int
	bytesPerSample int

	geometry *Geometry
}

// Open opens the volume at path
func Open(path string, opts Options) (*File, error) {
	opts = opts.withDefaults()
	for _, b := range []int{opts.InlineByte, opts.CrosslineByte} {
		if b < 1 || b+3 > TraceHeaderSize {
			return nil, errors.Errorf("segy: header byte %d outside the trace header", b)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	sf := &File{f: f, opts: opts}
	if err := sf.readHeaders(); err != nil {
		f.Close()
		return nil, err
	}
	if !opts.IgnoreGeometry {
		if sf.geometry, err = sf.inferGeometry(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return sf, nil
}

// Close releases the underlying file
func (sf *File) Close() error {
	return sf.f.Close()
}

func (sf *File) readHeaders() error {
	head := make([]byte, TextHeaderSize+BinaryHeaderSize)
	if _, err := io.ReadFull(io.NewSectionReader(sf.f, 0, int64(len(head))), head); err != nil {
		return errors.Wrapf(ErrCorrupt, "short file header: %v", err)
	}
	sf.Text = decodeText(head[:TextHeaderSize])

	sf.order = binary.BigEndian
	r := binio.NewReader(head, sf.order)
	format, _ := r.Int16At(3224)
	if _, err := bytesPerSample(int(format)); err != nil {
		le := binio.NewReader(head, binary.LittleEndian)
		leFormat, _ := le.Int16At(3224)
		if _, leErr := bytesPerSample(int(leFormat)); leErr != nil {
			return err
		}
		sf.order = binary.LittleEndian
		r = le
	}

	interval, _ := r.Int16At(3216)
	samples, _ := r.Int16At(3220)
	format, _ = r.Int16At(3224)
	revision, _ := r.Int16At(3500)
	extended, _ := r.Int16At(3504)

	sf.Binary = BinaryHeader{
		SampleInterval:  int(uint16(interval)),
		SamplesPerTrace: int(uint16(samples)),
		Format:          int(format),
		Revision:        int(uint16(revision)),
		ExtendedHeaders: int(extended),
	}
	if sf.Binary.ExtendedHeaders < 0 {
		// -1 means a variable number; only fixed counts are supported
		return errors.Wrap(ErrCorrupt, "variable extended header count")
	}
	sf.bytesPerSample, _ = bytesPerSample(sf.Binary.Format)
	sf.dataStart = int64(TextHeaderSize + BinaryHeaderSize + sf.Binary.ExtendedHeaders*TextHeaderSize)

	if sf.Binary.SamplesPerTrace == 0 {
		// Fall back to the first trace header's sample count
		th := make([]byte, TraceHeaderSize)
		if _, err := sf.f.ReadAt(th, sf.dataStart); err != nil {
			return errors.Wrapf(ErrCorrupt, "no samples per trace: %v", err)
		}
		n, _ := binio.NewReader(th, sf.order).Int16At(114)
		sf.Binary.SamplesPerTrace = int(uint16(n))
	}
	if sf.Binary.SamplesPerTrace == 0 {
		return errors.Wrap(ErrCorrupt, "zero samples per trace")
	}

	info, err := sf.f.Stat()
	if err != nil {
		return err
	}
	sf.traceSize = int64(TraceHeaderSize + sf.Binary.SamplesPerTrace*sf.bytesPerSample)
	payload := info.Size() - sf.dataStart
	if payload <= 0 || payload%sf.traceSize != 0 {
		return errors.Wrapf(ErrCorrupt, "%d trace bytes is not a multiple of trace size %d", payload, sf.traceSize)
	}
	sf.traceCount = int(payload / sf.traceSize)
	return nil
}

// decodeText converts the textual header from EBCDIC unless it is already ASCII
func decodeText(b []byte) string {
	// Headers start with 'C' card labels: 0x43 in ASCII, 0xC3 in EBCDIC
	if len(b) > 0 && b[0] == 0xC3 {
		if s, err := charmap.CodePage037.NewDecoder().Bytes(b); err == nil {
			return strings.TrimRight(string(s), " \x00")
		}
	}
	return strings.TrimRight(string(b), " \x00")
}

// TraceCount returns the number of traces in the file
func (sf *File) TraceCount() int {
	return sf.traceCount
}

// Samples returns the number of samples per trace
func (sf *File) Samples() int {
	return sf.Binary.SamplesPerTrace
}

// ByteOrder returns the detected byte order
func (sf *File) ByteOrder() binary.ByteOrder {
	return sf.order
}

// Geometry returns the inferred line geometry, nil when opened ignoring it
func (sf *File) Geometry() *Geometry {
	return sf.geometry
}

// Summary describes the volume in one line
func (sf *File) Summary() string {
	s := fmt.Sprintf("%d traces x %d samples @ %dus, format %d, %v",
		sf.traceCount, sf.Binary.SamplesPerTrace, sf.Binary.SampleInterval, sf.Binary.Format, sf.order)
	if g := sf.geometry; g != nil {
		s += fmt.Sprintf(", %d inlines x %d crosslines (%s)", len(g.Inlines), len(g.Crosslines), g.Sorting)
	}
	return s
}

func (sf *File) traceOffset(t int) int64 {
	return sf.dataStart + int64(t)*sf.traceSize
}

// traceHeader reads the raw 240-byte header of trace t
func (sf *File) traceHeader(t int) (*binio.Reader, error) {
	buf := make([]byte, TraceHeaderSize)
	if _, err := sf.f.ReadAt(buf, sf.traceOffset(t)); err != nil {
		return nil, err
	}
	return binio.NewReader(buf, sf.order), nil
}

// Trace reads the samples of trace t
func (sf *File) Trace(t int) ([]float64, error) {
	if t < 0 || t >= sf.traceCount {
		return nil, errors.Wrapf(ErrOutOfRange, "trace %d of %d", t, sf.traceCount)
	}
	buf := make([]byte, sf.Binary.SamplesPerTrace*sf.bytesPerSample)
	if _, err := sf.f.ReadAt(buf, sf.traceOffset(t)+TraceHeaderSize); err != nil {
		return nil, err
	}
	out := make([]float64, sf.Binary.SamplesPerTrace)
	for i := range out {
		out[i] = sf.decodeSample(buf[i*sf.bytesPerSample:])
	}
	return out, nil
}

// sampleAt reads sample s of trace t
func (sf *File) sampleAt(t, s int) (float64, error) {
	buf := make([]byte, sf.bytesPerSample)
	off := sf.traceOffset(t) + TraceHeaderSize + int64(s*sf.bytesPerSample)
	if _, err := sf.f.ReadAt(buf, off); err != nil {
		return 0, err
	}
	return sf.decodeSample(buf), nil
}

func (sf *File) decodeSample(b []byte) float64 {
	switch sf.Binary.Format {
	case FormatIBMFloat:
		return IBMToFloat(sf.order.Uint32(b))
	case FormatInt32:
		return float64(int32(sf.order.Uint32(b)))
	case FormatInt16:
		return float64(int16(sf.order.Uint16(b)))
	case FormatIEEEFloat:
		return float64(math.Float32frombits(sf.order.Uint32(b)))
	case FormatInt8:
		return float64(int8(b[0]))
	}
	return math.NaN()
}

// IBMToFloat converts an IBM System/360 single-precision float
func IBMToFloat(bits uint32) float64 {
	frac := bits & 0x00FFFFFF
	if frac == 0 {
		return 0
	}
	exp := int((bits >> 24) & 0x7F)
	v := math.Ldexp(float64(frac), 4*(exp-64)-24)
	if bits&0x80000000 != 0 {
		v = -v
	}
	return v
}

// FloatToIBM converts v to the nearest lower-magnitude IBM float
func FloatToIBM(v float64) uint32 {
	if v == 0 || math.IsNaN(v) {
		return 0
	}
	var sign uint32
	if v < 0 {
		sign = 0x80000000
		v = -v
	}
	frac, exp := math.Frexp(v) // v = frac * 2^exp, frac in [0.5, 1)

	// Round the binary exponent up to a multiple of four
	shift := (4 - exp%4) % 4
	if exp < 0 {
		shift = (-exp) % 4
	}
	frac = math.Ldexp(frac, -shift)
	hexExp := (exp+shift)/4 + 64

	if hexExp > 127 {
		return sign | 0x7FFFFFFF
	}
	if hexExp < 0 {
		return 0
	}
	return sign | uint32(hexExp)<<24 | uint32(frac*(1<<24))
}
