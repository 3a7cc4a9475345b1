package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	"golang.org/x/image/tiff/lzw"
)

// chunkLayout describes how the band is split into strips or tiles
type chunkLayout struct {
	width, height int // chunk size in pixels
	across, down  int
	tiled         bool
	samples       int // interleaved samples per pixel inside a chunk
	offsets       []uint64
	counts        []uint64
}

func (d *decoder) layout() (*chunkLayout, error) {
	l := &chunkLayout{samples: d.samplesPerPixel}
	if d.planar == 2 {
		l.samples = 1
	}

	var ok bool
	if _, l.tiled = d.entries[tagTileWidth]; l.tiled {
		l.width = d.uint(tagTileWidth, 0)
		l.height = d.uint(tagTileLength, 0)
		if l.width <= 0 || l.height <= 0 {
			return nil, errors.Wrap(ErrCorrupt, "invalid tile size")
		}
		if l.width > MaxPixels/l.height {
			return nil, errors.Wrapf(ErrTooLarge, "%dx%d tiles", l.width, l.height)
		}
		l.offsets, ok = d.uints(tagTileOffsets)
		if !ok {
			return nil, errors.Wrap(ErrCorrupt, "missing tile offsets")
		}
		l.counts, ok = d.uints(tagTileByteCounts)
		if !ok {
			return nil, errors.Wrap(ErrCorrupt, "missing tile byte counts")
		}
	} else {
		l.width = d.width
		l.height = d.uint(tagRowsPerStrip, d.height)
		if l.height <= 0 || l.height > d.height {
			l.height = d.height
		}
		l.offsets, ok = d.uints(tagStripOffsets)
		if !ok {
			return nil, errors.Wrap(ErrCorrupt, "missing strip offsets")
		}
		l.counts, ok = d.uints(tagStripByteCounts)
		if !ok {
			return nil, errors.Wrap(ErrCorrupt, "missing strip byte counts")
		}
	}

	l.across = (d.width + l.width - 1) / l.width
	l.down = (d.height + l.height - 1) / l.height

	// Planar files store band 1 chunks first, so only those are needed
	needed := l.across * l.down
	if len(l.offsets) < needed || len(l.counts) < needed {
		return nil, errors.Wrapf(ErrCorrupt, "expected %d chunks, found %d", needed, len(l.offsets))
	}
	return l, nil
}

func (d *decoder) readBand() ([]float64, error) {
	l, err := d.layout()
	if err != nil {
		return nil, err
	}

	bytesPerSample := d.bitsPerSample / 8
	pixelBytes := l.samples * bytesPerSample
	if l.width*l.height > MaxChunkBytes/pixelBytes {
		return nil, errors.Wrapf(ErrTooLarge, "%d bytes per chunk", l.width*l.height*pixelBytes)
	}
	out := make([]float64, d.width*d.height)

	for c := 0; c < l.across*l.down; c++ {
		cx, cy := c%l.across, c/l.across

		rows := l.height
		if !l.tiled && (cy+1)*l.height > d.height {
			rows = d.height - cy*l.height
		}
		rowBytes := l.width * pixelBytes

		raw, err := d.r.Slice(int(l.offsets[c]), int(l.counts[c]))
		if err != nil {
			return nil, errors.Wrapf(ErrCorrupt, "chunk %d out of range", c)
		}
		buf, err := d.decompress(raw, rows*rowBytes)
		if err != nil {
			return nil, errors.Wrapf(err, "chunk %d", c)
		}

		order := d.r.Order()
		switch d.predictor {
		case 2:
			for row := 0; row < rows; row++ {
				undoHorizontalDifferencing(buf[row*rowBytes:(row+1)*rowBytes], l.samples, bytesPerSample, order)
			}
		case 3:
			for row := 0; row < rows; row++ {
				undoFloatingPointPredictor(buf[row*rowBytes:(row+1)*rowBytes], l.samples, bytesPerSample)
			}
			order = binary.BigEndian
		}

		for row := 0; row < rows; row++ {
			y := cy*l.height + row
			if y >= d.height {
				break
			}
			for col := 0; col < l.width; col++ {
				x := cx*l.width + col
				if x >= d.width {
					break
				}
				off := row*rowBytes + col*pixelBytes
				out[y*d.width+x] = d.sample(buf[off:off+bytesPerSample], order)
			}
		}
	}
	return out, nil
}

func (d *decoder) decompress(raw []byte, size int) ([]byte, error) {
	var rd io.Reader
	switch d.compression {
	case CompressionNone:
		if len(raw) < size {
			return nil, errors.Wrap(ErrCorrupt, "short uncompressed chunk")
		}
		buf := make([]byte, size)
		copy(buf, raw)
		return buf, nil
	case CompressionLZW:
		lr := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		defer lr.Close()
		rd = lr
	case CompressionDeflate, compressionDeflateOld:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, errors.Wrapf(ErrCorrupt, "%v", err)
		}
		defer zr.Close()
		rd = zr
	case CompressionPackBits:
		return unpackBits(raw, size)
	default:
		return nil, UnsupportedError(fmt.Sprintf("compression %d", d.compression))
	}

	// Read at most size bytes, growing with the stream
	buf, err := io.ReadAll(io.LimitReader(rd, int64(size)))
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "%v", err)
	}
	if len(buf) < size {
		return nil, errors.Wrapf(ErrCorrupt, "chunk decompressed to %d of %d bytes", len(buf), size)
	}
	return buf, nil
}

// unpackBits decodes Apple PackBits run-length encoding
func unpackBits(src []byte, size int) ([]byte, error) {
	// A two-byte PackBits run expands to at most 128 bytes
	dst := make([]byte, 0, min(size, 64*len(src)))
	for i := 0; i < len(src) && len(dst) < size; {
		n := int(int8(src[i]))
		i++
		switch {
		case n >= 0:
			if i+n+1 > len(src) {
				return nil, errors.Wrap(ErrCorrupt, "truncated PackBits literal")
			}
			dst = append(dst, src[i:i+n+1]...)
			i += n + 1
		case n != -128:
			if i >= len(src) {
				return nil, errors.Wrap(ErrCorrupt, "truncated PackBits run")
			}
			for j := 0; j < 1-n; j++ {
				dst = append(dst, src[i])
			}
			i++
		}
	}
	if len(dst) < size {
		return nil, errors.Wrap(ErrCorrupt, "short PackBits chunk")
	}
	return dst[:size], nil
}

// undoHorizontalDifferencing reverses predictor 2 on one row in place
func undoHorizontalDifferencing(row []byte, stride, width int, order binary.ByteOrder) {
	n := len(row) / width
	for i := stride; i < n; i++ {
		cur := row[i*width : (i+1)*width]
		prev := row[(i-stride)*width : (i-stride+1)*width]
		switch width {
		case 1:
			cur[0] += prev[0]
		case 2:
			order.PutUint16(cur, order.Uint16(cur)+order.Uint16(prev))
		case 4:
			order.PutUint32(cur, order.Uint32(cur)+order.Uint32(prev))
		case 8:
			order.PutUint64(cur, order.Uint64(cur)+order.Uint64(prev))
		}
	}
}

// undoFloatingPointPredictor reverses predictor 3 on one row in place.
// The row comes out with every sample in big-endian byte order.
func undoFloatingPointPredictor(row []byte, stride, width int) {
	for i := stride; i < len(row); i++ {
		row[i] += row[i-stride]
	}
	tmp := make([]byte, len(row))
	copy(tmp, row)
	wc := len(row) / width
	for count := 0; count < wc; count++ {
		for b := 0; b < width; b++ {
			row[width*count+b] = tmp[b*wc+count]
		}
	}
}

func (d *decoder) sample(b []byte, order binary.ByteOrder) float64 {
	switch d.sampleFormat {
	case sampleFormatFloat:
		if d.bitsPerSample == 32 {
			return float64(math.Float32frombits(order.Uint32(b)))
		}
		return math.Float64frombits(order.Uint64(b))
	case sampleFormatInt:
		switch d.bitsPerSample {
		case 8:
			return float64(int8(b[0]))
		case 16:
			return float64(int16(order.Uint16(b)))
		case 32:
			return float64(int32(order.Uint32(b)))
		default:
			return float64(int64(order.Uint64(b)))
		}
	default:
		switch d.bitsPerSample {
		case 8:
			return float64(b[0])
		case 16:
			return float64(order.Uint16(b))
		case 32:
			return float64(order.Uint32(b))
		default:
			return float64(order.Uint64(b))
		}
	}
}
