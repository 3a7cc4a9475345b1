package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// EncodeOptions controls Encode. A nil *EncodeOptions writes uncompressed.
type EncodeOptions struct {
	// Compression is CompressionNone or CompressionDeflate
	Compression int
}

type outEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// Encode writes r as a little-endian, single-strip float32 GeoTIFF,
// including the GDAL_NODATA tag and georeferencing when set
func Encode(w io.Writer, r *Raster, opts *EncodeOptions) error {
	if r.Width <= 0 || r.Height <= 0 || len(r.Data) != r.Width*r.Height {
		return errors.Errorf("geotiff: invalid raster %dx%d with %d samples", r.Width, r.Height, len(r.Data))
	}
	compression := CompressionNone
	if opts != nil && opts.Compression != 0 {
		compression = opts.Compression
	}

	order := binary.LittleEndian
	strip := make([]byte, 4*len(r.Data))
	for i, v := range r.Data {
		order.PutUint32(strip[i*4:], math.Float32bits(float32(v)))
	}

	switch compression {
	case CompressionNone:
	case CompressionDeflate:
		var zbuf bytes.Buffer
		zw := zlib.NewWriter(&zbuf)
		if _, err := zw.Write(strip); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		strip = zbuf.Bytes()
	default:
		return UnsupportedError(fmt.Sprintf("compression %d for writing", compression))
	}

	short := func(tag uint16, v uint16) outEntry {
		b := make([]byte, 2)
		order.PutUint16(b, v)
		return outEntry{tag: tag, typ: dtShort, count: 1, data: b}
	}
	long := func(tag uint16, v uint32) outEntry {
		b := make([]byte, 4)
		order.PutUint32(b, v)
		return outEntry{tag: tag, typ: dtLong, count: 1, data: b}
	}
	doubles := func(tag uint16, vs ...float64) outEntry {
		b := make([]byte, 8*len(vs))
		for i, v := range vs {
			order.PutUint64(b[i*8:], math.Float64bits(v))
		}
		return outEntry{tag: tag, typ: dtDouble, count: uint32(len(vs)), data: b}
	}

	const stripOffset = 8
	entries := []outEntry{
		long(tagImageWidth, uint32(r.Width)),
		long(tagImageLength, uint32(r.Height)),
		short(tagBitsPerSample, 32),
		short(tagCompression, uint16(compression)),
		short(tagPhotometric, 1),
		long(tagStripOffsets, stripOffset),
		short(tagSamplesPerPixel, 1),
		long(tagRowsPerStrip, uint32(r.Height)),
		long(tagStripByteCounts, uint32(len(strip))),
		short(tagPlanarConfig, 1),
		short(tagSampleFormat, sampleFormatFloat),
	}
	if r.Geo != nil {
		entries = append(entries,
			doubles(tagModelPixelScale, r.Geo.PixelWidth, r.Geo.PixelHeight, 0),
			doubles(tagModelTiepoint, 0, 0, 0, r.Geo.OriginX, r.Geo.OriginY, 0))
	}
	if r.NoData != nil {
		s := strconv.FormatFloat(*r.NoData, 'g', -1, 64) + "\x00"
		entries = append(entries, outEntry{tag: tagGDALNoData, typ: dtASCII, count: uint32(len(s)), data: []byte(s)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	var body bytes.Buffer
	body.Write(strip)
	pad := func() {
		if body.Len()%2 == 1 {
			body.WriteByte(0)
		}
	}
	pad()

	offsets := make([]uint32, len(entries))
	for i, e := range entries {
		if len(e.data) > 4 {
			offsets[i] = uint32(stripOffset + body.Len())
			body.Write(e.data)
			pad()
		}
	}
	ifdOffset := uint32(stripOffset + body.Len())

	var out bytes.Buffer
	out.WriteString("II")
	binary.Write(&out, order, uint16(42))
	binary.Write(&out, order, ifdOffset)
	out.Write(body.Bytes())

	binary.Write(&out, order, uint16(len(entries)))
	for i, e := range entries {
		binary.Write(&out, order, e.tag)
		binary.Write(&out, order, e.typ)
		binary.Write(&out, order, e.count)
		if len(e.data) > 4 {
			binary.Write(&out, order, offsets[i])
		} else {
			field := make([]byte, 4)
			copy(field, e.data)
			out.Write(field)
		}
	}
	binary.Write(&out, order, uint32(0))

	_, err := w.Write(out.Bytes())
	return err
}
