// Package geotiff decodes the first band of classic GeoTIFF rasters into
// float64 grids and encodes float32 rasters for fixtures and demo data.
//
// Supported on read: II/MM byte order, strips and tiles, chunky and planar
// layouts, 8/16/32/64-bit integer and float samples, no compression, LZW,
// Deflate and PackBits, horizontal (2) and floating-point (3) predictors,
// the GDAL_NODATA tag, and ModelPixelScale/ModelTiepoint georeferencing.
// BigTIFF is not supported.
package geotiff

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"seisterrain3d/internal/binio"
)

var (
	// ErrNotTIFF is returned when the header is not a TIFF header
	ErrNotTIFF = errors.New("geotiff: not a TIFF file")

	// ErrBigTIFF is returned for BigTIFF files
	ErrBigTIFF = errors.New("geotiff: BigTIFF is not supported")

	// ErrCorrupt is returned for structurally invalid files
	ErrCorrupt = errors.New("geotiff: corrupt file")

	// ErrTooLarge is returned when the image or one of its chunks exceeds
	// the decoder's size limits
	ErrTooLarge = errors.New("geotiff: image too large")
)

const (
	// MaxPixels bounds the decoded band and any single strip or tile
	MaxPixels = 1 << 27

	// MaxChunkBytes bounds the decompressed size of one strip or tile
	MaxChunkBytes = 1 << 30

	maxSamplesPerPixel = 64
)

// UnsupportedError reports a valid but unsupported TIFF feature
type UnsupportedError string

func (e UnsupportedError) Error() string {
	return "geotiff: unsupported " + string(e)
}

// TIFF tags read or written by this package
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGDALNoData      = 42113
)

// Compression schemes
const (
	CompressionNone       = 1
	CompressionLZW        = 5
	CompressionDeflate    = 8
	CompressionPackBits   = 32773
	compressionDeflateOld = 32946
)

// Sample formats
const (
	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3
)

// Field types
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndefined = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
)

var typeLengths = map[uint16]int{
	dtByte: 1, dtASCII: 1, dtShort: 2, dtLong: 4, dtRational: 8,
	dtSByte: 1, dtUndefined: 1, dtSShort: 2, dtSLong: 4, dtSRational: 8,
	dtFloat: 4, dtDouble: 8,
}

// GeoReference is the north-up placement carried by the pixel-scale and
// tiepoint tags
type GeoReference struct {
	OriginX, OriginY        float64
	PixelWidth, PixelHeight float64
}

// Raster is one decoded band
type Raster struct {
	Width, Height int

	// Data holds Height rows of Width samples, row-major
	Data []float64

	// NoData is the declared no-data value, if any
	NoData *float64

	// Geo is set when the file carries pixel-scale and tiepoint tags
	Geo *GeoReference
}

// At returns the sample at row, col
func (r *Raster) At(row, col int) float64 {
	return r.Data[row*r.Width+col]
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	// raw holds the value bytes, resolved from the offset when they
	// did not fit in the entry
	raw []byte
}

type decoder struct {
	r       *binio.Reader
	entries map[uint16]ifdEntry

	width, height   int
	bitsPerSample   int
	samplesPerPixel int
	sampleFormat    int
	compression     int
	predictor       int
	planar          int
}

// Decode parses data as a TIFF and returns its first band
func Decode(data []byte) (*Raster, error) {
	if len(data) < 8 {
		return nil, ErrNotTIFF
	}

	var order binary.ByteOrder
	switch string(data[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, ErrNotTIFF
	}

	d := &decoder{r: binio.NewReader(data, order)}
	if err := d.r.Skip(2); err != nil {
		return nil, ErrNotTIFF
	}
	magic, _ := d.r.ReadUint16()
	switch magic {
	case 42:
	case 43:
		return nil, ErrBigTIFF
	default:
		return nil, ErrNotTIFF
	}

	ifdOffset, err := d.r.ReadUint32()
	if err != nil {
		return nil, ErrCorrupt
	}
	if err := d.readIFD(int(ifdOffset)); err != nil {
		return nil, err
	}
	if err := d.parseLayout(); err != nil {
		return nil, err
	}

	raster := &Raster{Width: d.width, Height: d.height}
	raster.Data, err = d.readBand()
	if err != nil {
		return nil, err
	}
	raster.NoData = d.noData()
	raster.Geo = d.geoReference()
	return raster, nil
}

func (d *decoder) readIFD(offset int) error {
	if err := d.r.SetPos(offset); err != nil {
		return ErrCorrupt
	}
	n, err := d.r.ReadUint16()
	if err != nil {
		return ErrCorrupt
	}

	d.entries = make(map[uint16]ifdEntry, n)
	for i := 0; i < int(n); i++ {
		entryPos := offset + 2 + i*12
		if err := d.r.SetPos(entryPos); err != nil {
			return ErrCorrupt
		}
		tag, _ := d.r.ReadUint16()
		typ, _ := d.r.ReadUint16()
		count, err := d.r.ReadUint32()
		if err != nil {
			return ErrCorrupt
		}

		size, known := typeLengths[typ]
		if !known {
			// Unknown field types must be skipped per the TIFF spec
			continue
		}
		total := size * int(count)
		var raw []byte
		if total <= 4 {
			raw, err = d.r.Slice(entryPos+8, total)
		} else {
			var valueOffset uint32
			valueOffset, err = d.r.ReadUint32()
			if err == nil {
				raw, err = d.r.Slice(int(valueOffset), total)
			}
		}
		if err != nil {
			return errors.Wrapf(ErrCorrupt, "tag %d value out of range", tag)
		}
		d.entries[tag] = ifdEntry{tag: tag, typ: typ, count: count, raw: raw}
	}
	return nil
}

// uints returns an integer-typed field's values
func (d *decoder) uints(tag uint16) ([]uint64, bool) {
	e, ok := d.entries[tag]
	if !ok {
		return nil, false
	}
	order := d.r.Order()
	out := make([]uint64, e.count)
	for i := range out {
		switch e.typ {
		case dtByte, dtUndefined:
			out[i] = uint64(e.raw[i])
		case dtShort:
			out[i] = uint64(order.Uint16(e.raw[i*2:]))
		case dtLong:
			out[i] = uint64(order.Uint32(e.raw[i*4:]))
		default:
			return nil, false
		}
	}
	return out, true
}

func (d *decoder) uint(tag uint16, def int) int {
	v, ok := d.uints(tag)
	if !ok || len(v) == 0 {
		return def
	}
	return int(v[0])
}

func (d *decoder) doubles(tag uint16) ([]float64, bool) {
	e, ok := d.entries[tag]
	if !ok || e.typ != dtDouble {
		return nil, false
	}
	order := d.r.Order()
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(order.Uint64(e.raw[i*8:]))
	}
	return out, true
}

func (d *decoder) parseLayout() error {
	d.width = d.uint(tagImageWidth, 0)
	d.height = d.uint(tagImageLength, 0)
	if d.width <= 0 || d.height <= 0 {
		return errors.Wrap(ErrCorrupt, "missing image dimensions")
	}
	if d.width > MaxPixels/d.height {
		return errors.Wrapf(ErrTooLarge, "%dx%d pixels", d.width, d.height)
	}

	bits, ok := d.uints(tagBitsPerSample)
	if !ok || len(bits) == 0 {
		d.bitsPerSample = 1
	} else {
		d.bitsPerSample = int(bits[0])
	}
	switch d.bitsPerSample {
	case 8, 16, 32, 64:
	default:
		return UnsupportedError(fmt.Sprintf("bits per sample %d", d.bitsPerSample))
	}

	d.samplesPerPixel = d.uint(tagSamplesPerPixel, 1)
	d.sampleFormat = d.uint(tagSampleFormat, sampleFormatUint)
	d.compression = d.uint(tagCompression, CompressionNone)
	d.predictor = d.uint(tagPredictor, 1)
	d.planar = d.uint(tagPlanarConfig, 1)

	if d.samplesPerPixel < 1 || d.samplesPerPixel > maxSamplesPerPixel {
		return errors.Wrapf(ErrCorrupt, "samples per pixel %d", d.samplesPerPixel)
	}
	switch d.sampleFormat {
	case sampleFormatUint, sampleFormatInt:
	case sampleFormatFloat:
		if d.bitsPerSample != 32 && d.bitsPerSample != 64 {
			return UnsupportedError(fmt.Sprintf("%d-bit float samples", d.bitsPerSample))
		}
	default:
		return UnsupportedError(fmt.Sprintf("sample format %d", d.sampleFormat))
	}
	if d.planar != 1 && d.planar != 2 {
		return UnsupportedError(fmt.Sprintf("planar configuration %d", d.planar))
	}
	if d.predictor < 1 || d.predictor > 3 {
		return UnsupportedError(fmt.Sprintf("predictor %d", d.predictor))
	}
	return nil
}

// noData parses the GDAL_NODATA ASCII tag
func (d *decoder) noData() *float64 {
	e, ok := d.entries[tagGDALNoData]
	if !ok || e.typ != dtASCII {
		return nil
	}
	s := strings.TrimSpace(strings.TrimRight(string(e.raw), "\x00"))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (d *decoder) geoReference() *GeoReference {
	scale, ok := d.doubles(tagModelPixelScale)
	if !ok || len(scale) < 2 {
		return nil
	}
	tie, ok := d.doubles(tagModelTiepoint)
	if !ok || len(tie) < 6 {
		return nil
	}
	// Tiepoint is (I, J, K, X, Y, Z): raster point (I, J) sits at (X, Y)
	return &GeoReference{
		OriginX:     tie[3] - tie[0]*scale[0],
		OriginY:     tie[4] + tie[1]*scale[1],
		PixelWidth:  scale[0],
		PixelHeight: scale[1],
	}
}
