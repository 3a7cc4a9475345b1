package geotiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/klauspost/compress/zlib"
)

// rawField is a SHORT or LONG field for hand-built test files
type rawField struct {
	tag    uint16
	long   bool
	values []uint32
}

// buildTIFF assembles a TIFF from integer fields and chunk payloads. The
// offsets field (strip or tile) is filled in automatically.
func buildTIFF(order binary.ByteOrder, fields []rawField, offsetsTag, countsTag uint16, chunks [][]byte) []byte {
	var body bytes.Buffer
	offsets := make([]uint32, len(chunks))
	counts := make([]uint32, len(chunks))
	for i, c := range chunks {
		offsets[i] = uint32(8 + body.Len())
		counts[i] = uint32(len(c))
		body.Write(c)
	}
	fields = append(fields,
		rawField{tag: offsetsTag, long: true, values: offsets},
		rawField{tag: countsTag, long: true, values: counts})
	sort.Slice(fields, func(i, j int) bool { return fields[i].tag < fields[j].tag })

	type placed struct {
		f   rawField
		off uint32
	}
	var out []placed
	for _, f := range fields {
		size := 2
		if f.long {
			size = 4
		}
		p := placed{f: f}
		if size*len(f.values) > 4 {
			if body.Len()%2 == 1 {
				body.WriteByte(0)
			}
			p.off = uint32(8 + body.Len())
			for _, v := range f.values {
				if f.long {
					binary.Write(&body, order, v)
				} else {
					binary.Write(&body, order, uint16(v))
				}
			}
		}
		out = append(out, p)
	}
	if body.Len()%2 == 1 {
		body.WriteByte(0)
	}

	var buf bytes.Buffer
	if order == binary.BigEndian {
		buf.WriteString("MM")
	} else {
		buf.WriteString("II")
	}
	binary.Write(&buf, order, uint16(42))
	binary.Write(&buf, order, uint32(8+body.Len()))
	buf.Write(body.Bytes())
	binary.Write(&buf, order, uint16(len(out)))
	for _, p := range out {
		typ := uint16(dtShort)
		if p.f.long {
			typ = dtLong
		}
		binary.Write(&buf, order, p.f.tag)
		binary.Write(&buf, order, typ)
		binary.Write(&buf, order, uint32(len(p.f.values)))
		field := make([]byte, 4)
		switch {
		case p.off != 0:
			order.PutUint32(field, p.off)
		case p.f.long:
			order.PutUint32(field, p.f.values[0])
		default:
			for i, v := range p.f.values {
				order.PutUint16(field[i*2:], uint16(v))
			}
		}
		buf.Write(field)
	}
	binary.Write(&buf, order, uint32(0))
	return buf.Bytes()
}

func short(tag uint16, v ...uint32) rawField { return rawField{tag: tag, values: v} }

// TestEncodeDecodeRoundTrip verifies float rasters survive with no-data and georeferencing
func TestEncodeDecodeRoundTrip(t *testing.T) {
	noData := -9999.0
	src := &Raster{
		Width:  5,
		Height: 3,
		Data:   make([]float64, 15),
		NoData: &noData,
		Geo:    &GeoReference{OriginX: 500000, OriginY: 4200000, PixelWidth: 30, PixelHeight: 30},
	}
	for i := range src.Data {
		src.Data[i] = float64(i)*1.5 - 4
	}
	src.Data[7] = noData

	for _, compression := range []int{CompressionNone, CompressionDeflate} {
		var buf bytes.Buffer
		if err := Encode(&buf, src, &EncodeOptions{Compression: compression}); err != nil {
			t.Fatalf("Encode (compression %d) failed: %v", compression, err)
		}

		got, err := Decode(buf.Bytes())
		if err != nil {
			t.Fatalf("Decode (compression %d) failed: %v", compression, err)
		}
		if got.Width != 5 || got.Height != 3 {
			t.Fatalf("Expected 5x3, got %dx%d", got.Width, got.Height)
		}
		for i, v := range src.Data {
			if got.Data[i] != v {
				t.Errorf("Sample %d: expected %v, got %v", i, v, got.Data[i])
			}
		}
		if got.NoData == nil || *got.NoData != noData {
			t.Errorf("Expected no-data %v, got %v", noData, got.NoData)
		}
		if got.Geo == nil || *got.Geo != *src.Geo {
			t.Errorf("Expected georeference %+v, got %+v", src.Geo, got.Geo)
		}
	}
}

func TestEncodeRejectsMismatchedData(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, &Raster{Width: 2, Height: 2, Data: []float64{1, 2, 3}}, nil)
	if err == nil {
		t.Error("Expected error for raster with wrong sample count")
	}
}

// TestDecodeBigEndianInt16Predictor verifies MM files, signed samples and
// horizontal differencing across multiple strips
func TestDecodeBigEndianInt16Predictor(t *testing.T) {
	order := binary.BigEndian
	want := [][]int16{
		{10, 12, 9, -4},
		{-100, -90, -80, -70},
		{0, 1, 0, 1},
	}

	var chunks [][]byte
	for r := 0; r < 3; r += 2 {
		var strip bytes.Buffer
		for rr := r; rr < r+2 && rr < 3; rr++ {
			prev := int16(0)
			for c, v := range want[rr] {
				diff := v
				if c > 0 {
					diff = v - prev
				}
				binary.Write(&strip, order, diff)
				prev = v
			}
		}
		chunks = append(chunks, strip.Bytes())
	}

	data := buildTIFF(order, []rawField{
		short(tagImageWidth, 4),
		short(tagImageLength, 3),
		short(tagBitsPerSample, 16),
		short(tagCompression, CompressionNone),
		short(tagRowsPerStrip, 2),
		short(tagPredictor, 2),
		short(tagSampleFormat, sampleFormatInt),
	}, tagStripOffsets, tagStripByteCounts, chunks)

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	for r := range want {
		for c := range want[r] {
			if got.At(r, c) != float64(want[r][c]) {
				t.Errorf("(%d,%d): expected %d, got %v", r, c, want[r][c], got.At(r, c))
			}
		}
	}
	if got.NoData != nil {
		t.Errorf("Expected no declared no-data, got %v", *got.NoData)
	}
}

// TestDecodeTiledPackBits verifies tile assembly, edge padding and PackBits runs
func TestDecodeTiledPackBits(t *testing.T) {
	// 3x3 image in 2x2 tiles of uint8; each tile is a single repeated value
	var chunks [][]byte
	for _, v := range []byte{1, 2, 3, 4} {
		// run of 4 bytes: header -3 then the value
		chunks = append(chunks, []byte{0xFD, v})
	}
	data := buildTIFF(binary.LittleEndian, []rawField{
		short(tagImageWidth, 3),
		short(tagImageLength, 3),
		short(tagBitsPerSample, 8),
		short(tagCompression, CompressionPackBits),
		short(tagTileWidth, 2),
		short(tagTileLength, 2),
	}, tagTileOffsets, tagTileByteCounts, chunks)

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []float64{
		1, 1, 2,
		1, 1, 2,
		3, 3, 4,
	}
	for i, v := range want {
		if got.Data[i] != v {
			t.Errorf("Sample %d: expected %v, got %v", i, v, got.Data[i])
		}
	}
}

func TestDecodeFloatingPointPredictor(t *testing.T) {
	values := []float32{1.5, -2.25, 1e6}
	width := len(values)

	// Forward predictor 3: split bytes into big-endian planes, then difference
	plane := make([]byte, 4*width)
	for i, v := range values {
		bits := math.Float32bits(v)
		for b := 0; b < 4; b++ {
			plane[b*width+i] = byte(bits >> (24 - 8*b))
		}
	}
	encoded := make([]byte, len(plane))
	encoded[0] = plane[0]
	for i := 1; i < len(plane); i++ {
		encoded[i] = plane[i] - plane[i-1]
	}

	data := buildTIFF(binary.LittleEndian, []rawField{
		short(tagImageWidth, uint32(width)),
		short(tagImageLength, 1),
		short(tagBitsPerSample, 32),
		short(tagPredictor, 3),
		short(tagSampleFormat, sampleFormatFloat),
	}, tagStripOffsets, tagStripByteCounts, [][]byte{encoded})

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	for i, v := range values {
		if got.Data[i] != float64(v) {
			t.Errorf("Sample %d: expected %v, got %v", i, v, got.Data[i])
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte("not a tiff at all")); err != ErrNotTIFF {
		t.Errorf("Expected ErrNotTIFF, got %v", err)
	}
	if _, err := Decode([]byte{'I', 'I', 43, 0, 8, 0, 0, 0}); err != ErrBigTIFF {
		t.Errorf("Expected ErrBigTIFF, got %v", err)
	}
	if _, err := Decode([]byte{'I', 'I', 42, 0, 0xFF, 0xFF, 0, 0}); err == nil {
		t.Error("Expected error for IFD offset past end of file")
	}

	data := buildTIFF(binary.LittleEndian, []rawField{
		short(tagImageWidth, 1),
		short(tagImageLength, 1),
		short(tagBitsPerSample, 8),
		short(tagCompression, 7),
	}, tagStripOffsets, tagStripByteCounts, [][]byte{{0}})
	_, err := Decode(data)
	var unsupported UnsupportedError
	if !errors.As(err, &unsupported) {
		t.Errorf("Expected UnsupportedError for JPEG compression, got %v", err)
	}
}

// TestDecodeRejectsOversizedDimensions verifies header sizes are bounded
// before anything is allocated
func TestDecodeRejectsOversizedDimensions(t *testing.T) {
	long := func(tag uint16, v uint32) rawField { return rawField{tag: tag, long: true, values: []uint32{v}} }

	tests := []struct {
		name       string
		fields     []rawField
		offsetsTag uint16
		countsTag  uint16
	}{
		{
			name: "image overflowing int",
			fields: []rawField{
				long(tagImageWidth, 0xFFFFFFFF),
				long(tagImageLength, 0xFFFFFFFF),
				short(tagBitsPerSample, 8),
			},
			offsetsTag: tagStripOffsets,
			countsTag:  tagStripByteCounts,
		},
		{
			name: "image above pixel limit",
			fields: []rawField{
				long(tagImageWidth, 1<<16),
				long(tagImageLength, 1<<12),
				short(tagBitsPerSample, 8),
			},
			offsetsTag: tagStripOffsets,
			countsTag:  tagStripByteCounts,
		},
		{
			name: "tile above pixel limit",
			fields: []rawField{
				short(tagImageWidth, 4),
				short(tagImageLength, 4),
				short(tagBitsPerSample, 8),
				short(tagTileWidth, 0xFFFF),
				short(tagTileLength, 0xFFFF),
			},
			offsetsTag: tagTileOffsets,
			countsTag:  tagTileByteCounts,
		},
		{
			name: "tile above chunk byte limit",
			fields: []rawField{
				short(tagImageWidth, 4),
				short(tagImageLength, 4),
				short(tagBitsPerSample, 64),
				short(tagSamplesPerPixel, 4),
				short(tagTileWidth, 1<<13),
				short(tagTileLength, 1<<13),
			},
			offsetsTag: tagTileOffsets,
			countsTag:  tagTileByteCounts,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildTIFF(binary.LittleEndian, tt.fields, tt.offsetsTag, tt.countsTag, [][]byte{{0}})
			_, err := Decode(data)
			if !errors.Is(err, ErrTooLarge) {
				t.Errorf("Expected ErrTooLarge, got %v", err)
			}
		})
	}
}

// TestDecodeShortDeflateChunk verifies a compressed chunk that claims more
// data than it holds is reported as corrupt
func TestDecodeShortDeflateChunk(t *testing.T) {
	var buf bytes.Buffer
	src := &Raster{Width: 2, Height: 2, Data: []float64{1, 2, 3, 4}}
	if err := Encode(&buf, src, &EncodeOptions{Compression: CompressionDeflate}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	good := buf.Bytes()

	var zbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	zw.Write([]byte{1, 2, 3})
	zw.Close()

	data := buildTIFF(binary.LittleEndian, []rawField{
		short(tagImageWidth, 2000),
		short(tagImageLength, 2000),
		short(tagBitsPerSample, 32),
		short(tagSampleFormat, sampleFormatFloat),
		short(tagCompression, CompressionDeflate),
	}, tagStripOffsets, tagStripByteCounts, [][]byte{zbuf.Bytes()})
	if _, err := Decode(data); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt, got %v", err)
	}
	if _, err := Decode(good); err != nil {
		t.Errorf("Valid deflate raster failed to decode: %v", err)
	}
}
