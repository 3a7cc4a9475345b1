package segy

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// TraceRecord is one trace to write
type TraceRecord struct {
	Inline    int
	Crossline int
	Samples   []float64
}

// WriteOptions controls Write and WriteGrid
type WriteOptions struct {
	// Format is FormatIEEEFloat (default) or FormatIBMFloat
	Format int

	// SampleInterval in microseconds, default 4000
	SampleInterval int

	// Order defaults to big-endian
	Order binary.ByteOrder

	// Text is placed in the textual header as 80-column cards
	Text string

	InlineByte    int
	CrosslineByte int
}

func (o *WriteOptions) withDefaults() WriteOptions {
	out := WriteOptions{}
	if o != nil {
		out = *o
	}
	if out.Format == 0 {
		out.Format = FormatIEEEFloat
	}
	if out.SampleInterval == 0 {
		out.SampleInterval = 4000
	}
	if out.Order == nil {
		out.Order = binary.BigEndian
	}
	if out.InlineByte == 0 {
		out.InlineByte = DefaultInlineByte
	}
	if out.CrosslineByte == 0 {
		out.CrosslineByte = DefaultCrosslineByte
	}
	return out
}

// Write stores traces in order. All traces must have the same sample count.
func Write(path string, traces []TraceRecord, opts *WriteOptions) error {
	o := opts.withDefaults()
	if o.Format != FormatIEEEFloat && o.Format != FormatIBMFloat {
		return UnsupportedFormatError(o.Format)
	}
	if len(traces) == 0 {
		return errors.New("segy: no traces to write")
	}
	ns := len(traces[0].Samples)
	if ns == 0 || ns > math.MaxUint16 {
		return errors.Errorf("segy: unsupported samples per trace %d", ns)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	if err := writeFileHeader(w, o, ns); err != nil {
		f.Close()
		return err
	}
	for t, tr := range traces {
		if len(tr.Samples) != ns {
			f.Close()
			return errors.Errorf("segy: trace %d has %d samples, expected %d", t, len(tr.Samples), ns)
		}
		if err := writeTrace(w, o, t, tr); err != nil {
			f.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteGrid stores a regular volume in the given sorting. amplitude receives
// inline and crossline positions and the sample index.
func WriteGrid(path string, g Geometry, samples int, amplitude func(il, xl, s int) float64, opts *WriteOptions) error {
	traces := make([]TraceRecord, 0, len(g.Inlines)*len(g.Crosslines))
	add := func(i, j int) {
		tr := TraceRecord{Inline: g.Inlines[i], Crossline: g.Crosslines[j], Samples: make([]float64, samples)}
		for s := range tr.Samples {
			tr.Samples[s] = amplitude(i, j, s)
		}
		traces = append(traces, tr)
	}

	if g.Sorting == CrosslineSorted {
		for j := range g.Crosslines {
			for i := range g.Inlines {
				add(i, j)
			}
		}
	} else {
		for i := range g.Inlines {
			for j := range g.Crosslines {
				add(i, j)
			}
		}
	}
	return Write(path, traces, opts)
}

func writeFileHeader(w *bufio.Writer, o WriteOptions, ns int) error {
	text, err := textHeader(o.Text)
	if err != nil {
		return err
	}
	if _, err := w.Write(text); err != nil {
		return err
	}

	bin := make([]byte, BinaryHeaderSize)
	o.Order.PutUint16(bin[3216-TextHeaderSize:], uint16(o.SampleInterval))
	o.Order.PutUint16(bin[3220-TextHeaderSize:], uint16(ns))
	o.Order.PutUint16(bin[3224-TextHeaderSize:], uint16(o.Format))
	o.Order.PutUint16(bin[3500-TextHeaderSize:], 0x0100)
	o.Order.PutUint16(bin[3502-TextHeaderSize:], 1)
	_, err = w.Write(bin)
	return err
}

// textHeader lays out 40 EBCDIC cards of 80 columns
func textHeader(text string) ([]byte, error) {
	lines := strings.Split(text, "\n")
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		card := fmt.Sprintf("C%2d ", i+1)
		if i < len(lines) {
			card += lines[i]
		}
		if len(card) > 80 {
			card = card[:80]
		}
		sb.WriteString(card)
		sb.WriteString(strings.Repeat(" ", 80-len(card)))
	}
	return charmap.CodePage037.NewEncoder().Bytes([]byte(sb.String()))
}

func writeTrace(w *bufio.Writer, o WriteOptions, t int, tr TraceRecord) error {
	h := make([]byte, TraceHeaderSize)
	o.Order.PutUint32(h[0:], uint32(t+1))
	o.Order.PutUint16(h[114:], uint16(len(tr.Samples)))
	o.Order.PutUint16(h[116:], uint16(o.SampleInterval))
	o.Order.PutUint32(h[o.InlineByte-1:], uint32(int32(tr.Inline)))
	o.Order.PutUint32(h[o.CrosslineByte-1:], uint32(int32(tr.Crossline)))
	if _, err := w.Write(h); err != nil {
		return err
	}

	buf := make([]byte, 4*len(tr.Samples))
	for s, v := range tr.Samples {
		var bits uint32
		if o.Format == FormatIBMFloat {
			bits = FloatToIBM(v)
		} else {
			bits = math.Float32bits(float32(v))
		}
		o.Order.PutUint32(buf[4*s:], bits)
	}
	_, err := w.Write(buf)
	return err
}
