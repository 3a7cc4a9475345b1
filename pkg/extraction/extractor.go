// Package extraction cuts one 2D amplitude slice out of a SEG-Y volume.
//
// Extraction first reads the volume with its inline/crossline geometry. When
// that fails it falls back to a single trace replicated into a pseudo
// section, and when that fails too it reports the slice as unavailable.
// The outcome is always a tagged models.ExtractionResult, never an error.
package extraction

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/mat"

	"seisterrain3d/internal/models"
	"seisterrain3d/pkg/config"
	"seisterrain3d/pkg/segy"
)

// DegradedReplicationWidth is the number of identical columns a degraded
// slice repeats its single trace into
const DegradedReplicationWidth = 100

var log = config.NamedLogger("extraction")

// Clamp limits v to [lo, hi]
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Extractor reads slices from volume files. It holds no open handles
// between calls.
type Extractor struct {
	opts segy.Options
}

// NewExtractor returns an extractor reading line numbers at the header
// positions in opts
func NewExtractor(opts segy.Options) *Extractor {
	opts.IgnoreGeometry = false
	return &Extractor{opts: opts}
}

// Extract reads the slice of the given kind at index. Out-of-range indices
// are clamped to the nearest valid position.
func (e *Extractor) Extract(path string, kind models.SliceKind, index int) models.ExtractionResult {
	slice, err := e.standard(path, kind, index)
	if err == nil {
		return models.ExtractionResult{Status: models.Standard, Slice: slice}
	}
	log.Warnf("Geometry-aware read of %s failed, trying single trace: %v", path, err)

	slice, derr := e.degraded(path, kind, index)
	if derr == nil {
		return models.ExtractionResult{
			Status: models.Degraded,
			Slice:  slice,
			Reason: fmt.Sprintf("volume geometry unavailable (%v); slice approximated from trace %d", err, slice.Index),
		}
	}
	log.Errorf("No slice available from %s: %v", path, derr)

	return models.ExtractionResult{
		Status: models.Unavailable,
		Reason: fmt.Sprintf("standard read failed: %v; single-trace read failed: %v", err, derr),
	}
}

// Extent is the range a slice index is clamped into, and the mode an
// extraction of that kind will take
type Extent struct {
	Status models.ExtractionStatus

	// Count is the number of valid positions, zero when Unavailable
	Count int
}

// Clamp maps a requested index onto the extent
func (x Extent) Clamp(index int) int {
	if x.Count < 1 {
		return 0
	}
	return Clamp(index, 0, x.Count-1)
}

// Extent reads the volume headers and reports where Extract would clamp an
// index of the given kind. Extract(path, kind, x.Clamp(i)) returns the same
// result as Extract(path, kind, i).
func (e *Extractor) Extent(path string, kind models.SliceKind) Extent {
	if n, err := e.standardExtent(path, kind); err == nil {
		return Extent{Status: models.Standard, Count: n}
	}

	opts := e.opts
	opts.IgnoreGeometry = true
	f, err := segy.Open(path, opts)
	if err != nil {
		return Extent{Status: models.Unavailable}
	}
	defer f.Close()
	return Extent{Status: models.Degraded, Count: f.TraceCount()}
}

func (e *Extractor) standardExtent(path string, kind models.SliceKind) (int, error) {
	f, err := segy.Open(path, e.opts)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return positions(f, kind)
}

// positions is the number of slices of the given kind in a volume with
// geometry
func positions(f *segy.File, kind models.SliceKind) (int, error) {
	g := f.Geometry()
	switch kind {
	case models.Inline:
		return len(g.Inlines), nil
	case models.Crossline:
		return len(g.Crosslines), nil
	case models.TimeSlice:
		return f.Samples(), nil
	}
	return 0, errors.Errorf("unknown slice kind %v", kind)
}

func (e *Extractor) standard(path string, kind models.SliceKind, index int) (*models.VolumeSlice, error) {
	f, err := segy.Open(path, e.opts)
	if err != nil {
		return nil, errors.Wrap(err, "open with geometry")
	}
	defer f.Close()
	log.Debugf("Opened %s: %s", path, f.Summary())

	count, err := positions(f, kind)
	if err != nil {
		return nil, err
	}

	var raw *mat.Dense
	pos := Clamp(index, 0, count-1)
	if pos != index {
		log.Debugf("%s index %d clamped to %d", kind, index, pos)
	}

	switch kind {
	case models.Inline:
		raw, err = f.Inline(pos)
	case models.Crossline:
		raw, err = f.Crossline(pos)
	case models.TimeSlice:
		raw, err = f.DepthSlice(pos)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s %d", kind, pos)
	}

	values := mat.DenseCopyOf(raw.T())
	sanitize(values)
	return &models.VolumeSlice{Values: values, Kind: kind, Index: pos}, nil
}

func (e *Extractor) degraded(path string, kind models.SliceKind, index int) (*models.VolumeSlice, error) {
	opts := e.opts
	opts.IgnoreGeometry = true

	f, err := segy.Open(path, opts)
	if err != nil {
		return nil, errors.Wrap(err, "open ignoring geometry")
	}
	defer f.Close()

	t := Clamp(index, 0, f.TraceCount()-1)
	trace, err := f.Trace(t)
	if err != nil {
		return nil, errors.Wrapf(err, "read trace %d", t)
	}

	values := mat.NewDense(len(trace), DegradedReplicationWidth, nil)
	for c := 0; c < DegradedReplicationWidth; c++ {
		values.SetCol(c, trace)
	}
	sanitize(values)
	return &models.VolumeSlice{Values: values, Kind: kind, Index: t, Degraded: true}, nil
}

// sanitize replaces non-finite samples with 0
func sanitize(m *mat.Dense) {
	m.Apply(func(_, _ int, v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}, m)
}
