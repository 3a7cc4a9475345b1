package models

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// SliceKind is the orientation of a cut through a seismic volume
type SliceKind int

const (
	// TimeSlice is a horizontal cut at constant time/depth sample,
	// spanning both inline and crossline axes
	TimeSlice SliceKind = iota

	// Inline is a vertical section at one inline coordinate, exposing
	// crosslines and time
	Inline

	// Crossline is a vertical section at one crossline coordinate,
	// exposing inlines and time
	Crossline
)

// SliceKinds lists every recognised orientation in display order
var SliceKinds = []SliceKind{TimeSlice, Inline, Crossline}

func (k SliceKind) String() string {
	switch k {
	case TimeSlice:
		return "Time Slice"
	case Inline:
		return "Inline"
	case Crossline:
		return "Crossline"
	}
	return fmt.Sprintf("SliceKind(%d)", int(k))
}

// ParseSliceKind accepts the display names plus the usual short forms
// ("time", "iline", "xline"), ignoring case, spaces, dashes and underscores.
func ParseSliceKind(s string) (SliceKind, error) {
	norm := strings.ToLower(s)
	norm = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(norm)

	switch norm {
	case "timeslice", "time", "depthslice", "depth", "t":
		return TimeSlice, nil
	case "inline", "iline", "il", "i":
		return Inline, nil
	case "crossline", "xline", "xl", "x":
		return Crossline, nil
	}
	return TimeSlice, fmt.Errorf("unknown slice kind: %q (must be one of Time Slice, Inline, Crossline)", s)
}

// MarshalText implements encoding.TextMarshaler
func (k SliceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *SliceKind) UnmarshalText(text []byte) error {
	parsed, err := ParseSliceKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (k SliceKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (k *SliceKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return k.UnmarshalText([]byte(s))
}

// VolumeSlice is a 2D amplitude array cut from a seismic volume. Values
// never alias the volume file's storage.
type VolumeSlice struct {
	// Values holds the amplitudes, rows × cols
	Values *mat.Dense

	// Kind is the orientation the slice was taken along
	Kind SliceKind

	// Index is the position the slice was actually read at, after clamping.
	// For degraded slices it is the trace number.
	Index int

	// Degraded marks a slice synthesised from a single replicated trace
	// rather than read as a true cross-section
	Degraded bool
}

// Dims returns the slice's rows and columns
func (s *VolumeSlice) Dims() (rows, cols int) {
	return s.Values.Dims()
}

// ExtractionStatus tags the outcome of a slice extraction
type ExtractionStatus int

const (
	// Standard means the slice was read using the volume's geometry
	Standard ExtractionStatus = iota

	// Degraded means geometry could not be resolved and the slice was
	// approximated from a single trace
	Degraded

	// Unavailable means no slice could be produced
	Unavailable
)

func (s ExtractionStatus) String() string {
	switch s {
	case Standard:
		return "standard"
	case Degraded:
		return "degraded"
	case Unavailable:
		return "unavailable"
	}
	return fmt.Sprintf("ExtractionStatus(%d)", int(s))
}

// ExtractionResult is the tagged outcome of reading one slice.
// Slice is nil exactly when Status is Unavailable.
type ExtractionResult struct {
	Status ExtractionStatus
	Slice  *VolumeSlice

	// Reason explains a Degraded or Unavailable status
	Reason string
}

// Available reports whether the result carries a slice
func (r ExtractionResult) Available() bool {
	return r.Status != Unavailable && r.Slice != nil
}
