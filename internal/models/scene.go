package models

import (
	"gonum.org/v1/gonum/mat"
)

// SliceGeometry positions a slice in the terrain's coordinate frame.
// X, Y, Z and Color all share the slice's shape.
type SliceGeometry struct {
	X, Y, Z *mat.Dense

	// Color is the slice amplitude used as surface color
	Color *mat.Dense

	// Colorscale names the palette the amplitudes map through
	Colorscale string

	// CMin, CMax bound the color range; CMin is always -CMax
	CMin, CMax float64

	// ZBase is the elevation the slice plane is anchored to
	ZBase float64

	Kind     SliceKind
	Degraded bool
}

// Surface is one renderable 3D surface
type Surface struct {
	Name string

	X, Y, Z *mat.Dense

	// SurfaceColor overrides Z-based coloring when set
	SurfaceColor *mat.Dense

	Colorscale string
	Opacity    float64
	ShowScale  bool

	// HasColorRange enables CMin/CMax
	HasColorRange bool
	CMin, CMax    float64

	ColorbarTitle string
}

// Margin is the figure margin in pixels
type Margin struct {
	Left, Right, Bottom, Top int
}

// Layout is the display metadata handed to the renderer
type Layout struct {
	XAxisTitle string
	YAxisTitle string
	ZAxisTitle string

	// AspectMode "data" keeps true relative scale across axes
	AspectMode string

	Height int
	Margin Margin
}

// Scene is the ordered set of surfaces to render: terrain first, then the
// slice when one was available
type Scene struct {
	Surfaces []Surface
	Layout   Layout

	SliceAvailable bool
	SliceDegraded  bool
}
