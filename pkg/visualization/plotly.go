package visualization

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"seisterrain3d/internal/models"
)

// Figure is a Plotly figure document
type Figure struct {
	Data   []Trace      `json:"data"`
	Layout FigureLayout `json:"layout"`
}

// Trace is one Plotly surface trace
type Trace struct {
	Type         string      `json:"type"`
	Name         string      `json:"name,omitempty"`
	X            [][]float64 `json:"x"`
	Y            [][]float64 `json:"y"`
	Z            [][]float64 `json:"z"`
	SurfaceColor [][]float64 `json:"surfacecolor,omitempty"`
	Colorscale   interface{} `json:"colorscale"`
	Opacity      float64     `json:"opacity"`
	ShowScale    bool        `json:"showscale"`
	CMin         *float64    `json:"cmin,omitempty"`
	CMax         *float64    `json:"cmax,omitempty"`
	ColorBar     *ColorBar   `json:"colorbar,omitempty"`
}

// Title is a Plotly title object
type Title struct {
	Text string `json:"text"`
}

// ColorBar places and labels a trace's colorbar
type ColorBar struct {
	Title Title   `json:"title"`
	X     float64 `json:"x"`
}

// Axis is a 3D scene axis
type Axis struct {
	Title Title `json:"title"`
}

// SceneLayout is the 3D scene section of the layout
type SceneLayout struct {
	XAxis      Axis   `json:"xaxis"`
	YAxis      Axis   `json:"yaxis"`
	ZAxis      Axis   `json:"zaxis"`
	AspectMode string `json:"aspectmode"`
}

// FigureMargin is the layout margin in pixels
type FigureMargin struct {
	L int `json:"l"`
	R int `json:"r"`
	B int `json:"b"`
	T int `json:"t"`
}

// FigureLayout is the Plotly layout object
type FigureLayout struct {
	Scene  SceneLayout  `json:"scene"`
	Height int          `json:"height"`
	Margin FigureMargin `json:"margin"`
}

// colorbarX keeps the amplitude colorbar clear of the scene
const colorbarX = 1.1

// PlotlyFigure converts scene into a Plotly figure, one surface trace per
// scene surface in order
func PlotlyFigure(scene *models.Scene) *Figure {
	fig := &Figure{
		Data: make([]Trace, 0, len(scene.Surfaces)),
		Layout: FigureLayout{
			Scene: SceneLayout{
				XAxis:      Axis{Title: Title{Text: scene.Layout.XAxisTitle}},
				YAxis:      Axis{Title: Title{Text: scene.Layout.YAxisTitle}},
				ZAxis:      Axis{Title: Title{Text: scene.Layout.ZAxisTitle}},
				AspectMode: scene.Layout.AspectMode,
			},
			Height: scene.Layout.Height,
			Margin: FigureMargin{
				L: scene.Layout.Margin.Left,
				R: scene.Layout.Margin.Right,
				B: scene.Layout.Margin.Bottom,
				T: scene.Layout.Margin.Top,
			},
		},
	}

	for _, s := range scene.Surfaces {
		tr := Trace{
			Type:       "surface",
			Name:       s.Name,
			X:          rows(s.X),
			Y:          rows(s.Y),
			Z:          rows(s.Z),
			Colorscale: plotlyColorscale(s.Colorscale),
			Opacity:    s.Opacity,
			ShowScale:  s.ShowScale,
		}
		if s.SurfaceColor != nil {
			tr.SurfaceColor = rows(s.SurfaceColor)
		}
		if s.HasColorRange {
			cmin, cmax := s.CMin, s.CMax
			tr.CMin, tr.CMax = &cmin, &cmax
		}
		if s.ColorbarTitle != "" {
			tr.ColorBar = &ColorBar{Title: Title{Text: s.ColorbarTitle}, X: colorbarX}
		}
		fig.Data = append(fig.Data, tr)
	}
	return fig
}

func rows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}

// WriteFigure encodes the scene's Plotly figure as JSON
func WriteFigure(w io.Writer, scene *models.Scene) error {
	return json.NewEncoder(w).Encode(PlotlyFigure(scene))
}

// SaveFigure writes the scene's Plotly figure to filename
func SaveFigure(scene *models.Scene, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	return writeFile(filename, func(w io.Writer) error {
		return WriteFigure(w, scene)
	})
}

var createFile = func(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

// writeFile creates filename and passes it to write. A failed close is
// reported when write itself succeeded.
func writeFile(filename string, write func(io.Writer) error) (err error) {
	file, err := createFile(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	return write(file)
}
