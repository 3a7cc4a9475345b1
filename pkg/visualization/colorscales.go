package visualization

import (
	"strings"
)

// builtinColorscales maps palette names to the ones plotly.js ships
var builtinColorscales = map[string]string{
	"earth":   "Earth",
	"rdbu":    "RdBu",
	"greys":   "Greys",
	"picnic":  "Picnic",
	"viridis": "Viridis",
	"cividis": "Cividis",
}

// paletteStops holds evenly spaced colors for palettes plotly.js lacks
var paletteStops = map[string][]string{
	"gray": {"rgb(0,0,0)", "rgb(255,255,255)"},
	"balance": {
		"rgb(23,28,66)", "rgb(41,58,143)", "rgb(11,102,189)", "rgb(69,144,185)",
		"rgb(142,181,194)", "rgb(210,216,219)", "rgb(230,210,204)", "rgb(213,157,137)",
		"rgb(196,101,72)", "rgb(172,43,36)", "rgb(120,14,40)", "rgb(60,9,17)",
	},
	"curl": {
		"rgb(20,29,67)", "rgb(28,72,93)", "rgb(18,115,117)", "rgb(63,156,129)",
		"rgb(153,189,156)", "rgb(223,225,211)", "rgb(241,218,206)", "rgb(224,160,137)",
		"rgb(203,101,99)", "rgb(164,54,96)", "rgb(111,23,91)", "rgb(51,13,53)",
	},
	"delta": {
		"rgb(16,31,63)", "rgb(38,62,144)", "rgb(30,110,161)", "rgb(60,154,171)",
		"rgb(140,193,186)", "rgb(217,229,218)", "rgb(239,226,156)", "rgb(195,182,59)",
		"rgb(115,152,5)", "rgb(34,120,36)", "rgb(18,78,43)", "rgb(23,35,18)",
	},
	"tealrose": {"#009392", "#72aaa1", "#b1c7b3", "#f1eac8", "#e5b9ad", "#d98994", "#d0587e"},
	"rdylbu": {
		"#a50026", "#d73027", "#f46d43", "#fdae61", "#fee090", "#ffffbf",
		"#e0f3f8", "#abd9e9", "#74add1", "#4575b4", "#313695",
	},
	"puor": {
		"#7f3b08", "#b35806", "#e08214", "#fdb863", "#fee0b6", "#f7f7f7",
		"#d8daeb", "#b2abd2", "#8073ac", "#542788", "#2d004b",
	},
	"brbg": {
		"#543005", "#8c510a", "#bf812d", "#dfc27d", "#f6e8c3", "#f5f5f5",
		"#c7eae5", "#80cdc1", "#35978f", "#01665e", "#003c30",
	},
	"piyg": {
		"#8e0152", "#c51b7d", "#de77ae", "#f1b6da", "#fde0ef", "#f7f7f7",
		"#e6f5d0", "#b8e186", "#7fbc41", "#4d9221", "#276419",
	},
}

// plotlyColorscale returns a plotly.js colorscale: a built-in name or a
// list of [position, color] stops. Unknown names pass through unchanged.
func plotlyColorscale(name string) interface{} {
	key := strings.ToLower(name)
	if builtin, ok := builtinColorscales[key]; ok {
		return builtin
	}
	colors, ok := paletteStops[key]
	if !ok {
		return name
	}

	stops := make([][2]interface{}, len(colors))
	for i, c := range colors {
		stops[i] = [2]interface{}{float64(i) / float64(len(colors)-1), c}
	}
	return stops
}
