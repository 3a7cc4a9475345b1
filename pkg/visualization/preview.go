package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"

	"seisterrain3d/internal/models"
)

// SliceImage renders the slice amplitudes as a grayscale image, mapping
// [CMin, CMax] to black..white. Row 0 of the slice is the top of the image.
func SliceImage(geom *models.SliceGeometry) (image.Image, error) {
	if geom == nil || geom.Color == nil {
		return nil, fmt.Errorf("no slice to render")
	}
	rows, cols := geom.Color.Dims()
	img := image.NewGray16(image.Rect(0, 0, cols, rows))

	span := geom.CMax - geom.CMin
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			level := 0.5
			if span > 0 {
				level = (geom.Color.At(r, c) - geom.CMin) / span
			}
			value := uint16(math.Max(0, math.Min(65535, level*65535)))
			img.SetGray16(c, r, color.Gray16{Y: value})
		}
	}
	return img, nil
}

// SaveSlicePreview saves the slice as a JPEG image
func SaveSlicePreview(geom *models.SliceGeometry, filename string) error {
	img, err := SliceImage(geom)
	if err != nil {
		return err
	}

	return writeFile(filename, func(w io.Writer) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	})
}
