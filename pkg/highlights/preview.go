package highlights

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
)

// previewGamma is the display transfer exponent of previews.
const previewGamma = 1 / 2.2

// Preview renders a display-referred RGB image of a buffer.
//
// Mosaics are shown as 3x3 superpixels, one preview pixel per coarse mask
// cell, using the same same-channel means as the refavg estimator:
//
//	preview(x, y) = means(3y+1, 3x+1)
//
// so clipped cells line up with DebugData.Mask. Linear buffers are shown at
// full resolution. Values are clamped to [0, 1] before the gamma curve.
func Preview(data []float32, roi ROI, p Pattern) *image.RGBA {
	g := newGrid(data, roi, p)
	if g.linear() {
		img := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
		for y := 0; y < g.height; y++ {
			for x := 0; x < g.width; x++ {
				img.SetRGBA(x, y, displayColor(g.means(y, x)))
			}
		}
		return img
	}

	w, h := max(1, g.width/3), max(1, g.height/3)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := min(3*y+1, g.height-1)
		for x := 0; x < w; x++ {
			col := min(3*x+1, g.width-1)
			img.SetRGBA(x, y, displayColor(g.means(row, col)))
		}
	}
	return img
}

func displayColor(rgb [3]float32) color.RGBA {
	var out [3]uint8
	for c := 0; c < 3; c++ {
		out[c] = uint8(math32.Round(math32.Pow(clampUnit(rgb[c]), previewGamma) * 255))
	}
	return color.RGBA{out[0], out[1], out[2], 255}
}
