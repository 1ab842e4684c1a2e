package highlights

import (
	"github.com/chewxy/math32"
)

// hlPowerF is the exponent of the perceptual cube space refavg works in.
const hlPowerF float32 = 3.0

// grid is a read-only view of an input buffer that hides the difference
// between mosaic photosites and pre-combined linear pixels.
type grid struct {
	data    []float32
	width   int
	height  int
	roi     ROI
	pattern Pattern
}

func newGrid(data []float32, roi ROI, p Pattern) grid {
	return grid{data: data, width: roi.Width, height: roi.Height, roi: roi, pattern: p}
}

func (g grid) linear() bool { return g.pattern.IsLinear() }

func (g grid) stride() int { return g.pattern.Stride() }

// color returns the channel of a mosaic photosite, -1 for linear pixels.
func (g grid) color(row, col int) int {
	return g.pattern.Color(row, col, g.roi)
}

// channels returns the half-open channel range present at (row, col).
func (g grid) channels(row, col int) (int, int) {
	if g.linear() {
		return 0, 3
	}
	c := g.color(row, col)
	return c, c + 1
}

func (g grid) index(row, col, c int) int {
	if g.linear() {
		return (row*g.width+col)*4 + c
	}
	return row*g.width + col
}

// value returns the sample clamped to >= 0.
func (g grid) value(row, col, c int) float32 {
	return math32.Max(0, g.data[g.index(row, col, c)])
}

// interior reports whether the full 3x3 window around (row, col) exists.
func (g grid) interior(row, col int) bool {
	return row > 0 && col > 0 && row < g.height-1 && col < g.width-1
}

// reconstructable reports whether a refavg estimate can be formed at (row, col).
// Linear pixels carry all channels, mosaic photosites need the 3x3 window.
func (g grid) reconstructable(row, col int) bool {
	return g.linear() || g.interior(row, col)
}

// means returns the per-channel averages refavg is built from. Linear pixels
// use their own three values, mosaic photosites the same-channel average of
// the 3x3 window.
func (g grid) means(row, col int) [3]float32 {
	if g.linear() {
		return [3]float32{g.value(row, col, 0), g.value(row, col, 1), g.value(row, col, 2)}
	}
	var sum, cnt [3]float32
	for dy := -1; dy <= 1; dy++ {
		y := row + dy
		if y < 0 || y >= g.height {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			x := col + dx
			if x < 0 || x >= g.width {
				continue
			}
			c := g.color(y, x)
			sum[c] += math32.Max(0, g.data[y*g.width+x])
			cnt[c]++
		}
	}
	var mean [3]float32
	for c := 0; c < 3; c++ {
		mean[c] = sum[c] / math32.Max(1, cnt[c])
	}
	return mean
}

// refavg estimates channel color at (row, col) from its two siblings.
func (g grid) refavg(row, col, color int) float32 {
	return opposedRefavg(g.means(row, col), color)
}

// opposedRefavg takes the mean of the two opposing channels in cube-root
// space and returns it in linear units. Inputs are clamped to >= 0.
func opposedRefavg(in [3]float32, color int) float32 {
	var ins [3]float32
	for c := 0; c < 3; c++ {
		ins[c] = math32.Pow(math32.Max(0, in[c]), 1/hlPowerF)
	}
	var opp float32
	switch color {
	case 0:
		opp = 0.5 * (ins[1] + ins[2])
	case 1:
		opp = 0.5 * (ins[0] + ins[2])
	default:
		opp = 0.5 * (ins[0] + ins[1])
	}
	return math32.Pow(opp, hlPowerF)
}
