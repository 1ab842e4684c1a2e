package highlights

import (
	"github.com/chewxy/math32"
)

// reconstructSample returns the output value of channel c at input (row, col)
// and whether it was replaced. Unclipped samples and mosaic border photosites
// pass through clamped to >= 0.
func reconstructSample(g grid, row, col, c int, clips ClipModel, chroma [3]float32) (float32, bool) {
	v := g.value(row, col, c)
	if v < clips.Clips[c] || !g.reconstructable(row, col) {
		return v, false
	}
	return math32.Max(v, g.refavg(row, col, c)+chroma[c]), true
}

// reconstructPixel writes one output pixel (one photosite or four floats).
func reconstructPixel(g grid, dst []float32, row, col int, clips ClipModel, chroma [3]float32) int64 {
	var n int64
	lo, hi := g.channels(row, col)
	for c := lo; c < hi; c++ {
		v, ok := reconstructSample(g, row, col, c, clips, chroma)
		if ok {
			n++
		}
		if g.linear() {
			dst[c] = v
		} else {
			dst[0] = v
		}
	}
	if g.linear() {
		dst[3] = g.data[(row*g.width+col)*4+3]
	}
	return n
}

// reconstructFull reconstructs the whole input ROI into a new buffer of the
// input's shape.
func reconstructFull(g grid, clips ClipModel, chroma [3]float32) ([]float32, int64) {
	stride := g.stride()
	full := make([]float32, g.width*g.height*stride)
	counts := make([]int64, numChunks(g.height))
	parallelRows(g.height, func(chunk, start, end int) {
		for row := start; row < end; row++ {
			for col := 0; col < g.width; col++ {
				idx := (row*g.width + col) * stride
				counts[chunk] += reconstructPixel(g, full[idx:idx+stride], row, col, clips, chroma)
			}
		}
	})
	return full, sumCounts(counts)
}

// reconstructROI fills the output ROI. Output coordinates are mapped into
// the input by the ROI offset and clamped to the input bounds. When full is
// non-nil the samples are taken from that reconstruction instead.
func reconstructROI(g grid, out []float32, roiOut ROI, clips ClipModel, chroma [3]float32, full []float32) int64 {
	stride := g.stride()
	dy := roiOut.Y - g.roi.Y
	dx := roiOut.X - g.roi.X
	counts := make([]int64, numChunks(roiOut.Height))
	parallelRows(roiOut.Height, func(chunk, start, end int) {
		for row := start; row < end; row++ {
			irow := clampInt(row+dy, 0, g.height-1)
			for col := 0; col < roiOut.Width; col++ {
				icol := clampInt(col+dx, 0, g.width-1)
				odx := (row*roiOut.Width + col) * stride
				if full != nil {
					idx := (irow*g.width + icol) * stride
					copy(out[odx:odx+stride], full[idx:idx+stride])
					continue
				}
				counts[chunk] += reconstructPixel(g, out[odx:odx+stride], irow, icol, clips, chroma)
			}
		}
	})
	return sumCounts(counts)
}

func sumCounts(counts []int64) int64 {
	var n int64
	for _, c := range counts {
		n += c
	}
	return n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
