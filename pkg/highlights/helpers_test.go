package highlights

import (
	"math/rand"
)

type mockHost struct {
	pipe     PipeType
	altered  bool
	width    int
	height   int
	recorded []Params
}

func (h *mockHost) PipeType() PipeType      { return h.pipe }
func (h *mockHost) ImageAltered() bool      { return h.altered }
func (h *mockHost) NativeSize() (int, int)  { return h.width, h.height }
func (h *mockHost) AddHistoryItem(p Params) { h.recorded = append(h.recorded, p) }

func editedHost(width, height int) *mockHost {
	return &mockHost{pipe: PipeFull, altered: true, width: width, height: height}
}

// uniformMosaic returns a width x height mosaic filled with v.
func uniformMosaic(width, height int, v float32) []float32 {
	data := make([]float32, width*height)
	for i := range data {
		data[i] = v
	}
	return data
}

// randomBuffer fills a buffer with values in [0, 1.2) so roughly a sixth
// of the samples clip at the default threshold. A few negatives exercise
// the clamping.
func randomBuffer(rng *rand.Rand, roi ROI, p Pattern) []float32 {
	data := make([]float32, roi.Pixels()*p.Stride())
	for i := range data {
		data[i] = rng.Float32() * 1.2
		if rng.Intn(50) == 0 {
			data[i] = -0.1
		}
	}
	return data
}

// highlightMosaic is a mosaic at 0.5 with a bright disc whose green channel
// clips and whose red and blue rise towards the clip point.
func highlightMosaic(roi ROI, p Pattern) []float32 {
	data := make([]float32, roi.Pixels())
	cx, cy := roi.Width/2, roi.Height/2
	for row := 0; row < roi.Height; row++ {
		for col := 0; col < roi.Width; col++ {
			d2 := (row-cy)*(row-cy) + (col-cx)*(col-cx)
			v := float32(0.4)
			switch {
			case d2 < 16:
				v = 1.0
			case d2 < 64:
				v = 0.8
			}
			if p.Color(row, col, roi) == 1 && d2 < 25 {
				v = 1.2
			}
			data[row*roi.Width+col] = v
		}
	}
	return data
}

func allPatterns() map[string]Pattern {
	return map[string]Pattern{
		"rggb":   {Filters: FiltersRGGB},
		"bggr":   {Filters: FiltersBGGR},
		"xtrans": XTransPattern(DefaultXTrans),
		"linear": {Filters: FiltersLinear},
	}
}
