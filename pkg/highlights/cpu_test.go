package highlights

import (
	"context"
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rggbDesc() BufferDesc {
	return BufferDesc{Pattern: Pattern{Filters: FiltersRGGB}}
}

func TestProcessAllZero(t *testing.T) {
	for name, p := range allPatterns() {
		t.Run(name, func(t *testing.T) {
			roi := FullROI(30, 24)
			in := make([]float32, roi.Pixels()*p.Stride())
			out := make([]float32, len(in))
			for i := range out {
				out[i] = -1
			}
			proc := NewProcessor(*NewParams(), BufferDesc{Pattern: p}, nil)
			res, err := proc.Process(context.Background(), in, out, roi, roi, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, in, out)
			assert.Equal(t, [3]float32{}, res.Chrominance)
			assert.True(t, res.Metrics.MaskBuilt)
			assert.False(t, res.Metrics.AnyClipped)
			assert.Zero(t, res.Metrics.Reconstructed)
		})
	}
}

func TestProcessNeverDarkens(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for name, p := range allPatterns() {
		t.Run(name, func(t *testing.T) {
			roi := FullROI(37, 29)
			in := randomBuffer(rng, roi, p)
			out := make([]float32, len(in))
			proc := NewProcessor(*NewParams(), BufferDesc{Pattern: p}, nil)
			res, err := proc.Process(context.Background(), in, out, roi, roi, DefaultOptions())
			require.NoError(t, err)
			assert.True(t, res.Metrics.AnyClipped)

			g := newGrid(in, roi, p)
			for row := 0; row < roi.Height; row++ {
				for col := 0; col < roi.Width; col++ {
					lo, hi := g.channels(row, col)
					for c := lo; c < hi; c++ {
						v := g.value(row, col, c)
						o := out[g.index(row, col, c)]
						if v < res.Clips.Clips[c] {
							assert.Equal(t, v, o, "unclipped sample changed at %d,%d", row, col)
						} else {
							assert.GreaterOrEqual(t, o, v, "clipped sample darkened at %d,%d", row, col)
						}
					}
				}
			}
		})
	}
}

func TestProcessMosaicBorderPassesThrough(t *testing.T) {
	roi := FullROI(12, 12)
	in := uniformMosaic(12, 12, 2)
	out := make([]float32, len(in))
	proc := NewProcessor(*NewParams(), rggbDesc(), nil)
	_, err := proc.Process(context.Background(), in, out, roi, roi, DefaultOptions())
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		assert.Equal(t, float32(2), out[i])
		assert.Equal(t, float32(2), out[11*12+i])
		assert.Equal(t, float32(2), out[i*12])
		assert.Equal(t, float32(2), out[i*12+11])
	}
}

func TestProcessCenterBlock9x9(t *testing.T) {
	roi := FullROI(9, 9)
	p := Pattern{Filters: FiltersRGGB}
	in := uniformMosaic(9, 9, 0.5)
	for row := 3; row < 6; row++ {
		for col := 3; col < 6; col++ {
			if p.Color(row, col, roi) == 1 {
				in[row*9+col] = 1.0
			}
		}
	}
	params := *NewParams()
	params.Clip = 0.9 / 0.987
	proc := NewProcessor(params, rggbDesc(), nil)
	out := make([]float32, len(in))
	res, err := proc.Process(context.Background(), in, out, roi, roi, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Metrics.AnyClipped)
	assert.Equal(t, int64(4), res.Metrics.ClippedPhotosites[1])

	// A 3x3 cell mask is entirely inside the 3-cell dilation border, so no
	// photosite is sampled and the correction stays zero.
	assert.Equal(t, [3]int64{}, res.Metrics.ChromaSamples)
	assert.Equal(t, [3]float32{}, res.Chrominance)

	g := newGrid(in, roi, p)
	for _, pos := range [][2]int{{3, 4}, {4, 3}, {4, 5}, {5, 4}} {
		want := math32.Max(1.0, g.refavg(pos[0], pos[1], 1)+res.Chrominance[1])
		assert.Equal(t, want, out[pos[0]*9+pos[1]])
	}
}

func TestProcessCenterBlockCorrection(t *testing.T) {
	const size = 27
	roi := FullROI(size, size)
	p := Pattern{Filters: FiltersRGGB}
	in := make([]float32, size*size)
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			c := p.Color(row, col, roi)
			v := float32(0.5)
			if c == 1 {
				v = 0.6
			}
			if row >= 12 && row < 15 && col >= 12 && col < 15 && c != 2 {
				v = 1.0
			}
			in[row*size+col] = v
		}
	}
	params := *NewParams()
	params.Clip = 0.9 / 0.987
	proc := NewProcessor(params, rggbDesc(), nil)
	out := make([]float32, len(in))
	res, err := proc.Process(context.Background(), in, out, roi, roi, DefaultOptions())
	require.NoError(t, err)

	// Greens sit above their red/blue estimate, reds below theirs. Blue
	// never clips so it is never sampled.
	assert.Greater(t, res.Chrominance[1], float32(0))
	assert.LessOrEqual(t, res.Chrominance[1], float32(0.1001))
	assert.Less(t, res.Chrominance[0], float32(-0.01))
	assert.Zero(t, res.Chrominance[2])
	assert.Greater(t, res.Metrics.ChromaSamples[0], int64(0))
	assert.Greater(t, res.Metrics.ChromaSamples[1], int64(0))
	assert.Zero(t, res.Metrics.ChromaSamples[2])

	g := newGrid(in, roi, p)
	for row := 12; row < 15; row++ {
		for col := 12; col < 15; col++ {
			c := p.Color(row, col, roi)
			if c == 2 {
				assert.Equal(t, float32(0.5), out[row*size+col])
				continue
			}
			want := math32.Max(1.0, g.refavg(row, col, c)+res.Chrominance[c])
			assert.Equal(t, want, out[row*size+col])
		}
	}
}

func TestProcessCacheIdempotent(t *testing.T) {
	roi := FullROI(40, 40)
	p := Pattern{Filters: FiltersRGGB}
	in := highlightMosaic(roi, p)
	host := editedHost(40, 40)
	proc := NewProcessor(*NewParams(), rggbDesc(), host)

	first := make([]float32, len(in))
	res, err := proc.Process(context.Background(), in, first, roi, roi, DefaultOptions())
	require.NoError(t, err)
	require.True(t, res.Metrics.Committed)
	require.Equal(t, 1, proc.MaskPasses())
	require.Len(t, host.recorded, 1)
	assert.Equal(t, res.Chrominance, host.recorded[0].ChromaCorrection)
	assert.Equal(t, proc.ColorMagic(), host.recorded[0].ColorMagic)

	second := make([]float32, len(in))
	res2, err := proc.Process(context.Background(), in, second, roi, roi, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res2.Metrics.CacheHit)
	assert.False(t, res2.Metrics.MaskBuilt)
	assert.Equal(t, 1, proc.MaskPasses())
	assert.Equal(t, first, second)
	assert.Len(t, host.recorded, 1)
}

func TestProcessWhiteBalanceInvalidatesCache(t *testing.T) {
	roi := FullROI(40, 40)
	p := Pattern{Filters: FiltersRGGB}
	in := highlightMosaic(roi, p)
	proc := NewProcessor(*NewParams(), rggbDesc(), editedHost(40, 40))
	out := make([]float32, len(in))

	_, err := proc.Process(context.Background(), in, out, roi, roi, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 1, proc.MaskPasses())

	proc.Desc.WhiteBalance = WhiteBalance{Enabled: true, Coeffs: [3]float32{1.1, 1, 1.2}}
	res, err := proc.Process(context.Background(), in, out, roi, roi, DefaultOptions())
	require.NoError(t, err)
	assert.False(t, res.Metrics.CacheHit)
	assert.Equal(t, 2, proc.MaskPasses())
}

func TestProcessPersistedCorrectionIsReused(t *testing.T) {
	roi := FullROI(40, 40)
	p := Pattern{Filters: FiltersRGGB}
	in := highlightMosaic(roi, p)
	params := *NewParams()
	params.ChromaCorrection = [3]float32{0.01, 0.02, 0.03}
	params.ColorMagic = ColorMagic(params.Clip, rggbDesc())
	proc := NewProcessor(params, rggbDesc(), nil)

	res, err := proc.Process(context.Background(), in, make([]float32, len(in)), roi, roi, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Metrics.CacheHit)
	assert.Equal(t, params.ChromaCorrection, res.Chrominance)
	assert.Zero(t, proc.MaskPasses())
}

func TestProcessWithoutQualitySkipsMask(t *testing.T) {
	roi := FullROI(40, 40)
	p := Pattern{Filters: FiltersRGGB}
	in := highlightMosaic(roi, p)
	params := *NewParams()
	params.ChromaCorrection = [3]float32{0.05, 0, 0}
	host := editedHost(40, 40)
	proc := NewProcessor(params, rggbDesc(), host)

	res, err := proc.Process(context.Background(), in, make([]float32, len(in)), roi, roi, Options{})
	require.NoError(t, err)
	assert.False(t, res.Metrics.MaskBuilt)
	assert.False(t, res.Metrics.Committed)
	assert.Equal(t, params.ChromaCorrection, res.Chrominance)
	assert.Zero(t, proc.MaskPasses())
	assert.Empty(t, host.recorded)
}

func TestProcessScratchAllocFailure(t *testing.T) {
	roi := FullROI(40, 40)
	p := Pattern{Filters: FiltersRGGB}
	in := highlightMosaic(roi, p)
	host := editedHost(40, 40)
	proc := NewProcessor(*NewParams(), rggbDesc(), host)
	proc.AllocMask = func(n int) ([]uint8, error) {
		return nil, errors.New("out of memory")
	}

	out := make([]float32, len(in))
	res, err := proc.Process(context.Background(), in, out, roi, roi, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Metrics.ScratchFailed)
	assert.False(t, res.Metrics.MaskBuilt)
	assert.Equal(t, [3]float32{}, res.Chrominance)
	assert.Empty(t, host.recorded)
	assert.Greater(t, res.Metrics.Reconstructed, int64(0))

	// A short allocation is a failure too.
	proc.AllocMask = func(n int) ([]uint8, error) { return make([]uint8, n-1), nil }
	res, err = proc.Process(context.Background(), in, out, roi, roi, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, res.Metrics.ScratchFailed)

	// A dirty buffer is cleared before use.
	proc.AllocMask = func(n int) ([]uint8, error) {
		b := make([]uint8, n)
		for i := range b {
			b[i] = 1
		}
		return b, nil
	}
	res, err = proc.Process(context.Background(), in, out, roi, roi, DefaultOptions())
	require.NoError(t, err)
	assert.False(t, res.Metrics.ScratchFailed)
	ref, err := NewProcessor(*NewParams(), rggbDesc(), nil).Process(context.Background(), in, out, roi, roi, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ref.Chrominance, res.Chrominance)
}

func TestProcessCommitConditions(t *testing.T) {
	mosaicROI := FullROI(40, 40)
	mosaic := highlightMosaic(mosaicROI, Pattern{Filters: FiltersRGGB})
	linearROI := FullROI(40, 40)
	linear := randomBuffer(rand.New(rand.NewSource(11)), linearROI, Pattern{})

	tests := []struct {
		name   string
		host   *mockHost
		linear bool
		roiOut ROI
		want   bool
	}{
		{"mosaic full edited", editedHost(40, 40), false, mosaicROI, true},
		{"mosaic ignores native size", editedHost(4000, 3000), false, mosaicROI, true},
		{"mosaic unedited", &mockHost{pipe: PipeFull, width: 40, height: 40}, false, mosaicROI, false},
		{"mosaic preview", &mockHost{pipe: PipePreview, altered: true, width: 40, height: 40}, false, mosaicROI, false},
		{"mosaic export", &mockHost{pipe: PipeExport, altered: true, width: 40, height: 40}, false, mosaicROI, false},
		{"linear native size", editedHost(40, 40), true, linearROI, true},
		{"linear within tolerance", editedHost(49, 31), true, linearROI, true},
		{"linear size mismatch", editedHost(50, 40), true, linearROI, false},
		{"linear scaled preview", editedHost(80, 80), true, ROI{Width: 40, Height: 40, Scale: 0.5}, true},
		{"linear cropped", editedHost(80, 80), true, ROI{Width: 20, Height: 20, Scale: 1}, false},
		{"linear scaled size truncates", editedHost(50, 50), true, ROI{Width: 81, Height: 81, Scale: 2}, false},
		{"linear scaled size within", editedHost(49, 49), true, ROI{Width: 81, Height: 81, Scale: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, in, roiIn := rggbDesc(), mosaic, mosaicROI
			if tt.linear {
				desc, in, roiIn = BufferDesc{}, linear, linearROI
			}
			proc := NewProcessor(*NewParams(), desc, tt.host)
			out := make([]float32, tt.roiOut.Pixels()*desc.Pattern.Stride())
			res, err := proc.Process(context.Background(), in, out, roiIn, tt.roiOut, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Metrics.Committed)
			assert.Equal(t, tt.want, len(tt.host.recorded) == 1)
			assert.Equal(t, tt.want, proc.Cache().Matches(proc.ColorMagic()))
		})
	}
}

func TestProcessROIMapping(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for name, p := range allPatterns() {
		t.Run(name, func(t *testing.T) {
			roiIn := ROI{X: 6, Y: 12, Width: 30, Height: 24, Scale: 1}
			in := randomBuffer(rng, roiIn, p)
			proc := NewProcessor(*NewParams(), BufferDesc{Pattern: p}, nil)
			full := make([]float32, len(in))
			res, err := proc.Process(context.Background(), in, full, roiIn, roiIn, Options{Quality: true, Keep: true})
			require.NoError(t, err)
			require.Equal(t, full, res.Intermediate)

			// The output starts 4 columns and 2 rows into the input and runs
			// past its right and bottom edges.
			roiOut := ROI{X: 10, Y: 14, Width: 30, Height: 26, Scale: 1}
			out := make([]float32, roiOut.Pixels()*p.Stride())
			_, err = proc.Process(context.Background(), in, out, roiIn, roiOut, DefaultOptions())
			require.NoError(t, err)

			stride := p.Stride()
			for row := 0; row < roiOut.Height; row++ {
				irow := min(row+2, roiIn.Height-1)
				for col := 0; col < roiOut.Width; col++ {
					icol := min(col+4, roiIn.Width-1)
					o := (row*roiOut.Width + col) * stride
					i := (irow*roiIn.Width + icol) * stride
					assert.Equal(t, full[i:i+stride], out[o:o+stride], "row %d col %d", row, col)
				}
			}
		})
	}
}

func TestProcessStoreMask(t *testing.T) {
	roi := FullROI(40, 40)
	p := Pattern{Filters: FiltersRGGB}
	in := highlightMosaic(roi, p)
	proc := NewProcessor(*NewParams(), rggbDesc(), nil)
	res, err := proc.Process(context.Background(), in, make([]float32, len(in)), roi, roi, Options{Quality: true, StoreMask: true})
	require.NoError(t, err)
	require.NotNil(t, res.DebugData)
	assert.Equal(t, 14, res.DebugData.MaskWidth)
	assert.Equal(t, 14, res.DebugData.MaskHeight)
	center := res.DebugData.Mask[6*14+6]
	assert.NotZero(t, center&MaskClipped(1))
	assert.NotZero(t, center&MaskDilated(1))
}

func TestProcessValidation(t *testing.T) {
	proc := NewProcessor(*NewParams(), rggbDesc(), nil)
	roi := FullROI(10, 10)
	buf := make([]float32, 100)

	_, err := proc.Process(context.Background(), buf, buf[:99], roi, roi, DefaultOptions())
	assert.True(t, errors.Is(err, ErrBufferSize))

	_, err = proc.Process(context.Background(), buf, buf, ROI{Width: 0, Height: 10}, roi, DefaultOptions())
	assert.True(t, errors.Is(err, ErrInvalidROI))

	linear := NewProcessor(*NewParams(), BufferDesc{}, nil)
	_, err = linear.Process(context.Background(), buf, make([]float32, 400), roi, roi, DefaultOptions())
	assert.True(t, errors.Is(err, ErrBufferSize))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = proc.Process(ctx, buf, make([]float32, 100), roi, roi, DefaultOptions())
	assert.True(t, errors.Is(err, context.Canceled))
}
