package highlights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBayerPatternColors(t *testing.T) {
	tests := []struct {
		name string
		want [2][2]int
	}{
		{"RGGB", [2][2]int{{0, 1}, {1, 2}}},
		{"BGGR", [2][2]int{{2, 1}, {1, 0}}},
		{"GRBG", [2][2]int{{1, 0}, {2, 1}}},
		{"GBRG", [2][2]int{{1, 2}, {0, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := BayerPattern(tt.name)
			require.NoError(t, err)
			roi := FullROI(8, 8)
			for row := 0; row < 8; row++ {
				for col := 0; col < 8; col++ {
					assert.Equal(t, tt.want[row%2][col%2], p.Color(row, col, roi), "row %d col %d", row, col)
				}
			}
			assert.Equal(t, tt.name, p.String())
		})
	}
}

func TestBayerPatternUsesAbsoluteCoordinates(t *testing.T) {
	p := Pattern{Filters: FiltersRGGB}
	shifted := ROI{X: 1, Y: 1, Width: 4, Height: 4, Scale: 1}
	// (0, 0) of a ROI at (1, 1) is the blue photosite of the RGGB quad.
	assert.Equal(t, 2, p.Color(0, 0, shifted))
	assert.Equal(t, 0, p.Color(1, 1, shifted))
}

func TestXTransColors(t *testing.T) {
	p := XTransPattern(DefaultXTrans)
	assert.True(t, p.IsXTrans())
	assert.Equal(t, 1, p.Stride())

	roi := FullROI(12, 12)
	for row := 0; row < 12; row++ {
		for col := 0; col < 12; col++ {
			assert.Equal(t, int(DefaultXTrans[row%6][col%6]), p.Color(row, col, roi))
		}
	}

	offset := ROI{X: 2, Y: 3, Width: 6, Height: 6, Scale: 1}
	assert.Equal(t, int(DefaultXTrans[3][2]), p.Color(0, 0, offset))
	assert.Equal(t, int(DefaultXTrans[(5+3)%6][(5+2)%6]), p.Color(5, 5, offset))
}

func TestLinearPattern(t *testing.T) {
	p, err := BayerPattern("linear")
	require.NoError(t, err)
	assert.True(t, p.IsLinear())
	assert.Equal(t, 4, p.Stride())
	assert.Equal(t, -1, p.Color(3, 3, FullROI(4, 4)))

	_, err = BayerPattern("CMYG")
	assert.Error(t, err)
}

func TestClipModel(t *testing.T) {
	m := NewClipModel(1.0, WhiteBalance{})
	for c := 0; c < 3; c++ {
		assert.InDelta(t, 0.987, m.Clips[c], 1e-6)
	}
	assert.InDelta(t, 0.03*0.987, m.ClipDark[0], 1e-6)
	assert.InDelta(t, 0.125*0.987, m.ClipDark[1], 1e-6)
	assert.InDelta(t, 0.03*0.987, m.ClipDark[2], 1e-6)

	wb := WhiteBalance{Enabled: true, Coeffs: [3]float32{2.0, 1.0, 1.5}}
	m = NewClipModel(0.5, wb)
	assert.InDelta(t, 0.987*0.5*2.0, m.Clips[0], 1e-6)
	assert.InDelta(t, 0.987*0.5*1.0, m.Clips[1], 1e-6)
	assert.InDelta(t, 0.987*0.5*1.5, m.Clips[2], 1e-6)

	// Disabled white balance ignores the coefficients.
	wb.Enabled = false
	assert.Equal(t, NewClipModel(0.5, WhiteBalance{}), NewClipModel(0.5, wb))
}

func TestColorMagic(t *testing.T) {
	desc := BufferDesc{
		Pattern:      Pattern{Filters: FiltersRGGB},
		WhiteBalance: WhiteBalance{Enabled: true, Coeffs: [3]float32{2.1, 1, 1.6}},
	}
	base := ColorMagic(1.0, desc)
	assert.Equal(t, base, ColorMagic(1.0, desc))
	assert.Less(t, base, float64(1<<53))

	changed := desc
	changed.WhiteBalance.Coeffs[2] = 1.61
	assert.NotEqual(t, base, ColorMagic(1.0, changed))

	changed = desc
	changed.WhiteBalance.Enabled = false
	assert.NotEqual(t, base, ColorMagic(1.0, changed))

	changed = desc
	changed.Pattern = Pattern{Filters: FiltersBGGR}
	assert.NotEqual(t, base, ColorMagic(1.0, changed))

	assert.NotEqual(t, base, ColorMagic(0.99, desc))

	x1 := BufferDesc{Pattern: XTransPattern(DefaultXTrans)}
	other := DefaultXTrans
	other[0][0], other[0][2] = other[0][2], other[0][0]
	x2 := BufferDesc{Pattern: XTransPattern(other)}
	assert.NotEqual(t, ColorMagic(1, x1), ColorMagic(1, x2))

	cache := ChromaCorrection{Magic: base}
	assert.True(t, cache.Matches(base))
	assert.False(t, cache.Matches(ColorMagic(0.99, desc)))
}
