package highlights

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// Filter words for the 2x2 Bayer layouts (dcraw convention).
const (
	FiltersLinear uint32 = 0
	FiltersXTrans uint32 = 9
	FiltersRGGB   uint32 = 0x94949494
	FiltersBGGR   uint32 = 0x16161616
	FiltersGRBG   uint32 = 0x61616161
	FiltersGBRG   uint32 = 0x49494949
)

// DefaultXTrans is the Fujifilm X-Trans layout (0=R, 1=G, 2=B).
var DefaultXTrans = [6][6]uint8{
	{1, 1, 0, 1, 1, 2},
	{1, 1, 2, 1, 1, 0},
	{2, 0, 1, 0, 2, 1},
	{1, 1, 2, 1, 1, 0},
	{1, 1, 0, 1, 1, 2},
	{0, 2, 1, 2, 0, 1},
}

// Pattern is the colour filter array of the sensor.
// Filters == 0 means the buffer is already linear RGB with a stride of 4.
type Pattern struct {
	Filters uint32      `yaml:"filters"`
	XTrans  [6][6]uint8 `yaml:"xtrans"`
}

// BayerPattern returns the Pattern for a named 2x2 layout such as "RGGB".
func BayerPattern(name string) (Pattern, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "RGGB":
		return Pattern{Filters: FiltersRGGB}, nil
	case "BGGR":
		return Pattern{Filters: FiltersBGGR}, nil
	case "GRBG":
		return Pattern{Filters: FiltersGRBG}, nil
	case "GBRG":
		return Pattern{Filters: FiltersGBRG}, nil
	case "XTRANS":
		return XTransPattern(DefaultXTrans), nil
	case "", "LINEAR", "RGB":
		return Pattern{Filters: FiltersLinear}, nil
	default:
		return Pattern{}, fmt.Errorf("unknown CFA pattern %q", name)
	}
}

// XTransPattern returns the Pattern for a 6x6 X-Trans matrix.
func XTransPattern(xtrans [6][6]uint8) Pattern {
	return Pattern{Filters: FiltersXTrans, XTrans: xtrans}
}

func (p Pattern) IsLinear() bool { return p.Filters == FiltersLinear }
func (p Pattern) IsXTrans() bool { return p.Filters == FiltersXTrans }

// Stride is the number of floats per photosite in the buffer.
func (p Pattern) Stride() int {
	if p.IsLinear() {
		return 4
	}
	return 1
}

// Color returns the channel index (0=R, 1=G, 2=B) of the photosite at
// roi-relative (row, col). Linear buffers carry all channels and return -1.
func (p Pattern) Color(row, col int, roi ROI) int {
	switch p.Filters {
	case FiltersLinear:
		return -1
	case FiltersXTrans:
		return int(p.XTrans[(row+roi.Y+600)%6][(col+roi.X+600)%6])
	default:
		return fcBayer(row+roi.Y, col+roi.X, p.Filters)
	}
}

func fcBayer(row, col int, filters uint32) int {
	shift := uint((((row << 1) & 14) + (col & 1)) << 1)
	c := int((filters >> shift) & 3)
	if c == 3 {
		return 1
	}
	return c
}

func (p Pattern) String() string {
	switch p.Filters {
	case FiltersLinear:
		return "linear"
	case FiltersXTrans:
		return "xtrans"
	case FiltersRGGB:
		return "RGGB"
	case FiltersBGGR:
		return "BGGR"
	case FiltersGRBG:
		return "GRBG"
	case FiltersGBRG:
		return "GBRG"
	default:
		return fmt.Sprintf("bayer(0x%08x)", p.Filters)
	}
}

// ClipModel holds the per-channel thresholds of one call.
type ClipModel struct {
	Clips    [3]float32
	ClipDark [3]float32
}

// NewClipModel derives the clip thresholds from the global clip value and
// the white balance coefficients.
func NewClipModel(clip float32, wb WhiteBalance) ClipModel {
	clipval := 0.987 * clip
	coeffs := wb.Effective()
	var m ClipModel
	for c := 0; c < 3; c++ {
		m.Clips[c] = clipval * coeffs[c]
	}
	m.ClipDark = [3]float32{0.03 * m.Clips[0], 0.125 * m.Clips[1], 0.03 * m.Clips[2]}
	return m
}

// ColorMagic fingerprints the inputs that influence the chroma correction.
// The result is an integer in [0, 2^53) so float64 holds it exactly.
func ColorMagic(clip float32, desc BufferDesc) float64 {
	h := fnv.New64a()
	var buf [4]byte
	put := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[:], v)
		h.Write(buf[:])
	}
	if desc.WhiteBalance.Enabled {
		put(1)
		for _, c := range desc.WhiteBalance.Coeffs {
			put(math.Float32bits(c))
		}
	} else {
		put(0)
	}
	put(math.Float32bits(clip))
	put(desc.Pattern.Filters)
	if desc.Pattern.IsXTrans() {
		for _, row := range desc.Pattern.XTrans {
			h.Write(row[:])
		}
	}
	return float64(h.Sum64() >> 11)
}
