package highlights

import (
	"fmt"
	"math"
)

// PipeType identifies the kind of pipeline evaluating the module.
type PipeType int

const (
	PipeFull PipeType = iota
	PipePreview
	PipeExport
	PipeThumbnail
)

func (t PipeType) String() string {
	switch t {
	case PipeFull:
		return "full"
	case PipePreview:
		return "preview"
	case PipeExport:
		return "export"
	case PipeThumbnail:
		return "thumbnail"
	default:
		return "unknown"
	}
}

// ROI describes the materialised part of a conceptually larger image.
// X and Y are absolute image coordinates of the first sample.
type ROI struct {
	X      int
	Y      int
	Width  int
	Height int
	Scale  float32
}

// FullROI covers a whole width x height buffer at scale 1.
func FullROI(width, height int) ROI {
	return ROI{Width: width, Height: height, Scale: 1}
}

func (r ROI) Pixels() int { return r.Width * r.Height }

func (r ROI) scale() float32 {
	if r.Scale <= 0 {
		return 1
	}
	return r.Scale
}

func (r ROI) String() string {
	return fmt.Sprintf("{X=%d, Y=%d, Width=%d, Height=%d, Scale=%f}", r.X, r.Y, r.Width, r.Height, r.Scale)
}

// WhiteBalance holds the coefficients applied upstream of the module.
type WhiteBalance struct {
	Enabled bool       `yaml:"enabled"`
	Coeffs  [3]float32 `yaml:"coeffs"`
}

// Effective returns the coefficients, or unity when white balance is off.
func (wb WhiteBalance) Effective() [3]float32 {
	if !wb.Enabled {
		return [3]float32{1, 1, 1}
	}
	return wb.Coeffs
}

// BufferDesc describes the input buffer as delivered by the pipeline.
type BufferDesc struct {
	Pattern      Pattern      `yaml:"pattern"`
	WhiteBalance WhiteBalance `yaml:"white_balance"`
}

// Params are the user-visible, persisted module parameters.
type Params struct {
	Clip             float32    `yaml:"clip"`
	ChromaCorrection [3]float32 `yaml:"chroma_correction"`
	ColorMagic       float64    `yaml:"color_magic"`
}

// NewParams creates Params with default values.
func NewParams() *Params {
	return &Params{
		Clip: 1.0,
	}
}

// ChromaCorrection is the cached per-channel correction plus the fingerprint
// of the inputs it was computed from.
type ChromaCorrection struct {
	Correction [3]float32
	Magic      float64
}

const magicTolerance = 1e-6

// Matches reports whether the correction was computed for the given fingerprint.
func (c ChromaCorrection) Matches(magic float64) bool {
	return math.Abs(c.Magic-magic) <= magicTolerance
}

func (c ChromaCorrection) String() string {
	return fmt.Sprintf("{Correction=(%f,%f,%f), Magic=%f}", c.Correction[0], c.Correction[1], c.Correction[2], c.Magic)
}

// Host is the surrounding pipeline. It decides whether a freshly computed
// correction may be persisted and receives the new parameters.
type Host interface {
	PipeType() PipeType
	// ImageAltered reports whether the image already has saved edit history.
	ImageAltered() bool
	// NativeSize is the full input buffer size of the image in the pipeline.
	NativeSize() (width, height int)
	// AddHistoryItem persists the module parameters and marks history dirty.
	AddHistoryItem(p Params)
}

// Options control one reconstruction call.
type Options struct {
	// Quality allows the expensive mask/accumulate path to run.
	Quality bool
	// Keep requests a retained full-frame reconstruction of the input ROI.
	Keep bool
	// StoreMask keeps the coarse clip and dilated masks in DebugData.
	StoreMask bool
}

// DefaultOptions returns Options for an interactive full-quality call.
func DefaultOptions() Options {
	return Options{Quality: true}
}

// Metrics tracks what a reconstruction call did.
type Metrics struct {
	CacheHit          bool
	MaskBuilt         bool
	ScratchFailed     bool
	AnyClipped        bool
	Committed         bool
	ClippedPhotosites [3]int64
	ChromaSamples     [3]int64
	Reconstructed     int64
}

func (m *Metrics) String() string {
	return fmt.Sprintf("{CacheHit=%t, MaskBuilt=%t, ScratchFailed=%t, AnyClipped=%t, Committed=%t, Clipped=%v, Samples=%v, Reconstructed=%d}",
		m.CacheHit, m.MaskBuilt, m.ScratchFailed, m.AnyClipped, m.Committed, m.ClippedPhotosites, m.ChromaSamples, m.Reconstructed)
}

// MaskClipped returns the clipped bit for a channel in DebugData.Mask.
func MaskClipped(c int) byte { return 1 << uint(c) }

// MaskDilated returns the dilated bit for a channel.
func MaskDilated(c int) byte { return 8 << uint(c) }

// DebugData contains optional debug information from a reconstruction call.
type DebugData struct {
	// One byte per coarse cell, see MaskClipped and MaskDilated.
	Mask       []byte
	MaskWidth  int
	MaskHeight int
}

// Result is the output of a reconstruction call.
type Result struct {
	Chrominance [3]float32
	Clips       ClipModel
	Metrics     *Metrics
	// Intermediate is the full-frame reconstruction of the input ROI when
	// Options.Keep was set. The caller owns it.
	Intermediate []float32
	DebugData    *DebugData
}
