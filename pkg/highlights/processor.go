package highlights

import (
	"fmt"

	"github.com/pkg/errors"
)

// Processor owns the per-instance state of the highlight reconstruction:
// the parameters, the pipeline description and the cached chroma correction.
// A Processor is not safe for concurrent calls.
type Processor struct {
	Params Params
	Desc   BufferDesc
	// Host may be nil, in which case corrections are never persisted.
	Host Host
	// AllocMask allocates the scratch mask. Nil uses make.
	AllocMask func(n int) ([]uint8, error)

	cache      ChromaCorrection
	maskPasses int
	debugMode  bool
}

// NewProcessor creates a Processor whose cache starts from the persisted
// correction in params.
func NewProcessor(params Params, desc BufferDesc, host Host) *Processor {
	return &Processor{
		Params: params,
		Desc:   desc,
		Host:   host,
		cache: ChromaCorrection{
			Correction: params.ChromaCorrection,
			Magic:      params.ColorMagic,
		},
	}
}

// SetDebugMode enables or disables debug logging.
func (p *Processor) SetDebugMode(enabled bool) {
	p.debugMode = enabled
}

// Cache returns the live chroma correction.
func (p *Processor) Cache() ChromaCorrection { return p.cache }

// MaskPasses counts how many times the mask/accumulate path was entered.
func (p *Processor) MaskPasses() int { return p.maskPasses }

// ColorMagic is the fingerprint of the current clip value and buffer description.
func (p *Processor) ColorMagic() float64 {
	return ColorMagic(p.Params.Clip, p.Desc)
}

// ClipModel returns the thresholds of the current parameters.
func (p *Processor) ClipModel() ClipModel {
	return NewClipModel(p.Params.Clip, p.Desc.WhiteBalance)
}

func (p *Processor) debugf(format string, args ...any) {
	if p.debugMode {
		fmt.Printf("[DEBUG] "+format+"\n", args...)
	}
}

func (p *Processor) allocMask(n int) ([]uint8, error) {
	if p.AllocMask == nil {
		return make([]uint8, n), nil
	}
	mask, err := p.AllocMask(n)
	if err != nil {
		return nil, errors.Wrap(ErrScratchAlloc, err.Error())
	}
	if len(mask) < n {
		return nil, errors.Wrapf(ErrScratchAlloc, "got %d bytes, need %d", len(mask), n)
	}
	mask = mask[:n]
	clear(mask)
	return mask, nil
}

// shouldCommit reports whether a fresh correction may be persisted. Only an
// interactive full pipeline on an image with saved history qualifies. The
// linear variant also requires the output to cover about the native size.
func (p *Processor) shouldCommit(roiOut ROI, linear bool) bool {
	if p.Host == nil || p.Host.PipeType() != PipeFull {
		return false
	}
	if linear {
		nw, nh := p.Host.NativeSize()
		scale := roiOut.scale()
		// Scaled sizes are truncated before comparing.
		if intAbs(int(float32(roiOut.Width)/scale)-nw) >= 10 ||
			intAbs(int(float32(roiOut.Height)/scale)-nh) >= 10 {
			return false
		}
	}
	return p.Host.ImageAltered()
}

// commit writes the correction into the live cache and the persisted
// parameters and notifies the host.
func (p *Processor) commit(chroma [3]float32, magic float64) {
	p.cache = ChromaCorrection{Correction: chroma, Magic: magic}
	p.Params.ChromaCorrection = chroma
	p.Params.ColorMagic = magic
	p.Host.AddHistoryItem(p.Params)
	p.debugf("new chroma history: %f %f %f", chroma[0], chroma[1], chroma[2])
}

// validate checks the buffers against their ROIs.
func validate(in, out int, roiIn, roiOut ROI, stride int) error {
	if roiIn.Width <= 0 || roiIn.Height <= 0 {
		return errors.Wrapf(ErrInvalidROI, "input %s", roiIn)
	}
	if roiOut.Width <= 0 || roiOut.Height <= 0 {
		return errors.Wrapf(ErrInvalidROI, "output %s", roiOut)
	}
	if in < roiIn.Pixels()*stride {
		return errors.Wrapf(ErrBufferSize, "input has %d floats, need %d", in, roiIn.Pixels()*stride)
	}
	if out < roiOut.Pixels()*stride {
		return errors.Wrapf(ErrBufferSize, "output has %d floats, need %d", out, roiOut.Pixels()*stride)
	}
	return nil
}
