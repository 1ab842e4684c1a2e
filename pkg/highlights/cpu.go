package highlights

import (
	"context"

	"github.com/pkg/errors"
)

// Process reconstructs clipped highlights of in (roiIn) into out (roiOut)
// on the CPU. Mosaic buffers hold one float per photosite, linear buffers
// four floats per pixel. in and out must not overlap.
//
// The chroma correction is taken from the cache when its fingerprint matches
// the current parameters, otherwise it is estimated from the clipped regions
// of in (if opts.Quality allows) and possibly persisted through the Host.
func (p *Processor) Process(ctx context.Context, in, out []float32, roiIn, roiOut ROI, opts Options) (*Result, error) {
	pattern := p.Desc.Pattern
	if err := validate(len(in), len(out), roiIn, roiOut, pattern.Stride()); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "process cancelled")
	}

	clips := p.ClipModel()
	g := newGrid(in, roiIn, pattern)
	res := &Result{Clips: clips, Metrics: &Metrics{}}

	p.debugf("process pattern=%s in=%s out=%s quality=%t keep=%t",
		pattern, roiIn, roiOut, opts.Quality, opts.Keep)

	chroma := p.cache.Correction
	magic := p.ColorMagic()
	if p.cache.Matches(magic) {
		res.Metrics.CacheHit = true
	} else if opts.Quality {
		var err error
		chroma, err = p.estimateChroma(g, clips, opts, res)
		if err != nil {
			res.Metrics.ScratchFailed = true
			p.debugf("%v, keeping correction %v", err, chroma)
		} else if p.shouldCommit(roiOut, pattern.IsLinear()) {
			p.commit(chroma, magic)
			res.Metrics.Committed = true
		}
	}
	res.Chrominance = chroma

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "process cancelled")
	}

	var full []float32
	if opts.Keep {
		var n int64
		full, n = reconstructFull(g, clips, chroma)
		res.Intermediate = full
		res.Metrics.Reconstructed = n
	}
	n := reconstructROI(g, out, roiOut, clips, chroma, full)
	if full == nil {
		res.Metrics.Reconstructed = n
	}

	p.debugf("metrics %s", res.Metrics)
	return res, nil
}

// estimateChroma runs mask build, dilation and accumulation. On a scratch
// allocation failure the cached correction is returned with the error.
func (p *Processor) estimateChroma(g grid, clips ClipModel, opts Options, res *Result) ([3]float32, error) {
	m := newMaskGeometry(g.width, g.height)
	mask, err := p.allocMask(m.scratchSize())
	if err != nil {
		return p.cache.Correction, err
	}
	p.maskPasses++
	res.Metrics.MaskBuilt = true

	anyClipped, clipped := buildMask(g, clips, mask, m)
	res.Metrics.AnyClipped = anyClipped
	res.Metrics.ClippedPhotosites = clipped

	var chroma [3]float32
	if anyClipped {
		dilateMask(mask, m)
		sums := accumulateChroma(g, clips, mask, m)
		chroma = sums.chrominance()
		res.Metrics.ChromaSamples = sums.cnt
	}
	if opts.StoreMask {
		res.DebugData = maskDebugData(mask, m)
	}
	return chroma, nil
}
