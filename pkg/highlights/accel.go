package highlights

import (
	"context"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// devicePass tracks the buffers one ProcessDevice call allocated.
type devicePass struct {
	dev  Device
	bufs []*Buffer
}

func (d *devicePass) allocFloat32(op string, n int) (*Buffer, error) {
	b, err := d.dev.AllocFloat32(n)
	if err != nil {
		return nil, deviceError(op, StatusAllocFailed, err)
	}
	d.bufs = append(d.bufs, b)
	return b, nil
}

func (d *devicePass) allocUint8(op string, n int) (*Buffer, error) {
	b, err := d.dev.AllocUint8(n)
	if err != nil {
		return nil, deviceError(op, StatusAllocFailed, err)
	}
	d.bufs = append(d.bufs, b)
	return b, nil
}

func (d *devicePass) write(op string, dst *Buffer, src []float32) error {
	if err := d.dev.WriteFloat32(dst, src); err != nil {
		return deviceError(op, StatusTransferFailed, err)
	}
	return nil
}

func (d *devicePass) read(op string, dst []float32, src *Buffer) error {
	if err := d.dev.ReadFloat32(dst, src); err != nil {
		return deviceError(op, StatusTransferFailed, err)
	}
	return nil
}

func (d *devicePass) readMask(op string, dst []uint8, src *Buffer) error {
	if err := d.dev.ReadUint8(dst, src); err != nil {
		return deviceError(op, StatusTransferFailed, err)
	}
	return nil
}

func (d *devicePass) launch(name string, width, height int, k Kernel) error {
	if err := d.dev.Enqueue2D(name, width, height, k); err != nil {
		return deviceError(name, StatusLaunchFailed, err)
	}
	return nil
}

func (d *devicePass) releaseAll() {
	for _, b := range d.bufs {
		d.dev.Release(b)
	}
	d.bufs = nil
}

// ProcessDevice is the accelerator counterpart of Process. in and out are
// float32 buffers on dev holding the input and output ROIs. The pipeline
// runs as the initmask, dilate, chroma and opposed kernels. On failure every
// buffer the call allocated is released and a *DeviceError is returned.
// Output contents are undefined after a failure.
func (p *Processor) ProcessDevice(ctx context.Context, dev Device, in, out *Buffer, roiIn, roiOut ROI, opts Options) (*Result, error) {
	pattern := p.Desc.Pattern
	if in == nil || out == nil || in.Kind() != Float32Buffer || out.Kind() != Float32Buffer {
		return nil, errors.Wrap(ErrBufferSize, "device buffers must hold float32")
	}
	if err := validate(in.Len(), out.Len(), roiIn, roiOut, pattern.Stride()); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "process cancelled")
	}

	dp := &devicePass{dev: dev}
	defer dp.releaseAll()

	clips := p.ClipModel()
	g := newGrid(in.float32s(), roiIn, pattern)
	res := &Result{Clips: clips, Metrics: &Metrics{}}

	chroma := p.cache.Correction
	magic := p.ColorMagic()
	if p.cache.Matches(magic) {
		res.Metrics.CacheHit = true
	} else if opts.Quality {
		var err error
		if chroma, err = p.estimateChromaDevice(dp, g, clips, opts, res); err != nil {
			return nil, err
		}
		p.maskPasses++
		if p.shouldCommit(roiOut, pattern.IsLinear()) {
			p.commit(chroma, magic)
			res.Metrics.Committed = true
		}
	}
	res.Chrominance = chroma

	if opts.Keep {
		tmp, err := dp.allocFloat32("alloc intermediate", in.Len())
		if err != nil {
			return nil, err
		}
		keep := &opposedKernel{g: g, clips: clips, chroma: chroma, roiOut: roiIn, out: tmp.float32s()}
		if err := dp.launch("opposed", roiIn.Width, roiIn.Height, keep.run); err != nil {
			return nil, err
		}
		res.Intermediate = make([]float32, in.Len())
		if err := dp.read("read intermediate", res.Intermediate, tmp); err != nil {
			return nil, err
		}
	}

	k := &opposedKernel{g: g, clips: clips, chroma: chroma, roiOut: roiOut, out: out.float32s()}
	if err := dp.launch("opposed", roiOut.Width, roiOut.Height, k.run); err != nil {
		return nil, err
	}

	p.debugf("device metrics %s", res.Metrics)
	return res, nil
}

// estimateChromaDevice runs the mask and chroma kernels and finishes the
// division on the host.
func (p *Processor) estimateChromaDevice(dp *devicePass, g grid, clips ClipModel, opts Options, res *Result) ([3]float32, error) {
	var chroma [3]float32
	m := newMaskGeometry(g.width, g.height)

	inmask, err := dp.allocUint8("alloc inmask", 3*m.size)
	if err != nil {
		return chroma, err
	}
	outmask, err := dp.allocUint8("alloc outmask", 3*m.size)
	if err != nil {
		return chroma, err
	}
	accu, err := dp.allocFloat32("alloc accu", 8)
	if err != nil {
		return chroma, err
	}
	clipped, err := dp.allocFloat32("alloc clipped", 4)
	if err != nil {
		return chroma, err
	}
	if err := dp.write("write accu", accu, make([]float32, 8)); err != nil {
		return chroma, err
	}
	if err := dp.write("write clipped", clipped, make([]float32, 4)); err != nil {
		return chroma, err
	}

	initMask := &initMaskKernel{g: g, clips: clips, m: m, inmask: inmask.uint8s(), clipped: clipped.float32s()}
	if err := dp.launch("initmask", m.stride, m.rows, initMask.run); err != nil {
		return chroma, err
	}
	dilate := &dilateKernel{m: m, inmask: inmask.uint8s(), outmask: outmask.uint8s()}
	if err := dp.launch("dilatemask", m.mwidth, m.mheight, dilate.run); err != nil {
		return chroma, err
	}
	ck := &chromaKernel{g: g, clips: clips, m: m, outmask: outmask.uint8s(), accu: accu.float32s()}
	if err := dp.launch("chroma", g.width, g.height, ck.run); err != nil {
		return chroma, err
	}

	var sums [8]float32
	if err := dp.read("read accu", sums[:], accu); err != nil {
		return chroma, err
	}
	var counts [4]float32
	if err := dp.read("read clipped", counts[:], clipped); err != nil {
		return chroma, err
	}

	res.Metrics.MaskBuilt = true
	for c := 0; c < 3; c++ {
		chroma[c] = sums[c] / math32.Max(1, sums[4+c])
		res.Metrics.ChromaSamples[c] = int64(sums[4+c])
		res.Metrics.ClippedPhotosites[c] = int64(counts[c])
		res.Metrics.AnyClipped = res.Metrics.AnyClipped || counts[c] > 0
	}

	if opts.StoreMask {
		planes := make([]uint8, m.scratchSize())
		if err := dp.readMask("read inmask", planes[:3*m.size], inmask); err != nil {
			return chroma, err
		}
		if err := dp.readMask("read outmask", planes[3*m.size:], outmask); err != nil {
			return chroma, err
		}
		res.DebugData = maskDebugData(planes, m)
	}
	return chroma, nil
}

// ProcessOnDevice uploads in, runs ProcessDevice and downloads the output
// into out.
func (p *Processor) ProcessOnDevice(ctx context.Context, dev Device, in, out []float32, roiIn, roiOut ROI, opts Options) (*Result, error) {
	stride := p.Desc.Pattern.Stride()
	if err := validate(len(in), len(out), roiIn, roiOut, stride); err != nil {
		return nil, err
	}
	dp := &devicePass{dev: dev}
	defer dp.releaseAll()

	n := roiIn.Pixels() * stride
	devIn, err := dp.allocFloat32("alloc input", n)
	if err != nil {
		return nil, err
	}
	devOut, err := dp.allocFloat32("alloc output", roiOut.Pixels()*stride)
	if err != nil {
		return nil, err
	}
	if err := dp.write("write input", devIn, in[:n]); err != nil {
		return nil, err
	}
	res, err := p.ProcessDevice(ctx, dev, devIn, devOut, roiIn, roiOut, opts)
	if err != nil {
		return nil, err
	}
	if err := dp.read("read output", out[:roiOut.Pixels()*stride], devOut); err != nil {
		return nil, err
	}
	return res, nil
}
