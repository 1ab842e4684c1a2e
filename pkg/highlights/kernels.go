package highlights

// Work items of the accelerator pipeline. Each kernel reads and writes only
// device buffers, the host talks to them through Device transfers.

// initMaskKernel runs per coarse cell and flags the clipped channels of the
// cell's interior photosites. inmask holds three planes of size cells.
type initMaskKernel struct {
	g       grid
	clips   ClipModel
	m       maskGeometry
	inmask  []uint8
	clipped []float32
}

func (k *initMaskKernel) run(x, y int) {
	if x >= k.m.stride || y >= k.m.rows {
		return
	}
	var flags, counts [3]int
	for row := max(1, 3*y); row < min(k.g.height-1, 3*y+3); row++ {
		for col := max(1, 3*x); col < min(k.g.width-1, 3*x+3); col++ {
			lo, hi := k.g.channels(row, col)
			for c := lo; c < hi; c++ {
				if k.g.value(row, col, c) >= k.clips.Clips[c] {
					flags[c] = 1
					counts[c]++
				}
			}
		}
	}
	idx := y*k.m.stride + x
	for c := 0; c < 3; c++ {
		k.inmask[c*k.m.size+idx] = uint8(flags[c])
		if counts[c] > 0 {
			atomicAddFloat32(&k.clipped[c], float32(counts[c]))
		}
	}
}

// dilateKernel runs per coarse cell and writes the dilated planes.
type dilateKernel struct {
	m       maskGeometry
	inmask  []uint8
	outmask []uint8
}

func (k *dilateKernel) run(x, y int) {
	if !k.m.dilatable(y, x) {
		return
	}
	idx := y*k.m.stride + x
	for c := 0; c < 3; c++ {
		plane := k.inmask[c*k.m.size : (c+1)*k.m.size]
		k.outmask[c*k.m.size+idx] = dilatedAt(plane, idx, k.m.stride)
	}
}

// chromaKernel runs per photosite and adds sampled residuals into accu,
// laid out as sum[4] followed by count[4].
type chromaKernel struct {
	g       grid
	clips   ClipModel
	m       maskGeometry
	outmask []uint8
	accu    []float32
}

func (k *chromaKernel) run(x, y int) {
	if !k.g.interior(y, x) {
		return
	}
	cell := k.m.cell(y, x)
	lo, hi := k.g.channels(y, x)
	for c := lo; c < hi; c++ {
		v := k.g.value(y, x, c)
		if !sampled(v, c, k.clips, k.outmask[c*k.m.size+cell]) {
			continue
		}
		atomicAddFloat32(&k.accu[c], v-k.g.refavg(y, x, c))
		atomicAddFloat32(&k.accu[4+c], 1)
	}
}

// opposedKernel runs per output pixel and writes the reconstruction of the
// mapped input location.
type opposedKernel struct {
	g      grid
	clips  ClipModel
	chroma [3]float32
	roiOut ROI
	out    []float32
}

func (k *opposedKernel) run(x, y int) {
	if x >= k.roiOut.Width || y >= k.roiOut.Height {
		return
	}
	stride := k.g.stride()
	irow := clampInt(y+k.roiOut.Y-k.g.roi.Y, 0, k.g.height-1)
	icol := clampInt(x+k.roiOut.X-k.g.roi.X, 0, k.g.width-1)
	odx := (y*k.roiOut.Width + x) * stride
	reconstructPixel(k.g, k.out[odx:odx+stride], irow, icol, k.clips, k.chroma)
}
