package highlights

// maskBorder is the number of coarse cells left undilated at each edge.
const maskBorder = 3

// maskGeometry describes the coarse mask of an input ROI. One cell
// summarises a 3x3 block of photosites; stride and rows leave room for the
// partial cells of widths and heights that are not a multiple of 3.
type maskGeometry struct {
	mwidth  int
	mheight int
	stride  int
	rows    int
	size    int
}

func newMaskGeometry(width, height int) maskGeometry {
	mw := width / 3
	mh := height / 3
	return maskGeometry{
		mwidth:  mw,
		mheight: mh,
		stride:  mw + 1,
		rows:    mh + 1,
		size:    (mw + 1) * (mh + 1),
	}
}

// cell maps a photosite to its coarse mask cell.
func (m maskGeometry) cell(row, col int) int {
	return (row/3)*m.stride + col/3
}

// scratchSize is the byte size of the six mask planes (3 clipped, 3 dilated).
func (m maskGeometry) scratchSize() int {
	return 6 * m.size
}

func (m maskGeometry) clipped(mask []uint8, c int) []uint8 {
	return mask[c*m.size : (c+1)*m.size]
}

func (m maskGeometry) dilated(mask []uint8, c int) []uint8 {
	return mask[(3+c)*m.size : (4+c)*m.size]
}

// dilateOffset is a (row, col) offset in the dilation neighbourhood.
type dilateOffset struct{ dy, dx int }

// dilateOffsets is the 7x7 square minus its corners, ordered by distance so
// dilatedAt can stop at the first hit.
var dilateOffsets = func() []dilateOffset {
	var offs []dilateOffset
	for ring := 0; ring <= 3; ring++ {
		for dy := -ring; dy <= ring; dy++ {
			for dx := -ring; dx <= ring; dx++ {
				if max(intAbs(dy), intAbs(dx)) != ring {
					continue
				}
				if intAbs(dy) == 3 && intAbs(dx) == 3 {
					continue
				}
				offs = append(offs, dilateOffset{dy, dx})
			}
		}
	}
	return offs
}()

// dilatedAt returns 1 if any cell of the neighbourhood around idx is set.
// idx must be at least maskBorder cells away from every edge.
func dilatedAt(plane []uint8, idx, stride int) uint8 {
	for _, o := range dilateOffsets {
		if plane[idx+o.dy*stride+o.dx] != 0 {
			return 1
		}
	}
	return 0
}

// dilatable reports whether a cell is inside the undilated border.
func (m maskGeometry) dilatable(row, col int) bool {
	return row >= maskBorder && col >= maskBorder && row < m.mheight-maskBorder && col < m.mwidth-maskBorder
}

// buildMask flags the coarse cells holding clipped photosites per channel.
// The 1-pixel image border is skipped. Work is split by cell rows so no two
// goroutines write the same cell.
func buildMask(g grid, clips ClipModel, mask []uint8, m maskGeometry) (bool, [3]int64) {
	type partial struct {
		any     bool
		clipped [3]int64
	}
	parts := make([]partial, numChunks(m.rows))
	parallelRows(m.rows, func(chunk, start, end int) {
		p := &parts[chunk]
		for cr := start; cr < end; cr++ {
			rowStart := max(1, 3*cr)
			rowEnd := min(g.height-1, 3*cr+3)
			for row := rowStart; row < rowEnd; row++ {
				for col := 1; col < g.width-1; col++ {
					lo, hi := g.channels(row, col)
					for c := lo; c < hi; c++ {
						if g.value(row, col, c) >= clips.Clips[c] {
							mask[c*m.size+m.cell(row, col)] = 1
							p.clipped[c]++
							p.any = true
						}
					}
				}
			}
		}
	})

	var anyClipped bool
	var clipped [3]int64
	for _, p := range parts {
		anyClipped = anyClipped || p.any
		for c := 0; c < 3; c++ {
			clipped[c] += p.clipped[c]
		}
	}
	return anyClipped, clipped
}

// dilateMask expands each channel's clipped plane into its dilated plane.
func dilateMask(mask []uint8, m maskGeometry) {
	if m.mheight <= 2*maskBorder || m.mwidth <= 2*maskBorder {
		return
	}
	for c := 0; c < 3; c++ {
		dilatePlane(m.clipped(mask, c), m.dilated(mask, c), m)
	}
}

// dilatePlaneGo is the reference dilation used by the pure backend and the
// device kernels.
func dilatePlaneGo(src, dst []uint8, m maskGeometry) {
	rows := m.mheight - 2*maskBorder
	parallelRows(rows, func(_, start, end int) {
		for r := start; r < end; r++ {
			row := r + maskBorder
			for col := maskBorder; col < m.mwidth-maskBorder; col++ {
				idx := row*m.stride + col
				dst[idx] = dilatedAt(src, idx, m.stride)
			}
		}
	})
}

// maskDebugData packs the six planes into one byte per cell.
func maskDebugData(mask []uint8, m maskGeometry) *DebugData {
	out := make([]byte, m.size)
	for c := 0; c < 3; c++ {
		clipped := m.clipped(mask, c)
		dilated := m.dilated(mask, c)
		for i := 0; i < m.size; i++ {
			if clipped[i] != 0 {
				out[i] |= MaskClipped(c)
			}
			if dilated[i] != 0 {
				out[i] |= MaskDilated(c)
			}
		}
	}
	return &DebugData{Mask: out, MaskWidth: m.stride, MaskHeight: m.rows}
}

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
