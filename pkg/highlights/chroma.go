package highlights

// chromaSums are the per-channel residual sums and sample counts.
type chromaSums struct {
	sum [3]float64
	cnt [3]int64
}

func (s *chromaSums) add(o chromaSums) {
	for c := 0; c < 3; c++ {
		s.sum[c] += o.sum[c]
		s.cnt[c] += o.cnt[c]
	}
}

// chrominance divides the sums by max(1, count).
func (s chromaSums) chrominance() [3]float32 {
	var out [3]float32
	for c := 0; c < 3; c++ {
		out[c] = float32(s.sum[c] / float64(max(1, s.cnt[c])))
	}
	return out
}

// sampled reports whether a photosite contributes to the chroma estimate:
// unclipped, above the dark threshold and inside the dilated mask.
func sampled(v float32, c int, clips ClipModel, dilated uint8) bool {
	return v > clips.ClipDark[c] && v < clips.Clips[c] && dilated != 0
}

// accumulateChroma sums actual minus refavg over the sampled photosites.
// Partial sums are kept per row chunk and combined in chunk order so the
// result does not depend on goroutine scheduling.
func accumulateChroma(g grid, clips ClipModel, mask []uint8, m maskGeometry) chromaSums {
	rows := g.height - 2
	if rows <= 0 || g.width < 3 {
		return chromaSums{}
	}
	parts := make([]chromaSums, numChunks(rows))
	parallelRows(rows, func(chunk, start, end int) {
		p := &parts[chunk]
		for r := start; r < end; r++ {
			row := r + 1
			for col := 1; col < g.width-1; col++ {
				cell := m.cell(row, col)
				lo, hi := g.channels(row, col)
				for c := lo; c < hi; c++ {
					v := g.value(row, col, c)
					if !sampled(v, c, clips, mask[(3+c)*m.size+cell]) {
						continue
					}
					p.sum[c] += float64(v - g.refavg(row, col, c))
					p.cnt[c]++
				}
			}
		}
	})

	var total chromaSums
	for _, p := range parts {
		total.add(p)
	}
	return total
}
