package highlights

import (
	"runtime"
	"sync"
)

// parallelRows runs fn over [0, n) split into contiguous chunks, one
// goroutine per chunk. fn receives the chunk index so callers can keep
// per-chunk partial results and combine them in chunk order.
func parallelRows(n int, fn func(chunk, start, end int)) {
	if n <= 0 {
		return
	}
	size := chooseChunk(n)
	chunks := (n + size - 1) / size
	if chunks == 1 {
		fn(0, 0, n)
		return
	}
	var wg sync.WaitGroup
	for i := 0; i < chunks; i++ {
		start := i * size
		end := min(start+size, n)
		wg.Add(1)
		go func(chunk, s, e int) {
			defer wg.Done()
			fn(chunk, s, e)
		}(i, start, end)
	}
	wg.Wait()
}

// numChunks returns how many chunks parallelRows will use for n rows.
func numChunks(n int) int {
	if n <= 0 {
		return 0
	}
	size := chooseChunk(n)
	return (n + size - 1) / size
}

// chooseChunk picks a rows-per-goroutine size that keeps a few chunks per
// CPU without spawning tiny tasks.
func chooseChunk(n int) int {
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	size := n / (workers * 2)
	if size < 8 {
		size = 8
	}
	return size
}
