package highlights

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
)

// SoftDevice is a Device that keeps its buffers in host memory and runs
// kernels on a fixed number of goroutines.
type SoftDevice struct {
	workers int

	mu     sync.Mutex
	nextID int
	live   map[int]*Buffer
}

// NewSoftDevice creates a SoftDevice. workers <= 0 uses GOMAXPROCS.
func NewSoftDevice(workers int) *SoftDevice {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &SoftDevice{workers: workers, live: make(map[int]*Buffer)}
}

// Live returns the number of allocated, unreleased buffers.
func (d *SoftDevice) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

func (d *SoftDevice) alloc(kind BufferKind, n int) (*Buffer, error) {
	if n <= 0 {
		return nil, errors.Errorf("invalid buffer size %d", n)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	b := newBuffer(d.nextID, kind, n)
	d.live[b.id] = b
	return b, nil
}

func (d *SoftDevice) AllocFloat32(n int) (*Buffer, error) { return d.alloc(Float32Buffer, n) }

func (d *SoftDevice) AllocUint8(n int) (*Buffer, error) { return d.alloc(Uint8Buffer, n) }

func (d *SoftDevice) owns(b *Buffer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return b != nil && d.live[b.id] == b
}

func (d *SoftDevice) WriteFloat32(dst *Buffer, src []float32) error {
	if !d.owns(dst) || dst.Kind() != Float32Buffer {
		return errors.New("write to foreign or released buffer")
	}
	if len(src) > dst.Len() {
		return errors.Errorf("write of %d floats into buffer of %d", len(src), dst.Len())
	}
	copy(dst.float32s(), src)
	return nil
}

func (d *SoftDevice) ReadFloat32(dst []float32, src *Buffer) error {
	if !d.owns(src) || src.Kind() != Float32Buffer {
		return errors.New("read from foreign or released buffer")
	}
	if len(dst) > src.Len() {
		return errors.Errorf("read of %d floats from buffer of %d", len(dst), src.Len())
	}
	copy(dst, src.float32s())
	return nil
}

func (d *SoftDevice) ReadUint8(dst []uint8, src *Buffer) error {
	if !d.owns(src) || src.Kind() != Uint8Buffer {
		return errors.New("read from foreign or released buffer")
	}
	if len(dst) > src.Len() {
		return errors.Errorf("read of %d bytes from buffer of %d", len(dst), src.Len())
	}
	copy(dst, src.uint8s())
	return nil
}

// Enqueue2D splits the launch into row bands, one per worker.
func (d *SoftDevice) Enqueue2D(name string, width, height int, k Kernel) error {
	if width < 0 || height < 0 {
		return errors.Errorf("kernel %s: invalid global size %dx%d", name, width, height)
	}
	if width == 0 || height == 0 {
		return nil
	}
	workers := min(d.workers, height)
	band := (height + workers - 1) / workers
	var wg sync.WaitGroup
	for y0 := 0; y0 < height; y0 += band {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for y := start; y < end; y++ {
				for x := 0; x < width; x++ {
					k(x, y)
				}
			}
		}(y0, min(y0+band, height))
	}
	wg.Wait()
	return nil
}

func (d *SoftDevice) Release(b *Buffer) {
	if b == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.live, b.id)
}

// atomicAddFloat32 adds delta to *addr with a compare-and-swap loop.
func atomicAddFloat32(addr *float32, delta float32) {
	p := (*uint32)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint32(p)
		next := math.Float32bits(math.Float32frombits(old) + delta)
		if atomic.CompareAndSwapUint32(p, old, next) {
			return
		}
	}
}
