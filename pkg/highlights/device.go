package highlights

// BufferKind is the element type of a device buffer.
type BufferKind int

const (
	Float32Buffer BufferKind = iota
	Uint8Buffer
)

func (k BufferKind) String() string {
	if k == Uint8Buffer {
		return "uint8"
	}
	return "float32"
}

// Buffer is a device-resident buffer. Kernels access its storage directly,
// the host only through Device transfers.
type Buffer struct {
	id   int
	kind BufferKind
	f32  []float32
	u8   []uint8
}

func newBuffer(id int, kind BufferKind, n int) *Buffer {
	b := &Buffer{id: id, kind: kind}
	if kind == Uint8Buffer {
		b.u8 = make([]uint8, n)
	} else {
		b.f32 = make([]float32, n)
	}
	return b
}

// Len is the number of elements in the buffer.
func (b *Buffer) Len() int {
	if b.kind == Uint8Buffer {
		return len(b.u8)
	}
	return len(b.f32)
}

func (b *Buffer) Kind() BufferKind { return b.kind }

func (b *Buffer) float32s() []float32 { return b.f32 }

func (b *Buffer) uint8s() []uint8 { return b.u8 }

// Kernel is one work item of a 2D launch.
type Kernel func(x, y int)

// Device is the capability set the accelerator pipeline needs. Every
// method that can fail returns an error and leaves already allocated
// buffers to the caller to release.
type Device interface {
	AllocFloat32(n int) (*Buffer, error)
	AllocUint8(n int) (*Buffer, error)
	// WriteFloat32 copies src into the start of dst.
	WriteFloat32(dst *Buffer, src []float32) error
	// ReadFloat32 copies the start of src into dst.
	ReadFloat32(dst []float32, src *Buffer) error
	// ReadUint8 copies the start of src into dst.
	ReadUint8(dst []uint8, src *Buffer) error
	// Enqueue2D runs k for every (x, y) in [0, width) x [0, height) and
	// returns once all work items completed.
	Enqueue2D(name string, width, height int, k Kernel) error
	Release(b *Buffer)
}
