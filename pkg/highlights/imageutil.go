package highlights

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// Frame is a decoded image in the buffer layout Process expects.
type Frame struct {
	Data   []float32
	Width  int
	Height int
	// Linear frames hold four floats per pixel (R, G, B, unused), mosaics one.
	Linear bool
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height int, linear bool) *Frame {
	stride := 1
	if linear {
		stride = 4
	}
	return &Frame{Data: make([]float32, width*height*stride), Width: width, Height: height, Linear: linear}
}

// ROI is the full-frame region at the given origin.
func (f *Frame) ROI(x, y int) ROI {
	return ROI{X: x, Y: y, Width: f.Width, Height: f.Height, Scale: 1}
}

// FrameFromImage converts an image to a frame normalized to [0, 1].
// Gray images become mosaics, everything else linear RGB.
func FrameFromImage(img image.Image) (*Frame, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, errors.New("image is empty")
	}
	w, h := b.Dx(), b.Dy()
	switch src := img.(type) {
	case *image.Gray16:
		f := NewFrame(w, h, false)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				f.Data[y*w+x] = float32(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y) / 0xffff
			}
		}
		return f, nil
	case *image.Gray:
		f := NewFrame(w, h, false)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				f.Data[y*w+x] = float32(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y) / 0xff
			}
		}
		return f, nil
	}
	f := NewFrame(w, h, true)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			i := (y*w + x) * 4
			f.Data[i] = float32(c.R) / 0xffff
			f.Data[i+1] = float32(c.G) / 0xffff
			f.Data[i+2] = float32(c.B) / 0xffff
		}
	}
	return f, nil
}

// Image converts the frame to a 16-bit image, clamping values to [0, 1].
func (f *Frame) Image() image.Image {
	r := image.Rect(0, 0, f.Width, f.Height)
	if !f.Linear {
		img := image.NewGray16(r)
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				img.SetGray16(x, y, color.Gray16{Y: unit16(f.Data[y*f.Width+x])})
			}
		}
		return img
	}
	img := image.NewRGBA64(r)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := (y*f.Width + x) * 4
			img.SetRGBA64(x, y, color.RGBA64{
				R: unit16(f.Data[i]),
				G: unit16(f.Data[i+1]),
				B: unit16(f.Data[i+2]),
				A: 0xffff,
			})
		}
	}
	return img
}

// Scale multiplies every sample by s, used to normalize to a white level.
func (f *Frame) Scale(s float32) {
	for i := range f.Data {
		f.Data[i] *= s
	}
}

func unit16(v float32) uint16 {
	return uint16(math32.Round(clampUnit(v) * 0xffff))
}

func clampUnit(v float32) float32 {
	return math32.Min(1, math32.Max(0, v))
}
