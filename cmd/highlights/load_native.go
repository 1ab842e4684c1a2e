//go:build !purego && !js

package main

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	hl "highlights/pkg/highlights"
)

// loadNonFitsImage reads 8 or 16-bit images through OpenCV. Single channel
// images are mosaics, colour images are converted from BGR to linear RGB.
func loadNonFitsImage(path string) (*hl.Frame, error) {
	src := gocv.IMRead(path, gocv.IMReadUnchanged)
	if src.Empty() {
		return nil, errors.Errorf("could not load image: %s", path)
	}
	defer src.Close()

	scale := float32(1.0 / 255)
	switch src.Type() {
	case gocv.MatTypeCV16UC1, gocv.MatTypeCV16UC3, gocv.MatTypeCV16UC4:
		scale = 1.0 / 65535
	}

	floatMat := gocv.NewMat()
	defer floatMat.Close()
	src.ConvertTo(&floatMat, gocv.MatTypeCV32F)

	data, err := floatMat.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "reading pixel data")
	}
	for i := range data {
		data[i] *= scale
	}

	w, h, channels := src.Cols(), src.Rows(), src.Channels()
	if channels == 1 {
		frame := hl.NewFrame(w, h, false)
		copy(frame.Data, data[:w*h])
		return frame, nil
	}
	if channels < 3 {
		return nil, errors.Errorf("unsupported channel count %d", channels)
	}
	frame := hl.NewFrame(w, h, true)
	for i := 0; i < w*h; i++ {
		px := data[i*channels:]
		frame.Data[i*4] = px[2]
		frame.Data[i*4+1] = px[1]
		frame.Data[i*4+2] = px[0]
	}
	return frame, nil
}
