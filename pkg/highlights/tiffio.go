package highlights

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
)

// ReadTIFF decodes a TIFF into a frame. 16-bit grayscale files are read as
// mosaics, colour files as linear RGB.
func ReadTIFF(r io.Reader) (*Frame, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decoding TIFF")
	}
	return FrameFromImage(img)
}

// WriteTIFF encodes the frame as a deflate-compressed 16-bit TIFF.
// Samples are clamped to [0, 1], so reconstructed highlights above the white
// level are cut at 1. Use WriteFits to keep them.
func WriteTIFF(w io.Writer, f *Frame) error {
	opts := &tiff.Options{Compression: tiff.Deflate, Predictor: true}
	if err := tiff.Encode(w, f.Image(), opts); err != nil {
		return errors.Wrap(err, "encoding TIFF")
	}
	return nil
}

// SaveTIFF writes the frame to path. Values are clamped as in WriteTIFF.
func SaveTIFF(path string, f *Frame) error {
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create TIFF file")
	}
	if err := WriteTIFF(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
