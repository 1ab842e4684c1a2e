//go:build purego || js

package main

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pkg/errors"

	hl "highlights/pkg/highlights"
)

func loadNonFitsImage(path string) (*hl.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening image")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	return hl.FrameFromImage(img)
}
