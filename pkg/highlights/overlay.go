package highlights

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const overlayWidth = 800

var (
	clippedTint = color.RGBA{255, 40, 40, 255}
	dilatedTint = color.RGBA{40, 120, 255, 255}
)

// RenderOverlay renders a JPEG of preview with the clip mask tinted on top
// and the chroma correction printed below, and writes it to path.
func RenderOverlay(preview image.Image, res *Result, linear bool, path string) error {
	img, err := renderOverlayImage(preview, res, linear)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create overlay file")
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}

// RenderOverlayBytes is RenderOverlay returning the JPEG bytes.
func RenderOverlayBytes(preview image.Image, res *Result, linear bool) ([]byte, error) {
	img, err := renderOverlayImage(preview, res, linear)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, errors.Wrap(err, "encoding overlay")
	}
	return buf.Bytes(), nil
}

func renderOverlayImage(preview image.Image, res *Result, linear bool) (*image.RGBA, error) {
	if preview == nil || res == nil {
		return nil, errors.New("no preview or result")
	}
	b := preview.Bounds()
	tinted := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(tinted, tinted.Bounds(), preview, b.Min, draw.Src)

	// Mosaic previews have one pixel per mask cell, linear ones 3x3.
	if d := res.DebugData; d != nil {
		cell := 1
		if linear {
			cell = 3
		}
		for y := 0; y < b.Dy(); y++ {
			my := y / cell
			if my >= d.MaskHeight {
				break
			}
			for x := 0; x < b.Dx(); x++ {
				mx := x / cell
				if mx >= d.MaskWidth {
					break
				}
				bits := d.Mask[my*d.MaskWidth+mx]
				switch {
				case bits&(MaskClipped(0)|MaskClipped(1)|MaskClipped(2)) != 0:
					tinted.SetRGBA(x, y, blend(tinted.RGBAAt(x, y), clippedTint, 0.6))
				case bits&(MaskDilated(0)|MaskDilated(1)|MaskDilated(2)) != 0:
					tinted.SetRGBA(x, y, blend(tinted.RGBAAt(x, y), dilatedTint, 0.35))
				}
			}
		}
	}

	interp := resize.Bilinear
	if b.Dx() < overlayWidth {
		interp = resize.NearestNeighbor
	}
	scaled := resize.Resize(overlayWidth, 0, tinted, interp)
	sb := scaled.Bounds()

	const summaryH = 60
	img := image.NewRGBA(image.Rect(0, 0, sb.Dx(), sb.Dy()+summaryH))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{0, 0, 0, 255}), image.Point{}, draw.Src)
	draw.Draw(img, sb.Sub(sb.Min), scaled, sb.Min, draw.Src)

	face := basicfont.Face7x13
	textColor := color.RGBA{220, 220, 220, 255}
	y := sb.Dy() + 15
	ch := res.Chrominance
	drawText(img, face, fmt.Sprintf("Chroma correction: R %+.5f  G %+.5f  B %+.5f", ch[0], ch[1], ch[2]), 10, y, textColor)
	if m := res.Metrics; m != nil {
		drawText(img, face, fmt.Sprintf("Clipped: R %d  G %d  B %d   cache hit: %t", m.ClippedPhotosites[0], m.ClippedPhotosites[1], m.ClippedPhotosites[2], m.CacheHit), 10, y+18, textColor)
	}
	return img, nil
}

func blend(dst, tint color.RGBA, alpha float64) color.RGBA {
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a)*(1-alpha) + float64(b)*alpha)
	}
	return color.RGBA{mix(dst.R, tint.R), mix(dst.G, tint.G), mix(dst.B, tint.B), 255}
}

// drawText draws a string at (x, y) using the given font face.
func drawText(img *image.RGBA, face font.Face, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
