//go:build js && wasm

package main

import (
	"context"
	"image"
	"syscall/js"

	hl "highlights/pkg/highlights"
)

var (
	lastPreview *image.RGBA
	lastResult  *hl.Result
)

func main() {
	js.Global().Set("reconstructFITS", js.FuncOf(reconstructFITS))
	js.Global().Set("renderOverlay", js.FuncOf(renderOverlay))
	select {} // block forever
}

// reconstructFITS(fileBytes, options) runs the reconstruction on a raw FITS
// frame. options may carry clip (number) and wb (array of 3 numbers).
func reconstructFITS(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("usage: reconstructFITS(fileBytes, options)")
	}

	jsBytes := args[0]
	fileBytes := make([]byte, jsBytes.Get("length").Int())
	js.CopyBytesToGo(fileBytes, jsBytes)

	params := hl.NewParams()
	var wb hl.WhiteBalance
	if len(args) >= 2 && args[1].Type() == js.TypeObject {
		if v := args[1].Get("clip"); v.Type() == js.TypeNumber {
			params.Clip = float32(v.Float())
		}
		if v := args[1].Get("wb"); v.Type() == js.TypeObject && v.Get("length").Int() == 3 {
			wb.Enabled = true
			for c := 0; c < 3; c++ {
				wb.Coeffs[c] = float32(v.Index(c).Float())
			}
		}
	}

	img, err := hl.ReadFitsFromBytes(fileBytes)
	if err != nil {
		return errorResult("FITS parse error: " + err.Error())
	}
	pattern, err := img.Pattern()
	if err != nil {
		return errorResult("FITS pattern error: " + err.Error())
	}

	roi := img.ROI()
	in := img.Normalized()
	out := make([]float32, len(in))
	proc := hl.NewProcessor(*params, hl.BufferDesc{Pattern: pattern, WhiteBalance: wb}, nil)
	opts := hl.Options{Quality: true, StoreMask: true}
	res, err := proc.Process(context.Background(), in, out, roi, roi, opts)
	if err != nil {
		return errorResult("Reconstruction error: " + err.Error())
	}
	lastResult = res
	lastPreview = hl.Preview(out, roi, pattern)

	m := res.Metrics
	return js.ValueOf(map[string]interface{}{
		"width":   img.Width,
		"height":  img.Height,
		"pattern": pattern.String(),
		"chroma": []interface{}{
			float64(res.Chrominance[0]), float64(res.Chrominance[1]), float64(res.Chrominance[2]),
		},
		"clipped": []interface{}{
			float64(m.ClippedPhotosites[0]), float64(m.ClippedPhotosites[1]), float64(m.ClippedPhotosites[2]),
		},
		"samples": []interface{}{
			float64(m.ChromaSamples[0]), float64(m.ChromaSamples[1]), float64(m.ChromaSamples[2]),
		},
		"reconstructed": float64(m.Reconstructed),
	})
}

func renderOverlay(this js.Value, args []js.Value) interface{} {
	if lastResult == nil || lastPreview == nil {
		return js.Null()
	}

	jpegBytes, err := hl.RenderOverlayBytes(lastPreview, lastResult, false)
	if err != nil {
		return js.Null()
	}

	uint8Array := js.Global().Get("Uint8Array").New(len(jpegBytes))
	js.CopyBytesToJS(uint8Array, jpegBytes)
	return uint8Array
}

func errorResult(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{
		"error": msg,
	})
}
