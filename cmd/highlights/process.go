package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	hl "highlights/pkg/highlights"
)

// report is what one input produced, printed after all files finished.
type report struct {
	input    string
	output   string
	overlay  string
	width    int
	height   int
	pattern  hl.Pattern
	result   *hl.Result
	elapsed  time.Duration
	sidecar  string
	recorded bool
}

// loadedFrame is an input frame with its CFA and origin.
type loadedFrame struct {
	frame   *hl.Frame
	pattern hl.Pattern
	roi     hl.ROI
	fits    *hl.FitsImage
}

func loadFrame(path string) (*loadedFrame, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".fits") || strings.HasSuffix(lower, ".fit"):
		img, err := hl.ReadFits(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading FITS")
		}
		pattern, err := img.Pattern()
		if err != nil {
			return nil, err
		}
		frame := &hl.Frame{Data: img.Normalized(), Width: img.Width, Height: img.Height}
		return &loadedFrame{frame: frame, pattern: pattern, roi: img.ROI(), fits: img}, nil

	case strings.HasSuffix(lower, ".tif") || strings.HasSuffix(lower, ".tiff"):
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "opening TIFF")
		}
		defer f.Close()
		frame, err := hl.ReadTIFF(f)
		if err != nil {
			return nil, err
		}
		return newLoadedFrame(frame), nil
	}

	frame, err := loadNonFitsImage(path)
	if err != nil {
		return nil, err
	}
	return newLoadedFrame(frame), nil
}

// newLoadedFrame assumes RGGB for grayscale mosaics.
func newLoadedFrame(frame *hl.Frame) *loadedFrame {
	pattern := hl.Pattern{Filters: hl.FiltersLinear}
	if !frame.Linear {
		pattern = hl.Pattern{Filters: hl.FiltersRGGB}
	}
	return &loadedFrame{frame: frame, pattern: pattern, roi: frame.ROI(0, 0)}
}

func processFile(ctx context.Context, cfg Config, path string) (*report, error) {
	start := time.Now()
	lf, err := loadFrame(path)
	if err != nil {
		return nil, err
	}
	if p, ok, err := cfg.pattern(); err != nil {
		return nil, err
	} else if ok {
		if p.IsLinear() != lf.frame.Linear {
			return nil, errors.Errorf("pattern %s does not match the %s input", p, layoutName(lf.frame.Linear))
		}
		lf.pattern = p
	}

	wb, err := cfg.whiteBalance()
	if err != nil {
		return nil, err
	}
	pipe, err := cfg.pipeType()
	if err != nil {
		return nil, err
	}

	sidecarPath := path + ".hl.yaml"
	host, err := hl.LoadSidecar(sidecarPath, pipe, lf.frame.Width, lf.frame.Height)
	if err != nil {
		return nil, err
	}
	if cfg.Record {
		host.MarkAltered()
	}
	params := host.Params()
	if cfg.Clip != nil {
		params.Clip = *cfg.Clip
	}

	proc := hl.NewProcessor(params, hl.BufferDesc{Pattern: lf.pattern, WhiteBalance: wb}, host)
	proc.SetDebugMode(cfg.Debug)
	opts := hl.Options{Quality: cfg.Quality, Keep: cfg.Keep, StoreMask: cfg.Overlay}

	out := hl.NewFrame(lf.frame.Width, lf.frame.Height, lf.frame.Linear)
	var res *hl.Result
	if cfg.Backend == "accel" {
		res, err = proc.ProcessOnDevice(ctx, hl.NewSoftDevice(0), lf.frame.Data, out.Data, lf.roi, lf.roi, opts)
	} else {
		res, err = proc.Process(ctx, lf.frame.Data, out.Data, lf.roi, lf.roi, opts)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reconstructing highlights")
	}

	r := &report{
		input:   path,
		width:   lf.frame.Width,
		height:  lf.frame.Height,
		pattern: lf.pattern,
		result:  res,
		sidecar: sidecarPath,
	}

	if lf.fits != nil {
		r.output = outputPath(cfg.OutDir, path, "_hl.fits")
		if err := writeFits(r.output, out, lf.fits); err != nil {
			return nil, err
		}
	} else {
		r.output = outputPath(cfg.OutDir, path, "_hl.tif")
		if err := hl.SaveTIFF(r.output, out); err != nil {
			return nil, err
		}
	}

	if cfg.Overlay {
		r.overlay = outputPath(cfg.OutDir, path, "_hl_overlay.jpg")
		preview := hl.Preview(out.Data, lf.roi, lf.pattern)
		if err := hl.RenderOverlay(preview, res, lf.pattern.IsLinear(), r.overlay); err != nil {
			return nil, errors.Wrap(err, "rendering overlay")
		}
	}

	if res.Metrics.Committed {
		if err := host.Save(); err != nil {
			return nil, err
		}
		r.recorded = true
	}
	r.elapsed = time.Since(start)
	return r, nil
}

// writeFits writes the reconstruction scaled back to the input's white level.
func writeFits(path string, out *hl.Frame, src *hl.FitsImage) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create FITS file")
	}
	scaled := hl.NewFrame(out.Width, out.Height, out.Linear)
	copy(scaled.Data, out.Data)
	scaled.Scale(float32(src.WhiteLevel()))
	if err := hl.WriteFits(f, scaled.Data, out.Width, out.Height, src.Header); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func layoutName(linear bool) string {
	if linear {
		return "linear"
	}
	return "mosaic"
}

func (r *report) print() {
	m := r.result.Metrics
	ch := r.result.Chrominance
	fmt.Println()
	fmt.Printf("=== %s (%.1fs) ===\n", filepath.Base(r.input), r.elapsed.Seconds())
	fmt.Printf("  Image size:      %d x %d (%s)\n", r.width, r.height, r.pattern)
	fmt.Printf("  Clips:           %.4f %.4f %.4f\n", r.result.Clips.Clips[0], r.result.Clips.Clips[1], r.result.Clips.Clips[2])
	fmt.Printf("  Chroma:          %+.5f %+.5f %+.5f\n", ch[0], ch[1], ch[2])
	fmt.Printf("  Cache hit:       %t\n", m.CacheHit)
	if m.MaskBuilt {
		fmt.Printf("  Clipped:         %d %d %d\n", m.ClippedPhotosites[0], m.ClippedPhotosites[1], m.ClippedPhotosites[2])
		fmt.Printf("  Samples:         %d %d %d\n", m.ChromaSamples[0], m.ChromaSamples[1], m.ChromaSamples[2])
	}
	if m.ScratchFailed {
		fmt.Println("  [MASK ALLOCATION FAILED - CORRECTION NOT UPDATED]")
	}
	fmt.Printf("  Output:          %s\n", r.output)
	if r.overlay != "" {
		fmt.Printf("  Overlay:         %s\n", r.overlay)
	}
	if r.recorded {
		fmt.Printf("  History:         %s\n", r.sidecar)
	}
	fmt.Println("==============================")
}
