package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	hl "highlights/pkg/highlights"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(configPath(args))
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("highlights", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: highlights [flags] <input-file>...\n")
		fs.PrintDefaults()
	}
	fs.String("config", "", "YAML config file")
	clip := fs.Float64("clip", float64(cfg.clipOr(hl.NewParams().Clip)), "clipping threshold relative to the white level; default keeps the saved value")
	fs.StringVar(&cfg.Pattern, "pattern", cfg.Pattern, "CFA pattern (RGGB, BGGR, GRBG, GBRG, XTRANS, LINEAR); empty uses the input")
	fs.Var(floatList{&cfg.WhiteBalance}, "wb", "white balance coefficients r,g,b; empty disables")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "cpu or accel")
	fs.StringVar(&cfg.Pipe, "pipe", cfg.Pipe, "pipeline type: full, preview, export, thumbnail")
	fs.BoolVar(&cfg.Quality, "quality", cfg.Quality, "allow the chroma estimation pass")
	fs.BoolVar(&cfg.Keep, "keep", cfg.Keep, "keep the full-frame intermediate")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "output directory; empty writes next to the input")
	fs.BoolVar(&cfg.Overlay, "overlay", cfg.Overlay, "write a JPEG mask overlay")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "files processed concurrently")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "debug logging")
	fs.BoolVar(&cfg.Record, "record", cfg.Record, "record the correction even for images without a sidecar")
	if err := fs.Parse(args); err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "clip" {
			v := float32(*clip)
			cfg.Clip = &v
		}
	})

	inputs := fs.Args()
	if len(inputs) == 0 {
		fs.Usage()
		return errors.New("no input files")
	}
	if cfg.Backend != "cpu" && cfg.Backend != "accel" {
		return errors.Errorf("unknown backend %q", cfg.Backend)
	}

	startTime := time.Now()
	reports := make([]*report, len(inputs))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(max(1, cfg.Workers))
	for i, path := range inputs {
		g.Go(func() error {
			r, err := processFile(ctx, cfg, path)
			if err != nil {
				return errors.Wrap(err, path)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range reports {
		r.print()
	}
	fmt.Printf("Processed %d file(s) in %.1fs\n", len(reports), time.Since(startTime).Seconds())
	return nil
}

// outputPath places name next to the input or into outDir.
func outputPath(outDir, input, suffix string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + suffix
	if outDir == "" {
		return filepath.Join(filepath.Dir(input), base)
	}
	return filepath.Join(outDir, base)
}
