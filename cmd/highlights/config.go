package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	hl "highlights/pkg/highlights"
)

// Config is the CLI configuration. It is read from an optional YAML file
// and then overridden by explicit flags.
type Config struct {
	// Clip overrides the sidecar clip value when set.
	Clip         *float32   `yaml:"clip,omitempty"`
	Pattern      string     `yaml:"pattern"`
	WhiteBalance []float32  `yaml:"white_balance"`
	Backend      string     `yaml:"backend"`
	Pipe         string     `yaml:"pipe"`
	Quality      bool       `yaml:"quality"`
	Keep         bool       `yaml:"keep"`
	OutDir       string     `yaml:"out_dir"`
	Overlay      bool       `yaml:"overlay"`
	Workers      int        `yaml:"workers"`
	Debug        bool       `yaml:"debug"`
	Record       bool       `yaml:"record"`
	XTrans       *[6][6]int `yaml:"xtrans,omitempty"`
}

func defaultConfig() Config {
	return Config{
		Backend: "cpu",
		Pipe:    "full",
		Quality: true,
		Workers: 2,
	}
}

// loadConfig reads a YAML config on top of the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// configPath finds -config in args before the flag set is built, so the
// file can provide the flag defaults.
func configPath(args []string) string {
	for i, a := range args {
		name := strings.TrimLeft(a, "-")
		if len(name) == len(a) {
			continue
		}
		switch {
		case name == "config" && i+1 < len(args):
			return args[i+1]
		case strings.HasPrefix(name, "config="):
			return strings.TrimPrefix(name, "config=")
		}
	}
	return ""
}

// clipOr returns the configured clip value or def.
func (c Config) clipOr(def float32) float32 {
	if c.Clip == nil {
		return def
	}
	return *c.Clip
}

// whiteBalance turns the configured coefficients into a WhiteBalance.
// An empty list disables white balance.
func (c Config) whiteBalance() (hl.WhiteBalance, error) {
	if len(c.WhiteBalance) == 0 {
		return hl.WhiteBalance{}, nil
	}
	if len(c.WhiteBalance) != 3 {
		return hl.WhiteBalance{}, errors.Errorf("white balance needs 3 coefficients, got %d", len(c.WhiteBalance))
	}
	return hl.WhiteBalance{Enabled: true, Coeffs: [3]float32{c.WhiteBalance[0], c.WhiteBalance[1], c.WhiteBalance[2]}}, nil
}

func (c Config) pipeType() (hl.PipeType, error) {
	for _, t := range []hl.PipeType{hl.PipeFull, hl.PipePreview, hl.PipeExport, hl.PipeThumbnail} {
		if strings.EqualFold(c.Pipe, t.String()) {
			return t, nil
		}
	}
	return 0, errors.Errorf("unknown pipe type %q", c.Pipe)
}

// pattern returns the configured CFA, or ok=false when the input decides.
func (c Config) pattern() (p hl.Pattern, ok bool, err error) {
	if c.XTrans != nil {
		var x [6][6]uint8
		for r := range c.XTrans {
			for col, v := range c.XTrans[r] {
				if v < 0 || v > 2 {
					return hl.Pattern{}, false, errors.Errorf("xtrans[%d][%d] = %d is not a channel", r, col, v)
				}
				x[r][col] = uint8(v)
			}
		}
		return hl.XTransPattern(x), true, nil
	}
	if c.Pattern == "" {
		return hl.Pattern{}, false, nil
	}
	p, err = hl.BayerPattern(c.Pattern)
	return p, err == nil, err
}

// floatList is a flag.Value for comma separated floats.
type floatList struct{ v *[]float32 }

func (f floatList) String() string {
	if f.v == nil {
		return ""
	}
	parts := make([]string, len(*f.v))
	for i, x := range *f.v {
		parts[i] = strconv.FormatFloat(float64(x), 'g', -1, 32)
	}
	return strings.Join(parts, ",")
}

func (f floatList) Set(s string) error {
	var out []float32
	for _, part := range strings.Split(s, ",") {
		x, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return errors.Wrapf(err, "parsing %q", part)
		}
		out = append(out, float32(x))
	}
	*f.v = out
	return nil
}
