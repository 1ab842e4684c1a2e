package highlights

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Sidecar is a Host backed by a YAML file next to the image. An existing
// sidecar is the image's saved edit history.
type Sidecar struct {
	Path   string
	Pipe   PipeType
	Width  int
	Height int

	params  Params
	altered bool
	history int
}

type sidecarFile struct {
	Params  Params `yaml:"params"`
	History int    `yaml:"history"`
}

// LoadSidecar opens the sidecar at path. A missing file yields default
// parameters and an unaltered image.
func LoadSidecar(path string, pipe PipeType, width, height int) (*Sidecar, error) {
	s := &Sidecar{Path: path, Pipe: pipe, Width: width, Height: height, params: *NewParams()}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading sidecar")
	}
	var f sidecarFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing sidecar %s", path)
	}
	s.params = f.Params
	s.history = f.History
	s.altered = true
	return s, nil
}

// Params returns the persisted parameters.
func (s *Sidecar) Params() Params { return s.params }

// History is the number of history items written so far.
func (s *Sidecar) History() int { return s.history }

// MarkAltered treats the image as edited even without a sidecar file.
func (s *Sidecar) MarkAltered() { s.altered = true }

func (s *Sidecar) PipeType() PipeType { return s.Pipe }

func (s *Sidecar) ImageAltered() bool { return s.altered }

func (s *Sidecar) NativeSize() (int, int) { return s.Width, s.Height }

// AddHistoryItem stores p and marks the image altered. The file is written
// by Save.
func (s *Sidecar) AddHistoryItem(p Params) {
	s.params = p
	s.history++
	s.altered = true
}

// Save writes the sidecar file.
func (s *Sidecar) Save() error {
	data, err := yaml.Marshal(sidecarFile{Params: s.params, History: s.history})
	if err != nil {
		return errors.Wrap(err, "encoding sidecar")
	}
	return errors.Wrap(os.WriteFile(s.Path, data, 0o644), "writing sidecar")
}
