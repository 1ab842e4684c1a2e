package highlights

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FitsHeader holds parsed FITS header key-value pairs.
type FitsHeader struct {
	Values map[string]string
}

// NewFitsHeader creates an empty FitsHeader.
func NewFitsHeader() *FitsHeader {
	return &FitsHeader{Values: make(map[string]string)}
}

func (h *FitsHeader) GetString(key string) string {
	return h.Values[strings.ToUpper(key)]
}

func (h *FitsHeader) GetDouble(key string) (float64, bool) {
	v, ok := h.Values[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return d, true
}

func (h *FitsHeader) GetInt(key string) (int, bool) {
	v, ok := h.Values[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return i, true
}

// FitsImage is a single-plane raw frame with physical pixel values.
type FitsImage struct {
	Pixels []float32
	Width  int
	Height int
	Bitpix int
	Header *FitsHeader
}

// ReadFits reads a FITS file.
func ReadFits(path string) (*FitsImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening FITS file")
	}
	defer f.Close()
	return readFits(bufio.NewReader(f))
}

// ReadFitsFromBytes reads a FITS image from memory.
func ReadFitsFromBytes(data []byte) (*FitsImage, error) {
	return readFits(bytes.NewReader(data))
}

// Pattern derives the CFA from BAYERPAT. Frames without it are treated as
// RGGB, the common layout of one-shot-colour astro cameras.
func (img *FitsImage) Pattern() (Pattern, error) {
	name := img.Header.GetString("BAYERPAT")
	if name == "" {
		return Pattern{Filters: FiltersRGGB}, nil
	}
	p, err := BayerPattern(name)
	if err != nil {
		return Pattern{}, errors.Wrap(err, "BAYERPAT")
	}
	if p.IsLinear() {
		return Pattern{}, errors.Errorf("BAYERPAT %q is not a mosaic", name)
	}
	return p, nil
}

// ROI places the frame at the Bayer offsets XBAYROFF and YBAYROFF so the
// pattern phase matches the sensor.
func (img *FitsImage) ROI() ROI {
	xoff, _ := img.Header.GetInt("XBAYROFF")
	yoff, _ := img.Header.GetInt("YBAYROFF")
	return ROI{X: xoff, Y: yoff, Width: img.Width, Height: img.Height, Scale: 1}
}

// WhiteLevel is the saturation value of the frame: SATURATE, then DATAMAX,
// then the full range of the sample type.
func (img *FitsImage) WhiteLevel() float64 {
	if v, ok := img.Header.GetDouble("SATURATE"); ok && v > 0 {
		return v
	}
	if v, ok := img.Header.GetDouble("DATAMAX"); ok && v > 0 {
		return v
	}
	switch img.Bitpix {
	case 8:
		return 255
	case 16:
		return 65535
	case 32:
		return math.MaxUint32
	default:
		return 1
	}
}

// Normalized returns the pixels divided by the white level, so 1.0 is the
// saturation point.
func (img *FitsImage) Normalized() []float32 {
	scale := float32(1 / img.WhiteLevel())
	out := make([]float32, len(img.Pixels))
	for i, v := range img.Pixels {
		out[i] = v * scale
	}
	return out
}

func readFits(r io.Reader) (*FitsImage, error) {
	var bitpix, naxis, width, height int
	bzero := 0.0
	bscale := 1.0
	header := NewFitsHeader()

	record := make([]byte, 80)
	for done := false; !done; {
		for i := 0; i < 36; i++ {
			if _, err := io.ReadFull(r, record); err != nil {
				return nil, errors.Wrap(err, "reading FITS header record")
			}
			if done {
				continue
			}
			keyword := strings.TrimSpace(string(record[:8]))
			if keyword == "END" {
				done = true
				continue
			}
			if record[8] != '=' || record[9] != ' ' {
				continue
			}
			raw := strings.TrimSpace(strings.SplitN(string(record[10:]), "/", 2)[0])
			if v := parseFitsValue(raw); keyword != "" && v != "" {
				header.Values[strings.ToUpper(keyword)] = v
			}
			switch keyword {
			case "BITPIX":
				bitpix, _ = strconv.Atoi(raw)
			case "NAXIS":
				naxis, _ = strconv.Atoi(raw)
			case "NAXIS1":
				width, _ = strconv.Atoi(raw)
			case "NAXIS2":
				height, _ = strconv.Atoi(raw)
			case "BZERO":
				bzero, _ = strconv.ParseFloat(raw, 64)
			case "BSCALE":
				bscale, _ = strconv.ParseFloat(raw, 64)
			}
		}
	}

	if naxis < 2 || width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid FITS: NAXIS=%d, NAXIS1=%d, NAXIS2=%d", naxis, width, height)
	}

	n := width * height
	size := intAbs(bitpix) / 8
	switch bitpix {
	case 8, 16, 32, -32, -64:
	default:
		return nil, errors.Errorf("unsupported BITPIX: %d", bitpix)
	}
	raw := make([]byte, n*size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrapf(err, "reading BITPIX %d pixel data", bitpix)
	}

	pixels := make([]float32, n)
	for i := 0; i < n; i++ {
		var v float64
		switch bitpix {
		case 8:
			v = float64(raw[i])
		case 16:
			v = float64(int16(binary.BigEndian.Uint16(raw[i*2:])))
		case 32:
			v = float64(int32(binary.BigEndian.Uint32(raw[i*4:])))
		case -32:
			v = float64(math.Float32frombits(binary.BigEndian.Uint32(raw[i*4:])))
		case -64:
			v = math.Float64frombits(binary.BigEndian.Uint64(raw[i*8:]))
		}
		pixels[i] = float32(v*bscale + bzero)
	}

	return &FitsImage{
		Pixels: pixels,
		Width:  width,
		Height: height,
		Bitpix: bitpix,
		Header: header,
	}, nil
}

// WriteFits writes a single-plane BITPIX -32 frame. Values above the white
// level are kept, reconstructed highlights may exceed it.
func WriteFits(w io.Writer, pixels []float32, width, height int, header *FitsHeader) error {
	if len(pixels) < width*height {
		return errors.Wrapf(ErrBufferSize, "fits: %d pixels for %dx%d", len(pixels), width, height)
	}
	var hdr bytes.Buffer
	card := func(key, value string) {
		fmt.Fprintf(&hdr, "%-8s= %20s", key, value)
		hdr.WriteString(strings.Repeat(" ", 80-30))
	}
	card("SIMPLE", "T")
	card("BITPIX", "-32")
	card("NAXIS", "2")
	card("NAXIS1", strconv.Itoa(width))
	card("NAXIS2", strconv.Itoa(height))
	if header != nil {
		for _, key := range []string{"BAYERPAT", "XBAYROFF", "YBAYROFF"} {
			v := header.GetString(key)
			if v == "" {
				continue
			}
			if key == "BAYERPAT" {
				v = "'" + v + "'"
			}
			card(key, v)
		}
	}
	hdr.WriteString("END")
	hdr.WriteString(strings.Repeat(" ", 77))
	if pad := hdr.Len() % 2880; pad != 0 {
		hdr.WriteString(strings.Repeat(" ", 2880-pad))
	}
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return errors.Wrap(err, "writing FITS header")
	}

	data := make([]byte, 0, width*height*4+2880)
	for _, v := range pixels[:width*height] {
		data = binary.BigEndian.AppendUint32(data, math.Float32bits(v))
	}
	if pad := len(data) % 2880; pad != 0 {
		data = append(data, make([]byte, 2880-pad)...)
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "writing FITS data")
	}
	return nil
}

func parseFitsValue(raw string) string {
	switch {
	case raw == "":
		return ""
	case raw == "T":
		return "True"
	case raw == "F":
		return "False"
	case strings.HasPrefix(raw, "'"):
		if end := strings.LastIndex(raw, "'"); end > 0 {
			return strings.TrimRight(raw[1:end], " ")
		}
		return strings.TrimLeft(strings.TrimRight(raw, " "), "'")
	}
	return raw
}
