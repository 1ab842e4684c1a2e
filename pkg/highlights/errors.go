package highlights

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidROI is returned for empty or inconsistent regions of interest.
	ErrInvalidROI = errors.New("invalid region of interest")
	// ErrBufferSize is returned when a buffer is too small for its ROI.
	ErrBufferSize = errors.New("buffer too small for region of interest")
	// ErrScratchAlloc marks a failed mask allocation. It never fails a call,
	// it only shows up in Metrics.ScratchFailed and the debug log.
	ErrScratchAlloc = errors.New("scratch mask allocation failed")
	// ErrDevice wraps every accelerator failure.
	ErrDevice = errors.New("accelerator failure")
)

// Status classifies an accelerator failure.
type Status int

const (
	StatusOK Status = iota
	StatusAllocFailed
	StatusTransferFailed
	StatusLaunchFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAllocFailed:
		return "alloc failed"
	case StatusTransferFailed:
		return "transfer failed"
	case StatusLaunchFailed:
		return "launch failed"
	default:
		return "unknown"
	}
}

// DeviceError is returned by ProcessDevice. All device buffers of the call
// have been released by the time it is returned.
type DeviceError struct {
	Op     string
	Status Status
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Status, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDevice) match any DeviceError.
func (e *DeviceError) Is(target error) bool { return target == ErrDevice }

func deviceError(op string, status Status, err error) *DeviceError {
	return &DeviceError{Op: op, Status: status, Err: err}
}
