// Package capture models the photo capture workflow: opening a camera with
// graceful constraint fallback and collecting a six-slot photo session per
// test and checkpoint day.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Facing selects which camera to prefer.
type Facing string

const (
	FacingBack  Facing = "environment"
	FacingFront Facing = "user"
)

// Constraints describe the requested stream. Zero values mean "no
// preference".
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

// Preferred capture resolution for the first open attempt.
const (
	preferredWidth  = 1280
	preferredHeight = 720
)

// Sentinel errors a Camera implementation returns so the fallback policy
// can classify failures.
var (
	ErrPermissionDenied = errors.New("capture: camera permission denied")
	ErrNoDevice         = errors.New("capture: no camera device")
)

// FailureReason classifies why no stream could be opened.
type FailureReason string

const (
	ReasonPermissionDenied FailureReason = "permission_denied"
	ReasonNoHardware       FailureReason = "no_hardware"
)

// DeviceError reports that every open attempt failed, with the classified
// reason driving the user-facing message.
type DeviceError struct {
	Reason FailureReason
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture: device unavailable (%s): %v", e.Reason, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Camera opens capture streams.
type Camera interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream produces frames until closed.
type Stream interface {
	Capture(ctx context.Context) (image.Image, error)
	Close() error
}

// OpenWithFallback opens a stream preferring the given facing at the
// standard resolution. Any first failure gets one retry with no constraints
// at all; only when both attempts fail is the failure classified.
func OpenWithFallback(ctx context.Context, cam Camera, preferred Facing) (Stream, error) {
	stream, err := cam.Open(ctx, Constraints{Facing: preferred, Width: preferredWidth, Height: preferredHeight})
	if err == nil {
		return stream, nil
	}
	stream, retryErr := cam.Open(ctx, Constraints{})
	if retryErr == nil {
		return stream, nil
	}
	joined := errors.Join(err, retryErr)
	if errors.Is(err, ErrPermissionDenied) || errors.Is(retryErr, ErrPermissionDenied) {
		return nil, &DeviceError{Reason: ReasonPermissionDenied, Err: joined}
	}
	return nil, &DeviceError{Reason: ReasonNoHardware, Err: joined}
}
