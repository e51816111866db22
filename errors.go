package blit

import (
	"errors"

	"github.com/gogpu/blit/internal/batch"
	"github.com/gogpu/blit/internal/format"
	"github.com/gogpu/blit/internal/residency"
)

// ErrFallback matches every error returned by an accelerated primitive that
// could not run on the engine. The caller must perform the same primitive in
// software; the Software type does that.
var ErrFallback = errors.New("blit: falling back to software")

// Reasons carried by a FallbackError.
var (
	// ErrUnsupported means a format has no engine encoding. It is the same
	// value the format layer reports.
	ErrUnsupported = format.ErrUnsupported

	// ErrUnmapped means a pixmap's memory could not be made GPU-visible.
	ErrUnmapped = residency.ErrUnmapped

	// ErrUnavailable means the GPU connection failed. Acceleration stays
	// disabled for the accelerator's lifetime.
	ErrUnavailable = batch.ErrUnavailable

	ErrDisabled  = errors.New("blit: acceleration disabled")
	ErrPlaneMask = errors.New("blit: partial plane mask")
	ErrFillStyle = errors.New("blit: unsupported fill style")
	ErrMask      = errors.New("blit: composite mask")
	ErrTransform = errors.New("blit: picture transform")
	ErrRepeat    = errors.New("blit: repeating source")
	ErrAlphaMap  = errors.New("blit: alpha map")
	ErrOperator  = errors.New("blit: unsupported composite operator")
	ErrDepth     = errors.New("blit: depth mismatch")
)

// Errors that are not fallbacks.
var (
	// ErrDestroyed is returned for operations on a destroyed pixmap.
	ErrDestroyed = errors.New("blit: pixmap destroyed")

	// ErrOtherAccelerator is returned when a drawable belongs to a different
	// accelerator.
	ErrOtherAccelerator = errors.New("blit: drawable belongs to another accelerator")

	// ErrInvalidSize is returned for pixmaps with a zero or oversized
	// dimension or unusable memory.
	ErrInvalidSize = errors.New("blit: invalid pixmap size")

	// ErrImageDepth is returned by PutImage when the image depth differs
	// from the drawable depth.
	ErrImageDepth = errors.New("blit: image depth does not match drawable")
)

// FallbackError reports why a primitive was not accelerated.
type FallbackError struct {
	Op     string
	Reason error
}

func (e *FallbackError) Error() string {
	return "blit: " + e.Op + " not accelerated: " + e.Reason.Error()
}

// Is reports whether target is ErrFallback.
func (e *FallbackError) Is(target error) bool { return target == ErrFallback }

// Unwrap returns the reason.
func (e *FallbackError) Unwrap() error { return e.Reason }

func fallback(op string, reason error) error {
	return &FallbackError{Op: op, Reason: reason}
}
