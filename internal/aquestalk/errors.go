package aquestalk

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for an unrecognized voice type or
	// license tag. No native call is made.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotInitialized is returned when a converter is used without a live
	// native handle.
	ErrNotInitialized = errors.New("no converter initialized")

	// ErrOutOfMemory is returned when the conversion scratch buffer cannot
	// be sized or allocated.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrTruncated is returned when the converter reports success but its
	// output is not NUL-terminated within the scratch buffer.
	ErrTruncated = errors.New("converter output truncated")

	// ErrNative matches any *NativeError via errors.Is.
	ErrNative = errors.New("AquesTalk API error")
)

// NativeError carries the status code reported by a native entry point.
// Codes are passed through verbatim; their meaning is defined by the vendor.
type NativeError struct {
	Op   string
	Code int
}

func (e *NativeError) Error() string {
	return fmt.Sprintf("AquesTalk API error: %s: %d", e.Op, e.Code)
}

// Is reports whether target is ErrNative.
func (e *NativeError) Is(target error) bool {
	return target == ErrNative
}

// NativeCode extracts the native status code from err, if it carries one.
func NativeCode(err error) (int, bool) {
	var ne *NativeError
	if errors.As(err, &ne) {
		return ne.Code, true
	}
	return 0, false
}
