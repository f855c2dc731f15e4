package aquestalk

import (
	"bytes"
	"fmt"
	"runtime"
	"sync"
)

// BufferSizer returns the scratch buffer capacity, in bytes, for converting
// an input of n bytes.
type BufferSizer func(n int) int

// MaxScratchBytes bounds the conversion scratch buffer.
const MaxScratchBytes = 64 << 20

// DefaultBufferSizer is the vendor's documented expansion bound: four times
// the input length plus a 16 byte margin. It has not been verified against
// every dictionary, see ErrTruncated.
func DefaultBufferSizer(n int) int {
	return 4*n + 16
}

// LinearBufferSizer returns a BufferSizer computing factor*n + margin.
func LinearBufferSizer(factor, margin int) BufferSizer {
	return func(n int) int { return factor*n + margin }
}

// ConverterOption configures a Kanji2Koe.
type ConverterOption func(*Kanji2Koe)

// WithBufferSizer overrides the scratch buffer heuristic.
func WithBufferSizer(fn BufferSizer) ConverterOption {
	return func(k *Kanji2Koe) {
		if fn != nil {
			k.sizer = fn
		}
	}
}

// converterHandle owns the native pointer. It is shared between Close and
// the garbage-collection cleanup so both go through release.
type converterHandle struct {
	mu     sync.Mutex
	native Native
	h      uintptr
}

func (c *converterHandle) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.h == 0 {
		return
	}
	h := c.h
	c.h = 0
	c.native.Kanji2KoeRelease(h)
}

// Kanji2Koe converts kanji text to AquesTalk koe strings. The zero value has
// no handle and every Convert fails with ErrNotInitialized.
//
// A Kanji2Koe is safe for concurrent use; conversions on one handle are
// serialized.
type Kanji2Koe struct {
	handle  *converterHandle
	sizer   BufferSizer
	path    string
	cleanup runtime.Cleanup
}

// NewKanji2Koe loads the dictionary directory at path.
func (e *Engine) NewKanji2Koe(path string, opts ...ConverterOption) (*Kanji2Koe, error) {
	k := &Kanji2Koe{sizer: DefaultBufferSizer, path: path}
	for _, fn := range opts {
		fn(k)
	}

	var code int32
	h := e.native.Kanji2KoeCreate(path, &code)
	if h == 0 {
		return nil, &NativeError{Op: "create", Code: int(code)}
	}

	k.handle = &converterHandle{native: e.native, h: h}
	k.cleanup = runtime.AddCleanup(k, (*converterHandle).release, k.handle)

	return k, nil
}

// Path returns the dictionary path the converter was created from.
func (k *Kanji2Koe) Path() string {
	if k == nil {
		return ""
	}
	return k.path
}

// Ready reports whether k holds a live native handle.
func (k *Kanji2Koe) Ready() bool {
	if k == nil || k.handle == nil {
		return false
	}
	k.handle.mu.Lock()
	defer k.handle.mu.Unlock()
	return k.handle.h != 0
}

// Convert returns the koe reading of kanji.
func (k *Kanji2Koe) Convert(kanji string) (string, error) {
	if k == nil || k.handle == nil {
		return "", ErrNotInitialized
	}

	sizer := k.sizer
	if sizer == nil {
		sizer = DefaultBufferSizer
	}
	size := sizer(len(kanji))
	if size <= 0 || size > MaxScratchBytes {
		return "", fmt.Errorf("%w: scratch buffer of %d bytes for %d byte input", ErrOutOfMemory, size, len(kanji))
	}

	k.handle.mu.Lock()
	defer k.handle.mu.Unlock()

	if k.handle.h == 0 {
		return "", ErrNotInitialized
	}

	koe := make([]byte, size)
	code := k.handle.native.Kanji2KoeConvert(k.handle.h, kanji, koe)
	runtime.KeepAlive(k)
	if code != 0 {
		return "", &NativeError{Op: "convert", Code: int(code)}
	}

	end := bytes.IndexByte(koe, 0)
	if end < 0 {
		return "", fmt.Errorf("%w: no terminator within %d bytes", ErrTruncated, size)
	}

	return string(koe[:end]), nil
}

// Close releases the native handle. It is safe to call more than once and
// after a failed construction.
func (k *Kanji2Koe) Close() error {
	if k == nil || k.handle == nil {
		return nil
	}
	k.cleanup.Stop()
	k.handle.release()
	return nil
}
