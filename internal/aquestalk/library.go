//go:build darwin || linux

package aquestalk

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Library is a Native backed by the vendor shared libraries, loaded with
// dlopen at runtime so no C toolchain is needed to build the module.
type Library struct {
	paths LibraryPaths

	aqtk uintptr
	k2k  uintptr

	closeOnce sync.Once
	closeErr  error

	synthe   func(v *Voice, koe string, size *int32) *byte
	freeWave func(wav *byte)
	devKey   func(key string) int32
	usrKey   func(key string) int32

	k2kDevKey  func(key string) int32
	k2kCreate  func(path string, errCode *int32) uintptr
	k2kRelease func(h uintptr)
	k2kConvert func(h uintptr, kanji string, koe *byte, size int32) int32

	presets    [NumVoiceTypes]Voice
	hasPresets bool
}

// Open loads both native libraries and resolves every entry point.
func Open(paths LibraryPaths) (*Library, error) {
	if paths.AquesTalk == "" {
		return nil, errors.New("AquesTalk library path is required")
	}
	if paths.Kanji2Koe == "" {
		return nil, errors.New("AqKanji2Koe library path is required")
	}

	aqtk, err := purego.Dlopen(paths.AquesTalk, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("load AquesTalk library %s: %w", paths.AquesTalk, err)
	}

	k2k, err := purego.Dlopen(paths.Kanji2Koe, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		_ = purego.Dlclose(aqtk)
		return nil, fmt.Errorf("load AqKanji2Koe library %s: %w", paths.Kanji2Koe, err)
	}

	l := &Library{paths: paths, aqtk: aqtk, k2k: k2k}

	binds := []struct {
		lib  uintptr
		name string
		fptr any
	}{
		{aqtk, "AquesTalk_Synthe_Utf8", &l.synthe},
		{aqtk, "AquesTalk_FreeWave", &l.freeWave},
		{aqtk, "AquesTalk_SetDevKey", &l.devKey},
		{aqtk, "AquesTalk_SetUsrKey", &l.usrKey},
		{k2k, "AqKanji2Koe_SetDevKey", &l.k2kDevKey},
		{k2k, "AqKanji2Koe_Create", &l.k2kCreate},
		{k2k, "AqKanji2Koe_Release", &l.k2kRelease},
		{k2k, "AqKanji2Koe_Convert", &l.k2kConvert},
	}
	for _, b := range binds {
		sym, err := purego.Dlsym(b.lib, b.name)
		if err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("resolve %s: %w", b.name, err)
		}
		purego.RegisterFunc(b.fptr, sym)
	}

	l.presets, l.hasPresets = readPresets(aqtk)

	return l, nil
}

// readPresets copies the gVoice_* records exported by the synthesizer.
// It reports false unless all seven symbols resolve.
func readPresets(lib uintptr) ([NumVoiceTypes]Voice, bool) {
	var out [NumVoiceTypes]Voice
	for t := VoiceF1; t <= VoiceR2; t++ {
		addr, err := purego.Dlsym(lib, t.Symbol())
		if err != nil || addr == 0 {
			return DefaultVoices, false
		}
		out[t] = *(*Voice)(unsafe.Pointer(addr)) //nolint:govet // address of a C global owned by the library
	}
	return out, true
}

// Paths returns the library files this Library was loaded from.
func (l *Library) Paths() LibraryPaths { return l.paths }

// Presets implements PresetSource.
func (l *Library) Presets() ([NumVoiceTypes]Voice, bool) {
	return l.presets, l.hasPresets
}

func (l *Library) SyntheUTF8(v *Voice, koe string, size *int32) *byte {
	return l.synthe(v, koe, size)
}

func (l *Library) FreeWave(wav *byte) { l.freeWave(wav) }

func (l *Library) SetDevKey(key string) int32 { return l.devKey(key) }

func (l *Library) SetUsrKey(key string) int32 { return l.usrKey(key) }

func (l *Library) Kanji2KoeSetDevKey(key string) int32 { return l.k2kDevKey(key) }

func (l *Library) Kanji2KoeCreate(path string, errCode *int32) uintptr {
	return l.k2kCreate(path, errCode)
}

func (l *Library) Kanji2KoeRelease(h uintptr) { l.k2kRelease(h) }

func (l *Library) Kanji2KoeConvert(h uintptr, kanji string, koe []byte) int32 {
	if len(koe) == 0 {
		return l.k2kConvert(h, kanji, nil, 0)
	}
	return l.k2kConvert(h, kanji, &koe[0], int32(len(koe)))
}

// Close unloads both libraries. Every converter created from l must be
// closed first.
func (l *Library) Close() error {
	l.closeOnce.Do(func() {
		var errs []error
		if l.k2k != 0 {
			if err := purego.Dlclose(l.k2k); err != nil {
				errs = append(errs, fmt.Errorf("unload AqKanji2Koe: %w", err))
			}
			l.k2k = 0
		}
		if l.aqtk != 0 {
			if err := purego.Dlclose(l.aqtk); err != nil {
				errs = append(errs, fmt.Errorf("unload AquesTalk: %w", err))
			}
			l.aqtk = 0
		}
		l.closeErr = errors.Join(errs...)
	})
	return l.closeErr
}
