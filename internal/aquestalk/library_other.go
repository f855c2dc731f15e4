//go:build !darwin && !linux

package aquestalk

import (
	"errors"
	"runtime"
)

var errUnsupportedPlatform = errors.New("AquesTalk dynamic loading is not supported on " + runtime.GOOS)

// Library is unavailable on this platform; Open always fails.
type Library struct {
	paths LibraryPaths
}

func Open(paths LibraryPaths) (*Library, error) {
	return nil, errUnsupportedPlatform
}

func (l *Library) Paths() LibraryPaths { return l.paths }

func (l *Library) Presets() ([NumVoiceTypes]Voice, bool) { return DefaultVoices, false }

func (l *Library) SyntheUTF8(v *Voice, koe string, size *int32) *byte {
	*size = -1
	return nil
}

func (l *Library) FreeWave(wav *byte) {}

func (l *Library) SetDevKey(key string) int32 { return -1 }

func (l *Library) SetUsrKey(key string) int32 { return -1 }

func (l *Library) Kanji2KoeSetDevKey(key string) int32 { return -1 }

func (l *Library) Kanji2KoeCreate(path string, errCode *int32) uintptr {
	*errCode = -1
	return 0
}

func (l *Library) Kanji2KoeRelease(h uintptr) {}

func (l *Library) Kanji2KoeConvert(h uintptr, kanji string, koe []byte) int32 { return -1 }

func (l *Library) Close() error { return nil }
