// Package aquestalk binds the AquesTalk speech synthesizer and the
// AqKanji2Koe kanji-to-phoneme converter.
//
// The native libraries are closed-source; this package only marshals calls
// and buffers across the boundary and maps status codes onto Go errors.
// Library implements Native by loading the shared objects at runtime, and
// tests substitute an in-memory fake.
package aquestalk

// Native is the set of native entry points the binding calls.
//
// Pointer results returned by SyntheUTF8 are owned by the native side and
// must be passed to FreeWave exactly once. Converter handles returned by
// Kanji2KoeCreate must be passed to Kanji2KoeRelease exactly once.
type Native interface {
	// SyntheUTF8 synthesizes koe with voice v. On success it returns the WAV
	// buffer and stores its length in size. On failure it returns nil and
	// stores the error code in size.
	SyntheUTF8(v *Voice, koe string, size *int32) *byte
	FreeWave(wav *byte)

	SetDevKey(key string) int32
	SetUsrKey(key string) int32
	Kanji2KoeSetDevKey(key string) int32

	// Kanji2KoeCreate loads the dictionary at path. It returns 0 and stores
	// the error code in errCode on failure.
	Kanji2KoeCreate(path string, errCode *int32) uintptr
	Kanji2KoeRelease(h uintptr)
	// Kanji2KoeConvert writes a NUL-terminated koe string into koe, using at
	// most len(koe) bytes, and returns 0 on success.
	Kanji2KoeConvert(h uintptr, kanji string, koe []byte) int32
}

// PresetSource is implemented by a Native that can read the factory presets
// exported by the loaded library.
type PresetSource interface {
	Presets() ([NumVoiceTypes]Voice, bool)
}
