package testutil

import (
	"strings"
	"sync"
	"time"

	"github.com/example/go-aquestalk/internal/aquestalk"
)

// FakeSampleRate is the sample rate of WAVs produced by FakeNative.
const FakeSampleRate = 16000

// FakeNative is an in-memory aquestalk.Native for packages above the
// binding. Synthesis yields a short WAV whose length grows with the koe
// text; conversion prefixes the input with "koe:".
type FakeNative struct {
	// FailOn makes synthesis fail with code 105 for koe containing it.
	FailOn string
	// ConvertErr makes every conversion fail with this code.
	ConvertErr int32
	// CreateErr makes converter creation fail with this code.
	CreateErr int32
	// KeyCode is returned from every license registration.
	KeyCode int32
	// Delay is slept inside every synthesis call.
	Delay time.Duration

	mu         sync.Mutex
	keys       map[string]string
	koes       []string
	voices     []aquestalk.Voice
	live       map[*byte][]byte
	freed      int
	handles    map[uintptr]bool
	nextHandle uintptr
	released   int
}

func NewFakeNative() *FakeNative {
	return &FakeNative{
		keys:       make(map[string]string),
		live:       make(map[*byte][]byte),
		handles:    make(map[uintptr]bool),
		nextHandle: 1,
	}
}

func (f *FakeNative) SyntheUTF8(v *aquestalk.Voice, koe string, size *int32) *byte {
	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.koes = append(f.koes, koe)
	f.voices = append(f.voices, *v)
	if f.FailOn != "" && strings.Contains(koe, f.FailOn) {
		*size = 105
		return nil
	}

	wav := PCMWAV(FakeSampleRate, 10*len(koe)+1)
	f.live[&wav[0]] = wav
	*size = int32(len(wav))
	return &wav[0]
}

func (f *FakeNative) FreeWave(wav *byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[wav]; ok {
		delete(f.live, wav)
		f.freed++
	}
}

func (f *FakeNative) setKey(kind aquestalk.LicenseType, key string) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[string(kind)] = key
	return f.KeyCode
}

func (f *FakeNative) SetDevKey(key string) int32 {
	return f.setKey(aquestalk.LicenseAquesTalkDev, key)
}

func (f *FakeNative) SetUsrKey(key string) int32 {
	return f.setKey(aquestalk.LicenseAquesTalkUsr, key)
}

func (f *FakeNative) Kanji2KoeSetDevKey(key string) int32 {
	return f.setKey(aquestalk.LicenseKanji2KoeDev, key)
}

func (f *FakeNative) Kanji2KoeCreate(path string, errCode *int32) uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != 0 {
		*errCode = f.CreateErr
		return 0
	}
	h := f.nextHandle
	f.nextHandle++
	f.handles[h] = true
	return h
}

func (f *FakeNative) Kanji2KoeRelease(h uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handles[h] {
		delete(f.handles, h)
		f.released++
	}
}

func (f *FakeNative) Kanji2KoeConvert(h uintptr, kanji string, koe []byte) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.handles[h] {
		return 1
	}
	if f.ConvertErr != 0 {
		return f.ConvertErr
	}
	out := "koe:" + kanji
	if len(out) >= len(koe) {
		return 202
	}
	copy(koe, out)
	koe[len(out)] = 0
	return 0
}

// Keys returns a copy of the registered license keys by tag.
func (f *FakeNative) Keys() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.keys))
	for k, v := range f.keys {
		out[k] = v
	}
	return out
}

// Koes returns every koe string passed to synthesis, in call order.
func (f *FakeNative) Koes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.koes...)
}

// Voices returns every voice record passed to synthesis, in call order.
func (f *FakeNative) Voices() []aquestalk.Voice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]aquestalk.Voice(nil), f.voices...)
}

// SyntheCalls reports how many synthesis calls were made.
func (f *FakeNative) SyntheCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.koes)
}

// Leaks reports native buffers not yet freed and handles not yet released.
func (f *FakeNative) Leaks() (buffers, handles int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live), len(f.handles)
}

// Released reports how many converter handles were released.
func (f *FakeNative) Released() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}
