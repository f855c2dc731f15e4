package aquestalk

import "sync"

// fakeNative is an in-memory Native that records every boundary call.
type fakeNative struct {
	mu sync.Mutex

	syntheCalls int
	lastVoice   Voice
	lastKoe     string
	wav         []byte
	syntheErr   int32

	live     map[*byte][]byte
	freed    int
	badFrees int

	keys map[string]string
	code int32

	createErr   int32
	nextHandle  uintptr
	handles     map[uintptr]bool
	released    int
	badReleases int

	convertCalls int
	lastCapacity int
	koe          string
	convertErr   int32
	noTerminator bool
}

func newFakeNative() *fakeNative {
	return &fakeNative{
		wav:        []byte("RIFF\x24\x00\x00\x00WAVEfake"),
		live:       make(map[*byte][]byte),
		keys:       make(map[string]string),
		nextHandle: 0x1000,
		handles:    make(map[uintptr]bool),
		koe:        "kyo'-wa/i'i/te'nkidesu.",
	}
}

func (f *fakeNative) SyntheUTF8(v *Voice, koe string, size *int32) *byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.syntheCalls++
	f.lastVoice = *v
	f.lastKoe = koe
	if f.syntheErr != 0 {
		*size = f.syntheErr
		return nil
	}

	buf := append([]byte(nil), f.wav...)
	p := &buf[0]
	f.live[p] = buf
	*size = int32(len(buf))
	return p
}

func (f *fakeNative) FreeWave(wav *byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.live[wav]; !ok {
		f.badFrees++
		return
	}
	delete(f.live, wav)
	f.freed++
}

func (f *fakeNative) setKey(kind, key string) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[kind] = key
	return f.code
}

func (f *fakeNative) SetDevKey(key string) int32 { return f.setKey("aquestalk_dev", key) }

func (f *fakeNative) SetUsrKey(key string) int32 { return f.setKey("aquestalk_usr", key) }

func (f *fakeNative) Kanji2KoeSetDevKey(key string) int32 { return f.setKey("kanji2koe_dev", key) }

func (f *fakeNative) Kanji2KoeCreate(path string, errCode *int32) uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != 0 {
		*errCode = f.createErr
		return 0
	}
	h := f.nextHandle
	f.nextHandle++
	f.handles[h] = true
	return h
}

func (f *fakeNative) Kanji2KoeRelease(h uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.handles[h] {
		f.badReleases++
		return
	}
	delete(f.handles, h)
	f.released++
}

func (f *fakeNative) Kanji2KoeConvert(h uintptr, kanji string, koe []byte) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.convertCalls++
	f.lastCapacity = len(koe)
	if !f.handles[h] {
		return -1
	}
	if f.convertErr != 0 {
		return f.convertErr
	}
	if f.noTerminator {
		for i := range koe {
			koe[i] = 'a'
		}
		return 0
	}
	n := copy(koe, f.koe)
	if n < len(koe) {
		koe[n] = 0
	}
	return 0
}

func (f *fakeNative) liveBuffers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func (f *fakeNative) releasedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

func (f *fakeNative) liveHandles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handles)
}

// presetNative reports a custom preset table.
type presetNative struct {
	*fakeNative
	presets [NumVoiceTypes]Voice
}

func (p *presetNative) Presets() ([NumVoiceTypes]Voice, bool) { return p.presets, true }
