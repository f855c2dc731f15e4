package aquestalk

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"
)

// Engine issues synthesis and license calls against a Native. Synthesis
// calls are serialized because the vendor does not document the
// synthesizer as thread-safe.
type Engine struct {
	native  Native
	presets [NumVoiceTypes]Voice
	log     *slog.Logger

	mu sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for native call diagnostics.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// NewEngine wraps native. Factory presets are read from native when it
// implements PresetSource and reports them, otherwise DefaultVoices is used.
func NewEngine(native Native, opts ...EngineOption) *Engine {
	e := &Engine{
		native:  native,
		presets: DefaultVoices,
		log:     slog.Default(),
	}
	for _, fn := range opts {
		fn(e)
	}
	if src, ok := native.(PresetSource); ok {
		if presets, ok := src.Presets(); ok {
			e.presets = presets
		}
	}
	return e
}

// Preset returns the factory preset for t.
func (e *Engine) Preset(t VoiceType) (Voice, error) {
	if !t.Valid() {
		return Voice{}, fmt.Errorf("%w: invalid type %d", ErrInvalidArgument, int(t))
	}
	return e.presets[t], nil
}

// EffectiveVoice copies the factory preset for t and applies ov.
func (e *Engine) EffectiveVoice(t VoiceType, ov Overrides) (Voice, error) {
	v, err := e.Preset(t)
	if err != nil {
		return Voice{}, err
	}
	return ov.Apply(v), nil
}

// Synthe synthesizes the koe string with preset t and overrides ov and
// returns the WAV bytes produced by the library. The returned slice is owned
// by the caller; the native buffer is released before Synthe returns.
func (e *Engine) Synthe(koe string, t VoiceType, ov Overrides) ([]byte, error) {
	voice, err := e.EffectiveVoice(t, ov)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var size int32
	wav := e.native.SyntheUTF8(&voice, koe, &size)
	if wav == nil {
		e.log.Debug("AquesTalk synthesis failed",
			slog.String("voice", t.String()),
			slog.Int("code", int(size)),
		)
		return nil, &NativeError{Op: "synthe", Code: int(size)}
	}
	defer e.native.FreeWave(wav)

	if size <= 0 {
		return []byte{}, nil
	}

	out := make([]byte, int(size))
	copy(out, unsafe.Slice(wav, int(size)))

	return out, nil
}

// LicenseType selects which native key registration entry point to call.
type LicenseType string

const (
	LicenseAquesTalkDev LicenseType = "aquestalk_dev"
	LicenseAquesTalkUsr LicenseType = "aquestalk_usr"
	LicenseKanji2KoeDev LicenseType = "kanji2koe_dev"
)

// LicenseTypes lists the recognized license tags.
var LicenseTypes = []LicenseType{LicenseAquesTalkDev, LicenseAquesTalkUsr, LicenseKanji2KoeDev}

// SetLicenseKey registers key with the entry point selected by kind and
// returns the native status unmodified (0 conventionally means success).
func (e *Engine) SetLicenseKey(kind LicenseType, key string) (int, error) {
	var register func(string) int32
	switch kind {
	case LicenseAquesTalkDev:
		register = e.native.SetDevKey
	case LicenseAquesTalkUsr:
		register = e.native.SetUsrKey
	case LicenseKanji2KoeDev:
		register = e.native.Kanji2KoeSetDevKey
	default:
		return 0, fmt.Errorf("%w: invalid license type %q", ErrInvalidArgument, string(kind))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return int(register(key)), nil
}
