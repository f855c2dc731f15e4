package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/example/go-aquestalk/internal/aquestalk"
	"github.com/example/go-aquestalk/internal/audio"
	"github.com/example/go-aquestalk/internal/config"
	"github.com/example/go-aquestalk/internal/text"
)

// DefaultMaxChunkChars bounds a chunk when TalkRequest.MaxChunkChars is unset.
const DefaultMaxChunkChars = 200

// TalkRequest describes one synthesis. When Native is set Text is passed to
// the synthesizer as koe; otherwise it is normalized and converted first.
type TalkRequest struct {
	Text   string
	Native bool
	// Voice is a factory name or manifest id; empty selects the configured
	// default voice.
	Voice string
	// Overrides is applied over the resolved voice. Nil keeps it unchanged.
	Overrides *aquestalk.Overrides
	// Chunk splits the input at sentence boundaries and synthesizes each
	// chunk separately, joining the WAVs.
	Chunk         bool
	MaxChunkChars int
}

type Service struct {
	engine       *aquestalk.Engine
	converter    *aquestalk.Kanji2Koe
	library      io.Closer
	voices       *VoiceManager
	defaultVoice string
	licenses     map[string]LicenseState
	log          *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// LicenseState records a configured key and the status the library
// returned when it was registered.
type LicenseState struct {
	Configured bool `json:"configured"`
	Code       int  `json:"code"`
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

var licenseKinds = map[string]aquestalk.LicenseType{
	"usr_key": aquestalk.LicenseAquesTalkUsr,
	"dev_key": aquestalk.LicenseAquesTalkDev,
	"k2k_key": aquestalk.LicenseKanji2KoeDev,
}

// Open loads the shared libraries named by cfg (or auto-detected) and builds
// a Service over them. Close releases the libraries.
func Open(cfg config.Config, opts ...Option) (*Service, error) {
	paths, err := aquestalk.DetectLibraries(aquestalk.LibraryPaths{
		AquesTalk: cfg.Library.AquesTalkPath,
		Kanji2Koe: cfg.Library.Kanji2KoePath,
	})
	if err != nil {
		return nil, err
	}

	lib, err := aquestalk.Open(paths)
	if err != nil {
		return nil, err
	}

	svc, err := NewService(lib, cfg, opts...)
	if err != nil {
		_ = lib.Close()
		return nil, err
	}
	svc.library = lib

	return svc, nil
}

// NewService registers the configured license keys with native, creates the
// kanji converter and loads the voice manifest. The caller keeps ownership
// of native.
func NewService(native aquestalk.Native, cfg config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		defaultVoice: cfg.Voice.Type,
		licenses:     make(map[string]LicenseState, len(licenseKinds)),
		log:          slog.Default(),
	}
	for _, fn := range opts {
		fn(s)
	}

	s.engine = aquestalk.NewEngine(native, aquestalk.WithLogger(s.log))

	// Keys must be registered before the converter is created.
	for _, k := range cfg.License.LicenseKeys() {
		state := LicenseState{Configured: k.Key != ""}
		if state.Configured {
			code, err := s.engine.SetLicenseKey(licenseKinds[k.Name], k.Key)
			if err != nil {
				return nil, err
			}
			state.Code = code
			if code != 0 {
				s.log.Warn("license key rejected", slog.String("key", k.Name), slog.Int("code", code))
			}
		}
		s.licenses[k.Name] = state
	}

	voices, err := loadVoices(cfg.Voices.ManifestPath, s.log)
	if err != nil {
		return nil, err
	}
	s.voices = voices

	if _, _, err := s.voices.Resolve(s.defaultVoice); err != nil {
		return nil, fmt.Errorf("default voice: %w", err)
	}

	dic, err := aquestalk.DetectDictionary(cfg.Dictionary.Path)
	if err != nil {
		return nil, fmt.Errorf("AqKanji2Koe dictionary: %w", err)
	}

	sizer := aquestalk.LinearBufferSizer(cfg.Convert.BufferFactor, cfg.Convert.BufferMargin)
	conv, err := s.engine.NewKanji2Koe(dic, aquestalk.WithBufferSizer(sizer))
	if err != nil {
		return nil, fmt.Errorf("create converter from %s: %w", dic, err)
	}
	s.converter = conv

	s.log.Debug("tts service ready",
		slog.String("dictionary", dic),
		slog.String("voice", s.defaultVoice),
		slog.Int("voices", len(s.voices.ListVoices())),
	)

	return s, nil
}

func loadVoices(manifestPath string, log *slog.Logger) (*VoiceManager, error) {
	if manifestPath == "" {
		return NewFactoryVoiceManager(), nil
	}

	mgr, err := NewVoiceManager(manifestPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug("voice manifest not found; using factory voices", slog.String("path", manifestPath))
		return NewFactoryVoiceManager(), nil
	}
	return mgr, err
}

// Talk synthesizes req and returns a WAV file. The context is checked
// between chunks; a native call in progress is not interrupted.
func (s *Service) Talk(ctx context.Context, req TalkRequest) ([]byte, error) {
	vt, ov, err := s.ResolveVoice(req.Voice, req.Overrides)
	if err != nil {
		return nil, err
	}

	input := req.Text
	if !req.Native {
		input, err = text.Normalize(input)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", aquestalk.ErrInvalidArgument, err)
		}
	} else if input == "" {
		return nil, fmt.Errorf("%w: %w", aquestalk.ErrInvalidArgument, text.ErrEmptyText)
	}

	segments := []string{input}
	if req.Chunk {
		limit := req.MaxChunkChars
		if limit <= 0 {
			limit = DefaultMaxChunkChars
		}
		segments = text.ChunkBySentence(input, limit)
	}

	wavs := make([][]byte, 0, len(segments))
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		koe := seg
		if !req.Native {
			koe, err = s.converter.Convert(seg)
			if err != nil {
				return nil, fmt.Errorf("convert chunk %d: %w", i+1, err)
			}
		}

		wav, err := s.engine.Synthe(koe, vt, ov)
		if err != nil {
			return nil, fmt.Errorf("synthesize chunk %d: %w", i+1, err)
		}
		wavs = append(wavs, wav)
	}

	return audio.Concat(wavs)
}

// ResolveVoice resolves id (or the default voice when empty) and layers
// extra on top of the voice's own overrides.
func (s *Service) ResolveVoice(id string, extra *aquestalk.Overrides) (aquestalk.VoiceType, aquestalk.Overrides, error) {
	if id == "" {
		id = s.defaultVoice
	}
	vt, ov, err := s.voices.Resolve(id)
	if err != nil {
		return 0, aquestalk.Overrides{}, err
	}
	if extra != nil {
		ov = ov.Merge(*extra)
	}
	return vt, ov, nil
}

// EffectiveVoice reports the parameter record a TalkRequest would send.
func (s *Service) EffectiveVoice(id string, extra *aquestalk.Overrides) (aquestalk.Voice, error) {
	vt, ov, err := s.ResolveVoice(id, extra)
	if err != nil {
		return aquestalk.Voice{}, err
	}
	return s.engine.EffectiveVoice(vt, ov)
}

// Convert normalizes kanji-kana text and returns its koe reading.
func (s *Service) Convert(input string) (string, error) {
	normalized, err := text.Normalize(input)
	if err != nil {
		return "", fmt.Errorf("%w: %w", aquestalk.ErrInvalidArgument, err)
	}
	return s.converter.Convert(normalized)
}

// LicenseStatus reports which license keys were configured, keyed
// usr_key, dev_key and k2k_key.
func (s *Service) LicenseStatus() map[string]bool {
	out := make(map[string]bool, len(s.licenses))
	for name, st := range s.licenses {
		out[name] = st.Configured
	}
	return out
}

// Licenses reports the configured state and registration code per key.
func (s *Service) Licenses() map[string]LicenseState {
	out := make(map[string]LicenseState, len(s.licenses))
	for name, st := range s.licenses {
		out[name] = st
	}
	return out
}

func (s *Service) Voices() []Voice {
	return s.voices.ListVoices()
}

func (s *Service) DefaultVoice() string {
	return s.defaultVoice
}

// Close releases the converter and then the libraries opened by Open.
// It is safe to call more than once.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.converter.Close(); err != nil {
			errs = append(errs, err)
		}
		if s.library != nil {
			if err := s.library.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
