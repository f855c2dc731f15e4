package tts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/example/go-aquestalk/internal/aquestalk"
)

// Voice is a named voice: one of the factory presets, or a manifest entry
// that starts from a preset and overrides some of its parameters.
type Voice struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	License     string `json:"license,omitempty"`
	Builtin     bool   `json:"builtin"`

	Bas *int `json:"bas,omitempty"`
	Spd *int `json:"spd,omitempty"`
	Vol *int `json:"vol,omitempty"`
	Pit *int `json:"pit,omitempty"`
	Acc *int `json:"acc,omitempty"`
	Lmd *int `json:"lmd,omitempty"`
	Fsc *int `json:"fsc,omitempty"`
}

// Overrides converts the voice's explicit parameters into preset overrides.
func (v Voice) Overrides() aquestalk.Overrides {
	ov := aquestalk.NoOverrides()
	set := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	set(&ov.Bas, v.Bas)
	set(&ov.Spd, v.Spd)
	set(&ov.Vol, v.Vol)
	set(&ov.Pit, v.Pit)
	set(&ov.Acc, v.Acc)
	set(&ov.Lmd, v.Lmd)
	set(&ov.Fsc, v.Fsc)
	return ov
}

type voiceManifest struct {
	Voices []Voice `json:"voices"`
}

type VoiceManager struct {
	voices []Voice
	byID   map[string]Voice
}

// FactoryVoices returns one entry per built-in preset, in native order.
func FactoryVoices() []Voice {
	out := make([]Voice, 0, aquestalk.NumVoiceTypes)
	for vt := aquestalk.VoiceF1; vt <= aquestalk.VoiceR2; vt++ {
		out = append(out, Voice{ID: vt.String(), Type: vt.String(), Builtin: true})
	}
	return out
}

// NewFactoryVoiceManager returns a manager that knows only the presets.
func NewFactoryVoiceManager() *VoiceManager {
	return &VoiceManager{
		voices: FactoryVoices(),
		byID:   map[string]Voice{},
	}
}

func NewVoiceManager(manifestPath string) (*VoiceManager, error) {
	if manifestPath == "" {
		return nil, errors.New("manifest path is required")
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read voice manifest: %w", err)
	}

	var manifest voiceManifest

	err = json.Unmarshal(data, &manifest)
	if err != nil {
		return nil, fmt.Errorf("decode voice manifest: %w", err)
	}

	mgr := &VoiceManager{
		voices: FactoryVoices(),
		byID:   make(map[string]Voice, len(manifest.Voices)),
	}

	for _, v := range manifest.Voices {
		if v.ID == "" {
			return nil, errors.New("voice manifest contains empty id")
		}

		if _, err := aquestalk.ParseVoiceType(v.ID); err == nil {
			return nil, fmt.Errorf("voice id %q shadows a factory voice", v.ID)
		}

		if _, exists := mgr.byID[v.ID]; exists {
			return nil, fmt.Errorf("duplicate voice id %q", v.ID)
		}

		vt, err := aquestalk.ParseVoiceType(v.Type)
		if err != nil {
			return nil, fmt.Errorf("voice %q: %w", v.ID, err)
		}
		v.Type = vt.String()
		v.Builtin = false

		if key, bad := negativeParam(v); bad {
			return nil, fmt.Errorf("voice %q: %s must be >= 0", v.ID, key)
		}

		mgr.byID[v.ID] = v
		mgr.voices = append(mgr.voices, v)
	}

	return mgr, nil
}

func negativeParam(v Voice) (string, bool) {
	params := []*int{v.Bas, v.Spd, v.Vol, v.Pit, v.Acc, v.Lmd, v.Fsc}
	for i, p := range params {
		if p != nil && *p < 0 {
			return aquestalk.OverrideKeys[i], true
		}
	}
	return "", false
}

func (m *VoiceManager) ListVoices() []Voice {
	return append([]Voice(nil), m.voices...)
}

// Resolve maps a manifest id or a factory name (F1..R2, gVoice_F1, 0..6)
// to its preset type and overrides. Manifest ids are matched exactly.
func (m *VoiceManager) Resolve(id string) (aquestalk.VoiceType, aquestalk.Overrides, error) {
	if v, ok := m.byID[strings.TrimSpace(id)]; ok {
		vt, err := aquestalk.ParseVoiceType(v.Type)
		if err != nil {
			return 0, aquestalk.Overrides{}, err
		}
		return vt, v.Overrides(), nil
	}

	vt, err := aquestalk.ParseVoiceType(id)
	if err != nil {
		return 0, aquestalk.Overrides{}, fmt.Errorf("%w: unknown voice %q", aquestalk.ErrInvalidArgument, id)
	}
	return vt, aquestalk.NoOverrides(), nil
}
