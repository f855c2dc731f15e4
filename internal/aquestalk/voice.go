package aquestalk

import (
	"fmt"
	"strconv"
	"strings"
)

// Voice mirrors the native AQTK_VOICE record. Field order and width must
// match the C layout because a pointer to it is passed to the synthesizer.
type Voice struct {
	Bas int32 `json:"bas"` // base phoneme set (0..2)
	Spd int32 `json:"spd"` // speed, 50..300
	Vol int32 `json:"vol"` // volume, 0..300
	Pit int32 `json:"pit"` // pitch, 20..200
	Acc int32 `json:"acc"` // accent, 0..200
	Lmd int32 `json:"lmd"` // modulation depth, 0..200
	Fsc int32 `json:"fsc"` // frequency scale, 50..200
}

// VoiceType selects one of the seven factory presets.
type VoiceType int

const (
	VoiceF1 VoiceType = iota
	VoiceF2
	VoiceF3
	VoiceM1
	VoiceM2
	VoiceR1
	VoiceR2
)

// NumVoiceTypes is the number of factory presets.
const NumVoiceTypes = 7

var voiceTypeNames = [NumVoiceTypes]string{"F1", "F2", "F3", "M1", "M2", "R1", "R2"}

// DefaultVoices is the built-in factory preset table, indexed by VoiceType.
// It is used when the loaded library does not export its gVoice_* symbols.
var DefaultVoices = [NumVoiceTypes]Voice{
	VoiceF1: {Bas: 0, Spd: 100, Vol: 100, Pit: 100, Acc: 100, Lmd: 100, Fsc: 100},
	VoiceF2: {Bas: 1, Spd: 100, Vol: 100, Pit: 77, Acc: 150, Lmd: 100, Fsc: 100},
	VoiceF3: {Bas: 0, Spd: 80, Vol: 100, Pit: 100, Acc: 100, Lmd: 61, Fsc: 148},
	VoiceM1: {Bas: 2, Spd: 100, Vol: 100, Pit: 30, Acc: 100, Lmd: 100, Fsc: 100},
	VoiceM2: {Bas: 2, Spd: 105, Vol: 100, Pit: 45, Acc: 130, Lmd: 120, Fsc: 100},
	VoiceR1: {Bas: 2, Spd: 100, Vol: 100, Pit: 30, Acc: 20, Lmd: 190, Fsc: 100},
	VoiceR2: {Bas: 1, Spd: 70, Vol: 100, Pit: 50, Acc: 50, Lmd: 50, Fsc: 180},
}

// Valid reports whether t names a factory preset.
func (t VoiceType) Valid() bool {
	return t >= VoiceF1 && t <= VoiceR2
}

func (t VoiceType) String() string {
	if !t.Valid() {
		return "VoiceType(" + strconv.Itoa(int(t)) + ")"
	}
	return voiceTypeNames[t]
}

// Symbol returns the name of the exported native preset variable, e.g. "gVoice_F1".
func (t VoiceType) Symbol() string {
	return "gVoice_" + t.String()
}

// ParseVoiceType accepts a preset name ("F1", "r2", "gVoice_M1") or its
// numeric value ("0".."6").
func ParseVoiceType(s string) (VoiceType, error) {
	raw := strings.TrimSpace(s)
	if n, err := strconv.Atoi(raw); err == nil {
		t := VoiceType(n)
		if !t.Valid() {
			return 0, fmt.Errorf("%w: invalid voice type %d", ErrInvalidArgument, n)
		}
		return t, nil
	}

	name := strings.ToUpper(strings.TrimPrefix(raw, "gVoice_"))
	for i, n := range voiceTypeNames {
		if n == name {
			return VoiceType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: invalid voice type %q", ErrInvalidArgument, s)
}

// Overrides holds optional per-field replacements for a factory preset.
// A negative field leaves the preset value untouched; zero is applied as
// zero, so callers that mean "default" must pass a negative value.
type Overrides struct {
	Bas int `json:"bas"`
	Spd int `json:"spd"`
	Vol int `json:"vol"`
	Pit int `json:"pit"`
	Acc int `json:"acc"`
	Lmd int `json:"lmd"`
	Fsc int `json:"fsc"`
}

// NoOverrides returns an Overrides value that keeps every preset field.
func NoOverrides() Overrides {
	return Overrides{Bas: -1, Spd: -1, Vol: -1, Pit: -1, Acc: -1, Lmd: -1, Fsc: -1}
}

// OverrideKeys lists the parameter names accepted by Set, in native order.
var OverrideKeys = []string{"bas", "spd", "vol", "pit", "acc", "lmd", "fsc"}

// Set assigns the override named key. Unknown keys are rejected.
func (o *Overrides) Set(key string, value int) error {
	switch strings.ToLower(key) {
	case "bas":
		o.Bas = value
	case "spd":
		o.Spd = value
	case "vol":
		o.Vol = value
	case "pit":
		o.Pit = value
	case "acc":
		o.Acc = value
	case "lmd":
		o.Lmd = value
	case "fsc":
		o.Fsc = value
	default:
		return fmt.Errorf("%w: unknown voice parameter %q", ErrInvalidArgument, key)
	}
	return nil
}

// Merge returns o with every non-negative field of next applied on top.
func (o Overrides) Merge(next Overrides) Overrides {
	pick := func(cur, n int) int {
		if n >= 0 {
			return n
		}
		return cur
	}
	return Overrides{
		Bas: pick(o.Bas, next.Bas),
		Spd: pick(o.Spd, next.Spd),
		Vol: pick(o.Vol, next.Vol),
		Pit: pick(o.Pit, next.Pit),
		Acc: pick(o.Acc, next.Acc),
		Lmd: pick(o.Lmd, next.Lmd),
		Fsc: pick(o.Fsc, next.Fsc),
	}
}

// Apply returns v with the non-negative overrides written over it.
func (o Overrides) Apply(v Voice) Voice {
	if o.Bas >= 0 {
		v.Bas = int32(o.Bas)
	}
	if o.Spd >= 0 {
		v.Spd = int32(o.Spd)
	}
	if o.Vol >= 0 {
		v.Vol = int32(o.Vol)
	}
	if o.Pit >= 0 {
		v.Pit = int32(o.Pit)
	}
	if o.Acc >= 0 {
		v.Acc = int32(o.Acc)
	}
	if o.Lmd >= 0 {
		v.Lmd = int32(o.Lmd)
	}
	if o.Fsc >= 0 {
		v.Fsc = int32(o.Fsc)
	}
	return v
}
