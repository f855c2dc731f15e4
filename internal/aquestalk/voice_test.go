package aquestalk

import (
	"errors"
	"testing"
	"unsafe"
)

func TestVoiceLayoutMatchesNativeRecord(t *testing.T) {
	if got := unsafe.Sizeof(Voice{}); got != 7*4 {
		t.Fatalf("sizeof(Voice) = %d; want 28", got)
	}
}

func TestVoiceTypeConstants(t *testing.T) {
	want := map[VoiceType]int{
		VoiceF1: 0, VoiceF2: 1, VoiceF3: 2, VoiceM1: 3, VoiceM2: 4, VoiceR1: 5, VoiceR2: 6,
	}
	for vt, n := range want {
		if int(vt) != n {
			t.Errorf("%s = %d; want %d", vt, int(vt), n)
		}
	}
}

func TestVoiceTypeStringAndSymbol(t *testing.T) {
	if VoiceM2.String() != "M2" {
		t.Errorf("String() = %q; want M2", VoiceM2.String())
	}
	if VoiceR1.Symbol() != "gVoice_R1" {
		t.Errorf("Symbol() = %q; want gVoice_R1", VoiceR1.Symbol())
	}
	if VoiceType(9).String() != "VoiceType(9)" {
		t.Errorf("invalid String() = %q", VoiceType(9).String())
	}
}

func TestParseVoiceType(t *testing.T) {
	tests := []struct {
		in      string
		want    VoiceType
		wantErr bool
	}{
		{"F1", VoiceF1, false},
		{"f2", VoiceF2, false},
		{" M1 ", VoiceM1, false},
		{"gVoice_R2", VoiceR2, false},
		{"0", VoiceF1, false},
		{"6", VoiceR2, false},
		{"7", 0, true},
		{"-1", 0, true},
		{"X9", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVoiceType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("ParseVoiceType(%q) err = %v; want ErrInvalidArgument", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVoiceType(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseVoiceType(%q) = %v; want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOverridesApply(t *testing.T) {
	base := DefaultVoices[VoiceF3]

	if got := NoOverrides().Apply(base); got != base {
		t.Errorf("NoOverrides changed preset: %+v", got)
	}

	ov := NoOverrides()
	ov.Spd = 150
	ov.Fsc = 0
	got := ov.Apply(base)
	if got.Spd != 150 {
		t.Errorf("Spd = %d; want 150", got.Spd)
	}
	if got.Fsc != 0 {
		t.Errorf("Fsc = %d; want 0 (zero is applied)", got.Fsc)
	}
	if got.Lmd != base.Lmd || got.Pit != base.Pit {
		t.Errorf("untouched fields changed: %+v", got)
	}
}

func TestOverridesSetAndMerge(t *testing.T) {
	ov := NoOverrides()
	for i, key := range OverrideKeys {
		if err := ov.Set(key, i*10); err != nil {
			t.Fatalf("Set(%q): %v", key, err)
		}
	}
	if ov.Bas != 0 || ov.Fsc != 60 {
		t.Errorf("unexpected overrides: %+v", ov)
	}

	if err := ov.Set("tone", 1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Set(unknown) err = %v; want ErrInvalidArgument", err)
	}

	next := NoOverrides()
	next.Vol = 200
	merged := ov.Merge(next)
	if merged.Vol != 200 {
		t.Errorf("merged Vol = %d; want 200", merged.Vol)
	}
	if merged.Spd != ov.Spd {
		t.Errorf("merged Spd = %d; want %d", merged.Spd, ov.Spd)
	}
}
