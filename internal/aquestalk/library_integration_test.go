//go:build integration

package aquestalk_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/example/go-aquestalk/internal/aquestalk"
	"github.com/example/go-aquestalk/internal/testutil"
)

func openLibrary(t *testing.T) *aquestalk.Library {
	t.Helper()

	paths := testutil.RequireAquesTalk(t)

	lib, err := aquestalk.Open(paths)
	if err != nil {
		t.Fatalf("open libraries: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })
	return lib
}

func TestLibrary_SyntheAllPresets(t *testing.T) {
	e := aquestalk.NewEngine(openLibrary(t))

	for vt := aquestalk.VoiceF1; vt <= aquestalk.VoiceR2; vt++ {
		wav, err := e.Synthe("yukkuri'shiteittene", vt, aquestalk.NoOverrides())
		if err != nil {
			t.Fatalf("%s: %v", vt, err)
		}
		testutil.AssertValidWAV(t, wav)
	}
}

func TestLibrary_ConvertShortText(t *testing.T) {
	e := aquestalk.NewEngine(openLibrary(t))
	dic := testutil.RequireDictionary(t)

	k, err := e.NewKanji2Koe(dic)
	if err != nil {
		t.Fatalf("NewKanji2Koe: %v", err)
	}
	defer k.Close()

	koe, err := k.Convert("今日は良い天気です。")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if koe == "" {
		t.Fatal("expected non-empty koe")
	}
}

func TestLibrary_InvalidDictionary(t *testing.T) {
	e := aquestalk.NewEngine(openLibrary(t))

	k, err := e.NewKanji2Koe(t.TempDir())
	if !errors.Is(err, aquestalk.ErrNative) {
		t.Fatalf("err = %v; want native error", err)
	}
	if _, err := k.Convert("漢字"); !errors.Is(err, aquestalk.ErrNotInitialized) {
		t.Errorf("Convert err = %v; want ErrNotInitialized", err)
	}
}

// Long inputs whose reading may exceed 4*len+16 bytes must surface either a
// native error or ErrTruncated, never a silent success with garbage.
func TestLibrary_ConvertExpansionBoundary(t *testing.T) {
	e := aquestalk.NewEngine(openLibrary(t))
	dic := testutil.RequireDictionary(t)

	k, err := e.NewKanji2Koe(dic, aquestalk.WithBufferSizer(aquestalk.LinearBufferSizer(1, 0)))
	if err != nil {
		t.Fatalf("NewKanji2Koe: %v", err)
	}
	defer k.Close()

	koe, err := k.Convert(strings.Repeat("一", 64))
	switch {
	case err == nil:
		if koe == "" {
			t.Fatal("Convert succeeded with an empty reading")
		}
		t.Logf("reading fit in the undersized buffer: %d bytes", len(koe))
	case errors.Is(err, aquestalk.ErrNative), errors.Is(err, aquestalk.ErrTruncated):
		t.Logf("undersized buffer reported: %v", err)
	default:
		t.Fatalf("unexpected error: %v", err)
	}
}
