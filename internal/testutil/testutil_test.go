package testutil_test

import (
	"os"
	"testing"

	"github.com/example/go-aquestalk/internal/testutil"
)

func TestRequireAquesTalk_SkipsWhenAbsent(t *testing.T) {
	t.Setenv("AQTK_AQUESTALK_LIB", "/nonexistent/libAquesTalk10.so")
	t.Setenv("AQTK_KANJI2KOE_LIB", "/nonexistent/libAqKanji2Koe.so")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireAquesTalk(fakeT)
	if !skipped {
		t.Error("expected RequireAquesTalk to skip when libraries are absent")
	}
}

func TestRequireDictionary_SkipsWhenAbsent(t *testing.T) {
	t.Setenv("AQTK_DIC", "/nonexistent/aq_dic")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireDictionary(fakeT)
	if !skipped {
		t.Error("expected RequireDictionary to skip when dictionary is absent")
	}
}

func TestRequireDictionary_ReturnsConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AQTK_DIC", dir)

	got := testutil.RequireDictionary(t)
	if got != dir {
		t.Errorf("RequireDictionary = %q; want %q", got, dir)
	}
	if _, err := os.Stat(got); err != nil {
		t.Errorf("stat: %v", err)
	}
}

// skipTracker is a minimal testing.TB implementation that intercepts Skip calls.
type skipTracker struct {
	testing.TB
	onSkip func()
}

func (s *skipTracker) Helper() {}

func (s *skipTracker) Skipf(_ string, _ ...any) {
	s.onSkip()
	// Do NOT call s.TB.Skip; that would actually skip the outer test.
}
