// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skipf with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    paths := testutil.RequireAquesTalk(t)
//	    dic := testutil.RequireDictionary(t)
//	    ...
//	}
package testutil

import (
	"testing"

	"github.com/example/go-aquestalk/internal/aquestalk"
)

// RequireAquesTalk skips the test unless both vendor libraries can be
// located via AQTK_AQUESTALK_LIB / AQTK_KANJI2KOE_LIB or the well-known
// install locations. It returns the detected paths.
func RequireAquesTalk(tb testing.TB) aquestalk.LibraryPaths {
	tb.Helper()

	paths, err := aquestalk.DetectLibraries(aquestalk.LibraryPaths{})
	if err != nil {
		tb.Skipf("AquesTalk libraries not available: %v; set AQTK_AQUESTALK_LIB and AQTK_KANJI2KOE_LIB", err)
		return aquestalk.LibraryPaths{}
	}

	return paths
}

// RequireDictionary skips the test unless an AqKanji2Koe dictionary
// directory can be located via AQTK_DIC or the well-known locations.
func RequireDictionary(tb testing.TB) string {
	tb.Helper()

	dic, err := aquestalk.DetectDictionary("")
	if err != nil {
		tb.Skipf("AqKanji2Koe dictionary not available: %v", err)
		return ""
	}

	return dic
}
