package aquestalk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// LibraryPaths locates the two vendor shared libraries.
type LibraryPaths struct {
	AquesTalk string
	Kanji2Koe string
}

var (
	aquesTalkCandidates = map[string][]string{
		"linux": {
			"downloads/lib/libAquesTalk10.so",
			"lib/libAquesTalk10.so",
			"/usr/local/lib/libAquesTalk10.so",
			"/usr/lib/libAquesTalk10.so",
		},
		"darwin": {
			"downloads/aqtk10_mac/AquesTalk.framework/AquesTalk",
			"/Library/Frameworks/AquesTalk.framework/AquesTalk",
		},
	}
	kanji2KoeCandidates = map[string][]string{
		"linux": {
			"downloads/lib/libAqKanji2Koe.so",
			"lib/libAqKanji2Koe.so",
			"/usr/local/lib/libAqKanji2Koe.so",
			"/usr/lib/libAqKanji2Koe.so",
		},
		"darwin": {
			"downloads/aqk2k_mac/AqKanji2Koe.framework/AqKanji2Koe",
			"/Library/Frameworks/AqKanji2Koe.framework/AqKanji2Koe",
		},
	}
	dictionaryCandidates = []string{
		"aq_dic_large",
		"aq_dic",
		"downloads/aq_dic_large",
		"downloads/aq_dic",
		"/usr/local/share/aq_dic_large",
		"/usr/local/share/aq_dic",
	}
)

// DetectLibraries fills in empty paths from the AQTK_AQUESTALK_LIB and
// AQTK_KANJI2KOE_LIB environment variables, then from well-known install
// locations. Explicit paths must exist.
func DetectLibraries(paths LibraryPaths) (LibraryPaths, error) {
	aqtk, err := resolveFile(paths.AquesTalk, "AQTK_AQUESTALK_LIB", aquesTalkCandidates[runtime.GOOS])
	if err != nil {
		return paths, fmt.Errorf("AquesTalk library: %w", err)
	}
	k2k, err := resolveFile(paths.Kanji2Koe, "AQTK_KANJI2KOE_LIB", kanji2KoeCandidates[runtime.GOOS])
	if err != nil {
		return LibraryPaths{AquesTalk: aqtk, Kanji2Koe: paths.Kanji2Koe}, fmt.Errorf("AqKanji2Koe library: %w", err)
	}
	return LibraryPaths{AquesTalk: aqtk, Kanji2Koe: k2k}, nil
}

// DetectDictionary returns path when set, otherwise AQTK_DIC, otherwise the
// first existing candidate directory. The large dictionary is preferred.
func DetectDictionary(path string) (string, error) {
	return resolveFile(path, "AQTK_DIC", dictionaryCandidates)
}

func resolveFile(explicit, env string, candidates []string) (string, error) {
	path := explicit
	if path == "" {
		path = os.Getenv(env)
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return path, fmt.Errorf("path check failed: %w", err)
		}
		return path, nil
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			if abs, err := filepath.Abs(c); err == nil {
				return abs, nil
			}
			return c, nil
		}
	}

	return "", errors.New("not found; set " + env + " or configure the path explicitly")
}
