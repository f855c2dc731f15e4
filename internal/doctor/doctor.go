// Package doctor provides environment preflight checks for aqtk.
package doctor

import (
	"fmt"
	"io"
	"os"

	"github.com/example/go-aquestalk/internal/aquestalk"
	"github.com/example/go-aquestalk/internal/config"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
	NoteMark = "-"
)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Libraries resolves the two shared library paths.
	Libraries func() (aquestalk.LibraryPaths, error)
	// Dictionary resolves the AqKanji2Koe dictionary directory.
	Dictionary func() (string, error)
	// Licenses lists the configured keys. Missing keys are reported, not failed.
	Licenses []config.LicenseKey
	// VoiceManifest is validated when non-empty and present on disk.
	VoiceManifest string
	// LoadVoices parses a manifest and returns the number of custom voices.
	LoadVoices func(path string) (int, error)
	// Probe loads the libraries and synthesizes a short phrase.
	// Nil skips the live check.
	Probe func() (int, error)
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark, FailMark or NoteMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- shared libraries -------------------------------------------------
	libsOK := false
	if cfg.Libraries != nil {
		paths, err := cfg.Libraries()
		if err != nil {
			res.fail(fmt.Sprintf("libraries: %v", err))
			fmt.Fprintf(w, "%s libraries: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s AquesTalk library: %s\n", PassMark, paths.AquesTalk)
			fmt.Fprintf(w, "%s AqKanji2Koe library: %s\n", PassMark, paths.Kanji2Koe)
			libsOK = true
		}
	}

	// ---- dictionary -------------------------------------------------------
	dicOK := false
	if cfg.Dictionary != nil {
		dic, err := cfg.Dictionary()
		switch {
		case err != nil:
			res.fail(fmt.Sprintf("dictionary: %v", err))
			fmt.Fprintf(w, "%s dictionary: %v\n", FailMark, err)
		case !isDir(dic):
			res.fail(fmt.Sprintf("dictionary %q: not a directory", dic))
			fmt.Fprintf(w, "%s dictionary %s: not a directory\n", FailMark, dic)
		default:
			fmt.Fprintf(w, "%s dictionary: %s\n", PassMark, dic)
			dicOK = true
		}
	}

	// ---- license keys -----------------------------------------------------
	for _, k := range cfg.Licenses {
		if k.Key == "" {
			fmt.Fprintf(w, "%s license %s: not configured\n", NoteMark, k.Name)
			continue
		}
		fmt.Fprintf(w, "%s license %s: configured\n", PassMark, k.Name)
	}

	// ---- voice manifest ---------------------------------------------------
	if cfg.VoiceManifest != "" && cfg.LoadVoices != nil {
		if _, err := os.Stat(cfg.VoiceManifest); os.IsNotExist(err) {
			fmt.Fprintf(w, "%s voice manifest: skipped (no manifest at %s)\n", NoteMark, cfg.VoiceManifest)
		} else if n, err := cfg.LoadVoices(cfg.VoiceManifest); err != nil {
			res.fail(fmt.Sprintf("voice manifest %q: %v", cfg.VoiceManifest, err))
			fmt.Fprintf(w, "%s voice manifest %s: %v\n", FailMark, cfg.VoiceManifest, err)
		} else {
			fmt.Fprintf(w, "%s voice manifest: %s (%d voices)\n", PassMark, cfg.VoiceManifest, n)
		}
	}

	// ---- live synthesis ---------------------------------------------------
	switch {
	case cfg.Probe == nil:
	case !libsOK || !dicOK:
		fmt.Fprintf(w, "%s synthesis probe: skipped (libraries or dictionary unavailable)\n", NoteMark)
	default:
		n, err := cfg.Probe()
		if err != nil {
			res.fail(fmt.Sprintf("synthesis probe: %v", err))
			fmt.Fprintf(w, "%s synthesis probe: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s synthesis probe: %d bytes\n", PassMark, n)
		}
	}

	return res
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
