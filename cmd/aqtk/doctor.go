package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-aquestalk/internal/aquestalk"
	"github.com/example/go-aquestalk/internal/config"
	"github.com/example/go-aquestalk/internal/doctor"
	"github.com/example/go-aquestalk/internal/tts"
)

const probeText = "テストです"

func newDoctorCmd() *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check libraries, dictionary, license keys and voices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			result := doctor.Run(doctorConfig(cmd.Context(), cfg, probe), out)

			if result.Failed() {
				for _, f := range result.Failures() {
					// #nosec G705 -- Writes plain diagnostic text to stderr for CLI output, not HTML rendering.
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "Load the libraries and synthesize a short phrase")

	return cmd
}

func doctorConfig(ctx context.Context, cfg config.Config, probe bool) doctor.Config {
	dcfg := doctor.Config{
		Libraries: func() (aquestalk.LibraryPaths, error) {
			return aquestalk.DetectLibraries(aquestalk.LibraryPaths{
				AquesTalk: cfg.Library.AquesTalkPath,
				Kanji2Koe: cfg.Library.Kanji2KoePath,
			})
		},
		Dictionary: func() (string, error) {
			return aquestalk.DetectDictionary(cfg.Dictionary.Path)
		},
		Licenses:      cfg.License.LicenseKeys(),
		VoiceManifest: cfg.Voices.ManifestPath,
		LoadVoices: func(path string) (int, error) {
			vm, err := tts.NewVoiceManager(path)
			if err != nil {
				return 0, err
			}
			return len(vm.ListVoices()) - aquestalk.NumVoiceTypes, nil
		},
	}
	if probe {
		dcfg.Probe = func() (int, error) {
			svc, err := openService(cfg)
			if err != nil {
				return 0, err
			}
			defer func() { _ = svc.Close() }()

			wav, err := svc.Talk(ctx, tts.TalkRequest{Text: probeText})
			return len(wav), err
		}
	}
	return dcfg
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
