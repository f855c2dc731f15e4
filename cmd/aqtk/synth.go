package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/example/go-aquestalk/internal/aquestalk"
	"github.com/example/go-aquestalk/internal/tts"
)

func newSynthCmd() *cobra.Command {
	var text string
	var out string
	var native bool
	var chunk bool
	var maxChunkChars int

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize text to WAV",
		Long: "Synthesize kanji-kana text (or koe with --native) to a WAV file.\n" +
			"The voice is chosen with the global --voice flag; --bas..--fsc override single parameters.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			inputText, err := readSynthText(text, cmd.InOrStdin())
			if err != nil {
				return err
			}

			overrides, err := overridesFromFlags(cmd.Flags())
			if err != nil {
				return err
			}

			svc, err := openService(cfg)
			if err != nil {
				return mapSynthError(err)
			}
			defer func() { _ = svc.Close() }()

			result, err := svc.Talk(cmd.Context(), tts.TalkRequest{
				Text:          inputText,
				Native:        native,
				Voice:         cfg.Voice.Type,
				Overrides:     overrides,
				Chunk:         chunk,
				MaxChunkChars: maxChunkChars,
			})
			if err != nil {
				return mapSynthError(err)
			}

			return writeSynthOutput(out, result, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to synthesize (if empty, read from stdin)")
	cmd.Flags().StringVar(&out, "out", "out.wav", "Output WAV path ('-' for stdout)")
	cmd.Flags().BoolVar(&native, "native", false, "Treat the input as koe (phonetic kana) and skip conversion")
	cmd.Flags().BoolVar(&chunk, "chunk", false, "Split text into sentence chunks and synthesize sequentially")
	cmd.Flags().IntVar(&maxChunkChars, "max-chunk-chars", tts.DefaultMaxChunkChars,
		"Maximum bytes per chunk when --chunk is enabled")
	for _, key := range aquestalk.OverrideKeys {
		cmd.Flags().Int(key, -1, "Override the voice's "+key+" parameter (negative keeps the preset)")
	}

	return cmd
}

// overridesFromFlags collects the parameter flags that were set explicitly.
// Negative values keep the preset. It returns nil when nothing overrides.
func overridesFromFlags(fs *pflag.FlagSet) (*aquestalk.Overrides, error) {
	ov := aquestalk.NoOverrides()
	touched := false
	for _, key := range aquestalk.OverrideKeys {
		if !fs.Changed(key) {
			continue
		}
		n, err := fs.GetInt(key)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			continue
		}
		if err := ov.Set(key, n); err != nil {
			return nil, err
		}
		touched = true
	}
	if !touched {
		return nil, nil
	}
	return &ov, nil
}

func writeSynthOutput(outPath string, wavData []byte, stdout io.Writer) error {
	if outPath == "-" {
		if stdout == nil {
			return errors.New("stdout writer is nil")
		}
		_, err := stdout.Write(wavData)
		return err
	}
	return os.WriteFile(outPath, wavData, 0o644)
}

func readSynthText(text string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := strings.TrimSpace(string(b))
	if input == "" {
		return "", errors.New("either provide --text or pipe text on stdin")
	}
	return input, nil
}

func mapSynthError(err error) error {
	if code, ok := aquestalk.NativeCode(err); ok {
		return fmt.Errorf("synth failed: native error code %d; check the koe string and license keys: %w", code, err)
	}
	if errors.Is(err, aquestalk.ErrInvalidArgument) {
		return fmt.Errorf("synth failed: %w", err)
	}
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("synth failed: AquesTalk files not found; set --aquestalk-lib, --kanji2koe-lib and --dic or run 'aqtk doctor': %w", err)
	}

	return err
}
