package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/example/go-aquestalk/internal/aquestalk"
	"github.com/example/go-aquestalk/internal/config"
	"github.com/example/go-aquestalk/internal/server"
	"github.com/example/go-aquestalk/internal/tts"
)

var (
	cfgFile   string
	activeCfg config.Config
	cfgLoaded bool
	logSink   io.Closer
)

// nativeLibrary is a loaded pair of vendor libraries.
type nativeLibrary interface {
	aquestalk.Native
	Close() error
}

// openService and openLibrary are replaced in tests.
var (
	openService = func(cfg config.Config) (*tts.Service, error) {
		return tts.Open(cfg, tts.WithLogger(slog.Default()))
	}
	openLibrary = func(cfg config.Config) (nativeLibrary, error) {
		paths, err := aquestalk.DetectLibraries(aquestalk.LibraryPaths{
			AquesTalk: cfg.Library.AquesTalkPath,
			Kanji2Koe: cfg.Library.Kanji2KoePath,
		})
		if err != nil {
			return nil, err
		}
		lib, err := aquestalk.Open(paths)
		if err != nil {
			return nil, err
		}
		return lib, nil
	}
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "aqtk",
		Short:         "AquesTalk speech synthesis command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			if err := loaded.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			activeCfg = loaded
			cfgLoaded = true
			setupLogger(loaded.LogLevel, loaded.LogFile)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newSynthCmd())
	cmd.AddCommand(newConvertCmd())
	cmd.AddCommand(newLicenseCmd())
	cmd.AddCommand(newVoicesCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger. When logFile
// is set, records are also appended to a size-rotated file.
func setupLogger(levelStr, logFile string) {
	lvl, err := server.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}

	_ = closeLogSink()

	var w io.Writer = os.Stderr
	if logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		logSink = rotator
		w = io.MultiWriter(os.Stderr, rotator)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func closeLogSink() error {
	if logSink == nil {
		return nil
	}
	err := logSink.Close()
	logSink = nil
	return err
}

func requireConfig() (config.Config, error) {
	if !cfgLoaded {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return activeCfg, nil
}
