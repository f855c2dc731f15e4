package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Library    LibraryConfig    `mapstructure:"library"`
	Dictionary DictionaryConfig `mapstructure:"dictionary"`
	License    LicenseConfig    `mapstructure:"license"`
	Voice      VoiceConfig      `mapstructure:"voice"`
	Convert    ConvertConfig    `mapstructure:"convert"`
	Server     ServerConfig     `mapstructure:"server"`
	Voices     VoicesConfig     `mapstructure:"voices"`
	LogLevel   string           `mapstructure:"log_level"`
	LogFile    string           `mapstructure:"log_file"`
}

// LibraryConfig holds explicit shared-library paths. Empty values are
// auto-detected at open time.
type LibraryConfig struct {
	AquesTalkPath string `mapstructure:"aquestalk_path"`
	Kanji2KoePath string `mapstructure:"kanji2koe_path"`
}

type DictionaryConfig struct {
	Path string `mapstructure:"path"`
}

type LicenseConfig struct {
	DevKey string `mapstructure:"dev_key"`
	UsrKey string `mapstructure:"usr_key"`
	K2KKey string `mapstructure:"k2k_key"`
}

type VoiceConfig struct {
	Type string `mapstructure:"type"`
}

// ConvertConfig sizes the kanji conversion scratch buffer as
// BufferFactor*len(input)+BufferMargin bytes.
type ConvertConfig struct {
	BufferFactor int `mapstructure:"buffer_factor"`
	BufferMargin int `mapstructure:"buffer_margin"`
}

type ServerConfig struct {
	ListenAddr      string  `mapstructure:"listen_addr"`
	DocumentRoot    string  `mapstructure:"document_root"`
	Workers         int     `mapstructure:"workers"`
	MaxTextBytes    int     `mapstructure:"max_text_bytes"`
	RequestTimeout  int     `mapstructure:"request_timeout"`
	ShutdownTimeout int     `mapstructure:"shutdown_timeout"`
	RateLimit       float64 `mapstructure:"rate_limit"`
	RateBurst       int     `mapstructure:"rate_burst"`
	CacheTTL        int     `mapstructure:"cache_ttl"`
	CacheSize       int     `mapstructure:"cache_size"`
	FallbackText    string  `mapstructure:"fallback_text"`
}

type VoicesConfig struct {
	ManifestPath string `mapstructure:"manifest_path"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// DefaultFallbackText is spoken in place of input the synthesizer rejects.
const DefaultFallbackText = "このぶんしょうは、しゃべれません"

func DefaultConfig() Config {
	return Config{
		Voice: VoiceConfig{
			Type: "F1",
		},
		Convert: ConvertConfig{
			BufferFactor: 4,
			BufferMargin: 16,
		},
		Server: ServerConfig{
			ListenAddr:      "127.0.0.1:8080",
			DocumentRoot:    "root",
			Workers:         2,
			MaxTextBytes:    4096,
			RequestTimeout:  60,
			ShutdownTimeout: 30,
			RateLimit:       0,
			RateBurst:       4,
			CacheTTL:        300,
			CacheSize:       256,
			FallbackText:    DefaultFallbackText,
		},
		Voices: VoicesConfig{
			ManifestPath: "voices/manifest.json",
		},
		LogLevel: "info",
	}
}

// flagKeys maps every registered flag to the config key it sets.
var flagKeys = map[string]string{
	"aquestalk-lib":    "library.aquestalk_path",
	"kanji2koe-lib":    "library.kanji2koe_path",
	"dic":              "dictionary.path",
	"dev-key":          "license.dev_key",
	"usr-key":          "license.usr_key",
	"k2k-key":          "license.k2k_key",
	"voice":            "voice.type",
	"buffer-factor":    "convert.buffer_factor",
	"buffer-margin":    "convert.buffer_margin",
	"listen-addr":      "server.listen_addr",
	"document-root":    "server.document_root",
	"workers":          "server.workers",
	"max-text-bytes":   "server.max_text_bytes",
	"request-timeout":  "server.request_timeout",
	"shutdown-timeout": "server.shutdown_timeout",
	"rate-limit":       "server.rate_limit",
	"rate-burst":       "server.rate_burst",
	"cache-ttl":        "server.cache_ttl",
	"cache-size":       "server.cache_size",
	"fallback-text":    "server.fallback_text",
	"voices-manifest":  "voices.manifest_path",
	"log-level":        "log_level",
	"log-file":         "log_file",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("aquestalk-lib", defaults.Library.AquesTalkPath, "Path to libAquesTalk10 shared library")
	fs.String("kanji2koe-lib", defaults.Library.Kanji2KoePath, "Path to libAqKanji2Koe shared library")
	fs.String("dic", defaults.Dictionary.Path, "Path to the AqKanji2Koe dictionary directory")
	fs.String("dev-key", defaults.License.DevKey, "AquesTalk developer license key")
	fs.String("usr-key", defaults.License.UsrKey, "AquesTalk user license key")
	fs.String("k2k-key", defaults.License.K2KKey, "AqKanji2Koe developer license key")
	fs.String("voice", defaults.Voice.Type, "Default voice (F1|F2|F3|M1|M2|R1|R2 or a manifest id)")
	fs.Int("buffer-factor", defaults.Convert.BufferFactor, "Conversion buffer bytes per input byte")
	fs.Int("buffer-margin", defaults.Convert.BufferMargin, "Conversion buffer extra bytes")
	fs.String("listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.String("document-root", defaults.Server.DocumentRoot, "Directory served for GET requests")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent synthesis requests")
	fs.Int("max-text-bytes", defaults.Server.MaxTextBytes, "Max text size accepted by /talk")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "Per-request synthesis timeout in seconds")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.Float64("rate-limit", defaults.Server.RateLimit, "Requests per second accepted by /talk (0 disables)")
	fs.Int("rate-burst", defaults.Server.RateBurst, "Rate limiter burst size")
	fs.Int("cache-ttl", defaults.Server.CacheTTL, "Seconds a synthesized response stays cached (0 disables)")
	fs.Int("cache-size", defaults.Server.CacheSize, "Max cached responses")
	fs.String("fallback-text", defaults.Server.FallbackText, "Phrase spoken when the input cannot be synthesized (empty disables)")
	fs.String("voices-manifest", defaults.Voices.ManifestPath, "Path to the custom voice manifest")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("log-file", defaults.LogFile, "Also write logs to this file (rotated)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("AQTK")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := bindEnvAliases(v); err != nil {
		return Config{}, err
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("aqtk")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Validate rejects settings that cannot produce a working service.
func (c Config) Validate() error {
	var errs []error
	if c.Convert.BufferFactor < 1 {
		errs = append(errs, fmt.Errorf("convert.buffer_factor must be >= 1, got %d", c.Convert.BufferFactor))
	}
	if c.Convert.BufferMargin < 1 {
		errs = append(errs, fmt.Errorf("convert.buffer_margin must be >= 1, got %d", c.Convert.BufferMargin))
	}
	if c.Server.Workers < 1 {
		errs = append(errs, fmt.Errorf("server.workers must be >= 1, got %d", c.Server.Workers))
	}
	if c.Server.MaxTextBytes < 1 {
		errs = append(errs, fmt.Errorf("server.max_text_bytes must be >= 1, got %d", c.Server.MaxTextBytes))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must be >= 0, got %g", c.Server.RateLimit))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("server.rate_burst must be >= 1 when rate limiting, got %d", c.Server.RateBurst))
	}
	if c.Server.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("server.cache_ttl must be >= 0, got %d", c.Server.CacheTTL))
	}
	return errors.Join(errs...)
}

// LicenseKeys returns the configured keys in registration order: the
// AquesTalk user key, the AquesTalk developer key, then the AqKanji2Koe key.
func (c LicenseConfig) LicenseKeys() []LicenseKey {
	return []LicenseKey{
		{Name: "usr_key", Key: c.UsrKey},
		{Name: "dev_key", Key: c.DevKey},
		{Name: "k2k_key", Key: c.K2KKey},
	}
}

type LicenseKey struct {
	Name string
	Key  string
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("library.aquestalk_path", c.Library.AquesTalkPath)
	v.SetDefault("library.kanji2koe_path", c.Library.Kanji2KoePath)
	v.SetDefault("dictionary.path", c.Dictionary.Path)
	v.SetDefault("license.dev_key", c.License.DevKey)
	v.SetDefault("license.usr_key", c.License.UsrKey)
	v.SetDefault("license.k2k_key", c.License.K2KKey)
	v.SetDefault("voice.type", c.Voice.Type)
	v.SetDefault("convert.buffer_factor", c.Convert.BufferFactor)
	v.SetDefault("convert.buffer_margin", c.Convert.BufferMargin)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.document_root", c.Server.DocumentRoot)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.rate_limit", c.Server.RateLimit)
	v.SetDefault("server.rate_burst", c.Server.RateBurst)
	v.SetDefault("server.cache_ttl", c.Server.CacheTTL)
	v.SetDefault("server.cache_size", c.Server.CacheSize)
	v.SetDefault("server.fallback_text", c.Server.FallbackText)
	v.SetDefault("voices.manifest_path", c.Voices.ManifestPath)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("log_file", c.LogFile)
}

// bindFlags binds each known flag directly to its nested key so that values
// from a config file still win over flag defaults.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

func bindEnvAliases(v *viper.Viper) error {
	aliases := map[string][]string{
		"library.aquestalk_path": {"AQTK_LIBRARY_AQUESTALK_PATH", "AQTK_AQUESTALK_LIB"},
		"library.kanji2koe_path": {"AQTK_LIBRARY_KANJI2KOE_PATH", "AQTK_KANJI2KOE_LIB"},
		"dictionary.path":        {"AQTK_DICTIONARY_PATH", "AQTK_DIC"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s env vars: %w", key, err)
		}
	}
	return nil
}
