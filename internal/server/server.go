package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/example/go-aquestalk/internal/config"
	"github.com/example/go-aquestalk/internal/tts"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Synthesizer produces WAV bytes for a talk request.
type Synthesizer interface {
	Talk(ctx context.Context, req tts.TalkRequest) ([]byte, error)
}

// VoiceLister returns the list of available voices.
type VoiceLister interface {
	Voices() []tts.Voice
}

// LicenseReporter reports which license keys are configured.
type LicenseReporter interface {
	LicenseStatus() map[string]bool
}

// Backend is everything the server needs from the speech service.
type Backend interface {
	Synthesizer
	VoiceLister
	LicenseReporter
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
	licenses       LicenseReporter
	fallbackText   string
	documentRoot   string
	rateLimit      rate.Limit
	rateBurst      int
	cacheTTL       time.Duration
	cacheSize      int
	now            func() time.Time
}

func defaultOptions() options {
	return options{
		maxTextBytes:   4096,
		workers:        2,
		requestTimeout: 60 * time.Second,
		logger:         slog.Default(),
		now:            time.Now,
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for POST /talk.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent synthesis calls.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request synthesis deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLicenses enables GET /check_licenses.
func WithLicenses(l LicenseReporter) Option {
	return func(o *options) { o.licenses = l }
}

// WithFallbackText sets the phrase spoken instead of input that cannot be
// synthesized. Empty disables the fallback and failures become JSON errors.
func WithFallbackText(s string) Option {
	return func(o *options) { o.fallbackText = s }
}

// WithDocumentRoot serves static files for unmatched GET requests.
func WithDocumentRoot(dir string) Option {
	return func(o *options) { o.documentRoot = dir }
}

// WithRateLimit limits POST /talk to perSecond requests with the given
// burst. A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *options) {
		o.rateLimit = rate.Limit(perSecond)
		o.rateBurst = burst
	}
}

// WithCache keeps synthesized WAVs for ttl, bounded to size entries.
// A non-positive ttl disables caching.
func WithCache(ttl time.Duration, size int) Option {
	return func(o *options) {
		o.cacheTTL = ttl
		o.cacheSize = size
	}
}

// WithClock overrides the clock used for download file names.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

// Handler serves /health, /voices, /check_licenses, POST /talk and static
// files from the document root.
type Handler struct {
	synth   Synthesizer
	voices  VoiceLister
	opts    options
	sem     chan struct{} // semaphore for worker pool
	log     *slog.Logger
	limiter *rate.Limiter
	cache   *ttlcache.Cache[string, []byte]
	group   singleflight.Group
	mux     *http.ServeMux

	closeOnce sync.Once
}

// NewHandler builds a Handler. Call Close to stop the cache janitor.
func NewHandler(synth Synthesizer, voices VoiceLister, optFns ...Option) *Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &Handler{
		synth:  synth,
		voices: voices,
		opts:   opts,
		log:    opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}
	if opts.rateLimit > 0 {
		h.limiter = rate.NewLimiter(opts.rateLimit, max(opts.rateBurst, 1))
	}
	if opts.cacheTTL > 0 {
		cacheOpts := []ttlcache.Option[string, []byte]{
			ttlcache.WithTTL[string, []byte](opts.cacheTTL),
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		}
		if opts.cacheSize > 0 {
			cacheOpts = append(cacheOpts, ttlcache.WithCapacity[string, []byte](uint64(opts.cacheSize)))
		}
		h.cache = ttlcache.New[string, []byte](cacheOpts...)
		go h.cache.Start()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/voices", h.handleVoices)
	mux.HandleFunc("/check_licenses", h.handleCheckLicenses)
	mux.HandleFunc("/talk", h.handleTalk)
	mux.Handle("/", h.staticHandler())
	h.mux = mux

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Close stops background cache expiry. It is safe to call more than once.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		if h.cache != nil {
			h.cache.Stop()
		}
	})
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

func (h *Handler) handleVoices(w http.ResponseWriter, _ *http.Request) {
	voices := h.voices.Voices()
	if voices == nil {
		voices = []tts.Voice{}
	}
	writeJSON(w, http.StatusOK, voices)
}

func (h *Handler) handleCheckLicenses(w http.ResponseWriter, _ *http.Request) {
	status := map[string]bool{"usr_key": false, "dev_key": false, "k2k_key": false}
	if h.opts.licenses != nil {
		for k, v := range h.opts.licenses.LicenseStatus() {
			status[k] = v
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) staticHandler() http.Handler {
	root := h.opts.documentRoot
	if root != "" {
		if fi, err := os.Stat(root); err == nil && fi.IsDir() {
			return http.FileServer(http.Dir(root))
		}
		h.log.Debug("document root not found; static files disabled", slog.String("path", root))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server — wires handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	backend         Backend
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// New returns a Server over backend. A nil backend is opened from cfg when
// the server starts and closed when it stops.
func New(cfg config.Config, backend Backend) *Server {
	return &Server{
		cfg:             cfg,
		backend:         backend,
		shutdownTimeout: time.Duration(cfg.Server.ShutdownTimeout) * time.Second,
		logger:          slog.Default(),
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the logger passed to the handler.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

// HandlerOptions translates cfg into handler options.
func HandlerOptions(cfg config.Config) []Option {
	return []Option{
		WithWorkers(cfg.Server.Workers),
		WithMaxTextBytes(cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(cfg.Server.RequestTimeout) * time.Second),
		WithFallbackText(cfg.Server.FallbackText),
		WithDocumentRoot(cfg.Server.DocumentRoot),
		WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
		WithCache(time.Duration(cfg.Server.CacheTTL)*time.Second, cfg.Server.CacheSize),
	}
}

func (s *Server) Start(ctx context.Context) error {
	backend := s.backend
	if backend == nil {
		svc, err := tts.Open(s.cfg, tts.WithLogger(s.logger))
		if err != nil {
			return fmt.Errorf("initialize tts service: %w", err)
		}
		defer func() { _ = svc.Close() }()
		backend = svc
	}

	handlerOpts := append(HandlerOptions(s.cfg),
		WithLicenses(backend),
		WithLogger(s.logger),
	)

	h := NewHandler(backend, backend, handlerOpts...)
	defer h.Close()

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("listening", slog.String("addr", s.cfg.Server.ListenAddr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

// Health is the body of GET /health.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ProbeHTTP checks that the server at addr answers /health with 200.
func ProbeHTTP(addr string) error {
	_, err := FetchHealth(addr)
	return err
}

// FetchHealth queries /health on the server at addr.
func FetchHealth(addr string) (Health, error) {
	var h Health
	if err := getJSON(addr, "/health", &h); err != nil {
		return Health{}, err
	}
	if h.Status != "ok" {
		return h, fmt.Errorf("unexpected health status: %q", h.Status)
	}
	return h, nil
}

// FetchLicenses queries /check_licenses on the server at addr.
func FetchLicenses(addr string) (map[string]bool, error) {
	var status map[string]bool
	if err := getJSON(addr, "/check_licenses", &status); err != nil {
		return nil, err
	}
	return status, nil
}

func getJSON(addr, path string, v any) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + path) //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status: %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}
