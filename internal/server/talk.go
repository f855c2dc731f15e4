package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/example/go-aquestalk/internal/aquestalk"
	"github.com/example/go-aquestalk/internal/tts"
)

const multipartMemory = 1 << 20

var errTextTooLarge = errors.New("text too large")

// handleTalk synthesizes POST /talk. Form fields (url-encoded, multipart or
// a JSON object) are text, native, type or voice, chunk and the seven voice
// parameters. Empty values and negative parameters are ignored.
func (h *Handler) handleTalk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.limiter != nil && !h.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	start := time.Now()
	req, err := h.parseTalk(w, r)
	if errors.Is(err, errTextTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return
	}

	var (
		wav      []byte
		cached   bool
		fallback bool
	)
	if err == nil {
		wav, cached, err = h.synthesize(r.Context(), req)
	}
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded)
		h.log.ErrorContext(r.Context(), "synthesis failed",
			slog.String("voice", req.Voice),
			slog.Int("text_len", len(req.Text)),
			slog.Bool("native", req.Native),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)

		if h.opts.fallbackText == "" || timedOut || errors.Is(err, context.Canceled) {
			h.writeTalkError(w, err)
			return
		}

		wav, cached, err = h.synthesize(r.Context(), tts.TalkRequest{Text: h.opts.fallbackText})
		if err != nil {
			h.log.ErrorContext(r.Context(), "fallback synthesis failed", slog.String("error", err.Error()))
			h.writeTalkError(w, err)
			return
		}
		fallback = true
	} else {
		h.log.InfoContext(r.Context(), "synthesis complete",
			slog.String("voice", req.Voice),
			slog.Int("text_len", len(req.Text)),
			slog.Bool("native", req.Native),
			slog.Bool("cached", cached),
			slog.Int64("duration_ms", durationMS),
			slog.Int("wav_bytes", len(wav)),
		)
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName(h.opts.now())+`"`)
	if fallback {
		w.Header().Set("X-Aqtk-Fallback", "1")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

func (h *Handler) writeTalkError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusGatewayTimeout, "synthesis timed out")
	case errors.Is(err, aquestalk.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// downloadName mirrors yukkuri-<UTC yyyymmddHHMMSSffffff>.wav.
func downloadName(t time.Time) string {
	stamp := strings.Replace(t.UTC().Format("20060102150405.000000"), ".", "", 1)
	return "yukkuri-" + stamp + ".wav"
}

// synthesize runs req on a worker slot. Identical concurrent requests share
// one synthesis and successful results are cached.
func (h *Handler) synthesize(ctx context.Context, req tts.TalkRequest) ([]byte, bool, error) {
	key := cacheKey(req)
	if h.cache != nil {
		if item := h.cache.Get(key); item != nil {
			return item.Value(), true, nil
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.opts.requestTimeout)
	defer cancel()

	ch := h.group.DoChan(key, func() (any, error) {
		// Shared by every waiter, so it must outlive the first caller.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.requestTimeout)
		defer cancel()

		if h.sem != nil {
			select {
			case h.sem <- struct{}{}:
			case <-runCtx.Done():
				return nil, runCtx.Err()
			}
			defer func() { <-h.sem }()
		}

		wav, err := h.synth.Talk(runCtx, req)
		if err != nil {
			return nil, err
		}
		if h.cache != nil {
			h.cache.Set(key, wav, ttlcache.DefaultTTL)
		}
		return wav, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]byte), false, nil
	case <-waitCtx.Done():
		return nil, false, waitCtx.Err()
	}
}

func cacheKey(req tts.TalkRequest) string {
	ov := aquestalk.NoOverrides()
	if req.Overrides != nil {
		ov = *req.Overrides
	}
	sum := sha256.New()
	fmt.Fprintf(sum, "%t\x00%s\x00%d,%d,%d,%d,%d,%d,%d\x00%t\x00%d\x00",
		req.Native, req.Voice,
		ov.Bas, ov.Spd, ov.Vol, ov.Pit, ov.Acc, ov.Lmd, ov.Fsc,
		req.Chunk, req.MaxChunkChars)
	sum.Write([]byte(req.Text))
	return hex.EncodeToString(sum.Sum(nil))
}

// parseTalk decodes the request body into a TalkRequest. Decoding errors
// wrap aquestalk.ErrInvalidArgument; oversized text yields errTextTooLarge.
func (h *Handler) parseTalk(w http.ResponseWriter, r *http.Request) (tts.TalkRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.opts.maxTextBytes)+multipartMemory)

	values, err := readFields(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return tts.TalkRequest{}, errTextTooLarge
		}
		return tts.TalkRequest{}, fmt.Errorf("%w: %w", aquestalk.ErrInvalidArgument, err)
	}

	req, err := talkRequestFromFields(values)
	if err != nil {
		return req, err
	}
	if len(req.Text) > h.opts.maxTextBytes {
		return req, errTextTooLarge
	}
	return req, nil
}

func readFields(r *http.Request) (map[string]string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("content type: %w", err)
	}

	values := make(map[string]string)
	switch strings.ToLower(mediaType) {
	case "application/json":
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		for k, v := range raw {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				values[k] = s
				continue
			}
			if string(v) == "null" {
				continue
			}
			values[k] = string(v)
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, err
		}
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				values[k] = v[0]
			}
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		for k, v := range r.PostForm {
			if len(v) > 0 {
				values[k] = v[0]
			}
		}
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}
	return values, nil
}

func talkRequestFromFields(values map[string]string) (tts.TalkRequest, error) {
	var req tts.TalkRequest

	text, ok := values["text"]
	if !ok {
		return req, fmt.Errorf("%w: text field is required", aquestalk.ErrInvalidArgument)
	}
	req.Text = text

	var err error
	if req.Native, err = parseFlag(values, "native"); err != nil {
		return req, err
	}
	if req.Chunk, err = parseFlag(values, "chunk"); err != nil {
		return req, err
	}

	req.Voice = values["voice"]
	if t := values["type"]; t != "" {
		req.Voice = t
	}

	ov := aquestalk.NoOverrides()
	touched := false
	for _, key := range aquestalk.OverrideKeys {
		raw := strings.TrimSpace(values[key])
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("%w: %s must be an integer, got %q", aquestalk.ErrInvalidArgument, key, raw)
		}
		// Negative keeps the preset value.
		if n < 0 {
			continue
		}
		if err := ov.Set(key, n); err != nil {
			return req, err
		}
		touched = true
	}
	if touched {
		req.Overrides = &ov
	}

	return req, nil
}

func parseFlag(values map[string]string, key string) (bool, error) {
	raw := strings.TrimSpace(values[key])
	if raw == "" {
		return false, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n != 0, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean, got %q", aquestalk.ErrInvalidArgument, key, raw)
	}
	return b, nil
}
