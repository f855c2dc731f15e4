package server_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/go-aquestalk/internal/server"
	"github.com/example/go-aquestalk/internal/tts"
)

// blockingSynthesizer blocks until its context is done or blocked is closed.
type blockingSynthesizer struct {
	blocked chan struct{}
}

func (b *blockingSynthesizer) Talk(ctx context.Context, _ tts.TalkRequest) ([]byte, error) {
	select {
	case <-b.blocked:
		return fakeWAV, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// countingSynthesizer runs hooks around every call.
type countingSynthesizer struct {
	onEnter func()
	onExit  func()
	calls   atomic.Int32
	wav     []byte
}

func (c *countingSynthesizer) Talk(_ context.Context, _ tts.TalkRequest) ([]byte, error) {
	c.calls.Add(1)
	if c.onEnter != nil {
		c.onEnter()
	}
	if c.onExit != nil {
		defer c.onExit()
	}
	return c.wav, nil
}

// ---------------------------------------------------------------------------
// Request validation and limits
// ---------------------------------------------------------------------------

func TestTalk_OversizedTextRejectedAs413(t *testing.T) {
	h := newTestHandler(t, &stubSynthesizer{wav: fakeWAV},
		server.WithMaxTextBytes(10),
		server.WithFallbackText("だめ"),
	)

	rec := postForm(h, url.Values{"text": {strings.Repeat("x", 11)}})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413, got %d", rec.Code)
	}

	if decodeError(t, rec) == "" {
		t.Error("want non-empty error field")
	}
}

func TestTalk_TextAtExactLimitIsAccepted(t *testing.T) {
	h := newTestHandler(t, &stubSynthesizer{wav: fakeWAV}, server.WithMaxTextBytes(6))

	// Two kana are six UTF-8 bytes.
	rec := postForm(h, url.Values{"text": {"ゆっ"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200 for exactly-limit text, got %d", rec.Code)
	}
}

func TestTalk_RequestTimeoutCancelsInFlight(t *testing.T) {
	synth := &blockingSynthesizer{blocked: make(chan struct{})}
	h := newTestHandler(t, synth,
		server.WithRequestTimeout(20*time.Millisecond),
		server.WithFallbackText("だめ"),
	)

	rec := postForm(h, url.Values{"text": {"a"}})

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("want 504 on timeout, got %d", rec.Code)
	}
	if decodeError(t, rec) == "" {
		t.Error("want non-empty error field")
	}
}

func TestTalk_RateLimited(t *testing.T) {
	h := newTestHandler(t, &stubSynthesizer{wav: fakeWAV}, server.WithRateLimit(0.001, 1))

	if rec := postForm(h, url.Values{"text": {"a"}}); rec.Code != http.StatusOK {
		t.Fatalf("first request: want 200, got %d", rec.Code)
	}
	if rec := postForm(h, url.Values{"text": {"b"}}); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: want 429, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Worker pool / concurrency throttling
// ---------------------------------------------------------------------------

func TestTalk_ConcurrencyThrottling(t *testing.T) {
	const workers = 2
	const totalRequests = 5

	var (
		mu         sync.Mutex
		peak       int
		current    int32
		releaseAll = make(chan struct{})
	)
	synth := &countingSynthesizer{
		onEnter: func() {
			n := int(atomic.AddInt32(&current, 1))

			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			<-releaseAll
		},
		onExit: func() { atomic.AddInt32(&current, -1) },
		wav:    fakeWAV,
	}

	h := newTestHandler(t, synth, server.WithWorkers(workers))

	var wg sync.WaitGroup

	codes := make([]int, totalRequests)
	for i := range totalRequests {
		wg.Add(1)

		go func(idx int) {
			defer wg.Done()

			// Distinct texts so requests are not collapsed.
			rec := postForm(h, url.Values{"text": {fmt.Sprintf("text %d", idx)}})
			codes[idx] = rec.Code
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(releaseAll)
	wg.Wait()

	mu.Lock()
	got := peak
	mu.Unlock()

	if got > workers {
		t.Errorf("peak concurrency %d exceeded worker limit %d", got, workers)
	}

	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("request %d: want 200, got %d", i, code)
		}
	}
}

func TestTalk_WaiterCancelledWhileThrottled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	h := newTestHandler(t, &blockingSynthesizer{blocked: release}, server.WithWorkers(1))

	// First request occupies the single worker slot.
	go func() {
		_ = postForm(h, url.Values{"text": {"first"}})
	}()

	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/talk", strings.NewReader("text=second"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = req.WithContext(ctx)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("want 504 for waiter cancelled while throttled, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Cache and request collapsing
// ---------------------------------------------------------------------------

func TestTalk_CacheServesRepeatedRequest(t *testing.T) {
	synth := &countingSynthesizer{wav: fakeWAV}
	h := newTestHandler(t, synth, server.WithCache(time.Minute, 8))

	for i := range 3 {
		if rec := postForm(h, url.Values{"text": {"同じ"}, "type": {"F2"}}); rec.Code != http.StatusOK {
			t.Fatalf("request %d: want 200, got %d", i, rec.Code)
		}
	}
	if rec := postForm(h, url.Values{"text": {"同じ"}, "type": {"M1"}}); rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	if n := synth.calls.Load(); n != 2 {
		t.Errorf("synth calls = %d; want 2 (one per distinct voice)", n)
	}
}

func TestTalk_CacheDisabled(t *testing.T) {
	synth := &countingSynthesizer{wav: fakeWAV}
	h := newTestHandler(t, synth, server.WithCache(0, 8))

	for range 2 {
		_ = postForm(h, url.Values{"text": {"同じ"}})
	}
	if n := synth.calls.Load(); n != 2 {
		t.Errorf("synth calls = %d; want 2", n)
	}
}

func TestTalk_IdenticalConcurrentRequestsCollapse(t *testing.T) {
	release := make(chan struct{})
	synth := &countingSynthesizer{
		onEnter: func() { <-release },
		wav:     fakeWAV,
	}
	h := newTestHandler(t, synth, server.WithWorkers(4))

	var wg sync.WaitGroup
	codes := make([]int, 4)
	for i := range codes {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			codes[idx] = postForm(h, url.Values{"text": {"same"}}).Code
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("request %d: want 200, got %d", i, code)
		}
	}
	if n := synth.calls.Load(); n != 1 {
		t.Errorf("synth calls = %d; want 1", n)
	}
}
