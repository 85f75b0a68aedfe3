package supervisor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// probeTarget wires a bare Supervisor at an httptest server, bypassing
// process spawning so the polling logic can be exercised alone.
func probeTarget(t *testing.T, handler http.Handler, cfg Config) (*Supervisor, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return &Supervisor{
		cfg:        cfg.withDefaults(),
		endpoint:   Endpoint{Host: host, Port: port},
		httpClient: &http.Client{},
		stderrTail: newTailBuffer(stderrTailCap),
		state:      StateStarting,
	}, srv
}

func TestCheckOnceClassifiesAnswers(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		body       string
		want       probeResult
		wantDetail string
	}{
		{"ready", http.StatusOK, `{"status":"ok"}`, probeReady, ""},
		{"loading with message", http.StatusServiceUnavailable,
			`{"error":{"code":503,"message":"Loading model","type":"unavailable_error"}}`,
			probeLoading, "Loading model"},
		{"loading malformed body", http.StatusServiceUnavailable, "not json", probeLoading, "Loading"},
		{"unexpected status", http.StatusInternalServerError, "oops", probeTransient, "HTTP 500: oops"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s, _ := probeTarget(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
				_, _ = w.Write([]byte(c.body))
			}), Config{})
			res, detail := s.checkOnce(context.Background())
			if res != c.want || detail != c.wantDetail {
				t.Fatalf("got (%s, %q), want (%s, %q)", res, detail, c.want, c.wantDetail)
			}
		})
	}
}

func TestCheckOnceConnectionRefused(t *testing.T) {
	s, srv := probeTarget(t, http.NotFoundHandler(), Config{})
	srv.Close()
	res, detail := s.checkOnce(context.Background())
	if res != probeTransient || detail == "" {
		t.Fatalf("got (%s, %q), want transient with detail", res, detail)
	}
}

func TestWaitUntilReadyImmediate(t *testing.T) {
	var polls atomic.Int64
	s, _ := probeTarget(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.WriteHeader(http.StatusOK)
	}), Config{ProbeInterval: 10 * time.Millisecond})
	if err := s.waitUntilReady(context.Background()); err != nil {
		t.Fatalf("waitUntilReady: %v", err)
	}
	if polls.Load() != 1 {
		t.Fatalf("expected a single poll, got %d", polls.Load())
	}
}

func TestWaitUntilReadyLoadingRestartsBudget(t *testing.T) {
	// Five loading answers spaced 30ms apart outlast a 120ms budget; the
	// wait only succeeds because every 503 restarts the clock.
	const loadingPolls = 5
	var polls atomic.Int64
	pub := NewMemoryPublisher()
	s, _ := probeTarget(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) <= loadingPolls {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"Loading model"}}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}), Config{
		StartupTimeout: 120 * time.Millisecond,
		ProbeInterval:  30 * time.Millisecond,
		Publisher:      pub,
	})
	if err := s.waitUntilReady(context.Background()); err != nil {
		t.Fatalf("waitUntilReady: %v", err)
	}
	if got := polls.Load(); got != loadingPolls+1 {
		t.Fatalf("expected %d polls, got %d", loadingPolls+1, got)
	}
	if got := pub.Count("loading"); got != 1 {
		t.Fatalf("loading published %d times, want once", got)
	}
}

func TestWaitUntilReadyTimesOut(t *testing.T) {
	pub := NewMemoryPublisher()
	s, srv := probeTarget(t, http.NotFoundHandler(), Config{
		StartupTimeout: 80 * time.Millisecond,
		ProbeInterval:  20 * time.Millisecond,
		Publisher:      pub,
	})
	srv.Close()
	err := s.waitUntilReady(context.Background())
	if !IsReadyTimeout(err) {
		t.Fatalf("expected ready timeout, got %v", err)
	}
	if got := pub.Count("spawn_timeout"); got != 1 {
		t.Fatalf("spawn_timeout published %d times, want once", got)
	}
}

func TestWaitUntilReadyFailsFastOnExit(t *testing.T) {
	// Even with a healthy endpoint answering, a dead process wins: the
	// exit check runs before every poll.
	pub := NewMemoryPublisher()
	s, _ := probeTarget(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), Config{Publisher: pub})
	s.waitCh = make(chan struct{})
	close(s.waitCh)
	if _, err := s.stderrTail.Write([]byte("model file not found\n")); err != nil {
		t.Fatalf("tail write: %v", err)
	}

	err := s.waitUntilReady(context.Background())
	var pe ProcessExitedError
	if !errors.As(err, &pe) {
		t.Fatalf("expected process exit error, got %v", err)
	}
	if pe.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0 for a clean exit", pe.ExitCode)
	}
	if pe.Stderr != "model file not found" {
		t.Fatalf("Stderr = %q", pe.Stderr)
	}
	if got := pub.Count("spawn_exit"); got != 1 {
		t.Fatalf("spawn_exit published %d times, want once", got)
	}
}

func TestWaitUntilReadyHonorsContext(t *testing.T) {
	s, _ := probeTarget(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}), Config{ProbeInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.waitUntilReady(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
