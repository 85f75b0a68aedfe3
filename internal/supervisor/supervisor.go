package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// State is the supervisor lifecycle phase.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Status is a point-in-time snapshot for reporting.
type Status struct {
	State     State
	PID       int
	StartedAt time.Time
	Endpoint  Endpoint
}

// Supervisor owns a single llama-server process.
type Supervisor struct {
	cfg        Config
	endpoint   Endpoint
	log        zerolog.Logger
	httpClient *http.Client

	// lifecycle serializes Start and Stop end to end; mu guards the
	// snapshot fields so Status stays responsive during long waits.
	lifecycle sync.Mutex
	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time

	waitCh     chan struct{} // closed when cmd.Wait returns
	waitErr    error         // valid once waitCh is closed
	stderrTail *tailBuffer
}

// New validates cfg and derives the endpoint. No process is spawned yet;
// configuration problems surface here, before anything runs.
func New(cfg Config) (*Supervisor, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.BinPath) == "" {
		return nil, ConfigError{Reason: "BinPath is empty"}
	}
	ep, err := endpointFromEnv(append(append([]string{}, cfg.Env...), cfg.ExtraEnv...))
	if err != nil {
		return nil, err
	}
	// Timeout stays 0 on purpose: every probe request carries its own
	// context deadline.
	return &Supervisor{
		cfg:        cfg,
		endpoint:   ep,
		log:        cfg.Logger,
		httpClient: &http.Client{Timeout: 0},
		state:      StateIdle,
	}, nil
}

// Endpoint returns where the supervised server listens.
func (s *Supervisor) Endpoint() Endpoint { return s.endpoint }

// Start spawns the server and, unless SkipReadyWait is set, blocks until
// its health endpoint answers 200. On any readiness failure the process is
// torn down before the error is returned, wrapped in StartupError.
func (s *Supervisor) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.cmd != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.mu.Unlock()

	cmd := exec.Command(s.cfg.BinPath)
	cmd.Env = append(append([]string{}, s.cfg.Env...), s.cfg.ExtraEnv...)
	cmd.Dir = s.cfg.Dir

	// A stderr tail is kept in both modes so exit errors carry context.
	tail := newTailBuffer(stderrTailCap)
	var stdoutRelay, stderrRelay *relayWriter
	if s.cfg.Verbose {
		stdoutRelay = &relayWriter{sink: newSink("stdout", s.log)}
		stderrRelay = &relayWriter{sink: newSink("stderr", s.log)}
		cmd.Stdout = stdoutRelay
		cmd.Stderr = io.MultiWriter(stderrRelay, tail)
	} else {
		cmd.Stderr = tail
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", filepath.Base(s.cfg.BinPath), err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.pid = cmd.Process.Pid
	s.startedAt = time.Now()
	s.state = StateStarting
	s.stderrTail = tail
	s.waitErr = nil
	s.waitCh = make(chan struct{})
	waitCh := s.waitCh
	s.mu.Unlock()

	// The one and only Wait on this process. Relay writers are flushed
	// here because Wait returns only after all output has been copied.
	go func() {
		err := cmd.Wait()
		stdoutRelay.close()
		stderrRelay.close()
		s.waitErr = err
		close(waitCh)
	}()

	s.log.Info().Int("pid", s.pid).Str("url", s.endpoint.BaseURL()).Msg("llama-server starting ...")
	s.publish("spawn_start", map[string]any{"pid": s.pid, "host": s.endpoint.Host, "port": s.endpoint.Port})
	startsTotal.Inc()

	if s.cfg.SkipReadyWait {
		s.setState(StateRunning)
		return nil
	}

	began := time.Now()
	if err := s.waitUntilReady(ctx); err != nil {
		startFailuresTotal.WithLabelValues(failureReason(err)).Inc()
		// Tear down before surfacing: a half-started server must not
		// outlive the Start call that owns it.
		s.teardown()
		return StartupError{Err: err}
	}
	readySeconds.Observe(time.Since(began).Seconds())
	s.setState(StateRunning)
	s.publish("ready", map[string]any{"pid": s.pid, "url": s.endpoint.BaseURL()})
	return nil
}

// Stop tears the process down: SIGTERM, a grace period, then SIGKILL. It
// is idempotent; stopping a never-started or already-exited supervisor is
// success, and afterwards the supervisor is idle again.
func (s *Supervisor) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.teardown()
	return nil
}

func (s *Supervisor) teardown() {
	s.mu.Lock()
	cmd := s.cmd
	waitCh := s.waitCh
	pid := s.pid
	if cmd == nil {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	s.mu.Unlock()

	select {
	case <-waitCh:
		// Already exited on its own; nothing to signal.
	default:
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-waitCh:
			s.log.Info().Int("pid", pid).Msg("llama-server stopped")
		case <-time.After(s.cfg.StopGrace):
			s.log.Info().Int("pid", pid).Msg("llama-server did not respond to SIGTERM, killing it ...")
			_ = cmd.Process.Kill()
			<-waitCh
			forcedKillsTotal.Inc()
			s.publish("forced_kill", map[string]any{"pid": pid})
		}
	}

	s.mu.Lock()
	s.cmd = nil
	s.pid = 0
	s.state = StateIdle
	s.mu.Unlock()
	stopsTotal.Inc()
	s.publish("stop", map[string]any{"pid": pid})
}

// Running reports whether the supervised process is alive and was declared
// ready (or the ready wait was skipped).
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning || s.waitCh == nil {
		return false
	}
	select {
	case <-s.waitCh:
		return false
	default:
		return true
	}
}

// Status returns a point-in-time snapshot.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{State: s.state, Endpoint: s.endpoint}
	if s.cmd != nil {
		st.PID = s.pid
		st.StartedAt = s.startedAt
	}
	return st
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Supervisor) publish(name string, fields map[string]any) {
	s.cfg.Publisher.Publish(Event{Name: name, Fields: fields})
}

// exitError builds the ProcessExitedError for a process whose waitCh has
// closed. Only meaningful after <-s.waitCh.
func (s *Supervisor) exitError() ProcessExitedError {
	code := 0
	if s.waitErr != nil {
		code = -1
		var ee *exec.ExitError
		if errors.As(s.waitErr, &ee) {
			code = ee.ExitCode()
		}
	}
	return ProcessExitedError{ExitCode: code, Stderr: s.stderrTail.String()}
}

func failureReason(err error) string {
	switch {
	case IsReadyTimeout(err):
		return "timeout"
	case IsProcessExited(err):
		return "exited"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

const stderrTailCap = 4096

// tailBuffer keeps the most recent bytes written to it. exec's copier and
// error-path readers touch it from different goroutines.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer { return &tailBuffer{max: max} }

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
