package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// probeResult classifies one readiness poll.
type probeResult int

const (
	probeReady probeResult = iota
	probeLoading
	probeTransient
)

func (r probeResult) String() string {
	switch r {
	case probeReady:
		return "ready"
	case probeLoading:
		return "loading"
	default:
		return "transient"
	}
}

// checkOnce performs a single health poll with its own timeout and returns
// the classification plus a human-readable detail.
func (s *Supervisor) checkOnce(ctx context.Context) (probeResult, string) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint.HealthURL(), nil)
	if err != nil {
		return probeTransient, err.Error()
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return probeTransient, err.Error()
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return probeReady, ""
	case http.StatusServiceUnavailable:
		return probeLoading, loadingMessage(resp.Body)
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return probeTransient, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}
}

// loadingMessage pulls error.message out of a 503 body, the shape llama
// servers use while a model loads.
func loadingMessage(r io.Reader) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err != nil || body.Error.Message == "" {
		return "Loading"
	}
	return body.Error.Message
}

// waitUntilReady polls the health endpoint until it answers 200, the
// process dies, or the budget runs out.
//
// The budget restarts whenever a 503 is observed: a loading answer proves
// the process is alive and making progress, so only silence and unexpected
// answers burn it. The loading transition is logged and published once per
// start, not once per poll.
func (s *Supervisor) waitUntilReady(ctx context.Context) error {
	deadline := time.Now().Add(s.cfg.StartupTimeout)
	loading := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// A dead process can never become ready; fail fast instead of
		// burning the rest of the budget on connection errors.
		select {
		case <-s.waitCh:
			err := s.exitError()
			s.log.Error().Err(err).Msg("llama-server exited before ready")
			s.publish("spawn_exit", map[string]any{"exit_code": err.ExitCode, "before_ready": true})
			return err
		default:
		}

		res, detail := s.checkOnce(ctx)
		probesTotal.WithLabelValues(res.String()).Inc()
		switch res {
		case probeReady:
			s.log.Info().Msg("llama-server is ready")
			return nil
		case probeLoading:
			deadline = time.Now().Add(s.cfg.StartupTimeout)
			if !loading {
				loading = true
				s.log.Info().Str("detail", detail).Msg("llama-server loading model")
				s.publish("loading", map[string]any{"detail": detail})
			}
		case probeTransient:
			s.log.Debug().Str("detail", detail).Msg("llama-server not answering yet")
		}

		if time.Now().After(deadline) {
			s.publish("spawn_timeout", map[string]any{"url": s.endpoint.HealthURL()})
			return ReadyTimeoutError{Timeout: s.cfg.StartupTimeout, URL: s.endpoint.HealthURL()}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.waitCh:
			// Loop back to the exit check.
		case <-time.After(s.cfg.ProbeInterval):
		}
	}
}
