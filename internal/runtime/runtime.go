// Package runtime assembles what the daemon serves: one supervised
// llama-server, one upstream client, and admission control in front of the
// chat stream. It implements the surface the HTTP API binds to.
package runtime

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"llamad/internal/client"
	"llamad/internal/supervisor"
	"llamad/pkg/types"
)

const (
	defaultMaxConcurrent = 8
	defaultHealthTimeout = 2 * time.Second
)

// ProcessController is the supervisor-shaped dependency.
type ProcessController interface {
	Running() bool
	Status() supervisor.Status
}

// UpstreamClient is the client-shaped dependency.
type UpstreamClient interface {
	Stream(ctx context.Context, req client.StreamRequest, emit func(string) error) (client.StreamResult, error)
	CheckHealth(ctx context.Context) types.Health
	Props(ctx context.Context) (types.ServerProps, error)
}

// Config encapsulates Runtime construction.
type Config struct {
	Process  ProcessController
	Upstream UpstreamClient
	// MaxConcurrent bounds in-flight chat streams; beyond it requests are
	// rejected as too busy. Zero means 8.
	MaxConcurrent int
	// HealthTimeout bounds upstream health checks issued on behalf of
	// status and readiness reads. Zero means 2s.
	HealthTimeout time.Duration
	// Logger; the zero value is silent.
	Logger zerolog.Logger
}

// Runtime is safe for concurrent use.
type Runtime struct {
	proc          ProcessController
	upstream      UpstreamClient
	sem           chan struct{}
	healthTimeout time.Duration
	log           zerolog.Logger
}

func New(cfg Config) *Runtime {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	healthTimeout := cfg.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = defaultHealthTimeout
	}
	return &Runtime{
		proc:          cfg.Process,
		upstream:      cfg.Upstream,
		sem:           make(chan struct{}, maxConcurrent),
		healthTimeout: healthTimeout,
		log:           cfg.Logger,
	}
}

// Status snapshots the supervised process and its upstream health.
func (rt *Runtime) Status() types.StatusResponse {
	st := rt.proc.Status()
	resp := types.StatusResponse{
		State:          string(st.State),
		PID:            st.PID,
		Endpoint:       st.Endpoint.BaseURL(),
		ServerTimeUnix: time.Now().Unix(),
	}
	if !st.StartedAt.IsZero() {
		resp.UptimeSeconds = int64(time.Since(st.StartedAt).Seconds())
	}
	ctx, cancel := context.WithTimeout(context.Background(), rt.healthTimeout)
	defer cancel()
	resp.Upstream = rt.upstream.CheckHealth(ctx)
	return resp
}

// Health classifies the upstream server's readiness.
func (rt *Runtime) Health(ctx context.Context) types.Health {
	ctx, cancel := context.WithTimeout(ctx, rt.healthTimeout)
	defer cancel()
	return rt.upstream.CheckHealth(ctx)
}

// Props reports upstream capabilities.
func (rt *Runtime) Props(ctx context.Context) (types.ServerProps, error) {
	props, err := rt.upstream.Props(ctx)
	if err != nil {
		return types.ServerProps{}, UpstreamError{Cause: err}
	}
	return props, nil
}
