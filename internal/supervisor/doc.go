// Package supervisor owns the lifecycle of a single llama-server process:
// spawning, readiness, output relaying, and teardown. It is structured into
// small files by concern:
//
//   - config.go: Config, package defaults, and launch-environment checks.
//   - endpoint.go: Endpoint derived from LLAMA_ARG_HOST/LLAMA_ARG_PORT.
//   - supervisor.go: core Supervisor type, New/Start/Stop/Status.
//   - probe.go: readiness polling against GET /health.
//   - relay.go: byte-level stdout/stderr relaying with progress handling.
//   - events.go: lifecycle event publishing (plus an in-memory publisher
//     for tests in eventpub_memory.go).
//   - errors.go: error types and helpers (IsConfigError, IsStartupError, ...).
//   - metrics.go: Prometheus counters and histograms.
//
// A Supervisor owns at most one process at a time. Start spawns it and, by
// default, blocks until the server answers its health endpoint; Stop tears
// it down and is safe to call at any time, repeatedly. After Stop (or a
// failed Start, which tears down internally) the Supervisor is idle again
// and Start may be retried.
package supervisor
