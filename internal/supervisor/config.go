package supervisor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultStartupTimeout = 300 * time.Second
	defaultProbeInterval  = 1 * time.Second
	defaultProbeTimeout   = 2 * time.Second
	defaultStopGrace      = 3 * time.Second
)

// Launch-environment variables the server reads its own listen address
// from. The supervisor reads the same ones so both sides agree.
const (
	envHost = "LLAMA_ARG_HOST"
	envPort = "LLAMA_ARG_PORT"
)

// Config encapsulates all tunables for Supervisor construction.
type Config struct {
	// BinPath is the resolved llama-server executable. Required.
	BinPath string
	// Env is the child launch environment; nil means the daemon's own.
	// LLAMA_ARG_HOST and LLAMA_ARG_PORT must be present; every other
	// LLAMA_ARG_* entry is the server's business and passes through
	// untouched.
	Env []string
	// ExtraEnv entries are appended to Env, e.g. a library path entry for
	// bundled shared objects.
	ExtraEnv []string
	// Dir is the child working directory; empty inherits the daemon's.
	Dir string
	// Verbose relays child stdout/stderr through the logger (or straight
	// to the terminal when one is attached).
	Verbose bool
	// SkipReadyWait makes Start return right after the spawn instead of
	// blocking until the health endpoint answers.
	SkipReadyWait bool
	// StartupTimeout bounds the readiness wait. Time spent loading a
	// model (503) does not count against it.
	StartupTimeout time.Duration
	// ProbeInterval is the pause between readiness polls.
	ProbeInterval time.Duration
	// ProbeTimeout bounds each individual poll request.
	ProbeTimeout time.Duration
	// StopGrace is how long Stop waits between SIGTERM and SIGKILL.
	StopGrace time.Duration
	// Logger receives supervisor and relayed child logs. The zero value
	// is silent.
	Logger zerolog.Logger
	// Publisher receives lifecycle events; nil drops them.
	Publisher Publisher
}

func (c Config) withDefaults() Config {
	if c.Env == nil {
		c.Env = os.Environ()
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = defaultStartupTimeout
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = defaultProbeInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.StopGrace <= 0 {
		c.StopGrace = defaultStopGrace
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	return c
}

// EndpointFromEnv extracts the llama-server endpoint from env ("KEY=VALUE"
// entries); nil means the current process environment. Lets callers reach a
// server this process did not spawn.
func EndpointFromEnv(env []string) (Endpoint, error) {
	if env == nil {
		env = os.Environ()
	}
	return endpointFromEnv(env)
}

// endpointFromEnv extracts the address the child will bind from its launch
// environment. Both variables are required: guessing an endpoint would have
// the supervisor probing one port while the server listens on another.
func endpointFromEnv(env []string) (Endpoint, error) {
	host := lookupEnv(env, envHost)
	portStr := lookupEnv(env, envPort)
	if host == "" || portStr == "" {
		return Endpoint{}, ConfigError{Reason: fmt.Sprintf(
			"%s and %s must be set in the launch environment, got %s=%q %s=%q",
			envHost, envPort, envHost, host, envPort, portStr)}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Endpoint{}, ConfigError{Reason: fmt.Sprintf("%s=%q is not a valid port", envPort, portStr)}
	}
	return Endpoint{Host: host, Port: port}, nil
}

// lookupEnv returns the value of key in env ("KEY=VALUE" entries). The last
// occurrence wins, matching what the child process itself will see.
func lookupEnv(env []string, key string) string {
	prefix := key + "="
	val := ""
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			val = kv[len(prefix):]
		}
	}
	return val
}
