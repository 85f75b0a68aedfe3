package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables understood by the daemon. TIMEOUT_WAIT_FOR_SERVER
// keeps the name llama tooling already uses; the rest live under the
// LLAMAD_ prefix.
const (
	EnvAddr           = "LLAMAD_ADDR"
	EnvBinDir         = "LLAMAD_BIN_DIR"
	EnvModel          = "LLAMAD_MODEL"
	EnvAPIKey         = "LLAMAD_API_KEY"
	EnvLogLevel       = "LLAMAD_LOG_LEVEL"
	EnvVerbose        = "LLAMAD_VERBOSE"
	EnvStartupTimeout = "TIMEOUT_WAIT_FOR_SERVER"
	EnvStopGrace      = "LLAMAD_STOP_GRACE_S"
	EnvMaxConcurrent  = "LLAMAD_MAX_CONCURRENT"
)

// ApplyEnv overlays environment overrides onto c. Set variables win over
// file values; unset ones leave c untouched.
func ApplyEnv(c Config) Config {
	c.Addr = envStr(EnvAddr, c.Addr)
	c.BinDir = envStr(EnvBinDir, c.BinDir)
	c.Model = envStr(EnvModel, c.Model)
	c.APIKey = envStr(EnvAPIKey, c.APIKey)
	c.LogLevel = envStr(EnvLogLevel, c.LogLevel)
	c.Verbose = envBool(EnvVerbose, c.Verbose)
	c.StartupTimeoutSec = envInt(EnvStartupTimeout, c.StartupTimeoutSec)
	c.StopGraceSec = envInt(EnvStopGrace, c.StopGraceSec)
	c.MaxConcurrent = envInt(EnvMaxConcurrent, c.MaxConcurrent)
	return c
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Prefixes of environment variables that configure llama-server itself.
var llamaEnvPrefixes = []string{"LLAMA_ARG_", "LLAMA_LOG_"}

// ScrubLlamaVars returns env without any llama-server configuration
// entries. Useful when a caller wants a child process free of stale model
// settings inherited from the shell.
func ScrubLlamaVars(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if hasLlamaPrefix(kv) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func hasLlamaPrefix(kv string) bool {
	for _, p := range llamaEnvPrefixes {
		if strings.HasPrefix(kv, p) {
			return true
		}
	}
	return false
}
