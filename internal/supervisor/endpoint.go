package supervisor

import (
	"net"
	"strconv"
)

// Endpoint is where the supervised server listens. It is derived once from
// the launch environment and immutable afterwards.
type Endpoint struct {
	Host string
	Port int
}

// dialHost returns the host to connect to. A wildcard bind address is not
// dialable, so it maps to loopback.
func (e Endpoint) dialHost() string {
	switch e.Host {
	case "0.0.0.0", "::", "[::]":
		return "127.0.0.1"
	}
	return e.Host
}

// BaseURL is the root URL clients talk to.
func (e Endpoint) BaseURL() string {
	return "http://" + net.JoinHostPort(e.dialHost(), strconv.Itoa(e.Port))
}

// HealthURL is polled for readiness.
func (e Endpoint) HealthURL() string { return e.BaseURL() + "/health" }

// ChatCompletionsURL is the OpenAI-compatible streaming endpoint.
func (e Endpoint) ChatCompletionsURL() string { return e.BaseURL() + "/v1/chat/completions" }

// PropsURL reports server capabilities such as supported modalities.
func (e Endpoint) PropsURL() string { return e.BaseURL() + "/props" }
