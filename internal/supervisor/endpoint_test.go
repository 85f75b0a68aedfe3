package supervisor

import "testing"

func TestDialHostRewritesWildcards(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"0.0.0.0", "127.0.0.1"},
		{"::", "127.0.0.1"},
		{"[::]", "127.0.0.1"},
		{"127.0.0.1", "127.0.0.1"},
		{"192.168.1.5", "192.168.1.5"},
		{"llama.internal", "llama.internal"},
	}
	for _, c := range cases {
		if got := (Endpoint{Host: c.host, Port: 8080}).dialHost(); got != c.want {
			t.Errorf("dialHost(%q) = %q, want %q", c.host, got, c.want)
		}
	}
}

func TestEndpointURLs(t *testing.T) {
	e := Endpoint{Host: "0.0.0.0", Port: 8080}
	if got := e.BaseURL(); got != "http://127.0.0.1:8080" {
		t.Fatalf("BaseURL = %q", got)
	}
	if got := e.HealthURL(); got != "http://127.0.0.1:8080/health" {
		t.Fatalf("HealthURL = %q", got)
	}
	if got := e.ChatCompletionsURL(); got != "http://127.0.0.1:8080/v1/chat/completions" {
		t.Fatalf("ChatCompletionsURL = %q", got)
	}
	if got := e.PropsURL(); got != "http://127.0.0.1:8080/props" {
		t.Fatalf("PropsURL = %q", got)
	}
}

func TestEndpointIPv6HostIsBracketed(t *testing.T) {
	e := Endpoint{Host: "fe80::1", Port: 9000}
	if got := e.BaseURL(); got != "http://[fe80::1]:9000" {
		t.Fatalf("BaseURL = %q", got)
	}
}
