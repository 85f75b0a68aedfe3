package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggingLineWriterSplitsLines(t *testing.T) {
	var buf bytes.Buffer
	old := zlog
	SetLogger(zerolog.New(&buf))
	defer SetLogger(old)

	lw := &loggingLineWriter{}
	lw.Write([]byte(`{"token":"a"}` + "\n" + `{"to`))
	lw.Write([]byte(`ken":"b"}` + "\n"))

	out := buf.String()
	if got := strings.Count(out, "chat>"); got != 2 {
		t.Fatalf("logged %d lines, want 2: %s", got, out)
	}
	if !strings.Contains(out, `{\"token\":\"b\"}`) {
		t.Fatalf("second line not reassembled across writes: %s", out)
	}
}

func TestLoggingLineWriterSkipsEmptyLines(t *testing.T) {
	var buf bytes.Buffer
	old := zlog
	SetLogger(zerolog.New(&buf))
	defer SetLogger(old)

	lw := &loggingLineWriter{}
	lw.Write([]byte("\n\n"))

	if buf.Len() != 0 {
		t.Fatalf("blank lines should not be logged: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":        LevelOff,
		"off":     LevelOff,
		"error":   LevelError,
		"info":    LevelInfo,
		"debug":   LevelDebug,
		"bogus":   LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevelOverrides(t *testing.T) {
	base := httptest.NewRequest(http.MethodPost, "/chat", nil)
	if got := requestLogLevel(base); got != defaultLogLevel {
		t.Fatalf("no overrides: got %v, want default %v", got, defaultLogLevel)
	}

	q := httptest.NewRequest(http.MethodPost, "/chat?log=debug", nil)
	if got := requestLogLevel(q); got != LevelDebug {
		t.Fatalf("?log=debug: got %v", got)
	}

	q1 := httptest.NewRequest(http.MethodPost, "/chat?log=1", nil)
	if got := requestLogLevel(q1); got != LevelDebug {
		t.Fatalf("?log=1: got %v", got)
	}

	h := httptest.NewRequest(http.MethodPost, "/chat", nil)
	h.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(h); got != LevelError {
		t.Fatalf("X-Log-Level header: got %v", got)
	}

	// Query beats header.
	both := httptest.NewRequest(http.MethodPost, "/chat?log=off", nil)
	both.Header.Set("X-Log-Level", "debug")
	if got := requestLogLevel(both); got != LevelOff {
		t.Fatalf("query should win over header: got %v", got)
	}
}
