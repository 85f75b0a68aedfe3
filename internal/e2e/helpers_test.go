package e2e

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"llamad/internal/client"
	"llamad/internal/httpapi"
	llamadruntime "llamad/internal/runtime"
	"llamad/internal/supervisor"
)

// buildFakeServer compiles the fake llama-server used by the supervisor
// tests and returns the binary path.
func buildFakeServer(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "fake-llama-server")
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}
	cmd := exec.Command("go", "build", "-o", bin, "../supervisor/testdata/fake_llama_server.go")
	cmd.Dir = "."
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build fake server: %v\n%s", err, out)
	}
	return bin
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func launchEnv(port int, extra ...string) []string {
	env := append(os.Environ(),
		"LLAMA_ARG_HOST=127.0.0.1",
		fmt.Sprintf("LLAMA_ARG_PORT=%d", port),
	)
	return append(env, extra...)
}

// newSupervisedServer spawns the fake upstream under a supervisor tuned for
// fast test polling.
func newSupervisedServer(t *testing.T, env []string) *supervisor.Supervisor {
	t.Helper()
	sup, err := supervisor.New(supervisor.Config{
		BinPath:        buildFakeServer(t),
		Env:            env,
		StartupTimeout: 10 * time.Second,
		ProbeInterval:  20 * time.Millisecond,
		StopGrace:      2 * time.Second,
	})
	if err != nil {
		t.Fatalf("supervisor.New: %v", err)
	}
	return sup
}

// newGateway stands up the full HTTP stack in front of sup.
func newGateway(t *testing.T, sup *supervisor.Supervisor, maxConcurrent int) *httptest.Server {
	t.Helper()
	upstream := client.New(client.Config{
		BaseURL: sup.Endpoint().BaseURL(),
		Model:   "fake",
	})
	rt := llamadruntime.New(llamadruntime.Config{
		Process:       sup,
		Upstream:      upstream,
		MaxConcurrent: maxConcurrent,
	})
	srv := httptest.NewServer(httpapi.NewMux(rt))
	t.Cleanup(srv.Close)
	return srv
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
