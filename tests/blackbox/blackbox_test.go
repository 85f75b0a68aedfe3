package blackbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	bbDir := filepath.Dir(thisFile)
	return filepath.Dir(filepath.Dir(bbDir))
}

func exeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// buildBinaries compiles the llamad binary and a fake llama-server, the
// latter named so --bin-dir resolution finds it.
func buildBinaries(t *testing.T) (llamadBin, fakeBinDir string) {
	t.Helper()
	root := projectRootFromThisFile(t)
	outDir := t.TempDir()
	llamadBin = filepath.Join(outDir, exeName("llamad"))

	cmd := exec.Command("go", "build", "-o", llamadBin, "./cmd/llamad")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("go build llamad: %v\n%s", err, out)
	}

	fakeBinDir = t.TempDir()
	fakeBin := filepath.Join(fakeBinDir, exeName("llama-server"))
	cmd = exec.Command("go", "build", "-o", fakeBin, "./internal/supervisor/testdata/fake_llama_server.go")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("go build fake server: %v\n%s", err, out)
	}
	return llamadBin, fakeBinDir
}

type daemonProc struct {
	cmd      *exec.Cmd
	base     string // gateway base URL
	upstream int    // fake server port
	waited   chan error
}

func startDaemon(t *testing.T, llamadBin, fakeBinDir string) *daemonProc {
	t.Helper()
	gwPort := findFreePort(t)
	upPort := findFreePort(t)

	cmd := exec.Command(llamadBin, "serve",
		"--addr", fmt.Sprintf("127.0.0.1:%d", gwPort),
		"--bin-dir", fakeBinDir,
	)
	cmd.Env = append(os.Environ(),
		"LLAMA_ARG_HOST=127.0.0.1",
		fmt.Sprintf("LLAMA_ARG_PORT=%d", upPort),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start llamad: %v", err)
	}
	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()

	dp := &daemonProc{
		cmd:      cmd,
		base:     fmt.Sprintf("http://127.0.0.1:%d", gwPort),
		upstream: upPort,
		waited:   waited,
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		select {
		case <-waited:
		case <-time.After(5 * time.Second):
		}
	})

	// The gateway must answer liveness quickly, even while the model loads.
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(dp.base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return dp
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("gateway did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func waitReady(t *testing.T, base string) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for {
		resp, _ := get(t, base+"/readyz")
		if resp.StatusCode == http.StatusOK {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("/readyz did not become ready in time; last=%d", resp.StatusCode)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestBlackboxFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and spawns binaries")
	}
	llamadBin, fakeBinDir := buildBinaries(t)
	dp := startDaemon(t, llamadBin, fakeBinDir)

	waitReady(t, dp.base)

	// Mediated chat streams NDJSON.
	resp, body := postJSON(t, dp.base+"/chat", []byte(`{"prompt":"hello"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/chat %d %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/x-ndjson") {
		t.Fatalf("/chat content-type=%s", ct)
	}
	var sawDone bool
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("stream line %q: %v", line, err)
		}
		if done, _ := m["done"].(bool); done {
			sawDone = true
			if c, _ := m["content"].(string); c != "Hello from fake" {
				t.Fatalf("final content = %q", c)
			}
			if id, _ := m["id"].(string); !strings.HasPrefix(id, "chat-") {
				t.Fatalf("final id = %q", id)
			}
		}
	}
	if !sawDone {
		t.Fatalf("no terminal line in stream: %s", body)
	}

	// Status reflects the supervised process.
	resp, body = get(t, dp.base+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, body)
	}
	var st struct {
		State string `json:"state"`
		PID   int    `json:"pid"`
	}
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("/status json: %v body=%s", err, body)
	}
	if st.State != "running" || st.PID <= 0 {
		t.Fatalf("/status = %+v, want running with a pid", st)
	}

	// Metrics are exported.
	resp, body = get(t, dp.base+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics %d", resp.StatusCode)
	}
	if !bytes.Contains(body, []byte("llamad_supervisor_starts_total")) {
		t.Fatal("supervisor metrics missing from /metrics")
	}

	// SIGTERM drains and exits cleanly.
	if err := dp.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal: %v", err)
	}
	select {
	case err := <-dp.waited:
		if err != nil {
			t.Fatalf("llamad exited with error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("llamad did not exit after SIGTERM")
	}
}

func TestBlackboxChatCLI(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and spawns binaries")
	}
	llamadBin, fakeBinDir := buildBinaries(t)
	dp := startDaemon(t, llamadBin, fakeBinDir)
	waitReady(t, dp.base)

	// One-shot CLI chat attached to the already-running upstream.
	cmd := exec.Command(llamadBin, "chat", "--attach", "hi")
	cmd.Env = append(os.Environ(),
		"LLAMA_ARG_HOST=127.0.0.1",
		fmt.Sprintf("LLAMA_ARG_PORT=%d", dp.upstream),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("llamad chat: %v\nstderr: %s", err, stderr.String())
	}
	if got := strings.TrimSpace(stdout.String()); got != "Hello from fake" {
		t.Fatalf("chat stdout = %q", got)
	}
}

func TestBlackboxChatValidation(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and spawns binaries")
	}
	llamadBin, fakeBinDir := buildBinaries(t)
	dp := startDaemon(t, llamadBin, fakeBinDir)

	req, err := http.NewRequest(http.MethodPost, dp.base+"/chat", strings.NewReader(`{"prompt":"hi"}`))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("wrong content type: %d, want 415", resp.StatusCode)
	}

	resp, body := postJSON(t, dp.base+"/chat", []byte(`{"prompt":`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad JSON: %d %s, want 400", resp.StatusCode, body)
	}

	resp, body = postJSON(t, dp.base+"/chat", []byte(`{}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty request: %d %s, want 400", resp.StatusCode, body)
	}
}
