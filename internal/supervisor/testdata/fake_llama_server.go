package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
)

// Stand-in for llama-server in supervisor and gateway tests. Everything is
// driven by the environment because the supervisor launches it without
// arguments:
//
//	LLAMA_ARG_HOST / LLAMA_ARG_PORT  listen address (required)
//	FAKE_EXIT_CODE                   exit immediately with this code
//	FAKE_LOADING_PROBES              answer 503 to the first N health polls
//	FAKE_IGNORE_TERM                 ignore SIGTERM (forces SIGKILL)
//	FAKE_TOKENS                      space-separated completion tokens
//	FAKE_TOKEN_DELAY_MS              pause between streamed tokens
func main() {
	if code := os.Getenv("FAKE_EXIT_CODE"); code != "" {
		fmt.Fprintln(os.Stderr, "boom: refusing to start")
		n, _ := strconv.Atoi(code)
		os.Exit(n)
	}

	host := os.Getenv("LLAMA_ARG_HOST")
	port := os.Getenv("LLAMA_ARG_PORT")
	if host == "" || port == "" {
		fmt.Fprintln(os.Stderr, "LLAMA_ARG_HOST and LLAMA_ARG_PORT are required")
		os.Exit(2)
	}

	loading, _ := strconv.Atoi(os.Getenv("FAKE_LOADING_PROBES"))
	var polls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) <= int64(loading) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": 503, "message": "Loading model", "type": "unavailable_error"},
			})
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/props", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"modalities":{"vision":false},"model_path":"/models/fake.gguf","n_ctx":4096}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		tokens := []string{"Hello", " from", " fake"}
		if v := os.Getenv("FAKE_TOKENS"); v != "" {
			tokens = strings.Split(v, " ")
		}
		delay, _ := strconv.Atoi(os.Getenv("FAKE_TOKEN_DELAY_MS"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, tok := range tokens {
			chunk := map[string]any{
				"choices": []any{map[string]any{"delta": map[string]any{"content": tok}}},
			}
			b, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", b)
			if flusher != nil {
				flusher.Flush()
			}
			if delay > 0 {
				time.Sleep(time.Duration(delay) * time.Millisecond)
			}
		}
		fmt.Fprintf(w, "data: %s\n\n", `{"choices":[{"delta":{},"finish_reason":"stop"}]}`)
		fmt.Fprint(w, "data: [DONE]\n\n")
		if flusher != nil {
			flusher.Flush()
		}
	})

	srv := &http.Server{Addr: fmt.Sprintf("%s:%s", host, port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	for {
		<-sigCh
		if os.Getenv("FAKE_IGNORE_TERM") != "" {
			continue
		}
		break
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
