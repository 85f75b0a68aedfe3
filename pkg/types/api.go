package types

// ChatRequest is the payload accepted by POST /chat. Exactly one of Prompt
// or Messages must be set; Messages wins when both are present.
type ChatRequest struct {
	// Model identifier, accepted for wire compatibility. The daemon fronts
	// a single server whose model is fixed at spawn, so this is advisory.
	// example: local
	Model string `json:"model,omitempty" example:"local"`
	// Plain-text prompt; expanded into a single user message.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt,omitempty" example:"Write a haiku about the ocean."`
	// Pre-formatted conversation; used verbatim when non-empty.
	Messages []ChatMessage `json:"messages,omitempty"`
	// Optional system prompt prepended when Prompt is used.
	// example: You are a terse assistant.
	SystemPrompt string `json:"system_prompt,omitempty" example:"You are a terse assistant."`
	// Optional image payload for vision models: a data URL or bare base64.
	Image string `json:"image,omitempty"`
	// Emit reasoning segments instead of collapsing them to a placeholder.
	// example: false
	ShowThinking bool `json:"show_thinking,omitempty" example:"false"`
	// Each token line carries the full text so far instead of an individual
	// delta; consumers replace rather than append what they show.
	// example: false
	Accumulate bool `json:"accumulate,omitempty" example:"false"`
	// Placeholder emitted when a hidden reasoning segment starts. Omitted
	// means the default; explicit empty string suppresses it.
	ThinkingPlaceholder *string `json:"thinking_placeholder,omitempty"`
	// Sampling parameters forwarded verbatim upstream.
	Options ChatOptions `json:"options,omitempty"`
}

// ChatStreamLine is one NDJSON line of a POST /chat response. Token lines
// carry Token only; the terminal line carries Done plus the summary fields.
type ChatStreamLine struct {
	// Token or accumulated text chunk.
	// example: Hello
	Token string `json:"token,omitempty" example:"Hello"`
	// True on the terminal line.
	// example: true
	Done bool `json:"done,omitempty" example:"true"`
	// Correlation ID of the request (terminal line only).
	// example: chat-6f1c2b3a
	ID string `json:"id,omitempty" example:"chat-6f1c2b3a"`
	// Full response text (terminal line only).
	Content string `json:"content,omitempty"`
	// Upstream finish reason (terminal line only).
	// example: stop
	FinishReason string `json:"finish_reason,omitempty" example:"stop"`
	// Error message when the stream ended abnormally.
	Error string `json:"error,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Supervisor state (idle, starting, running, stopping).
	// example: running
	State string `json:"state" example:"running"`
	// Process ID of the supervised server, 0 when not running.
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// Base URL of the supervised server.
	// example: http://127.0.0.1:8080
	Endpoint string `json:"endpoint,omitempty" example:"http://127.0.0.1:8080"`
	// Seconds since the supervised process started.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds,omitempty" example:"3600"`
	// Latest upstream health probe.
	Upstream Health `json:"upstream"`
	// Daemon time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
