package types

// HealthStatus classifies the upstream server's readiness.
type HealthStatus string

const (
	// HealthReady: the server answered 200 and accepts requests.
	HealthReady HealthStatus = "ready"
	// HealthLoading: the server answered 503 while loading a model.
	HealthLoading HealthStatus = "loading"
	// HealthUnavailable: the server answered with an unexpected status.
	HealthUnavailable HealthStatus = "unavailable"
	// HealthDown: the server could not be reached at all.
	HealthDown HealthStatus = "down"
)

// Health is the result of probing the upstream health endpoint. Probes are
// best-effort: failures classify, they never error.
type Health struct {
	// True only when Status is ready.
	// example: true
	OK bool `json:"ok" example:"true"`
	// HTTP status code observed, 0 when unreachable.
	// example: 200
	Code int `json:"code" example:"200"`
	// Readiness classification.
	// example: ready
	Status HealthStatus `json:"status" example:"ready"`
	// Optional detail (e.g. the loading message on 503).
	// example: Loading model
	Message string `json:"message,omitempty" example:"Loading model"`
}

// ServerProps is the subset of GET /props this system reads.
type ServerProps struct {
	// Input modalities the loaded model supports.
	Modalities map[string]bool `json:"modalities,omitempty"`
	// Model path reported by the server.
	// example: /models/gemma-3-4b-it-Q4_K_M.gguf
	ModelPath string `json:"model_path,omitempty" example:"/models/gemma-3-4b-it-Q4_K_M.gguf"`
	// Maximum context size configured on the server.
	// example: 8192
	ContextSize int `json:"n_ctx,omitempty" example:"8192"`
}

// SupportsVision reports whether the loaded model accepts image input.
func (p ServerProps) SupportsVision() bool {
	return p.Modalities["vision"]
}
