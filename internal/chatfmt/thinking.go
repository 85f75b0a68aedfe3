package chatfmt

import "strings"

// Reasoning-segment delimiters as they appear in token streams. Servers
// that HTML-escape their output produce the entity spellings, so both are
// recognized. Matching is exact per token; tags split across tokens are not
// reassembled.
var (
	openingThinkingTags = []string{"<think>", "&lt;think&gt;"}
	closingThinkingTags = []string{"</think>", "&lt;/think&gt;"}
)

// DefaultThinkingPlaceholder is emitted when a hidden reasoning segment
// opens, so interactive callers see activity during long thinking phases.
const DefaultThinkingPlaceholder = "Thinking ..."

// FilterConfig controls a ThinkingFilter.
type FilterConfig struct {
	// ShowThinking passes reasoning segments (tags included) through as
	// ordinary text.
	ShowThinking bool
	// PerToken emits each token individually; when false every emission is
	// the accumulated text so far, superseding the previous one.
	PerToken bool
	// Placeholder is emitted once when a hidden reasoning segment opens.
	// Empty suppresses it. It stands alone and never joins the accumulated
	// text.
	Placeholder string
}

// ThinkingFilter rewrites a raw token stream according to the thinking
// visibility and accumulation settings. Each consumer owns its own filter;
// the zero value is not usable, construct with NewThinkingFilter.
type ThinkingFilter struct {
	cfg        FilterConfig
	inThinking bool
	acc        strings.Builder
}

// NewThinkingFilter returns a filter with fresh state.
func NewThinkingFilter(cfg FilterConfig) *ThinkingFilter {
	return &ThinkingFilter{cfg: cfg}
}

// Process consumes one raw token and returns the chunk to surface, if any.
// The second result is false when the token produced no output (suppressed
// reasoning content, closing tags, or an empty placeholder).
func (f *ThinkingFilter) Process(token string) (string, bool) {
	if f.cfg.ShowThinking {
		return f.emit(token), true
	}
	if f.inThinking {
		if isClosingThinkingTag(token) {
			f.inThinking = false
		}
		return "", false
	}
	if isOpeningThinkingTag(token) {
		f.inThinking = true
		if f.cfg.Placeholder != "" {
			return f.cfg.Placeholder, true
		}
		return "", false
	}
	// A closing tag with no opening is ordinary text.
	return f.emit(token), true
}

// emit records a visible token and returns the chunk for the active mode:
// the token itself, or the running total that supersedes prior emissions.
func (f *ThinkingFilter) emit(token string) string {
	f.acc.WriteString(token)
	if f.cfg.PerToken {
		return token
	}
	return f.acc.String()
}

// Text returns the accumulated visible text, regardless of mode. Reasoning
// content and placeholders are never part of it when hidden.
func (f *ThinkingFilter) Text() string {
	return f.acc.String()
}

func isOpeningThinkingTag(token string) bool {
	for _, t := range openingThinkingTags {
		if token == t {
			return true
		}
	}
	return false
}

func isClosingThinkingTag(token string) bool {
	for _, t := range closingThinkingTags {
		if token == t {
			return true
		}
	}
	return false
}
