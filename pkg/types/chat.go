package types

import (
	"encoding/json"
	"fmt"
)

// Message roles accepted by OpenAI-compatible chat endpoints.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single turn in an OpenAI-compatible conversation.
type ChatMessage struct {
	// Role of the author (system, user, assistant).
	// example: user
	Role string `json:"role" example:"user"`
	// Content is either plain text or an ordered list of typed parts.
	Content MessageContent `json:"content"`
}

// MessageContent is the content union of a chat message: the wire format
// accepts either a bare string or an array of typed parts. Parts takes
// precedence when non-nil.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// TextContent wraps plain text as message content.
func TextContent(s string) MessageContent {
	return MessageContent{Text: s}
}

// PartsContent wraps an ordered part list as message content.
func PartsContent(parts ...ContentPart) MessageContent {
	return MessageContent{Parts: parts}
}

// MarshalJSON encodes Parts as an array when present, the bare string
// otherwise.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts both wire shapes.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		c.Parts = nil
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("message content is neither string nor part list: %w", err)
	}
	c.Parts = parts
	c.Text = ""
	return nil
}

// PlainText flattens the content to text: the bare string, or the
// concatenation of all text parts.
func (c MessageContent) PlainText() string {
	if c.Parts == nil {
		return c.Text
	}
	var out string
	for _, p := range c.Parts {
		if p.Type == ContentPartText {
			out += p.Text
		}
	}
	return out
}

// Content part discriminators.
const (
	ContentPartText     = "text"
	ContentPartImageURL = "image_url"
)

// ContentPart is one typed element of a multi-part message.
type ContentPart struct {
	// Part type (text or image_url).
	// example: text
	Type string `json:"type" example:"text"`
	// Text payload; set when Type is text.
	// example: Describe this image.
	Text string `json:"text,omitempty" example:"Describe this image."`
	// Image reference; set when Type is image_url.
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL, typically a base64 data URL.
type ImageURL struct {
	// URL or data URL of the image.
	// example: data:image/png;base64,iVBORw0KGgo=
	URL string `json:"url" example:"data:image/png;base64,iVBORw0KGgo="`
}

// TextPart builds a text content part.
func TextPart(s string) ContentPart {
	return ContentPart{Type: ContentPartText, Text: s}
}

// ImagePart builds an image_url content part.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: ContentPartImageURL, ImageURL: &ImageURL{URL: url}}
}

// ChatOptions are pass-through sampling parameters for the upstream server.
// They are forwarded verbatim and never interpreted here. Pointer fields
// distinguish "unset" from zero values.
type ChatOptions struct {
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK *int `json:"top_k,omitempty" example:"40"`
	// Maximum number of new tokens to generate.
	// example: 256
	MaxTokens *int `json:"max_tokens,omitempty" example:"256"`
	// Stop sequences; generation halts when any is produced.
	Stop []string `json:"stop,omitempty"`
	// Random seed for reproducibility.
	// example: 42
	Seed *int64 `json:"seed,omitempty" example:"42"`
	// Repeat penalty applied by llama servers.
	// example: 1.1
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty" example:"1.1"`
	// Reasoning output format understood by llama.cpp (e.g. none, auto).
	// example: none
	ReasoningFormat string `json:"reasoning_format,omitempty" example:"none"`
	// Extra arguments forwarded to the server's chat template
	// (e.g. {"enable_thinking": false}).
	ChatTemplateKwargs map[string]any `json:"chat_template_kwargs,omitempty"`
}
