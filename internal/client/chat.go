package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"llamad/internal/chatfmt"
	"llamad/pkg/types"
)

// chatCompletionRequest is the OpenAI-compatible payload for
// /v1/chat/completions. Pointer fields are omitted when unset so the
// server's own defaults apply.
type chatCompletionRequest struct {
	Model              string              `json:"model,omitempty"`
	Messages           []types.ChatMessage `json:"messages"`
	Stream             bool                `json:"stream"`
	Temperature        *float64            `json:"temperature,omitempty"`
	TopP               *float64            `json:"top_p,omitempty"`
	TopK               *int                `json:"top_k,omitempty"`
	MaxTokens          *int                `json:"max_tokens,omitempty"`
	Stop               []string            `json:"stop,omitempty"`
	Seed               *int64              `json:"seed,omitempty"`
	RepeatPenalty      *float64            `json:"repeat_penalty,omitempty"`
	ReasoningFormat    string              `json:"reasoning_format,omitempty"`
	ChatTemplateKwargs map[string]any      `json:"chat_template_kwargs,omitempty"`
}

// streamChoiceDelta is the minimal subset of an OpenAI streaming chunk.
type streamChoiceDelta struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type streamResponse struct {
	Choices []streamChoiceDelta `json:"choices"`
}

// StreamChat posts a streaming chat completion and invokes onToken for each
// non-empty content delta, in order, from this goroutine; a nil onToken
// discards them. It returns the finish reason the server reported, "" when
// the stream ended without one.
//
// A non-2xx answer fails before any token. Once tokens are flowing, an
// abnormal end of stream is wrapped in StreamError so callers can tell a
// broken stream from a never-started one.
func (c *Client) StreamChat(ctx context.Context, messages []types.ChatMessage, opts types.ChatOptions, onToken func(string) error) (string, error) {
	payload := chatCompletionRequest{
		Model:              c.model,
		Messages:           messages,
		Stream:             true,
		Temperature:        opts.Temperature,
		TopP:               opts.TopP,
		TopK:               opts.TopK,
		MaxTokens:          opts.MaxTokens,
		Stop:               opts.Stop,
		Seed:               opts.Seed,
		RepeatPenalty:      opts.RepeatPenalty,
		ReasoningFormat:    opts.ReasoningFormat,
		ChatTemplateKwargs: opts.ChatTemplateKwargs,
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat completions: %s: %s", resp.Status, bytes.TrimSpace(b))
	}

	r := bufio.NewReader(resp.Body)
	finish := ""
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSpace(line)
			if data, ok := strings.CutPrefix(line, "data:"); ok {
				data = strings.TrimSpace(data)
				if data == "[DONE]" {
					return finish, nil
				}
				var msg streamResponse
				if jsonErr := json.Unmarshal([]byte(data), &msg); jsonErr != nil || len(msg.Choices) == 0 {
					// Malformed chunks are skipped, not fatal; the stream
					// usually recovers on the next one.
					c.log.Debug().Str("line", line).Msg("skipping unparseable stream line")
				} else {
					if frag := msg.Choices[0].Delta.Content; frag != "" && onToken != nil {
						if cbErr := onToken(frag); cbErr != nil {
							return finish, cbErr
						}
					}
					if fr := msg.Choices[0].FinishReason; fr != "" {
						finish = fr
					}
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return finish, nil
			}
			if ctx.Err() != nil {
				return finish, ctx.Err()
			}
			return finish, StreamError{Cause: err}
		}
	}
}

// StreamRequest is the high-level chat call: message assembly plus
// thinking-tag handling layered over the raw token stream. Either Prompt or
// Messages must be set; Messages wins when both are.
type StreamRequest struct {
	Prompt       string
	Messages     []types.ChatMessage
	SystemPrompt string
	// Image is a data URL or bare base64 payload; only used when the
	// messages are built from Prompt.
	Image        string
	ShowThinking bool
	// PerToken emits deltas as they arrive instead of the accumulated
	// visible text.
	PerToken bool
	// ThinkingPlaceholder overrides what is shown in place of hidden
	// thinking; nil keeps the default, empty suppresses it.
	ThinkingPlaceholder *string
	Options             types.ChatOptions
}

// StreamResult is what a finished stream produced.
type StreamResult struct {
	// Content is the full visible text, regardless of emission mode.
	Content      string
	FinishReason string
}

// Stream runs a chat completion end to end: builds the message list,
// filters thinking tags, and hands each emission to emit. The returned
// result carries the final visible content even when emit saw per-token
// deltas, and is valid (possibly partial) even on error.
func (c *Client) Stream(ctx context.Context, req StreamRequest, emit func(string) error) (StreamResult, error) {
	messages := req.Messages
	if len(messages) == 0 {
		messages = chatfmt.BuildMessages(req.Prompt, req.SystemPrompt, req.Image)
	} else if req.SystemPrompt != "" {
		messages = append([]types.ChatMessage{
			{Role: types.RoleSystem, Content: types.TextContent(req.SystemPrompt)},
		}, messages...)
	}

	placeholder := chatfmt.DefaultThinkingPlaceholder
	if req.ThinkingPlaceholder != nil {
		placeholder = *req.ThinkingPlaceholder
	}
	filter := chatfmt.NewThinkingFilter(chatfmt.FilterConfig{
		ShowThinking: req.ShowThinking,
		PerToken:     req.PerToken,
		Placeholder:  placeholder,
	})

	finish, err := c.StreamChat(ctx, messages, req.Options, func(tok string) error {
		out, ok := filter.Process(tok)
		if !ok || emit == nil {
			return nil
		}
		return emit(out)
	})
	return StreamResult{Content: filter.Text(), FinishReason: finish}, err
}
