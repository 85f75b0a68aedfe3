package runtime

import (
	"context"
	"encoding/json"
	"io"

	"github.com/google/uuid"

	"llamad/internal/client"
	"llamad/pkg/types"
)

// StreamChat runs one chat request end to end, writing NDJSON lines to w:
// one line per emission, then a terminal line carrying the request id, the
// full visible content, and the finish reason.
//
// An error return means nothing was written and the caller still owns the
// response status. Once the first line is out, failures are reported
// in-band on the terminal line and StreamChat returns nil.
func (rt *Runtime) StreamChat(ctx context.Context, req types.ChatRequest, w io.Writer, flush func()) error {
	select {
	case rt.sem <- struct{}{}:
		defer func() { <-rt.sem }()
	default:
		return TooBusyError{Limit: cap(rt.sem)}
	}

	if !rt.proc.Running() {
		return UpstreamNotReadyError{State: string(rt.proc.Status().State)}
	}

	id := "chat-" + uuid.NewString()
	enc := json.NewEncoder(w)
	wrote := false
	writeLine := func(line types.ChatStreamLine) error {
		if err := enc.Encode(line); err != nil {
			return err
		}
		wrote = true
		if flush != nil {
			flush()
		}
		return nil
	}

	res, err := rt.upstream.Stream(ctx, client.StreamRequest{
		Prompt:              req.Prompt,
		Messages:            req.Messages,
		SystemPrompt:        req.SystemPrompt,
		Image:               req.Image,
		ShowThinking:        req.ShowThinking,
		PerToken:            !req.Accumulate,
		ThinkingPlaceholder: req.ThinkingPlaceholder,
		Options:             req.Options,
	}, func(out string) error {
		return writeLine(types.ChatStreamLine{Token: out})
	})
	if err != nil {
		if !wrote {
			return UpstreamError{Cause: err}
		}
		rt.log.Error().Err(err).Str("id", id).Msg("chat stream aborted")
		_ = writeLine(types.ChatStreamLine{ID: id, Done: true, Content: res.Content, Error: err.Error()})
		return nil
	}
	return writeLine(types.ChatStreamLine{ID: id, Done: true, Content: res.Content, FinishReason: res.FinishReason})
}
