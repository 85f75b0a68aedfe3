// Package chatfmt prepares chat-completion inputs and filters streamed
// output tokens. It is pure logic: no I/O, no transport, safe to use from
// any caller.
package chatfmt

import (
	"strings"

	"llamad/pkg/types"
)

// BuildMessages assembles an OpenAI-format conversation from a plain user
// prompt. A non-empty systemPrompt becomes a leading system message. A
// non-empty image payload (data URL or bare base64) produces a multimodal
// user message with the image part first, matching what vision-enabled
// llama servers expect.
func BuildMessages(prompt, systemPrompt, image string) []types.ChatMessage {
	msgs := make([]types.ChatMessage, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, types.ChatMessage{
			Role:    types.RoleSystem,
			Content: types.TextContent(systemPrompt),
		})
	}
	if image == "" {
		msgs = append(msgs, types.ChatMessage{
			Role:    types.RoleUser,
			Content: types.PartsContent(types.TextPart(prompt)),
		})
		return msgs
	}
	parts := []types.ContentPart{types.ImagePart(ImageDataURL(image))}
	if prompt != "" {
		parts = append(parts, types.TextPart(prompt))
	}
	msgs = append(msgs, types.ChatMessage{
		Role:    types.RoleUser,
		Content: types.PartsContent(parts...),
	})
	return msgs
}

// ImageDataURL normalizes an image payload into a data URL. Payloads that
// already carry a data: scheme pass through untouched; anything else is
// assumed to be base64-encoded PNG bytes. Reading and encoding image files
// is the caller's concern.
func ImageDataURL(payload string) string {
	if strings.HasPrefix(payload, "data:") {
		return payload
	}
	return "data:image/png;base64," + payload
}
