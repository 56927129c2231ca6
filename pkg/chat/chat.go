// Package chat implements the bot server's "chat" tool.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ToolName is the name of the chat tool.
const ToolName = "chat"

// ErrInvalidInput is returned when the prompt is missing, not a string, or
// blank.
var ErrInvalidInput = errors.New("Invalid input: 'prompt' must be a non-empty string")

// ChatArgs are the arguments of the chat tool.
type ChatArgs struct {
	Prompt string `json:"prompt"`
}

// DecodeChatArgs decodes and validates a JSON object carrying a non-blank
// "prompt" string. The prompt is passed through untrimmed.
func DecodeChatArgs(raw []byte) (ChatArgs, error) {
	var in struct {
		Prompt *string `json:"prompt"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return ChatArgs{}, ErrInvalidInput
	}
	if in.Prompt == nil || strings.TrimSpace(*in.Prompt) == "" {
		return ChatArgs{}, ErrInvalidInput
	}
	return ChatArgs{Prompt: *in.Prompt}, nil
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Handler runs the chat tool against a Generator.
type Handler struct {
	Generator Generator
}

// Chat returns the generated reply. Generator errors are returned unchanged.
func (h *Handler) Chat(ctx context.Context, args ChatArgs) (string, error) {
	if h.Generator == nil {
		return "", errors.New("chat: no generator configured")
	}
	return h.Generator.Generate(ctx, args.Prompt)
}
