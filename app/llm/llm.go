// Package llm wraps the speech-to-text and chat completion providers used to
// turn a voice note into a structured coding prompt.
package llm

import (
	"context"
	"io"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of a generation request.
type Message struct {
	Role    string
	Content string
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// FragmentStream yields generated text in arrival order. Recv returns io.EOF
// once the generation is complete. A stream cannot be restarted.
type FragmentStream interface {
	Recv() (string, error)
	Close() error
}

// Generator starts a streamed chat completion over the given messages.
type Generator interface {
	Stream(ctx context.Context, messages []Message) (FragmentStream, error)
}
