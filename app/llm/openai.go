package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultTranscriptionModel = "whisper-1"
	DefaultGenerationModel    = "gpt-4"
	DefaultMaxTokens          = 1000
)

// OpenAI implements Transcriber and Generator on top of the OpenAI API.
type OpenAI struct {
	client             *openai.Client
	transcriptionModel string
	generationModel    string
	maxTokens          int
}

// OpenAIOptions configures NewOpenAI. Zero values fall back to the defaults.
type OpenAIOptions struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
	GenerationModel    string
	MaxTokens          int
}

func NewOpenAI(opts OpenAIOptions) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	o := &OpenAI{
		client:             openai.NewClientWithConfig(cfg),
		transcriptionModel: opts.TranscriptionModel,
		generationModel:    opts.GenerationModel,
		maxTokens:          opts.MaxTokens,
	}
	if o.transcriptionModel == "" {
		o.transcriptionModel = DefaultTranscriptionModel
	}
	if o.generationModel == "" {
		o.generationModel = DefaultGenerationModel
	}
	if o.maxTokens <= 0 {
		o.maxTokens = DefaultMaxTokens
	}
	return o
}

// Transcribe sends the audio to the transcription model and returns its text.
func (o *OpenAI) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = "audio.wav"
	}
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.transcriptionModel,
		Reader:   audio,
		FilePath: filename,
	})
	if err != nil {
		return "", fmt.Errorf("transcription (%s): %w", o.transcriptionModel, err)
	}
	return resp.Text, nil
}

// Stream opens a streamed chat completion.
func (o *OpenAI) Stream(ctx context.Context, messages []Message) (FragmentStream, error) {
	req := openai.ChatCompletionRequest{
		Model:     o.generationModel,
		Messages:  toOpenAIMessages(messages),
		MaxTokens: o.maxTokens,
		Stream:    true,
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion stream (%s): %w", o.generationModel, err)
	}
	slog.DebugContext(ctx, "generation stream opened", "model", o.generationModel, "messages", len(messages))
	return &chatStream{stream: stream}, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

type chatStream struct {
	stream *openai.ChatCompletionStream
}

// Recv skips chunks that carry no text (role announcements, finish markers).
func (s *chatStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("receive chat chunk: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if content := resp.Choices[0].Delta.Content; content != "" {
			return content, nil
		}
	}
}

func (s *chatStream) Close() error {
	return s.stream.Close()
}
