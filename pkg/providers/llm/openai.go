package llm

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/turnframe/turnframe/pkg/turn"
)

// OpenAILLM streams chat completions token-by-token and feeds them
// through a SentenceSegmenter, the only one of this package's providers
// with a genuine streaming API. It implements turn.LLMAdapter directly.
type OpenAILLM struct {
	client *openai.Client
	model  string
}

// NewOpenAILLM builds a streaming turn.LLMAdapter backed by OpenAI chat
// completions.
func NewOpenAILLM(apiKey string, model string) *OpenAILLM {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAILLM{client: openai.NewClient(apiKey), model: model}
}

func (l *OpenAILLM) Name() string { return "openai-llm" }

func (l *OpenAILLM) StreamSentences(ctx context.Context, messages []turn.Message, abort *turn.CancellationSignal) (<-chan string, <-chan error) {
	sentCh := make(chan string, 4)
	errCh := make(chan error, 1)

	go func() {
		defer close(sentCh)
		defer close(errCh)

		req := openai.ChatCompletionRequest{
			Model:    l.model,
			Messages: toOpenAIMessages(messages),
			Stream:   true,
		}
		stream, err := l.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			errCh <- turn.NewLLMUnavailableError(err)
			return
		}
		defer stream.Close()

		seg := turn.NewSentenceSegmenter()
		for {
			if abort.IsSet() {
				return
			}
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				for _, sentence := range seg.Flush() {
					if !emit(ctx, sentCh, sentence) {
						return
					}
				}
				return
			}
			if err != nil {
				errCh <- turn.NewLLMUnavailableError(err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			for _, sentence := range seg.Push(resp.Choices[0].Delta.Content) {
				if !emit(ctx, sentCh, sentence) {
					return
				}
			}
		}
	}()

	return sentCh, errCh
}

func emit(ctx context.Context, ch chan<- string, sentence string) bool {
	select {
	case ch <- sentence:
		return true
	case <-ctx.Done():
		return false
	}
}

func toOpenAIMessages(messages []turn.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
