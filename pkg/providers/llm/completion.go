// Package llm provides turn.LLMAdapter implementations: a real streaming
// adapter for OpenAI via go-openai, and a shared wrapper that adapts the
// one-shot REST completion providers (Anthropic, Google, and Groq's
// OpenAI-compatible chat/completions call) to the same sentence-streaming contract
// by running the full response through a SentenceSegmenter once it
// returns.
package llm

import (
	"context"

	"github.com/turnframe/turnframe/pkg/turn"
)

// completeFunc is the shape shared by every non-streaming provider: the
// full conversation in, the full completion text out.
type completeFunc func(ctx context.Context, messages []turn.Message) (string, error)

// completionAdapter turns a completeFunc into a turn.LLMAdapter. Since
// the provider itself never streams, the whole reply is split through
// SentenceSegmenter in one pass once the call returns, so downstream
// consumers still see a sentence at a time.
type completionAdapter struct {
	name     string
	complete completeFunc
}

func newCompletionAdapter(name string, fn completeFunc) *completionAdapter {
	return &completionAdapter{name: name, complete: fn}
}

func (a *completionAdapter) Name() string { return a.name }

func (a *completionAdapter) StreamSentences(ctx context.Context, messages []turn.Message, abort *turn.CancellationSignal) (<-chan string, <-chan error) {
	sentCh := make(chan string, 4)
	errCh := make(chan error, 1)

	go func() {
		defer close(sentCh)
		defer close(errCh)

		text, err := a.complete(ctx, messages)
		if err != nil {
			errCh <- turn.NewLLMUnavailableError(err)
			return
		}
		if abort.IsSet() {
			return
		}

		seg := turn.NewSentenceSegmenter()
		for _, sentence := range seg.Push(text) {
			if abort.IsSet() {
				return
			}
			select {
			case sentCh <- sentence:
			case <-ctx.Done():
				return
			}
		}
		for _, sentence := range seg.Flush() {
			if abort.IsSet() {
				return
			}
			select {
			case sentCh <- sentence:
			case <-ctx.Done():
				return
			}
		}
	}()

	return sentCh, errCh
}
