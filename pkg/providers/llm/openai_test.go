package llm

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/turnframe/turnframe/pkg/turn"
)

// sseServer replays a canned sequence of chat-completion stream chunks
// as server-sent events, the shape go-openai's stream client expects.
func sseServer(chunks []string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		bw := bufio.NewWriter(w)
		for _, c := range chunks {
			fmt.Fprintf(bw, "data: %s\n\n", c)
			bw.Flush()
			flusher.Flush()
		}
		fmt.Fprint(bw, "data: [DONE]\n\n")
		bw.Flush()
		flusher.Flush()
	}))
}

func TestOpenAILLM_StreamsSentences(t *testing.T) {
	chunks := []string{
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":"Hi there. "}}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":"How can I help?"}}]}`,
	}
	server := sseServer(chunks)
	defer server.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL
	l := &OpenAILLM{client: openai.NewClientWithConfig(cfg), model: "gpt-4o"}

	abort := turn.NewCancellationSignal()
	sentCh, errCh := l.StreamSentences(context.Background(), []turn.Message{{Role: "user", Content: "hi"}}, abort)

	var got []string
	for sentCh != nil || errCh != nil {
		select {
		case s, ok := <-sentCh:
			if !ok {
				sentCh = nil
				continue
			}
			got = append(got, s)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for stream")
		}
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %v", got)
	}
	if got[0] != "Hi there." {
		t.Errorf("first sentence = %q, want %q", got[0], "Hi there.")
	}
	if l.Name() != "openai-llm" {
		t.Errorf("expected openai-llm, got %s", l.Name())
	}
}
