package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/turnframe/turnframe/pkg/turn"
)

func TestGroqLLM(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		resp := struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}{
			Choices: []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			}{
				{
					Message: struct {
						Content string `json:"content"`
					}{Content: "Hello from Groq."},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	l := &groqLLM{apiKey: "test-key", url: server.URL, model: "llama3-70b-8192"}
	adapter := newCompletionAdapter("groq-llm", l.complete)

	abort := &turn.CancellationSignal{}
	sentCh, errCh := adapter.StreamSentences(context.Background(), []turn.Message{{Role: "user", Content: "hi"}}, abort)

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
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for sentences")
		}
	}

	if len(got) == 0 || got[0] != "Hello from Groq." {
		t.Errorf("expected a single sentence 'Hello from Groq.', got %v", got)
	}
	if adapter.Name() != "groq-llm" {
		t.Errorf("expected groq-llm, got %s", adapter.Name())
	}
}
