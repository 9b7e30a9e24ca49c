package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/turnframe/turnframe/pkg/turn"
)

func TestGoogleLLM(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "key=test-key") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		resp := struct {
			Candidates []struct {
				Content struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"content"`
			} `json:"candidates"`
		}{
			Candidates: []struct {
				Content struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"content"`
			}{
				{
					Content: struct {
						Parts []struct {
							Text string `json:"text"`
						} `json:"parts"`
					}{
						Parts: []struct {
							Text string `json:"text"`
						}{
							{Text: "Hello from Google."},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	l := &googleLLM{apiKey: "test-key", url: server.URL, model: "gemini"}
	adapter := newCompletionAdapter("google-llm", l.complete)

	abort := turn.NewCancellationSignal()
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

	if len(got) == 0 || got[0] != "Hello from Google." {
		t.Errorf("expected a single sentence 'Hello from Google.', got %v", got)
	}
}
