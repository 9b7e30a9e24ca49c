package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/turnframe/turnframe/pkg/turn"
)

func TestLokutorTTS_StreamAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		var req map[string]interface{}
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			return
		}

		conn.Write(r.Context(), websocket.MessageBinary, []byte{1, 2, 3})
		conn.Write(r.Context(), websocket.MessageBinary, []byte{4, 5, 6})
		conn.Write(r.Context(), websocket.MessageText, []byte("EOS"))
	}))
	defer server.Close()

	tts := &LokutorTTS{
		apiKey: "test-key",
		host:   strings.TrimPrefix(server.URL, "http://"),
		scheme: "ws",
	}
	defer tts.Close()

	abort := turn.NewCancellationSignal()
	chunkCh, errCh := tts.StreamAudio(context.Background(), "hello", "f1", abort)

	var audio []byte
	var lastFinal bool
	deadline := time.After(time.Second)
loop:
	for {
		select {
		case c, ok := <-chunkCh:
			if !ok {
				chunkCh = nil
				if errCh == nil {
					break loop
				}
				continue
			}
			audio = append(audio, c.Data...)
			lastFinal = c.IsFinal
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				if chunkCh == nil {
					break loop
				}
				continue
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for audio")
		}
	}

	if len(audio) != 6 {
		t.Errorf("expected 6 bytes, got %d", len(audio))
	}
	if !lastFinal {
		t.Error("expected final chunk to be marked is_final")
	}
	if tts.Name() != "lokutor-tts" {
		t.Errorf("expected lokutor-tts, got %s", tts.Name())
	}
}
