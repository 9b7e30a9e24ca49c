package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/turnframe/turnframe/pkg/turn"
)

// OpenAISTT calls OpenAI's Whisper transcription endpoint. It has no
// realtime duplex API, so it is wired into the turn.STTAdapter contract
// through batchAdapter (§4.6): audio buffers until Finalize, then one
// REST call produces the turn's single final transcript.
type OpenAISTT struct {
	apiKey string
	url    string
	model  string
}

// NewOpenAISTT builds a turn.STTAdapter backed by OpenAI Whisper.
func NewOpenAISTT(apiKey, model string, sampleRate int) turn.STTAdapter {
	if model == "" {
		model = "whisper-1"
	}
	s := &OpenAISTT{apiKey: apiKey, url: "https://api.openai.com/v1/audio/transcriptions", model: model}
	return newBatchAdapter("openai-stt", sampleRate, s.transcribe)
}

func (s *OpenAISTT) transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", s.model); err != nil {
		return "", err
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return "", err
		}
	}
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wav); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai stt error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Text, nil
}
