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

// GroqSTT calls Groq's hosted Whisper endpoint, wired through batchAdapter
// the same way OpenAISTT is: Groq exposes no realtime duplex API.
type GroqSTT struct {
	apiKey string
	url    string
	model  string
}

// NewGroqSTT builds a turn.STTAdapter backed by Groq's whisper-large-v3-turbo.
func NewGroqSTT(apiKey, model string, sampleRate int) turn.STTAdapter {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	s := &GroqSTT{apiKey: apiKey, url: "https://api.groq.com/openai/v1/audio/transcriptions", model: model}
	return newBatchAdapter("groq-stt", sampleRate, s.transcribe)
}

func (s *GroqSTT) transcribe(ctx context.Context, wav []byte, language string) (string, error) {
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
	if _, err := io.Copy(part, bytes.NewReader(wav)); err != nil {
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
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("groq stt error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Text, nil
}

func (s *GroqSTT) Name() string { return "groq-stt" }
