package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/turnframe/turnframe/pkg/turn"
)

// DeepgramSTT calls Deepgram's pre-recorded transcription endpoint,
// wired through batchAdapter the same way the other REST providers are.
type DeepgramSTT struct {
	apiKey string
	url    string
}

// NewDeepgramSTT builds a turn.STTAdapter backed by Deepgram nova-2.
func NewDeepgramSTT(apiKey string, sampleRate int) turn.STTAdapter {
	s := &DeepgramSTT{apiKey: apiKey, url: "https://api.deepgram.com/v1/listen"}
	return newBatchAdapter("deepgram-stt", sampleRate, s.transcribe)
}

func (s *DeepgramSTT) transcribe(ctx context.Context, wav []byte, language string) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", err
	}

	params := u.Query()
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	if language != "" {
		params.Set("language", language)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(wav))
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", "Token "+s.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("deepgram error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}

	return result.Results.Channels[0].Alternatives[0].Transcript, nil
}
