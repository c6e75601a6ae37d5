// Package audio acquires a microphone stream, produces a live frequency
// visualization, and on stop resolves the buffered capture into a text
// utterance through a pluggable transcription backend.
package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"
)

// Device opens microphone capture streams. The real implementation wraps
// whatever the host provides; tests substitute a mock.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is a live capture handle delivering 16-bit little-endian PCM.
type Stream interface {
	// Read blocks until the next chunk is available. It returns io.EOF
	// once the stream has been stopped.
	Read(ctx context.Context) ([]byte, error)
	// Stop releases the underlying hardware track. Failing to call it
	// leaks the microphone indicator to the user.
	Stop() error
}

// Transcriber resolves captured audio into best-effort text. Given
// captured audio it produces text or fails; callers treat failure as an
// empty utterance, never a user-facing error.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// DemoTranscriber is the stand-in used when no speech-to-text backend is
// configured: it returns a canned utterance so the capture flow can be
// exercised end to end.
type DemoTranscriber struct{}

var demoUtterances = []string{
	"I miss you so much today",
	"I was thinking about you this morning",
	"I wish you were here",
	"I feel very low today",
}

func (DemoTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}
	return demoUtterances[rand.IntN(len(demoUtterances))], nil
}

// HTTPTranscriber posts raw PCM to a speech-to-text endpoint and expects
// a {"text": "..."} response.
type HTTPTranscriber struct {
	URL        string
	SampleRate int
	Client     *http.Client
}

func NewHTTPTranscriber(url string, sampleRate int) *HTTPTranscriber {
	return &HTTPTranscriber{
		URL:        url,
		SampleRate: sampleRate,
		Client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(pcm))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", fmt.Sprintf("audio/L16; rate=%d", t.SampleRate))

	resp, err := t.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transcription service returned %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}
	return out.Text, nil
}
