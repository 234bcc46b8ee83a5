// ABOUTME: Speech recognition abstraction and a Whisper-backed implementation
// ABOUTME: Recognition is single-shot; one call yields one transcript

package input

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrSpeechUnsupported is returned when no recognizer is available.
var ErrSpeechUnsupported = errors.New("speech recognition not supported")

// ErrNoSpeech is returned when recognition produced no words.
var ErrNoSpeech = errors.New("no speech recognized")

// Recognizer captures a single utterance and returns its transcript.
type Recognizer interface {
	Recognize(ctx context.Context) (string, error)
}

// UnsupportedRecognizer always fails with ErrSpeechUnsupported.
type UnsupportedRecognizer struct{}

// Recognize implements Recognizer.
func (UnsupportedRecognizer) Recognize(context.Context) (string, error) {
	return "", ErrSpeechUnsupported
}

// ClipSource returns the path of the next audio clip to transcribe.
type ClipSource func(ctx context.Context) (string, error)

// WhisperRecognizer transcribes recorded clips with the OpenAI audio API.
type WhisperRecognizer struct {
	client *openai.Client
	model  string
	clips  ClipSource
}

// NewWhisperRecognizer creates a recognizer. An empty baseURL uses the
// public API; an empty model uses whisper-1; a nil httpClient uses the
// library default.
func NewWhisperRecognizer(apiKey, baseURL, model string, httpClient *http.Client, clips ClipSource) *WhisperRecognizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperRecognizer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		clips:  clips,
	}
}

// Recognize implements Recognizer.
func (w *WhisperRecognizer) Recognize(ctx context.Context) (string, error) {
	if w.clips == nil {
		return "", ErrSpeechUnsupported
	}
	path, err := w.clips(ctx)
	if err != nil {
		return "", fmt.Errorf("capturing audio: %w", err)
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
	})
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}

	text := NormalizeText(resp.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return strings.Join(strings.Fields(text), " "), nil
}
