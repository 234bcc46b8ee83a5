// ABOUTME: Tests for speech recognizers
// ABOUTME: Drives the Whisper recognizer against a fake transcription endpoint

package input

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsupportedRecognizer(t *testing.T) {
	_, err := UnsupportedRecognizer{}.Recognize(context.Background())
	assert.ErrorIs(t, err, ErrSpeechUnsupported)
}

func newTranscriptionServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVEfmt "), 0644))
	return path
}

func TestWhisperRecognizer_Transcribes(t *testing.T) {
	srv := newTranscriptionServer(t, http.StatusOK, `{"text":"  book a   table for two "}`)
	clip := writeClip(t)

	rec := NewWhisperRecognizer("sk-test", srv.URL+"/v1", "", nil, func(context.Context) (string, error) {
		return clip, nil
	})
	text, err := rec.Recognize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "book a table for two", text)
}

func TestWhisperRecognizer_EmptyTranscript(t *testing.T) {
	srv := newTranscriptionServer(t, http.StatusOK, `{"text":"   "}`)
	clip := writeClip(t)

	rec := NewWhisperRecognizer("sk-test", srv.URL+"/v1", "", nil, func(context.Context) (string, error) {
		return clip, nil
	})
	_, err := rec.Recognize(context.Background())
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestWhisperRecognizer_Failures(t *testing.T) {
	srv := newTranscriptionServer(t, http.StatusInternalServerError, `{"error":{"message":"down"}}`)
	clip := writeClip(t)

	rec := NewWhisperRecognizer("sk-test", srv.URL+"/v1", "", nil, func(context.Context) (string, error) {
		return clip, nil
	})
	_, err := rec.Recognize(context.Background())
	assert.Error(t, err)

	noClip := errors.New("no clip queued")
	rec = NewWhisperRecognizer("sk-test", srv.URL+"/v1", "", nil, func(context.Context) (string, error) {
		return "", noClip
	})
	_, err = rec.Recognize(context.Background())
	assert.ErrorIs(t, err, noClip)

	rec = NewWhisperRecognizer("sk-test", srv.URL+"/v1", "", nil, nil)
	_, err = rec.Recognize(context.Background())
	assert.ErrorIs(t, err, ErrSpeechUnsupported)
}

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return http.DefaultTransport.RoundTrip(r)
}

func TestWhisperRecognizer_UsesGivenHTTPClient(t *testing.T) {
	srv := newTranscriptionServer(t, http.StatusOK, `{"text":"hello"}`)
	clip := writeClip(t)
	transport := &countingTransport{}

	rec := NewWhisperRecognizer("sk-test", srv.URL+"/v1", "", &http.Client{Transport: transport}, func(context.Context) (string, error) {
		return clip, nil
	})
	text, err := rec.Recognize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, int32(1), transport.calls.Load())
}
