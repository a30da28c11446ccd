package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehatline/sehatline/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) *GoogleClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGoogleClient(config.SpeechConfig{
		STTURL: srv.URL,
		TTSURL: srv.URL,
		APIKey: "test-key",
	}, 5*time.Second)
}

func TestGoogleClient_Transcribe(t *testing.T) {
	var gotLang string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/speech:recognize", r.URL.Path)
		require.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req recognizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotLang = req.Config.LanguageCode

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"alternatives": []map[string]any{{"transcript": "mujhe bukhar hai", "confidence": 0.92}}},
			},
		})
	}))

	text, err := client.Transcribe(context.Background(), []byte("opus-bytes"), "ur-PK")
	require.NoError(t, err)
	assert.Equal(t, "mujhe bukhar hai", text)
	assert.Equal(t, "ur-PK", gotLang)
}

func TestGoogleClient_TranscribeEmptyResult(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))

	_, err := client.Transcribe(context.Background(), []byte("opus-bytes"), "ur-PK")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTranscription)
}

func TestGoogleClient_TranscribeUpstreamError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))

	_, err := client.Transcribe(context.Background(), []byte("opus-bytes"), "ur-PK")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTranscription)
}

func TestGoogleClient_TranscribeEmptyAudio(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty audio")
	}))

	_, err := client.Transcribe(context.Background(), nil, "ur-PK")
	assert.ErrorIs(t, err, ErrTranscription)
}

func TestGoogleClient_Synthesize(t *testing.T) {
	audio := []byte("ogg-audio")
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/text:synthesize", r.URL.Path)

		var req synthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ur-PK", req.Voice.LanguageCode)
		assert.Equal(t, "ur-PK-Standard-A", req.Voice.Name)

		json.NewEncoder(w).Encode(map[string]string{
			"audioContent": base64.StdEncoding.EncodeToString(audio),
		})
	}))

	got, err := client.Synthesize(context.Background(), "aap ka shukria", "ur-PK", "ur-PK-Standard-A")
	require.NoError(t, err)
	assert.Equal(t, audio, got)
}

func TestGoogleClient_SynthesizeEmptyAudio(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"audioContent": ""})
	}))

	_, err := client.Synthesize(context.Background(), "hello", "en-US", "en-US-Standard-C")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSynthesis)
}
