package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sehatline/sehatline/internal/config"
)

// GoogleClient implements Transcriber and Synthesizer against the Google
// Cloud Speech REST APIs. WhatsApp voice notes arrive as OGG/Opus.
type GoogleClient struct {
	httpClient *http.Client
	apiKey     string
	sttURL     string
	ttsURL     string
}

func NewGoogleClient(cfg config.SpeechConfig, timeout time.Duration) *GoogleClient {
	return &GoogleClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		sttURL:     strings.TrimRight(cfg.STTURL, "/"),
		ttsURL:     strings.TrimRight(cfg.TTSURL, "/"),
	}
}

type recognizeRequest struct {
	Config recognizeConfig `json:"config"`
	Audio  recognizeAudio  `json:"audio"`
}

type recognizeConfig struct {
	Encoding        string `json:"encoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	LanguageCode    string `json:"languageCode"`
}

type recognizeAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

func (c *GoogleClient) Transcribe(ctx context.Context, audio []byte, languageCode string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio payload", ErrTranscription)
	}

	body := recognizeRequest{
		Config: recognizeConfig{
			Encoding:        "OGG_OPUS",
			SampleRateHertz: 16000,
			LanguageCode:    languageCode,
		},
		Audio: recognizeAudio{Content: base64.StdEncoding.EncodeToString(audio)},
	}

	var resp recognizeResponse
	if err := c.post(ctx, c.sttURL+"/v1/speech:recognize", body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	var sb strings.Builder
	for _, r := range resp.Results {
		if len(r.Alternatives) > 0 {
			sb.WriteString(r.Alternatives[0].Transcript)
		}
	}
	transcript := strings.TrimSpace(sb.String())
	if transcript == "" {
		return "", fmt.Errorf("%w: empty transcript", ErrTranscription)
	}
	return transcript, nil
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

func (c *GoogleClient) Synthesize(ctx context.Context, text, languageCode, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrSynthesis)
	}

	var body synthesizeRequest
	body.Input.Text = text
	body.Voice.LanguageCode = languageCode
	body.Voice.Name = voice
	body.AudioConfig.AudioEncoding = "OGG_OPUS"

	var resp synthesizeResponse
	if err := c.post(ctx, c.ttsURL+"/v1/text:synthesize", body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding audio content: %v", ErrSynthesis, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio content", ErrSynthesis)
	}
	return audio, nil
}

func (c *GoogleClient) post(ctx context.Context, url string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"?key="+c.apiKey, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(respBody)
}
