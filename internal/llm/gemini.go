package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sehatline/sehatline/internal/config"
)

// GeminiClient implements Responder and retrieval.Embedder against the
// generateContent / embedContent REST endpoints.
type GeminiClient struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
	embedModel string
	maxHistory int
	topK       int
}

func NewGeminiClient(cfg config.LLMConfig, timeout time.Duration, maxHistory, topK int) *GeminiClient {
	return &GeminiClient{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		embedModel: cfg.EmbedModel,
		maxHistory: maxHistory,
		topK:       topK,
	}
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
	Role  string         `json:"role,omitempty"`
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
}

// Respond generates a reply for the request, bounding prompt size before
// construction.
func (c *GeminiClient) Respond(ctx context.Context, req Request) (string, error) {
	prompt := buildPrompt(req, c.maxHistory, c.topK)

	var body generateRequest
	body.Contents = []generateContent{{Parts: []generatePart{{Text: prompt}}}}
	body.GenerationConfig.Temperature = 0.3
	body.GenerationConfig.MaxOutputTokens = 500

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.apiURL, c.model)

	var resp generateResponse
	if err := c.post(ctx, url, body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 {
		for _, p := range resp.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	reply := strings.TrimSpace(sb.String())
	if reply == "" {
		return "", fmt.Errorf("%w: empty model output", ErrGeneration)
	}
	return reply, nil
}

type embedRequest struct {
	Content generateContent `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the query embedding used by protocol vector search.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body := embedRequest{Content: generateContent{Parts: []generatePart{{Text: text}}}}
	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent", c.apiURL, c.embedModel)

	var resp embedResponse
	if err := c.post(ctx, url, body, &resp); err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embedding text: empty embedding")
	}
	return resp.Embedding.Values, nil
}

func (c *GeminiClient) post(ctx context.Context, url string, reqBody, respBody any) error {
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
