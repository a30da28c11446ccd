package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sehatline/sehatline/internal/config"
)

// Gateway talks to the WhatsApp Business Cloud API: sending replies,
// uploading synthesized audio, fetching voice notes and acknowledging
// receipts.
type Gateway struct {
	httpClient    *http.Client
	apiURL        string
	phoneNumberID string
	accessToken   string
}

func NewGateway(cfg config.WhatsAppConfig) *Gateway {
	return &Gateway{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		apiURL:        cfg.APIURL,
		phoneNumberID: cfg.PhoneNumberID,
		accessToken:   cfg.AccessToken,
	}
}

// SendText delivers a text message to the given phone number.
func (g *Gateway) SendText(ctx context.Context, to, body string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	return g.postJSON(ctx, g.messagesURL(), payload, nil)
}

// SendAudio delivers a previously uploaded audio message.
func (g *Gateway) SendAudio(ctx context.Context, to, mediaID string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "audio",
		"audio":             map[string]string{"id": mediaID},
	}
	return g.postJSON(ctx, g.messagesURL(), payload, nil)
}

// MarkRead acknowledges a received message so the sender sees blue ticks.
func (g *Gateway) MarkRead(ctx context.Context, messageID string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	return g.postJSON(ctx, g.messagesURL(), payload, nil)
}

// UploadMedia uploads audio bytes and returns the platform media ID.
func (g *Gateway) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if err := mw.WriteField("type", mimeType); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	part, err := mw.CreateFormFile("file", "reply.ogg")
	if err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}

	url := fmt.Sprintf("%s/%s/media", g.apiURL, g.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+g.accessToken)

	var out struct {
		ID string `json:"id"`
	}
	if err := g.do(req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("media upload returned no id")
	}
	return out.ID, nil
}

// FetchMedia resolves a media ID to its download URL and fetches the bytes.
func (g *Gateway) FetchMedia(ctx context.Context, mediaID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+"/"+mediaID, nil)
	if err != nil {
		return nil, fmt.Errorf("creating media lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)

	var meta struct {
		URL string `json:"url"`
	}
	if err := g.do(req, &meta); err != nil {
		return nil, err
	}
	if meta.URL == "" {
		return nil, fmt.Errorf("media %s has no download url", mediaID)
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating media download request: %w", err)
	}
	dlReq.Header.Set("Authorization", "Bearer "+g.accessToken)

	resp, err := g.httpClient.Do(dlReq)
	if err != nil {
		return nil, fmt.Errorf("downloading media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading media: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (g *Gateway) messagesURL() string {
	return fmt.Sprintf("%s/%s/messages", g.apiURL, g.phoneNumberID)
}

func (g *Gateway) postJSON(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.accessToken)

	return g.do(req, out)
}

func (g *Gateway) do(req *http.Request, out any) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling whatsapp api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading whatsapp response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp api status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding whatsapp response: %w", err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
