package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inats "github.com/sehatline/sehatline/internal/nats"
)

type capturePublisher struct {
	published []inats.InboundMessage
	err       error
}

func (p *capturePublisher) PublishInbound(_ context.Context, msg inats.InboundMessage) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

func TestVerify_EchoesChallenge(t *testing.T) {
	h := NewHandler("secret-token", &capturePublisher{}, nil)

	req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}

func TestVerify_RejectsBadToken(t *testing.T) {
	h := NewHandler("secret-token", &capturePublisher{}, nil)

	req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "12345")
}

func TestVerify_RejectsMissingMode(t *testing.T) {
	h := NewHandler("secret-token", &capturePublisher{}, nil)

	req := httptest.NewRequest("GET", "/webhook?hub.verify_token=secret-token&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

const textEnvelope = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"id": "entry-1",
		"changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"metadata": {"phone_number_id": "1234"},
				"messages": [{
					"id": "wamid.abc",
					"from": "923001234567",
					"timestamp": "1717000000",
					"type": "text",
					"text": {"body": "salam"}
				}]
			}
		}]
	}]
}`

const voiceEnvelope = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"id": "entry-1",
		"changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"messages": [{
					"id": "wamid.voice",
					"from": "923001234567",
					"timestamp": "1717000000",
					"type": "audio",
					"audio": {"id": "media-99", "mime_type": "audio/ogg"}
				}]
			}
		}]
	}]
}`

func TestReceive_PublishesTextMessage(t *testing.T) {
	pub := &capturePublisher{}
	h := NewHandler("secret-token", pub, nil)

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(textEnvelope))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pub.published, 1)

	msg := pub.published[0]
	assert.Equal(t, "wamid.abc", msg.ID)
	assert.Equal(t, "923001234567", msg.UserID)
	assert.Equal(t, inats.KindText, msg.Kind)
	assert.Equal(t, "salam", msg.Text)
	assert.Equal(t, int64(1717000000), msg.ReceivedAt.Unix())
}

func TestReceive_PublishesVoiceMessage(t *testing.T) {
	pub := &capturePublisher{}
	h := NewHandler("secret-token", pub, nil)

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(voiceEnvelope))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pub.published, 1)

	msg := pub.published[0]
	assert.Equal(t, inats.KindVoice, msg.Kind)
	assert.Equal(t, "media-99", msg.MediaID)
	assert.Empty(t, msg.Text)
}

func TestReceive_UnsupportedTypeStillPublished(t *testing.T) {
	envelope := strings.Replace(textEnvelope, `"type": "text",
					"text": {"body": "salam"}`, `"type": "image"`, 1)

	pub := &capturePublisher{}
	h := NewHandler("secret-token", pub, nil)

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(envelope))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pub.published, 1)
	assert.Equal(t, inats.KindUnsupported, pub.published[0].Kind)
}

func TestReceive_MalformedBody(t *testing.T) {
	h := NewHandler("secret-token", &capturePublisher{}, nil)

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceive_WrongObjectRejected(t *testing.T) {
	envelope := strings.Replace(textEnvelope, "whatsapp_business_account", "instagram", 1)

	pub := &capturePublisher{}
	h := NewHandler("secret-token", pub, nil)

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(envelope))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, pub.published)
}

func TestReceive_StatusOnlyEnvelope(t *testing.T) {
	envelope := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "entry-1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"statuses": [{"id": "wamid.abc", "status": "delivered", "recipient_id": "923001234567"}]
				}
			}]
		}]
	}`

	pub := &capturePublisher{}
	h := NewHandler("secret-token", pub, nil)

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(envelope))
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, pub.published)
}
