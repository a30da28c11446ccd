package whatsapp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sehatline/sehatline/internal/api"
	"github.com/sehatline/sehatline/internal/metrics"
	inats "github.com/sehatline/sehatline/internal/nats"
)

// InboundPublisher enqueues received messages for asynchronous processing.
type InboundPublisher interface {
	PublishInbound(ctx context.Context, msg inats.InboundMessage) error
}

// ReadMarker sends read receipts for received messages.
type ReadMarker interface {
	MarkRead(ctx context.Context, messageID string) error
}

// Handler terminates the WhatsApp webhook: the GET verification handshake
// and the POST event feed. Events are acknowledged immediately and handed
// to the message stream; all heavy work happens downstream.
type Handler struct {
	verifyToken string
	publisher   InboundPublisher
	reader      ReadMarker
	validate    *validator.Validate
}

func NewHandler(verifyToken string, publisher InboundPublisher, reader ReadMarker) *Handler {
	return &Handler{
		verifyToken: verifyToken,
		publisher:   publisher,
		reader:      reader,
		validate:    validator.New(),
	}
}

// Verify answers the subscription handshake: echoes hub.challenge as plain
// text when the verify token matches, 403 otherwise.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		slog.Warn("webhook verification rejected", "mode", mode)
		api.HandleError(w, api.ErrVerifyTokenMatch)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// Receive parses an event envelope and publishes each user message to the
// inbound stream. It always answers 200 for well-formed envelopes so the
// platform does not retry delivery while the turn is still processing.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	var env Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		api.HandleError(w, api.NewBadRequestError("malformed payload"))
		return
	}
	if err := h.validate.Struct(env); err != nil {
		api.HandleError(w, api.NewValidationError("unexpected webhook payload"))
		return
	}

	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				h.ingest(r.Context(), msg)
			}
		}
	}

	api.JSONMessage(w, http.StatusOK, "received")
}

func (h *Handler) ingest(ctx context.Context, msg Message) {
	inbound := inats.InboundMessage{
		ID:         msg.ID,
		UserID:     msg.From,
		ReceivedAt: parseTimestamp(msg.Timestamp),
	}

	switch {
	case msg.Type == "text" && msg.Text != nil:
		inbound.Kind = inats.KindText
		inbound.Text = msg.Text.Body
	case msg.Type == "audio" && msg.Audio != nil:
		inbound.Kind = inats.KindVoice
		inbound.MediaID = msg.Audio.ID
	case msg.Type == "voice" && msg.Voice != nil:
		inbound.Kind = inats.KindVoice
		inbound.MediaID = msg.Voice.ID
	default:
		inbound.Kind = inats.KindUnsupported
	}

	metrics.WebhookEventsTotal.WithLabelValues(inbound.Kind).Inc()

	if err := h.publisher.PublishInbound(ctx, inbound); err != nil {
		slog.Error("publishing inbound message", "error", err, "id", inbound.ID)
		return
	}

	if h.reader != nil {
		// Read receipt is best-effort and must not delay the 200.
		go func(id string) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.reader.MarkRead(ctx, id); err != nil {
				slog.Debug("marking message read", "error", err, "id", id)
			}
		}(inbound.ID)
	}
}

func parseTimestamp(s string) time.Time {
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC()
	}
	return time.Now().UTC()
}
