package whatsapp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/sehatline/sehatline/internal/metrics"
	inats "github.com/sehatline/sehatline/internal/nats"
)

// Sender is the subset of the gateway the deliverer needs.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
	SendAudio(ctx context.Context, to, mediaID string) error
	UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Deliverer consumes outbound messages and pushes them through the
// gateway. Voice replies that fail to upload or send degrade to their
// text body rather than being dropped.
type Deliverer struct {
	sender      Sender
	consumerMgr *inats.ConsumerManager
}

func NewDeliverer(sender Sender, consumerMgr *inats.ConsumerManager) *Deliverer {
	return &Deliverer{sender: sender, consumerMgr: consumerMgr}
}

// Start begins the delivery loop. It returns when ctx is canceled.
func (d *Deliverer) Start(ctx context.Context) error {
	consumer, err := d.consumerMgr.EnsureConsumer(ctx, inats.StreamMessages, "deliverer", inats.SubjectOutboundMessage)
	if err != nil {
		return err
	}

	slog.Info("deliverer started", "consumer", "deliverer")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("fetching outbound messages", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			d.processMessage(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (d *Deliverer) processMessage(ctx context.Context, msg jetstream.Msg) {
	var outbound inats.OutboundMessage
	if err := json.Unmarshal(msg.Data(), &outbound); err != nil {
		// A payload that does not decode will not decode on redelivery.
		slog.Error("unmarshaling outbound message", "error", err)
		_ = msg.Term()
		return
	}

	if err := d.Deliver(ctx, outbound); err != nil {
		slog.Error("delivering message", "error", err, "id", outbound.ID, "to", outbound.UserID)
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()
}

// Deliver sends one outbound message through the gateway.
func (d *Deliverer) Deliver(ctx context.Context, outbound inats.OutboundMessage) error {
	if outbound.Kind == inats.KindVoice && len(outbound.Audio) > 0 {
		err := d.deliverVoice(ctx, outbound)
		if err == nil {
			metrics.DeliveriesTotal.WithLabelValues("voice").Inc()
			return nil
		}
		slog.Warn("voice delivery failed, falling back to text",
			"error", err, "id", outbound.ID, "to", outbound.UserID)
	}

	if err := d.sender.SendText(ctx, outbound.UserID, outbound.Body); err != nil {
		return err
	}

	status := "text"
	if outbound.Kind == inats.KindVoice {
		status = "text_fallback"
	}
	metrics.DeliveriesTotal.WithLabelValues(status).Inc()
	return nil
}

func (d *Deliverer) deliverVoice(ctx context.Context, outbound inats.OutboundMessage) error {
	mediaID, err := d.sender.UploadMedia(ctx, outbound.Audio, "audio/ogg")
	if err != nil {
		return err
	}
	return d.sender.SendAudio(ctx, outbound.UserID, mediaID)
}
