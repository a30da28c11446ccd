package nats

import "time"

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamMessages carries both directions of channel traffic.
const StreamMessages = "SEHAT_MESSAGES"

// Subject constants.
const (
	SubjectInboundMessage  = "sehat.messages.inbound"
	SubjectOutboundMessage = "sehat.messages.outbound"
)

// Message kinds shared by both directions. Unsupported marks inbound
// content the pipeline cannot process (images, stickers, locations); the
// orchestrator answers those with a notice instead of a model reply.
const (
	KindText        = "text"
	KindVoice       = "voice"
	KindUnsupported = "unsupported"
)

// InboundMessage is published when a webhook event arrives. It is transient:
// never persisted beyond processing.
type InboundMessage struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Kind       string    `json:"kind"`
	Text       string    `json:"text,omitempty"`
	MediaID    string    `json:"media_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// OutboundMessage is published to deliver a reply through the channel
// gateway. Audio carries synthesized speech for voice replies; Body is kept
// alongside it so delivery can degrade to text.
type OutboundMessage struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Kind      string `json:"kind"`
	Body      string `json:"body,omitempty"`
	Audio     []byte `json:"audio,omitempty"`
	InReplyTo string `json:"in_reply_to,omitempty"`
}
