package whatsapp

// Envelope is the payload the WhatsApp Business Cloud API posts to the
// webhook. Only the fields the pipeline consumes are mapped.
type Envelope struct {
	Object string  `json:"object" validate:"required,eq=whatsapp_business_account"`
	Entry  []Entry `json:"entry" validate:"required,min=1,dive"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes" validate:"dive"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages" validate:"dive"`
	Statuses         []Status  `json:"statuses"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type Message struct {
	ID        string `json:"id" validate:"required"`
	From      string `json:"from" validate:"required"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type" validate:"required"`

	Text  *TextBody  `json:"text,omitempty"`
	Audio *MediaBody `json:"audio,omitempty"`
	Voice *MediaBody `json:"voice,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

type MediaBody struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
}

// Status is a delivery receipt for a previously sent message. The
// pipeline acknowledges but does not act on these.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}
