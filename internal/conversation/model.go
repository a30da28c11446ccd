package conversation

import "time"

// Language is the user's selected reply language. It is only ever set
// through an explicit menu selection, never inferred from message text.
type Language string

const (
	LanguageUnset     Language = ""
	LanguageUrdu      Language = "ur"
	LanguageEnglish   Language = "en"
	LanguageRomanUrdu Language = "ur-Latn"
)

// STTCode returns the speech-to-text recognition language for this language.
// Roman Urdu is spoken Urdu written in Latin script, so it shares the Urdu
// recognition model.
func (l Language) STTCode() string {
	switch l {
	case LanguageEnglish:
		return "en-US"
	default:
		return "ur-PK"
	}
}

// TTSCode returns the text-to-speech synthesis language.
func (l Language) TTSCode() string {
	switch l {
	case LanguageEnglish:
		return "en-US"
	default:
		return "ur-PK"
	}
}

// TTSVoice returns the synthesis voice name.
func (l Language) TTSVoice() string {
	switch l {
	case LanguageEnglish:
		return "en-US-Standard-C"
	default:
		return "ur-PK-Standard-A"
	}
}

// Mode is how the assistant replies to the user.
type Mode string

const (
	ModeUnset Mode = ""
	ModeText  Mode = "text"
	ModeVoice Mode = "voice"
)

// State identifies where a user is in the conversation flow.
type State string

const (
	StateNew              State = "new"
	StateAwaitingLanguage State = "awaiting_language"
	StateAwaitingMode     State = "awaiting_mode"
	StateActive           State = "active"
)

// transitions is the full set of legal state changes. The machine is
// cyclical: TTL expiry (a missing context) is the only reset back to new.
var transitions = map[State][]State{
	StateNew:              {StateAwaitingLanguage},
	StateAwaitingLanguage: {StateAwaitingLanguage, StateAwaitingMode},
	StateAwaitingMode:     {StateAwaitingMode, StateActive},
	StateActive:           {StateActive, StateAwaitingLanguage, StateAwaitingMode},
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Turn is a single message in the bounded conversation history.
type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Context is the per-user conversation state. The orchestrator holds a
// borrowed copy for the duration of one turn and must Save any mutation.
type Context struct {
	UserID       string    `json:"user_id"`
	State        State     `json:"state"`
	Language     Language  `json:"language"`
	Mode         Mode      `json:"mode"`
	History      []Turn    `json:"history"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// New returns a fresh context for a user with no unexpired state.
func New(userID string) *Context {
	now := time.Now().UTC()
	return &Context{
		UserID:       userID,
		State:        StateNew,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Advance moves the context to next if the transition is legal.
func (c *Context) Advance(next State) bool {
	if !c.State.CanTransition(next) {
		return false
	}
	c.State = next
	return true
}

// AppendTurn records a (role, content) entry and evicts the oldest entries
// beyond max. History only ever contains successfully completed exchanges.
func (c *Context) AppendTurn(role, content string, max int) {
	c.History = append(c.History, Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if max > 0 && len(c.History) > max {
		c.History = c.History[len(c.History)-max:]
	}
}

// Onboarded reports whether language and mode selection are complete.
func (c *Context) Onboarded() bool {
	return c.State == StateActive && c.Language != LanguageUnset && c.Mode != ModeUnset
}
