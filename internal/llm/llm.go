// Package llm generates user-facing replies through a generative language
// model, conditioned on retrieved passages and recent conversation history.
package llm

import (
	"context"
	"errors"

	"github.com/sehatline/sehatline/internal/conversation"
	"github.com/sehatline/sehatline/internal/retrieval"
)

// ErrGeneration covers upstream failures and empty model output. There is no
// canned fallback reply: a health-information answer is either generated or
// the turn fails.
var ErrGeneration = errors.New("response generation failed")

// Request carries everything a reply is conditioned on. History and Passages
// are truncated by the responder before prompt construction.
type Request struct {
	Message  string
	History  []conversation.Turn
	Passages []retrieval.Passage
	Language conversation.Language
}

// Responder produces a natural-language reply in the requested language.
type Responder interface {
	Respond(ctx context.Context, req Request) (string, error)
}
