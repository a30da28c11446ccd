package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sehatline/sehatline/internal/conversation"
	"github.com/sehatline/sehatline/internal/llm"
	"github.com/sehatline/sehatline/internal/metrics"
	inats "github.com/sehatline/sehatline/internal/nats"
	"github.com/sehatline/sehatline/internal/retrieval"
)

// runTurn executes the full question-answer pipeline for an onboarded user:
// transcription, retrieval, generation, synthesis, context update, delivery.
func (o *Orchestrator) runTurn(ctx context.Context, inbound inats.InboundMessage, convo *conversation.Context) {
	question, ok := o.resolveQuestion(ctx, inbound, convo)
	if !ok {
		return
	}

	passages := o.retrieve(ctx, question)

	start := time.Now()
	answer, err := o.responder.Respond(ctx, llm.Request{
		Message:  question,
		History:  convo.History,
		Passages: passages,
		Language: convo.Language,
	})
	metrics.StageDuration.WithLabelValues("respond").Observe(time.Since(start).Seconds())
	if err != nil {
		// The turn is abandoned: history and TTL stay untouched so a retry
		// of the same question sees identical state. A dead turn context
		// means the deadline notice is already on its way; stay quiet.
		slog.Error("generating reply", "error", err, "user", convo.UserID)
		if ctx.Err() != nil {
			return
		}
		metrics.TurnsTotal.WithLabelValues("failed").Inc()
		o.reply(ctx, inbound, localized(tryAgainNotices, convo.Language))
		return
	}

	out := inats.OutboundMessage{
		ID:        uuid.New().String(),
		UserID:    convo.UserID,
		Kind:      inats.KindText,
		Body:      answer,
		InReplyTo: inbound.ID,
	}

	if convo.Mode == conversation.ModeVoice {
		out.Kind = inats.KindVoice
		out.Audio = o.synthesize(ctx, answer, convo)
	} else if inbound.Kind == inats.KindVoice {
		// Voice question answered in text mode: remind how to switch.
		out.Body += "\n\n" + localized(modeMismatchHints, convo.Language)
	}

	convo.AppendTurn("user", question, o.limits.HistoryMax)
	convo.AppendTurn("assistant", answer, o.limits.HistoryMax)
	convo.LastActiveAt = time.Now().UTC()
	if err := o.store.Save(ctx, convo); err != nil {
		// The answer is already generated; deliver it even if persistence
		// failed, and let the next turn rebuild from whatever state remains.
		slog.Error("saving conversation context", "error", err, "user", convo.UserID)
	}

	if err := o.publisher.PublishOutbound(ctx, out); err != nil {
		slog.Error("publishing outbound message", "error", err, "user", convo.UserID)
		metrics.TurnsTotal.WithLabelValues("failed").Inc()
		return
	}

	metrics.TurnsTotal.WithLabelValues("completed").Inc()
}

// resolveQuestion produces the text form of the user's message, transcribing
// voice notes when needed.
func (o *Orchestrator) resolveQuestion(ctx context.Context, inbound inats.InboundMessage, convo *conversation.Context) (string, bool) {
	if inbound.Kind == inats.KindText {
		return inbound.Text, true
	}

	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("transcribe").Observe(time.Since(start).Seconds())
	}()

	audio, err := o.media.FetchMedia(ctx, inbound.MediaID)
	if err != nil {
		slog.Error("fetching voice note", "error", err, "user", convo.UserID, "media", inbound.MediaID)
		if ctx.Err() != nil {
			return "", false
		}
		metrics.TurnsTotal.WithLabelValues("failed").Inc()
		o.reply(ctx, inbound, localized(transcriptionFailNotices, convo.Language))
		return "", false
	}

	var transcript string
	err = o.withSpeechRetry(ctx, func(callCtx context.Context) error {
		var tErr error
		transcript, tErr = o.transcriber.Transcribe(callCtx, audio, convo.Language.STTCode())
		return tErr
	})
	if err != nil {
		slog.Error("transcribing voice note", "error", err, "user", convo.UserID)
		if ctx.Err() != nil {
			return "", false
		}
		metrics.TurnsTotal.WithLabelValues("failed").Inc()
		o.reply(ctx, inbound, localized(transcriptionFailNotices, convo.Language))
		return "", false
	}

	return transcript, true
}

// retrieve grounds the question against the knowledge base. The doctor
// directory is consulted first; treatment protocols answer everything it
// cannot. Retrieval failure degrades to an ungrounded reply rather than
// failing the turn.
func (o *Orchestrator) retrieve(ctx context.Context, question string) []retrieval.Passage {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("retrieve").Observe(time.Since(start).Seconds())
	}()

	passages, err := o.retriever.Retrieve(ctx, question, retrieval.DomainDoctors, o.limits.RetrievalTopK)
	if err != nil {
		slog.Warn("doctor retrieval failed", "error", err)
	}
	if len(passages) > 0 {
		return passages
	}

	passages, err = o.retriever.Retrieve(ctx, question, retrieval.DomainProtocols, o.limits.RetrievalTopK)
	if err != nil {
		slog.Warn("protocol retrieval failed", "error", err)
		return nil
	}
	return passages
}

// synthesize renders the answer as speech, returning nil when synthesis is
// unavailable so delivery degrades to the text body.
func (o *Orchestrator) synthesize(ctx context.Context, answer string, convo *conversation.Context) []byte {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("synthesize").Observe(time.Since(start).Seconds())
	}()

	var audio []byte
	err := o.withSpeechRetry(ctx, func(callCtx context.Context) error {
		var sErr error
		audio, sErr = o.synthesizer.Synthesize(callCtx, answer, convo.Language.TTSCode(), convo.Language.TTSVoice())
		return sErr
	})
	if err != nil {
		slog.Warn("synthesizing reply, degrading to text", "error", err, "user", convo.UserID)
		return nil
	}
	return audio
}
