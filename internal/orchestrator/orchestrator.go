// Package orchestrator drives one conversation turn end to end: admission,
// onboarding, the speech/retrieval/generation pipeline and reply publishing.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"

	"github.com/sehatline/sehatline/internal/config"
	"github.com/sehatline/sehatline/internal/conversation"
	"github.com/sehatline/sehatline/internal/llm"
	"github.com/sehatline/sehatline/internal/metrics"
	inats "github.com/sehatline/sehatline/internal/nats"
	"github.com/sehatline/sehatline/internal/ratelimit"
	"github.com/sehatline/sehatline/internal/retrieval"
	"github.com/sehatline/sehatline/internal/speech"
)

// ContextStore persists per-user conversation state.
type ContextStore interface {
	Load(ctx context.Context, userID string) (*conversation.Context, error)
	Save(ctx context.Context, c *conversation.Context) error
	Clear(ctx context.Context, userID string) error
}

// Admitter decides whether a user message may consume a turn.
type Admitter interface {
	Admit(ctx context.Context, userID string) (ratelimit.Decision, error)
}

// Retriever answers a query against one knowledge domain.
type Retriever interface {
	Retrieve(ctx context.Context, query string, domain retrieval.Domain, topK int) ([]retrieval.Passage, error)
}

// MediaFetcher downloads inbound voice notes from the channel.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, mediaID string) ([]byte, error)
}

// OutboundPublisher hands finished replies to the delivery stream.
type OutboundPublisher interface {
	PublishOutbound(ctx context.Context, msg inats.OutboundMessage) error
}

// Orchestrator consumes inbound messages and produces outbound replies.
// Messages from one user are processed strictly in arrival order; different
// users proceed in parallel.
type Orchestrator struct {
	store       ContextStore
	limiter     Admitter
	retriever   Retriever
	responder   llm.Responder
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	media       MediaFetcher
	publisher   OutboundPublisher
	dedup       redis.Cmdable
	consumerMgr *inats.ConsumerManager
	limits      config.LimitsConfig
	serial      *serializer
}

func New(
	store ContextStore,
	limiter Admitter,
	retriever Retriever,
	responder llm.Responder,
	transcriber speech.Transcriber,
	synthesizer speech.Synthesizer,
	media MediaFetcher,
	publisher OutboundPublisher,
	dedup redis.Cmdable,
	consumerMgr *inats.ConsumerManager,
	limits config.LimitsConfig,
) *Orchestrator {
	return &Orchestrator{
		store:       store,
		limiter:     limiter,
		retriever:   retriever,
		responder:   responder,
		transcriber: transcriber,
		synthesizer: synthesizer,
		media:       media,
		publisher:   publisher,
		dedup:       dedup,
		consumerMgr: consumerMgr,
		limits:      limits,
		serial:      newSerializer(),
	}
}

// Start begins the orchestrator event loop. It returns when ctx is canceled,
// after in-flight turns drain.
func (o *Orchestrator) Start(ctx context.Context) error {
	consumer, err := o.consumerMgr.EnsureConsumer(ctx, inats.StreamMessages, "orchestrator", inats.SubjectInboundMessage)
	if err != nil {
		return err
	}

	slog.Info("orchestrator started", "consumer", "orchestrator")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				o.serial.Wait()
				return nil
			}
			slog.Debug("fetching inbound messages", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			o.dispatch(ctx, msg)
		}

		if ctx.Err() != nil {
			o.serial.Wait()
			return nil
		}
	}
}

// dispatch routes a raw stream message into the per-user serial queue, so
// fetch order becomes processing order within each user.
func (o *Orchestrator) dispatch(ctx context.Context, msg jetstream.Msg) {
	var inbound inats.InboundMessage
	if err := json.Unmarshal(msg.Data(), &inbound); err != nil {
		// A payload that does not decode will not decode on redelivery.
		slog.Error("unmarshaling inbound message", "error", err)
		_ = msg.Term()
		return
	}

	o.serial.Submit(inbound.UserID, func() {
		o.HandleInbound(ctx, inbound)
		_ = msg.Ack()
	})
}

// HandleInbound processes one inbound message under the turn deadline. A turn
// that blows the deadline is abandoned, not awaited: the user gets one
// "experiencing delays" notice, sent on a fresh context since the turn's own
// context is already dead.
func (o *Orchestrator) HandleInbound(ctx context.Context, inbound inats.InboundMessage) {
	turnCtx, cancel := context.WithTimeout(ctx, o.limits.TurnTimeout)
	defer cancel()

	lang := o.process(turnCtx, inbound)

	if errors.Is(turnCtx.Err(), context.DeadlineExceeded) {
		metrics.TurnsTotal.WithLabelValues("deadline").Inc()
		noticeCtx, noticeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer noticeCancel()
		o.reply(noticeCtx, inbound, localized(delayNotices, lang))
	}
}

func (o *Orchestrator) process(ctx context.Context, inbound inats.InboundMessage) conversation.Language {
	if o.alreadySeen(ctx, inbound.ID) {
		slog.Debug("skipping duplicate event", "id", inbound.ID, "user", inbound.UserID)
		metrics.TurnsTotal.WithLabelValues("duplicate").Inc()
		return conversation.LanguageEnglish
	}

	convo, err := o.store.Load(ctx, inbound.UserID)
	if err != nil {
		slog.Error("loading conversation context", "error", err, "user", inbound.UserID)
		metrics.TurnsTotal.WithLabelValues("store_unavailable").Inc()
		o.reply(ctx, inbound, localized(tryAgainNotices, conversation.LanguageEnglish))
		return conversation.LanguageEnglish
	}
	if convo == nil {
		convo = conversation.New(inbound.UserID)
	}

	decision, err := o.limiter.Admit(ctx, inbound.UserID)
	if err != nil {
		// Admission fails open: a limiter outage should not silence users.
		slog.Warn("rate limiter unavailable, admitting", "error", err, "user", inbound.UserID)
	} else if !decision.Allowed {
		metrics.RateLimitedTotal.Inc()
		metrics.TurnsTotal.WithLabelValues("rate_limited").Inc()
		// Notify only on the first rejection of the window so the notice
		// itself cannot flood the user.
		if decision.Count == o.limits.RateMax+1 {
			o.reply(ctx, inbound, localized(rateLimitNotices, convo.Language))
		}
		return convo.Language
	}

	if inbound.Kind == inats.KindUnsupported {
		metrics.TurnsTotal.WithLabelValues("unsupported").Inc()
		o.reply(ctx, inbound, localized(unsupportedKindNotices, convo.Language))
		return convo.Language
	}

	if !convo.Onboarded() {
		o.handleOnboarding(ctx, inbound, convo)
		return convo.Language
	}

	if inbound.Kind == inats.KindText {
		if cmd := parseCommand(inbound.Text); cmd != cmdNone {
			o.handleCommand(ctx, inbound, convo, cmd)
			return convo.Language
		}
	}

	o.runTurn(ctx, inbound, convo)
	return convo.Language
}

// alreadySeen marks the event ID and reports whether it was marked before.
// The marker outlives the context TTL so redelivered events stay suppressed.
// On Redis failure it reports false: processing twice beats dropping.
func (o *Orchestrator) alreadySeen(ctx context.Context, eventID string) bool {
	if eventID == "" {
		return false
	}
	ttl := 2 * time.Duration(o.limits.ContextTTLSec) * time.Second
	ok, err := o.dedup.SetNX(ctx, "seen:"+eventID, 1, ttl).Result()
	if err != nil {
		slog.Warn("dedup check failed", "error", err, "id", eventID)
		return false
	}
	return !ok
}

func (o *Orchestrator) handleOnboarding(ctx context.Context, inbound inats.InboundMessage, convo *conversation.Context) {
	// Menu selections are text only. A voice note mid-onboarding is treated
	// as an invalid selection, not transcribed. A brand-new user still gets
	// the welcome menu whatever they sent first.
	if inbound.Kind != inats.KindText && convo.State != conversation.StateNew {
		metrics.TurnsTotal.WithLabelValues("onboarding").Inc()
		notice := localized(voiceDuringOnboardingNotices, convo.Language)
		switch convo.State {
		case conversation.StateAwaitingMode:
			notice += "\n\n" + localized(modeMenus, convo.Language)
		default:
			notice += "\n\n" + languageMenu
		}
		o.reply(ctx, inbound, notice)
		return
	}

	var out string
	switch convo.State {
	case conversation.StateNew:
		convo.Advance(conversation.StateAwaitingLanguage)
		out = welcomeMenu

	case conversation.StateAwaitingLanguage:
		lang, ok := parseLanguageSelection(inbound.Text)
		if !ok {
			out = invalidLanguageNotice
			break
		}
		convo.Language = lang
		convo.Advance(conversation.StateAwaitingMode)
		out = localized(modeMenus, lang)

	case conversation.StateAwaitingMode:
		mode, ok := parseModeSelection(inbound.Text)
		if !ok {
			out = localized(invalidModeNotices, convo.Language) + "\n\n" + localized(modeMenus, convo.Language)
			break
		}
		convo.Mode = mode
		convo.Advance(conversation.StateActive)
		out = localized(readyMessages, convo.Language)
	}

	convo.LastActiveAt = time.Now().UTC()
	if err := o.store.Save(ctx, convo); err != nil {
		slog.Error("saving conversation context", "error", err, "user", convo.UserID)
		metrics.TurnsTotal.WithLabelValues("store_unavailable").Inc()
		o.reply(ctx, inbound, localized(tryAgainNotices, convo.Language))
		return
	}

	metrics.TurnsTotal.WithLabelValues("onboarding").Inc()
	o.reply(ctx, inbound, out)
}

func (o *Orchestrator) handleCommand(ctx context.Context, inbound inats.InboundMessage, convo *conversation.Context, cmd command) {
	var out string
	switch cmd {
	case cmdLanguage:
		convo.Advance(conversation.StateAwaitingLanguage)
		out = languageMenu
	case cmdMode:
		convo.Advance(conversation.StateAwaitingMode)
		out = localized(modeMenus, convo.Language)
	case cmdSettings:
		out = settingsText(convo)
	case cmdHelp:
		out = localized(helpTexts, convo.Language)
	}

	convo.LastActiveAt = time.Now().UTC()
	if err := o.store.Save(ctx, convo); err != nil {
		slog.Error("saving conversation context", "error", err, "user", convo.UserID)
	}

	metrics.TurnsTotal.WithLabelValues("command").Inc()
	o.reply(ctx, inbound, out)
}

// reply publishes a system-originated text message (menus, notices).
func (o *Orchestrator) reply(ctx context.Context, inbound inats.InboundMessage, body string) {
	out := inats.OutboundMessage{
		ID:        uuid.New().String(),
		UserID:    inbound.UserID,
		Kind:      inats.KindText,
		Body:      body,
		InReplyTo: inbound.ID,
	}
	if err := o.publisher.PublishOutbound(ctx, out); err != nil {
		slog.Error("publishing outbound message", "error", err, "user", inbound.UserID)
	}
}

// withSpeechRetry runs fn under the per-call timeout and retries exactly once
// after a short backoff. The turn deadline still bounds the whole attempt.
func (o *Orchestrator) withSpeechRetry(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, o.limits.CallTimeout)
	err := fn(callCtx)
	cancel()
	if err == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return err
	case <-time.After(500 * time.Millisecond):
	}

	callCtx, cancel = context.WithTimeout(ctx, o.limits.CallTimeout)
	defer cancel()
	if retryErr := fn(callCtx); retryErr != nil {
		return errors.Join(err, retryErr)
	}
	return nil
}
