package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/kringlelabs/kringle/internal/cache"
	"github.com/kringlelabs/kringle/internal/notify"
	"github.com/kringlelabs/kringle/internal/phase"
	"github.com/kringlelabs/kringle/internal/profile"
	"github.com/kringlelabs/kringle/internal/prompts"
	"github.com/kringlelabs/kringle/internal/providers"
	"github.com/kringlelabs/kringle/internal/storage"
)

type rig struct {
	orch     *Orchestrator
	mock     *providers.MockClient
	recorder *notify.Recorder
	history  *History
	profiles profile.Store
	cache    *cache.Cache
}

func newRig(t *testing.T) *rig {
	t.Helper()

	db, err := storage.Open(storage.TestConfig())
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := cache.New(db, 0)
	profiles := profile.NewCachedStore(profile.NewBadgerStore(db), c, logger)
	history := NewHistory(c, logger)

	mock := providers.NewMockClient()
	mock.Latency = 0
	registry := providers.NewRegistry()
	registry.SetLogger(logger)
	registry.Register(providers.MockClientName, mock)
	registry.SetDefault(providers.MockClientName)

	recorder := notify.NewRecorder()

	return &rig{
		orch:     NewOrchestrator(profiles, history, registry, recorder, Config{}, logger),
		mock:     mock,
		recorder: recorder,
		history:  history,
		profiles: profiles,
		cache:    c,
	}
}

func (r *rig) seedProfile(t *testing.T, ph phase.Phase) *profile.Profile {
	t.Helper()
	p := &profile.Profile{
		Passcode: "ABC123",
		Name:     "Alex",
		Age:      8,
		Gender:   "boy",
		Facts:    []string{"has a cat named Waffles", "plays soccer on Saturdays"},
		Presents: []profile.Present{
			{Order: 1, Description: "a red bicycle"},
			{Order: 2, Description: "a science kit"},
		},
		Phase: ph,
	}
	if err := r.profiles.Put(context.Background(), p, false); err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}
	return p
}

func (r *rig) events(t *testing.T) []notify.Event {
	t.Helper()
	recorded := r.recorder.Events()
	out := make([]notify.Event, 0, len(recorded))
	for _, rec := range recorded {
		if rec.Topic != "ABC123" {
			t.Errorf("event published to topic %q, want ABC123", rec.Topic)
		}
		var e notify.Event
		if err := json.Unmarshal(rec.Payload, &e); err != nil {
			t.Fatalf("failed to decode event payload: %v", err)
		}
		out = append(out, e)
	}
	return out
}

func (r *rig) promptHistory(t *testing.T, key string) []providers.Message {
	t.Helper()
	msgs, err := r.history.LoadPrompt(context.Background(), key)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("failed to load prompt history %s: %v", key, err)
	}
	return msgs
}

func (r *rig) phaseOf(t *testing.T) phase.Phase {
	t.Helper()
	p, err := r.profiles.Get(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("failed to reload profile: %v", err)
	}
	return p.Phase
}

func TestHandleMessageBootstrap(t *testing.T) {
	r := newRig(t)
	r.seedProfile(t, phase.Unstarted)
	r.mock.Responses = []string{prompts.AckToken, "Ho ho! What is your cat's name?"}

	if err := r.orch.HandleMessage(context.Background(), "abc123", "Hi Santa!"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	// One setup call plus one streamed turn.
	if got := r.mock.RequestCount(); got != 2 {
		t.Errorf("provider requests = %d, want 2", got)
	}

	// Setup exchange (system, setup, ack) plus the turn's (user, agent).
	hist := r.promptHistory(t, PromptKey("ABC123", phase.Verifying))
	if len(hist) != 5 {
		t.Fatalf("prompt history length = %d, want 5", len(hist))
	}
	if hist[0].Role != providers.RoleSystem {
		t.Errorf("history[0].Role = %q, want system", hist[0].Role)
	}
	if hist[2].Content != prompts.AckToken {
		t.Errorf("history[2].Content = %q, want ack", hist[2].Content)
	}
	if hist[3].Role != providers.RoleUser || hist[3].Content != "Hi Santa!" {
		t.Errorf("history[3] = %+v, want the user message", hist[3])
	}
	if hist[4].Role != providers.RoleAssistant {
		t.Errorf("history[4].Role = %q, want assistant", hist[4].Role)
	}

	if got := r.phaseOf(t); got != phase.Verifying {
		t.Errorf("phase = %q, want verifying", got)
	}

	display, err := r.history.LoadDisplay(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("LoadDisplay() error = %v", err)
	}
	if len(display) != 2 {
		t.Fatalf("display history length = %d, want 2", len(display))
	}
	if display[0].Username != "Alex" || display[1].Username != DefaultAgentName {
		t.Errorf("display usernames = %q, %q", display[0].Username, display[1].Username)
	}
}

func TestHandleMessageNotificationOrder(t *testing.T) {
	r := newRig(t)
	r.seedProfile(t, phase.Unstarted)
	r.mock.Deltas = []string{"Ho ", "ho ", "ho!"}

	if err := r.orch.HandleMessage(context.Background(), "ABC123", "Hi!"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	events := r.events(t)
	if len(events) != 5 {
		t.Fatalf("event count = %d, want 5: %+v", len(events), events)
	}
	if events[0].Type != notify.EventStartTyping {
		t.Errorf("first event = %q, want start-typing", events[0].Type)
	}
	for i, want := range []string{"Ho ", "ho ", "ho!"} {
		e := events[i+1]
		if e.Type != notify.EventPartialMessage || e.Content != want {
			t.Errorf("event[%d] = %+v, want partial %q", i+1, e, want)
		}
	}
	last := events[len(events)-1]
	if last.Type != notify.EventDoneTyping || last.Content != "Ho ho ho!" {
		t.Errorf("last event = %+v, want done-typing with full reply", last)
	}
}

func TestHandleMessageRegularTurnAppendsTwo(t *testing.T) {
	r := newRig(t)
	r.seedProfile(t, phase.Unstarted)
	r.mock.ResponseText = "Ho ho, tell me more!"

	ctx := context.Background()
	if err := r.orch.HandleMessage(ctx, "ABC123", "Hi!"); err != nil {
		t.Fatalf("first HandleMessage() error = %v", err)
	}
	before := len(r.promptHistory(t, PromptKey("ABC123", phase.Verifying)))

	if err := r.orch.HandleMessage(ctx, "ABC123", "My cat is Waffles"); err != nil {
		t.Fatalf("second HandleMessage() error = %v", err)
	}
	after := len(r.promptHistory(t, PromptKey("ABC123", phase.Verifying)))

	if after-before != 2 {
		t.Errorf("second turn appended %d entries, want 2", after-before)
	}
	// No second setup call: bootstrap(1) + stream(1) + stream(1).
	if got := r.mock.RequestCount(); got != 3 {
		t.Errorf("provider requests = %d, want 3", got)
	}
}

func TestHandleMessageUnknownPasscode(t *testing.T) {
	r := newRig(t)

	err := r.orch.HandleMessage(context.Background(), "ZZZZZZ", "hello?")
	if !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("HandleMessage() error = %v, want ErrNotFound", err)
	}
	if got := r.mock.RequestCount(); got != 0 {
		t.Errorf("provider requests = %d, want 0", got)
	}
	if got := len(r.recorder.Events()); got != 0 {
		t.Errorf("events published = %d, want 0", got)
	}
}

func TestHandleMessageTerminalPhaseDropsMessage(t *testing.T) {
	r := newRig(t)
	r.seedProfile(t, phase.Done)

	if err := r.orch.HandleMessage(context.Background(), "ABC123", "more presents?"); err != nil {
		t.Fatalf("HandleMessage() error = %v, want nil", err)
	}
	if got := r.mock.RequestCount(); got != 0 {
		t.Errorf("provider requests = %d, want 0", got)
	}
	if got := len(r.recorder.Events()); got != 0 {
		t.Errorf("events published = %d, want 0", got)
	}
}

func TestHandleMessageStreamFailureStillClosesTyping(t *testing.T) {
	r := newRig(t)
	r.seedProfile(t, phase.Verifying)
	r.mock.ShouldFail = true

	err := r.orch.HandleMessage(context.Background(), "ABC123", "Hi!")
	if err == nil {
		t.Fatal("HandleMessage() error = nil, want failure")
	}

	events := r.events(t)
	if len(events) != 2 {
		t.Fatalf("event count = %d, want start and done only: %+v", len(events), events)
	}
	if events[0].Type != notify.EventStartTyping {
		t.Errorf("first event = %q, want start-typing", events[0].Type)
	}
	if events[1].Type != notify.EventDoneTyping || events[1].Content != "" {
		t.Errorf("last event = %+v, want empty done-typing", events[1])
	}

	// A failed turn must leave both histories untouched.
	if got := len(r.promptHistory(t, PromptKey("ABC123", phase.Verifying))); got != 0 {
		t.Errorf("prompt history length = %d, want 0", got)
	}
	display, err := r.history.LoadDisplay(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("LoadDisplay() error = %v", err)
	}
	if len(display) != 0 {
		t.Errorf("display history length = %d, want 0", len(display))
	}
}

func TestHandleMessageDegradedCacheMiss(t *testing.T) {
	r := newRig(t)
	r.seedProfile(t, phase.Verifying)
	r.mock.ResponseText = "Ho ho, what games do you like?"

	// Verifying phase but no cached history: the context is rebuilt in place
	// with a synthesized acknowledgment, costing no extra provider call.
	if err := r.orch.HandleMessage(context.Background(), "ABC123", "I'm back!"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	if got := r.mock.RequestCount(); got != 1 {
		t.Fatalf("provider requests = %d, want 1", got)
	}
	req := r.mock.LastRequest()
	if req == nil {
		t.Fatal("no request captured")
	}
	// system persona, user setup, synthesized ack, incoming message.
	if len(req.Messages) != 4 {
		t.Fatalf("request carried %d messages, want 4: %+v", len(req.Messages), req.Messages)
	}
	if req.Messages[2].Role != providers.RoleAssistant || req.Messages[2].Content != prompts.AckToken {
		t.Errorf("rebuilt context missing synthesized ack: %+v", req.Messages[2])
	}
	if req.Messages[3].Content != "I'm back!" {
		t.Errorf("request tail = %+v, want incoming message", req.Messages[3])
	}
}

func TestHandleMessageConfirmationAdvances(t *testing.T) {
	r := newRig(t)
	r.seedProfile(t, phase.Verifying)
	// Marker detection is case-insensitive.
	r.mock.Responses = []string{
		"OK, I BELIEVE YOU ARE ALEX. Let's talk presents!",
		prompts.AckToken,
	}

	if err := r.orch.HandleMessage(context.Background(), "ABC123", "Waffles, and I play soccer"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	if got := r.phaseOf(t); got != phase.Rewarding {
		t.Fatalf("phase = %q, want rewarding", got)
	}

	// The rewarding context was set up once: stream(1) + reward setup(1).
	if got := r.mock.RequestCount(); got != 2 {
		t.Errorf("provider requests = %d, want 2", got)
	}
	reward := r.promptHistory(t, PromptKey("ABC123", phase.Rewarding))
	if len(reward) != 3 {
		t.Fatalf("reward history length = %d, want setup exchange of 3", len(reward))
	}
	if !strings.Contains(reward[1].Content, "a red bicycle") {
		t.Errorf("reward setup missing presents:\n%s", reward[1].Content)
	}
}

func TestHandleMessageCompletionFinishes(t *testing.T) {
	r := newRig(t)
	r.seedProfile(t, phase.Rewarding)
	r.mock.ResponseText = "And that's everything on your list! Merry Christmas!"

	if err := r.orch.HandleMessage(context.Background(), "ABC123", "wow, thank you!"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if got := r.phaseOf(t); got != phase.Done {
		t.Fatalf("phase = %q, want done", got)
	}

	// Finished conversations ignore further messages.
	if err := r.orch.HandleMessage(context.Background(), "ABC123", "one more?"); err != nil {
		t.Fatalf("post-completion HandleMessage() error = %v", err)
	}
	if got := r.mock.RequestCount(); got != 1 {
		t.Errorf("provider requests = %d, want 1", got)
	}
}

func TestHandleMessageMarkersArePhaseScoped(t *testing.T) {
	r := newRig(t)
	r.seedProfile(t, phase.Verifying)
	// The completion marker means nothing while verifying.
	r.mock.ResponseText = "And that's everything on your list! But first, what's your cat's name?"

	if err := r.orch.HandleMessage(context.Background(), "ABC123", "Hi!"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if got := r.phaseOf(t); got != phase.Verifying {
		t.Errorf("phase = %q, want verifying", got)
	}
}

func TestResetConversation(t *testing.T) {
	r := newRig(t)
	r.seedProfile(t, phase.Unstarted)
	r.mock.ResponseText = "Ho ho!"

	ctx := context.Background()
	if err := r.orch.HandleMessage(ctx, "ABC123", "Hi!"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	p, err := r.orch.ResetConversation(ctx, "abc123")
	if err != nil {
		t.Fatalf("ResetConversation() error = %v", err)
	}
	if p.Phase != phase.Unstarted {
		t.Errorf("phase after reset = %q, want unstarted", p.Phase)
	}
	if got := len(r.promptHistory(t, PromptKey("ABC123", phase.Verifying))); got != 0 {
		t.Errorf("prompt history survived reset: %d entries", got)
	}
	display, err := r.orch.Transcript(ctx, "ABC123")
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(display) != 0 {
		t.Errorf("transcript survived reset: %d entries", len(display))
	}
}

func TestTranscript(t *testing.T) {
	r := newRig(t)
	r.seedProfile(t, phase.Unstarted)
	r.mock.ResponseText = "Ho ho!"

	ctx := context.Background()
	if _, err := r.orch.Transcript(ctx, "ZZZZZZ"); !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("Transcript(unknown) error = %v, want ErrNotFound", err)
	}

	if err := r.orch.HandleMessage(ctx, "ABC123", "Hi Santa!"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	display, err := r.orch.Transcript(ctx, "abc123")
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(display) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(display))
	}
	if display[0].Message != "Hi Santa!" || display[1].Message != "Ho ho!" {
		t.Errorf("transcript = %+v", display)
	}
}
