package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kringlelabs/kringle/internal/notify"
	"github.com/kringlelabs/kringle/internal/phase"
	"github.com/kringlelabs/kringle/internal/profile"
	"github.com/kringlelabs/kringle/internal/providers"
)

// DefaultStreamTimeout bounds one streaming completion call.
const DefaultStreamTimeout = 60 * time.Second

// DefaultAgentName is the display name recorded for agent replies.
const DefaultAgentName = "Santa"

// Config tunes the orchestrator.
type Config struct {
	// AgentName is the username recorded for agent turns in the display
	// history. Defaults to DefaultAgentName.
	AgentName string

	// StreamTimeout bounds each streaming provider call. Defaults to
	// DefaultStreamTimeout.
	StreamTimeout time.Duration
}

// Orchestrator drives one inbound chat message end to end: load the profile,
// assemble the prompt, stream the completion with live notifications, record
// the turn, and advance the conversation phase when a marker fires.
type Orchestrator struct {
	profiles profile.Store
	history  *History
	registry *providers.Registry
	notifier notify.Notifier
	cfg      Config
	logger   *slog.Logger
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(profiles profile.Store, history *History, registry *providers.Registry, notifier notify.Notifier, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.AgentName == "" {
		cfg.AgentName = DefaultAgentName
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = DefaultStreamTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		profiles: profiles,
		history:  history,
		registry: registry,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleMessage processes one user message for a conversation.
//
// An unknown passcode fails before any notification or history write. A
// conversation in a terminal phase drops the message and returns success.
// Otherwise the turn is bracketed by a start-typing and a done-typing
// notification; done-typing is emitted even when the turn fails partway, so
// viewers are never left with a stuck typing indicator.
func (o *Orchestrator) HandleMessage(ctx context.Context, passcode, message string) error {
	passcode = profile.NormalizePasscode(passcode)
	p, err := o.profiles.Get(ctx, passcode)
	if err != nil {
		return err
	}

	log := o.logger.With("passcode", passcode, "phase", p.Phase.String())
	if p.Phase.Terminal() {
		log.Info("dropping message for finished conversation")
		return nil
	}

	client, err := o.registry.Default()
	if err != nil {
		return fmt.Errorf("no completion client available: %w", err)
	}

	o.publish(ctx, passcode, notify.Event{Type: notify.EventStartTyping})

	bootstrapped := p.Phase == phase.Unstarted
	reply, err := o.runTurn(ctx, log, client, p, message)
	if err != nil {
		return err
	}

	return o.advance(ctx, log, client, p, bootstrapped, reply)
}

// runTurn performs the provider-facing half of a turn: optional first-turn
// bootstrap, prompt assembly, the streaming call, and the paired history
// append. The done-typing notification is deferred so it fires on every exit
// path, carrying the reply when there is one and empty content on failure.
func (o *Orchestrator) runTurn(ctx context.Context, log *slog.Logger, client providers.CompletionClient, p *profile.Profile, message string) (reply string, err error) {
	defer func() {
		o.publish(ctx, p.Passcode, notify.Event{Type: notify.EventDoneTyping, Content: reply})
	}()

	current := p.Phase
	if current == phase.Unstarted {
		if err := o.setupPhase(ctx, log, client, p, phase.Verifying); err != nil {
			return "", err
		}
		current = phase.Verifying
	}

	key := PromptKey(p.Passcode, current)
	history, err := o.history.LoadPrompt(ctx, key)
	if err != nil {
		// An expired or unreadable history degrades to a rebuilt context
		// rather than failing the turn.
		log.Warn("prompt history unavailable, rebuilding context", "key", key, "error", err)
		history = nil
	}

	messages, err := BuildTurn(p, current, history, message)
	if err != nil {
		return "", err
	}

	streamCtx, cancel := context.WithTimeout(ctx, o.cfg.StreamTimeout)
	defer cancel()

	result, err := client.CompleteStream(streamCtx, &providers.CompletionRequest{
		Messages:  messages,
		RequestID: uuid.New().String(),
	}, func(delta string) error {
		o.publish(ctx, p.Passcode, notify.Event{Type: notify.EventPartialMessage, Content: delta})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("completion failed for %s: %w", p.Passcode, err)
	}
	reply = result.Content

	err = o.history.AppendTurn(ctx, key, p.Passcode,
		providers.Message{Role: providers.RoleUser, Content: message},
		providers.Message{Role: providers.RoleAssistant, Content: reply},
		DisplayEntry{Username: p.Name, Message: message},
		DisplayEntry{Username: o.cfg.AgentName, Message: reply},
	)
	if err != nil {
		return reply, fmt.Errorf("failed to record turn for %s: %w", p.Passcode, err)
	}

	log.Info("turn completed",
		"provider", result.Provider,
		"model", result.ModelUsed,
		"tokens", result.TotalTokens,
		"duration", result.ExecutionTime)
	return reply, nil
}

// advance evaluates the finished reply against the phase machine and
// persists any transition. Bootstrapping a fresh conversation also records
// the move into verifying, so a transition is applied at most once per turn
// even when the marker sentence recurs later in the same reply.
func (o *Orchestrator) advance(ctx context.Context, log *slog.Logger, client providers.CompletionClient, p *profile.Profile, bootstrapped bool, reply string) error {
	current := p.Phase
	if bootstrapped {
		updated, err := o.profiles.UpdatePhase(ctx, p.Passcode, phase.Verifying)
		if err != nil {
			return err
		}
		current = updated.Phase
	}

	next := phase.Next(current, phase.MarkerDetector(p.Name)(reply))
	if next == current {
		return nil
	}

	if _, err := o.profiles.UpdatePhase(ctx, p.Passcode, next); err != nil {
		return err
	}
	log.Info("conversation advanced", "from", current.String(), "to", next.String())

	if next == phase.Rewarding {
		return o.setupPhase(ctx, log, client, p, phase.Rewarding)
	}
	return nil
}

// setupPhase opens a phase's prompt history: it builds the setup exchange,
// collects the model's acknowledgment with a one-shot call, and records the
// full exchange so later turns replay it as context.
func (o *Orchestrator) setupPhase(ctx context.Context, log *slog.Logger, client providers.CompletionClient, p *profile.Profile, target phase.Phase) error {
	var msgs []providers.Message
	var err error
	switch target {
	case phase.Rewarding:
		msgs, err = BuildRewardSetup(p)
	default:
		msgs, err = BuildVerificationSetup(p)
	}
	if err != nil {
		return err
	}

	result, err := client.Complete(ctx, &providers.CompletionRequest{
		Messages:  msgs,
		RequestID: uuid.New().String(),
	})
	if err != nil {
		return fmt.Errorf("setup completion failed for %s: %w", p.Passcode, err)
	}

	exchange := append(msgs, providers.Message{Role: providers.RoleAssistant, Content: result.Content})
	if err := o.history.AppendSetup(ctx, PromptKey(p.Passcode, target), exchange...); err != nil {
		return fmt.Errorf("failed to record setup for %s: %w", p.Passcode, err)
	}
	log.Info("phase context established", "target", target.String())
	return nil
}

// publish sends a notification best-effort. Delivery problems are logged and
// never fail the turn.
func (o *Orchestrator) publish(ctx context.Context, passcode string, event notify.Event) {
	if err := o.notifier.Publish(ctx, passcode, event.Encode()); err != nil {
		o.logger.Warn("notification publish failed", "passcode", passcode, "type", event.Type, "error", err)
	}
}

// ResetConversation clears a conversation back to unstarted: the recorded
// phase is removed from the profile and all cached histories are deleted.
func (o *Orchestrator) ResetConversation(ctx context.Context, passcode string) (*profile.Profile, error) {
	passcode = profile.NormalizePasscode(passcode)
	p, err := o.profiles.ClearProgress(ctx, passcode)
	if err != nil {
		return nil, err
	}
	if err := o.history.Reset(ctx, passcode); err != nil {
		return nil, err
	}
	o.logger.Info("conversation reset", "passcode", passcode)
	return p, nil
}

// Transcript returns the display history for a conversation. The passcode
// must belong to a known profile; an expired transcript reads as empty.
func (o *Orchestrator) Transcript(ctx context.Context, passcode string) ([]DisplayEntry, error) {
	passcode = profile.NormalizePasscode(passcode)
	if _, err := o.profiles.Get(ctx, passcode); err != nil {
		return nil, err
	}
	return o.history.LoadDisplay(ctx, passcode)
}
