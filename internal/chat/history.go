// Package chat implements the conversation core: the prompt assembler that
// builds each completion request, the history bookkeeping around it, and the
// turn orchestrator that drives one inbound message end to end.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kringlelabs/kringle/internal/cache"
	"github.com/kringlelabs/kringle/internal/phase"
	"github.com/kringlelabs/kringle/internal/providers"
)

// Two histories exist per conversation: the role-tagged prompt history that
// is resent verbatim to the completion provider, and the human-readable
// display history shown to viewers. Prompt history is additionally scoped by
// phase, because the verifying and rewarding personas must never share one
// provider call.
const (
	verifyKeySuffix = "-chat"
	rewardKeySuffix = "-chat-presents"
)

// PromptKey returns the cache key for the phase-scoped prompt history.
func PromptKey(passcode string, ph phase.Phase) string {
	if ph == phase.Rewarding {
		return passcode + rewardKeySuffix
	}
	return passcode + verifyKeySuffix
}

// DisplayKey returns the cache key for the display history.
func DisplayKey(passcode string) string {
	return passcode
}

// DisplayEntry is one human-readable transcript line.
type DisplayEntry struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// History reads and appends the conversation logs. Both logs are append-only;
// entries are never reordered or removed once written.
type History struct {
	cache  *cache.Cache
	logger *slog.Logger
}

// NewHistory creates a History over c.
func NewHistory(c *cache.Cache, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	return &History{cache: c, logger: logger}
}

// LoadPrompt returns the prompt history at key. An absent or expired entry
// returns cache.ErrMiss; callers degrade to empty context rather than fail.
func (h *History) LoadPrompt(ctx context.Context, key string) ([]providers.Message, error) {
	entries, err := h.cache.FetchList(ctx, key)
	if err != nil {
		return nil, err
	}
	msgs := make([]providers.Message, 0, len(entries))
	for _, e := range entries {
		var m providers.Message
		if err := json.Unmarshal([]byte(e), &m); err != nil {
			return nil, fmt.Errorf("prompt history %s corrupt: %w", key, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// LoadDisplay returns the display history for a conversation. A miss returns
// an empty transcript, not an error; a chat that expired simply reads as new.
func (h *History) LoadDisplay(ctx context.Context, passcode string) ([]DisplayEntry, error) {
	entries, err := h.cache.FetchList(ctx, DisplayKey(passcode))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]DisplayEntry, 0, len(entries))
	for _, e := range entries {
		var d DisplayEntry
		if err := json.Unmarshal([]byte(e), &d); err != nil {
			return nil, fmt.Errorf("display history %s corrupt: %w", passcode, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// AppendSetup appends a phase's setup exchange to its prompt history.
func (h *History) AppendSetup(ctx context.Context, key string, msgs ...providers.Message) error {
	encoded, err := encodeMessages(msgs)
	if err != nil {
		return err
	}
	return h.cache.AppendList(ctx, key, encoded...)
}

// AppendTurn appends a completed (user, agent) exchange to the phase-scoped
// prompt history and the display history in one transaction, so the two
// views cannot diverge: either both record the turn or the turn is reported
// failed with neither touched.
func (h *History) AppendTurn(ctx context.Context, promptKey, passcode string, user, agent providers.Message, userDisplay, agentDisplay DisplayEntry) error {
	prompt, err := encodeMessages([]providers.Message{user, agent})
	if err != nil {
		return err
	}
	display, err := encodeDisplay([]DisplayEntry{userDisplay, agentDisplay})
	if err != nil {
		return err
	}
	return h.cache.AppendLists(ctx,
		cache.ListAppend{Key: promptKey, Entries: prompt},
		cache.ListAppend{Key: DisplayKey(passcode), Entries: display},
	)
}

// Reset deletes all histories for a conversation. Used by the admin reset
// operation alongside clearing the profile's recorded phase.
func (h *History) Reset(ctx context.Context, passcode string) error {
	return h.cache.Delete(ctx,
		passcode+verifyKeySuffix,
		passcode+rewardKeySuffix,
		DisplayKey(passcode),
	)
}

func encodeMessages(msgs []providers.Message) ([]string, error) {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to encode prompt entry: %w", err)
		}
		out = append(out, string(raw))
	}
	return out, nil
}

func encodeDisplay(entries []DisplayEntry) ([]string, error) {
	out := make([]string, 0, len(entries))
	for _, d := range entries {
		raw, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("failed to encode display entry: %w", err)
		}
		out = append(out, string(raw))
	}
	return out, nil
}
