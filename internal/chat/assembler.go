package chat

import (
	"errors"
	"fmt"

	"github.com/kringlelabs/kringle/internal/phase"
	"github.com/kringlelabs/kringle/internal/profile"
	"github.com/kringlelabs/kringle/internal/prompts"
	"github.com/kringlelabs/kringle/internal/providers"
)

// ErrConfiguration means the profile is missing the data a phase needs:
// verification requires at least one fact, rewarding at least one present.
// The turn fails before any provider call is made.
var ErrConfiguration = errors.New("profile is not configured for this phase")

// BuildVerificationSetup returns the setup exchange that opens the verifying
// phase: the persona system message and the user-role briefing with the
// child's facts.
func BuildVerificationSetup(p *profile.Profile) ([]providers.Message, error) {
	if len(p.Facts) == 0 {
		return nil, fmt.Errorf("%w: profile %s has no verification facts", ErrConfiguration, p.Passcode)
	}
	persona, err := prompts.VerificationPersona()
	if err != nil {
		return nil, err
	}
	setup, err := prompts.VerificationSetup(prompts.VerificationSetupData{
		Name:   p.Name,
		Age:    p.Age,
		Gender: p.Gender,
		Facts:  p.Facts,
	})
	if err != nil {
		return nil, err
	}
	return []providers.Message{
		{Role: providers.RoleSystem, Content: persona},
		{Role: providers.RoleUser, Content: setup},
	}, nil
}

// BuildRewardSetup returns the setup exchange that opens the rewarding phase.
// Presents are listed in their configured disclosure order.
func BuildRewardSetup(p *profile.Profile) ([]providers.Message, error) {
	presents := p.SortedPresents()
	if len(presents) == 0 {
		return nil, fmt.Errorf("%w: profile %s has no presents", ErrConfiguration, p.Passcode)
	}
	descriptions := make([]string, 0, len(presents))
	for _, pr := range presents {
		descriptions = append(descriptions, pr.Description)
	}
	persona, err := prompts.RewardPersona()
	if err != nil {
		return nil, err
	}
	setup, err := prompts.RewardSetup(prompts.RewardSetupData{
		Name:     p.Name,
		Presents: descriptions,
	})
	if err != nil {
		return nil, err
	}
	return []providers.Message{
		{Role: providers.RoleSystem, Content: persona},
		{Role: providers.RoleUser, Content: setup},
	}, nil
}

// setupExchange returns the full recorded setup for a phase, including the
// acknowledgment the model is expected to give.
func setupExchange(p *profile.Profile, ph phase.Phase) ([]providers.Message, error) {
	var msgs []providers.Message
	var err error
	switch ph {
	case phase.Rewarding:
		msgs, err = BuildRewardSetup(p)
	default:
		msgs, err = BuildVerificationSetup(p)
	}
	if err != nil {
		return nil, err
	}
	return append(msgs, providers.Message{Role: providers.RoleAssistant, Content: prompts.AckToken}), nil
}

// BuildTurn assembles the message list for one completion call: the prior
// prompt history followed by the incoming user message. When the history is
// empty (expired or lost), the phase's setup context is rebuilt in place with
// a synthesized acknowledgment so the persona survives a cache wipe without
// an extra provider round trip.
func BuildTurn(p *profile.Profile, ph phase.Phase, history []providers.Message, incoming string) ([]providers.Message, error) {
	if len(history) == 0 {
		rebuilt, err := setupExchange(p, ph)
		if err != nil {
			return nil, err
		}
		history = rebuilt
	}
	msgs := make([]providers.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, providers.Message{Role: providers.RoleUser, Content: incoming})
	return msgs, nil
}
