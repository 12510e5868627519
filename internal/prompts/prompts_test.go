package prompts

import (
	"strings"
	"testing"
)

func TestVerificationSetup(t *testing.T) {
	out, err := VerificationSetup(VerificationSetupData{
		Name:   "Alex",
		Age:    8,
		Gender: "boy",
		Facts:  []string{"has a cat named Waffles", "plays soccer on Saturdays"},
	})
	if err != nil {
		t.Fatalf("VerificationSetup() error = %v", err)
	}

	for _, want := range []string{
		"Alex",
		"8 year old boy",
		"has a cat named Waffles",
		"plays soccer on Saturdays",
		"at least 3 distinct questions",
		`"Ok, I believe you are Alex."`,
		`"I understand"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("setup missing %q:\n%s", want, out)
		}
	}
}

func TestRewardSetup(t *testing.T) {
	out, err := RewardSetup(RewardSetupData{
		Name:     "Alex",
		Presents: []string{"a red bicycle", "a science kit"},
	})
	if err != nil {
		t.Fatalf("RewardSetup() error = %v", err)
	}

	for _, want := range []string{
		"1. a red bicycle",
		"2. a science kit",
		"And that's everything on your list! Merry Christmas!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("setup missing %q:\n%s", want, out)
		}
	}

	// Disclosure order must match the listing order.
	if strings.Index(out, "red bicycle") > strings.Index(out, "science kit") {
		t.Error("presents listed out of order")
	}
}

func TestPersonas(t *testing.T) {
	persona, err := VerificationPersona()
	if err != nil {
		t.Fatalf("VerificationPersona() error = %v", err)
	}
	if !strings.Contains(persona, "Santa Claus") {
		t.Errorf("persona missing character:\n%s", persona)
	}

	reward, err := RewardPersona()
	if err != nil {
		t.Fatalf("RewardPersona() error = %v", err)
	}
	if !strings.Contains(reward, "one present at a time") {
		t.Errorf("reward persona missing pacing instruction:\n%s", reward)
	}
}
