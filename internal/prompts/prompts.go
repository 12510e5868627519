// Package prompts renders the setup messages that establish the agent
// persona at the start of each conversation phase. Templates are embedded in
// the binary; the wording here is the contract with the marker detectors, so
// the marker sentences must stay in sync with the phase package.
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// AckToken is the fixed acknowledgment the model is instructed to reply with
// after a setup message, before the real conversation begins.
const AckToken = "I understand"

// MinVerificationQuestions is the minimum number of distinct challenge
// questions the verification persona must ask before confirming identity.
const MinVerificationQuestions = 3

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/*.tmpl"))

// VerificationSetupData feeds the verification-phase templates.
type VerificationSetupData struct {
	Name         string
	Age          int
	Gender       string
	Facts        []string
	MinQuestions int
}

// RewardSetupData feeds the rewarding-phase templates.
type RewardSetupData struct {
	Name     string
	Presents []string // descriptions, already in disclosure order
}

// VerificationPersona renders the system message for the verifying phase.
func VerificationPersona() (string, error) {
	return render("verification_persona.tmpl", nil)
}

// VerificationSetup renders the user-role setup message for the verifying phase.
func VerificationSetup(data VerificationSetupData) (string, error) {
	if data.MinQuestions <= 0 {
		data.MinQuestions = MinVerificationQuestions
	}
	return render("verification_setup.tmpl", data)
}

// RewardPersona renders the system message for the rewarding phase.
func RewardPersona() (string, error) {
	return render("reward_persona.tmpl", nil)
}

// RewardSetup renders the user-role setup message for the rewarding phase.
func RewardSetup(data RewardSetupData) (string, error) {
	return render("reward_setup.tmpl", data)
}

func render(name string, data any) (string, error) {
	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), nil
}
