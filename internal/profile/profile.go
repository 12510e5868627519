// Package profile manages conversation profiles: the per-passcode identity
// document an admin creates before a chat begins. Profiles live in the
// durable store; a denormalized snapshot sits in the cache so turn handling
// does not hit the store on every message.
package profile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kringlelabs/kringle/internal/phase"
)

// Present is one gift to disclose during the rewarding phase.
// Order defines the disclosure sequence and must be contiguous from 1.
type Present struct {
	Order       int    `json:"order"`
	Description string `json:"description"`
}

// Profile is the identity document for one conversation.
type Profile struct {
	Passcode string      `json:"passcode"`
	Name     string      `json:"name"`
	Age      int         `json:"age"`
	Gender   string      `json:"gender"`
	Facts    []string    `json:"facts"`
	Presents []Present   `json:"presents,omitempty"`
	Phase    phase.Phase `json:"phase,omitempty"`
}

// SortedPresents returns the presents ordered by their disclosure sequence.
func (p *Profile) SortedPresents() []Present {
	out := make([]Present, len(p.Presents))
	copy(out, p.Presents)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// documentSchema validates the admin-supplied profile document. The passcode
// and phase are server-managed and not part of the document.
const documentSchema = `{
	"type": "object",
	"required": ["name", "age", "gender", "facts"],
	"properties": {
		"name":   {"type": "string", "minLength": 1},
		"age":    {"type": "integer", "minimum": 1, "maximum": 120},
		"gender": {"type": "string", "minLength": 1},
		"facts": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "minLength": 1}
		},
		"presents": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["order", "description"],
				"properties": {
					"order":       {"type": "integer", "minimum": 1},
					"description": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

var compiledSchema = jsonschema.MustCompileString("profile.json", documentSchema)

// Document is the admin-facing create/update payload.
type Document struct {
	Name     string    `json:"name"`
	Age      int       `json:"age"`
	Gender   string    `json:"gender"`
	Facts    []string  `json:"facts"`
	Presents []Present `json:"presents,omitempty"`
}

// ValidateDocument checks a raw profile document against the schema plus the
// contiguity rule on present orders, which JSON Schema cannot express.
func ValidateDocument(raw []byte) (*Document, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("profile document is not valid JSON: %w", err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("profile document invalid: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("profile document invalid: %w", err)
	}

	if err := validatePresentOrders(doc.Presents); err != nil {
		return nil, err
	}
	return &doc, nil
}

func validatePresentOrders(presents []Present) error {
	if len(presents) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(presents))
	for _, p := range presents {
		if seen[p.Order] {
			return fmt.Errorf("profile document invalid: duplicate present order %d", p.Order)
		}
		seen[p.Order] = true
	}
	for i := 1; i <= len(presents); i++ {
		if !seen[i] {
			return fmt.Errorf("profile document invalid: present orders must be contiguous from 1, missing %d", i)
		}
	}
	return nil
}

// NormalizePasscode maps user input to the canonical stored form.
// Passcodes are case-insensitive on the way in, uppercase at rest.
func NormalizePasscode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// SnapshotKey is the cache key for a profile's denormalized snapshot.
func SnapshotKey(passcode string) string {
	return passcode + "-profile"
}
