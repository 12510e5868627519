package profile

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/avast/retry-go/v4"
)

// ErrPasscodeExhausted is returned when the bounded retry budget for finding
// an unused passcode runs out. Callers surface it as a retryable
// "please try again" to the admin.
var ErrPasscodeExhausted = errors.New("unable to generate unique passcode")

const (
	// passcodeAlphabet is deliberately restricted: uppercase letters and
	// digits only, so codes survive being read aloud or typed by a child.
	passcodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	passcodeLength   = 6

	// createAttempts bounds the optimistic-uniqueness loop.
	createAttempts = 5
)

// GeneratePasscode returns a random candidate passcode.
func GeneratePasscode() (string, error) {
	buf := make([]byte, passcodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = passcodeAlphabet[int(b)%len(passcodeAlphabet)]
	}
	return string(buf), nil
}

// Create inserts a new profile under a freshly generated passcode using
// optimistic uniqueness: generate, conditional insert-if-absent, retry on
// collision up to the attempt budget. On success the profile's Passcode
// field is set to the winning code.
func Create(ctx context.Context, store Store, doc *Document) (*Profile, error) {
	var created *Profile
	err := retry.Do(
		func() error {
			code, err := GeneratePasscode()
			if err != nil {
				return retry.Unrecoverable(err)
			}
			p := &Profile{
				Passcode: code,
				Name:     doc.Name,
				Age:      doc.Age,
				Gender:   doc.Gender,
				Facts:    doc.Facts,
				Presents: doc.Presents,
			}
			if err := store.Put(ctx, p, false); err != nil {
				if errors.Is(err, ErrAlreadyExists) {
					return err // collision, retry with a new code
				}
				return retry.Unrecoverable(err)
			}
			created = p
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(createAttempts),
		// Collisions are random; there is nothing to back off from.
		retry.DelayType(retry.FixedDelay),
		retry.Delay(0),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, ErrPasscodeExhausted
		}
		return nil, err
	}
	return created, nil
}
