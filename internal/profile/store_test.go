package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/kringlelabs/kringle/internal/phase"
	"github.com/kringlelabs/kringle/internal/storage"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := storage.Open(storage.TestConfig())
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBadgerStore(db)
}

func testProfile(passcode string) *Profile {
	return &Profile{
		Passcode: passcode,
		Name:     "Alex",
		Age:      8,
		Gender:   "boy",
		Facts:    []string{"has a cat named Waffles"},
		Presents: []Present{
			{Order: 1, Description: "a red bicycle"},
			{Order: 2, Description: "a science kit"},
		},
	}
}

func TestBadgerStore(t *testing.T) {
	ctx := context.Background()

	t.Run("get missing profile", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Get(ctx, "NOPE01")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("conditional insert", func(t *testing.T) {
		s := newTestStore(t)
		p := testProfile("ABC123")

		if err := s.Put(ctx, p, false); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if err := s.Put(ctx, p, false); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("second Put() error = %v, want ErrAlreadyExists", err)
		}

		got, err := s.Get(ctx, "ABC123")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Name != "Alex" || len(got.Facts) != 1 {
			t.Errorf("Get() = %+v", got)
		}
	})

	t.Run("conditional update requires existence", func(t *testing.T) {
		s := newTestStore(t)
		p := testProfile("XYZ789")

		if err := s.Put(ctx, p, true); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Put(expectExists) error = %v, want ErrNotFound", err)
		}
		if err := s.Put(ctx, p, false); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		p.Name = "Alexandra"
		if err := s.Put(ctx, p, true); err != nil {
			t.Fatalf("Put(expectExists) error = %v", err)
		}
	})

	t.Run("update phase", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.Put(ctx, testProfile("PHS001"), false); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		updated, err := s.UpdatePhase(ctx, "PHS001", phase.Verifying)
		if err != nil {
			t.Fatalf("UpdatePhase() error = %v", err)
		}
		if updated.Phase != phase.Verifying {
			t.Errorf("Phase = %s, want verifying", updated.Phase)
		}

		got, err := s.Get(ctx, "PHS001")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Phase != phase.Verifying {
			t.Errorf("persisted Phase = %s, want verifying", got.Phase)
		}
	})

	t.Run("clear progress", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.Put(ctx, testProfile("RST001"), false); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if _, err := s.UpdatePhase(ctx, "RST001", phase.Done); err != nil {
			t.Fatalf("UpdatePhase() error = %v", err)
		}

		reset, err := s.ClearProgress(ctx, "RST001")
		if err != nil {
			t.Fatalf("ClearProgress() error = %v", err)
		}
		if reset.Phase != phase.Unstarted {
			t.Errorf("Phase after reset = %s, want unstarted", reset.Phase)
		}
	})

	t.Run("list", func(t *testing.T) {
		s := newTestStore(t)
		for _, code := range []string{"AAA001", "BBB002"} {
			if err := s.Put(ctx, testProfile(code), false); err != nil {
				t.Fatalf("Put(%s) error = %v", code, err)
			}
		}
		all, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(all) != 2 {
			t.Errorf("List() returned %d profiles, want 2", len(all))
		}
	})
}
