package providers

import "testing"

func TestRegistry(t *testing.T) {
	t.Run("register and get", func(t *testing.T) {
		r := NewRegistry()
		mock := NewMockClient()

		r.Register("test-llm", mock)

		client, err := r.Get("test-llm")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if client != mock {
			t.Error("got different client than registered")
		}
	})

	t.Run("get nonexistent", func(t *testing.T) {
		r := NewRegistry()

		_, err := r.Get("nonexistent")
		if err == nil {
			t.Error("expected error for nonexistent client")
		}
	})

	t.Run("default", func(t *testing.T) {
		r := NewRegistry()
		if _, err := r.Default(); err == nil {
			t.Error("expected error with no default configured")
		}

		mock := NewMockClient()
		r.Register("mock", mock)
		r.SetDefault("mock")

		client, err := r.Default()
		if err != nil {
			t.Fatalf("Default() error = %v", err)
		}
		if client != mock {
			t.Error("Default() returned wrong client")
		}
	})

	t.Run("reload from config", func(t *testing.T) {
		r := NewRegistry()
		r.Register("stale", NewMockClient())

		r.Reload(RegistryConfig{
			Clients: map[string]ClientConfig{
				"mock":     {Type: "mock", Enabled: true},
				"disabled": {Type: "mock", Enabled: false},
				"bogus":    {Type: "martian", Enabled: true},
			},
			Default: "mock",
		})

		if r.Has("stale") {
			t.Error("reload kept a client not in config")
		}
		if r.Has("disabled") {
			t.Error("reload registered a disabled client")
		}
		if r.Has("bogus") {
			t.Error("reload registered an unknown client type")
		}
		if _, err := r.Default(); err != nil {
			t.Errorf("Default() after reload error = %v", err)
		}
	})
}
