// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/kringlelabs/kringle/internal/cache"
	"github.com/kringlelabs/kringle/internal/chat"
	"github.com/kringlelabs/kringle/internal/config"
	"github.com/kringlelabs/kringle/internal/notify"
	"github.com/kringlelabs/kringle/internal/profile"
	"github.com/kringlelabs/kringle/internal/providers"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Cache         *cache.Cache
	Profiles      profile.Store
	Registry      *providers.Registry
	Hub           *notify.Hub
	Orchestrator  *chat.Orchestrator
	History       *chat.History
	ConfigManager *config.Manager
	Logger        *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// CacheFrom extracts the conversation cache from context.
func CacheFrom(ctx context.Context) *cache.Cache {
	if s := ServicesFrom(ctx); s != nil {
		return s.Cache
	}
	return nil
}

// ProfilesFrom extracts the profile store from context.
func ProfilesFrom(ctx context.Context) profile.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Profiles
	}
	return nil
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// HubFrom extracts the notification hub from context.
func HubFrom(ctx context.Context) *notify.Hub {
	if s := ServicesFrom(ctx); s != nil {
		return s.Hub
	}
	return nil
}

// OrchestratorFrom extracts the turn orchestrator from context.
func OrchestratorFrom(ctx context.Context) *chat.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Orchestrator
	}
	return nil
}

// HistoryFrom extracts the conversation history access from context.
func HistoryFrom(ctx context.Context) *chat.History {
	if s := ServicesFrom(ctx); s != nil {
		return s.History
	}
	return nil
}

// ConfigManagerFrom extracts the config manager from context.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}
