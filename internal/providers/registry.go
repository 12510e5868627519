package providers

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry holds references to completion clients.
// It supports config-driven instantiation, hot-reload, and thread-safe access.
type Registry struct {
	mu          sync.RWMutex
	clients     map[string]CompletionClient
	defaultName string
	logger      *slog.Logger
}

// ClientConfig describes one configured completion client.
type ClientConfig struct {
	Type        string // "openai", "mock"
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Enabled     bool
}

// RegistryConfig is the config-driven view of all clients.
type RegistryConfig struct {
	Clients map[string]ClientConfig
	Default string
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]CompletionClient),
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds a completion client by name.
func (r *Registry) Register(name string, client CompletionClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	if r.logger != nil {
		r.logger.Info("registered completion client", "name", name)
	}
}

// Unregister removes a completion client by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, name)
	if r.logger != nil {
		r.logger.Info("unregistered completion client", "name", name)
	}
}

// Get returns a completion client by name.
func (r *Registry) Get(name string) (CompletionClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("completion client not found: %s", name)
	}
	return client, nil
}

// Default returns the configured default client.
func (r *Registry) Default() (CompletionClient, error) {
	r.mu.RLock()
	name := r.defaultName
	r.mu.RUnlock()
	if name == "" {
		return nil, fmt.Errorf("no default completion client configured")
	}
	return r.Get(name)
}

// SetDefault names the default client.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultName = name
}

// List returns all registered client names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}

// Has checks if a client is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[name]
	return ok
}

// Reload replaces registered clients from config. Disabled entries are
// removed; unknown types are skipped with an error log so one bad entry
// cannot take down the rest of the registry.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fresh := make(map[string]CompletionClient, len(cfg.Clients))
	for name, cc := range cfg.Clients {
		if !cc.Enabled {
			continue
		}
		switch cc.Type {
		case "openai":
			fresh[name] = NewOpenAIClient(OpenAIConfig{
				APIKey:      cc.APIKey,
				Model:       cc.Model,
				Temperature: cc.Temperature,
				MaxTokens:   cc.MaxTokens,
				Timeout:     cc.Timeout,
			})
		case "mock":
			fresh[name] = NewMockClient()
		default:
			if r.logger != nil {
				r.logger.Error("unknown completion client type", "name", name, "type", cc.Type)
			}
			continue
		}
		if r.logger != nil {
			r.logger.Info("registered completion client", "name", name, "type", cc.Type)
		}
	}

	r.clients = fresh
	r.defaultName = cfg.Default
}
