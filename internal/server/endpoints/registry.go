package endpoints

import (
	"github.com/kringlelabs/kringle/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},

		// Profile endpoints
		&CreateProfileEndpoint{},
		&ListProfilesEndpoint{},
		&GetProfileEndpoint{},
		&UpdateProfileEndpoint{},
		&ResetChatEndpoint{},

		// Chat endpoints
		&JoinChatEndpoint{},
		&SendMessageEndpoint{},
		&ChatHistoryEndpoint{},
		&SubscribeEndpoint{},
	}
}

// ProfileCommands returns endpoints for profile operations.
// This groups profile-related commands under the "profiles" subcommand.
func ProfileCommands() []api.Endpoint {
	return []api.Endpoint{
		&CreateProfileEndpoint{},
		&ListProfilesEndpoint{},
		&GetProfileEndpoint{},
		&UpdateProfileEndpoint{},
	}
}

// ChatCommands returns endpoints for chat operations.
// This groups chat-related commands under the "chat" subcommand.
func ChatCommands() []api.Endpoint {
	return []api.Endpoint{
		&JoinChatEndpoint{},
		&SendMessageEndpoint{},
		&ChatHistoryEndpoint{},
		&SubscribeEndpoint{},
		&ResetChatEndpoint{},
	}
}
