package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/kringlelabs/kringle/internal/notify"
	"github.com/kringlelabs/kringle/internal/profile"
	"github.com/kringlelabs/kringle/internal/svcctx"
)

// SubscribeEndpoint handles GET /v1/chat/{passcode}/subscribe. The connection
// upgrades to a websocket and receives typing-indicator and partial-message
// events for the conversation.
type SubscribeEndpoint struct{}

func (e *SubscribeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/chat/{passcode}/subscribe", e.handler
}

func (e *SubscribeEndpoint) RequiresInit() bool { return true }

func (e *SubscribeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	passcode := profile.NormalizePasscode(r.PathValue("passcode"))
	if passcode == "" {
		writeError(w, http.StatusBadRequest, "passcode is required")
		return
	}

	profiles := svcctx.ProfilesFrom(r.Context())
	if _, err := profiles.Get(r.Context(), passcode); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown passcode")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	hub := svcctx.HubFrom(r.Context())
	logger := svcctx.LoggerFrom(r.Context())
	if err := hub.Subscribe(w, r, passcode); err != nil {
		// The upgrade writes its own error response; just log it.
		logger.Warn("subscription ended with error", "passcode", passcode, "error", err)
	}
}

func (e *SubscribeEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <passcode>",
		Short: "Stream conversation events to the terminal",
		Long: `Watch a conversation's event stream.

Connects to the subscription websocket and prints typing indicators and
partial messages as the agent produces them. Interrupt to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passcode := profile.NormalizePasscode(args[0])

			wsURL, err := url.Parse(getServerURL())
			if err != nil {
				return fmt.Errorf("invalid server URL: %w", err)
			}
			switch wsURL.Scheme {
			case "https":
				wsURL.Scheme = "wss"
			default:
				wsURL.Scheme = "ws"
			}
			wsURL.Path = "/v1/chat/" + passcode + "/subscribe"

			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), wsURL.String(), nil)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			defer conn.Close()

			for {
				_, payload, err := conn.ReadMessage()
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return fmt.Errorf("connection closed: %w", err)
				}
				var event notify.Event
				if err := json.Unmarshal(payload, &event); err != nil {
					fmt.Println(string(payload))
					continue
				}
				switch event.Type {
				case notify.EventStartTyping:
					fmt.Println("[typing...]")
				case notify.EventPartialMessage:
					fmt.Print(event.Content)
				case notify.EventDoneTyping:
					if !strings.HasSuffix(event.Content, "\n") {
						fmt.Println()
					}
					fmt.Println("[done]")
				}
			}
		},
	}
}
