package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kringlelabs/kringle/internal/api"
	"github.com/kringlelabs/kringle/internal/profile"
	"github.com/kringlelabs/kringle/internal/svcctx"
)

// SendMessageRequest carries one user message.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessageResponse acknowledges that the turn was accepted.
type SendMessageResponse struct {
	Accepted bool `json:"accepted"`
}

// SendMessageEndpoint handles POST /v1/chat/{passcode}/messages. The turn
// runs asynchronously; the agent's reply arrives over the subscription
// socket, not in this response.
type SendMessageEndpoint struct{}

func (e *SendMessageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/chat/{passcode}/messages", e.handler
}

func (e *SendMessageEndpoint) RequiresInit() bool { return true }

func (e *SendMessageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	passcode := profile.NormalizePasscode(r.PathValue("passcode"))
	if passcode == "" {
		writeError(w, http.StatusBadRequest, "passcode is required")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	// Validate the passcode synchronously so an unknown one is a clean 404
	// rather than a silently dropped turn.
	profiles := svcctx.ProfilesFrom(r.Context())
	if _, err := profiles.Get(r.Context(), passcode); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown passcode")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	logger := svcctx.LoggerFrom(r.Context())

	// The turn outlives this request; detach from the request context.
	go func() {
		if err := orch.HandleMessage(context.Background(), passcode, req.Message); err != nil {
			logger.Error("turn failed", "passcode", passcode, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, SendMessageResponse{Accepted: true})
}

func (e *SendMessageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "send <passcode> <message>",
		Short: "Send a message to a conversation",
		Long: `Send a message to a conversation.

The reply streams to subscribers of the conversation topic; use
"kringle api chat watch <passcode>" to see it arrive.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/v1/chat/" + profile.NormalizePasscode(args[0]) + "/messages"
			req := SendMessageRequest{Message: strings.Join(args[1:], " ")}
			var resp SendMessageResponse
			if err := client.Post(cmd.Context(), path, req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
