package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/kringlelabs/kringle/internal/api"
	"github.com/kringlelabs/kringle/internal/phase"
	"github.com/kringlelabs/kringle/internal/profile"
	"github.com/kringlelabs/kringle/internal/svcctx"
)

// JoinChatResponse tells the client who the conversation belongs to and
// where it stands.
type JoinChatResponse struct {
	Passcode string      `json:"passcode"`
	Name     string      `json:"name"`
	Phase    phase.Phase `json:"phase"`
}

// JoinChatEndpoint handles POST /v1/chat/{passcode}/join. Joining validates
// the passcode; entering a wrong one gets a 404 with no hint of valid codes.
type JoinChatEndpoint struct{}

func (e *JoinChatEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/chat/{passcode}/join", e.handler
}

func (e *JoinChatEndpoint) RequiresInit() bool { return true }

func (e *JoinChatEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	passcode := profile.NormalizePasscode(r.PathValue("passcode"))
	if passcode == "" {
		writeError(w, http.StatusBadRequest, "passcode is required")
		return
	}

	profiles := svcctx.ProfilesFrom(r.Context())
	p, err := profiles.Get(r.Context(), passcode)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown passcode")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, JoinChatResponse{
		Passcode: p.Passcode,
		Name:     p.Name,
		Phase:    p.Phase,
	})
}

func (e *JoinChatEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "join <passcode>",
		Short: "Join a conversation by passcode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp JoinChatResponse
			path := "/v1/chat/" + profile.NormalizePasscode(args[0]) + "/join"
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
