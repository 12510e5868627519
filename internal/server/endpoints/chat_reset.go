package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/kringlelabs/kringle/internal/api"
	"github.com/kringlelabs/kringle/internal/profile"
	"github.com/kringlelabs/kringle/internal/svcctx"
)

// ResetChatEndpoint handles DELETE /v1/profiles/{passcode}/chat. The
// conversation returns to unstarted; the profile itself is untouched.
type ResetChatEndpoint struct{}

func (e *ResetChatEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/v1/profiles/{passcode}/chat", e.handler
}

func (e *ResetChatEndpoint) RequiresInit() bool { return true }

func (e *ResetChatEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	passcode := profile.NormalizePasscode(r.PathValue("passcode"))
	if passcode == "" {
		writeError(w, http.StatusBadRequest, "passcode is required")
		return
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	p, err := orch.ResetConversation(r.Context(), passcode)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (e *ResetChatEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <passcode>",
		Short: "Reset a conversation to the beginning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/v1/profiles/" + profile.NormalizePasscode(args[0]) + "/chat"
			if err := client.Delete(cmd.Context(), path); err != nil {
				return err
			}
			return api.Output(map[string]string{"status": "reset"})
		},
	}
}
