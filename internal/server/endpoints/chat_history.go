package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/kringlelabs/kringle/internal/api"
	"github.com/kringlelabs/kringle/internal/chat"
	"github.com/kringlelabs/kringle/internal/profile"
	"github.com/kringlelabs/kringle/internal/svcctx"
)

// ChatHistoryResponse wraps the display transcript.
type ChatHistoryResponse struct {
	Passcode string              `json:"passcode"`
	Entries  []chat.DisplayEntry `json:"entries"`
}

// ChatHistoryEndpoint handles GET /v1/chat/{passcode}/history.
type ChatHistoryEndpoint struct{}

func (e *ChatHistoryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/chat/{passcode}/history", e.handler
}

func (e *ChatHistoryEndpoint) RequiresInit() bool { return true }

func (e *ChatHistoryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	passcode := profile.NormalizePasscode(r.PathValue("passcode"))
	if passcode == "" {
		writeError(w, http.StatusBadRequest, "passcode is required")
		return
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	entries, err := orch.Transcript(r.Context(), passcode)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown passcode")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []chat.DisplayEntry{}
	}

	writeJSON(w, http.StatusOK, ChatHistoryResponse{Passcode: passcode, Entries: entries})
}

func (e *ChatHistoryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "history <passcode>",
		Short: "Show a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/v1/chat/" + profile.NormalizePasscode(args[0]) + "/history"
			var resp ChatHistoryResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			for _, entry := range resp.Entries {
				fmt.Printf("%s: %s\n", entry.Username, entry.Message)
			}
			return nil
		},
	}
}
