package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/kringlelabs/kringle/internal/api"
	"github.com/kringlelabs/kringle/internal/profile"
	"github.com/kringlelabs/kringle/internal/svcctx"
)

// GetProfileEndpoint handles GET /v1/profiles/{passcode}.
type GetProfileEndpoint struct{}

func (e *GetProfileEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/profiles/{passcode}", e.handler
}

func (e *GetProfileEndpoint) RequiresInit() bool { return true }

func (e *GetProfileEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	passcode := profile.NormalizePasscode(r.PathValue("passcode"))
	if passcode == "" {
		writeError(w, http.StatusBadRequest, "passcode is required")
		return
	}

	profiles := svcctx.ProfilesFrom(r.Context())
	p, err := profiles.Get(r.Context(), passcode)
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

func (e *GetProfileEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <passcode>",
		Short: "Get a profile by passcode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp profile.Profile
			if err := client.Get(cmd.Context(), "/v1/profiles/"+profile.NormalizePasscode(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
