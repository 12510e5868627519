package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/kringlelabs/kringle/internal/api"
	"github.com/kringlelabs/kringle/internal/profile"
	"github.com/kringlelabs/kringle/internal/svcctx"
)

// ListProfilesResponse wraps the profile listing.
type ListProfilesResponse struct {
	Profiles []*profile.Profile `json:"profiles"`
	Count    int                `json:"count"`
}

// ListProfilesEndpoint handles GET /v1/profiles.
type ListProfilesEndpoint struct{}

func (e *ListProfilesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/profiles", e.handler
}

func (e *ListProfilesEndpoint) RequiresInit() bool { return true }

func (e *ListProfilesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	profiles := svcctx.ProfilesFrom(r.Context())
	all, err := profiles.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if all == nil {
		all = []*profile.Profile{}
	}
	writeJSON(w, http.StatusOK, ListProfilesResponse{Profiles: all, Count: len(all)})
}

func (e *ListProfilesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListProfilesResponse
			if err := client.Get(cmd.Context(), "/v1/profiles", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
