package endpoints

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/kringlelabs/kringle/internal/api"
	"github.com/kringlelabs/kringle/internal/profile"
	"github.com/kringlelabs/kringle/internal/svcctx"
)

// maxDocumentBytes bounds the admin profile payload.
const maxDocumentBytes = 64 << 10

// CreateProfileResponse returns the newly allocated passcode.
type CreateProfileResponse struct {
	Profile *profile.Profile `json:"profile"`
}

// CreateProfileEndpoint handles POST /v1/profiles.
type CreateProfileEndpoint struct{}

func (e *CreateProfileEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/profiles", e.handler
}

func (e *CreateProfileEndpoint) RequiresInit() bool { return true }

func (e *CreateProfileEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	doc, err := profile.ValidateDocument(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profiles := svcctx.ProfilesFrom(r.Context())
	created, err := profile.Create(r.Context(), profiles, doc)
	if err != nil {
		if errors.Is(err, profile.ErrPasscodeExhausted) {
			writeError(w, http.StatusServiceUnavailable, "unable to allocate a passcode, please try again")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, CreateProfileResponse{Profile: created})
}

func (e *CreateProfileEndpoint) Command(getServerURL func() string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a profile and allocate a passcode",
		Long: `Create a profile from a JSON document.

The document carries the child's name, age, gender, verification facts,
and presents. The server allocates a fresh passcode and returns it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read profile document: %w", err)
			}
			doc, err := profile.ValidateDocument(raw)
			if err != nil {
				return err
			}

			client := api.NewClient(getServerURL())
			var resp CreateProfileResponse
			if err := client.Post(cmd.Context(), "/v1/profiles", doc, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the profile JSON document")
	cmd.MarkFlagRequired("file")
	return cmd
}
