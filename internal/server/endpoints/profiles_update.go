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

// UpdateProfileEndpoint handles PUT /v1/profiles/{passcode}. The document
// replaces the stored identity fields; conversation progress is preserved.
type UpdateProfileEndpoint struct{}

func (e *UpdateProfileEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/v1/profiles/{passcode}", e.handler
}

func (e *UpdateProfileEndpoint) RequiresInit() bool { return true }

func (e *UpdateProfileEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	passcode := profile.NormalizePasscode(r.PathValue("passcode"))
	if passcode == "" {
		writeError(w, http.StatusBadRequest, "passcode is required")
		return
	}

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
	existing, err := profiles.Get(r.Context(), passcode)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated := &profile.Profile{
		Passcode: passcode,
		Name:     doc.Name,
		Age:      doc.Age,
		Gender:   doc.Gender,
		Facts:    doc.Facts,
		Presents: doc.Presents,
		Phase:    existing.Phase,
	}
	if err := profiles.Put(r.Context(), updated, true); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (e *UpdateProfileEndpoint) Command(getServerURL func() string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "update <passcode>",
		Short: "Replace a profile's identity document",
		Args:  cobra.ExactArgs(1),
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
			var resp profile.Profile
			if err := client.Put(cmd.Context(), "/v1/profiles/"+profile.NormalizePasscode(args[0]), doc, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the profile JSON document")
	cmd.MarkFlagRequired("file")
	return cmd
}
