package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/remoteparty"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/ocpierrors"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/platform/sentinel"
)

// The operator endpoints pre-provision counterparties with Token A and
// manage their lifecycle. They speak the same envelope as the protocol
// endpoints so operator tooling can reuse the client code.

func (h *Handler) handleListParties(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, http.StatusOK, h.remotes.All())
}

func (h *Handler) handleAddParty(w http.ResponseWriter, r *http.Request) {
	var party remoteparty.RemoteParty
	if err := decodeJSON(r, &party); err != nil {
		WriteError(w, err)
		return
	}

	added, err := h.remotes.Add(r.Context(), party)
	if err != nil {
		WriteError(w, adminError(err))
		return
	}
	WriteSuccess(w, http.StatusCreated, added)
}

func (h *Handler) handleSetPartyStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status remoteparty.PartyStatus `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if body.Status != remoteparty.PartyEnabled && body.Status != remoteparty.PartyDisabled {
		WriteError(w, ocpierrors.New(ocpierrors.CodeInvalidParameters, "status must be ENABLED or DISABLED"))
		return
	}

	updated, err := h.remotes.SetPartyStatus(r.Context(), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		WriteError(w, adminError(err))
		return
	}
	WriteSuccess(w, http.StatusOK, updated)
}

// handleOpenLocations publishes every party's locations without auth.
func (h *Handler) handleOpenLocations(w http.ResponseWriter, _ *http.Request) {
	var out []ocpi.Location
	for _, d := range h.parties.Parties() {
		out = append(out, d.Locations.All()...)
	}
	WriteSuccess(w, http.StatusOK, out)
}

func adminError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return ocpierrors.Wrap(err, ocpierrors.CodeClientError, "party or token already exists").WithHTTPStatus(http.StatusConflict)
	case errors.Is(err, sentinel.ErrNotFound):
		return ocpierrors.Wrap(err, ocpierrors.CodeClientError, "party not found").WithHTTPStatus(http.StatusNotFound)
	case errors.Is(err, sentinel.ErrInvalidState):
		return ocpierrors.Wrap(err, ocpierrors.CodeInvalidParameters, "invalid party record")
	default:
		return err
	}
}
