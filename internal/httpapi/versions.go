package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/platform/middleware"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/ocpierrors"
)

func (h *Handler) handleVersionIndex(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, http.StatusOK, h.versions.Index())
}

func (h *Handler) handleVersionDetails(w http.ResponseWriter, r *http.Request) {
	party, ok := middleware.GetParty(r.Context())
	if !ok {
		WriteError(w, ocpierrors.New(ocpierrors.CodeClientError, "caller not resolved").WithHTTPStatus(http.StatusForbidden))
		return
	}

	version := ocpi.VersionNumber(chi.URLParam(r, "version"))
	details, err := h.versions.Details(version, party.Roles)
	if err != nil {
		if ocpierrors.HasCode(err, ocpierrors.CodeUnsupportedVersion) {
			err = ocpierrors.From(err).WithHTTPStatus(http.StatusNotFound)
		}
		WriteError(w, err)
		return
	}
	WriteSuccess(w, http.StatusOK, details)
}

func (h *Handler) handleVersionOptions(w http.ResponseWriter, r *http.Request) {
	version := ocpi.VersionNumber(chi.URLParam(r, "version"))
	if !h.versions.Supported(version) {
		WriteError(w, ocpierrors.New(ocpierrors.CodeUnsupportedVersion, "unsupported version").WithHTTPStatus(http.StatusNotFound))
		return
	}
	w.Header().Set("Allow", "OPTIONS,GET")
	w.WriteHeader(http.StatusOK)
}
