package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/platform/middleware"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/ocpierrors"
)

// checkVersion guards the module routes mounted under /ocpi/{version}/.
func (h *Handler) checkVersion(r *http.Request) error {
	version := ocpi.VersionNumber(chi.URLParam(r, "version"))
	if !h.versions.Supported(version) {
		return ocpierrors.New(ocpierrors.CodeUnsupportedVersion, "unsupported version").WithHTTPStatus(http.StatusNotFound)
	}
	return nil
}

func (h *Handler) handleGetCredentials(w http.ResponseWriter, r *http.Request) {
	if err := h.checkVersion(r); err != nil {
		WriteError(w, err)
		return
	}

	creds, err := h.credentials.Current(middleware.GetToken(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteSuccess(w, http.StatusOK, creds)
}

func (h *Handler) handlePostCredentials(w http.ResponseWriter, r *http.Request) {
	if err := h.checkVersion(r); err != nil {
		WriteError(w, err)
		return
	}

	var creds ocpi.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		WriteError(w, err)
		return
	}

	out, err := h.credentials.Register(r.Context(), middleware.GetToken(r.Context()), creds)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteSuccess(w, http.StatusOK, out)
}

func (h *Handler) handlePutCredentials(w http.ResponseWriter, r *http.Request) {
	if err := h.checkVersion(r); err != nil {
		WriteError(w, err)
		return
	}

	var creds ocpi.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		WriteError(w, err)
		return
	}

	out, err := h.credentials.Renew(r.Context(), middleware.GetToken(r.Context()), creds)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteSuccess(w, http.StatusOK, out)
}

func (h *Handler) handleDeleteCredentials(w http.ResponseWriter, r *http.Request) {
	if err := h.checkVersion(r); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.credentials.Revoke(r.Context(), middleware.GetToken(r.Context())); err != nil {
		WriteError(w, err)
		return
	}
	WriteSuccess(w, http.StatusOK, nil)
}
