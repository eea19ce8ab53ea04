package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/ocpierrors"
)

// WriteSuccess wraps data in the protocol envelope with status code 1000.
func WriteSuccess(w http.ResponseWriter, httpStatus int, data any) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			WriteError(w, ocpierrors.Wrap(err, ocpierrors.CodeServerError, "encode response"))
			return
		}
		raw = encoded
	}
	writeEnvelope(w, httpStatus, ocpi.Response{
		Data:          raw,
		StatusCode:    int(ocpierrors.CodeSuccess),
		StatusMessage: "Success",
		Timestamp:     time.Now().UTC(),
	})
}

// WriteError translates err into the protocol envelope. The HTTP status and
// the numeric status code both come from the coded error; anything uncoded
// becomes a generic server error.
func WriteError(w http.ResponseWriter, err error) {
	e := ocpierrors.From(err)
	writeEnvelope(w, e.HTTPStatus, ocpi.Response{
		StatusCode:    int(e.Code),
		StatusMessage: e.Message,
		Timestamp:     time.Now().UTC(),
	})
}

func writeEnvelope(w http.ResponseWriter, httpStatus int, resp ocpi.Response) {
	body, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_, _ = w.Write(body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return ocpierrors.Wrap(err, ocpierrors.CodeInvalidParameters, "invalid request body")
	}
	return nil
}
