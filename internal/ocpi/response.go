package ocpi

import (
	"encoding/json"
	"time"
)

// Response is the OCPI JSON envelope every endpoint speaks: payload plus a
// numeric protocol status carried alongside the HTTP status. Both matter
// for interoperability; clients switch on status_code, proxies on the HTTP
// code.
type Response struct {
	Data          json.RawMessage `json:"data,omitempty"`
	StatusCode    int             `json:"status_code"`
	StatusMessage string          `json:"status_message,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}
