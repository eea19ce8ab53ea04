package versions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/ocpierrors"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/platform/circuit"
)

// Client performs the outbound version discovery calls of the registration
// handshake. Every call is bounded by the configured timeout; a timeout is
// treated exactly like any other upstream failure. A circuit breaker stops
// hammering a counterparty that keeps failing.
type Client struct {
	http    *http.Client
	breaker *circuit.Breaker
}

// NewClient builds a client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		breaker: circuit.New("versions-client"),
	}
}

// NewClientWithHTTP wraps an existing http.Client, for tests.
func NewClientWithHTTP(hc *http.Client) *Client {
	return &Client{http: hc, breaker: circuit.New("versions-client")}
}

// GetVersions fetches the counterparty's versions index.
func (c *Client) GetVersions(ctx context.Context, versionsURL, token string) ([]ocpi.VersionInfo, error) {
	var infos []ocpi.VersionInfo
	if err := c.get(ctx, versionsURL, token, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// GetVersionDetails fetches the endpoint catalogue behind one versions
// index entry.
func (c *Client) GetVersionDetails(ctx context.Context, detailsURL, token string) (ocpi.VersionDetails, error) {
	var details ocpi.VersionDetails
	if err := c.get(ctx, detailsURL, token, &details); err != nil {
		return ocpi.VersionDetails{}, err
	}
	return details, nil
}

func (c *Client) get(ctx context.Context, url, token string, out any) error {
	if !c.breaker.Allow() {
		return ocpierrors.New(ocpierrors.CodeUnableToUseClientAPI, "upstream circuit open")
	}
	err := c.fetch(ctx, url, token, out)
	if err != nil && ocpierrors.HasCode(err, ocpierrors.CodeUnableToUseClientAPI) {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}
	return err
}

func (c *Client) fetch(ctx context.Context, url, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ocpierrors.Wrap(err, ocpierrors.CodeUnableToUseClientAPI, "build upstream request")
	}
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ocpierrors.Wrap(err, ocpierrors.CodeUnableToUseClientAPI, "upstream fetch failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ocpierrors.Wrap(err, ocpierrors.CodeUnableToUseClientAPI, "read upstream response")
	}
	if resp.StatusCode != http.StatusOK {
		return ocpierrors.New(ocpierrors.CodeUnableToUseClientAPI,
			fmt.Sprintf("upstream returned HTTP %d", resp.StatusCode))
	}

	var envelope ocpi.Response
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ocpierrors.Wrap(err, ocpierrors.CodeUnableToUseClientAPI, "parse upstream response")
	}
	if envelope.StatusCode != int(ocpierrors.CodeSuccess) {
		return ocpierrors.New(ocpierrors.CodeUnableToUseClientAPI,
			fmt.Sprintf("upstream OCPI status %d: %s", envelope.StatusCode, envelope.StatusMessage))
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return ocpierrors.Wrap(err, ocpierrors.CodeUnableToUseClientAPI, "parse upstream payload")
	}
	return nil
}
