// Package credentials implements the bilateral registration handshake that
// bootstraps trust between two previously unknown parties: Token A is
// pre-shared out of band and spent by the first handshake, Token B is the
// counterparty's token towards us presented in the request body, Token C
// is freshly minted here and replaces Token A. Rotation is all-or-nothing:
// no failure path leaves a partially rotated token set.
package credentials

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/remoteparty"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/versions"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/ocpierrors"
)

// VersionsClient is the outbound discovery surface the handshake needs
// from the counterparty.
type VersionsClient interface {
	GetVersions(ctx context.Context, versionsURL, token string) ([]ocpi.VersionInfo, error)
	GetVersionDetails(ctx context.Context, detailsURL, token string) (ocpi.VersionDetails, error)
}

// HandshakeCounter is the metrics surface the service reports to.
type HandshakeCounter interface {
	CountHandshake(operation, result string)
}

// Service runs the registration, renewal and revocation operations.
type Service struct {
	remotes  *remoteparty.Registry
	client   VersionsClient
	versions *versions.Service
	ownRoles []ocpi.CredentialsRole
	logger   *slog.Logger

	metrics   HandshakeCounter
	mintToken func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics installs the handshake counter.
func WithMetrics(m HandshakeCounter) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTokenMinter overrides Token C generation, for tests.
func WithTokenMinter(mint func() (string, error)) Option {
	return func(s *Service) { s.mintToken = mint }
}

// New constructs the handshake service.
func New(remotes *remoteparty.Registry, client VersionsClient, vs *versions.Service, ownRoles []ocpi.CredentialsRole, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		remotes:   remotes,
		client:    client,
		versions:  vs,
		ownRoles:  ownRoles,
		logger:    logger,
		mintToken: mintAccessToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns our credentials document for an allowed caller: the
// token the caller already uses towards us, our versions URL and our
// roles.
func (s *Service) Current(token string) (ocpi.Credentials, error) {
	_, local, ok := s.remotes.ByLocalToken(token)
	if !ok {
		return ocpi.Credentials{}, errUnknownToken()
	}
	if local.Status == remoteparty.AccessBlocked {
		return ocpi.Credentials{}, errBlocked()
	}
	return s.ownCredentials(token), nil
}

// Register runs the initial handshake (POST): legal only while the
// presented token is PROVISIONED.
func (s *Service) Register(ctx context.Context, token string, creds ocpi.Credentials) (ocpi.Credentials, error) {
	out, err := s.handshake(ctx, token, creds, remoteparty.StateProvisioned)
	s.count("register", err)
	return out, err
}

// Renew runs the credential-rotation handshake (PUT): legal only while the
// presented token is REGISTERED.
func (s *Service) Renew(ctx context.Context, token string, creds ocpi.Credentials) (ocpi.Credentials, error) {
	out, err := s.handshake(ctx, token, creds, remoteparty.StateRegistered)
	s.count("renew", err)
	return out, err
}

// Revoke removes the presented token's access entirely (DELETE). Only a
// fully registered token can be revoked; when it was the counterparty's
// last one the whole RemoteParty record goes with it.
func (s *Service) Revoke(ctx context.Context, token string) error {
	party, local, ok := s.remotes.ByLocalToken(token)
	var err error
	switch {
	case !ok:
		err = errUnknownToken()
	case local.State() == remoteparty.StateBlocked:
		err = errBlocked()
	case local.State() != remoteparty.StateRegistered:
		err = errNotRegistered()
	}
	if err != nil {
		s.count("revoke", err)
		return err
	}

	eventTrackingID := uuid.NewString()
	_, deleted, err := s.remotes.RemoveAccessToken(ctx, token, eventTrackingID)
	if err != nil {
		err = errUnknownToken()
		s.count("revoke", err)
		return err
	}
	s.logger.InfoContext(ctx, "remote party unregistered",
		"remote_party", party.ID,
		"party_deleted", deleted,
		"event_tracking_id", eventTrackingID,
	)
	s.count("revoke", nil)
	return nil
}

// handshake is the shared POST/PUT core; the two differ only in the state
// the presented token must be in. Steps 1-4 never mutate anything, so any
// failure leaves Token A valid and the counterparty free to retry.
func (s *Service) handshake(ctx context.Context, token string, creds ocpi.Credentials, required remoteparty.RegistrationState) (ocpi.Credentials, error) {
	party, local, ok := s.remotes.ByLocalToken(token)
	if !ok {
		return ocpi.Credentials{}, errUnknownToken()
	}
	switch state := local.State(); {
	case state == remoteparty.StateBlocked:
		return ocpi.Credentials{}, errBlocked()
	case required == remoteparty.StateProvisioned && state == remoteparty.StateRegistered:
		return ocpi.Credentials{}, ocpierrors.New(ocpierrors.CodeClientError, "already registered").
			WithHTTPStatus(http.StatusMethodNotAllowed)
	case required == remoteparty.StateRegistered && state == remoteparty.StateProvisioned:
		return ocpi.Credentials{}, errNotRegistered()
	}

	if creds.Token == "" || creds.URL == "" {
		return ocpi.Credentials{}, ocpierrors.New(ocpierrors.CodeInvalidParameters, "credentials token and url are required")
	}
	if len(creds.Roles) == 0 {
		return ocpi.Credentials{}, ocpierrors.New(ocpierrors.CodeInvalidParameters, "credentials roles are required")
	}

	// Round-trip to the counterparty before touching any state.
	remoteVersions, err := s.client.GetVersions(ctx, creds.URL, creds.Token)
	if err != nil {
		return ocpi.Credentials{}, err
	}
	selected, detailsURL, ok := s.selectVersion(remoteVersions)
	if !ok {
		return ocpi.Credentials{}, ocpierrors.New(ocpierrors.CodeUnsupportedVersion, "no mutually supported version")
	}
	details, err := s.client.GetVersionDetails(ctx, detailsURL, creds.Token)
	if err != nil {
		return ocpi.Credentials{}, err
	}
	if !hasCredentialsEndpoint(details) {
		return ocpi.Credentials{}, ocpierrors.New(ocpierrors.CodeNoMatchingEndpoints, "counterparty exposes no credentials endpoint")
	}

	// Roles are immutable once registered: the payload must carry exactly
	// the tuples we already know.
	if !ocpi.SameRoleSet(party.Roles, creds.Roles) {
		return ocpi.Credentials{}, ocpierrors.New(ocpierrors.CodeClientError, "role set may not change").
			WithHTTPStatus(http.StatusMethodNotAllowed)
	}

	tokenC, err := s.mintToken()
	if err != nil {
		return ocpi.Credentials{}, ocpierrors.Wrap(err, ocpierrors.CodeServerError, "mint access token")
	}

	eventTrackingID := uuid.NewString()
	supported := make([]ocpi.VersionNumber, 0, len(remoteVersions))
	for _, v := range remoteVersions {
		supported = append(supported, v.Version)
	}
	newLocal := remoteparty.LocalAccessInfo{
		AccessToken: tokenC,
		Status:      remoteparty.AccessAllowed,
		VersionsURL: creds.URL,
	}
	newRemote := remoteparty.RemoteAccessInfo{
		AccessToken:       creds.Token,
		VersionsURL:       creds.URL,
		SupportedVersions: supported,
		SelectedVersion:   selected,
		Status:            remoteparty.ConnectionOnline,
	}

	// Commit point. A concurrent handshake that spent the same Token A
	// first wins; we surface that as an unknown token, exactly like a
	// replay of an already-rotated token.
	if _, err := s.remotes.RotateAccess(ctx, party.ID, token, newLocal, newRemote, eventTrackingID); err != nil {
		return ocpi.Credentials{}, errUnknownToken()
	}

	s.logger.InfoContext(ctx, "credential handshake completed",
		"remote_party", party.ID,
		"selected_version", string(selected),
		"event_tracking_id", eventTrackingID,
	)
	return s.ownCredentials(tokenC), nil
}

func (s *Service) ownCredentials(token string) ocpi.Credentials {
	return ocpi.Credentials{
		Token: token,
		URL:   s.versions.VersionsURL(),
		Roles: s.ownRoles,
	}
}

// selectVersion picks the newest version both sides support from the
// counterparty's index.
func (s *Service) selectVersion(remote []ocpi.VersionInfo) (ocpi.VersionNumber, string, bool) {
	var (
		best  ocpi.VersionInfo
		found bool
	)
	for _, v := range remote {
		if !s.versions.Supported(v.Version) {
			continue
		}
		if !found || string(v.Version) > string(best.Version) {
			best = v
			found = true
		}
	}
	return best.Version, best.URL, found
}

func hasCredentialsEndpoint(details ocpi.VersionDetails) bool {
	for _, e := range details.Endpoints {
		if e.Identifier == ocpi.ModuleCredentials {
			return true
		}
	}
	return false
}

func (s *Service) count(operation string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = fmt.Sprintf("error_%d", ocpierrors.From(err).Code)
	}
	s.metrics.CountHandshake(operation, result)
}

func errUnknownToken() error {
	return ocpierrors.New(ocpierrors.CodeClientError, "unknown token").
		WithHTTPStatus(http.StatusForbidden)
}

func errBlocked() error {
	return ocpierrors.New(ocpierrors.CodeClientError, "token is blocked").
		WithHTTPStatus(http.StatusForbidden)
}

func errNotRegistered() error {
	return ocpierrors.New(ocpierrors.CodeClientError, "not registered").
		WithHTTPStatus(http.StatusMethodNotAllowed)
}

// mintAccessToken generates Token C: 20 random bytes, hex encoded.
func mintAccessToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
