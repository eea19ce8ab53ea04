// Package httpapi is the thin HTTP layer over the domain services. It owns
// routing, envelope encoding and status mapping; business rules stay in the
// services.
package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/credentials"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/party"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/platform/metrics"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/platform/middleware"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/remoteparty"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/versions"
)

// Handler bundles the dependencies of all HTTP endpoints.
type Handler struct {
	logger      *slog.Logger
	versions    *versions.Service
	credentials *credentials.Service
	remotes     *remoteparty.Registry
	parties     *party.Registry
	metrics     *metrics.Metrics
	adminToken  string
	openData    bool
}

// NewHandler constructs the HTTP layer. adminToken may be empty, which
// disables the operator endpoints. metrics may be nil.
func NewHandler(
	logger *slog.Logger,
	vs *versions.Service,
	creds *credentials.Service,
	remotes *remoteparty.Registry,
	parties *party.Registry,
	m *metrics.Metrics,
	adminToken string,
	openData bool,
) *Handler {
	return &Handler{
		logger:      logger,
		versions:    vs,
		credentials: creds,
		remotes:     remotes,
		parties:     parties,
		metrics:     m,
		adminToken:  adminToken,
		openData:    openData,
	}
}

// NewRouter wires all endpoints. Version discovery and the credentials
// module require token auth; the open data and operational endpoints do
// not.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(h.logger))
	r.Use(middleware.RequestLogger(h.logger))
	if h.metrics != nil {
		r.Use(countRequests(h.metrics))
	}

	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/ocpi", func(r chi.Router) {
		if h.openData {
			r.Get("/open/locations", h.handleOpenLocations)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireToken(h.remotes, h.logger))

			r.Get("/versions", h.handleVersionIndex)
			r.Get("/versions/{version}", h.handleVersionDetails)
			r.Options("/versions/{version}", h.handleVersionOptions)

			r.Route("/{version}/credentials", func(r chi.Router) {
				r.Get("/", h.handleGetCredentials)
				r.Post("/", h.handlePostCredentials)
				r.Put("/", h.handlePutCredentials)
				r.Delete("/", h.handleDeleteCredentials)
			})
		})
	})

	if h.adminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdminToken(h.adminToken, h.logger))
			r.Get("/parties", h.handleListParties)
			r.Post("/parties", h.handleAddParty)
			r.Put("/parties/{id}/status", h.handleSetPartyStatus)
		})
	}

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func countRequests(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.CountRequest(route, strconv.Itoa(sw.status))
		})
	}
}
