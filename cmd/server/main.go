// main wires high-level dependencies, replays the durable log, and keeps
// the server lifecycle small. Business logic lives in the internal
// services packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/commandlog"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/credentials"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/httpapi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/notify"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/party"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/platform/config"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/platform/httpserver"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/platform/logger"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/platform/metrics"
	platformredis "github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/platform/redis"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/remoteparty"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/store"
	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/versions"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	dlog, err := openCommandLog(cfg)
	if err != nil {
		return err
	}
	defer dlog.Close()

	buses := party.NewBuses(log, func(event notify.Event) {
		m.CountNotificationFailure(string(event))
	})
	parties := party.NewRegistry(log, dlog, buses,
		party.WithMutationHook(func(storeName string, outcome store.Outcome) {
			m.CountMutation(storeName, string(outcome))
		}),
		party.WithKeepRemovedEVSEs(func(ocpi.EVSE) bool { return cfg.KeepRemovedEVSEs }),
	)
	remotes := remoteparty.NewRegistry(log, dlog)

	if err := parties.ReplayAll(ctx, dlog); err != nil {
		return err
	}
	if err := commandlog.Replay(ctx, dlog, remoteparty.LogStore, remotes.Apply); err != nil {
		return err
	}

	ownIdentity, err := ocpi.NewPartyIdentity(cfg.CountryCode, cfg.PartyID)
	if err != nil {
		return err
	}
	ownRoles := make([]ocpi.CredentialsRole, 0, len(cfg.Roles))
	for _, role := range cfg.Roles {
		ownRoles = append(ownRoles, ocpi.CredentialsRole{
			CountryCode:     ownIdentity.CountryCode,
			PartyID:         ownIdentity.PartyID,
			Role:            role,
			BusinessDetails: ocpi.BusinessDetails{Name: cfg.BusinessName},
		})
	}
	if _, ok := parties.Party(ownIdentity); !ok {
		if _, err := parties.Register(ctx, party.Info{
			Identity:        ownIdentity,
			Role:            cfg.Roles[0],
			BusinessDetails: ocpi.BusinessDetails{Name: cfg.BusinessName},
			AllowDowngrades: cfg.AllowDowngrades,
		}); err != nil {
			return err
		}
	}

	vs := versions.New(cfg.ExternalURL, []ocpi.VersionNumber{ocpi.Version211, ocpi.Version22, ocpi.Version221}, cfg.OpenData)
	creds := credentials.New(remotes, versions.NewClient(cfg.OutboundTimeout), vs, ownRoles, log,
		credentials.WithMetrics(m),
	)

	handler := httpapi.NewHandler(log, vs, creds, remotes, parties, m, cfg.AdminToken, cfg.OpenData)
	srv := httpserver.New(cfg.Addr, httpapi.NewRouter(handler))

	log.Info("starting ocpi server",
		"addr", cfg.Addr,
		"external_url", cfg.ExternalURL,
		"party", ownIdentity.String(),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openCommandLog prefers the Redis backend when configured and falls back
// to per-store JSONL files.
func openCommandLog(cfg config.Server) (commandlog.Log, error) {
	if cfg.RedisURL != "" {
		rdb, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return commandlog.NewRedisLog(rdb.Client, "").WithCloser(rdb.Close), nil
	}
	return commandlog.NewFileLog(cfg.CommandLogDir)
}
