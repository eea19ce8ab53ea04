package config

import (
	"os"
	"strings"
	"time"

	"github.com/OpenChargingCloud/WWCP-OCPI-sub003/internal/ocpi"
	platformstrings "github.com/OpenChargingCloud/WWCP-OCPI-sub003/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	ExternalURL string

	// Identity of the platform operator, used for the default
	// credentials role advertised during registration.
	CountryCode  string
	PartyID      string
	Roles        []ocpi.Role
	BusinessName string

	AdminToken string

	RedisURL      string
	CommandLogDir string

	OutboundTimeout  time.Duration
	KeepRemovedEVSEs bool
	AllowDowngrades  bool
	OpenData         bool

	LogFormat string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("OCPI_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	externalURL := os.Getenv("OCPI_EXTERNAL_URL")
	if externalURL == "" {
		externalURL = "http://localhost:8080"
	}
	externalURL = strings.TrimRight(externalURL, "/")

	countryCode := os.Getenv("OCPI_COUNTRY_CODE")
	if countryCode == "" {
		countryCode = "DE"
	}
	partyID := os.Getenv("OCPI_PARTY_ID")
	if partyID == "" {
		partyID = "GEF"
	}

	roles := parseRoles(os.Getenv("OCPI_ROLES"))
	if len(roles) == 0 {
		roles = []ocpi.Role{ocpi.RoleCPO}
	}

	businessName := os.Getenv("OCPI_BUSINESS_NAME")
	if businessName == "" {
		businessName = "Open Charging Cloud"
	}

	outboundTimeout := 10 * time.Second
	if raw := os.Getenv("OCPI_OUTBOUND_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			outboundTimeout = d
		}
	}

	commandLogDir := os.Getenv("OCPI_COMMAND_LOG_DIR")
	if commandLogDir == "" {
		commandLogDir = "data"
	}

	return Server{
		Addr:             addr,
		ExternalURL:      externalURL,
		CountryCode:      countryCode,
		PartyID:          partyID,
		Roles:            roles,
		BusinessName:     businessName,
		AdminToken:       os.Getenv("OCPI_ADMIN_TOKEN"),
		RedisURL:         os.Getenv("OCPI_REDIS_URL"),
		CommandLogDir:    commandLogDir,
		OutboundTimeout:  outboundTimeout,
		KeepRemovedEVSEs: os.Getenv("OCPI_DROP_REMOVED_EVSES") != "true",
		AllowDowngrades:  os.Getenv("OCPI_ALLOW_DOWNGRADES") == "true",
		OpenData:         os.Getenv("OCPI_OPEN_DATA") == "true",
		LogFormat:        os.Getenv("OCPI_LOG_FORMAT"),
	}
}

func parseRoles(raw string) []ocpi.Role {
	if raw == "" {
		return nil
	}
	parts := platformstrings.DedupeAndTrim(strings.Split(strings.ToUpper(raw), ","))
	roles := make([]ocpi.Role, 0, len(parts))
	for _, part := range parts {
		roles = append(roles, ocpi.Role(part))
	}
	return roles
}
