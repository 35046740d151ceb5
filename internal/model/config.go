package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultAssetPageLimit = 100
	DefaultFleetPageLimit = 50
	DefaultRequestTimeout = 30 * time.Second
	DefaultDataDir        = "./regiongen_data"

	maxShards = 128
	maxZones  = 3
)

var (
	ErrConfig = errors.New("configuration error")
)

// Config holds application configuration read from a YAML/JSON file or set by env variables.
//
// nolint:govet // prefer readability over field alignment optimization for this case.
type Config struct {
	// File is the configuration file path
	File string `mapstructure:"-"`

	// LogLevel is the app verbose logging level.
	// one of - info, debug, trace
	LogLevel string `mapstructure:"log_level"`

	// DataDir is the directory under which inventory snapshots are stored.
	DataDir string `mapstructure:"data_dir"`

	// RequestTimeout is applied to each upstream API request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	AssetAPI *AssetAPI `mapstructure:"asset_api"`
	FleetAPI *FleetAPI `mapstructure:"fleet_api"`

	// HardwareRoles maps asset hardware model names to server roles,
	// when set it replaces the built in table.
	HardwareRoles map[string]Role `mapstructure:"hardware_roles"`

	// HostnamePrefixes maps server roles to the hostname prefix expected for the role.
	HostnamePrefixes map[Role]string `mapstructure:"hostname_prefixes"`

	Regions map[string]*Region `mapstructure:"regions"`
}

// AssetAPI is the asset-management system client configuration.
type AssetAPI struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	// Password is normally set through the environment or an env file.
	Password  string `mapstructure:"password"`
	PageLimit int    `mapstructure:"page_limit"`
}

// FleetAPI is the fleet-management system client configuration.
type FleetAPI struct {
	PageLimit int `mapstructure:"page_limit"`
}

// SetDefaults fills in unset optional parameters.
func (c *Config) SetDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}

	if c.AssetAPI == nil {
		c.AssetAPI = &AssetAPI{}
	}

	if c.AssetAPI.PageLimit == 0 {
		c.AssetAPI.PageLimit = DefaultAssetPageLimit
	}

	if c.FleetAPI == nil {
		c.FleetAPI = &FleetAPI{}
	}

	if c.FleetAPI.PageLimit == 0 {
		c.FleetAPI.PageLimit = DefaultFleetPageLimit
	}

	for name, region := range c.Regions {
		if region != nil {
			region.Name = name
		}
	}
}

// Validate checks the configuration parameters are present and within bounds.
//
//nolint:gocyclo // parameter validation is cyclomatic
func (c *Config) Validate() error {
	if c.AssetAPI == nil || c.AssetAPI.URL == "" {
		return errors.Wrap(ErrConfig, "asset_api.url not defined")
	}

	if c.AssetAPI.Username == "" {
		return errors.Wrap(ErrConfig, "asset_api.username not defined")
	}

	if _, err := url.Parse(c.AssetAPI.URL); err != nil {
		return errors.Wrap(ErrConfig, "asset_api.url error: "+err.Error())
	}

	if c.AssetAPI.PageLimit < 0 || (c.FleetAPI != nil && c.FleetAPI.PageLimit < 0) {
		return errors.Wrap(ErrConfig, "page_limit must be positive")
	}

	if len(c.Regions) == 0 {
		return errors.Wrap(ErrConfig, "no regions defined")
	}

	for name, region := range c.Regions {
		if err := region.validate(); err != nil {
			return errors.Wrap(ErrConfig, fmt.Sprintf("region %q: %s", name, err.Error()))
		}
	}

	for hw, role := range c.HardwareRoles {
		if !validRole(role) {
			return errors.Wrap(ErrConfig, fmt.Sprintf("hardware_roles %q: unknown role %q", hw, role))
		}
	}

	for role := range c.HostnamePrefixes {
		if !validRole(role) {
			return errors.Wrap(ErrConfig, fmt.Sprintf("hostname_prefixes: unknown role %q", role))
		}
	}

	return nil
}

// Region returns the named region configuration.
func (c *Config) Region(name string) (*Region, error) {
	region, exists := c.Regions[strings.ToLower(name)]
	if !exists || region == nil {
		return nil, errors.Wrap(ErrConfig, fmt.Sprintf("unknown region: %q", name))
	}

	return region, nil
}

func (r *Region) validate() error {
	if r == nil {
		return errors.New("empty region")
	}

	if r.Shards < 1 || r.Shards > maxShards {
		return errors.Errorf("nshards must be within 1-%d, got %d", maxShards, r.Shards)
	}

	if len(r.Zones) == 0 || len(r.Zones) > maxZones {
		return errors.Errorf("expected 1-%d zones, got %d", maxZones, len(r.Zones))
	}

	seen := map[string]bool{}

	for idx, z := range r.Zones {
		if z.Name == "" {
			return errors.Errorf("zone %d: name not defined", idx)
		}

		if seen[z.Name] {
			return errors.Errorf("zone %q defined more than once", z.Name)
		}

		seen[z.Name] = true

		if z.Building == "" {
			return errors.Errorf("zone %q: building not defined", z.Name)
		}

		if len(z.Racks) == 0 {
			return errors.Errorf("zone %q: expected at least one rack", z.Name)
		}

		for _, rack := range z.Racks {
			if rack == "" {
				return errors.Errorf("zone %q: empty rack identifier", z.Name)
			}
		}
	}

	return nil
}

func validRole(r Role) bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}

	return false
}
