package model

import "strings"

const (
	AppName = "regiongen"

	LogLevelInfo  = 0
	LogLevelDebug = 1
	LogLevelTrace = 2

	// DefaultMemoryGB is the memory value applied to a server whose
	// asset record carries no RAM.
	DefaultMemoryGB = 64
)

// LogLevelFromString returns the log level for one of info, debug, trace.
func LogLevelFromString(level string) int {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "trace":
		return LogLevelTrace
	default:
		return LogLevelInfo
	}
}

// Device is a hardware asset as recorded in the asset-management system.
//
// Nullable attributes are pointers, a nil value means the asset system
// returned no value for the attribute. Attribute values are kept as reported,
// they are validated when the device is reconciled as a server.
type Device struct {
	ID            int64    `json:"device_id" yaml:"device_id"`
	Serial        string   `json:"serial" yaml:"serial"`
	Name          string   `json:"name" yaml:"name"`
	HardwareModel *string  `json:"hw_model,omitempty" yaml:"hw_model,omitempty"`
	Building      *string  `json:"building,omitempty" yaml:"building,omitempty"`
	Rack          *string  `json:"rack,omitempty" yaml:"rack,omitempty"`
	UUID          *string  `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	RAMGB         *float64 `json:"ram_gb,omitempty" yaml:"ram_gb,omitempty"`
	// CreatedAt is the creation timestamp as returned by the asset system.
	CreatedAt string `json:"created_at" yaml:"created_at"`
}

// Node is a server as recorded in the fleet-management system.
type Node struct {
	UUID     string `json:"uuid" yaml:"uuid"`
	Serial   string `json:"serial" yaml:"serial"`
	Hostname string `json:"hostname" yaml:"hostname"`
	RAMMB    int    `json:"ram_mb" yaml:"ram_mb"`
	Headnode bool   `json:"headnode" yaml:"headnode"`
	Reserved bool   `json:"reserved" yaml:"reserved"`
	Product  string `json:"product" yaml:"product"`
}

// Zone describes one availability zone of a region.
type Zone struct {
	Name     string   `mapstructure:"name"`
	Building string   `mapstructure:"building"`
	Racks    []string `mapstructure:"racks"`
	// FleetEndpoint is the fleet API address for the zone, optional.
	FleetEndpoint string `mapstructure:"fleet_endpoint"`
}

// RackSet returns the set of rack identifiers permitted in the zone.
func (z *Zone) RackSet() map[string]struct{} {
	set := make(map[string]struct{}, len(z.Racks))
	for _, r := range z.Racks {
		set[r] = struct{}{}
	}

	return set
}

// QualifiedRack returns the zone qualified rack name.
func (z *Zone) QualifiedRack(rack string) string {
	return z.Name + "_" + rack
}

// Region is a set of zones deployed together.
type Region struct {
	Name   string `mapstructure:"-"`
	Shards int    `mapstructure:"nshards"`
	Zones  []Zone `mapstructure:"zones"`
}

// ZoneNames returns the region zone names in configured order.
func (r *Region) ZoneNames() []string {
	names := make([]string, 0, len(r.Zones))
	for _, z := range r.Zones {
		names = append(names, z.Name)
	}

	return names
}

// Role is the function a server is deployed for.
type Role string

const (
	RoleMetadata Role = "metadata"
	RoleStorage  Role = "storage"
)

// Roles returns the supported server roles.
func Roles() []Role { return []Role{RoleMetadata, RoleStorage} }

// Server is one entry in the deployment descriptor.
//
// ID holds the server uuid, when the uuid is not known it holds the serial number
// and the descriptor cannot be used for deployment as is.
type Server struct {
	Role     Role   `json:"type"`
	ID       string `json:"uuid"`
	Zone     string `json:"az"`
	Rack     string `json:"rack"`
	MemoryGB int    `json:"memory"`
}

// Descriptor is the reconciled deployment input for a region.
type Descriptor struct {
	Shards  int      `json:"nshards"`
	Servers []Server `json:"servers"`
}

// Inventory holds the records fetched for a region, keyed by zone name.
//
// A zone missing from Nodes has no fleet data, this is different from a zone
// with an empty Node list.
type Inventory struct {
	Devices map[string][]Device `yaml:"devices"`
	Nodes   map[string][]Node   `yaml:"nodes"`
}

// NewInventory returns an empty Inventory.
func NewInventory() *Inventory {
	return &Inventory{
		Devices: map[string][]Device{},
		Nodes:   map[string][]Node{},
	}
}

// HasNodes returns true when fleet data is present for the zone.
func (i *Inventory) HasNodes(zone string) bool {
	_, exists := i.Nodes[zone]
	return exists
}

// StrPtr returns a pointer to the given string.
func StrPtr(s string) *string { return &s }

// FloatPtr returns a pointer to the given float64.
func FloatPtr(f float64) *float64 { return &f }
