package model

import "strings"

var (
	// defaultHardwareRoles is the hardware model to role table used when the
	// configuration does not define one.
	defaultHardwareRoles = map[string]Role{
		"Joyent-Compute-Platform-3301": RoleMetadata,
		"Joyent-Storage-Platform-7001": RoleStorage,
	}

	defaultHostnamePrefixes = map[Role]string{
		RoleMetadata: "MD",
		RoleStorage:  "MS",
	}
)

// HardwareRoles maps a hardware model to a server role.
//
// Lookups are case insensitive, configuration keys are lowercased on load.
type HardwareRoles map[string]Role

// NewHardwareRoles returns the role table, defaults are used when table is empty.
func NewHardwareRoles(table map[string]Role) HardwareRoles {
	if len(table) == 0 {
		table = defaultHardwareRoles
	}

	roles := make(HardwareRoles, len(table))
	for hw, role := range table {
		roles[strings.ToLower(hw)] = role
	}

	return roles
}

// RoleFor returns the role for the hardware model, the bool is false when the
// model is unset or not mapped.
func (h HardwareRoles) RoleFor(hardwareModel *string) (Role, bool) {
	if hardwareModel == nil {
		return "", false
	}

	role, exists := h[strings.ToLower(*hardwareModel)]

	return role, exists
}

// HostnamePrefixes maps a server role to its expected hostname prefix.
type HostnamePrefixes map[Role]string

// NewHostnamePrefixes returns the prefix table, defaults fill in roles missing from table.
func NewHostnamePrefixes(table map[Role]string) HostnamePrefixes {
	prefixes := make(HostnamePrefixes, len(defaultHostnamePrefixes))
	for role, prefix := range defaultHostnamePrefixes {
		prefixes[role] = prefix
	}

	for role, prefix := range table {
		prefixes[role] = prefix
	}

	return prefixes
}
