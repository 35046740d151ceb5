package reconcile

import "strings"

// HostnameStatus is the result of a hostname convention check.
type HostnameStatus int

const (
	HostnameOK HostnameStatus = iota
	// HostnameUnsetup indicates the server was not yet provisioned, its hostname is its serial.
	HostnameUnsetup
	// HostnameUnexpected indicates the hostname does not follow the <prefix>...<serial> convention.
	HostnameUnexpected
)

func (s HostnameStatus) String() string {
	switch s {
	case HostnameOK:
		return "ok"
	case HostnameUnsetup:
		return "unsetup"
	case HostnameUnexpected:
		return "unexpected"
	}

	return "unknown"
}

// CheckHostname checks hostname against the naming convention for a server
// with the given role prefix and serial number.
func CheckHostname(prefix, serial, hostname string) HostnameStatus {
	if hostname == serial {
		return HostnameUnsetup
	}

	if len(hostname) < len(prefix)+len(serial) ||
		!strings.HasPrefix(hostname, prefix) ||
		!strings.HasSuffix(hostname, serial) {
		return HostnameUnexpected
	}

	return HostnameOK
}
