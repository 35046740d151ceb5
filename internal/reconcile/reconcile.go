package reconcile

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/metal-toolbox/regiongen/internal/metrics"
	"github.com/metal-toolbox/regiongen/internal/model"
)

var (
	// ErrZoneMismatch is returned when the asset system reports a device in a building
	// other than the one its zone was fetched for.
	ErrZoneMismatch = errors.New("device building does not match zone building")

	// ErrDuplicateSerial is returned when a serial number is seen on more than one device.
	ErrDuplicateSerial = errors.New("duplicate serial number")

	// ErrInvalidDevice is returned when a device selected as a server carries
	// attribute values that cannot be used in the descriptor.
	ErrInvalidDevice = errors.New("invalid server device")

	ErrInput = errors.New("invalid reconcile input")
)

// skip reasons, used as metric label values.
const (
	skipUnracked        = "unracked"
	skipUnknownRack     = "unknown-rack"
	skipUnknownHardware = "unknown-hardware"
	skipDuplicate       = "duplicate-serial"
	skipInvalid         = "invalid-device"
)

// Input is the data a reconciliation run works on.
type Input struct {
	Region    *model.Region
	Inventory *model.Inventory
	Roles     model.HardwareRoles
	Prefixes  model.HostnamePrefixes
	// Logger is optional.
	Logger *logrus.Logger
}

// Counters are the run totals reported with the descriptor.
type Counters struct {
	Metadata        int `json:"metadata"`
	Storage         int `json:"storage"`
	Unracked        int `json:"unracked"`
	UnknownRack     int `json:"unknown_rack"`
	UnknownHardware int `json:"unknown_hardware"`
	MissingUUID     int `json:"missing_uuid"`
	MissingRAM      int `json:"missing_ram"`
}

// Servers returns the number of servers accepted.
func (c *Counters) Servers() int {
	return c.Metadata + c.Storage
}

// RackReport holds the per role server counts of a rack.
type RackReport struct {
	Rack     string `json:"rack"`
	Metadata int    `json:"metadata"`
	Storage  int    `json:"storage"`
}

// ZoneReport holds the per rack server counts of a zone, racks are listed in configured order.
type ZoneReport struct {
	Zone     string       `json:"zone"`
	Racks    []RackReport `json:"racks"`
	Metadata int          `json:"metadata"`
	Storage  int          `json:"storage"`
}

// Result is the outcome of a reconciliation run.
type Result struct {
	Descriptor *model.Descriptor `json:"descriptor"`
	Warnings   model.Warnings    `json:"warnings"`
	Counters   Counters          `json:"counters"`
	Zones      []ZoneReport      `json:"zones"`
}

// accepted is a device emitted as a server, kept for the cross-check pass.
type accepted struct {
	device *model.Device
	server model.Server
	// uuid is the normalized device uuid, empty when not known.
	uuid string
}

type reconciler struct {
	in       *Input
	logger   *logrus.Logger
	roles    model.HardwareRoles
	prefixes model.HostnamePrefixes
	result   *Result

	used     map[string]*model.Device
	accepted []accepted
	errs     *multierror.Error
}

// Reconcile classifies the devices of each zone in the region, checks them against
// fleet data when present and returns the resulting descriptor and warnings.
//
// Duplicate serial numbers and invalid server devices do not stop the run, they are
// accumulated and returned as one error along with the Result. A Result returned
// with an error must not be written out.
func Reconcile(in *Input) (*Result, error) {
	if in == nil || in.Region == nil || in.Inventory == nil {
		return nil, errors.Wrap(ErrInput, "region and inventory are required")
	}

	r := &reconciler{
		in:       in,
		logger:   in.Logger,
		roles:    in.Roles,
		prefixes: in.Prefixes,
		used:     map[string]*model.Device{},
		result: &Result{
			Descriptor: &model.Descriptor{Shards: in.Region.Shards, Servers: []model.Server{}},
			Warnings:   model.Warnings{},
		},
	}

	if r.logger == nil {
		r.logger = logrus.New()
	}

	if r.roles == nil {
		r.roles = model.NewHardwareRoles(nil)
	}

	if r.prefixes == nil {
		r.prefixes = model.NewHostnamePrefixes(nil)
	}

	for idx := range in.Region.Zones {
		if err := r.zone(&in.Region.Zones[idx]); err != nil {
			return nil, err
		}
	}

	r.crossCheck()
	r.heterogeneity()

	counts := r.result.Warnings.CountByCategory()
	for _, category := range model.WarningCategories() {
		metrics.WarningsCounter.With(prometheus.Labels{"category": string(category)}).Add(float64(counts[category]))
	}

	return r.result, r.errs.ErrorOrNil()
}

func (r *reconciler) warn(category model.WarningCategory, serial, format string, args ...any) {
	r.result.Warnings = append(r.result.Warnings, model.Warning{
		Category: category,
		Serial:   serial,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (r *reconciler) skip(zone string, d *model.Device, reason string) {
	metrics.SkippedDeviceCounter.With(prometheus.Labels{"zone": zone, "reason": reason}).Inc()

	r.logger.WithFields(logrus.Fields{
		"zone":      zone,
		"serial":    d.Serial,
		"device_id": d.ID,
		"reason":    reason,
	}).Debug("device skipped")
}

func (r *reconciler) zone(zone *model.Zone) error {
	devices, exists := r.in.Inventory.Devices[zone.Name]
	if !exists {
		return errors.Wrap(ErrInput, fmt.Sprintf("no device data for zone %q", zone.Name))
	}

	permitted := zone.RackSet()
	report := ZoneReport{Zone: zone.Name, Racks: make([]RackReport, len(zone.Racks))}

	for idx, rack := range zone.Racks {
		report.Racks[idx].Rack = rack
	}

	for idx := range devices {
		d := &devices[idx]

		if d.Building != nil && *d.Building != zone.Building {
			return errors.Wrap(
				ErrZoneMismatch,
				fmt.Sprintf("device_id %d: building %q, zone %q expects %q", d.ID, *d.Building, zone.Name, zone.Building),
			)
		}

		if d.Rack == nil {
			r.result.Counters.Unracked++
			r.skip(zone.Name, d, skipUnracked)

			continue
		}

		if _, ok := permitted[*d.Rack]; !ok {
			r.result.Counters.UnknownRack++
			r.skip(zone.Name, d, skipUnknownRack)

			continue
		}

		role, mapped := r.roles.RoleFor(d.HardwareModel)
		if !mapped {
			r.result.Counters.UnknownHardware++
			r.skip(zone.Name, d, skipUnknownHardware)

			continue
		}

		id, memory, err := validate(d)
		if err != nil {
			r.errs = multierror.Append(r.errs, err)
			r.skip(zone.Name, d, skipInvalid)

			continue
		}

		if first, seen := r.used[d.Serial]; seen {
			r.errs = multierror.Append(r.errs, errors.Wrap(
				ErrDuplicateSerial,
				fmt.Sprintf("server having serial %q appeared more than once (device_id %d and %d)", d.Serial, first.ID, d.ID),
			))

			r.skip(zone.Name, d, skipDuplicate)

			continue
		}

		r.used[d.Serial] = d

		server := r.server(zone, d, role, id, memory)
		rack := report.rack(*d.Rack)

		switch role {
		case model.RoleMetadata:
			r.result.Counters.Metadata++
			report.Metadata++
			rack.Metadata++
		case model.RoleStorage:
			r.result.Counters.Storage++
			report.Storage++
			rack.Storage++
		}

		metrics.ServersCounter.With(prometheus.Labels{"zone": zone.Name, "role": string(role)}).Inc()

		r.result.Descriptor.Servers = append(r.result.Descriptor.Servers, server)
	}

	r.result.Zones = append(r.result.Zones, report)

	return nil
}

func (z *ZoneReport) rack(name string) *RackReport {
	for idx := range z.Racks {
		if z.Racks[idx].Rack == name {
			return &z.Racks[idx]
		}
	}

	z.Racks = append(z.Racks, RackReport{Rack: name})

	return &z.Racks[len(z.Racks)-1]
}

// validate returns the normalized uuid and the memory size of a device selected as a server,
// uuid is empty and memory is zero when the device does not report them.
func validate(d *model.Device) (id string, memory int, err error) {
	if strings.TrimSpace(d.Serial) == "" {
		return "", 0, errors.Wrap(ErrInvalidDevice, fmt.Sprintf("device_id %d: empty serial number", d.ID))
	}

	if d.UUID != nil {
		parsed, errParse := uuid.Parse(*d.UUID)
		if errParse != nil {
			return "", 0, errors.Wrap(
				ErrInvalidDevice,
				fmt.Sprintf("device_id %d, serial %q: uuid %q: %s", d.ID, d.Serial, *d.UUID, errParse.Error()),
			)
		}

		id = parsed.String()
	}

	if d.RAMGB != nil {
		ram := *d.RAMGB
		if ram <= 0 || ram != math.Trunc(ram) || ram > math.MaxInt32 {
			return "", 0, errors.Wrap(
				ErrInvalidDevice,
				fmt.Sprintf("device_id %d, serial %q: ram %v is not a positive whole number of GB", d.ID, d.Serial, ram),
			)
		}

		memory = int(ram)
	}

	return id, memory, nil
}

// server resolves the descriptor entry for an accepted device, recording its warnings.
func (r *reconciler) server(zone *model.Zone, d *model.Device, role model.Role, id string, memory int) model.Server {
	server := model.Server{
		Role: role,
		Zone: zone.Name,
		Rack: zone.QualifiedRack(*d.Rack),
	}

	if id != "" {
		server.ID = id
	} else {
		server.ID = d.Serial
		r.result.Counters.MissingUUID++
		r.warn(model.WarnMissingUUID, d.Serial, "uuid not set, serial number used in its place")
	}

	if memory != 0 {
		server.MemoryGB = memory
	} else {
		server.MemoryGB = model.DefaultMemoryGB
		r.result.Counters.MissingRAM++
		r.warn(model.WarnMissingRAM, d.Serial, "ram not set, default of %dGB used", model.DefaultMemoryGB)
	}

	prefix := r.prefixes[role]

	switch CheckHostname(prefix, d.Serial, d.Name) {
	case HostnameUnsetup:
		r.warn(model.WarnUnsetupHostname, d.Serial, "hostname is the serial number, server is not set up")
	case HostnameUnexpected:
		r.warn(
			model.WarnUnexpectedHostname,
			d.Serial,
			"hostname %q does not match the expected %q server pattern %s...%s",
			d.Name, role, prefix, d.Serial,
		)
	case HostnameOK:
	}

	r.accepted = append(r.accepted, accepted{device: d, server: server, uuid: id})

	return server
}
