package fixtures

import (
	"github.com/metal-toolbox/regiongen/internal/model"
)

const (
	HWCompute = "Joyent-Compute-Platform-3301"
	HWStorage = "Joyent-Storage-Platform-7001"

	Building1 = "B1"
	Building2 = "B2"

	Zone1 = "us-east-1a"
	Zone2 = "us-east-1b"

	Zone1FleetEndpoint = "10.1.0.10"
	Zone2FleetEndpoint = "10.2.0.10"
)

// Region returns a two zone region, each zone has two racks.
func Region() *model.Region {
	return &model.Region{
		Name:   "us-east",
		Shards: 2,
		Zones: []model.Zone{
			{
				Name:          Zone1,
				Building:      Building1,
				Racks:         []string{"R1", "R2"},
				FleetEndpoint: Zone1FleetEndpoint,
			},
			{
				Name:          Zone2,
				Building:      Building2,
				Racks:         []string{"R3", "R4"},
				FleetEndpoint: Zone2FleetEndpoint,
			},
		},
	}
}

// StorageDevice returns a fully provisioned storage device.
func StorageDevice(id int64, serial, building, rack, uuid string, ramGB int) model.Device {
	return model.Device{
		ID:            id,
		Serial:        serial,
		Name:          "MS" + serial,
		HardwareModel: model.StrPtr(HWStorage),
		Building:      model.StrPtr(building),
		Rack:          model.StrPtr(rack),
		UUID:          model.StrPtr(uuid),
		RAMGB:         model.FloatPtr(float64(ramGB)),
		CreatedAt:     "2017-05-01T00:00:00Z",
	}
}

// MetadataDevice returns a fully provisioned metadata device.
func MetadataDevice(id int64, serial, building, rack, uuid string, ramGB int) model.Device {
	return model.Device{
		ID:            id,
		Serial:        serial,
		Name:          "MD" + serial,
		HardwareModel: model.StrPtr(HWCompute),
		Building:      model.StrPtr(building),
		Rack:          model.StrPtr(rack),
		UUID:          model.StrPtr(uuid),
		RAMGB:         model.FloatPtr(float64(ramGB)),
		CreatedAt:     "2017-05-01T00:00:00Z",
	}
}

// NodeFor returns the fleet node matching a device.
func NodeFor(d *model.Device) model.Node {
	n := model.Node{
		Serial:   d.Serial,
		Hostname: d.Name,
		Reserved: true,
		Product:  "Joyent-Platform",
	}

	if d.UUID != nil {
		n.UUID = *d.UUID
	}

	if d.RAMGB != nil {
		n.RAMMB = int(*d.RAMGB * 1024)
	}

	return n
}

// Inventory returns a consistent two zone inventory for Region, with fleet data for both zones.
func Inventory() *model.Inventory {
	devices1 := []model.Device{
		StorageDevice(1, "S0001", Building1, "R1", "a3b5a1f2-5c1b-4a3e-9a1f-0d3c1f0a0001", 256),
		MetadataDevice(2, "S0002", Building1, "R1", "a3b5a1f2-5c1b-4a3e-9a1f-0d3c1f0a0002", 256),
		StorageDevice(3, "S0003", Building1, "R2", "a3b5a1f2-5c1b-4a3e-9a1f-0d3c1f0a0003", 256),
	}

	devices2 := []model.Device{
		StorageDevice(4, "S0004", Building2, "R3", "a3b5a1f2-5c1b-4a3e-9a1f-0d3c1f0a0004", 256),
		MetadataDevice(5, "S0005", Building2, "R4", "a3b5a1f2-5c1b-4a3e-9a1f-0d3c1f0a0005", 256),
	}

	inv := model.NewInventory()
	inv.Devices[Zone1] = devices1
	inv.Devices[Zone2] = devices2

	for zone, devices := range inv.Devices {
		nodes := []model.Node{}
		for idx := range devices {
			nodes = append(nodes, NodeFor(&devices[idx]))
		}

		inv.Nodes[zone] = nodes
	}

	return inv
}
