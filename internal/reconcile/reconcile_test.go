package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metal-toolbox/regiongen/internal/descriptor"
	"github.com/metal-toolbox/regiongen/internal/fixtures"
	"github.com/metal-toolbox/regiongen/internal/model"
)

const (
	uuid1 = "a3b5a1f2-5c1b-4a3e-9a1f-0d3c1f0a0001"
	uuid2 = "a3b5a1f2-5c1b-4a3e-9a1f-0d3c1f0a0002"
	uuid3 = "a3b5a1f2-5c1b-4a3e-9a1f-0d3c1f0a0003"
)

func oneZone(racks ...string) *model.Region {
	return &model.Region{
		Name:   "test",
		Shards: 1,
		Zones: []model.Zone{
			{Name: "z1", Building: fixtures.Building1, Racks: racks},
		},
	}
}

// oneZoneInventory returns an inventory for oneZone, fleet data is absent when nodes is nil.
func oneZoneInventory(devices []model.Device, nodes []model.Node) *model.Inventory {
	inv := model.NewInventory()
	inv.Devices["z1"] = devices

	if nodes != nil {
		inv.Nodes["z1"] = nodes
	}

	return inv
}

func categories(ws model.Warnings) []model.WarningCategory {
	got := []model.WarningCategory{}
	for _, w := range ws {
		got = append(got, w.Category)
	}

	return got
}

func TestReconcileScenario(t *testing.T) {
	metadata := fixtures.MetadataDevice(2, "S0002", fixtures.Building1, "A", "", 256)
	metadata.UUID = nil

	devices := []model.Device{
		fixtures.StorageDevice(1, "S0001", fixtures.Building1, "A", uuid1, 256),
		metadata,
		fixtures.StorageDevice(3, "S0003", fixtures.Building1, "C", uuid3, 256),
	}

	result, err := Reconcile(&Input{Region: oneZone("A", "B"), Inventory: oneZoneInventory(devices, nil)})
	require.NoError(t, err)

	descriptor.Sort(result.Descriptor)

	expected := &model.Descriptor{
		Shards: 1,
		Servers: []model.Server{
			{Role: model.RoleMetadata, ID: "S0002", Zone: "z1", Rack: "z1_A", MemoryGB: 256},
			{Role: model.RoleStorage, ID: uuid1, Zone: "z1", Rack: "z1_A", MemoryGB: 256},
		},
	}

	assert.Equal(t, expected, result.Descriptor)
	assert.Equal(t, Counters{Metadata: 1, Storage: 1, UnknownRack: 1, MissingUUID: 1}, result.Counters)
	assert.Equal(t, 2, result.Counters.Servers())

	counts := result.Warnings.CountByCategory()
	assert.Equal(t, 1, counts[model.WarnMissingUUID])
	assert.Equal(t, 1, counts[model.WarnSourceIncomplete])
	assert.Equal(t, 0, counts[model.WarnMultipleConfigurations])
	assert.Len(t, result.Warnings, 2)

	assert.Equal(t, []ZoneReport{
		{
			Zone:     "z1",
			Racks:    []RackReport{{Rack: "A", Metadata: 1, Storage: 1}, {Rack: "B"}},
			Metadata: 1,
			Storage:  1,
		},
	}, result.Zones)
}

func TestReconcileConsistentInventory(t *testing.T) {
	result, err := Reconcile(&Input{Region: fixtures.Region(), Inventory: fixtures.Inventory()})
	require.NoError(t, err)

	assert.Empty(t, result.Warnings)
	assert.Equal(t, Counters{Metadata: 2, Storage: 3}, result.Counters)
	assert.Len(t, result.Descriptor.Servers, 5)
	assert.Equal(t, 2, result.Descriptor.Shards)

	require.Len(t, result.Zones, 2)
	assert.Equal(t, fixtures.Zone1, result.Zones[0].Zone)
	assert.Equal(t, []RackReport{{Rack: "R1", Metadata: 1, Storage: 1}, {Rack: "R2", Storage: 1}}, result.Zones[0].Racks)
	assert.Equal(t, fixtures.Zone2, result.Zones[1].Zone)
	assert.Equal(t, []RackReport{{Rack: "R3", Storage: 1}, {Rack: "R4", Metadata: 1}}, result.Zones[1].Racks)
}

func TestReconcileDuplicateSerials(t *testing.T) {
	dup := fixtures.StorageDevice(7, "S0001", fixtures.Building1, "A", uuid2, 256)
	dup.UUID = nil
	dup.RAMGB = nil

	devices := []model.Device{
		fixtures.StorageDevice(1, "S0001", fixtures.Building1, "A", uuid1, 256),
		dup,
		fixtures.StorageDevice(9, "S0001", fixtures.Building1, "B", uuid3, 256),
	}

	result, err := Reconcile(&Input{Region: oneZone("A", "B"), Inventory: oneZoneInventory(devices, nil)})
	assert.ErrorIs(t, err, ErrDuplicateSerial)
	assert.Contains(t, err.Error(), "device_id 1 and 7")
	assert.Contains(t, err.Error(), "device_id 1 and 9")

	// the result is returned for diagnostics
	require.NotNil(t, result)
	assert.Len(t, result.Descriptor.Servers, 1)

	// duplicates are rejected before their warnings are counted
	assert.Equal(t, 0, result.Counters.MissingUUID)
	assert.Equal(t, 0, result.Counters.MissingRAM)
	assert.Empty(t, result.Warnings.ByCategory(model.WarnMissingUUID))
}

func TestReconcileDuplicateSerialsAcrossZones(t *testing.T) {
	inv := fixtures.Inventory()
	inv.Devices[fixtures.Zone2][0].Serial = inv.Devices[fixtures.Zone1][0].Serial

	_, err := Reconcile(&Input{Region: fixtures.Region(), Inventory: inv})
	assert.ErrorIs(t, err, ErrDuplicateSerial)
	assert.Contains(t, err.Error(), "device_id 1 and 4")
}

func TestReconcileMissingUUIDAndRAM(t *testing.T) {
	d := fixtures.StorageDevice(1, "S0001", fixtures.Building1, "A", uuid1, 256)
	d.UUID = nil
	d.RAMGB = nil

	result, err := Reconcile(&Input{Region: oneZone("A"), Inventory: oneZoneInventory([]model.Device{d}, nil)})
	require.NoError(t, err)

	require.Len(t, result.Descriptor.Servers, 1)
	assert.Equal(t, "S0001", result.Descriptor.Servers[0].ID)
	assert.Equal(t, model.DefaultMemoryGB, result.Descriptor.Servers[0].MemoryGB)

	counts := result.Warnings.CountByCategory()
	assert.Equal(t, 1, counts[model.WarnMissingUUID])
	assert.Equal(t, 1, counts[model.WarnMissingRAM])
	assert.Equal(t, 1, result.Counters.MissingUUID)
	assert.Equal(t, 1, result.Counters.MissingRAM)
}

func TestReconcileSkippedDevices(t *testing.T) {
	unracked := fixtures.StorageDevice(1, "S0001", fixtures.Building1, "A", uuid1, 256)
	unracked.Rack = nil

	noHardware := fixtures.StorageDevice(2, "S0002", fixtures.Building1, "A", uuid2, 256)
	noHardware.HardwareModel = nil

	otherHardware := fixtures.StorageDevice(3, "S0003", fixtures.Building1, "A", uuid3, 256)
	otherHardware.HardwareModel = model.StrPtr("Some-Switch")

	// hardware models match regardless of case
	lowercase := fixtures.StorageDevice(4, "S0004", fixtures.Building1, "A", "", 256)
	lowercase.HardwareModel = model.StrPtr("joyent-storage-platform-7001")
	lowercase.UUID = nil

	noBuilding := fixtures.MetadataDevice(5, "S0005", fixtures.Building1, "A", "", 256)
	noBuilding.Building = nil
	noBuilding.UUID = nil

	devices := []model.Device{unracked, noHardware, otherHardware, lowercase, noBuilding}

	result, err := Reconcile(&Input{Region: oneZone("A"), Inventory: oneZoneInventory(devices, nil)})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Counters.Unracked)
	assert.Equal(t, 2, result.Counters.UnknownHardware)
	assert.Equal(t, 1, result.Counters.Storage)
	assert.Equal(t, 1, result.Counters.Metadata)
	assert.Len(t, result.Descriptor.Servers, 2)
}

func TestReconcileZoneMismatch(t *testing.T) {
	devices := []model.Device{
		fixtures.StorageDevice(1, "S0001", fixtures.Building2, "A", uuid1, 256),
	}

	result, err := Reconcile(&Input{Region: oneZone("A"), Inventory: oneZoneInventory(devices, nil)})
	assert.ErrorIs(t, err, ErrZoneMismatch)
	assert.Nil(t, result)
}

func TestReconcileInvalidInput(t *testing.T) {
	_, err := Reconcile(nil)
	assert.ErrorIs(t, err, ErrInput)

	// a zone with no device data
	_, err = Reconcile(&Input{Region: fixtures.Region(), Inventory: model.NewInventory()})
	assert.ErrorIs(t, err, ErrInput)
}

func TestReconcileOtherHardwareIsNotValidated(t *testing.T) {
	// devices skipped by rack or hardware may carry values unusable in a descriptor
	pdu := fixtures.StorageDevice(2, "", fixtures.Building1, "R9", "not-a-uuid", 0)
	pdu.HardwareModel = model.StrPtr("PDU")
	pdu.RAMGB = model.FloatPtr(0.5)

	vm := fixtures.StorageDevice(3, "", fixtures.Building1, "A", "vm-3.example.com", 0)
	vm.HardwareModel = nil

	devices := []model.Device{
		fixtures.StorageDevice(1, "S0001", fixtures.Building1, "A", uuid1, 256),
		pdu,
		vm,
	}

	result, err := Reconcile(&Input{Region: oneZone("A"), Inventory: oneZoneInventory(devices, nil)})
	require.NoError(t, err)

	assert.Len(t, result.Descriptor.Servers, 1)
	assert.Equal(t, 1, result.Counters.UnknownRack)
	assert.Equal(t, 1, result.Counters.UnknownHardware)
}

func TestReconcileInvalidServerDevices(t *testing.T) {
	testcases := []struct {
		name    string
		mutate  func(d *model.Device)
		wantErr string
	}{
		{
			"empty serial",
			func(d *model.Device) { d.Serial = " " },
			"empty serial number",
		},
		{
			"uuid not a uuid",
			func(d *model.Device) { d.UUID = model.StrPtr("host-2.example.com") },
			`uuid "host-2.example.com"`,
		},
		{
			"fractional ram",
			func(d *model.Device) { d.RAMGB = model.FloatPtr(0.5) },
			"ram 0.5 is not a positive whole number",
		},
		{
			"zero ram",
			func(d *model.Device) { d.RAMGB = model.FloatPtr(0) },
			"ram 0 is not a positive whole number",
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			invalid := fixtures.StorageDevice(2, "S0002", fixtures.Building1, "A", uuid2, 256)
			tc.mutate(&invalid)

			devices := []model.Device{
				fixtures.StorageDevice(1, "S0001", fixtures.Building1, "A", uuid1, 256),
				invalid,
				fixtures.StorageDevice(3, "S0003", fixtures.Building1, "A", uuid3, 256),
			}

			result, err := Reconcile(&Input{Region: oneZone("A"), Inventory: oneZoneInventory(devices, nil)})
			assert.ErrorIs(t, err, ErrInvalidDevice)
			assert.Contains(t, err.Error(), "device_id 2")
			assert.Contains(t, err.Error(), tc.wantErr)

			// the run continues past the invalid device, the result is kept for diagnostics
			require.NotNil(t, result)
			assert.Len(t, result.Descriptor.Servers, 2)
			assert.Equal(t, 2, result.Counters.Storage)
		})
	}
}

func TestReconcileInvalidAndDuplicateDevices(t *testing.T) {
	invalid := fixtures.StorageDevice(2, "S0002", fixtures.Building1, "A", uuid2, 256)
	invalid.RAMGB = model.FloatPtr(1.5)

	devices := []model.Device{
		fixtures.StorageDevice(1, "S0001", fixtures.Building1, "A", uuid1, 256),
		invalid,
		fixtures.StorageDevice(3, "S0001", fixtures.Building1, "A", uuid3, 256),
	}

	_, err := Reconcile(&Input{Region: oneZone("A"), Inventory: oneZoneInventory(devices, nil)})
	assert.ErrorIs(t, err, ErrInvalidDevice)
	assert.ErrorIs(t, err, ErrDuplicateSerial)
}

func TestReconcileNormalizesUUID(t *testing.T) {
	d := fixtures.StorageDevice(1, "S0001", fixtures.Building1, "A", "A3B5A1F2-5C1B-4A3E-9A1F-0D3C1F0A0001", 256)
	node := fixtures.NodeFor(&d)
	node.UUID = uuid1

	result, err := Reconcile(&Input{
		Region:    oneZone("A"),
		Inventory: oneZoneInventory([]model.Device{d}, []model.Node{node}),
	})
	require.NoError(t, err)

	require.Len(t, result.Descriptor.Servers, 1)
	assert.Equal(t, uuid1, result.Descriptor.Servers[0].ID)
	assert.Empty(t, result.Warnings)
}

func TestReconcileHostnames(t *testing.T) {
	unsetup := fixtures.StorageDevice(1, "S0001", fixtures.Building1, "A", uuid1, 256)
	unsetup.Name = "S0001"

	unexpected := fixtures.StorageDevice(2, "S0002", fixtures.Building1, "A", uuid2, 256)
	unexpected.Name = "storage-2"

	wrongRole := fixtures.StorageDevice(3, "S0003", fixtures.Building1, "A", uuid3, 256)
	wrongRole.Name = "MDS0003"

	devices := []model.Device{unsetup, unexpected, wrongRole}

	result, err := Reconcile(&Input{Region: oneZone("A"), Inventory: oneZoneInventory(devices, nil)})
	require.NoError(t, err)

	assert.Len(t, result.Warnings.ByCategory(model.WarnUnsetupHostname), 1)
	assert.Equal(t, "S0001", result.Warnings.ByCategory(model.WarnUnsetupHostname)[0].Serial)

	found := result.Warnings.ByCategory(model.WarnUnexpectedHostname)
	require.Len(t, found, 2)
	assert.Equal(t, "S0002", found[0].Serial)
	assert.Equal(t, "S0003", found[1].Serial)
}

func TestReconcileCustomTables(t *testing.T) {
	d := fixtures.StorageDevice(1, "S0001", fixtures.Building1, "A", uuid1, 256)
	d.HardwareModel = model.StrPtr("Custom-Storage")
	d.Name = "STS0001"

	in := &Input{
		Region:    oneZone("A"),
		Inventory: oneZoneInventory([]model.Device{d}, nil),
		Roles:     model.NewHardwareRoles(map[string]model.Role{"custom-storage": model.RoleStorage}),
		Prefixes:  model.NewHostnamePrefixes(map[model.Role]string{model.RoleStorage: "ST"}),
	}

	result, err := Reconcile(in)
	require.NoError(t, err)

	require.Len(t, result.Descriptor.Servers, 1)
	assert.Equal(t, model.RoleStorage, result.Descriptor.Servers[0].Role)
	assert.Empty(t, result.Warnings.ByCategory(model.WarnUnexpectedHostname))
}

func TestReconcileHeterogeneity(t *testing.T) {
	devices := []model.Device{
		fixtures.StorageDevice(1, "S0001", fixtures.Building1, "A", uuid1, 512),
		fixtures.StorageDevice(2, "S0002", fixtures.Building1, "A", uuid2, 256),
		fixtures.StorageDevice(3, "S0003", fixtures.Building1, "A", uuid3, 256),
		// a single metadata configuration raises no warning
		fixtures.MetadataDevice(4, "S0004", fixtures.Building1, "A", "a3b5a1f2-5c1b-4a3e-9a1f-0d3c1f0a0004", 64),
	}

	result, err := Reconcile(&Input{Region: oneZone("A"), Inventory: oneZoneInventory(devices, nil)})
	require.NoError(t, err)

	found := result.Warnings.ByCategory(model.WarnMultipleConfigurations)
	require.Len(t, found, 1)
	assert.Equal(
		t,
		`found multiple different "storage" server configurations: 2 having ram "256", 1 having ram "512"`,
		found[0].Message,
	)
}

func TestReconcileRAMTolerance(t *testing.T) {
	tests := []struct {
		testName         string
		nodeRAMMB        int
		expectedWarnings int
	}{
		{"exact", 65536, 0},
		{"within tolerance", 65500, 0},
		{"above, within tolerance", 66100, 0},
		{"outside tolerance", 60000, 1},
		{"above tolerance", 67000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.testName, func(t *testing.T) {
			d := fixtures.StorageDevice(1, "S0001", fixtures.Building1, "A", uuid1, 64)
			n := fixtures.NodeFor(&d)
			n.RAMMB = tt.nodeRAMMB

			in := &Input{
				Region:    oneZone("A"),
				Inventory: oneZoneInventory([]model.Device{d}, []model.Node{n}),
			}

			result, err := Reconcile(in)
			require.NoError(t, err)

			found := result.Warnings.ByCategory(model.WarnCrossSourceMismatch)
			require.Len(t, found, tt.expectedWarnings)

			if tt.expectedWarnings > 0 {
				assert.Contains(t, found[0].Message, "64GB")
				assert.Contains(t, found[0].Message, "MB")
			}
		})
	}
}

func TestReconcileRAMMismatchNamesValues(t *testing.T) {
	d := fixtures.StorageDevice(1, "S0001", fixtures.Building1, "A", uuid1, 64)
	n := fixtures.NodeFor(&d)
	n.RAMMB = 60000

	result, err := Reconcile(&Input{Region: oneZone("A"), Inventory: oneZoneInventory([]model.Device{d}, []model.Node{n})})
	require.NoError(t, err)

	found := result.Warnings.ByCategory(model.WarnCrossSourceMismatch)
	require.Len(t, found, 1)
	assert.Contains(t, found[0].Message, "64GB")
	assert.Contains(t, found[0].Message, "60000MB")
}

func TestReconcileCrossCheck(t *testing.T) {
	tests := []struct {
		testName string
		// mutate alters the node built for a consistent device
		mutate          func(d *model.Device, nodes []model.Node) []model.Node
		expectedMessage string
	}{
		{
			"not found in fleet data",
			func(_ *model.Device, _ []model.Node) []model.Node { return []model.Node{} },
			"not found in fleet data",
		},
		{
			"hostname mismatch",
			func(_ *model.Device, nodes []model.Node) []model.Node {
				nodes[0].Hostname = "MSOTHER"
				return nodes
			},
			"hostname mismatch",
		},
		{
			"uuid mismatch",
			func(_ *model.Device, nodes []model.Node) []model.Node {
				nodes[0].UUID = uuid2
				return nodes
			},
			"uuid mismatch",
		},
		{
			"headnode",
			func(_ *model.Device, nodes []model.Node) []model.Node {
				nodes[0].Headnode = true
				return nodes
			},
			"headnode",
		},
		{
			"not reserved",
			func(_ *model.Device, nodes []model.Node) []model.Node {
				nodes[0].Reserved = false
				return nodes
			},
			"not reserved",
		},
		{
			"duplicate node serial",
			func(_ *model.Device, nodes []model.Node) []model.Node {
				dup := nodes[0]
				dup.UUID = uuid2

				return append(nodes, dup)
			},
			"more than once",
		},
		{
			"unknown device ram is not compared",
			func(d *model.Device, nodes []model.Node) []model.Node {
				d.RAMGB = nil
				nodes[0].RAMMB = 1024
				nodes[0].Headnode = true

				return nodes
			},
			"headnode",
		},
		{
			"unknown device uuid is not compared",
			func(d *model.Device, nodes []model.Node) []model.Node {
				d.UUID = nil
				nodes[0].Reserved = false

				return nodes
			},
			"not reserved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.testName, func(t *testing.T) {
			d := fixtures.StorageDevice(1, "S0001", fixtures.Building1, "A", uuid1, 256)
			nodes := tt.mutate(&d, []model.Node{fixtures.NodeFor(&d)})

			result, err := Reconcile(&Input{Region: oneZone("A"), Inventory: oneZoneInventory([]model.Device{d}, nodes)})
			require.NoError(t, err)

			found := result.Warnings.ByCategory(model.WarnCrossSourceMismatch)
			require.Len(t, found, 1, found)
			assert.Contains(t, found[0].Message, tt.expectedMessage)
			assert.Equal(t, "S0001", found[0].Serial)
		})
	}
}

func TestReconcilePartialFleetData(t *testing.T) {
	inv := fixtures.Inventory()
	delete(inv.Nodes, fixtures.Zone2)

	// mismatches in zones with fleet data are not reported either
	inv.Nodes[fixtures.Zone1][0].Hostname = "other"
	inv.Nodes[fixtures.Zone1][1].Headnode = true

	result, err := Reconcile(&Input{Region: fixtures.Region(), Inventory: inv})
	require.NoError(t, err)

	assert.Equal(t, []model.WarningCategory{model.WarnSourceIncomplete}, categories(result.Warnings))
	assert.Contains(t, result.Warnings[0].Message, fixtures.Zone2)
}

func TestReconcileNoFleetData(t *testing.T) {
	inv := fixtures.Inventory()
	inv.Nodes = map[string][]model.Node{}

	result, err := Reconcile(&Input{Region: fixtures.Region(), Inventory: inv})
	require.NoError(t, err)

	assert.Len(t, result.Warnings.ByCategory(model.WarnSourceIncomplete), 2)
	assert.Len(t, result.Descriptor.Servers, 5)
}

func TestReconcileEmptyFleetDataIsPresent(t *testing.T) {
	inv := fixtures.Inventory()
	inv.Nodes[fixtures.Zone2] = []model.Node{}

	result, err := Reconcile(&Input{Region: fixtures.Region(), Inventory: inv})
	require.NoError(t, err)

	assert.Empty(t, result.Warnings.ByCategory(model.WarnSourceIncomplete))
	assert.Len(t, result.Warnings.ByCategory(model.WarnCrossSourceMismatch), len(inv.Devices[fixtures.Zone2]))
}

func TestReconcileIdempotent(t *testing.T) {
	newInput := func() *Input {
		inv := fixtures.Inventory()

		inv.Devices[fixtures.Zone1][0].UUID = nil
		inv.Devices[fixtures.Zone1][1].RAMGB = nil
		inv.Devices[fixtures.Zone2][0].Name = inv.Devices[fixtures.Zone2][0].Serial
		inv.Devices[fixtures.Zone2][1].RAMGB = model.FloatPtr(512)
		inv.Nodes[fixtures.Zone2][0].Reserved = false

		return &Input{Region: fixtures.Region(), Inventory: inv}
	}

	in := newInput()

	first, err := Reconcile(in)
	require.NoError(t, err)

	second, err := Reconcile(in)
	require.NoError(t, err)

	third, err := Reconcile(newInput())
	require.NoError(t, err)

	firstBytes, err := descriptor.Marshal(first.Descriptor)
	require.NoError(t, err)

	for _, other := range []*Result{second, third} {
		otherBytes, err := descriptor.Marshal(other.Descriptor)
		require.NoError(t, err)

		assert.Equal(t, firstBytes, otherBytes)
		assert.Equal(t, categories(first.Warnings), categories(other.Warnings))
		assert.Equal(t, first.Counters, other.Counters)
	}

	assert.NotEmpty(t, first.Warnings)
}
