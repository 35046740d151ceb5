package inventory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metal-toolbox/regiongen/internal/model"
)

func writeInventory(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeInventory(t, `
devices:
  zone-a:
    - device_id: 1
      serial: S1
      name: MSS1
      hw_model: Joyent-Storage-Platform-7001
      building: B1
      rack: R1
      uuid: A3B5A1F2-5C1B-4A3E-9A1F-0D3C1F0A0001
      ram_gb: 256
      created_at: "2017-05-01"
    - device_id: 2
      serial: S2
      name: S2
      hw_model: ""
      rack: R1
      uuid: ""
  zone-b:
    - device_id: 3
      serial: S3
      name: MSS3
nodes:
  zone-a:
    - uuid: a3b5a1f2-5c1b-4a3e-9a1f-0d3c1f0a0001
      serial: S1
      hostname: MSS1
      ram_mb: 262144
      reserved: true
  zone-b:
`)

	inv, err := LoadYAML(path)
	require.NoError(t, err)

	require.Len(t, inv.Devices["zone-a"], 2)
	assert.Equal(t, model.Device{
		ID:            1,
		Serial:        "S1",
		Name:          "MSS1",
		HardwareModel: model.StrPtr("Joyent-Storage-Platform-7001"),
		Building:      model.StrPtr("B1"),
		Rack:          model.StrPtr("R1"),
		UUID:          model.StrPtr("A3B5A1F2-5C1B-4A3E-9A1F-0D3C1F0A0001"),
		RAMGB:         model.FloatPtr(256),
		CreatedAt:     "2017-05-01",
	}, inv.Devices["zone-a"][0])

	// empty strings are read as absent values
	assert.Nil(t, inv.Devices["zone-a"][1].UUID)
	assert.Nil(t, inv.Devices["zone-a"][1].HardwareModel)
	assert.Equal(t, "R1", *inv.Devices["zone-a"][1].Rack)
	assert.Nil(t, inv.Devices["zone-a"][1].RAMGB)
	assert.Len(t, inv.Devices["zone-b"], 1)

	require.Len(t, inv.Nodes["zone-a"], 1)
	assert.Equal(t, 262144, inv.Nodes["zone-a"][0].RAMMB)

	// a zone key with no list still marks fleet data present
	assert.True(t, inv.HasNodes("zone-b"))
	assert.NotNil(t, inv.Nodes["zone-b"])
	assert.Empty(t, inv.Nodes["zone-b"])
}

func TestLoadYAMLErrors(t *testing.T) {
	tests := []struct {
		testName      string
		content       string
		expectedError error
	}{
		{
			"malformed",
			"devices: [",
			ErrYamlSource,
		},
		{
			"device ram wrong type",
			"devices:\n  z:\n    - device_id: 1\n      serial: S1\n      ram_gb: lots\n",
			ErrYamlSource,
		},
		{
			"node with invalid uuid",
			"devices: {}\nnodes:\n  z:\n    - serial: S1\n      uuid: nope\n",
			ErrNodeRecord,
		},
		{
			"node without serial",
			"nodes:\n  z:\n    - uuid: a3b5a1f2-5c1b-4a3e-9a1f-0d3c1f0a0001\n",
			ErrNodeRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.testName, func(t *testing.T) {
			_, err := LoadYAML(writeInventory(t, tt.content))
			assert.ErrorIs(t, err, tt.expectedError)
		})
	}
}

func TestLoadYAMLMissingFile(t *testing.T) {
	_, err := LoadYAML(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, ErrYamlSource)
}
