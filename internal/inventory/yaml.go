package inventory

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/metal-toolbox/regiongen/internal/model"
)

var (
	ErrYamlSource = errors.New("error in Yaml inventory")
)

// LoadYAML reads an inventory from a YAML file.
//
// The file lists devices and, optionally, nodes keyed by zone name,
//
//	devices:
//	  zone-a:
//	    - device_id: 1
//	      serial: S1
//	      name: MSS1
//	      hw_model: Joyent-Storage-Platform-7001
//	      rack: R1
//	nodes:
//	  zone-a: []
//
// A zone key under nodes, even with an empty list, marks fleet data as present for the zone.
func LoadYAML(yamlFile string) (*model.Inventory, error) {
	b, err := os.ReadFile(yamlFile)
	if err != nil {
		return nil, errors.Wrap(ErrYamlSource, err.Error())
	}

	inv := model.NewInventory()
	if err := yaml.Unmarshal(b, inv); err != nil {
		return nil, errors.Wrap(ErrYamlSource, yamlFile+": "+err.Error())
	}

	if inv.Devices == nil {
		inv.Devices = map[string][]model.Device{}
	}

	if inv.Nodes == nil {
		inv.Nodes = map[string][]model.Node{}
	}

	for _, devices := range inv.Devices {
		for idx := range devices {
			NormalizeDevice(&devices[idx])
		}
	}

	for zone, nodes := range inv.Nodes {
		if nodes == nil {
			inv.Nodes[zone] = []model.Node{}
		}

		for idx := range nodes {
			if err := validateNode(&nodes[idx]); err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%s: zone %q", yamlFile, zone))
			}
		}
	}

	return inv, nil
}

func validateNode(n *model.Node) error {
	if n.Serial == "" {
		return errors.Wrap(ErrNodeRecord, "empty serial")
	}

	id, err := uuid.Parse(n.UUID)
	if err != nil {
		return errors.Wrap(ErrNodeRecord, fmt.Sprintf("serial %s: uuid: %s", n.Serial, err.Error()))
	}

	n.UUID = id.String()

	return nil
}
