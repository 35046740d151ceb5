package inventory

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/metal-toolbox/regiongen/internal/model"
)

// zoneSlot holds the records fetched for one zone, each slot is written only
// by the goroutine fetching that zone.
type zoneSlot struct {
	devices  []model.Device
	nodes    []model.Node
	hasNodes bool
}

// Collect fetches the devices and nodes of each zone in region, zones are fetched concurrently.
//
// A device fetch failure in any zone fails the collection, partial inventories are never returned.
// Node data is optional, a zone with no fleet endpoint or a failed node fetch is
// left out of Inventory.Nodes and the failure is logged.
func Collect(ctx context.Context, region *model.Region, devices DeviceSource, nodes NodeSource, logger *logrus.Logger) (*model.Inventory, error) {
	switch {
	case region == nil:
		return nil, errors.Wrap(ErrCollectInput, "region not specified")
	case devices == nil:
		return nil, errors.Wrap(ErrCollectInput, "device source not specified")
	}

	ctx, span := otel.Tracer(pkgName).Start(ctx, "inventory.Collect")
	defer span.End()

	span.SetAttributes(attribute.String("region", region.Name))

	if logger == nil {
		logger = logrus.New()
	}

	slots := make([]zoneSlot, len(region.Zones))

	group, groupCtx := errgroup.WithContext(ctx)

	for idx := range region.Zones {
		idx := idx
		zone := region.Zones[idx]

		group.Go(func() error {
			zoneLogger := logger.WithFields(logrus.Fields{"zone": zone.Name, "building": zone.Building})

			zoneLogger.Info("fetching devices")

			devs, err := devices.Devices(groupCtx, zone.Building)
			if err != nil {
				return errors.Wrapf(err, "zone %q", zone.Name)
			}

			slots[idx].devices = devs

			if nodes == nil || zone.FleetEndpoint == "" {
				zoneLogger.Warn("no fleet endpoint for zone, fleet data not fetched")
				return nil
			}

			zoneLogger.WithField("endpoint", zone.FleetEndpoint).Info("fetching nodes")

			ns, err := nodes.Nodes(groupCtx, zone.FleetEndpoint)
			if err != nil {
				zoneLogger.WithError(err).Warn("fleet data fetch failed, continuing without it")
				return nil
			}

			slots[idx].nodes = ns
			slots[idx].hasNodes = true

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(err, "collect region %q", region.Name)
	}

	inv := model.NewInventory()

	for idx, zone := range region.Zones {
		inv.Devices[zone.Name] = slots[idx].devices

		if slots[idx].hasNodes {
			inv.Nodes[zone.Name] = slots[idx].nodes
		}
	}

	return inv, nil
}
