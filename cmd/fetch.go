package cmd

import (
	"fmt"

	"github.com/equinix-labs/otel-init-go/otelinit"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/metal-toolbox/regiongen/internal/model"
	"github.com/metal-toolbox/regiongen/internal/store"
)

var cmdFetchInventory = &cobra.Command{
	Use:   "fetch-inventory REGION",
	Short: "Fetch the region inventory from the asset and fleet APIs and store it as a snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fetchInventory(cmd, args[0])
	},
}

func fetchInventory(cmd *cobra.Command, regionName string) {
	regiongen := newApp()

	ctx, otelShutdown := otelinit.InitOpenTelemetry(cmd.Context(), model.AppName)
	defer otelShutdown(ctx)

	ctx, cancelFunc := withTermination(ctx, regiongen)
	defer cancelFunc()

	region := regionConfig(regiongen, regionName)

	inv, err := collectLive(ctx, regiongen, region)
	if err != nil {
		regiongen.Logger.Fatal(err)
	}

	snapshots := store.NewSnapshotStore(regiongen.Config.DataDir, regiongen.Logger)

	tag, err := snapshots.Save(ctx, region, inv)
	if err != nil {
		regiongen.Logger.Fatal(err)
	}

	for _, zone := range region.Zones {
		regiongen.Logger.WithFields(logrus.Fields{
			"zone":    zone.Name,
			"devices": len(inv.Devices[zone.Name]),
			"nodes":   len(inv.Nodes[zone.Name]),
			"fleet":   inv.HasNodes(zone.Name),
		}).Info("zone inventory")
	}

	fmt.Fprintln(cmd.OutOrStdout(), snapshots.Dir(region.Name, tag))
}

func init() {
	rootCmd.AddCommand(cmdFetchInventory)
}
