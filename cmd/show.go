package cmd

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"

	"github.com/metal-toolbox/regiongen/internal/store"
)

type showFlags struct {
	snapshotDir string
	zone        string
}

var (
	showFlagSet = &showFlags{}
)

var cmdShowInventory = &cobra.Command{
	Use:   "show-inventory REGION",
	Short: "Dump the records of the most recent region inventory snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		showInventory(cmd, args[0])
	},
}

func showInventory(cmd *cobra.Command, regionName string) {
	regiongen := newApp()
	ctx := cmd.Context()

	region := regionConfig(regiongen, regionName)

	if showFlagSet.zone != "" && !slices.Contains(region.ZoneNames(), showFlagSet.zone) {
		regiongen.Logger.Fatalf("region %q has no zone %q, zones: %s", region.Name, showFlagSet.zone, strings.Join(region.ZoneNames(), ", "))
	}
	snapshots := store.NewSnapshotStore(regiongen.Config.DataDir, regiongen.Logger)

	dir := showFlagSet.snapshotDir
	if dir == "" {
		tag, err := snapshots.Latest(ctx, region.Name)
		if err != nil {
			regiongen.Logger.Fatal(err)
		}

		dir = snapshots.Dir(region.Name, tag)
	}

	inv, err := store.LoadDir(dir, region)
	if err != nil {
		regiongen.Logger.Fatal(err)
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "snapshot: %s\n", dir)

	for _, zone := range region.Zones {
		if showFlagSet.zone != "" && zone.Name != showFlagSet.zone {
			continue
		}

		fmt.Fprintf(out, "zone %s, building %s: %d devices\n", zone.Name, zone.Building, len(inv.Devices[zone.Name]))
		spew.Fdump(out, inv.Devices[zone.Name])

		if !inv.HasNodes(zone.Name) {
			fmt.Fprintf(out, "zone %s: no fleet data\n", zone.Name)
			continue
		}

		fmt.Fprintf(out, "zone %s: %d nodes\n", zone.Name, len(inv.Nodes[zone.Name]))
		spew.Fdump(out, inv.Nodes[zone.Name])
	}
}

func init() {
	cmdShowInventory.Flags().StringVar(&showFlagSet.snapshotDir, "snapshot", "", "inventory snapshot directory to use instead of the most recent one")
	cmdShowInventory.Flags().StringVar(&showFlagSet.zone, "zone", "", "limit output to one zone")

	rootCmd.AddCommand(cmdShowInventory)
}
