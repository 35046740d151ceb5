package cmd

import (
	"context"
	"path/filepath"

	"github.com/equinix-labs/otel-init-go/otelinit"
	"github.com/spf13/cobra"

	"github.com/metal-toolbox/regiongen/internal/app"
	"github.com/metal-toolbox/regiongen/internal/descriptor"
	"github.com/metal-toolbox/regiongen/internal/inventory"
	"github.com/metal-toolbox/regiongen/internal/model"
	"github.com/metal-toolbox/regiongen/internal/reconcile"
	"github.com/metal-toolbox/regiongen/internal/store"
)

type generateFlags struct {
	snapshotDir   string
	inventoryFile string
	live          bool
	outputDir     string
}

var (
	generateFlagSet = &generateFlags{}
)

var cmdGenerate = &cobra.Command{
	Use:   "generate REGION [--snapshot DIR | --inventory FILE | --live] [--output-dir DIR]",
	Short: "Reconcile the region inventory and write its deployment descriptor",
	Long: "Reconcile the region inventory and write its deployment descriptor to <output-dir>/<region>.json.\n" +
		"The most recent inventory snapshot is used unless another source is given, an existing descriptor is never overwritten.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		generate(cmd, args[0])
	},
}

func generate(cmd *cobra.Command, regionName string) {
	regiongen := newApp()

	ctx, otelShutdown := otelinit.InitOpenTelemetry(cmd.Context(), model.AppName)
	defer otelShutdown(ctx)

	ctx, cancelFunc := withTermination(ctx, regiongen)
	defer cancelFunc()

	region := regionConfig(regiongen, regionName)

	inv, err := loadInventory(ctx, regiongen, region)
	if err != nil {
		regiongen.Logger.Fatal(err)
	}

	result, err := reconcile.Reconcile(&reconcile.Input{
		Region:    region,
		Inventory: inv,
		Roles:     model.NewHardwareRoles(regiongen.Config.HardwareRoles),
		Prefixes:  model.NewHostnamePrefixes(regiongen.Config.HostnamePrefixes),
		Logger:    regiongen.Logger,
	})

	// the report and warnings are printed even when duplicates were found
	if result != nil {
		if errReport := reconcile.WriteReport(cmd.OutOrStdout(), result); errReport != nil {
			regiongen.Logger.Fatal(errReport)
		}

		if errWarn := reconcile.WriteWarnings(cmd.ErrOrStderr(), result); errWarn != nil {
			regiongen.Logger.Fatal(errWarn)
		}
	}

	if err != nil {
		regiongen.Logger.Fatal(err)
	}

	outfile := filepath.Join(generateFlagSet.outputDir, descriptor.FileName(region.Name))

	if err := descriptor.WriteFile(outfile, result.Descriptor); err != nil {
		regiongen.Logger.Fatal(err)
	}

	regiongen.Logger.WithField("file", outfile).Info("wrote descriptor")
}

// loadInventory returns the region inventory from the source selected by flags.
func loadInventory(ctx context.Context, a *app.App, region *model.Region) (*model.Inventory, error) {
	switch {
	case generateFlagSet.live:
		return collectLive(ctx, a, region)
	case generateFlagSet.inventoryFile != "":
		return inventory.LoadYAML(generateFlagSet.inventoryFile)
	case generateFlagSet.snapshotDir != "":
		return store.LoadDir(generateFlagSet.snapshotDir, region)
	}

	snapshots := store.NewSnapshotStore(a.Config.DataDir, a.Logger)

	tag, err := snapshots.Latest(ctx, region.Name)
	if err != nil {
		return nil, err
	}

	a.Logger.WithField("dir", snapshots.Dir(region.Name, tag)).Info("using inventory snapshot")

	return snapshots.Load(ctx, region, tag)
}

func init() {
	cmdGenerate.Flags().StringVar(&generateFlagSet.snapshotDir, "snapshot", "", "inventory snapshot directory to use instead of the most recent one")
	cmdGenerate.Flags().StringVar(&generateFlagSet.inventoryFile, "inventory", "", "YAML inventory file to use instead of a snapshot")
	cmdGenerate.Flags().BoolVar(&generateFlagSet.live, "live", false, "fetch the inventory from the asset and fleet APIs instead of using a snapshot")
	cmdGenerate.Flags().StringVar(&generateFlagSet.outputDir, "output-dir", ".", "directory the descriptor is written to")

	cmdGenerate.MarkFlagsMutuallyExclusive("snapshot", "inventory", "live")

	rootCmd.AddCommand(cmdGenerate)
}
