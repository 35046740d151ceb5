package cmd

import (
	"context"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/metal-toolbox/regiongen/internal/app"
	"github.com/metal-toolbox/regiongen/internal/inventory"
	"github.com/metal-toolbox/regiongen/internal/metrics"
	"github.com/metal-toolbox/regiongen/internal/model"
	"github.com/metal-toolbox/regiongen/internal/version"
)

var (
	cfgFile       string
	envFile       string
	logLevel      string
	enableMetrics bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "regiongen",
	Short: "regiongen reconciles hardware inventory into region deployment descriptors",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp loads the configuration and returns the app, exiting on error.
func newApp() *app.App {
	regiongen, err := app.New(cfgFile, envFile, model.LogLevelFromString(logLevel))
	if err != nil {
		log.Fatal(err)
	}

	v := version.Current()
	regiongen.Logger.WithFields(
		logrus.Fields{
			"version": v.AppVersion,
			"commit":  v.GitCommit,
			"branch":  v.GitBranch,
			"config":  regiongen.Config.File,
		},
	).Debug("regiongen starting")

	if enableMetrics {
		version.ExportBuildInfoMetric()
		metrics.ListenAndServe()
	}

	return regiongen
}

// withTermination returns a context canceled when the app receives a termination signal.
func withTermination(ctx context.Context, a *app.App) (context.Context, context.CancelFunc) {
	ctx, cancelFunc := context.WithCancel(ctx)

	go func() {
		select {
		case <-a.TermCh:
			a.Logger.Info("got TERM signal, exiting...")
			cancelFunc()
		case <-ctx.Done():
		}
	}()

	return ctx, cancelFunc
}

// regionConfig returns the configuration of the named region, exiting on error.
func regionConfig(a *app.App, name string) *model.Region {
	region, err := a.Config.Region(name)
	if err != nil {
		a.Logger.Fatal(err)
	}

	return region
}

// collectLive fetches the region inventory from the asset and fleet APIs.
func collectLive(ctx context.Context, a *app.App, region *model.Region) (*model.Inventory, error) {
	assetClient, err := inventory.NewAssetClient(
		a.Config.AssetAPI.URL,
		a.Config.AssetAPI.Username,
		a.Config.AssetAPI.Password,
		a.Logger,
		inventory.WithPageLimit(a.Config.AssetAPI.PageLimit),
		inventory.WithRequestTimeout(a.Config.RequestTimeout),
	)
	if err != nil {
		return nil, err
	}

	fleetClient := inventory.NewFleetClient(
		a.Logger,
		inventory.WithPageLimit(a.Config.FleetAPI.PageLimit),
		inventory.WithRequestTimeout(a.Config.RequestTimeout),
	)

	return inventory.Collect(ctx, region, assetClient, fleetClient, a.Logger)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file, YAML or JSON")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "file of REGIONGEN_* environment variables to load, for credentials")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "set logging level - info, debug, trace")
	rootCmd.PersistentFlags().BoolVarP(&enableMetrics, "enable-metrics", "", false, "Enable Prometheus metrics endpoint at "+metrics.MetricsEndpoint)
}
