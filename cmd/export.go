package cmd

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/metal-toolbox/regiongen/internal/descriptor"
)

type exportFlags struct {
	region string
}

var (
	exportFlagSet = &exportFlags{}
)

var cmdExportLayout = &cobra.Command{
	Use:   "export-layout FILE",
	Short: "Export the zone, rack and role layout of a descriptor in the mermaid format",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exportLayout(cmd, args[0])
	},
}

func exportLayout(cmd *cobra.Command, path string) {
	d, err := descriptor.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}

	region := exportFlagSet.region
	if region == "" {
		region = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	fmt.Fprintln(cmd.OutOrStdout(), descriptor.Mermaid(region, d))
}

func init() {
	cmdExportLayout.Flags().StringVar(&exportFlagSet.region, "region", "", "region name for the graph root, defaults to the file name")

	rootCmd.AddCommand(cmdExportLayout)
}
