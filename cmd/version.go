package cmd

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/metal-toolbox/regiongen/internal/version"
)

var versionJSON bool

var cmdVersion = &cobra.Command{
	Use:   "version",
	Short: "Print regiongen version along with dependency information.",
	Run: func(cmd *cobra.Command, args []string) {
		v := version.Current()

		if versionJSON {
			b, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				log.Fatal(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(b))

			return
		}

		fmt.Fprintf(
			cmd.OutOrStdout(),
			"commit: %s\nbranch: %s\ngit summary: %s\nbuildDate: %s\nversion: %s\nGo version: %s\nretryablehttp version: %s\n",
			v.GitCommit, v.GitBranch, v.GitSummary, v.BuildDate, v.AppVersion, v.GoVersion, v.RetryablehttpVer)
	},
}

func init() {
	cmdVersion.Flags().BoolVar(&versionJSON, "json", false, "print version information as JSON")

	rootCmd.AddCommand(cmdVersion)
}
