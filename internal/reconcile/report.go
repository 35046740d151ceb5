package reconcile

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/metal-toolbox/regiongen/internal/model"
)

// WriteReport writes the per zone rack table and run totals.
func WriteReport(w io.Writer, result *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	for _, zone := range result.Zones {
		fmt.Fprintf(tw, "AZ %s (%d racks):\t\t\t\n", zone.Zone, len(zone.Racks))
		fmt.Fprintf(tw, "RACK\tNMETADATA\tNSTORAGE\t\n")

		for _, rack := range zone.Racks {
			fmt.Fprintf(tw, "%s\t%d\t%d\t\n", rack.Rack, rack.Metadata, rack.Storage)
		}

		fmt.Fprintf(tw, "TOTAL\t%d\t%d\t\n", zone.Metadata, zone.Storage)
		fmt.Fprintf(tw, "\t\t\t\n")
	}

	fmt.Fprintf(tw, "ALL AZS\t%d\t%d\t\n", result.Counters.Metadata, result.Counters.Storage)

	if err := tw.Flush(); err != nil {
		return err
	}

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "total servers\t%d\n", result.Counters.Servers())
	fmt.Fprintf(tw, "ignored: servers without a rack\t%d\n", result.Counters.Unracked)
	fmt.Fprintf(tw, "ignored: servers in unlisted racks\t%d\n", result.Counters.UnknownRack)
	fmt.Fprintf(tw, "ignored: servers on unmapped hardware\t%d\n", result.Counters.UnknownHardware)
	fmt.Fprintf(tw, "servers with unknown \"ram\"\t%d\n", result.Counters.MissingRAM)
	fmt.Fprintf(tw, "servers with unknown \"uuid\"\t%d\n", result.Counters.MissingUUID)

	counts := result.Warnings.CountByCategory()
	for _, category := range model.WarningCategories() {
		if counts[category] > 0 {
			fmt.Fprintf(tw, "warnings: %s\t%d\n", category, counts[category])
		}
	}

	return tw.Flush()
}

// WriteWarnings writes one line per warning, grouped by category.
func WriteWarnings(w io.Writer, result *Result) error {
	for _, category := range model.WarningCategories() {
		for _, warning := range result.Warnings.ByCategory(category) {
			if _, err := fmt.Fprintf(w, "warning: %s\n", warning); err != nil {
				return err
			}
		}
	}

	return nil
}
