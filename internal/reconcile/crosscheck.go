package reconcile

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/metal-toolbox/regiongen/internal/model"
)

// ramTolerance is the relative difference permitted between asset and fleet memory values.
const ramTolerance = 0.01

// crossCheck compares the accepted devices with fleet data.
//
// The checks run only when fleet data is present for every zone, comparing a
// subset of zones would leave the skipped zones looking clean.
func (r *reconciler) crossCheck() {
	incomplete := false

	for _, zone := range r.in.Region.Zones {
		if !r.in.Inventory.HasNodes(zone.Name) {
			incomplete = true

			r.warn(model.WarnSourceIncomplete, "", "fleet data is not present for zone %q, cross-checks have been skipped", zone.Name)
		}
	}

	if incomplete {
		return
	}

	nodes := map[string]*model.Node{}

	for _, zone := range r.in.Region.Zones {
		zoneNodes := r.in.Inventory.Nodes[zone.Name]

		for idx := range zoneNodes {
			n := &zoneNodes[idx]

			if first, seen := nodes[n.Serial]; seen {
				r.warn(
					model.WarnCrossSourceMismatch,
					n.Serial,
					"fleet data lists the serial number more than once (uuid %s and %s)",
					first.UUID, n.UUID,
				)

				continue
			}

			nodes[n.Serial] = n
		}
	}

	for _, a := range r.accepted {
		node, exists := nodes[a.device.Serial]
		if !exists {
			r.warn(model.WarnCrossSourceMismatch, a.device.Serial, "not found in fleet data")
			continue
		}

		r.compare(&a, node)
	}
}

func (r *reconciler) compare(a *accepted, n *model.Node) {
	d := a.device

	if d.RAMGB != nil && !ramMatches(a.server.MemoryGB, n.RAMMB) {
		r.warn(
			model.WarnCrossSourceMismatch,
			d.Serial,
			"ram mismatch: asset data reports %dGB (%dMB), fleet data reports %dMB",
			a.server.MemoryGB, a.server.MemoryGB*1024, n.RAMMB,
		)
	}

	if d.Name != n.Hostname {
		r.warn(
			model.WarnCrossSourceMismatch,
			d.Serial,
			"hostname mismatch: asset data reports %q, fleet data reports %q",
			d.Name, n.Hostname,
		)
	}

	if a.uuid != "" && !strings.EqualFold(a.uuid, n.UUID) {
		r.warn(
			model.WarnCrossSourceMismatch,
			d.Serial,
			"uuid mismatch: asset data reports %s, fleet data reports %s",
			a.uuid, n.UUID,
		)
	}

	if n.Headnode {
		r.warn(model.WarnCrossSourceMismatch, d.Serial, "server is a headnode")
	}

	if !n.Reserved {
		r.warn(model.WarnCrossSourceMismatch, d.Serial, "server is not reserved")
	}
}

// ramMatches returns true when mb is within ramTolerance of gb.
func ramMatches(gb, mb int) bool {
	expected := float64(gb) * 1024
	if expected == 0 {
		return mb == 0
	}

	return math.Abs(expected-float64(mb))/expected <= ramTolerance
}

// heterogeneity warns for each role whose servers do not share a single memory configuration.
func (r *reconciler) heterogeneity() {
	byRole := map[model.Role]map[int]int{}

	for _, s := range r.result.Descriptor.Servers {
		if byRole[s.Role] == nil {
			byRole[s.Role] = map[int]int{}
		}

		byRole[s.Role][s.MemoryGB]++
	}

	for _, role := range model.Roles() {
		counts := byRole[role]
		if len(counts) <= 1 {
			continue
		}

		memory := maps.Keys(counts)
		slices.Sort(memory)

		dist := make([]string, 0, len(memory))
		for _, m := range memory {
			dist = append(dist, fmt.Sprintf("%d having ram %q", counts[m], fmt.Sprint(m)))
		}

		r.warn(
			model.WarnMultipleConfigurations,
			"",
			"found multiple different %q server configurations: %s",
			role, strings.Join(dist, ", "),
		)
	}
}
