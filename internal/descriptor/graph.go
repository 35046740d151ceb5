package descriptor

import (
	"fmt"

	"github.com/emicklei/dot"

	"github.com/metal-toolbox/regiongen/internal/model"
)

// Graph returns the region layout as a zone -> rack -> role graph, role nodes
// are labeled with their server count.
func Graph(region string, d *model.Descriptor) *dot.Graph {
	sorted := &model.Descriptor{Shards: d.Shards, Servers: append([]model.Server{}, d.Servers...)}
	Sort(sorted)

	g := dot.NewGraph(dot.Directed)
	root := g.Node(region).Label(fmt.Sprintf("%s nshards %d", region, d.Shards))

	counts := map[string]int{}
	order := []model.Server{}

	for _, s := range sorted.Servers {
		key := s.Rack + "/" + string(s.Role)
		if counts[key] == 0 {
			order = append(order, s)
		}

		counts[key]++
	}

	for _, s := range order {
		zone := g.Node(s.Zone)
		rack := g.Node(s.Rack)
		role := g.Node(s.Rack + "/" + string(s.Role)).
			Label(fmt.Sprintf("%s x%d", s.Role, counts[s.Rack+"/"+string(s.Role)]))

		if len(g.FindEdges(root, zone)) == 0 {
			g.Edge(root, zone)
		}

		if len(g.FindEdges(zone, rack)) == 0 {
			g.Edge(zone, rack)
		}

		g.Edge(rack, role)
	}

	return g
}

// Mermaid returns the region layout graph in the mermaid format.
func Mermaid(region string, d *model.Descriptor) string {
	return dot.MermaidGraph(Graph(region, d), dot.MermaidTopDown)
}
