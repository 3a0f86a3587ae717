package core

import (
	"math"

	"github.com/signalsfoundry/relay-network-simulator/model"
)

// MaxQuality is the quality of a perfect link and the bottleneck sentinel for
// a route that has not traversed any edge yet.
const MaxQuality = 100

// Edge is a directed communication link between two constellations.
type Edge struct {
	From     string
	To       string
	Quality  int     // 0..100
	Distance float64 // physical link length
	Link     Link    // satellite-to-satellite segment, for display
}

// Graph maps each constellation name to its outgoing edges. Nodes keeps every
// constellation name in scene order, including those without edges.
type Graph struct {
	Nodes []string
	Adj   map[string][]Edge
}

// HasNode reports whether name is a node of the graph.
func (g *Graph) HasNode(name string) bool {
	if g == nil {
		return false
	}
	for _, n := range g.Nodes {
		if n == name {
			return true
		}
	}
	return false
}

// Edge returns the edge from -> to, if present.
func (g *Graph) Edge(from, to string) (Edge, bool) {
	if g == nil {
		return Edge{}, false
	}
	for _, e := range g.Adj[from] {
		if e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, edges := range g.Adj {
		n += len(edges)
	}
	return n
}

// MaxRange returns the longest distance two antennas of the given ratings can
// bridge.
func MaxRange(ratingA, ratingB int64) float64 {
	return math.Sqrt(float64(ratingA) * float64(ratingB))
}

// LinkQuality maps a link distance onto 0..100 with a smoothstep falloff: 100
// for co-located antennas, 0 at maxRange and beyond.
func LinkQuality(distance, maxRange float64) int {
	if maxRange <= 0 || distance >= maxRange {
		return 0
	}
	if distance <= 0 {
		return MaxQuality
	}
	x := 1 - distance/maxRange
	return int(math.Round(MaxQuality * (3 - 2*x) * x * x))
}

// BuildGraph evaluates every ordered pair of distinct constellations and adds
// an edge when they have an unblocked line of sight shorter than their
// combined range.
func BuildGraph(constellations []*model.Constellation, bodies []*model.Body) *Graph {
	g := &Graph{
		Nodes: make([]string, 0, len(constellations)),
		Adj:   make(map[string][]Edge, len(constellations)),
	}
	for _, c := range constellations {
		g.Nodes = append(g.Nodes, c.Name)
	}

	for i, x := range constellations {
		edges := []Edge{}
		for j, y := range constellations {
			if i == j {
				continue
			}
			link, ok := ShortestUnblockedLink(x, y, bodies)
			if !ok {
				continue
			}
			distance := link.Length()
			maxRange := MaxRange(x.Rating, y.Rating)
			if distance >= maxRange {
				continue
			}
			edges = append(edges, Edge{
				From:     x.Name,
				To:       y.Name,
				Quality:  LinkQuality(distance, maxRange),
				Distance: distance,
				Link:     link,
			})
		}
		g.Adj[x.Name] = edges
	}
	return g
}
