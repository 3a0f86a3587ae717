package core

import (
	"container/heap"
	"math"
	"slices"
)

// Route is the result of a route search. A missing route has quality 0,
// infinite distance and empty paths.
type Route struct {
	Quality  int // bottleneck quality along the path
	Distance float64
	Nodes    []string
	Links    []Link
}

// Found reports whether the route reaches its goal.
func (r Route) Found() bool {
	return len(r.Nodes) > 0
}

// NoRoute returns the "no path" result.
func NoRoute() Route {
	return Route{Quality: 0, Distance: math.Inf(1), Nodes: []string{}, Links: []Link{}}
}

type routeLabel struct {
	node     string
	quality  int
	distance float64
	nodes    []string
	links    []Link
	seq      int
}

// routeQueue orders labels by highest bottleneck quality, then lowest
// distance. Exact ties fall back to node name and then the path itself, so
// equal routes resolve the same way regardless of edge order.
type routeQueue []*routeLabel

func (q routeQueue) Len() int { return len(q) }
func (q routeQueue) Less(i, j int) bool {
	if q[i].quality != q[j].quality {
		return q[i].quality > q[j].quality
	}
	if q[i].distance != q[j].distance {
		return q[i].distance < q[j].distance
	}
	if q[i].node != q[j].node {
		return q[i].node < q[j].node
	}
	if c := slices.Compare(q[i].nodes, q[j].nodes); c != 0 {
		return c < 0
	}
	return q[i].seq < q[j].seq
}
func (q routeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *routeQueue) Push(x any) { *q = append(*q, x.(*routeLabel)) }

func (q *routeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

type routeVisit struct {
	quality  int
	distance float64
}

// FindRoute searches g for the path from start to goal that maximises the
// worst link quality, breaking ties on total distance. Unknown endpoints and
// disconnected graphs yield NoRoute. g is not modified.
func FindRoute(g *Graph, start, goal string) Route {
	if !g.HasNode(start) || !g.HasNode(goal) {
		return NoRoute()
	}

	seq := 0
	queue := &routeQueue{}
	heap.Push(queue, &routeLabel{
		node:     start,
		quality:  MaxQuality,
		distance: 0,
		nodes:    []string{start},
		links:    []Link{},
		seq:      seq,
	})

	visited := make(map[string]routeVisit)

	for queue.Len() > 0 {
		cur := heap.Pop(queue).(*routeLabel)

		if prev, ok := visited[cur.node]; ok {
			if prev.quality > cur.quality || (prev.quality == cur.quality && prev.distance <= cur.distance) {
				continue
			}
		}
		visited[cur.node] = routeVisit{quality: cur.quality, distance: cur.distance}

		if cur.node == goal {
			return Route{
				Quality:  cur.quality,
				Distance: cur.distance,
				Nodes:    cur.nodes,
				Links:    cur.links,
			}
		}

		for _, edge := range g.Adj[cur.node] {
			seq++
			heap.Push(queue, &routeLabel{
				node:     edge.To,
				quality:  min(cur.quality, edge.Quality),
				distance: cur.distance + edge.Distance,
				nodes:    append(append(make([]string, 0, len(cur.nodes)+1), cur.nodes...), edge.To),
				links:    append(append(make([]Link, 0, len(cur.links)+1), cur.links...), edge.Link),
				seq:      seq,
			})
		}
	}

	return NoRoute()
}
