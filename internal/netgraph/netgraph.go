// Package netgraph turns a one-pixel-wide skeleton into an undirected graph of
// junctions and endpoints joined by traced pixel paths.
package netgraph

import (
	"fmt"
	"image"
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
)

// Node is a skeleton pixel whose neighbour count is not two: an endpoint, a junction,
// or the anchor picked for a closed loop.
type Node struct {
	ID     string
	Point  image.Point
	Degree int
}

// Segment is an edge resolved to its end points. Length counts pixel steps.
type Segment struct {
	From, To image.Point
	Length   int
}

type Graph = graph.Graph[string, Node]

func nodeHash(n Node) string {
	return n.ID
}

func nodeID(p image.Point) string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

var offsets = [8]image.Point{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

type mask struct {
	bounds image.Rectangle
	on     []bool
}

func newMask(img *image.Gray) *mask {
	b := img.Bounds()
	m := &mask{bounds: b, on: make([]bool, b.Dx()*b.Dy())}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			m.on[m.index(image.Pt(x, y))] = img.GrayAt(x, y).Y > 0
		}
	}
	return m
}

func (m *mask) index(p image.Point) int {
	return (p.Y-m.bounds.Min.Y)*m.bounds.Dx() + (p.X - m.bounds.Min.X)
}

func (m *mask) at(p image.Point) bool {
	return p.In(m.bounds) && m.on[m.index(p)]
}

func (m *mask) neighbours(p image.Point) []image.Point {
	out := make([]image.Point, 0, 8)
	for _, d := range offsets {
		if q := p.Add(d); m.at(q) {
			out = append(out, q)
		}
	}
	return out
}

// Extract builds the graph of skel. Any non-zero pixel is part of the skeleton.
// Nodes are added in raster order, so repeated extraction is deterministic.
func Extract(skel *image.Gray) (Graph, error) {
	if skel == nil {
		return nil, errors.New("netgraph: nil skeleton")
	}

	m := newMask(skel)
	g := graph.New(nodeHash)
	isNode := make(map[image.Point]bool)

	b := m.bounds
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := image.Pt(x, y)
			if !m.at(p) {
				continue
			}
			if deg := len(m.neighbours(p)); deg != 2 {
				if err := g.AddVertex(Node{ID: nodeID(p), Point: p, Degree: deg}); err != nil {
					return nil, errors.Wrap(err, "add node")
				}
				isNode[p] = true
			}
		}
	}

	visited := make(map[image.Point]bool)
	trace := func(start image.Point) error {
		for _, first := range m.neighbours(start) {
			if visited[first] {
				continue
			}
			end, length, ok := walk(m, isNode, visited, start, first)
			if !ok || end == start {
				continue
			}
			err := g.AddEdge(nodeID(start), nodeID(end), graph.EdgeWeight(length))
			if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return errors.Wrap(err, "add edge")
			}
		}
		return nil
	}

	nodes := sortedNodes(isNode)
	for _, p := range nodes {
		if err := trace(p); err != nil {
			return nil, err
		}
	}

	// Closed loops have no node of their own; anchor each at its first pixel.
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := image.Pt(x, y)
			if !m.at(p) || isNode[p] || visited[p] {
				continue
			}
			if err := g.AddVertex(Node{ID: nodeID(p), Point: p, Degree: 2}); err != nil {
				return nil, errors.Wrap(err, "add loop anchor")
			}
			isNode[p] = true
			visited[p] = true
			if err := trace(p); err != nil {
				return nil, err
			}
		}
	}

	return g, nil
}

// walk follows path pixels from start through first until it reaches a node.
func walk(m *mask, isNode, visited map[image.Point]bool, start, first image.Point) (image.Point, int, bool) {
	prev, cur, length := start, first, 1
	for !isNode[cur] {
		visited[cur] = true

		next, found := image.Point{}, false
		for _, q := range m.neighbours(cur) {
			if q == prev || (visited[q] && !isNode[q]) {
				continue
			}
			next, found = q, true
			break
		}
		if !found {
			return image.Point{}, 0, false
		}
		prev, cur = cur, next
		length++
	}
	return cur, length, true
}

func sortedNodes(set map[image.Point]bool) []image.Point {
	out := make([]image.Point, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Prune drops edges shorter than minLength and then every node left without edges.
func Prune(g Graph, minLength int) error {
	edges, err := g.Edges()
	if err != nil {
		return errors.Wrap(err, "list edges")
	}
	for _, e := range edges {
		if e.Properties.Weight < minLength {
			if err := g.RemoveEdge(e.Source, e.Target); err != nil {
				return errors.Wrap(err, "remove edge")
			}
		}
	}

	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return errors.Wrap(err, "adjacency")
	}
	for id, neighbours := range adjacency {
		if len(neighbours) == 0 {
			if err := g.RemoveVertex(id); err != nil {
				return errors.Wrap(err, "remove node")
			}
		}
	}
	return nil
}

// Segments resolves every edge to its end points, sorted for stable rendering.
func Segments(g Graph) ([]Segment, error) {
	edges, err := g.Edges()
	if err != nil {
		return nil, errors.Wrap(err, "list edges")
	}

	out := make([]Segment, 0, len(edges))
	for _, e := range edges {
		from, err := g.Vertex(e.Source)
		if err != nil {
			return nil, errors.Wrap(err, "edge source")
		}
		to, err := g.Vertex(e.Target)
		if err != nil {
			return nil, errors.Wrap(err, "edge target")
		}
		out = append(out, Segment{From: from.Point, To: to.Point, Length: e.Properties.Weight})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.From != b.From {
			return less(a.From, b.From)
		}
		return less(a.To, b.To)
	})
	return out, nil
}

// Nodes lists every node in raster order.
func Nodes(g Graph) ([]Node, error) {
	adjacency, err := g.AdjacencyMap()
	if err != nil {
		return nil, errors.Wrap(err, "adjacency")
	}

	out := make([]Node, 0, len(adjacency))
	for id := range adjacency {
		n, err := g.Vertex(id)
		if err != nil {
			return nil, errors.Wrap(err, "node")
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i].Point, out[j].Point) })
	return out, nil
}

func less(a, b image.Point) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
