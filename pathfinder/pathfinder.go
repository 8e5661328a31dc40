// Package pathfinder searches for the shortest route between two points of an
// occupancy map, walking only through visited cells.
//
// The search is an A* over the 8-connected grid of unit cells. Every step,
// straight or diagonal, costs one hop. The default heuristic is the euclidean
// distance to the goal in cells, floored, plus one. That "+1" makes it
// overestimate the remaining cost, so returned paths are short but not
// guaranteed to be optimal. WithAdmissibleHeuristic switches to the chebyshev
// distance, which restores optimality.
package pathfinder

import (
	"container/heap"
	"math"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/wayfinder/floorplan"
)

var neighbourOffsets = [8]cell{
	{1, 0},
	{1, 1},
	{1, -1},
	{-1, 0},
	{-1, 1},
	{-1, -1},
	{0, 1},
	{0, -1},
}

// PathFinder finds paths inside an occupancy index. It never modifies the
// index and keeps no state between searches.
type PathFinder struct {
	index         floorplan.Index
	heuristic     func(from, to cell) int
	maxExpansions int
}

type Option func(*PathFinder)

// WithAdmissibleHeuristic makes the search use the chebyshev distance to the
// goal, which never overestimates on an 8-connected grid.
func WithAdmissibleHeuristic() Option {
	return func(p *PathFinder) {
		p.heuristic = chebyshevDistance
	}
}

// WithMaxExpansions limits the number of cells a single search may expand.
// Zero means no limit.
func WithMaxExpansions(n int) Option {
	return func(p *PathFinder) {
		if n < 0 {
			n = 0
		}
		p.maxExpansions = n
	}
}

func New(index floorplan.Index, opts ...Option) *PathFinder {
	p := &PathFinder{
		index:     index,
		heuristic: flooredEuclideanDistance,
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FindPath returns the waypoints between from and to, ordered from the goal
// cell back to the cell right after the start. The start cell itself is not
// part of the result. Each waypoint is the canonical coordinate of an
// occupied cell.
//
// It fails with ErrTypeRegionNotMapped when from or to is in an unvisited
// cell, and with ErrTypeNoPathFound when the visited cells do not connect
// them.
func (p *PathFinder) FindPath(from, to floorplan.Vector2) ([]floorplan.Vector2, error) {
	start := time.Now()

	s := search{PathFinder: p}
	path, err := s.run(from, to)

	instrumentSearch(start, s.expanded, err)
	return path, err
}

// FindPath3D finds a path between two world positions, projected on the
// ground plane.
func (p *PathFinder) FindPath3D(from, to floorplan.Vector3) ([]floorplan.Vector2, error) {
	return p.FindPath(from.GroundPlane(), to.GroundPlane())
}

// Cells are addressed by their offset, in units, from the rasterized start.
type cell struct {
	x int
	y int
}

func (c cell) vector() floorplan.Vector2 {
	return floorplan.Vector2{X: float64(c.x), Y: float64(c.y)}
}

type searchNode struct {
	cell   cell
	point  floorplan.Vector2
	parent *searchNode

	g int
	f int

	seq   uint64
	stale bool
}

type search struct {
	*PathFinder

	unit     float64
	origin   floorplan.Vector2
	goal     cell
	seq      uint64
	expanded int

	frontier frontier
	open     map[cell]*searchNode
	closed   map[cell]struct{}
}

func (s *search) run(from, to floorplan.Vector2) ([]floorplan.Vector2, error) {
	if !s.index.IsOccupied(from) || !s.index.IsOccupied(to) {
		return nil, errors.New("fields are not visited in the floor plan").
			WithType(ErrTypeRegionNotMapped).
			WithTag("from", from).
			WithTag("to", to)
	}

	s.unit = s.index.Unit()
	s.origin = s.index.Rasterize(from)
	s.goal = s.cellOf(s.index.Rasterize(to))
	s.open = make(map[cell]*searchNode)
	s.closed = make(map[cell]struct{})

	s.push(&searchNode{
		point: s.origin,
		f:     s.heuristic(cell{}, s.goal),
	})

	for s.frontier.Len() != 0 {
		current := heap.Pop(&s.frontier).(*searchNode)
		if current.stale {
			continue
		}
		delete(s.open, current.cell)

		if current.cell == s.goal {
			return reconstructPath(current), nil
		}

		if s.maxExpansions > 0 && s.expanded >= s.maxExpansions {
			return nil, errors.New("search expansion limit reached").
				WithType(ErrTypeNoPathFound).
				WithTag("from", from).
				WithTag("to", to).
				WithTag("max_expansions", s.maxExpansions)
		}

		s.closed[current.cell] = struct{}{}
		s.expanded++
		s.expand(current)
	}

	return nil, errors.New("no path found").
		WithType(ErrTypeNoPathFound).
		WithTag("from", from).
		WithTag("to", to).
		WithTag("expanded", s.expanded)
}

func (s *search) expand(current *searchNode) {
	for _, offset := range neighbourOffsets {
		c := cell{current.cell.x + offset.x, current.cell.y + offset.y}
		if _, ok := s.closed[c]; ok {
			continue
		}

		// Probe the center: corners sit on cell boundaries.
		center := s.cellCenter(c)
		if !s.index.IsOccupied(center) {
			continue
		}

		neighbour := &searchNode{
			cell:   c,
			point:  s.index.Rasterize(center),
			parent: current,
			g:      current.g + 1,
		}
		neighbour.f = neighbour.g + s.heuristic(c, s.goal)

		if existing, ok := s.open[c]; ok {
			if existing.f < neighbour.f {
				continue
			}
			existing.stale = true
		}
		s.push(neighbour)
	}
}

func (s *search) push(n *searchNode) {
	n.seq = s.seq
	s.seq++
	s.open[n.cell] = n
	heap.Push(&s.frontier, n)
}

func (s *search) cellOf(p floorplan.Vector2) cell {
	return cell{
		x: int(math.Round((p.X - s.origin.X) / s.unit)),
		y: int(math.Round((p.Y - s.origin.Y) / s.unit)),
	}
}

func (s *search) cellCenter(c cell) floorplan.Vector2 {
	return floorplan.Vector2{
		X: s.origin.X + (float64(c.x)+0.5)*s.unit,
		Y: s.origin.Y + (float64(c.y)+0.5)*s.unit,
	}
}

func reconstructPath(goal *searchNode) []floorplan.Vector2 {
	path := make([]floorplan.Vector2, 0, goal.g)
	for n := goal; n.parent != nil; n = n.parent {
		path = append(path, n.point)
	}
	return path
}

func flooredEuclideanDistance(from, to cell) int {
	return int(floorplan.Distance(from.vector(), to.vector())) + 1
}

func chebyshevDistance(from, to cell) int {
	dx := abs(to.x - from.x)
	dy := abs(to.y - from.y)
	if dx > dy {
		return dx
	}
	return dy
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// frontier is a min-heap of search nodes ordered by f, ties going to the node
// discovered first.
type frontier []*searchNode

func (f frontier) Len() int {
	return len(f)
}

func (f frontier) Less(i, j int) bool {
	if f[i].f != f[j].f {
		return f[i].f < f[j].f
	}
	return f[i].seq < f[j].seq
}

func (f frontier) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
}

func (f *frontier) Push(x any) {
	*f = append(*f, x.(*searchNode))
}

func (f *frontier) Pop() any {
	old := *f
	last := len(old) - 1
	n := old[last]
	old[last] = nil
	*f = old[:last]
	return n
}
