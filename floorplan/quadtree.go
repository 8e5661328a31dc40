package floorplan

import (
	"math"
	"sync"
)

// Quadtree Occupancy Index
//
// A bounded quadtree holding a boolean occupancy grid at a fixed resolution.
// The particularities are:
//   - the root covers a square of side extent starting at origin. The unit
//     cell has a side of extent / 2^depth.
//   - nodes are created lazily, only when a point is marked as visited. Read
//     operations never create nodes.
//   - points outside of [origin, origin+extent[ on either axis are ignored by
//     writes and reported as unoccupied by reads.

// PlaneSpacer is the margin removed from each occupied cell when exporting it
// as a polygon, so adjacent cells stay visually separated.
const PlaneSpacer = 0.02

type QuadTree struct {
	mutex    sync.RWMutex
	root     *quadNode
	unit     float64
	listener Listener
}

type quadNode struct {
	origin    Vector2
	extent    float64
	halfRange float64
	depth     int
	filled    bool
	children  [4]*quadNode
}

func NewQuadTree(origin Vector2, extent float64, depth int) *QuadTree {
	if depth < 0 {
		depth = 0
	}
	if extent <= 0 || math.IsNaN(extent) || math.IsInf(extent, 0) {
		extent = 1
	}

	return &QuadTree{
		root: newQuadNode(origin, extent, depth),
		unit: extent / math.Pow(2, float64(depth)),
	}
}

func newQuadNode(origin Vector2, extent float64, depth int) *quadNode {
	return &quadNode{
		origin:    origin,
		extent:    extent,
		halfRange: extent / 2,
		depth:     depth,
	}
}

// SetListener registers the listener notified by MarkVisitedAndNotify. Only one
// listener is kept: a later call replaces the previous one, nil removes it.
func (q *QuadTree) SetListener(l Listener) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.listener = l
}

// MarkVisited marks the unit cell containing p as occupied. It returns true
// only when the cell was not occupied before.
func (q *QuadTree) MarkVisited(p Vector2) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.markVisited(p)
}

// MarkVisitedAndNotify marks the cell containing p as occupied and calls the
// listener if the cell was not occupied before. The listener runs once the
// write is visible to readers.
func (q *QuadTree) MarkVisitedAndNotify(p Vector2) {
	q.mutex.Lock()
	changed := q.markVisited(p)
	listener := q.listener
	q.mutex.Unlock()

	if changed && listener != nil {
		listener()
	}
}

func (q *QuadTree) markVisited(p Vector2) bool {
	if !q.root.contains(p) {
		instrumentOutOfRangePoint()
		return false
	}

	if !q.root.setFilled(p) {
		return false
	}

	instrumentCellOccupied()
	return true
}

func (q *QuadTree) IsOccupied(p Vector2) bool {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	if !q.root.contains(p) {
		return false
	}
	return q.root.isFilled(p)
}

// Rasterize returns the canonical coordinate (the lower corner) of the
// occupied cell containing p. When that cell is not occupied, p is returned
// unchanged: check IsOccupied before relying on the result.
func (q *QuadTree) Rasterize(p Vector2) Vector2 {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	if !q.root.contains(p) {
		return p
	}
	return q.root.rasterize(p)
}

func (q *QuadTree) Contains(p Vector2) bool {
	return q.root.contains(p)
}

func (q *QuadTree) Unit() float64 {
	return q.unit
}

func (q *QuadTree) Origin() Vector2 {
	return q.root.origin
}

func (q *QuadTree) Extent() float64 {
	return q.root.extent
}

func (q *QuadTree) Depth() int {
	return q.root.depth
}

// OccupiedCells returns the canonical coordinates of every occupied cell, in
// tree traversal order.
func (q *QuadTree) OccupiedCells() []Vector2 {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	var cells []Vector2
	q.root.walkFilled(func(n *quadNode) {
		cells = append(cells, n.origin)
	})
	return cells
}

func (q *QuadTree) OccupiedCount() int {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	count := 0
	q.root.walkFilled(func(n *quadNode) {
		count++
	})
	return count
}

// OccupiedPolygon returns a flat triangle list covering the occupied cells:
// two triangles, six vertices, per cell. Each cell is shrunk by PlaneSpacer
// on its upper edges. Shared edges are not merged.
func (q *QuadTree) OccupiedPolygon() []Vector2 {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	var vertices []Vector2
	q.root.walkFilled(func(n *quadNode) {
		x, y := n.origin.X, n.origin.Y
		size := n.extent - PlaneSpacer

		vertices = append(vertices,
			Vector2{x, y},
			Vector2{x + size, y},
			Vector2{x, y + size},

			Vector2{x, y + size},
			Vector2{x + size, y},
			Vector2{x + size, y + size},
		)
	})
	return vertices
}

// Clear marks every cell as unoccupied. Created nodes are kept.
func (q *QuadTree) Clear() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.root.clear()
}

func (q *QuadTree) DebugInfo() DebugInfo {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	result := DebugInfo{
		Origin:   q.root.origin,
		Extent:   q.root.extent,
		MaxDepth: q.root.depth,
		Unit:     q.unit,
	}

	q.root.walk(func(n *quadNode) {
		result.NodeCount++
		if n.depth == 0 {
			result.LeafCount++
			if n.filled {
				result.OccupiedCount++
			}
		}
	})
	return result
}

func (n *quadNode) contains(p Vector2) bool {
	return p.X >= n.origin.X &&
		p.Y >= n.origin.Y &&
		p.X < n.origin.X+n.extent &&
		p.Y < n.origin.Y+n.extent
}

// Quadrants are split at the midpoint, the lower bound being inclusive:
// 0: x < mid, y < mid
// 1: x < mid, y >= mid
// 2: x >= mid, y < mid
// 3: x >= mid, y >= mid
func (n *quadNode) childIndex(p Vector2) int {
	if p.X < n.origin.X+n.halfRange {
		if p.Y < n.origin.Y+n.halfRange {
			return 0
		}
		return 1
	}

	if p.Y < n.origin.Y+n.halfRange {
		return 2
	}
	return 3
}

func (n *quadNode) childOrigin(index int) Vector2 {
	switch index {
	case 0:
		return n.origin
	case 1:
		return Vector2{n.origin.X, n.origin.Y + n.halfRange}
	case 2:
		return Vector2{n.origin.X + n.halfRange, n.origin.Y}
	default:
		return Vector2{n.origin.X + n.halfRange, n.origin.Y + n.halfRange}
	}
}

func (n *quadNode) setFilled(p Vector2) bool {
	node := n
	for node.depth > 0 {
		index := node.childIndex(p)
		if node.children[index] == nil {
			node.children[index] = newQuadNode(node.childOrigin(index), node.halfRange, node.depth-1)
		}
		node = node.children[index]
	}

	if node.filled {
		return false
	}
	node.filled = true
	return true
}

func (n *quadNode) leaf(p Vector2) *quadNode {
	node := n
	for node.depth > 0 {
		node = node.children[node.childIndex(p)]
		if node == nil {
			return nil
		}
	}
	return node
}

func (n *quadNode) isFilled(p Vector2) bool {
	leaf := n.leaf(p)
	return leaf != nil && leaf.filled
}

func (n *quadNode) rasterize(p Vector2) Vector2 {
	leaf := n.leaf(p)
	if leaf == nil || !leaf.filled {
		return p
	}
	return leaf.origin
}

func (n *quadNode) clear() {
	n.walk(func(node *quadNode) {
		node.filled = false
	})
}

func (n *quadNode) walk(f func(*quadNode)) {
	f(n)
	for _, child := range n.children {
		if child != nil {
			child.walk(f)
		}
	}
}

func (n *quadNode) walkFilled(f func(*quadNode)) {
	n.walk(func(node *quadNode) {
		if node.depth == 0 && node.filled {
			f(node)
		}
	})
}
