package floorplan

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuadTreeCreation(t *testing.T) {
	t.Run("unit is extent divided by two to the depth", func(t *testing.T) {
		q := NewQuadTree(Vector2{-80, -80}, 160, 8)
		require.Equal(t, 0.625, q.Unit())
		require.Equal(t, Vector2{-80, -80}, q.Origin())
		require.Equal(t, float64(160), q.Extent())
		require.Equal(t, 8, q.Depth())
	})

	t.Run("invalid parameters are clamped", func(t *testing.T) {
		q := NewQuadTree(Vector2{}, -3, -2)
		require.Equal(t, float64(1), q.Unit())
		require.Equal(t, 0, q.Depth())
	})

	t.Run("new tree is empty", func(t *testing.T) {
		q := NewQuadTree(Vector2{}, 4, 2)
		require.Empty(t, q.OccupiedCells())
		require.Zero(t, q.OccupiedCount())

		info := q.DebugInfo()
		require.Equal(t, 1, info.NodeCount)
		require.Zero(t, info.LeafCount)
	})
}

func TestQuadTreeMarkVisited(t *testing.T) {
	t.Run("cell becomes occupied", func(t *testing.T) {
		q := NewQuadTree(Vector2{}, 4, 2)

		require.True(t, q.MarkVisited(Vector2{1.5, 2.5}))
		require.True(t, q.IsOccupied(Vector2{1.5, 2.5}))
		require.True(t, q.IsOccupied(Vector2{1, 2}))
		require.True(t, q.IsOccupied(Vector2{1.99, 2.99}))
		require.False(t, q.IsOccupied(Vector2{2, 2}))
		require.False(t, q.IsOccupied(Vector2{1, 3}))
	})

	t.Run("marking is idempotent", func(t *testing.T) {
		q := NewQuadTree(Vector2{}, 4, 2)

		require.True(t, q.MarkVisited(Vector2{0.2, 0.2}))
		require.False(t, q.MarkVisited(Vector2{0.2, 0.2}))
		require.False(t, q.MarkVisited(Vector2{0.7, 0.9}))
		require.True(t, q.IsOccupied(Vector2{0.2, 0.2}))
		require.Equal(t, 1, q.OccupiedCount())
	})

	t.Run("out of range points are ignored", func(t *testing.T) {
		q := NewQuadTree(Vector2{}, 4, 2)
		q.MarkVisited(Vector2{1, 1})

		for _, p := range []Vector2{
			{-0.1, 1},
			{1, -0.1},
			{4, 1},
			{1, 4},
			{100, 100},
			{math.NaN(), 1},
			{math.Inf(1), 1},
		} {
			require.False(t, q.MarkVisited(p))
			require.False(t, q.IsOccupied(p))
		}

		require.Equal(t, []Vector2{{1, 1}}, q.OccupiedCells())
	})

	t.Run("reads do not create nodes", func(t *testing.T) {
		q := NewQuadTree(Vector2{}, 4, 2)

		q.IsOccupied(Vector2{3, 3})
		q.Rasterize(Vector2{3, 3})
		require.Equal(t, 1, q.DebugInfo().NodeCount)

		q.MarkVisited(Vector2{3, 3})
		info := q.DebugInfo()
		require.Equal(t, 3, info.NodeCount)
		require.Equal(t, 1, info.LeafCount)
		require.Equal(t, 1, info.OccupiedCount)
	})
}

func TestQuadTreeQuadrants(t *testing.T) {
	q := NewQuadTree(Vector2{}, 2, 1)
	root := q.root

	require.Equal(t, 0, root.childIndex(Vector2{0.5, 0.5}))
	require.Equal(t, 1, root.childIndex(Vector2{0.5, 1}))
	require.Equal(t, 2, root.childIndex(Vector2{1, 0.5}))
	require.Equal(t, 3, root.childIndex(Vector2{1, 1}))

	require.Equal(t, Vector2{0, 0}, root.childOrigin(0))
	require.Equal(t, Vector2{0, 1}, root.childOrigin(1))
	require.Equal(t, Vector2{1, 0}, root.childOrigin(2))
	require.Equal(t, Vector2{1, 1}, root.childOrigin(3))
}

func TestQuadTreeMarkVisitedAndNotify(t *testing.T) {
	t.Run("listener is called only on transition", func(t *testing.T) {
		q := NewQuadTree(Vector2{}, 4, 2)

		var calls int
		q.SetListener(func() {
			calls++
		})

		q.MarkVisitedAndNotify(Vector2{1, 1})
		q.MarkVisitedAndNotify(Vector2{1, 1})
		q.MarkVisitedAndNotify(Vector2{1.5, 1.5})
		require.Equal(t, 1, calls)

		q.MarkVisitedAndNotify(Vector2{3, 3})
		require.Equal(t, 2, calls)
	})

	t.Run("out of range point does not notify", func(t *testing.T) {
		q := NewQuadTree(Vector2{}, 4, 2)

		var calls int
		q.SetListener(func() {
			calls++
		})

		q.MarkVisitedAndNotify(Vector2{-1, -1})
		require.Zero(t, calls)
	})

	t.Run("later listener replaces the earlier one", func(t *testing.T) {
		q := NewQuadTree(Vector2{}, 4, 2)

		var first, second int
		q.SetListener(func() { first++ })
		q.SetListener(func() { second++ })

		q.MarkVisitedAndNotify(Vector2{1, 1})
		require.Zero(t, first)
		require.Equal(t, 1, second)
	})

	t.Run("listener sees the write", func(t *testing.T) {
		q := NewQuadTree(Vector2{}, 4, 2)

		var occupied bool
		q.SetListener(func() {
			occupied = q.IsOccupied(Vector2{2, 2})
		})

		q.MarkVisitedAndNotify(Vector2{2, 2})
		require.True(t, occupied)
	})

	t.Run("without listener", func(t *testing.T) {
		q := NewQuadTree(Vector2{}, 4, 2)
		q.MarkVisitedAndNotify(Vector2{2, 2})
		require.True(t, q.IsOccupied(Vector2{2, 2}))
	})
}

func TestQuadTreeRasterize(t *testing.T) {
	t.Run("point snaps to its occupied cell", func(t *testing.T) {
		q := NewQuadTree(Vector2{-8, -8}, 16, 4)
		q.MarkVisited(Vector2{2.3, -4.7})

		for _, p := range []Vector2{
			{2, -5},
			{2.3, -4.7},
			{2.999, -4.001},
		} {
			require.Equal(t, Vector2{2, -5}, q.Rasterize(p))
		}
	})

	t.Run("rasterized coordinate is aligned on the unit", func(t *testing.T) {
		q := NewQuadTree(Vector2{-80, -80}, 160, 8)
		unit := q.Unit()

		points := []Vector2{{0.1, 0.1}, {-79.9, 12.34}, {45.6, -3.21}, {79.9, 79.9}}
		for _, p := range points {
			q.MarkVisited(p)

			r := q.Rasterize(p)
			require.True(t, q.IsOccupied(r))

			cellsX := (r.X - q.Origin().X) / unit
			cellsY := (r.Y - q.Origin().Y) / unit
			require.Equal(t, math.Round(cellsX), cellsX)
			require.Equal(t, math.Round(cellsY), cellsY)
			require.LessOrEqual(t, r.X, p.X)
			require.LessOrEqual(t, r.Y, p.Y)
			require.Less(t, p.X-r.X, unit)
			require.Less(t, p.Y-r.Y, unit)
		}
	})

	t.Run("unoccupied point is returned unchanged", func(t *testing.T) {
		q := NewQuadTree(Vector2{}, 4, 2)
		q.MarkVisited(Vector2{0, 0})

		require.Equal(t, Vector2{0.5, 1.5}, q.Rasterize(Vector2{0.5, 1.5}))
		require.Equal(t, Vector2{3.5, 3.5}, q.Rasterize(Vector2{3.5, 3.5}))
		require.Equal(t, Vector2{9, 9}, q.Rasterize(Vector2{9, 9}))
	})

	t.Run("cleared cell is returned unchanged", func(t *testing.T) {
		q := NewQuadTree(Vector2{}, 4, 2)
		q.MarkVisited(Vector2{1.5, 1.5})
		q.Clear()

		require.Equal(t, Vector2{1.5, 1.5}, q.Rasterize(Vector2{1.5, 1.5}))
	})
}

func TestQuadTreeOccupiedCells(t *testing.T) {
	q := NewQuadTree(Vector2{}, 4, 2)
	q.MarkVisited(Vector2{3.5, 0.5})
	q.MarkVisited(Vector2{0.5, 0.5})
	q.MarkVisited(Vector2{1.5, 3.5})

	require.ElementsMatch(t, []Vector2{{3, 0}, {0, 0}, {1, 3}}, q.OccupiedCells())
	require.Equal(t, 3, q.OccupiedCount())
}

func TestQuadTreeOccupiedPolygon(t *testing.T) {
	q := NewQuadTree(Vector2{}, 4, 2)
	q.MarkVisited(Vector2{1, 2})

	size := 1 - PlaneSpacer
	require.Equal(t, []Vector2{
		{1, 2},
		{1 + size, 2},
		{1, 2 + size},
		{1, 2 + size},
		{1 + size, 2},
		{1 + size, 2 + size},
	}, q.OccupiedPolygon())

	q.MarkVisited(Vector2{2, 2})
	require.Len(t, q.OccupiedPolygon(), 12)
}

func TestQuadTreeClear(t *testing.T) {
	q := NewQuadTree(Vector2{}, 4, 2)
	q.MarkVisited(Vector2{1, 1})
	q.MarkVisited(Vector2{3, 3})
	nodeCount := q.DebugInfo().NodeCount

	q.Clear()
	require.Empty(t, q.OccupiedCells())
	require.False(t, q.IsOccupied(Vector2{1, 1}))
	require.Equal(t, nodeCount, q.DebugInfo().NodeCount)

	require.True(t, q.MarkVisited(Vector2{1, 1}))
	require.Equal(t, nodeCount, q.DebugInfo().NodeCount)
}

func TestQuadTreeConcurrentAccess(t *testing.T) {
	q := NewQuadTree(Vector2{}, 64, 6)

	var notifications int
	var notificationMutex sync.Mutex
	q.SetListener(func() {
		notificationMutex.Lock()
		defer notificationMutex.Unlock()
		notifications++
	})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			for i := 0; i < 64; i++ {
				q.MarkVisitedAndNotify(Vector2{float64(i), float64(i)})
			}
		}()

		go func() {
			defer wg.Done()
			for i := 0; i < 64; i++ {
				q.IsOccupied(Vector2{float64(i), float64(i)})
				q.OccupiedCells()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 64, q.OccupiedCount())
	require.Equal(t, 64, notifications)
}
