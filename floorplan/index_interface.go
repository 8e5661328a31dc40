package floorplan

type DebugInfo struct {
	Origin        Vector2 `json:"origin"`
	Extent        float64 `json:"extent"`
	MaxDepth      int     `json:"max_depth"`
	Unit          float64 `json:"unit"`
	NodeCount     int     `json:"node_count"`
	LeafCount     int     `json:"leaf_count"`
	OccupiedCount int     `json:"occupied_count"`
}

// Index is the read side of an occupancy map. It is what a path search needs
// to walk visited ground.
type Index interface {
	// Reports whether the unit cell containing p has been visited. Points
	// outside the mapped region are never occupied.
	IsOccupied(p Vector2) bool

	// Returns the canonical coordinate of the occupied cell containing p, or p
	// itself when that cell is not occupied.
	Rasterize(p Vector2) Vector2

	// The side length of a unit cell.
	Unit() float64
}

// Listener is called when a previously unvisited cell becomes occupied.
type Listener func()
