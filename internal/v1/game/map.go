// Package game implements the authoritative simulation for a territory
// capture match: the grid, per-player territories and fog of war, the
// movement and combat rules, and the fixed-cadence tick loop that drives
// them.
package game

import "fmt"

// Map size limits. Maps are validated on ingest, never at tick time.
const (
	MinMapSide = 4
	MaxMapSide = 32
)

// Point addresses a single cell on the grid. Row-major, zero-based.
type Point struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// CellType enumerates what a cell is on the authoritative map. CellHide is
// a rendering-only sentinel used in player views and is never stored on the
// authoritative map.
type CellType string

const (
	CellSpawn   CellType = "spawn"
	CellHide    CellType = "hide"
	CellKing    CellType = "king"
	CellBlocker CellType = "block"
	CellField   CellType = "field"
	CellCastle  CellType = "castle"
)

// Cell is one grid square. A zero Cell in a player view means "unknown".
// Player ids are positive, so the zero value doubles as "unowned".
type Cell struct {
	Type   CellType `json:"type,omitempty"`
	Player int      `json:"player,omitempty"`
	Power  int      `json:"power,omitempty"`
}

// GameMap is a rectangular grid of cells, indexed [row][col].
type GameMap [][]Cell

// NewEmptyMap allocates an all-unknown grid of the given dimensions.
// Used for player POVs, which start fully fogged.
func NewEmptyMap(height, width int) GameMap {
	m := make(GameMap, height)
	for r := range m {
		m[r] = make([]Cell, width)
	}
	return m
}

// Dimensions returns (height, width). A nil map is (0, 0).
func (m GameMap) Dimensions() (int, int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m), len(m[0])
}

// Contains reports whether p is inside the grid.
func (m GameMap) Contains(p Point) bool {
	h, w := m.Dimensions()
	return p.Row >= 0 && p.Row < h && p.Col >= 0 && p.Col < w
}

// Clone returns a deep copy of the map.
func (m GameMap) Clone() GameMap {
	out := make(GameMap, len(m))
	for r, row := range m {
		out[r] = make([]Cell, len(row))
		copy(out[r], row)
	}
	return out
}

// MapMeta carries the precomputed points of interest for a map. Version is
// fixed at 1 until the map format changes.
type MapMeta struct {
	Version          int                  `json:"version"`
	PointsOfInterest map[CellType][]Point `json:"points_of_interest"`
}

// MapAndMeta is the immutable seed a room is materialized from.
type MapAndMeta struct {
	Map  GameMap `json:"map"`
	Meta MapMeta `json:"meta"`
}

// Spawns returns the spawn points declared in the metadata.
func (mm MapAndMeta) Spawns() []Point {
	return mm.Meta.PointsOfInterest[CellSpawn]
}

// Validate checks the structural invariants of a map seed: rectangular grid
// within the size limits, at least two spawn points, and all points of
// interest inside the grid.
func (mm MapAndMeta) Validate() error {
	h, w := mm.Map.Dimensions()
	if h < MinMapSide || h > MaxMapSide || w < MinMapSide || w > MaxMapSide {
		return fmt.Errorf("map dimensions %dx%d outside [%d, %d]", h, w, MinMapSide, MaxMapSide)
	}
	for r, row := range mm.Map {
		if len(row) != w {
			return fmt.Errorf("map is not rectangular: row %d has %d cells, want %d", r, len(row), w)
		}
	}
	if mm.Meta.Version != 1 {
		return fmt.Errorf("unsupported map meta version %d", mm.Meta.Version)
	}
	if len(mm.Spawns()) < 2 {
		return fmt.Errorf("map must declare at least 2 spawn points, got %d", len(mm.Spawns()))
	}
	for ct, points := range mm.Meta.PointsOfInterest {
		for _, p := range points {
			if !mm.Map.Contains(p) {
				return fmt.Errorf("point of interest %v (%s) outside %dx%d map", p, ct, h, w)
			}
		}
	}
	return nil
}
