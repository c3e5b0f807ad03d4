package game

// OwnerChange records a cell changing hands during a turn. OldOwner is zero
// when the cell was neutral.
type OwnerChange struct {
	OldOwner int
	NewOwner int
}

// MapManager applies the per-tick growth and movement rules to the
// authoritative map and accumulates the ownership diff the territory
// settlement consumes.
type MapManager struct {
	gameMap GameMap
	turn    int
	diff    map[Point]OwnerChange
}

// NewMapManager wraps the authoritative map. The manager does not copy it;
// the map is owned by the room and mutated in place.
func NewMapManager(m GameMap) *MapManager {
	return &MapManager{
		gameMap: m,
		diff:    make(map[Point]OwnerChange),
	}
}

// SetTurn sets the turn number the growth cadence is computed against.
func (mm *MapManager) SetTurn(turn int) { mm.turn = turn }

// Grow applies power growth to every owned cell. Kings and owned castles
// grow every turn; all other owned cells grow only on turns divisible by 15.
func (mm *MapManager) Grow(players []*PlayerState) {
	for _, player := range players {
		for _, p := range player.Territory().Points() {
			cell := &mm.gameMap[p.Row][p.Col]
			switch cell.Type {
			case CellKing:
				cell.Power++
			case CellCastle:
				if cell.Player != 0 {
					cell.Power++
				}
			default:
				if mm.turn%15 == 0 {
					cell.Power++
				}
			}
		}
	}
}

// ProcessMove resolves one queued move for the player. Invalid moves (out
// of bounds, into a blocker, from a cell the player no longer holds, or
// with no army to spare) reset the player's queue and leave the map
// untouched. One army unit always stays behind on the source cell.
func (mm *MapManager) ProcessMove(player *PlayerState, mv Move) {
	if !mm.gameMap.Contains(mv.Prev) || !mm.gameMap.Contains(mv.Next) {
		player.ResetMoves()
		return
	}

	target := &mm.gameMap[mv.Next.Row][mv.Next.Col]
	if target.Type == CellBlocker {
		player.ResetMoves()
		return
	}

	current := &mm.gameMap[mv.Prev.Row][mv.Prev.Col]
	srcPower := current.Power - 1
	if current.Player == 0 || current.Player != player.ID || srcPower < 1 {
		player.ResetMoves()
		return
	}

	if current.Player == target.Player {
		// Stacking onto own cell.
		current.Power = 1
		target.Power += srcPower
		return
	}

	diff := srcPower - target.Power
	if diff < 0 {
		// Attack failed; the defender keeps the cell with the remainder.
		current.Power = 1
		target.Power = -diff
		player.ResetMoves()
		return
	}

	// Captured. diff == 0 still takes the cell, with zero power on it.
	oldOwner := target.Player
	target.Player = current.Player
	target.Power = diff
	current.Power = 1
	mm.diff[mv.Next] = OwnerChange{OldOwner: oldOwner, NewOwner: current.Player}
}

// Diff returns the ownership changes accumulated since the last ClearDiff.
func (mm *MapManager) Diff() map[Point]OwnerChange { return mm.diff }

// ClearDiff resets the accumulated ownership changes.
func (mm *MapManager) ClearDiff() {
	mm.diff = make(map[Point]OwnerChange)
}

// CheckCursors resets the moves of any player whose cursor no longer points
// into their own territory; the rest of their queued path is unreachable.
func (mm *MapManager) CheckCursors(players []*PlayerState) {
	for _, player := range players {
		if cursor, ok := player.Cursor(); ok && !player.Territory().Contains(cursor) {
			player.ResetMoves()
		}
	}
}
