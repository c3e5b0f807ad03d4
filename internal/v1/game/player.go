package game

import "sync"

// Status is a player's lifecycle state within a room.
type Status string

const (
	StatusNotReady Status = "not_ready"
	StatusReady    Status = "ready"
	StatusLoser    Status = "lose"
	StatusWinner   Status = "win"
	StatusStopped  Status = "stop"
)

// ColorUnset marks a player that has not been assigned a color yet.
const ColorUnset = -1

// moveQueueCap bounds the per-player move queue. Clients sending faster
// than tick cadence overwrite their oldest queued move.
const moveQueueCap = 16

// Move is one queued step: leave Prev, enter Next.
type Move struct {
	Prev Point
	Next Point
}

// PlayerState holds everything the simulation knows about one player:
// identity, readiness, spawn point, owned territory, fog of war, and the
// queued moves. Connection handling lives in the room package; this type is
// transport-agnostic.
//
// Territory, visibility and POV are mutated only under the owning room's
// lock (tick turns and Waiting-state joins both hold it). Status, color and
// cursors have their own mutex because the inbound loop touches them.
type PlayerState struct {
	ID   int
	Nick string

	mu         sync.Mutex
	status     Status
	color      int
	initPoint  *Point
	cursor     *Point
	prevCursor *Point

	territory  *Territory
	visibility *Visibility
	pov        GameMap

	moves chan Move
}

// NewPlayerState creates a player that has not joined a map yet.
func NewPlayerState(id int, nick string) *PlayerState {
	return &PlayerState{
		ID:     id,
		Nick:   nick,
		status: StatusNotReady,
		color:  ColorUnset,
		moves:  make(chan Move, moveQueueCap),
	}
}

// BindMap sizes the player's territory, visibility and POV to the map.
// Must be called before the player enters the simulation.
func (p *PlayerState) BindMap(height, width int) {
	p.territory = NewTerritory(height, width)
	p.visibility = NewVisibility(height, width)
	p.pov = NewEmptyMap(height, width)
}

// SetInitPoint assigns the spawn cell and claims it as territory.
func (p *PlayerState) SetInitPoint(point Point) {
	p.mu.Lock()
	p.initPoint = &point
	p.mu.Unlock()
	p.territory.Add(point)
}

// InitPoint returns the spawn point and whether one was assigned.
func (p *PlayerState) InitPoint() (Point, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initPoint == nil {
		return Point{}, false
	}
	return *p.initPoint, true
}

// ClearInitPoint releases the spawn assignment (Waiting-state disconnect).
func (p *PlayerState) ClearInitPoint() {
	p.mu.Lock()
	point := p.initPoint
	p.initPoint = nil
	p.mu.Unlock()
	if point != nil && p.territory != nil {
		p.territory.Remove(*point)
	}
}

func (p *PlayerState) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *PlayerState) setStatus(s Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// SetReady marks the player ready to start.
func (p *PlayerState) SetReady() { p.setStatus(StatusReady) }

// SetLoser marks the player defeated. Their territory is expected to have
// been merged away by the takeover that defeated them.
func (p *PlayerState) SetLoser() { p.setStatus(StatusLoser) }

// SetWinner marks the last standing player.
func (p *PlayerState) SetWinner() { p.setStatus(StatusWinner) }

// SetStopped flags the inbound loop to exit.
func (p *PlayerState) SetStopped() { p.setStatus(StatusStopped) }

// IsReady reports whether the player is in the ready state. Losers drop out
// of this count, which is what drives the game-done predicate.
func (p *PlayerState) IsReady() bool { return p.Status() == StatusReady }

// Color returns the assigned color index, or ColorUnset.
func (p *PlayerState) Color() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.color
}

// SetColor assigns a color index.
func (p *PlayerState) SetColor(color int) {
	p.mu.Lock()
	p.color = color
	p.mu.Unlock()
}

// Territory returns the player's owned-cell set.
func (p *PlayerState) Territory() *Territory { return p.territory }

// Visibility returns the player's fog-of-war tracker.
func (p *PlayerState) Visibility() *Visibility { return p.visibility }

// POV returns the player's filtered projection of the map.
func (p *PlayerState) POV() GameMap { return p.pov }

// SetPOV replaces the projection wholesale (used when the full map is
// revealed to losers and at game end).
func (p *PlayerState) SetPOV(m GameMap) { p.pov = m }

// Move enqueues a (prev, next) pair. A nil prev or next resets the queue
// and clears both cursors instead. On overflow the oldest entry is dropped.
func (p *PlayerState) Move(prev, next *Point) {
	if prev == nil || next == nil {
		p.ResetMoves()
		return
	}
	mv := Move{Prev: *prev, Next: *next}
	for {
		select {
		case p.moves <- mv:
			return
		default:
			select {
			case <-p.moves:
			default:
			}
		}
	}
}

// NextMove pops one queued move without blocking.
func (p *PlayerState) NextMove() (Move, bool) {
	select {
	case mv := <-p.moves:
		return mv, true
	default:
		return Move{}, false
	}
}

// ResetMoves drains the queue and clears the cursors.
func (p *PlayerState) ResetMoves() {
	for {
		select {
		case <-p.moves:
		default:
			p.mu.Lock()
			p.cursor = nil
			p.prevCursor = nil
			p.mu.Unlock()
			return
		}
	}
}

// SetCursors records the move applied this turn.
func (p *PlayerState) SetCursors(prev, cursor Point) {
	p.mu.Lock()
	p.prevCursor = &prev
	p.cursor = &cursor
	p.mu.Unlock()
}

// Cursor returns the last applied move target, if any.
func (p *PlayerState) Cursor() (Point, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cursor == nil {
		return Point{}, false
	}
	return *p.cursor, true
}

// PrevCursor returns the last applied move source, if any.
func (p *PlayerState) PrevCursor() (Point, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prevCursor == nil {
		return Point{}, false
	}
	return *p.prevCursor, true
}

// TakeoverKingdom absorbs the captured player's territory and marks them
// defeated.
func (p *PlayerState) TakeoverKingdom(captured *PlayerState) {
	p.territory.Merge(captured.territory)
	captured.SetLoser()
}

// Power sums the power of every cell the player owns on the given map.
func (p *PlayerState) Power(m GameMap) int {
	total := 0
	for _, pt := range p.territory.Points() {
		total += m[pt.Row][pt.Col].Power
	}
	return total
}
