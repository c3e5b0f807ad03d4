package game

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kinglands/rooms/internal/v1/metrics"
)

// ErrKingUnowned is returned when a player's spawn cell has lost its owner
// mid-game. That cannot happen under the takeover rules, so the tick aborts
// and the room is shut down rather than continuing from corrupt state.
var ErrKingUnowned = errors.New("game: king cell has no owner")

// Strategy is what the tick loop drives once per turn.
type Strategy interface {
	InitTurn(turn int)
	MakeTurn() error
	IsGameDone() bool
	FinishTurn()
	FinishGame()
}

// ClassicStrategy implements the classic ruleset: growth, one move per
// player per turn, territory settlement with kingdom takeover, cursor
// sanity, then per-player fog-of-war projection.
//
// The players func returns the room's live player set; the locker is the
// room lock, held for the whole turn so connects and disconnects never
// observe a half-applied tick.
type ClassicStrategy struct {
	gameMap GameMap
	players func() map[int]*PlayerState
	locker  sync.Locker

	mapMgr *MapManager

	onTurnDone func(turn int)
	onGameDone func()

	turn int
}

// NewClassicStrategy builds a strategy over the room's map and player set.
func NewClassicStrategy(m GameMap, players func() map[int]*PlayerState, locker sync.Locker) *ClassicStrategy {
	return &ClassicStrategy{
		gameMap: m,
		players: players,
		locker:  locker,
		mapMgr:  NewMapManager(m),
	}
}

// SetOnTurnDone installs the per-turn broadcast callback.
func (s *ClassicStrategy) SetOnTurnDone(fn func(turn int)) { s.onTurnDone = fn }

// SetOnGameDone installs the game-completion callback.
func (s *ClassicStrategy) SetOnGameDone(fn func()) { s.onGameDone = fn }

// InitTurn records the turn number driving the growth cadence.
func (s *ClassicStrategy) InitTurn(turn int) {
	s.turn = turn
	s.mapMgr.SetTurn(turn)
}

// MakeTurn runs one full simulation step under the room lock.
func (s *ClassicStrategy) MakeTurn() error {
	s.locker.Lock()
	defer s.locker.Unlock()

	byID := s.players()
	players := sortByID(byID)

	observePhase("grow", func() {
		s.mapMgr.Grow(players)
	})

	observePhase("process_moves", func() {
		for _, player := range players {
			if mv, ok := player.NextMove(); ok {
				player.SetCursors(mv.Prev, mv.Next)
				s.mapMgr.ProcessMove(player, mv)
			}
		}
	})

	var settleErr error
	observePhase("update_territory", func() {
		settleErr = s.settleTerritories(byID, players)
	})
	if settleErr != nil {
		return settleErr
	}

	s.mapMgr.CheckCursors(players)
	s.mapMgr.ClearDiff()

	observePhase("update_pov", func() {
		for _, player := range players {
			s.updatePOV(player)
		}
	})
	return nil
}

// IsGameDone reports whether exactly one player is still ready. Marking a
// player LOSER removes them from that count.
func (s *ClassicStrategy) IsGameDone() bool {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.isGameDoneLocked()
}

func (s *ClassicStrategy) isGameDoneLocked() bool {
	ready := 0
	for _, player := range s.players() {
		if player.IsReady() {
			ready++
		}
	}
	return ready == 1
}

// FinishTurn fans the turn result out to the room.
func (s *ClassicStrategy) FinishTurn() {
	if s.onTurnDone != nil {
		s.onTurnDone(s.turn)
	}
}

// FinishGame crowns the last ready player and notifies the room.
func (s *ClassicStrategy) FinishGame() {
	s.locker.Lock()
	for _, player := range s.players() {
		if player.IsReady() {
			player.SetWinner()
		}
	}
	s.locker.Unlock()

	if s.onGameDone != nil {
		s.onGameDone()
	}
}

// settleTerritories applies the turn's ownership diff to the territory
// sets, then resolves kingdom takeovers: a player whose spawn cell is held
// by someone else hands their whole territory to the captor and is marked
// LOSER.
func (s *ClassicStrategy) settleTerritories(byID map[int]*PlayerState, players []*PlayerState) error {
	adds := make(map[int][]Point)
	removes := make(map[int][]Point)
	for point, change := range s.mapMgr.Diff() {
		if change.NewOwner != 0 {
			adds[change.NewOwner] = append(adds[change.NewOwner], point)
		}
		if old, ok := byID[change.OldOwner]; ok && old.Territory().Contains(point) {
			removes[change.OldOwner] = append(removes[change.OldOwner], point)
		}
	}
	for id, points := range adds {
		if player, ok := byID[id]; ok {
			player.Territory().BatchAdd(points)
		}
	}
	for id, points := range removes {
		byID[id].Territory().BatchRemove(points)
	}
	for _, player := range players {
		player.Territory().ApplyBatchUpdates()
	}

	type takeover struct {
		captorID int
		captured *PlayerState
	}
	var takeovers []takeover
	for _, player := range players {
		if player.Status() == StatusLoser {
			continue
		}
		init, ok := player.InitPoint()
		if !ok {
			continue
		}
		owner := s.gameMap[init.Row][init.Col].Player
		if owner == 0 {
			return ErrKingUnowned
		}
		if owner != player.ID {
			takeovers = append(takeovers, takeover{captorID: owner, captured: player})
		}
	}

	for _, t := range takeovers {
		captor, ok := byID[t.captorID]
		if !ok {
			continue
		}
		for _, point := range t.captured.Territory().Points() {
			s.gameMap[point.Row][point.Col].Player = t.captorID
		}
		captor.TakeoverKingdom(t.captured)
	}
	return nil
}

// updatePOV projects the authoritative map into the player's view. Losers
// and everyone at game end see the whole board.
func (s *ClassicStrategy) updatePOV(player *PlayerState) {
	if player.Status() == StatusLoser || s.isGameDoneLocked() {
		player.SetPOV(s.gameMap.Clone())
		return
	}

	vis := player.Visibility()
	pov := player.POV()
	for _, point := range vis.Update(player.Territory()) {
		if !vis.Contains(point) {
			pov[point.Row][point.Col] = Cell{}
		}
	}
	for _, point := range vis.Points() {
		pov[point.Row][point.Col] = s.gameMap[point.Row][point.Col]
	}
}

func sortByID(byID map[int]*PlayerState) []*PlayerState {
	out := make([]*PlayerState, 0, len(byID))
	for _, player := range byID {
		out = append(out, player)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func observePhase(phase string, fn func()) {
	start := time.Now()
	fn()
	metrics.TurnPhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}
