package game

import "math/bits"

// Territory is the set of cells a player currently owns, backed by a bitmap
// sized to the map so merge and diff are O(W*H/64). Batched add/remove plus
// ApplyBatchUpdates exist so the per-tick settlement can stage changes from
// the map diff and commit them in one pass.
type Territory struct {
	width, height int
	words         []uint64
	size          int

	pendingAdd    []Point
	pendingRemove []Point
}

// NewTerritory creates an empty territory for a height x width map.
func NewTerritory(height, width int) *Territory {
	return &Territory{
		width:  width,
		height: height,
		words:  make([]uint64, (height*width+63)/64),
	}
}

func (t *Territory) index(p Point) (word int, mask uint64) {
	i := p.Row*t.width + p.Col
	return i / 64, 1 << (uint(i) % 64)
}

// Add inserts a point. Adding an already-owned point is a no-op.
func (t *Territory) Add(p Point) {
	word, mask := t.index(p)
	if t.words[word]&mask == 0 {
		t.words[word] |= mask
		t.size++
	}
}

// Remove deletes a point. Removing an unowned point is a no-op.
func (t *Territory) Remove(p Point) {
	word, mask := t.index(p)
	if t.words[word]&mask != 0 {
		t.words[word] &^= mask
		t.size--
	}
}

// Contains reports whether the player owns p.
func (t *Territory) Contains(p Point) bool {
	word, mask := t.index(p)
	return t.words[word]&mask != 0
}

// Count returns the number of owned cells.
func (t *Territory) Count() int {
	return t.size
}

// Points lists the owned cells in row-major order.
func (t *Territory) Points() []Point {
	out := make([]Point, 0, t.size)
	for w, word := range t.words {
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			i := w*64 + bit
			out = append(out, Point{Row: i / t.width, Col: i % t.width})
			word &= word - 1
		}
	}
	return out
}

// BatchAdd stages points for the next ApplyBatchUpdates.
func (t *Territory) BatchAdd(points []Point) {
	t.pendingAdd = append(t.pendingAdd, points...)
}

// BatchRemove stages points for the next ApplyBatchUpdates.
func (t *Territory) BatchRemove(points []Point) {
	t.pendingRemove = append(t.pendingRemove, points...)
}

// ApplyBatchUpdates commits staged additions and removals.
func (t *Territory) ApplyBatchUpdates() {
	for _, p := range t.pendingAdd {
		t.Add(p)
	}
	for _, p := range t.pendingRemove {
		t.Remove(p)
	}
	t.pendingAdd = t.pendingAdd[:0]
	t.pendingRemove = t.pendingRemove[:0]
}

// Merge unions other into t and clears other. Used on kingdom takeover.
func (t *Territory) Merge(other *Territory) {
	for w := range t.words {
		t.words[w] |= other.words[w]
	}
	t.recount()
	other.Clear()
}

// Clear removes every point, staged updates included.
func (t *Territory) Clear() {
	for w := range t.words {
		t.words[w] = 0
	}
	t.size = 0
	t.pendingAdd = t.pendingAdd[:0]
	t.pendingRemove = t.pendingRemove[:0]
}

func (t *Territory) recount() {
	n := 0
	for _, word := range t.words {
		n += bits.OnesCount64(word)
	}
	t.size = n
}
