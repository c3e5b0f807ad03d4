package game

import "math/bits"

// Visibility tracks which cells a player can currently see: the union of
// 3x3 inclusive neighborhoods around every owned cell, clipped to the map.
// Update returns the symmetric difference against the previous visibility,
// which is exactly the set of POV cells that need re-projection.
type Visibility struct {
	width, height int
	visible       []uint64
}

// NewVisibility creates an all-dark visibility for a height x width map.
func NewVisibility(height, width int) *Visibility {
	return &Visibility{
		width:   width,
		height:  height,
		visible: make([]uint64, (height*width+63)/64),
	}
}

// Update recomputes visibility from the territory and returns the points
// that entered or left the visible set since the previous update.
func (v *Visibility) Update(territory *Territory) []Point {
	next := make([]uint64, len(v.visible))
	for _, p := range territory.Points() {
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				r, c := p.Row+dr, p.Col+dc
				if r < 0 || r >= v.height || c < 0 || c >= v.width {
					continue
				}
				i := r*v.width + c
				next[i/64] |= 1 << (uint(i) % 64)
			}
		}
	}

	var diff []Point
	for w := range next {
		changed := next[w] ^ v.visible[w]
		for changed != 0 {
			bit := bits.TrailingZeros64(changed)
			i := w*64 + bit
			diff = append(diff, Point{Row: i / v.width, Col: i % v.width})
			changed &= changed - 1
		}
	}
	v.visible = next
	return diff
}

// Contains reports whether p is currently visible.
func (v *Visibility) Contains(p Point) bool {
	i := p.Row*v.width + p.Col
	return v.visible[i/64]&(1<<(uint(i)%64)) != 0
}

// Points lists the currently visible cells in row-major order.
func (v *Visibility) Points() []Point {
	var out []Point
	for w, word := range v.visible {
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			i := w*64 + bit
			out = append(out, Point{Row: i / v.width, Col: i % v.width})
			word &= word - 1
		}
	}
	return out
}
