package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisibilityCornerClipping(t *testing.T) {
	tr := NewTerritory(4, 4)
	tr.Add(Point{Row: 0, Col: 0})

	v := NewVisibility(4, 4)
	diff := v.Update(tr)

	// The corner sees only its in-bounds 2x2 neighborhood.
	want := []Point{
		{Row: 0, Col: 0}, {Row: 0, Col: 1},
		{Row: 1, Col: 0}, {Row: 1, Col: 1},
	}
	assert.ElementsMatch(t, want, diff)
	assert.ElementsMatch(t, want, v.Points())
	assert.True(t, v.Contains(Point{Row: 1, Col: 1}))
	assert.False(t, v.Contains(Point{Row: 2, Col: 2}))
}

func TestVisibilityCenterNeighborhood(t *testing.T) {
	tr := NewTerritory(5, 5)
	tr.Add(Point{Row: 2, Col: 2})

	v := NewVisibility(5, 5)
	diff := v.Update(tr)

	assert.Len(t, diff, 9)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			assert.True(t, v.Contains(Point{Row: 2 + dr, Col: 2 + dc}))
		}
	}
}

func TestVisibilityUpdateReturnsSymmetricDifference(t *testing.T) {
	tr := NewTerritory(5, 5)
	tr.Add(Point{Row: 0, Col: 0})

	v := NewVisibility(5, 5)
	v.Update(tr)

	// Same territory again: nothing entered or left.
	assert.Empty(t, v.Update(tr))

	// The territory moves across the board: every old cell leaves, every
	// new cell enters.
	tr.Remove(Point{Row: 0, Col: 0})
	tr.Add(Point{Row: 4, Col: 4})
	diff := v.Update(tr)

	assert.ElementsMatch(t, []Point{
		{Row: 0, Col: 0}, {Row: 0, Col: 1},
		{Row: 1, Col: 0}, {Row: 1, Col: 1},
		{Row: 3, Col: 3}, {Row: 3, Col: 4},
		{Row: 4, Col: 3}, {Row: 4, Col: 4},
	}, diff)
	assert.False(t, v.Contains(Point{Row: 0, Col: 0}))
	assert.True(t, v.Contains(Point{Row: 3, Col: 3}))
}

func TestVisibilityGrowthOnlyReportsNewCells(t *testing.T) {
	tr := NewTerritory(5, 5)
	tr.Add(Point{Row: 1, Col: 1})

	v := NewVisibility(5, 5)
	v.Update(tr)

	tr.Add(Point{Row: 1, Col: 2})
	diff := v.Update(tr)

	// Expanding one column to the right only lights up column 3.
	assert.ElementsMatch(t, []Point{
		{Row: 0, Col: 3}, {Row: 1, Col: 3}, {Row: 2, Col: 3},
	}, diff)
}
