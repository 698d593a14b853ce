package grid

import (
	"fmt"
	"strings"
)

// terrainGlyphs is the one-rune-per-tile text form used by the map store and the API.
var terrainGlyphs = map[TerrainType]rune{
	Grass: '.',
	Road:  '=',
	Trees: 'T',
	Rock:  'R',
	Water: 'W',
	Dirt:  'D',
	Sand:  'S',
}

var glyphTerrains = func() map[rune]TerrainType {
	m := make(map[rune]TerrainType, len(terrainGlyphs))
	for t, r := range terrainGlyphs {
		m[r] = t
	}
	return m
}()

// Parse builds a grid from text rows. rows[0] is y=0; every row must be len(rows) wide.
func Parse(rows []string, costs CostTable) (*Grid, error) {
	g, err := New(len(rows), costs)
	if err != nil {
		return nil, err
	}
	for y, row := range rows {
		runes := []rune(row)
		if len(runes) != g.size {
			return nil, fmt.Errorf("grid: row %d has %d tiles, want %d", y, len(runes), g.size)
		}
		for x, r := range runes {
			t, ok := glyphTerrains[r]
			if !ok {
				return nil, fmt.Errorf("grid: unknown glyph %q at (%d,%d)", r, x, y)
			}
			g.tiles[x+y*g.size] = t
		}
	}
	return g, nil
}

// Rows renders the grid in the text form accepted by Parse.
func (g *Grid) Rows() []string {
	rows := make([]string, g.size)
	var sb strings.Builder
	for y := 0; y < g.size; y++ {
		sb.Reset()
		for x := 0; x < g.size; x++ {
			sb.WriteRune(terrainGlyphs[g.tiles[x+y*g.size]])
		}
		rows[y] = sb.String()
	}
	return rows
}

// ParseCosts converts a name→cost map (as stored or posted) into a CostTable.
func ParseCosts(named map[string]float64) (CostTable, error) {
	ct := make(CostTable, len(named))
	for name, c := range named {
		t, err := ParseTerrain(name)
		if err != nil {
			return nil, err
		}
		ct[t] = c
	}
	if err := ct.Validate(); err != nil {
		return nil, err
	}
	return ct, nil
}

// Named is the inverse of ParseCosts. Impassable entries are left out; absence means the same thing.
func (ct CostTable) Named() map[string]float64 {
	out := make(map[string]float64, len(ct))
	for t, c := range ct {
		if _, ok := ct.Cost(t); ok {
			out[t.String()] = c
		}
	}
	return out
}
