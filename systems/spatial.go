// Package systems provides the per-step particle systems: the spatial index,
// the force kernel, energy/reproduction and gene mutation.
package systems

import "math"

// SpatialGrid provides O(1) neighbor lookups over particle slots using a
// cell-based grid. Cells are singly linked lists threaded through a per-slot
// next array, so Insert and QueryNeighbors never allocate.
type SpatialGrid struct {
	width  float32
	height float32

	cellSize float32 // requested size, kept for NeedsRebuild
	cellW    float32 // actual cell extent, >= cellSize
	cellH    float32
	cols     int
	rows     int
	wrap     bool

	head []int32 // first slot per cell, -1 when empty
	next []int32 // next slot in the same cell, -1 at the tail

	valid bool
}

// NewSpatialGrid creates an unbuilt grid covering the given world size.
// The first Rebuild sizes its buffers.
func NewSpatialGrid(width, height float32) *SpatialGrid {
	return &SpatialGrid{width: width, height: height}
}

// NeedsRebuild reports whether the grid must be rebuilt for the given cell
// size, slot capacity and boundary mode.
func (g *SpatialGrid) NeedsRebuild(cellSize float32, capacity int, wrap bool) bool {
	return !g.valid || g.cellSize != cellSize || len(g.next) < capacity || g.wrap != wrap
}

// Rebuild resizes the grid for cellSize. Cells are at least cellSize wide so
// a 3×3 neighborhood covers any query radius up to cellSize.
func (g *SpatialGrid) Rebuild(cellSize float32, capacity int, wrap bool) {
	if !(cellSize > 0) {
		cellSize = 1
	}
	cols := int(g.width / cellSize)
	rows := int(g.height / cellSize)
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	g.cellSize = cellSize
	g.cols = cols
	g.rows = rows
	g.cellW = g.width / float32(cols)
	g.cellH = g.height / float32(rows)
	g.wrap = wrap

	if cap(g.head) >= cols*rows {
		g.head = g.head[:cols*rows]
	} else {
		g.head = make([]int32, cols*rows)
	}
	if len(g.next) < capacity {
		g.next = make([]int32, capacity)
	}
	g.valid = true
	g.Clear()
}

// Invalidate forces a rebuild on the next NeedsRebuild check. Call it after
// the particle set has been replaced wholesale.
func (g *SpatialGrid) Invalidate() {
	g.valid = false
}

// Clear empties every cell.
func (g *SpatialGrid) Clear() {
	for i := range g.head {
		g.head[i] = -1
	}
}

// Dims returns the grid dimensions in cells.
func (g *SpatialGrid) Dims() (cols, rows int) { return g.cols, g.rows }

// Insert links slot into the cell containing (x, y).
func (g *SpatialGrid) Insert(slot int, x, y float32) {
	if slot < 0 || slot >= len(g.next) || len(g.head) == 0 {
		return
	}
	idx := g.cellIndex(x, y)
	g.next[slot] = g.head[idx]
	g.head[idx] = int32(slot)
}

// QueryNeighbors calls fn for every slot in the 3×3 cell neighborhood of
// (x, y), including the slot at (x, y) itself. Callers filter by distance.
// Each cell is visited once even when the grid is narrower than three cells.
func (g *SpatialGrid) QueryNeighbors(x, y float32, fn func(slot int)) {
	if len(g.head) == 0 {
		return
	}
	cc, cr := g.cellCoords(x, y)

	var colBuf, rowBuf [3]int
	cols := g.neighborhood(colBuf[:0], cc, g.cols)
	rows := g.neighborhood(rowBuf[:0], cr, g.rows)

	for _, r := range rows {
		base := r * g.cols
		for _, c := range cols {
			for s := g.head[base+c]; s >= 0; s = g.next[s] {
				fn(int(s))
			}
		}
	}
}

// neighborhood appends the distinct cell indices around center along one
// axis of length n.
func (g *SpatialGrid) neighborhood(dst []int, center, n int) []int {
	if n < 3 {
		for i := 0; i < n; i++ {
			dst = append(dst, i)
		}
		return dst
	}
	for d := -1; d <= 1; d++ {
		i := center + d
		if i < 0 || i >= n {
			if !g.wrap {
				continue
			}
			i = (i + n) % n
		}
		dst = append(dst, i)
	}
	return dst
}

func (g *SpatialGrid) cellCoords(x, y float32) (int, int) {
	col := int(math.Floor(float64(x / g.cellW)))
	row := int(math.Floor(float64(y / g.cellH)))
	if g.wrap {
		col = ((col % g.cols) + g.cols) % g.cols
		row = ((row % g.rows) + g.rows) % g.rows
		return col, row
	}
	// Clamp to valid range
	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}
	return col, row
}

// cellIndex returns the flat index for a world position.
func (g *SpatialGrid) cellIndex(x, y float32) int {
	col, row := g.cellCoords(x, y)
	return row*g.cols + col
}

// ToroidalDelta returns the shortest path delta from (x1,y1) to (x2,y2).
func ToroidalDelta(x1, y1, x2, y2, w, h float32) (dx, dy float32) {
	dx = x2 - x1
	dy = y2 - y1

	if dx > w/2 {
		dx -= w
	} else if dx < -w/2 {
		dx += w
	}
	if dy > h/2 {
		dy -= h
	} else if dy < -h/2 {
		dy += h
	}

	return dx, dy
}
