package flock

import (
	"math"
	"slices"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// cellMargin widens the cells slightly so that rounding in the cell lookup never
// hides a neighbour lying just under one cell size away.
const cellMargin = 1.0001

type cellKey struct {
	x, y, z int
}

// spatialGrid buckets agents in cubic cells of one view distance, so that the
// neighbours of an agent are found in the 27 cells around it.
type spatialGrid struct {
	cellSize   float64
	cells      map[cellKey][]int
	keys       []cellKey
	candidates []int
}

func newSpatialGrid() *spatialGrid {
	return &spatialGrid{cells: make(map[cellKey][]int)}
}

// neighbourhood is the largest centre distance at which an agent still sees another.
func neighbourhood(p *Params) float64 {
	return (p.ViewRange + 2*p.AgentRadius) * cellMargin
}

// rebuild buckets the agents of s. Cells left empty since the previous rebuild are
// dropped, the others keep their capacity.
func (g *spatialGrid) rebuild(s agentState, cellSize float64) {
	for k, v := range g.cells {
		if len(v) == 0 {
			delete(g.cells, k)
			continue
		}
		g.cells[k] = v[:0]
	}
	g.cellSize = cellSize
	n := s.Len()
	g.keys = slices.Grow(g.keys[:0], n)[:n]
	for i := 0; i < n; i++ {
		k := g.cellOf(s.Position(i))
		g.keys[i] = k
		g.cells[k] = append(g.cells[k], i)
	}
}

func (g *spatialGrid) cellOf(p geometry.Vector3D) cellKey {
	return cellKey{
		x: int(math.Floor(p.X / g.cellSize)),
		y: int(math.Floor(p.Y / g.cellSize)),
		z: int(math.Floor(p.Z / g.cellSize)),
	}
}

// near returns, in increasing order, agent i and every agent in the cells around it.
// The slice is reused by the next call.
func (g *spatialGrid) near(i int) []int {
	c := g.keys[i]
	g.candidates = g.candidates[:0]
	for x := c.x - 1; x <= c.x+1; x++ {
		for y := c.y - 1; y <= c.y+1; y++ {
			for z := c.z - 1; z <= c.z+1; z++ {
				g.candidates = append(g.candidates, g.cells[cellKey{x, y, z}]...)
			}
		}
	}
	slices.Sort(g.candidates)
	return g.candidates
}

// subsetState restricts an agentState to the agents listed in idx.
type subsetState struct {
	agentState
	idx []int
}

func (s subsetState) Len() int                         { return len(s.idx) }
func (s subsetState) Position(k int) geometry.Vector3D { return s.agentState.Position(s.idx[k]) }
func (s subsetState) Velocity(k int) geometry.Vector3D { return s.agentState.Velocity(s.idx[k]) }

// steerNear is steer restricted to the grid neighbourhood of agent i. The candidates
// are visited in the same order as the full scan and the skipped agents are out of
// view, so the result is identical.
func steerNear(i int, s agentState, g *spatialGrid, p *Params) geometry.Vector3D {
	idx := g.near(i)
	local, _ := slices.BinarySearch(idx, i)
	return steer(local, subsetState{agentState: s, idx: idx}, p)
}
