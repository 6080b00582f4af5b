package flock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/accel"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

func gridState(pts []geometry.Vector3D) packedState {
	return packedState{
		positions:  accel.PackVectors(pts, nil),
		velocities: make([]float32, len(pts)*3),
		n:          len(pts),
	}
}

func TestSpatialGrid_NearCoversNeighbourhood(t *testing.T) {
	pts := geometry.RandomPointsInSphere(testRand(7), 300, geometry.Zero, 12)
	state := gridState(pts)
	cell := 2.5
	g := newSpatialGrid()
	g.rebuild(state, cell)

	for i := range pts {
		near := g.near(i)
		assert.IsIncreasing(t, near)
		assert.Contains(t, near, i)
		for j := range pts {
			if state.Position(i).DistanceTo(state.Position(j)) < cell {
				assert.Contains(t, near, j, "agent %d misses neighbour %d", i, j)
			}
		}
	}
}

func TestSpatialGrid_RebuildDropsEmptyCells(t *testing.T) {
	g := newSpatialGrid()
	g.rebuild(gridState([]geometry.Vector3D{{X: 0.5}, {X: 10.5}}), 1)
	assert.Len(t, g.cells, 2)

	g.rebuild(gridState([]geometry.Vector3D{{X: 0.5}, {X: 0.7}}), 1)
	assert.Len(t, g.cells, 2, "the emptied cell is kept until the next rebuild")
	assert.Equal(t, []int{0, 1}, g.near(0))

	g.rebuild(gridState([]geometry.Vector3D{{X: 0.5}, {X: 0.7}}), 1)
	assert.Len(t, g.cells, 1)
}

func TestSpatialGrid_NegativeCoordinates(t *testing.T) {
	g := newSpatialGrid()
	g.rebuild(gridState([]geometry.Vector3D{{X: -0.1}, {X: 0.1}, {X: -2.5}}), 1)
	assert.Equal(t, cellKey{-1, 0, 0}, g.keys[0])
	assert.Equal(t, cellKey{0, 0, 0}, g.keys[1])
	assert.Equal(t, cellKey{-3, 0, 0}, g.keys[2])
	assert.Equal(t, []int{0, 1}, g.near(1))
}

func TestCPUBackend_NeighbourGridMatchesFullScan(t *testing.T) {
	p := paramsWith(400, func(c *Config) {
		c.FlockRadius = 30
		c.AgentViewRange = 3
	})
	full := NewCPUBackend()
	grid := NewCPUBackend(WithNeighbourGrid())
	require.NoError(t, full.Initialize(p, testRand(42)))
	require.NoError(t, grid.Initialize(p, testRand(42)))
	defer full.Dispose()
	defer grid.Dispose()

	for tick := 0; tick < 10; tick++ {
		require.NoError(t, full.Update(p))
		require.NoError(t, grid.Update(p))
	}
	assert.Equal(t, readPositions(t, full), readPositions(t, grid))
	assert.Equal(t, full.Velocities(), grid.Velocities())
}

func TestCPUBackend_NeighbourGridWithoutViewRange(t *testing.T) {
	p := paramsWith(8, func(c *Config) {
		c.AgentViewRange = 0
		c.AgentMesh = nil
	})
	b := NewCPUBackend(WithNeighbourGrid())
	require.NoError(t, b.Initialize(p, testRand(3)))
	defer b.Dispose()
	require.NoError(t, b.Update(p))
	assert.Empty(t, b.grid.cells, "a zero neighbourhood falls back to the full scan")
}

func BenchmarkCPUBackend_UpdateNeighbourGrid(b *testing.B) {
	backend := NewCPUBackend(WithNeighbourGrid())
	p := paramsWith(512, nil)
	require.NoError(b, backend.Initialize(p, testRand(1)))
	defer backend.Dispose()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := backend.Update(p); err != nil {
			b.Fatal(err)
		}
	}
}
