package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withWall(c *HybridLogicalClock, values ...uint64) {
	i := 0
	c.wall = func() uint64 {
		if i >= len(values) {
			i = len(values) - 1
		}
		v := values[i]
		i++
		return v
	}
}

func TestHybridLogicalClock_MonotoneUnderAdvancingWall(t *testing.T) {
	c := NewHybridLogicalClock(42)
	withWall(c, 1000, 1000, 1001)

	a := c.Now()
	b := c.Now()
	cc := c.Now()

	assert.True(t, a.Less(b))
	assert.True(t, b.Less(cc))
	assert.Equal(t, uint64(1000), a.Physical)
	assert.Equal(t, uint16(0), a.Logical)
	assert.Equal(t, uint16(1), b.Logical)
	assert.Equal(t, uint64(1001), cc.Physical)
	assert.Equal(t, uint16(0), cc.Logical)
}

func TestHybridLogicalClock_BackwardWallJump(t *testing.T) {
	c := NewHybridLogicalClock(1)
	withWall(c, 2000, 1500)

	first := c.Now()
	second := c.Now()

	require.GreaterOrEqual(t, second.Physical, first.Physical)
	assert.True(t, first.Less(second))
	assert.Equal(t, first.Physical, second.Physical)
	assert.Equal(t, first.Logical+1, second.Logical)
}

func TestHybridLogicalClock_LogicalOverflowBumpsPhysical(t *testing.T) {
	c := NewHybridLogicalClock(7)
	c.wall = func() uint64 { return 5000 }

	first := c.Now()
	c.lastLogical = maxLogical
	next := c.Now()

	assert.Equal(t, first.Physical+1, next.Physical)
	assert.Equal(t, uint16(0), next.Logical)
}

func TestHybridLogicalClock_UpdateAbsorbsSkew(t *testing.T) {
	c := NewHybridLogicalClock(1)
	c.wall = func() uint64 { return 100 }

	remote := Hybrid{Physical: 500, Logical: 3, Node: 99}
	updated := c.Update(remote)

	assert.Equal(t, uint64(500), updated.Physical)
	assert.Equal(t, uint16(4), updated.Logical)
}

func TestHybridLogicalClock_UpdateWithEqualPhysicalTakesMaxLogicalPlusOne(t *testing.T) {
	c := NewHybridLogicalClock(1)
	c.wall = func() uint64 { return 100 }
	c.lastPhysical = 100
	c.lastLogical = 10

	remote := Hybrid{Physical: 100, Logical: 2, Node: 2}
	updated := c.Update(remote)

	assert.Equal(t, uint64(100), updated.Physical)
	assert.Equal(t, uint16(11), updated.Logical)
}

func TestHybrid_CompareOrdering(t *testing.T) {
	a := Hybrid{Physical: 1, Logical: 0, Node: 5}
	b := Hybrid{Physical: 1, Logical: 1, Node: 1}
	cHy := Hybrid{Physical: 2, Logical: 0, Node: 0}

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, -1, b.Compare(cHy))
	assert.Equal(t, 0, a.Compare(a))
}
