package testsupport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixturesAreValidAndOrdered(t *testing.T) {
	for name, s := range map[string][]float64{
		"flat":   Flat(50, 100).Closes(),
		"rising": Rising(50, 100, 0.01).Closes(),
		"walk":   RandomWalk(50, 7, 100, 0.01).Closes(),
		"mixed":  RisingThenFlat(50, 7).Closes(),
	} {
		assert.Len(t, s, 50, name)
	}

	walk := RandomWalk(100, 1, 100, 0.02)
	for i, c := range walk {
		assert.True(t, c.Valid(), "candle %d", i)
		if i > 0 {
			assert.True(t, c.Timestamp.After(walk[i-1].Timestamp))
		}
	}

	assert.Equal(t, RandomWalk(20, 3, 100, 0.01), RandomWalk(20, 3, 100, 0.01))
}
