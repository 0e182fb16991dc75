package polycrys

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSphereVolume(t *testing.T) {
	assert.InDelta(t, 4*math.Pi/3, SphereVolume(2), 1e-12)
	assert.InDelta(t, 0, SphereVolume(0), 1e-12)

	for _, d := range []float64{0.5, 1, 3, 12.25} {
		assert.InDelta(t, d, EquivalentDiameter(SphereVolume(d)), 1e-12*d)
	}
}
