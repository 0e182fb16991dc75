package rand

import (
	"math/rand/v2"
)

// pcgStream is the second PCG state word. Keeping it fixed makes a run
// depend on the seed alone.
const pcgStream = 0x9e3779b97f4a7c15

// golangGenerator draws from the standard library's PCG source.
type golangGenerator struct {
	r *rand.Rand
}

func (gen *golangGenerator) Init(seed uint64) {
	gen.r = rand.New(rand.NewPCG(seed, pcgStream))
}

func (gen *golangGenerator) Next() float64 {
	return gen.r.Float64()
}

func (gen *golangGenerator) NextSequence(target []float64) {
	for i := range target {
		target[i] = gen.r.Float64()
	}
}
