/*package rand provides the seeded random number generators used throughout
polycrys. A single *Generator is created by the caller and threaded through
every stage so that a run is reproducible from its seed.

	gen := New(Xorshift, 1337)
	x := gen.Uniform(3, 7)

	// Random int in [3, 7)
	y := gen.UniformInt(3, 7)

	// Use the time as a seed
	gen2 := NewTimeSeed(Xorshift)
*/
package rand

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// generatorBackend is an interface which is used by the generators to supply
// the functionality needed for top-level functions like Uniform().
type generatorBackend interface {
	Init(seed uint64)
	Next() float64
	NextSequence(target []float64)
}

// Generator is a random number generator.
type Generator struct {
	backend generatorBackend
	seed    uint64
}

// GeneratorType is a flag used to indicate the desired algorithm for a random
// number generator.
type GeneratorType uint8

const (
	Xorshift GeneratorType = iota
	Golang
)

// ParseGeneratorType converts a config string into a GeneratorType.
func ParseGeneratorType(s string) (GeneratorType, error) {
	switch strings.ToLower(s) {
	case "xorshift":
		return Xorshift, nil
	case "golang", "pcg":
		return Golang, nil
	}
	return Xorshift, fmt.Errorf("unrecognized generator '%s'", s)
}

func (gt GeneratorType) String() string {
	switch gt {
	case Xorshift:
		return "Xorshift"
	case Golang:
		return "Golang"
	}
	return fmt.Sprintf("GeneratorType(%d)", int(gt))
}

// NewTimeSeed returns a new random number generator that uses the current
// time as the seed.
func NewTimeSeed(gt GeneratorType) *Generator {
	return New(gt, uint64(time.Now().UnixNano()))
}

// New returns a new random number generator.
func New(gt GeneratorType, seed uint64) *Generator {
	var backend generatorBackend

	switch gt {
	case Xorshift:
		backend = new(xorshiftGenerator)
	case Golang:
		backend = new(golangGenerator)
	default:
		panic("Unrecognized GeneratorType")
	}

	backend.Init(seed)
	return &Generator{backend: backend, seed: seed}
}

// Seed returns the seed the generator was created with.
func (gen *Generator) Seed() uint64 { return gen.seed }

// UniformInt returns an integer uniformly at random within in the
// range [low, high).
func (gen *Generator) UniformInt(low, high int) int {
	f := gen.backend.Next()
	return int(math.Floor(float64(high-low)*f + float64(low)))
}

// Uniform returns a float uniformly at random within the range [low, high).
func (gen *Generator) Uniform(low, high float64) float64 {
	if low == 0.0 && high == 1.0 {
		return gen.backend.Next()
	}
	return (gen.backend.Next() * (high - low)) + low
}

// UniformAt writes floats generated uniformly at random in the range
// [low, high) to every element in a target slice.
func (gen *Generator) UniformAt(low, high float64, target []float64) {
	gen.backend.NextSequence(target)
	if low == 0.0 && high == 1.0 {
		return
	}
	for i := range target {
		target[i] = target[i]*(high-low) + low
	}
}

// Perm returns a random permutation of [0, n) (Fisher-Yates).
func (gen *Generator) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := gen.UniformInt(0, i+1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}
