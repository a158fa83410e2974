package workload

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"stress-client/internal/op"
)

func TestProperty_SelectionConvergesToWeights(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	const trials = 20000
	const tolerance = 0.03

	properties.Property("each share converges to weight/total", prop.ForAll(
		func(read, write, sindex, del int, seed uint64) bool {
			w := Weights{Read: read, Write: write, SindexRead: sindex, Delete: del}
			if w.Total() == 0 {
				return true
			}
			s, err := NewScheduler(w, newRand(seed))
			if err != nil {
				return false
			}

			var counts [op.Count]int
			for range trials {
				k, err := s.Pick(false)
				if err != nil {
					return false
				}
				counts[k]++
			}

			for _, k := range op.All {
				want := float64(w.Of(k)) / float64(w.Total())
				got := float64(counts[k]) / trials
				if math.Abs(want-got) > tolerance {
					return false
				}
				if w.Of(k) == 0 && counts[k] != 0 {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.UInt64(),
	))

	properties.Property("empty key set always selects write", prop.ForAll(
		func(read, write, sindex, del int, seed uint64) bool {
			w := Weights{Read: read, Write: write, SindexRead: sindex, Delete: del}
			if w.Total() == 0 {
				return true
			}
			s, err := NewScheduler(w, newRand(seed))
			if err != nil {
				return false
			}
			for range 100 {
				k, err := s.Pick(true)
				if err != nil || k != op.Write {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
