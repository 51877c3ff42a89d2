package operator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("parsing every known identifier", func(t *testing.T) {
		for _, name := range []string{"uct", "ments", "rents", "tents", "alpha-divergence"} {
			alg, err := Parse(name)
			require.NoError(t, err)
			require.Equal(t, name, alg.String())
		}
	})

	t.Run("rejecting an unknown identifier", func(t *testing.T) {
		_, err := Parse("w-mcts-typo")
		require.Error(t, err)
	})
}

func TestNew(t *testing.T) {
	t.Run("panics on non-positive temperature", func(t *testing.T) {
		require.Panics(t, func() {
			New(MENTS, 0, 0)
		}, "Regularized operators need tau > 0")
	})

	t.Run("panics on alpha equal to one", func(t *testing.T) {
		require.Panics(t, func() {
			New(AlphaDivergence, 0.1, 1)
		}, "Alpha-divergence divides by alpha-1")
	})

	t.Run("uct needs no temperature", func(t *testing.T) {
		require.NotPanics(t, func() {
			New(UCT, 0, 0)
		})
	})
}

func TestValue(t *testing.T) {
	t.Run("ments is the soft maximum", func(t *testing.T) {
		op := New(MENTS, 1.0, 0)
		got := op.Value([]float64{1, 2}, nil)

		expected := math.Log(math.Exp(1) + math.Exp(2))
		require.InDelta(t, expected, got, 1e-12,
			"Should compute tau*logsumexp(values/tau)")
	})

	t.Run("ments stays finite for low temperatures", func(t *testing.T) {
		op := New(MENTS, 1e-3, 0)
		got := op.Value([]float64{0.2, 0.9, 1.0}, nil)

		require.False(t, math.IsInf(got, 0))
		require.InDelta(t, 1.0, got, 0.01,
			"Regularization should vanish as tau -> 0")
	})

	t.Run("rents weights the exponentials by the prior", func(t *testing.T) {
		op := New(RENTS, 0.5, 0)
		got := op.Value([]float64{1, 2}, []float64{0.3, 0.7})

		expected := 0.5 * math.Log(0.3*math.Exp(1/0.5)+0.7*math.Exp(2/0.5))
		require.InDelta(t, expected, got, 1e-12)
	})

	t.Run("tents with full support", func(t *testing.T) {
		op := New(TENTS, 1.0, 0)
		got := op.Value([]float64{0.8, 0.2}, nil)

		// Both actions feasible: sum z^2/2 - (S-1)^2/(2*4) per entry + 1/2
		require.InDelta(t, 0.84, got, 1e-12)
	})

	t.Run("tents with a singleton support equals the maximum", func(t *testing.T) {
		op := New(TENTS, 1.0, 0)
		got := op.Value([]float64{2, 0}, nil)

		require.InDelta(t, 2.0, got, 1e-12,
			"A dominant value should be returned unregularized")
	})

	t.Run("alpha-divergence with a singleton support", func(t *testing.T) {
		op := New(AlphaDivergence, 1.0, 2.0)
		got := op.Value([]float64{2, 0}, nil)

		require.InDelta(t, 1.0, got, 1e-12)
	})

	t.Run("alpha-divergence with full support", func(t *testing.T) {
		op := New(AlphaDivergence, 1.0, 2.0)
		got := op.Value([]float64{0.8, 0.2}, nil)

		require.InDelta(t, 0.5, got, 1e-12)
	})

	t.Run("panics on empty vector", func(t *testing.T) {
		op := New(MENTS, 1.0, 0)
		require.Panics(t, func() {
			op.Value(nil, nil)
		})
	})

	t.Run("panics for uct", func(t *testing.T) {
		op := New(UCT, 0, 0)
		require.Panics(t, func() {
			op.Value([]float64{1, 2}, nil)
		}, "uct backs up a running mean, not a closed form")
	})
}

func TestSupport(t *testing.T) {
	t.Run("dominant value excludes the rest", func(t *testing.T) {
		op := New(TENTS, 1.0, 0)
		require.Equal(t, []int{0}, op.Support([]float64{2, 0}))
	})

	t.Run("close values share the support", func(t *testing.T) {
		op := New(TENTS, 1.0, 0)
		require.ElementsMatch(t, []int{0, 1}, op.Support([]float64{0.8, 0.2}))
	})

	t.Run("ties resolve to distinct indices deterministically", func(t *testing.T) {
		op := New(TENTS, 1.0, 0)
		require.Equal(t, []int{0, 1}, op.Support([]float64{1, 1, 0}))
	})

	t.Run("support is never empty", func(t *testing.T) {
		op := New(TENTS, 0.1, 0)
		for _, values := range [][]float64{
			{0, 0, 0, 0},
			{-3, -2, -1},
			{5},
		} {
			require.NotEmpty(t, op.Support(values))
		}
	})
}

func TestSparsemax(t *testing.T) {
	t.Run("projects onto the simplex", func(t *testing.T) {
		for _, z := range [][]float64{
			{0.8, 0.2},
			{2, 0},
			{0.5, 0.4, 0.3, 0.1},
			{1, 1, 1},
		} {
			probs := Sparsemax(z)
			sum := 0.0
			for _, p := range probs {
				require.GreaterOrEqual(t, p, 0.0)
				sum += p
			}
			require.InDelta(t, 1.0, sum, 1e-9)
		}
	})

	t.Run("off-support entries get exactly zero", func(t *testing.T) {
		probs := Sparsemax([]float64{2, 0})
		require.Equal(t, []float64{1, 0}, probs)
	})
}

func TestDistribution(t *testing.T) {
	t.Run("ments is the Boltzmann distribution", func(t *testing.T) {
		op := New(MENTS, 1.0, 0)
		probs := op.Distribution([]float64{1, 2}, nil)

		z := math.Exp(1) + math.Exp(2)
		require.InDelta(t, math.Exp(1)/z, probs[0], 1e-12)
		require.InDelta(t, math.Exp(2)/z, probs[1], 1e-12)
	})

	t.Run("rents reweights by the prior before normalizing", func(t *testing.T) {
		op := New(RENTS, 1.0, 0)
		probs := op.Distribution([]float64{1, 1}, []float64{0.9, 0.1})

		require.InDelta(t, 0.9, probs[0], 1e-12)
		require.InDelta(t, 0.1, probs[1], 1e-12)
	})

	t.Run("uct is greedy with uniform tie breaking", func(t *testing.T) {
		op := New(UCT, 0, 0)
		probs := op.Distribution([]float64{3, 3, 1}, nil)

		require.Equal(t, []float64{0.5, 0.5, 0}, probs)
	})

	t.Run("every distribution sums to one", func(t *testing.T) {
		values := []float64{0.7, 0.1, 0.4}
		prior := []float64{0.2, 0.5, 0.3}
		for _, op := range []Operator{
			New(MENTS, 0.5, 0),
			New(RENTS, 0.5, 0),
			New(TENTS, 0.5, 0),
			New(AlphaDivergence, 0.5, 2.0),
			New(UCT, 0, 0),
		} {
			probs := op.Distribution(values, prior)
			sum := 0.0
			for _, p := range probs {
				sum += p
			}
			require.InDelta(t, 1.0, sum, 1e-9, "algorithm %s", op.Algorithm)
		}
	})
}
