package searcher

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"entmcts/operator"
	"entmcts/tree"
)

func newTestTree(t *testing.T, k, d int, alg operator.Algorithm, tau float64, seed uint64) *tree.Tree {
	t.Helper()
	return tree.New(tree.Config{
		K: k, D: d,
		Algorithm: alg,
		Tau:       tau,
		Alpha:     2.0,
		Rng:       rand.New(rand.NewSource(seed)),
	})
}

func TestNewMCTS(t *testing.T) {
	t.Run("panics without a rand source", func(t *testing.T) {
		require.Panics(t, func() {
			NewMCTS(operator.UCT, nil)
		})
	})

	t.Run("panics on regularized algorithm without temperature", func(t *testing.T) {
		require.Panics(t, func() {
			NewMCTS(operator.MENTS, rand.New(rand.NewSource(1)))
		})
	})

	t.Run("panics on negative exploration coefficient", func(t *testing.T) {
		require.Panics(t, func() {
			NewMCTS(operator.UCT, rand.New(rand.NewSource(1)),
				WithExplorationCoeff(-1))
		})
	})

	t.Run("panics for alpha-divergence", func(t *testing.T) {
		require.Panics(t, func() {
			NewMCTS(operator.AlphaDivergence, rand.New(rand.NewSource(1)),
				WithTau(0.1))
		}, "Only the exact solver supports alpha-divergence")
	})
}

func TestRun(t *testing.T) {
	t.Run("returns one estimate per simulation", func(t *testing.T) {
		env := newTestTree(t, 2, 1, operator.UCT, 0, 1)
		mcts := NewMCTS(operator.UCT, rand.New(rand.NewSource(2)),
			WithExplorationCoeff(1.41), WithMetrics())

		vHat, metric := mcts.Run(env, 1000)

		require.Len(t, vHat, 1000)
		require.Equal(t, 1000, metric.Simulations)
		require.Equal(t, "uct", metric.Algorithm)
		for _, v := range vHat {
			require.False(t, math.IsNaN(v))
			require.False(t, math.IsInf(v, 0))
		}
	})

	t.Run("uct converges on a shallow tree", func(t *testing.T) {
		// End-to-end: k=2 d=1, 1000 simulations, the tail of the estimate
		// sequence settles near the exact optimum.
		for _, seed := range []uint64{1, 2, 3} {
			env := newTestTree(t, 2, 1, operator.UCT, 0, seed)
			mcts := NewMCTS(operator.UCT, rand.New(rand.NewSource(seed+100)),
				WithExplorationCoeff(1.41))

			vHat, _ := mcts.Run(env, 1000)

			tail := 0.0
			for _, v := range vHat[len(vHat)-100:] {
				tail += v
			}
			tail /= 100
			require.InDelta(t, env.OptimalV, tail, 0.15, "seed %d", seed)
		}
	})

	t.Run("uct converges on a deeper tree with a large budget", func(t *testing.T) {
		env := newTestTree(t, 2, 2, operator.UCT, 0, 7)
		mcts := NewMCTS(operator.UCT, rand.New(rand.NewSource(8)),
			WithExplorationCoeff(1.41))

		vHat, _ := mcts.Run(env, 50000)

		require.InDelta(t, env.OptimalV, vHat[len(vHat)-1], 0.1)
	})

	t.Run("regularized runs stay finite", func(t *testing.T) {
		for _, alg := range []operator.Algorithm{operator.MENTS, operator.RENTS, operator.TENTS} {
			env := newTestTree(t, 2, 2, alg, 0.5, 11)
			mcts := NewMCTS(alg, rand.New(rand.NewSource(12)),
				WithExplorationCoeff(0.5), WithTau(0.5))

			vHat, _ := mcts.Run(env, 2000)

			require.Len(t, vHat, 2000)
			for _, v := range vHat {
				require.False(t, math.IsNaN(v), "algorithm %s", alg)
				require.False(t, math.IsInf(v, 0), "algorithm %s", alg)
			}
		}
	})

	t.Run("single-leaf tree averages root rollouts", func(t *testing.T) {
		// Depth 0: the root is its own leaf, the walk is empty, and every
		// simulation is a rollout at the root.
		env := newTestTree(t, 2, 0, operator.UCT, 0, 9)
		mcts := NewMCTS(operator.UCT, rand.New(rand.NewSource(10)),
			WithExplorationCoeff(1.41))

		var vHat []float64
		require.NotPanics(t, func() {
			vHat, _ = mcts.Run(env, 500)
		})

		require.Len(t, vHat, 500)
		require.Equal(t, 500, env.Node(0).N)
		require.InDelta(t, env.OptimalV, vHat[len(vHat)-1], 0.1,
			"Estimate should settle on the lone leaf mean")
	})

	t.Run("visit counts accumulate across simulations", func(t *testing.T) {
		env := newTestTree(t, 2, 2, operator.UCT, 0, 13)
		mcts := NewMCTS(operator.UCT, rand.New(rand.NewSource(14)),
			WithExplorationCoeff(1.41))

		mcts.Run(env, 200)

		require.Equal(t, 200, env.Node(0).N, "Each simulation backs up through the root")
		total := 0
		for a := 0; a < 2; a++ {
			total += env.Edge(0, a).N
		}
		require.Equal(t, 200, total, "Each simulation takes exactly one root edge")
	})

	t.Run("backup bootstraps edge Q from the child value", func(t *testing.T) {
		env := newTestTree(t, 2, 1, operator.UCT, 0, 15)
		mcts := NewMCTS(operator.UCT, rand.New(rand.NewSource(16)),
			WithExplorationCoeff(1.41))

		mcts.Run(env, 50)

		for a := 0; a < 2; a++ {
			edge := env.Edge(0, a)
			if edge.N > 0 {
				require.Equal(t, env.Node(env.Child(0, a)).V, edge.Q)
			}
		}
	})

	t.Run("ground truth survives the search untouched", func(t *testing.T) {
		env := newTestTree(t, 2, 2, operator.MENTS, 0.5, 17)
		before := env.OptimalV
		qBefore := append([]float64{}, env.QRoot...)

		mcts := NewMCTS(operator.MENTS, rand.New(rand.NewSource(18)),
			WithExplorationCoeff(0.5), WithTau(0.5))
		mcts.Run(env, 500)

		require.Equal(t, before, env.OptimalV)
		require.Equal(t, qBefore, env.QRoot)
	})
}
