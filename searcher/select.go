package searcher

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"entmcts/operator"
	"entmcts/tree"
)

// selectAction picks one of the node's outgoing edges: max-UCB with exact
// uniform tie breaking for uct, a lambda-mixed categorical draw otherwise.
func (m *MCTS) selectAction(t *tree.Tree, state int) int {
	if m.algorithm == operator.UCT {
		return m.selectUCB(t, state)
	}

	probs := m.policy(t, state)
	// Push float normalization drift onto one random entry so the vector
	// sums to exactly 1 before sampling.
	probs[m.rng.Intn(len(probs))] += 1 - floats.Sum(probs)
	return sampleIndex(m.rng, probs)
}

func (m *MCTS) selectUCB(t *tree.Tree, state int) int {
	qs := edgeValues(t, state)
	ns := edgeVisits(t, state)

	total := 0
	for _, n := range ns {
		total += n
	}
	if total == 0 {
		// Every action is infinitely preferred; break the tie uniformly.
		return m.rng.Intn(len(qs))
	}

	scores := make([]float64, len(qs))
	for a := range scores {
		scores[a] = qs[a] + m.explorationCoeff*math.Sqrt(math.Log(float64(total))/(float64(ns[a])+Epsilon))
	}

	max := floats.Max(scores)
	ties := make([]int, 0, len(scores))
	for a, s := range scores {
		if s == max {
			ties = append(ties, a)
		}
	}
	return ties[m.rng.Intn(len(ties))]
}

// policy computes the exploration-mixed action distribution for the
// regularized algorithms: (1-lambda)*exploit + lambda*uniform, where lambda
// decays with the node's visit count.
func (m *MCTS) policy(t *tree.Tree, state int) []float64 {
	qs := edgeValues(t, state)
	ns := edgeVisits(t, state)
	k := len(qs)

	total := 0
	for _, n := range ns {
		total += n
	}
	lambda := clip(m.explorationCoeff*float64(k)/math.Log(float64(total)+1+Epsilon), 0, 1)

	probs := make([]float64, k)
	uniform := 1 / float64(k)
	if lambda >= 1 {
		for a := range probs {
			probs[a] = uniform
		}
		return probs
	}

	var exploit []float64
	switch m.algorithm {
	case operator.MENTS:
		exploit = m.op.Distribution(qs, nil)
	case operator.RENTS:
		exploit = m.rentsExploit(qs, m.visitationRatios(t, state), uniform)
	case operator.TENTS:
		exploit = m.tentsExploit(qs)
	default:
		panic(fmt.Sprintf("unknown algorithm %q", m.algorithm))
	}

	for a := range probs {
		probs[a] = (1-lambda)*exploit[a] + lambda*uniform
	}
	return probs
}

// rentsExploit weights each action's Boltzmann term by its visitation ratio
// before normalizing. With no visits anywhere the weights carry no signal,
// so fall back to uniform.
func (m *MCTS) rentsExploit(qs, ratios []float64, uniform float64) []float64 {
	sum := floats.Sum(ratios)
	if sum == 0 {
		exploit := make([]float64, len(qs))
		for a := range exploit {
			exploit[a] = uniform
		}
		return exploit
	}
	return m.op.Distribution(qs, ratios)
}

// tentsExploit restricts mass to the sparse-max support of the current Q
// values, the same set the backup aggregates over, then projects the
// exponential terms onto the simplex within that set. Off-support actions
// get exactly zero exploitation mass.
func (m *MCTS) tentsExploit(qs []float64) []float64 {
	kappa := m.op.Support(qs)

	expQ := make([]float64, len(kappa))
	for i, a := range kappa {
		expQ[i] = math.Exp(qs[a] / m.tau)
	}
	projected := operator.Sparsemax(expQ)

	exploit := make([]float64, len(qs))
	for i, a := range kappa {
		exploit[a] = projected[i]
	}
	return exploit
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// sampleIndex draws from a categorical distribution summing to 1.
func sampleIndex(rng *rand.Rand, probs []float64) int {
	u := rng.Float64()
	acc := 0.0
	for i, p := range probs {
		acc += p
		if u < acc {
			return i
		}
	}
	return len(probs) - 1
}
