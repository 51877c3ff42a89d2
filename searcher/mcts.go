// Package searcher implements the MCTS driver: repeated simulations against
// a synthetic tree, each a root-to-leaf selection walk, a stochastic rollout
// at the leaf, and a reverse-path backup of value and visit statistics.
package searcher

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"entmcts/experiments/metrics"
	"entmcts/operator"
	"entmcts/tree"
)

// Epsilon guards divisions by zero-visit counts.
const Epsilon = 1e-10

type Option func(m *MCTS)

// MCTS runs simulations for one of the uct, ments, rents or tents backup
// schemes. A single instance owns its rand source and must not be shared
// across goroutines; run independent instances on independent trees instead.
type MCTS struct {
	explorationCoeff float64
	algorithm        operator.Algorithm
	tau              float64
	op               operator.Operator
	rng              *rand.Rand
	metrics          metrics.Collector
}

func WithExplorationCoeff(c float64) Option {
	return func(m *MCTS) {
		if c < 0 {
			panic(fmt.Sprintf("exploration coefficient must be >= 0, got %v", c))
		}
		m.explorationCoeff = c
	}
}

func WithTau(tau float64) Option {
	return func(m *MCTS) {
		m.tau = tau
	}
}

func WithMetrics() Option {
	return func(m *MCTS) {
		m.metrics = metrics.NewCollector()
	}
}

func NewMCTS(algorithm operator.Algorithm, rng *rand.Rand, options ...Option) *MCTS {
	if rng == nil {
		panic("searcher requires an explicit rand source")
	}
	if algorithm == operator.AlphaDivergence {
		panic("alpha-divergence has no search-engine policy; use the exact solver")
	}

	m := &MCTS{
		algorithm: algorithm,
		rng:       rng,
		metrics:   metrics.NewDummyCollector(),
	}
	for _, option := range options {
		option(m)
	}
	if algorithm.Regularized() {
		m.op = operator.New(algorithm, m.tau, 0) // validates tau > 0
	}
	return m
}

// Run executes nSimulations independent simulations against the tree and
// returns the root-value estimate observed after each one, for convergence
// analysis against the tree's exact optimum.
func (m *MCTS) Run(t *tree.Tree, nSimulations int) ([]float64, metrics.SearchMetric) {
	m.metrics.Start(m.algorithm.String(), t.K(), t.D())

	vHat := make([]float64, nSimulations)
	for i := range vHat {
		t.Reset()
		vHat[i] = m.simulate(t)
		m.metrics.AddSimulation()
	}
	return vHat, m.metrics.Complete()
}

type segment struct {
	parent int
	child  int
	action int
}

// simulate walks root to leaf, samples one rollout, and backs the result up
// the walked path. Returns the root value after the backup.
func (m *MCTS) simulate(t *tree.Tree) float64 {
	path := m.navigate(t)

	// navigate leaves the cursor on the reached leaf; on a single-leaf tree
	// the walk is empty and the root is that leaf.
	leaf := t.State()
	node := t.Node(leaf)
	node.V = (node.V*float64(node.N) + t.Rollout(leaf)) / float64(node.N+1)
	node.N++

	for i := len(path) - 1; i >= 0; i-- {
		m.backup(t, path[i])
	}
	return t.Node(0).V
}

// navigate advances the tree cursor to a leaf, picking actions with the
// algorithm's selection policy, and returns the traversed edges in order.
func (m *MCTS) navigate(t *tree.Tree) []segment {
	path := make([]segment, 0, t.D())
	state := t.State()
	for !t.IsLeaf(state) {
		action := m.selectAction(t, state)
		next := t.Step(action)
		path = append(path, segment{parent: state, child: next, action: action})
		state = next
	}
	return path
}

// backup bootstraps the edge's Q from the child's just-updated value, then
// recomputes the parent's V: a running mean for uct, or the algorithm's
// regularized value over all of the parent's current edge Qs.
func (m *MCTS) backup(t *tree.Tree, seg segment) {
	parent := t.Node(seg.parent)
	edge := t.Edge(seg.parent, seg.action)

	edge.Q = t.Node(seg.child).V
	edge.N++

	switch m.algorithm {
	case operator.UCT:
		parent.V = (parent.V*float64(parent.N) + edge.Q) / float64(parent.N+1)
	case operator.MENTS:
		parent.V = m.op.Value(edgeValues(t, seg.parent), nil)
	case operator.RENTS:
		// The weight vector here is the empirical visitation ratio, not the
		// tree's prior: the backup tracks where the search actually went.
		parent.V = m.op.Value(edgeValues(t, seg.parent), m.visitationRatios(t, seg.parent))
	case operator.TENTS:
		parent.V = m.tau * m.tsallisBackupValue(t, seg.parent)
	default:
		panic(fmt.Sprintf("unknown algorithm %q", m.algorithm))
	}
	parent.N++
}

// tsallisBackupValue recomputes the sparse-max support over the node's
// current Q values and aggregates with the equivalent exponential form.
func (m *MCTS) tsallisBackupValue(t *tree.Tree, node int) float64 {
	qs := edgeValues(t, node)
	kappa := m.op.Support(qs)

	k := float64(len(kappa))
	value := 0.5
	for _, idx := range kappa {
		e := math.Exp(qs[idx] / m.tau)
		value += e/2 - (e-1)*(e-1)/(2*k*k)
	}
	return value
}

// visitationRatios computes each edge's empirical visitation share
// N(s,a) / (N(s) + eps), in action order.
func (m *MCTS) visitationRatios(t *tree.Tree, node int) []float64 {
	ratios := make([]float64, t.NumActions(node))
	total := float64(t.Node(node).N) + Epsilon
	for a := range ratios {
		ratios[a] = float64(t.Edge(node, a).N) / total
	}
	return ratios
}

// edgeValues gathers the node's outgoing edge Qs in action order.
func edgeValues(t *tree.Tree, node int) []float64 {
	qs := make([]float64, t.NumActions(node))
	for a := range qs {
		qs[a] = t.Edge(node, a).Q
	}
	return qs
}

func edgeVisits(t *tree.Tree, node int) []int {
	ns := make([]int, t.NumActions(node))
	for a := range ns {
		ns[a] = t.Edge(node, a).N
	}
	return ns
}
