// Package tree implements the synthetic benchmark environment: a balanced
// k-ary tree with known leaf means, per-node priors, and an exact solver for
// the configured regularized value operator. The search engine mutates the
// N/Q/V statistics; everything else is frozen at construction.
package tree

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"entmcts/operator"
)

// RolloutSigma is the standard deviation of the stochastic rollout oracle.
const RolloutSigma = 0.5

// Node holds the per-node statistics. Mean, Prior and the Bayesian
// sufficient statistics are fixed after construction; N and V belong to the
// search engine.
type Node struct {
	N    int
	V    float64
	Mean float64
	// Prior is the normalized children-mean distribution, indexed by action.
	// Empty for leaves.
	Prior []float64

	// Sufficient statistics for the w-mcts and dng variants. Kept in the
	// record for structural completeness; the four driver operators never
	// read them.
	VMean     float64
	VVariance float64
	Mu        float64
	Lambda    float64
	Alpha     float64
	Beta      float64
}

// Edge holds the per-edge statistics. Weight is fixed at construction; N and
// Q belong to the search engine.
type Edge struct {
	Weight    float64
	N         int
	Q         float64
	QMean     float64
	QVariance float64
}

// Config are the construction parameters of a synthetic tree.
type Config struct {
	K         int // branching factor, >= 1
	D         int // depth, >= 0
	Algorithm operator.Algorithm
	Tau       float64
	Alpha     float64
	Gamma     float64 // discount factor, reserved
	Rng       *rand.Rand
}

// Tree is a rooted balanced k-ary tree of depth d with node 0 as root.
// Nodes are laid out in breadth-first order: node i's children are
// i*k+1 .. i*k+k, and the edge for (i, action) lives at index i*k+action.
type Tree struct {
	k, d        int
	op          operator.Operator
	gamma       float64
	rng         *rand.Rand
	nodes       []Node
	edges       []Edge
	numInternal int

	// MaxMean is the largest normalized leaf mean (1 unless the tree
	// degenerates to a single leaf).
	MaxMean float64
	// OptimalV is the exact regularized root value; QRoot the exact value
	// vector of the root's children. Both are ground truth, never mutated.
	OptimalV float64
	QRoot    []float64

	state int
}

// New builds a tree, draws its edge weights, derives leaf means and priors,
// and runs the exact solver once. The rand source drives both construction
// and all later rollouts; it must not be shared across trees.
func New(cfg Config) *Tree {
	if cfg.K < 1 {
		panic(fmt.Sprintf("branching factor must be >= 1, got %d", cfg.K))
	}
	if cfg.D < 0 {
		panic(fmt.Sprintf("depth must be >= 0, got %d", cfg.D))
	}
	if cfg.Rng == nil {
		panic("tree requires an explicit rand source")
	}

	total, numLeaves := 1, 1
	for i := 0; i < cfg.D; i++ {
		numLeaves *= cfg.K
		total += numLeaves
	}

	t := &Tree{
		k:           cfg.K,
		d:           cfg.D,
		op:          operator.New(cfg.Algorithm, cfg.Tau, cfg.Alpha),
		gamma:       cfg.Gamma,
		rng:         cfg.Rng,
		nodes:       make([]Node, total),
		edges:       make([]Edge, total-1),
		numInternal: total - numLeaves,
	}

	for i := range t.edges {
		e := &t.edges[i]
		e.Weight = t.rng.Float64()
		e.QMean, e.QVariance = 0.5, 0.5
	}
	for i := range t.nodes {
		n := &t.nodes[i]
		n.VMean, n.VVariance = 0.5, 0.5
		n.Mu, n.Lambda, n.Alpha, n.Beta = 0, 1e-2, 1, 100
	}

	t.computeLeafMeans(0, 0)
	t.normalizeLeafMeans()
	if !t.IsLeaf(0) {
		t.assignPriorsMaxs(0)
	}
	t.OptimalV, t.QRoot = t.solve()

	t.Reset()
	return t
}

// computeLeafMeans assigns each leaf the cumulative edge weight of its root
// path.
func (t *Tree) computeLeafMeans(node int, weight float64) {
	if t.IsLeaf(node) {
		t.nodes[node].Mean = weight
		return
	}
	for a := 0; a < t.k; a++ {
		t.computeLeafMeans(t.Child(node, a), weight+t.edges[node*t.k+a].Weight)
	}
}

// normalizeLeafMeans min-max normalizes leaf means into [0,1]. A single-leaf
// tree gets mean 0 (nothing to normalize against).
func (t *Tree) normalizeLeafMeans() {
	leaves := t.Leaves()
	if len(leaves) == 1 {
		t.nodes[leaves[0]].Mean = 0
		t.MaxMean = 0
		return
	}

	min, max := t.nodes[leaves[0]].Mean, t.nodes[leaves[0]].Mean
	for _, leaf := range leaves[1:] {
		m := t.nodes[leaf].Mean
		if m < min {
			min = m
		}
		if m > max {
			max = m
		}
	}
	for _, leaf := range leaves {
		normalized := (t.nodes[leaf].Mean - min) / (max - min)
		t.nodes[leaf].Mean = normalized
		if normalized > t.MaxMean {
			t.MaxMean = normalized
		}
	}
}

// assignPriorsMaxs recursively sets each internal node's prior (children
// means normalized to sum 1) and mean (max of children means). The max-based
// mean is a structural bound only; the regularized value comes from the
// solver.
func (t *Tree) assignPriorsMaxs(node int) float64 {
	means := make([]float64, t.k)
	for a := 0; a < t.k; a++ {
		child := t.Child(node, a)
		if t.IsLeaf(child) {
			means[a] = t.nodes[child].Mean
		} else {
			means[a] = t.assignPriorsMaxs(child)
		}
	}

	sum, max := 0.0, means[0]
	for _, m := range means {
		sum += m
		if m > max {
			max = m
		}
	}
	prior := make([]float64, t.k)
	for a, m := range means {
		prior[a] = m / sum
	}
	t.nodes[node].Prior = prior
	t.nodes[node].Mean = max
	return max
}

// Reset moves the cursor back to the root and returns it. Node and edge
// statistics are untouched.
func (t *Tree) Reset() int {
	t.state = 0
	return t.state
}

// ResetTo moves the cursor to the given state.
func (t *Tree) ResetTo(state int) int {
	if state < 0 || state >= len(t.nodes) {
		panic(fmt.Sprintf("state %d out of range [0, %d)", state, len(t.nodes)))
	}
	t.state = state
	return t.state
}

// Step advances the cursor along the action-th outgoing edge of the current
// state and returns the new cursor.
func (t *Tree) Step(action int) int {
	if t.IsLeaf(t.state) {
		panic(fmt.Sprintf("cannot step from leaf state %d", t.state))
	}
	if action < 0 || action >= t.k {
		panic(fmt.Sprintf("action %d out of range [0, %d)", action, t.k))
	}
	t.state = t.Child(t.state, action)
	return t.state
}

// Rollout draws one stochastic return sample for the given state: a normal
// draw centered at the state's mean. Repeated calls are independent.
func (t *Tree) Rollout(state int) float64 {
	normal := distuv.Normal{Mu: t.nodes[state].Mean, Sigma: RolloutSigma, Src: t.rng}
	return normal.Rand()
}

// State returns the active cursor.
func (t *Tree) State() int { return t.state }

// K returns the branching factor.
func (t *Tree) K() int { return t.k }

// D returns the depth.
func (t *Tree) D() int { return t.d }

// Discount returns the reserved discount factor.
func (t *Tree) Discount() float64 { return t.gamma }

// NumNodes returns the node count, sum of k^i for i in 0..d.
func (t *Tree) NumNodes() int { return len(t.nodes) }

// IsLeaf reports whether the node has no outgoing edges.
func (t *Tree) IsLeaf(node int) bool { return node >= t.numInternal }

// Leaves returns the leaf node ids in ascending order.
func (t *Tree) Leaves() []int {
	leaves := make([]int, 0, len(t.nodes)-t.numInternal)
	for i := t.numInternal; i < len(t.nodes); i++ {
		leaves = append(leaves, i)
	}
	return leaves
}

// NumActions returns the out-degree of the node.
func (t *Tree) NumActions(node int) int {
	if t.IsLeaf(node) {
		return 0
	}
	return t.k
}

// Child returns the node reached from parent by the given action.
func (t *Tree) Child(parent, action int) int {
	return parent*t.k + 1 + action
}

// Node returns a mutable reference to the node record.
func (t *Tree) Node(id int) *Node {
	return &t.nodes[id]
}

// Edge returns a mutable reference to the (parent, action) edge record.
func (t *Tree) Edge(parent, action int) *Edge {
	if t.IsLeaf(parent) {
		panic(fmt.Sprintf("leaf %d has no edges", parent))
	}
	if action < 0 || action >= t.k {
		panic(fmt.Sprintf("action %d out of range [0, %d)", action, t.k))
	}
	return &t.edges[parent*t.k+action]
}

// Operator returns the tree's configured value operator.
func (t *Tree) Operator() operator.Operator { return t.op }
