package tree

// solve computes the ground-truth root value and the exact value vector of
// the root's children. It runs exactly once, at construction.
//
// For uct (and the Bayesian w-mcts/dng variants, which share its target) the
// optimum is the best normalized leaf mean. For the regularized operators
// the value backs up recursively through the configured operator, using each
// node's prior where the operator asks for one.
func (t *Tree) solve() (float64, []float64) {
	if t.IsLeaf(0) {
		return t.nodes[0].Mean, nil
	}

	if !t.op.Algorithm.Regularized() {
		means := make([]float64, t.k)
		for a := 0; a < t.k; a++ {
			means[a] = t.nodes[t.Child(0, a)].Mean
		}
		return t.MaxMean, means
	}

	return t.solveNode(0)
}

// solveNode returns the exact regularized value of an internal node together
// with its children-value vector. Children that are leaves contribute their
// normalized means; internal children recurse.
func (t *Tree) solveNode(node int) (float64, []float64) {
	values := make([]float64, t.k)
	for a := 0; a < t.k; a++ {
		child := t.Child(node, a)
		if t.IsLeaf(child) {
			values[a] = t.nodes[child].Mean
		} else {
			values[a], _ = t.solveNode(child)
		}
	}
	return t.op.Value(values, t.nodes[node].Prior), values
}
