// Package operator implements the regularized value operators shared by the
// exact tree solver and the search engine: log-sum-exp (ments), prior-weighted
// log-sum-exp (rents), the Tsallis-entropy sparse-max (tents) and its
// alpha-divergence generalization.
package operator

import "fmt"

// Algorithm identifies a value backup operator.
type Algorithm int

const (
	UCT Algorithm = iota
	MENTS
	RENTS
	TENTS
	AlphaDivergence
)

var names = map[Algorithm]string{
	UCT:             "uct",
	MENTS:           "ments",
	RENTS:           "rents",
	TENTS:           "tents",
	AlphaDivergence: "alpha-divergence",
}

func (a Algorithm) String() string {
	name, ok := names[a]
	if !ok {
		panic(fmt.Sprintf("unknown algorithm %d", int(a)))
	}
	return name
}

// Parse maps an algorithm identifier to its Algorithm. Unknown identifiers
// are a configuration error.
func Parse(s string) (Algorithm, error) {
	for a, name := range names {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown algorithm %q", s)
}

// Regularized reports whether the algorithm backs up a closed-form
// regularized value rather than a Monte-Carlo running mean.
func (a Algorithm) Regularized() bool {
	return a != UCT
}

// Operator is an immutable (algorithm, temperature, alpha) triple.
type Operator struct {
	Algorithm Algorithm
	Tau       float64
	Alpha     float64
}

// New validates and returns an Operator. Temperature must be positive for
// every regularized algorithm; alpha-divergence additionally needs a
// positive alpha != 1 (the closed form divides by alpha-1).
func New(algorithm Algorithm, tau, alpha float64) Operator {
	if algorithm.Regularized() && tau <= 0 {
		panic(fmt.Sprintf("%s requires temperature > 0, got %v", algorithm, tau))
	}
	if algorithm == AlphaDivergence && (alpha <= 0 || alpha == 1) {
		panic(fmt.Sprintf("alpha-divergence requires alpha > 0 and alpha != 1, got %v", alpha))
	}
	return Operator{Algorithm: algorithm, Tau: tau, Alpha: alpha}
}
