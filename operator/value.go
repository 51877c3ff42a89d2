package operator

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Value computes the exact regularized value of a vector of child values.
// prior is only read by rents and must be aligned to the children order.
// Values are scaled by 1/tau internally; callers pass raw child values.
func (o Operator) Value(values, prior []float64) float64 {
	if len(values) == 0 {
		panic("operator value of empty vector")
	}

	switch o.Algorithm {
	case MENTS:
		return o.Tau * floats.LogSumExp(scale(values, o.Tau))
	case RENTS:
		return o.Tau * weightedLogSumExp(scale(values, o.Tau), prior)
	case TENTS:
		return o.Tau * tsallisSparseMax(scale(values, o.Tau))
	case AlphaDivergence:
		return o.Tau * alphaSparseMax(scale(values, o.Tau), o.Alpha)
	case UCT:
		panic("uct has no closed-form value operator")
	default:
		panic(fmt.Sprintf("unknown algorithm %d", int(o.Algorithm)))
	}
}

// Distribution computes the greedy action-selection probability vector the
// operator induces over the given child values (no exploration mixing).
func (o Operator) Distribution(values, prior []float64) []float64 {
	if len(values) == 0 {
		panic("operator distribution of empty vector")
	}

	scaled := scale(values, o.Tau)
	switch o.Algorithm {
	case MENTS:
		return softmax(scaled, nil)
	case RENTS:
		return softmax(scaled, prior)
	case TENTS:
		return Sparsemax(scaled)
	case AlphaDivergence:
		probs, _ := alphaProjection(scaled, o.Alpha)
		return probs
	case UCT:
		return greedy(values)
	default:
		panic(fmt.Sprintf("unknown algorithm %d", int(o.Algorithm)))
	}
}

// Support returns the sparse-max support set kappa of the raw child values,
// in descending value order. Ties resolve to the lowest unused index so the
// result is deterministic for a fixed input.
func (o Operator) Support(values []float64) []int {
	scaled := scale(values, o.Tau)
	if o.Algorithm == AlphaDivergence {
		return alphaSupport(scaled, o.Alpha)
	}
	return tsallisSupport(scaled)
}

func scale(values []float64, tau float64) []float64 {
	scaled := make([]float64, len(values))
	for i, v := range values {
		scaled[i] = v / tau
	}
	return scaled
}

// softmax computes exp(z_i)*w_i / sum, shifted by max(z) for stability.
// A nil weight vector means uniform weights.
func softmax(z, weights []float64) []float64 {
	max := floats.Max(z)
	probs := make([]float64, len(z))
	sum := 0.0
	for i, v := range z {
		e := math.Exp(v - max)
		if weights != nil {
			e *= weights[i]
		}
		probs[i] = e
		sum += e
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// weightedLogSumExp computes log(sum_i w_i*exp(z_i)) via the max-shift
// identity. Weights must be non-negative with at least one positive entry.
func weightedLogSumExp(z, weights []float64) float64 {
	max := floats.Max(z)
	sum := 0.0
	for i, v := range z {
		sum += weights[i] * math.Exp(v-max)
	}
	return max + math.Log(sum)
}

func greedy(values []float64) []float64 {
	max := floats.Max(values)
	probs := make([]float64, len(values))
	ties := 0
	for _, v := range values {
		if v == max {
			ties++
		}
	}
	for i, v := range values {
		if v == max {
			probs[i] = 1 / float64(ties)
		}
	}
	return probs
}

// descending returns the indices of z sorted by decreasing value. Equal
// values keep ascending index order, which fixes the support iteration
// order for ties.
func descending(z []float64) []int {
	order := make([]int, len(z))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return z[order[a]] > z[order[b]]
	})
	return order
}

// tsallisSupport selects the sparse-max support: scanning values in
// descending order, index i joins kappa while 1 + i*z_(i) exceeds the
// cumulative sum of the i largest values.
func tsallisSupport(z []float64) []int {
	order := descending(z)
	kappa := make([]int, 0, len(z))
	cumsum := 0.0
	for i, idx := range order {
		cumsum += z[idx]
		if 1+float64(i+1)*z[idx] > cumsum {
			kappa = append(kappa, idx)
		}
	}
	return kappa
}

// alphaSupport is the alpha-divergence generalization of tsallisSupport
// with feasibility margin alpha + i*z_(i) > cumsum + i*(alpha - alpha/(alpha-1)).
func alphaSupport(z []float64, alpha float64) []int {
	shift := alpha - alpha/(alpha-1)
	order := descending(z)
	kappa := make([]int, 0, len(z))
	cumsum := 0.0
	for i, idx := range order {
		cumsum += z[idx]
		if alpha+float64(i+1)*z[idx] > cumsum+float64(i+1)*shift {
			kappa = append(kappa, idx)
		}
	}
	return kappa
}

// Sparsemax projects an already-scaled value vector onto the probability
// simplex. Entries outside the support get exactly zero mass; the result
// sums to 1 up to rounding.
func Sparsemax(z []float64) []float64 {
	kappa := tsallisSupport(z)
	sum := 0.0
	for _, idx := range kappa {
		sum += z[idx]
	}
	threshold := (sum - 1) / float64(len(kappa))

	probs := make([]float64, len(z))
	for i, v := range z {
		probs[i] = math.Max(v-threshold, 0)
	}
	return probs
}

// tsallisSparseMax evaluates the Tsallis-entropy regularized maximum
// spmax(z) = sum_{j in kappa} (z_j^2/2 - (S-1)^2/(2|kappa|^2)) + 1/2.
func tsallisSparseMax(z []float64) float64 {
	kappa := tsallisSupport(z)
	k := float64(len(kappa))
	sum := 0.0
	for _, idx := range kappa {
		sum += z[idx]
	}
	penalty := (sum - 1) * (sum - 1) / (2 * k * k)

	value := 0.5
	for _, idx := range kappa {
		value += z[idx]*z[idx]/2 - penalty
	}
	return value
}

// alphaProjection computes the normalized alpha-divergence sparse-max
// weights and the unclipped margins max(z_j - c, 0) they derive from.
func alphaProjection(z []float64, alpha float64) ([]float64, []float64) {
	kappa := alphaSupport(z, alpha)
	sum := 0.0
	for _, idx := range kappa {
		sum += z[idx]
	}
	c := (sum-alpha)/float64(len(kappa)) + (alpha - alpha/(alpha-1))

	margins := make([]float64, len(z))
	weights := make([]float64, len(z))
	total := 0.0
	for i, v := range z {
		margins[i] = math.Max(v-c, 0)
		weights[i] = math.Pow(margins[i]*(alpha-1)/alpha, 1/alpha)
		total += weights[i]
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights, margins
}

func alphaSparseMax(z []float64, alpha float64) float64 {
	weights, margins := alphaProjection(z, alpha)
	value := 0.0
	for i, v := range z {
		value += weights[i] * (v + (1-margins[i])/(alpha-1))
	}
	return value
}
