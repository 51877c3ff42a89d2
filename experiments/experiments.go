// Package experiments orchestrates convergence sweeps over (k, d) grids:
// many independent (tree, searcher) pairs per grid cell, run in parallel,
// aggregated into per-simulation error curves.
package experiments

import (
	"math"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	"entmcts/experiments/metrics"
	"entmcts/operator"
	"entmcts/searcher"
	"entmcts/tree"
)

// CellResult holds one grid cell's aggregated convergence curves and the raw
// per-simulation records they were computed from.
type CellResult struct {
	K         int
	D         int
	Algorithm operator.Algorithm

	// Per-simulation series averaged across repetitions and trees.
	Diff    []float64
	DiffUCT []float64
	Regret  []float64

	Runs []metrics.RunRecord
}

// Sweep runs every (k, d, algorithm) cell of the configured grid and returns
// one result per cell.
func Sweep(cfg Config) ([]CellResult, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	results := make([]CellResult, 0, len(cfg.Ks)*len(cfg.Ds)*len(cfg.Algorithms))
	for _, k := range cfg.Ks {
		for _, d := range cfg.Ds {
			for _, name := range cfg.Algorithms {
				alg, err := operator.Parse(name)
				if err != nil {
					return nil, err
				}

				log.Info().Int("k", k).Int("d", d).Str("algorithm", name).
					Msg("starting grid cell")
				results = append(results, runCell(cfg, k, d, alg))
				log.Info().Int("k", k).Int("d", d).Str("algorithm", name).
					Msg("completed grid cell")
			}
		}
	}
	return results, nil
}

// runCell executes cfg.NumExperiments independent repetitions of a cell in
// parallel. Each repetition owns its rand source, trees and searcher, so
// workers share nothing but the task channel.
func runCell(cfg Config, k, d int, alg operator.Algorithm) CellResult {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > cfg.NumExperiments {
		workers = cfg.NumExperiments
	}

	task := make(chan int, cfg.NumExperiments)
	for i := 0; i < cfg.NumExperiments; i++ {
		task <- i
	}
	close(task)

	perExperiment := make([][]metrics.RunRecord, cfg.NumExperiments)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range task {
				perExperiment[i] = runExperiment(cfg, k, d, alg, i)
			}
		}()
	}
	wg.Wait()

	runs := make([]metrics.RunRecord, 0, cfg.NumExperiments*cfg.NumTrees*cfg.NumSimulations)
	for _, records := range perExperiment {
		runs = append(runs, records...)
	}
	return aggregate(cfg, k, d, alg, runs)
}

// runExperiment builds cfg.NumTrees fresh trees and searches each for
// cfg.NumSimulations simulations, recording the three error series. The rand
// seed is derived from the experiment index so repetitions are reproducible
// and distinct.
func runExperiment(cfg Config, k, d int, alg operator.Algorithm, experiment int) []metrics.RunRecord {
	seed := cfg.Seed + uint64(experiment)*1e6
	rng := rand.New(rand.NewSource(seed))

	records := make([]metrics.RunRecord, 0, cfg.NumTrees*cfg.NumSimulations)
	for ti := 0; ti < cfg.NumTrees; ti++ {
		t := tree.New(tree.Config{
			K: k, D: d,
			Algorithm: alg,
			Tau:       cfg.Tau,
			Alpha:     cfg.Alpha,
			Gamma:     cfg.Gamma,
			Rng:       rng,
		})

		options := []searcher.Option{
			searcher.WithExplorationCoeff(cfg.ExplorationCoeff),
		}
		if alg.Regularized() {
			options = append(options, searcher.WithTau(cfg.Tau))
		}
		mcts := searcher.NewMCTS(alg, rng, options...)

		vHat, _ := mcts.Run(t, cfg.NumSimulations)
		regret := 0.0
		for si, v := range vHat {
			regret += t.MaxMean - v
			records = append(records, metrics.RunRecord{
				K:          int32(k),
				D:          int32(d),
				Algorithm:  alg.String(),
				Experiment: int32(experiment),
				Tree:       int32(ti),
				Simulation: int32(si),
				Value:      v,
				Diff:       math.Abs(v - t.OptimalV),
				DiffUCT:    math.Abs(v - t.MaxMean),
				Regret:     regret,
			})
		}
	}
	return records
}

// aggregate averages the raw records into per-simulation curves.
func aggregate(cfg Config, k, d int, alg operator.Algorithm, runs []metrics.RunRecord) CellResult {
	result := CellResult{
		K: k, D: d,
		Algorithm: alg,
		Diff:      make([]float64, cfg.NumSimulations),
		DiffUCT:   make([]float64, cfg.NumSimulations),
		Regret:    make([]float64, cfg.NumSimulations),
		Runs:      runs,
	}

	diffs := make([][]float64, cfg.NumSimulations)
	diffUCTs := make([][]float64, cfg.NumSimulations)
	regrets := make([][]float64, cfg.NumSimulations)
	for _, r := range runs {
		si := int(r.Simulation)
		diffs[si] = append(diffs[si], r.Diff)
		diffUCTs[si] = append(diffUCTs[si], r.DiffUCT)
		regrets[si] = append(regrets[si], r.Regret)
	}
	for si := 0; si < cfg.NumSimulations; si++ {
		result.Diff[si] = stat.Mean(diffs[si], nil)
		result.DiffUCT[si] = stat.Mean(diffUCTs[si], nil)
		result.Regret[si] = stat.Mean(regrets[si], nil)
	}
	return result
}

// CurveRecords flattens a cell result into writer records.
func (r CellResult) CurveRecords() []metrics.CurveRecord {
	records := make([]metrics.CurveRecord, len(r.Diff))
	for si := range r.Diff {
		records[si] = metrics.CurveRecord{
			K:          r.K,
			D:          r.D,
			Algorithm:  r.Algorithm.String(),
			Simulation: si,
			Diff:       r.Diff[si],
			DiffUCT:    r.DiffUCT[si],
			Regret:     r.Regret[si],
		}
	}
	return records
}
