package main

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"entmcts/experiments"
	"entmcts/experiments/metrics"
	"entmcts/operator"
	"entmcts/searcher"
	"entmcts/tree"
)

var (
	branching        int
	depth            int
	algorithmName    string
	tau              float64
	alpha            float64
	gamma            float64
	explorationCoeff float64
	simulations      int
	seed             uint64

	configPath string
	outName    string

	rootCmd = &cobra.Command{
		Use:   "entmcts",
		Short: "Convergence study of regularized MCTS on synthetic trees",
		Long: `entmcts builds synthetic reward trees with a closed-form optimal
value and measures how uct, ments, rents and tents value backups
converge to it.`,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Search one synthetic tree and report the convergence error",
		RunE:  runSingle,
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Run a (k, d) x algorithm grid from a YAML config and persist the curves",
		RunE:  runSweep,
	}
)

func init() {
	runCmd.Flags().IntVarP(&branching, "branching", "k", 2, "branching factor")
	runCmd.Flags().IntVarP(&depth, "depth", "d", 2, "tree depth")
	runCmd.Flags().StringVarP(&algorithmName, "algorithm", "a", "uct", "uct, ments, rents or tents")
	runCmd.Flags().Float64Var(&tau, "tau", 0.1, "operator temperature")
	runCmd.Flags().Float64Var(&alpha, "alpha", 2.0, "alpha-divergence parameter")
	runCmd.Flags().Float64Var(&gamma, "gamma", 1.0, "discount factor (reserved)")
	runCmd.Flags().Float64VarP(&explorationCoeff, "exploration", "c", 1.41, "exploration coefficient")
	runCmd.Flags().IntVarP(&simulations, "simulations", "n", 10000, "simulation budget")
	runCmd.Flags().Uint64Var(&seed, "seed", 1, "rand seed")

	sweepCmd.Flags().StringVarP(&configPath, "config", "f", "sweep.yaml", "sweep configuration file")
	sweepCmd.Flags().StringVarP(&outName, "out", "o", "sweep", "result directory name under results/")

	rootCmd.AddCommand(runCmd, sweepCmd)
}

func runSingle(cmd *cobra.Command, args []string) error {
	alg, err := operator.Parse(algorithmName)
	if err != nil {
		return err
	}
	if alg == operator.AlphaDivergence {
		return fmt.Errorf("alpha-divergence is solver-only; pick uct, ments, rents or tents")
	}

	rng := rand.New(rand.NewSource(seed))
	t := tree.New(tree.Config{
		K: branching, D: depth,
		Algorithm: alg,
		Tau:       tau,
		Alpha:     alpha,
		Gamma:     gamma,
		Rng:       rng,
	})

	options := []searcher.Option{
		searcher.WithExplorationCoeff(explorationCoeff),
		searcher.WithMetrics(),
	}
	if alg.Regularized() {
		options = append(options, searcher.WithTau(tau))
	}
	mcts := searcher.NewMCTS(alg, rng, options...)

	vHat, metric := mcts.Run(t, simulations)
	final := vHat[len(vHat)-1]

	log.Info().
		Str("algorithm", alg.String()).
		Int("k", branching).Int("d", depth).
		Float64("optimal_v_root", t.OptimalV).
		Float64("v_hat", final).
		Float64("error", math.Abs(final-t.OptimalV)).
		Dur("duration", metric.Duration).
		Int("simulations", metric.Simulations).
		Msg("search complete")
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := experiments.LoadConfig(configPath)
	if err != nil {
		return err
	}

	results, err := experiments.Sweep(cfg)
	if err != nil {
		return err
	}

	writer, err := metrics.NewWriter(outName)
	if err != nil {
		return err
	}

	allCurves := []metrics.CurveRecord{}
	allRuns := []metrics.RunRecord{}
	for _, cell := range results {
		allCurves = append(allCurves, cell.CurveRecords()...)
		allRuns = append(allRuns, cell.Runs...)
	}

	if err := writer.WriteCurves(allCurves); err != nil {
		return err
	}
	if err := writer.WriteRuns(allRuns); err != nil {
		return err
	}

	log.Info().Str("dir", writer.BaseDir()).Int("cells", len(results)).
		Msg("sweep results stored")
	return nil
}
