package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// CurveRecord is one aggregated point of a convergence curve: the errors at
// a given simulation index, averaged across trees and repetitions of a
// (k, d, algorithm) grid cell.
type CurveRecord struct {
	K          int
	D          int
	Algorithm  string
	Simulation int
	Diff       float64 // |v_hat - optimal_v_root|
	DiffUCT    float64 // |v_hat - max leaf mean|
	Regret     float64 // cumulative max-mean shortfall
}

// RunRecord is one raw per-simulation observation of a single search run.
type RunRecord struct {
	K          int32   `parquet:"k"`
	D          int32   `parquet:"d"`
	Algorithm  string  `parquet:"algorithm,dict"`
	Experiment int32   `parquet:"experiment"`
	Tree       int32   `parquet:"tree"`
	Simulation int32   `parquet:"simulation"`
	Value      float64 `parquet:"value"`
	Diff       float64 `parquet:"diff"`
	DiffUCT    float64 `parquet:"diff_uct"`
	Regret     float64 `parquet:"regret"`
}

// Writer persists one experiment's outputs under a timestamped directory.
type Writer struct {
	baseDir string
}

func NewWriter(name string) (*Writer, error) {
	return NewWriterIn("results", name)
}

// NewWriterIn creates a writer under root/name/<timestamp>.
func NewWriterIn(root, name string) (*Writer, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339)
	baseDir := filepath.Join(root, name, timestamp)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{baseDir: baseDir}, nil
}

// BaseDir returns the directory this writer persists into.
func (w *Writer) BaseDir() string { return w.baseDir }

// WriteCurves stores the aggregated convergence curves as curves.csv.
func (w *Writer) WriteCurves(records []CurveRecord) error {
	path := filepath.Join(w.baseDir, "curves.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create curves file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	header := []string{"k", "d", "algorithm", "simulation", "diff", "diff_uct", "regret"}
	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write curves header: %w", err)
	}

	for _, record := range records {
		row := []string{
			strconv.Itoa(record.K),
			strconv.Itoa(record.D),
			record.Algorithm,
			strconv.Itoa(record.Simulation),
			strconv.FormatFloat(record.Diff, 'g', -1, 64),
			strconv.FormatFloat(record.DiffUCT, 'g', -1, 64),
			strconv.FormatFloat(record.Regret, 'g', -1, 64),
		}
		err = writer.Write(row)
		if err != nil {
			return fmt.Errorf("failed to write curves row: %w", err)
		}
	}

	return nil
}

// WriteRuns stores the raw per-simulation records as runs.parquet.
func (w *Writer) WriteRuns(records []RunRecord) error {
	path := filepath.Join(w.baseDir, "runs.parquet")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create runs file: %w", err)
	}
	defer f.Close()

	writer := parquet.NewGenericWriter[RunRecord](
		f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	_, err = writer.Write(records)
	if err != nil {
		return fmt.Errorf("failed to write run records: %w", err)
	}
	err = writer.Close()
	if err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}

	return nil
}
