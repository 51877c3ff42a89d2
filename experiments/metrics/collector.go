// Package metrics collects search timing statistics and persists experiment
// results as CSV curves and raw parquet records.
package metrics

import (
	"sync/atomic"
	"time"
)

// SearchMetric summarizes one completed search run.
type SearchMetric struct {
	Algorithm   string
	K           int
	D           int
	Duration    time.Duration
	Simulations int
}

type Collector interface {
	Start(algorithm string, k, d int)
	AddSimulation()
	Complete() SearchMetric
}

type collector struct {
	algorithm   string
	k, d        int
	startTime   time.Time
	simulations atomic.Int64
}

func NewCollector() Collector {
	return &collector{}
}

func (c *collector) Start(algorithm string, k, d int) {
	c.startTime = time.Now()
	c.algorithm = algorithm
	c.k = k
	c.d = d
}

func (c *collector) AddSimulation() {
	c.simulations.Add(1)
}

func (c *collector) Complete() SearchMetric {
	return SearchMetric{
		Algorithm:   c.algorithm,
		K:           c.k,
		D:           c.d,
		Duration:    time.Since(c.startTime),
		Simulations: int(c.simulations.Load()),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (c *dummyCollector) Start(algorithm string, k, d int) {}
func (c *dummyCollector) AddSimulation()                   {}
func (c *dummyCollector) Complete() SearchMetric           { return SearchMetric{} }
