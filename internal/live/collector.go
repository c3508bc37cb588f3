// Package live feeds an estimator from asynchronous input streams. Three
// producers append timestamped samples to their own buffers; a periodic
// tick pairs the newest truth and measurement with the input that was in
// effect before them and advances the estimator once per new ground-truth
// timestamp. Ticks that find no new data are silent no-ops, so the
// estimator never races ahead of input delivery.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/pose.report/internal/estimator"
	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

// Sample is one timestamped vector delivered on a live stream.
type Sample struct {
	T float64
	V []float64
}

// Collector buffers live input, truth and measurement streams and drives
// a filter from a periodic tick. Buffers are append-only; the tick reads
// the truth and measurement tails plus the last input stamped before the
// new truth, so a short mutex section is the whole contract between
// producers and the tick.
type Collector struct {
	filter estimator.Filter
	sink   estimator.Sink

	mu       sync.Mutex
	inputs   []Sample
	truths   []Sample
	meas     []Sample
	history  []estimator.Estimate
	skips    int
	lastStep float64
}

// NewCollector returns a Collector driving the filter. sink may be nil.
func NewCollector(f estimator.Filter, sink estimator.Sink) *Collector {
	return &Collector{filter: f, sink: sink, lastStep: -1}
}

// PushInput appends a control input sample.
func (c *Collector) PushInput(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs = append(c.inputs, s)
}

// PushTruth appends a ground-truth state sample. The first truth sample
// bootstraps the estimate exactly.
func (c *Collector) PushTruth(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.truths = append(c.truths, s)
	if len(c.history) == 0 {
		x := make([]float64, len(s.V))
		copy(x, s.V)
		est := estimator.Estimate{T: s.T, X: x}
		c.history = append(c.history, est)
		c.lastStep = s.T
		if c.sink != nil {
			c.sink(est)
		}
	}
}

// PushMeasurement appends a sensor measurement sample.
func (c *Collector) PushMeasurement(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.meas = append(c.meas, s)
}

// Tick advances the estimator once if a new ground-truth timestamp has
// arrived since the last step. Starved or stale ticks are skipped, not
// errors; skips are counted and visible through Skips.
//
// Inputs are stamped with the state they were applied after, so the step
// consumes the newest input logged before the new truth timestamp, not
// the buffer tail.
func (c *Collector) Tick() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 || len(c.truths) == 0 || len(c.meas) == 0 {
		c.skips++
		return nil
	}

	truth := c.truths[len(c.truths)-1]
	if truth.T <= c.lastStep {
		c.skips++
		return nil
	}

	input, ok := latestBefore(c.inputs, truth.T)
	if !ok {
		c.skips++
		return nil
	}

	rec := estimator.Record{
		T:     truth.T,
		Truth: truth.V,
		Input: input.V,
		Meas:  c.meas[len(c.meas)-1].V,
	}

	x, err := c.filter.Step(c.history[len(c.history)-1].X, rec)
	if err != nil {
		return err
	}

	est := estimator.Estimate{T: truth.T, X: x}
	c.history = append(c.history, est)
	c.lastStep = truth.T
	if c.sink != nil {
		c.sink(est)
	}
	return nil
}

// latestBefore returns the newest sample stamped strictly before t.
func latestBefore(samples []Sample, t float64) (Sample, bool) {
	for i := len(samples) - 1; i >= 0; i-- {
		if samples[i].T < t {
			return samples[i], true
		}
	}
	return Sample{}, false
}

// Run ticks the collector at the given period until ctx is cancelled or a
// step fails. Skipped ticks are best-effort behavior, not failures.
func (c *Collector) Run(ctx context.Context, clock timeutil.Clock, period time.Duration) error {
	ticker := clock.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("live collector stopped: %d estimates, %d skipped ticks", len(c.History()), c.Skips())
			return ctx.Err()
		case <-ticker.C():
			if err := c.Tick(); err != nil {
				return err
			}
		}
	}
}

// History returns the estimates produced so far.
func (c *Collector) History() []estimator.Estimate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]estimator.Estimate, len(c.history))
	copy(out, c.history)
	return out
}

// Skips returns the number of ticks skipped for lack of new input.
func (c *Collector) Skips() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skips
}
