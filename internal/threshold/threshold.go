// Package threshold computes the dynamic long/short spread thresholds that
// gate trade entry, tracking a bounded history of recent spread
// observations and periodically recomputing a percentile cutoff from them.
package threshold

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arbitrage-bot/pkg/types"
)

// Config parameterizes the recompute cadence and bounds.
type Config struct {
	UseDynamic     bool
	WindowSize     int
	UpdateInterval time.Duration
	MinThreshold   decimal.Decimal
	MaxThreshold   decimal.Decimal
	Percentile     float64

	// StaticLong/StaticShort are used verbatim when UseDynamic is false.
	StaticLong  decimal.Decimal
	StaticShort decimal.Decimal
}

const warmupSamples = 100

// Engine maintains bounded FIFO windows of long and short spread samples
// and recomputes thresholds from their percentile on a fixed interval,
// holding the floor (MinThreshold) until enough samples have accumulated.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	longWindow  []decimal.Decimal
	shortWindow []decimal.Decimal
	state       types.ThresholdState
	lastUpdate  time.Time
}

func New(cfg Config, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:    cfg,
		logger: logger.With("component", "threshold_engine"),
		state: types.ThresholdState{
			LongThreshold:  cfg.MinThreshold,
			ShortThreshold: cfg.MinThreshold,
		},
	}
	if !cfg.UseDynamic {
		e.state.LongThreshold = cfg.StaticLong
		e.state.ShortThreshold = cfg.StaticShort
	}
	return e
}

// AddObservation records a new spread sample and recomputes thresholds if
// UpdateInterval has elapsed since the last recompute. Static mode ignores
// observations entirely.
func (e *Engine) AddObservation(sample types.SpreadSample) {
	if !e.cfg.UseDynamic {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.longWindow = pushBounded(e.longWindow, sample.LongSpread, e.cfg.WindowSize)
	e.shortWindow = pushBounded(e.shortWindow, sample.ShortSpread, e.cfg.WindowSize)
	e.state.SampleCount = len(e.longWindow)

	if e.lastUpdate.IsZero() {
		e.lastUpdate = sample.Timestamp
	}
	if sample.Timestamp.Sub(e.lastUpdate) >= e.cfg.UpdateInterval {
		e.recompute()
		e.lastUpdate = sample.Timestamp
	}
}

// ForceUpdate recomputes thresholds immediately regardless of the interval.
// Below the warmup sample count it leaves the thresholds unchanged.
func (e *Engine) ForceUpdate() {
	if !e.cfg.UseDynamic {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recompute()
}

// Thresholds returns the current threshold snapshot.
func (e *Engine) Thresholds() types.ThresholdState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// recompute sorts both windows and takes the value at the configured
// percentile index, clamping to [MinThreshold, MaxThreshold]. Below
// warmupSamples it leaves thresholds at the floor: a handful of
// observations produce a percentile estimate too noisy to trade on.
func (e *Engine) recompute() {
	if len(e.longWindow) < warmupSamples {
		return
	}

	longMean, longStdDev := meanStdDev(e.longWindow)
	shortMean, shortStdDev := meanStdDev(e.shortWindow)

	e.state = types.ThresholdState{
		LongThreshold:  percentileClamped(e.longWindow, e.cfg.Percentile, e.cfg.MinThreshold, e.cfg.MaxThreshold),
		ShortThreshold: percentileClamped(e.shortWindow, e.cfg.Percentile, e.cfg.MinThreshold, e.cfg.MaxThreshold),
		LongMean:       longMean,
		LongStdDev:     longStdDev,
		ShortMean:      shortMean,
		ShortStdDev:    shortStdDev,
		SampleCount:    len(e.longWindow),
	}

	e.logger.Info("thresholds recomputed",
		"long_threshold", e.state.LongThreshold,
		"short_threshold", e.state.ShortThreshold,
		"samples", e.state.SampleCount,
	)
}

func pushBounded(window []decimal.Decimal, v decimal.Decimal, max int) []decimal.Decimal {
	window = append(window, v)
	if len(window) > max {
		window = window[len(window)-max:]
	}
	return window
}

func percentileClamped(window []decimal.Decimal, percentile float64, min, max decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(window))
	copy(sorted, window)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	idx := int(float64(len(sorted)) * percentile)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}

	v := sorted[idx]
	if v.LessThan(min) {
		return min
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}

func meanStdDev(window []decimal.Decimal) (mean, stdDev decimal.Decimal) {
	if len(window) == 0 {
		return decimal.Zero, decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range window {
		sum = sum.Add(v)
	}
	n := decimal.NewFromInt(int64(len(window)))
	mean = sum.Div(n)

	variance := decimal.Zero
	for _, v := range window {
		d := v.Sub(mean)
		variance = variance.Add(d.Mul(d))
	}
	variance = variance.Div(n)
	stdDev = sqrtDecimal(variance)
	return mean, stdDev
}

// sqrtDecimal approximates a square root via Newton's method; decimal has
// no native Sqrt and the teacher's codebase never needed one, so this stays
// local to the one caller that does.
func sqrtDecimal(v decimal.Decimal) decimal.Decimal {
	if v.Sign() <= 0 {
		return decimal.Zero
	}
	x := v
	two := decimal.NewFromInt(2)
	for i := 0; i < 30; i++ {
		x = x.Add(v.Div(x)).Div(two)
	}
	return x
}
