// Package execution runs the per-tick trading loop: it watches the BBO
// feeds of both venues, compares the long/short spread to the current
// threshold (entry) or close-stage requirement (exit), and on a signal
// places the maker leg then hedges any fill on the taker venue.
package execution

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"arbitrage-bot/internal/closepolicy"
	"arbitrage-bot/internal/datalog"
	"arbitrage-bot/internal/metrics"
	"arbitrage-bot/internal/position"
	"arbitrage-bot/internal/threshold"
	"arbitrage-bot/internal/venue"
	"arbitrage-bot/pkg/types"
)

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Config parameterizes the controller's per-tick behavior.
type Config struct {
	OrderSize      decimal.Decimal
	MaxPosition    decimal.Decimal
	TickInterval   time.Duration
	PriceTolerance decimal.Decimal
}

// TradeController is the strategy's main loop: fetch quotes, compare
// spreads against thresholds, and drive the maker/taker leg pair.
type TradeController struct {
	cfg   Config
	maker venue.Client
	taker venue.Client

	thresholds *threshold.Engine
	closeSel   *closepolicy.Selector
	positions  *position.Tracker

	makerUpdates <-chan types.OrderUpdate
	takerUpdates <-chan types.OrderUpdate

	logger *slog.Logger

	halted bool

	dataLogger     *datalog.Logger
	bboLogInterval time.Duration
	lastBBOLog     time.Time
}

// SetDataLogger attaches the CSV trade/BBO logger. Optional: a controller
// with no data logger simply skips the CSV side-effects, per spec §6
// treating CSV emission as an external collaborator the core doesn't
// require to function.
func (c *TradeController) SetDataLogger(l *datalog.Logger, bboLogInterval time.Duration) {
	c.dataLogger = l
	c.bboLogInterval = bboLogInterval
}

func New(
	cfg Config,
	maker, taker venue.Client,
	thresholds *threshold.Engine,
	closeSel *closepolicy.Selector,
	positions *position.Tracker,
	logger *slog.Logger,
) *TradeController {
	return &TradeController{
		cfg:          cfg,
		maker:        maker,
		taker:        taker,
		thresholds:   thresholds,
		closeSel:     closeSel,
		positions:    positions,
		makerUpdates: maker.OrderUpdates(),
		takerUpdates: taker.OrderUpdates(),
		logger:       logger.With("component", "trade_controller"),
	}
}

// Run is the main loop. Blocks until ctx is cancelled. A naked-position
// signal sets the halted flag: later ticks are skipped and trading is not
// resumed for the rest of the process, but Run keeps running.
func (c *TradeController) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case sig := <-c.positions.NakedCh():
			c.halted = true
			c.logger.Error("trading halted: naked position", "reason", sig.Reason)

		case <-ticker.C:
			if c.halted {
				continue
			}
			c.tick(ctx)
		}
	}
}

// tick is one evaluation cycle: fetch both quotes, compute spreads, check
// entry/exit conditions, and execute at most one trade.
func (c *TradeController) tick(ctx context.Context) {
	makerQuote, err := c.maker.FetchBBO(ctx)
	if err != nil {
		c.logger.Warn("maker bbo unavailable", "error", err)
		return
	}
	takerQuote, err := c.taker.FetchBBO(ctx)
	if err != nil {
		c.logger.Warn("taker bbo unavailable", "error", err)
		return
	}
	if !makerQuote.Valid() || !takerQuote.Valid() {
		return
	}

	// Long spread: buy on maker at its bid, sell back on taker at its bid.
	// Short spread: sell on maker at its ask, buy back on taker at its ask.
	// Both are absolute quote-currency differences, not percentages — §3.
	longSpread := takerQuote.Bid.Sub(makerQuote.Bid)
	shortSpread := makerQuote.Ask.Sub(takerQuote.Ask)

	c.thresholds.AddObservation(types.SpreadSample{
		LongSpread:  longSpread,
		ShortSpread: shortSpread,
		Timestamp:   time.Now(),
	})

	thresholds := c.thresholds.Thresholds()
	state := c.positions.State()
	currentPosition := state.MakerPosition

	metrics.LongSpread.Set(mustFloat(longSpread))
	metrics.ShortSpread.Set(mustFloat(shortSpread))
	metrics.LongThreshold.Set(mustFloat(thresholds.LongThreshold))
	metrics.ShortThreshold.Set(mustFloat(thresholds.ShortThreshold))
	metrics.MakerPosition.Set(mustFloat(state.MakerPosition))
	metrics.TakerPosition.Set(mustFloat(state.TakerPosition))

	if state.MakerPosition.Abs().GreaterThan(c.cfg.OrderSize.Mul(decimal.NewFromInt(2))) {
		c.logger.Error("position diff too large, halting", "maker_position", state.MakerPosition)
		c.halted = true
		return
	}

	stage := c.closeSel.Select(state.HoldingTime(time.Now()))

	// close_short_th = max(open_short_th * close_mul, min_close), per the
	// time-staged close policy: the close requirement is never below the
	// stage's floor, but starts from the prevailing open threshold
	// scaled down by the stage's multiplier.
	closeShortThreshold := decimal.Max(thresholds.ShortThreshold.Mul(stage.CloseMultiplier), stage.MinCloseSpread)

	// max_pos gates both entry directions: a position may only open or add
	// while it would stay within -max_pos, per §3's TradeSignal derivation.
	withinMaxPosition := c.cfg.MaxPosition.IsZero() || currentPosition.GreaterThan(c.cfg.MaxPosition.Neg())

	longSignal := longSpread.GreaterThan(thresholds.LongThreshold) && currentPosition.LessThanOrEqual(decimal.Zero) && withinMaxPosition
	shortSignal := (currentPosition.IsPositive() && shortSpread.GreaterThan(closeShortThreshold)) ||
		(currentPosition.IsZero() && shortSpread.GreaterThan(thresholds.ShortThreshold) && withinMaxPosition)
	c.logBBO(makerQuote, takerQuote, longSpread, shortSpread, thresholds, longSignal, shortSignal)

	// Asymmetric gating preserved exactly as the reference bot implements
	// it: a long entry requires current_position <= 0 (it can open from
	// flat or buy back while already short), but a short entry only fires from
	// exactly flat — once short, exits are driven by the close-spread
	// branch below, not by re-evaluating the short-entry threshold.
	switch {
	case longSignal:
		c.executeLong(ctx, makerQuote, takerQuote, longSpread, thresholds.LongThreshold, false, "")

	case currentPosition.IsPositive():
		if shortSpread.GreaterThan(closeShortThreshold) {
			c.executeShort(ctx, makerQuote, takerQuote, shortSpread, closeShortThreshold, true, stage.Name)
		}

	case currentPosition.IsZero():
		if shortSpread.GreaterThan(thresholds.ShortThreshold) {
			c.executeShort(ctx, makerQuote, takerQuote, shortSpread, thresholds.ShortThreshold, false, "")
		}
	}
}

// logBBO appends a CSV row hourly (idle cadence) or immediately whenever
// either side's signal fires, per §4.6 step 6 ("hourly, when idle, emit a
// status log and a BBO CSV row") and §6's "plus on each signal".
func (c *TradeController) logBBO(makerQuote, takerQuote types.BBOQuote, longSpread, shortSpread decimal.Decimal, thresholds types.ThresholdState, longSignal, shortSignal bool) {
	if c.dataLogger == nil {
		return
	}
	due := c.bboLogInterval > 0 && time.Since(c.lastBBOLog) >= c.bboLogInterval
	if !due && !longSignal && !shortSignal {
		return
	}
	c.lastBBOLog = time.Now()
	if err := c.dataLogger.LogBBO(makerQuote, takerQuote, longSpread, shortSpread,
		thresholds.LongThreshold, thresholds.ShortThreshold, longSignal, shortSignal); err != nil {
		c.logger.Warn("write bbo csv row failed", "error", err)
	}
}

func (c *TradeController) executeLong(ctx context.Context, makerQuote, takerQuote types.BBOQuote, spread, thr decimal.Decimal, isClose bool, stage string) {
	c.logger.Info("long signal", "long_spread", spread, "threshold", thr, "is_close", isClose, "stage", stage)
	c.execute(ctx, types.Buy, makerQuote.Ask, "long", isClose)
}

func (c *TradeController) executeShort(ctx context.Context, makerQuote, takerQuote types.BBOQuote, spread, thr decimal.Decimal, isClose bool, stage string) {
	c.logger.Info("short signal", "short_spread", spread, "threshold", thr, "is_close", isClose, "stage", stage)
	c.execute(ctx, types.Sell, makerQuote.Bid, "short", isClose)
}

// execute runs the maker leg then, on a fill, hedges on the taker venue.
// expectedPrice is the maker touch that triggered the signal: runMakerLeg
// re-reads the maker quote and abandons the trade, before placing any
// order, if that touch has moved more than PriceTolerance percent. The
// taker hedge is placed without any price check.
func (c *TradeController) execute(ctx context.Context, side types.Side, expectedPrice decimal.Decimal, direction string, isClose bool) {
	result, err := c.runMakerLeg(ctx, side, c.cfg.OrderSize, expectedPrice, c.makerUpdates)
	if err != nil {
		c.logger.Error("maker leg failed", "error", err)
		return
	}
	if !result.Filled {
		c.logger.Info("maker leg did not fill, trade abandoned")
		return
	}

	c.reportMakerFill(side, result)

	takerResult, err := c.runTakerLeg(ctx, result, side)
	if err != nil {
		c.logger.Error("taker hedge failed, position is now naked until resolved", "error", err)
		return
	}

	c.reportTakerFill(side.Opposite(), takerResult)

	if c.dataLogger != nil {
		if err := c.dataLogger.LogTrade(types.VenueMaker, side, result.FillPrice, result.FilledSize); err != nil {
			c.logger.Warn("write trade csv row failed", "venue", types.VenueMaker, "error", err)
		}
		if err := c.dataLogger.LogTrade(types.VenueTaker, side.Opposite(), takerResult.FillPrice, takerResult.FilledSize); err != nil {
			c.logger.Warn("write trade csv row failed", "venue", types.VenueTaker, "error", err)
		}
	}

	kind := "open"
	if isClose {
		kind = "close"
	}
	metrics.TradesCompleted.WithLabelValues(direction, kind).Inc()

	c.logger.Info("trade complete", "side", side, "size", result.FilledSize, "fill_price", refPriceForHedge(result))

	// §4.6 step 5: verify the combined position once both legs are done.
	c.positions.Resync(ctx)
}

func (c *TradeController) reportMakerFill(side types.Side, result makerLegResult) {
	delta := result.FilledSize
	if side == types.Sell {
		delta = delta.Neg()
	}
	c.positions.Report(position.Update{
		Venue:    types.VenueMaker,
		Position: c.positions.State().MakerPosition.Add(delta),
	})
}

// reportTakerFill applies the taker leg's actually-confirmed filled size,
// not the maker's requested hedge size: partial-fill conservation (§8,
// "partial-fill hedge conservation") depends on crediting only what the
// taker venue really executed.
func (c *TradeController) reportTakerFill(takerSide types.Side, result takerLegResult) {
	delta := result.FilledSize
	if takerSide == types.Sell {
		delta = delta.Neg()
	}
	c.positions.Report(position.Update{
		Venue:    types.VenueTaker,
		Position: c.positions.State().TakerPosition.Add(delta),
	})
}
