// Package position tracks the maker and taker venue positions and detects
// the one state the strategy must never let stand: a naked position, where
// both venues show a same-sign, non-zero exposure instead of offsetting
// each other.
package position

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arbitrage-bot/internal/config"
	"arbitrage-bot/internal/metrics"
	"arbitrage-bot/internal/venue"
	"arbitrage-bot/pkg/types"
)

// Update is submitted by the execution layer whenever a fill changes a
// venue's position. Resync does not use it; it writes the venues'
// reported positions into the state directly.
type Update struct {
	Venue    types.Venue
	Position decimal.Decimal
}

// NakedSignal is emitted when both venues carry a same-sign non-zero
// position. There is no cooldown and no automatic resume: the trade
// controller stops trading on the first signal for the rest of the process,
// a hard halt rather than the kill-switch-with-cooldown pattern used for
// ordinary risk limits.
type NakedSignal struct {
	State  types.PositionState
	Reason string
}

// Tracker aggregates position updates from both venues and the periodic
// resync poll, exposing the merged PositionState to the trade controller
// and raising NakedSignal when the two venues stop offsetting each other.
type Tracker struct {
	cfg    config.PositionConfig
	maker  venue.Client
	taker  venue.Client
	logger *slog.Logger

	mu    sync.RWMutex
	state types.PositionState

	updateCh chan Update
	nakedCh  chan NakedSignal

	lastWarn time.Time
}

func New(cfg config.PositionConfig, maker, taker venue.Client, logger *slog.Logger) *Tracker {
	return &Tracker{
		cfg:      cfg,
		maker:    maker,
		taker:    taker,
		logger:   logger.With("component", "position_tracker"),
		updateCh: make(chan Update, 32),
		nakedCh:  make(chan NakedSignal, 4),
	}
}

// Report submits a position update (non-blocking); a full channel drops the
// update and logs, since a resync a moment later will correct the state.
func (t *Tracker) Report(u Update) {
	select {
	case t.updateCh <- u:
	default:
		t.logger.Warn("position update channel full, dropping", "venue", u.Venue)
	}
}

// NakedCh returns the channel the trade controller watches for halt signals.
func (t *Tracker) NakedCh() <-chan NakedSignal { return t.nakedCh }

// State returns the current merged position snapshot.
func (t *Tracker) State() types.PositionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Run processes submitted updates and periodically resyncs against the
// authoritative venue position endpoints, the same defense-in-depth the
// reference bot applies against missed fill notifications.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.ResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u := <-t.updateCh:
			t.apply(u)
		case <-ticker.C:
			t.resync(ctx)
		}
	}
}

func (t *Tracker) apply(u Update) {
	t.mu.Lock()
	now := time.Now()
	if t.state.OpenedAt.IsZero() && !u.Position.IsZero() {
		t.state.OpenedAt = now
	}
	switch u.Venue {
	case types.VenueMaker:
		t.state.MakerPosition = u.Position
	case types.VenueTaker:
		t.state.TakerPosition = u.Position
	}
	t.state.UpdatedAt = now
	if t.state.IsFlat() {
		t.state.OpenedAt = time.Time{}
	}
	snapshot := t.state
	t.mu.Unlock()

	t.checkNaked(snapshot)
}

// Resync triggers an immediate authoritative resync, outside the periodic
// cadence, used by the trade controller to verify the combined position
// once both legs of a pipeline have completed (spec §4.6 step 5).
func (t *Tracker) Resync(ctx context.Context) {
	t.resync(ctx)
}

// resync polls both venues' authoritative position endpoints and reconciles
// them against the locally tracked state, warning (rate-limited) on
// divergence beyond Tolerance rather than trusting fill-driven updates
// blindly.
func (t *Tracker) resync(ctx context.Context) {
	makerPos, err := t.maker.Position(ctx)
	if err != nil {
		t.logger.Warn("resync: maker position query failed", "error", err)
		return
	}
	takerPos, err := t.taker.Position(ctx)
	if err != nil {
		t.logger.Warn("resync: taker position query failed", "error", err)
		return
	}

	tolerance, _ := decimal.NewFromString(t.cfg.Tolerance)

	t.mu.Lock()
	makerDrift := makerPos.Sub(t.state.MakerPosition).Abs()
	takerDrift := takerPos.Sub(t.state.TakerPosition).Abs()
	if makerDrift.GreaterThan(tolerance) || takerDrift.GreaterThan(tolerance) {
		if time.Since(t.lastWarn) > t.cfg.WarningInterval {
			t.lastWarn = time.Now()
			t.logger.Warn("position drift detected, resyncing from venue",
				"maker_local", t.state.MakerPosition, "maker_venue", makerPos,
				"taker_local", t.state.TakerPosition, "taker_venue", takerPos,
			)
		}
	}
	t.state.MakerPosition = makerPos
	t.state.TakerPosition = takerPos
	t.state.UpdatedAt = time.Now()
	if t.state.IsFlat() {
		t.state.OpenedAt = time.Time{}
	} else if t.state.OpenedAt.IsZero() {
		t.state.OpenedAt = time.Now()
	}
	snapshot := t.state
	t.mu.Unlock()

	t.checkNaked(snapshot)
}

func (t *Tracker) checkNaked(state types.PositionState) {
	if !state.IsNaked() {
		return
	}
	reason := fmt.Sprintf("same-sign exposure on both venues: maker=%s taker=%s",
		state.MakerPosition, state.TakerPosition)
	t.logger.Error("NAKED POSITION DETECTED", "reason", reason)
	metrics.NakedPositionEvents.Inc()

	select {
	case t.nakedCh <- NakedSignal{State: state, Reason: reason}:
	default:
	}
}
