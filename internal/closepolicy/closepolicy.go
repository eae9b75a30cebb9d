// Package closepolicy selects the spread requirement for closing an open
// position based on how long it has been held: the longer a position sits
// open, the cheaper the exit the bot is willing to accept, down to and past
// a break-even spread in the final stage.
package closepolicy

import (
	"time"

	"github.com/shopspring/decimal"

	"arbitrage-bot/internal/config"
)

// Stage describes the close requirement in effect for a given holding time.
type Stage struct {
	Name            string
	CloseMultiplier decimal.Decimal
	MinCloseSpread  decimal.Decimal
}

// Selector picks a Stage by holding duration, derived from four age bands:
// default (<stage1), stage1, stage2, and stage3+.
type Selector struct {
	stage1Age time.Duration
	stage2Age time.Duration
	stage3Age time.Duration

	defaultStage Stage
	stage1       Stage
	stage2       Stage
	stage3       Stage
}

func New(cfg config.CloseConfig) (*Selector, error) {
	closeMult, err := decimal.NewFromString(cfg.CloseThresholdMultiplier)
	if err != nil {
		return nil, err
	}
	minSpread, err := decimal.NewFromString(cfg.MinCloseSpread)
	if err != nil {
		return nil, err
	}
	s1Mult, err := decimal.NewFromString(cfg.Stage1CloseMultiplier)
	if err != nil {
		return nil, err
	}
	s1Min, err := decimal.NewFromString(cfg.Stage1MinSpread)
	if err != nil {
		return nil, err
	}
	s2Mult, err := decimal.NewFromString(cfg.Stage2CloseMultiplier)
	if err != nil {
		return nil, err
	}
	s2Min, err := decimal.NewFromString(cfg.Stage2MinSpread)
	if err != nil {
		return nil, err
	}
	s3Mult, err := decimal.NewFromString(cfg.Stage3CloseMultiplier)
	if err != nil {
		return nil, err
	}
	s3Min, err := decimal.NewFromString(cfg.Stage3MinSpread)
	if err != nil {
		return nil, err
	}

	return &Selector{
		stage1Age: durationFromHours(cfg.Stage1Hours),
		stage2Age: durationFromHours(cfg.Stage2Hours),
		stage3Age: durationFromHours(cfg.Stage3Hours),

		defaultStage: Stage{Name: "default", CloseMultiplier: closeMult, MinCloseSpread: minSpread},
		stage1:       Stage{Name: "stage1_relaxed", CloseMultiplier: s1Mult, MinCloseSpread: s1Min},
		stage2:       Stage{Name: "stage2_breakeven", CloseMultiplier: s2Mult, MinCloseSpread: s2Min},
		stage3:       Stage{Name: "stage3_force", CloseMultiplier: s3Mult, MinCloseSpread: s3Min},
	}, nil
}

// Select returns the Stage in effect for the given holding duration.
func (s *Selector) Select(held time.Duration) Stage {
	switch {
	case held >= s.stage3Age:
		return s.stage3
	case held >= s.stage2Age:
		return s.stage2
	case held >= s.stage1Age:
		return s.stage1
	default:
		return s.defaultStage
	}
}

func durationFromHours(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}
