package upkeep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/adapter"
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
)

// State is the upkeep engine state
type State string

const (
	// StateArmed means the interval has elapsed and upkeep may run
	StateArmed State = "armed"
	// StateCooldown means the interval since the last upkeep has not elapsed yet
	StateCooldown State = "cooldown"
)

// Source gives the engine access to the contributions of the current day
type Source interface {
	// CurrentDay returns the active day bucket
	CurrentDay(ctx context.Context) (uint64, error)
	// ContributionsOfDay returns the contributions of a day bucket
	ContributionsOfDay(ctx context.Context, day uint64) ([]domain.Contribution, error)
	// AdvanceDay moves to the next day bucket and returns it
	AdvanceDay(ctx context.Context) (uint64, error)
}

// Minter issues the badge for a winning contribution
type Minter interface {
	// MintBest mints the badge and returns its content snapshot
	MintBest(ctx context.Context, winner domain.Contribution, mintedAt time.Time) (domain.Badge, error)
}

// Result reports what an upkeep run did
type Result struct {
	// Day is the day bucket that was evaluated
	Day uint64
	// Minted is false when the day had no candidate
	Minted bool
	Winner domain.Contribution
	Badge  domain.Badge
	// NextDay is the day bucket after the run
	NextDay uint64
}

// Engine is the daily selection and upkeep state machine
type Engine struct {
	clock    adapter.Clock
	interval time.Duration

	mu            sync.Mutex
	lastTimestamp time.Time
	paused        bool
}

// NewEngine creates an engine deployed at the clock's current time.
// It starts in cooldown: the first upkeep is due one interval after deployment.
func NewEngine(clock adapter.Clock, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = domain.DefaultUpkeepInterval
	}
	return &Engine{
		clock:         clock,
		interval:      interval,
		lastTimestamp: clock.Now(),
	}
}

// Interval returns the minting interval
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// LastTimestamp returns the time of the last successful upkeep, or of deployment
func (e *Engine) LastTimestamp() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastTimestamp
}

// Pause makes every upkeep call fail with ErrPaused
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

// Unpause lifts the pause switch
func (e *Engine) Unpause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
}

// Paused reports whether the pause switch is on
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// State returns the current state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.intervalMet() {
		return StateArmed
	}
	return StateCooldown
}

// IsMintingIntervalMet reports whether the interval since the last upkeep has elapsed
func (e *Engine) IsMintingIntervalMet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.intervalMet()
}

// CheckUpkeep reports whether PerformUpkeep would be accepted
func (e *Engine) CheckUpkeep() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.paused && e.intervalMet()
}

func (e *Engine) intervalMet() bool {
	return e.clock.Since(e.lastTimestamp) > e.interval
}

// PerformUpkeep selects the top contribution of the current day and mints its badge.
// An empty day is a no-op that keeps the engine armed. The engine enters cooldown only
// once the badge is minted and the day is advanced.
func (e *Engine) PerformUpkeep(ctx context.Context, source Source, minter Minter) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return Result{}, domain.ErrPaused
	}
	if !e.intervalMet() {
		return Result{}, domain.ErrMintingIntervalNotMet
	}

	day, err := source.CurrentDay(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get current day: %w", err)
	}

	contributions, err := source.ContributionsOfDay(ctx, day)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list contributions of day %d: %w", day, err)
	}

	winner, ok := SelectTop(contributions, day)
	if !ok {
		logger.InfoCtx(ctx, "No contribution to reward", zap.Uint64("day", day))
		return Result{Day: day, NextDay: day}, nil
	}

	now := e.clock.Now()
	badge, err := minter.MintBest(ctx, winner, now)
	if err != nil {
		return Result{}, fmt.Errorf("failed to mint badge for contribution %d: %w", winner.ID, err)
	}

	next, err := source.AdvanceDay(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to advance day: %w", err)
	}
	e.lastTimestamp = now

	logger.InfoCtx(ctx, "Upkeep performed",
		zap.Uint64("day", day),
		zap.Uint64("contributionID", winner.ID),
		zap.Int64("votes", winner.Votes),
		zap.Uint64("tokenID", badge.TokenID),
	)

	return Result{
		Day:     day,
		Minted:  true,
		Winner:  winner,
		Badge:   badge,
		NextDay: next,
	}, nil
}
