package simulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/adapter"
	"github.com/amplifrens/amplifrens-indexer/internal/api/shared/dto"
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/mapper"
	"github.com/amplifrens/amplifrens-indexer/internal/platform"
	"github.com/amplifrens/amplifrens-indexer/internal/store"
	"github.com/amplifrens/amplifrens-indexer/internal/views"
)

// maxTicksPerDay bounds how many schedule ticks a simulated day may wait for upkeep
const maxTicksPerDay = 10000

// Config holds the simulator configuration
type Config struct {
	Platform platform.Config
	// Start is the instant the simulated clock starts at
	Start time.Time
	// UpkeepSchedule is the cron expression at which upkeep is checked
	UpkeepSchedule string
	ReportWorkers  int
}

// Report is the projection produced by a simulation
type Report struct {
	Head          uint64                         `json:"head"`
	Events        int                            `json:"events"`
	CurrentDay    uint64                         `json:"current_day"`
	Contributions []dto.ContributionResponse     `json:"contributions"`
	Profiles      []dto.ProfileResponse          `json:"profiles"`
	Leaderboard   []dto.LeaderboardEntryResponse `json:"leaderboard"`
	Upkeeps       []UpkeepRun                    `json:"upkeeps"`
}

// UpkeepRun records one upkeep call made by the simulator
type UpkeepRun struct {
	At     time.Time `json:"at"`
	Day    uint64    `json:"day"`
	Minted bool      `json:"minted"`
	Winner uint64    `json:"winner,omitempty"`
}

// Simulator drives the in-process platform and indexes every mined block into a memory store
type Simulator struct {
	cfg      Config
	clock    *platform.SimulatedClock
	platform *platform.Platform
	store    store.Store
	mapper   mapper.Mapper
	schedule cron.Schedule
	accounts []string

	indexed int
	upkeeps []UpkeepRun
}

// New creates a simulator. The fixture accounts are used with the admin at index 1.
func New(cfg Config) (*Simulator, error) {
	schedule, err := cron.ParseStandard(cfg.UpkeepSchedule)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid upkeep schedule %q: %v", domain.ErrInvalidInput, cfg.UpkeepSchedule, err)
	}
	if cfg.ReportWorkers <= 0 {
		cfg.ReportWorkers = 1
	}

	clock := platform.NewSimulatedClock(cfg.Start)
	p, err := platform.New(cfg.Platform, clock)
	if err != nil {
		return nil, err
	}

	accounts := platform.Accounts(platform.FixtureAccounts)
	accounts[1] = domain.NormalizeAddress(cfg.Platform.Admin)

	return &Simulator{
		cfg:      cfg,
		clock:    clock,
		platform: p,
		store:    store.NewMemoryStore(),
		mapper:   mapper.NewMapper(views.NewSourceReader(p), adapter.NewJSON()),
		schedule: schedule,
		accounts: accounts,
	}, nil
}

// Platform returns the simulated platform
func (s *Simulator) Platform() *platform.Platform {
	return s.platform
}

// Store returns the projection store
func (s *Simulator) Store() store.Store {
	return s.store
}

// Accounts returns the participant accounts
func (s *Simulator) Accounts() []string {
	return s.accounts
}

// RunFixture runs the fixture scenario step by step
func (s *Simulator) RunFixture(ctx context.Context) error {
	for _, step := range platform.FixtureScenario(s.accounts, s.clock) {
		logger.DebugCtx(ctx, "Running step", zap.String("step", step.Name))
		if err := step.Run(ctx, s.platform); err != nil {
			return fmt.Errorf("step %q failed: %w", step.Name, err)
		}
		if err := s.Sync(ctx); err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
	}
	return nil
}

// RunDays simulates days of activity. Each day one participant contributes and another
// upvotes, then the clock follows the upkeep schedule until upkeep is due and runs it.
func (s *Simulator) RunDays(ctx context.Context, days int) error {
	participants := s.accounts[5:]
	for d := 0; d < days; d++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		author := participants[d%len(participants)]
		voter := participants[(d+1)%len(participants)]
		id, err := s.platform.CreateContribution(author, domain.CategoryMisc,
			fmt.Sprintf("Simulated contribution %d", d+1), "https://www.dummy.xyz")
		if err != nil {
			return fmt.Errorf("failed to create contribution: %w", err)
		}
		if err := s.platform.UpvoteContribution(voter, id); err != nil {
			return fmt.Errorf("failed to upvote contribution %d: %w", id, err)
		}
		if err := s.Sync(ctx); err != nil {
			return err
		}

		if err := s.waitForUpkeep(); err != nil {
			return err
		}
		result, err := s.platform.PerformUpkeep(ctx)
		if err != nil {
			return fmt.Errorf("upkeep failed: %w", err)
		}
		s.recordUpkeep(result.Day, result.Minted, result.Winner.ID)
		if err := s.Sync(ctx); err != nil {
			return err
		}
	}
	return nil
}

// waitForUpkeep advances the clock along the schedule until upkeep is due
func (s *Simulator) waitForUpkeep() error {
	for tick := 0; tick < maxTicksPerDay; tick++ {
		if s.platform.CheckUpkeep() {
			return nil
		}
		now := s.clock.Now()
		next := s.schedule.Next(now)
		if next.IsZero() {
			return errors.New("upkeep schedule has no next activation")
		}
		s.clock.Advance(next.Sub(now))
	}
	return fmt.Errorf("upkeep not due after %d schedule ticks", maxTicksPerDay)
}

func (s *Simulator) recordUpkeep(day uint64, minted bool, winner uint64) {
	run := UpkeepRun{At: s.clock.Now(), Day: day, Minted: minted}
	if minted {
		run.Winner = winner
	}
	s.upkeeps = append(s.upkeeps, run)
}

// Sync projects the events mined since the last call.
// Views are answered from the live platform, so this must run right after each mutation.
func (s *Simulator) Sync(ctx context.Context) error {
	events := s.platform.Log().Events(0)
	for _, e := range events[s.indexed:] {
		applied, err := s.mapper.Project(ctx, s.store, e)
		if err != nil {
			return fmt.Errorf("failed to project %s event: %w", e.Kind(), err)
		}
		if !applied {
			logger.WarnCtx(ctx, "Event already projected", zap.String("key", e.Meta().LogKey()))
		}
	}
	s.indexed = len(events)
	return nil
}

// Report reads the projection back. Profiles and status tiers are looked up concurrently.
func (s *Simulator) Report(ctx context.Context) (*Report, error) {
	head, err := s.platform.Log().GetLatestBlock(ctx)
	if err != nil {
		return nil, err
	}
	day, err := s.store.GetCurrentDay(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current day: %w", err)
	}

	contributions, err := s.store.ListContributions(ctx, store.ContributionFilter{IncludeRemoved: true, Limit: store.MaxListLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}

	profiles, err := s.lookupProfiles(ctx)
	if err != nil {
		return nil, err
	}

	leaderboard, err := s.leaderboard(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Head:          head,
		Events:        s.platform.Log().Len(),
		CurrentDay:    day,
		Contributions: make([]dto.ContributionResponse, 0, len(contributions)),
		Profiles:      profiles,
		Leaderboard:   leaderboard,
		Upkeeps:       append([]UpkeepRun{}, s.upkeeps...),
	}
	for _, c := range contributions {
		report.Contributions = append(report.Contributions, dto.MapContributionToDTO(c))
	}
	return report, nil
}

func (s *Simulator) lookupProfiles(ctx context.Context) ([]dto.ProfileResponse, error) {
	pool := pond.NewResultPool[*domain.Profile](s.cfg.ReportWorkers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	for _, account := range s.accounts {
		address := account
		group.SubmitErr(func() (*domain.Profile, error) {
			return s.store.GetProfile(ctx, address)
		})
	}
	found, err := group.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to get profiles: %w", err)
	}

	profiles := make([]dto.ProfileResponse, 0, len(found))
	for _, p := range found {
		if p != nil {
			profiles = append(profiles, dto.MapProfileToDTO(*p))
		}
	}
	return profiles, nil
}

func (s *Simulator) leaderboard(ctx context.Context) ([]dto.LeaderboardEntryResponse, error) {
	entries, err := s.store.ListLeaderboard(ctx, store.MaxListLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard: %w", err)
	}

	pool := pond.NewResultPool[*domain.AddressStatus](s.cfg.ReportWorkers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	for _, entry := range entries {
		address := entry.Address
		group.SubmitErr(func() (*domain.AddressStatus, error) {
			return s.store.GetAddressStatus(ctx, address)
		})
	}
	statuses, err := group.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to get address statuses: %w", err)
	}

	rows := make([]dto.LeaderboardEntryResponse, 0, len(entries))
	for i, entry := range entries {
		row := dto.LeaderboardEntryResponse{
			Address:               entry.Address,
			Username:              entry.Username,
			TopContributionsCount: entry.TopContributionsCount,
		}
		if statuses[i] != nil {
			row.Status = statuses[i].Tier.String()
		}
		rows = append(rows, row)
	}
	return rows, nil
}
