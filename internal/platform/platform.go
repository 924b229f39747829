package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/adapter"
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/store"
	"github.com/amplifrens/amplifrens-indexer/internal/upkeep"
	"github.com/amplifrens/amplifrens-indexer/internal/views"
)

// Config holds the configuration of an in-process platform
type Config struct {
	Chain domain.Chain
	// ContractAddress is the facade address stamped on every event
	ContractAddress string
	// Admin holds the admin role
	Admin          string
	UpkeepInterval time.Duration
	StartBlock     uint64
}

// Platform is an in-process model of the AmpliFrens contracts behind their facade.
// Calls are serialized; each successful mutating call mines one block of events.
type Platform struct {
	admin  string
	clock  adapter.Clock
	log    *EventLog
	engine *upkeep.Engine

	mu            sync.Mutex
	paused        bool
	contributions *contributions
	profiles      *profiles
	sbt           *sbt
}

// New creates a platform with empty registries
func New(cfg Config, clock adapter.Clock) (*Platform, error) {
	if !domain.IsValidChain(cfg.Chain) {
		return nil, fmt.Errorf("%w: unsupported chain %q", domain.ErrInvalidInput, cfg.Chain)
	}
	if !domain.IsRealAddress(cfg.Admin) {
		return nil, fmt.Errorf("%w: invalid admin address %q", domain.ErrInvalidInput, cfg.Admin)
	}
	if !domain.IsRealAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("%w: invalid contract address %q", domain.ErrInvalidInput, cfg.ContractAddress)
	}

	return &Platform{
		admin:         domain.NormalizeAddress(cfg.Admin),
		clock:         clock,
		log:           NewEventLog(cfg.Chain, cfg.ContractAddress, cfg.StartBlock),
		engine:        upkeep.NewEngine(clock, cfg.UpkeepInterval),
		contributions: newContributions(),
		profiles:      newProfiles(),
		sbt:           newSBT(),
	}, nil
}

// Log returns the platform's event log
func (p *Platform) Log() *EventLog {
	return p.log
}

func (p *Platform) isAdmin(caller string) bool {
	return domain.NormalizeAddress(caller) == p.admin
}

func (p *Platform) requireAdmin(caller string) error {
	if !p.isAdmin(caller) {
		return fmt.Errorf("%w: %s is not an admin", domain.ErrUnauthorized, caller)
	}
	return nil
}

// mutate runs fn as one transaction whose events are mined only if fn succeeds
func (p *Platform) mutate(caller string, fn func(tx *txn) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return domain.ErrPaused
	}
	if !domain.IsRealAddress(caller) {
		return fmt.Errorf("%w: invalid caller %q", domain.ErrUnauthorized, caller)
	}

	tx := p.log.begin(p.clock.Timestamp())
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	p.log.commit(tx)
	return nil
}

// =============================================================================
// Contributions
// =============================================================================

// CreateContribution submits a contribution authored by caller and returns its id
func (p *Platform) CreateContribution(caller string, category domain.Category, title, url string) (uint64, error) {
	var id uint64
	err := p.mutate(caller, func(tx *txn) error {
		var err error
		id, err = p.contributions.create(tx, caller, category, title, url)
		return err
	})
	return id, err
}

// UpdateContribution changes a contribution; only its author or an admin may
func (p *Platform) UpdateContribution(caller string, id uint64, category domain.Category, title, url string) error {
	return p.mutate(caller, func(tx *txn) error {
		return p.contributions.update(tx, caller, p.isAdmin(caller), id, category, title, url)
	})
}

// RemoveContribution removes a contribution; only its author or an admin may
func (p *Platform) RemoveContribution(caller string, id uint64) error {
	return p.mutate(caller, func(tx *txn) error {
		return p.contributions.remove(tx, caller, p.isAdmin(caller), id)
	})
}

// UpvoteContribution casts an upvote
func (p *Platform) UpvoteContribution(caller string, id uint64) error {
	return p.mutate(caller, func(tx *txn) error {
		return p.contributions.vote(tx, caller, id, domain.PolarityUp)
	})
}

// DownvoteContribution casts a downvote
func (p *Platform) DownvoteContribution(caller string, id uint64) error {
	return p.mutate(caller, func(tx *txn) error {
		return p.contributions.vote(tx, caller, id, domain.PolarityDown)
	})
}

// ResetContributions removes every live contribution. Admin only.
func (p *Platform) ResetContributions(caller string) error {
	return p.mutate(caller, func(tx *txn) error {
		if err := p.requireAdmin(caller); err != nil {
			return err
		}
		p.contributions.reset(tx, caller)
		return nil
	})
}

// GetContribution returns a live contribution
func (p *Platform) GetContribution(id uint64) (domain.Contribution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	item, err := p.contributions.get(id)
	if err != nil {
		return domain.Contribution{}, err
	}
	return *item, nil
}

// ContributionsCount returns the number of live contributions
func (p *Platform) ContributionsCount() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contributions.live
}

// TopContribution returns the current winner of the active day
func (p *Platform) TopContribution() (domain.Contribution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contributions.top()
}

// CurrentDay returns the day bucket new contributions are assigned to
func (p *Platform) CurrentDay() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contributions.day
}

// =============================================================================
// Profiles
// =============================================================================

// CreateProfile registers the caller's profile
func (p *Platform) CreateProfile(caller string, details domain.ProfileDetails) error {
	return p.mutate(caller, func(tx *txn) error {
		return p.profiles.create(tx, caller, details)
	})
}

// UpdateProfile changes the caller's profile
func (p *Platform) UpdateProfile(caller string, details domain.ProfileDetails) error {
	return p.mutate(caller, func(tx *txn) error {
		return p.profiles.update(tx, caller, details)
	})
}

// DeleteProfile deletes a profile. Admin only.
func (p *Platform) DeleteProfile(caller, address string) error {
	return p.mutate(caller, func(tx *txn) error {
		if err := p.requireAdmin(caller); err != nil {
			return err
		}
		return p.profiles.delete(tx, address)
	})
}

// BlacklistProfile blacklists a profile with a reason. Admin only.
func (p *Platform) BlacklistProfile(caller, address, reason string) error {
	return p.mutate(caller, func(tx *txn) error {
		if err := p.requireAdmin(caller); err != nil {
			return err
		}
		return p.profiles.blacklist(tx, address, reason)
	})
}

// GetProfile returns a live profile
func (p *Platform) GetProfile(address string) (domain.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	profile, err := p.profiles.get(address)
	if err != nil {
		return domain.Profile{}, err
	}
	return *profile, nil
}

// GetProfileBy returns the live profile whose field equals value
func (p *Platform) GetProfileBy(field store.ProfileField, value string) (domain.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	profile, err := p.profiles.findBy(field, value)
	if err != nil {
		return domain.Profile{}, err
	}
	return *profile, nil
}

// GetBlacklistReason returns why an address was blacklisted
func (p *Platform) GetBlacklistReason(address string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profiles.blacklistReason(address)
}

// HasProfile reports whether the address has a live profile
func (p *Platform) HasProfile(address string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.profiles.get(address)
	return err == nil
}

// ProfilesCount returns the number of live profiles
func (p *Platform) ProfilesCount() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profiles.live
}

// =============================================================================
// SBT
// =============================================================================

// RevokeSBT invalidates a badge. Admin only.
func (p *Platform) RevokeSBT(caller string, tokenID uint64) error {
	return p.mutate(caller, func(tx *txn) error {
		if err := p.requireAdmin(caller); err != nil {
			return err
		}
		return p.sbt.revoke(tx, tokenID)
	})
}

// BalanceOf returns the number of badges ever minted to owner
func (p *Platform) BalanceOf(owner string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sbt.balanceOf(owner)
}

// OwnerOf returns the owner of a badge
func (p *Platform) OwnerOf(tokenID uint64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, err := p.sbt.token(tokenID)
	if err != nil {
		return "", err
	}
	return t.badge.Owner, nil
}

// IsValid reports whether a badge has not been revoked
func (p *Platform) IsValid(tokenID uint64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, err := p.sbt.token(tokenID)
	if err != nil {
		return false, err
	}
	return !t.revoked, nil
}

// HasValid reports whether owner holds at least one badge that was not revoked
func (p *Platform) HasValid(owner string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sbt.hasValid(owner)
}

// EmittedCount returns the number of badges ever minted
func (p *Platform) EmittedCount() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uint64(len(p.sbt.tokens))
}

// HoldersCount returns the number of distinct badge owners
func (p *Platform) HoldersCount() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uint64(len(p.sbt.byOwner))
}

// TokenByIndex returns the token at a one-based global index
func (p *Platform) TokenByIndex(index uint64) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, err := p.sbt.token(index)
	if err != nil {
		return 0, err
	}
	return t.badge.TokenID, nil
}

// TokenOfOwnerByIndex returns the token at a zero-based index of the owner's tokens
func (p *Platform) TokenOfOwnerByIndex(owner string, index uint64) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sbt.tokenOfOwnerByIndex(owner, index)
}

// Token returns the content snapshot of a badge and its content hash
func (p *Platform) Token(tokenID uint64) (domain.Badge, string, error) {
	p.mu.Lock()
	t, err := p.sbt.token(tokenID)
	var badge domain.Badge
	if err == nil {
		badge = t.badge
	}
	p.mu.Unlock()
	if err != nil {
		return domain.Badge{}, "", err
	}

	hash, err := badge.ContentHash()
	if err != nil {
		return domain.Badge{}, "", err
	}
	return badge, hash, nil
}

// GetStatus returns the status tier of an address; ErrNoTokens when it never earned a badge
func (p *Platform) GetStatus(address string) (domain.StatusTier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sbt.status(address)
}

// =============================================================================
// Pause and upkeep
// =============================================================================

// Pause stops every mutating call, upkeep included. Admin only.
func (p *Platform) Pause(caller string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isAdmin(caller) {
		return fmt.Errorf("%w: %s is not an admin", domain.ErrUnauthorized, caller)
	}
	if p.paused {
		return domain.ErrPaused
	}
	p.paused = true
	p.engine.Pause()
	logger.Info("Platform paused", zap.String("by", caller))
	return nil
}

// Unpause resumes mutating calls. Admin only.
func (p *Platform) Unpause(caller string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isAdmin(caller) {
		return fmt.Errorf("%w: %s is not an admin", domain.ErrUnauthorized, caller)
	}
	if !p.paused {
		return fmt.Errorf("%w: platform is not paused", domain.ErrInvalidInput)
	}
	p.paused = false
	p.engine.Unpause()
	logger.Info("Platform unpaused", zap.String("by", caller))
	return nil
}

// Paused reports whether the pause switch is on
func (p *Platform) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// CheckUpkeep reports whether PerformUpkeep would mint
func (p *Platform) CheckUpkeep() bool {
	return p.engine.CheckUpkeep()
}

// IsMintingIntervalMet reports whether the upkeep interval has elapsed
func (p *Platform) IsMintingIntervalMet() bool {
	return p.engine.IsMintingIntervalMet()
}

// PerformUpkeep mints the badge of the active day's top contribution and opens the next day.
// Anyone may call it; the engine decides whether it is due.
func (p *Platform) PerformUpkeep(ctx context.Context) (upkeep.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return upkeep.Result{}, domain.ErrPaused
	}

	tx := p.log.begin(p.clock.Timestamp())
	result, err := p.engine.PerformUpkeep(ctx, &upkeepSource{c: p.contributions, tx: tx}, &upkeepMinter{sbt: p.sbt, tx: tx})
	if err != nil {
		tx.rollback()
		return upkeep.Result{}, err
	}
	p.log.commit(tx)
	return result, nil
}

// upkeepSource and upkeepMinter run under the platform lock held by PerformUpkeep

type upkeepSource struct {
	c  *contributions
	tx *txn
}

func (s *upkeepSource) CurrentDay(context.Context) (uint64, error) {
	return s.c.day, nil
}

func (s *upkeepSource) ContributionsOfDay(_ context.Context, day uint64) ([]domain.Contribution, error) {
	return s.c.ofDay(day), nil
}

func (s *upkeepSource) AdvanceDay(context.Context) (uint64, error) {
	day := s.c.incrementDayCounter()
	s.tx.onRollback(func() { s.c.day-- })
	return day, nil
}

type upkeepMinter struct {
	sbt *sbt
	tx  *txn
}

func (m *upkeepMinter) MintBest(_ context.Context, winner domain.Contribution, mintedAt time.Time) (domain.Badge, error) {
	badge := upkeep.Snapshot(winner, m.sbt.nextID(), uint64(mintedAt.Unix()))
	badge.TokenID = m.sbt.mint(m.tx, badge)

	m.tx.emit(&domain.SBTBestContribution{
		LogMeta:           m.tx.meta(),
		TopContributionID: winner.ID,
		From:              winner.Author,
		Timestamp:         m.tx.timestamp,
		Category:          winner.Category,
		Title:             winner.Title,
		URL:               winner.URL,
	})
	return badge, nil
}

// =============================================================================
// Views
// =============================================================================

// Status implements views.StateSource
func (p *Platform) Status(address string) (domain.StatusTier, error) {
	return p.GetStatus(address)
}

// MintingIntervalMet implements views.StateSource
func (p *Platform) MintingIntervalMet() bool {
	return p.engine.IsMintingIntervalMet()
}

// ProfileDetails implements views.StateSource
func (p *Platform) ProfileDetails(address string) (domain.ProfileDetails, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	profile, err := p.profiles.get(address)
	if err != nil {
		return domain.ProfileDetails{}, false
	}
	return detailsOf(profile), true
}

var _ views.StateSource = (*Platform)(nil)
