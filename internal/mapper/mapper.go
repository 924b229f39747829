package mapper

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/amplifrens/amplifrens-indexer/internal/adapter"
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/metrics"
	"github.com/amplifrens/amplifrens-indexer/internal/store"
	"github.com/amplifrens/amplifrens-indexer/internal/upkeep"
	"github.com/amplifrens/amplifrens-indexer/internal/views"
	"github.com/amplifrens/amplifrens-indexer/internal/votes"
)

// Mapper projects contract events into the entity store
type Mapper interface {
	// Apply appends the raw event log and projects the event using tx.
	// Events must be applied one at a time in chain order.
	Apply(ctx context.Context, tx store.Tx, event domain.Event) error

	// Project applies the event in its own transaction.
	// It returns false without writing when the event was already applied.
	Project(ctx context.Context, st store.Store, event domain.Event) (bool, error)
}

type mapper struct {
	views views.Reader
	json  adapter.JSON
}

// NewMapper creates a mapper reading non-event state through viewReader
func NewMapper(viewReader views.Reader, jsonAdapter adapter.JSON) Mapper {
	return &mapper{
		views: viewReader,
		json:  jsonAdapter,
	}
}

// Project applies the event in its own transaction, skipping events already applied
func (m *mapper) Project(ctx context.Context, st store.Store, event domain.Event) (bool, error) {
	meta := event.Meta()
	applied := false

	err := st.WithTx(ctx, func(tx store.Tx) error {
		exists, err := tx.HasEventLog(ctx, meta.TxHash, meta.LogIndex)
		if err != nil {
			return fmt.Errorf("failed to check event log: %w", err)
		}
		if exists {
			return nil
		}

		if err := m.Apply(ctx, tx, event); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return applied, nil
}

// Apply appends the raw event log and dispatches to the event handler
func (m *mapper) Apply(ctx context.Context, tx store.Tx, event domain.Event) error {
	if err := domain.ValidateEvent(event); err != nil {
		return err
	}

	if err := m.appendEventLog(ctx, tx, event); err != nil {
		return err
	}

	var err error
	switch e := event.(type) {
	case *domain.ContributionCreated:
		err = m.contributionCreated(ctx, tx, e)
	case *domain.ContributionUpdated:
		err = m.contributionUpdated(ctx, tx, e)
	case *domain.ContributionRemoved:
		err = m.contributionRemoved(ctx, tx, e)
	case *domain.ContributionUpvoted:
		err = m.vote(ctx, tx, e.ContributionID, e.From, e.Timestamp, domain.PolarityUp)
	case *domain.ContributionDownvoted:
		err = m.vote(ctx, tx, e.ContributionID, e.From, e.Timestamp, domain.PolarityDown)
	case *domain.ProfileCreated:
		err = m.profileCreated(ctx, tx, e)
	case *domain.ProfileUpdated:
		err = m.profileUpdated(ctx, tx, e)
	case *domain.ProfileDeleted:
		err = m.tombstoneProfile(ctx, tx, e.Address, domain.StatusDeleted, "", e.Timestamp)
	case *domain.ProfileBlacklisted:
		err = m.tombstoneProfile(ctx, tx, e.Address, domain.StatusBlacklisted, e.Reason, e.Timestamp)
	case *domain.SBTBestContribution:
		err = m.bestContribution(ctx, tx, e)
	case *domain.SBTMinted:
		err = m.sbtMinted(ctx, tx, e)
	case *domain.SBTRevoked:
		// Revocations only keep their raw log: the leaderboard counts every badge ever earned
	default:
		err = fmt.Errorf("%w: %T", domain.ErrUnknownEvent, event)
	}
	if err != nil {
		return fmt.Errorf("failed to apply %s event %s: %w", event.Kind(), event.Meta().LogKey(), err)
	}

	return nil
}

func (m *mapper) appendEventLog(ctx context.Context, tx store.Tx, event domain.Event) error {
	payload, err := domain.EncodeEvent(m.json, event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	meta := event.Meta()
	log := &domain.EventLog{
		TxHash:          meta.TxHash,
		LogIndex:        meta.LogIndex,
		BlockNumber:     meta.BlockNumber,
		ContractAddress: domain.NormalizeAddress(meta.ContractAddress),
		Kind:            event.Kind(),
		NaturalKey:      event.NaturalKey(),
		Payload:         payload,
	}
	if err := tx.AppendEventLog(ctx, log); err != nil {
		return fmt.Errorf("failed to append event log: %w", err)
	}
	return nil
}

func (m *mapper) contributionCreated(ctx context.Context, tx store.Tx, e *domain.ContributionCreated) error {
	day, err := tx.GetCurrentDay(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current day: %w", err)
	}

	contribution := &domain.Contribution{
		ID:         e.ContributionID,
		Author:     domain.NormalizeAddress(e.From),
		Status:     domain.StatusLive,
		Category:   e.Category,
		Title:      e.Title,
		URL:        e.URL,
		Timestamp:  e.Timestamp,
		DayCounter: day,
	}

	profile, err := tx.GetProfile(ctx, e.From)
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}
	if profile != nil && profile.IsLive() {
		contribution.HasProfile = true
		contribution.Username = profile.Username
	}

	status, err := tx.GetAddressStatus(ctx, e.From)
	if err != nil {
		return fmt.Errorf("failed to get address status: %w", err)
	}
	if status != nil {
		contribution.FromStatus = status.Tier
	}

	return tx.CreateContribution(ctx, contribution)
}

// getContribution loads a contribution that events reference; a missing one is out of bounds
func getContribution(ctx context.Context, tx store.Tx, id uint64) (*domain.Contribution, error) {
	contribution, err := tx.GetContribution(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get contribution: %w", err)
	}
	if contribution == nil {
		return nil, fmt.Errorf("%w: contribution %d", domain.ErrOutOfBounds, id)
	}
	return contribution, nil
}

func (m *mapper) contributionUpdated(ctx context.Context, tx store.Tx, e *domain.ContributionUpdated) error {
	contribution, err := getContribution(ctx, tx, e.ContributionID)
	if err != nil {
		return err
	}

	contribution.Timestamp = e.Timestamp
	contribution.Category = e.Category
	contribution.Title = e.Title
	contribution.URL = e.URL

	return tx.UpdateContribution(ctx, contribution)
}

func (m *mapper) contributionRemoved(ctx context.Context, tx store.Tx, e *domain.ContributionRemoved) error {
	contribution, err := getContribution(ctx, tx, e.ContributionID)
	if err != nil {
		return err
	}

	contribution.Status = domain.StatusRemoved
	return tx.UpdateContribution(ctx, contribution)
}

// vote records a vote of the given polarity, superseding the voter's opposite record on a flip
func (m *mapper) vote(ctx context.Context, tx store.Tx, contributionID uint64, voter string, timestamp uint64, polarity domain.Polarity) error {
	contribution, err := getContribution(ctx, tx, contributionID)
	if err != nil {
		return err
	}

	records := make(map[domain.Polarity]*domain.VoteRecord, 2)
	for _, p := range []domain.Polarity{domain.PolarityUp, domain.PolarityDown} {
		record, err := tx.GetVote(ctx, contributionID, voter, p)
		if err != nil {
			return fmt.Errorf("failed to get %s vote: %w", p, err)
		}
		records[p] = record
	}

	standing := votes.Standing{
		Up:   records[domain.PolarityUp] != nil && records[domain.PolarityUp].IsLive(),
		Down: records[domain.PolarityDown] != nil && records[domain.PolarityDown].IsLive(),
	}
	transition := votes.Transit(standing, polarity)

	if superseded, ok := transition.Superseded(); ok {
		record := records[superseded]
		record.Status = domain.StatusSuperseded
		if err := tx.SaveVote(ctx, record); err != nil {
			return fmt.Errorf("failed to supersede %s vote: %w", superseded, err)
		}
	}

	if err := tx.SaveVote(ctx, &domain.VoteRecord{
		ContributionID: contributionID,
		Voter:          domain.NormalizeAddress(voter),
		Polarity:       polarity,
		Status:         domain.StatusLive,
		Timestamp:      timestamp,
	}); err != nil {
		return fmt.Errorf("failed to save %s vote: %w", polarity, err)
	}

	contribution.Votes += transition.Delta
	return tx.UpdateContribution(ctx, contribution)
}

// enrich fetches the profile fields not carried by profile events, pinned at the event block.
// A reverted view leaves the profile with what the event carries.
func (m *mapper) enrich(ctx context.Context, profile *domain.Profile, block uint64) error {
	details, err := m.views.GetProfile(ctx, profile.Address, block)
	if err != nil {
		if errors.Is(err, domain.ErrViewReverted) {
			logger.WarnCtx(ctx, "Profile view reverted, keeping event fields only",
				zap.String("address", profile.Address),
				zap.Uint64("block", block),
			)
			return nil
		}
		return fmt.Errorf("failed to read profile details: %w", err)
	}

	details.Apply(profile)
	return nil
}

func (m *mapper) profileCreated(ctx context.Context, tx store.Tx, e *domain.ProfileCreated) error {
	address := domain.NormalizeAddress(e.Address)

	profile, err := tx.GetProfile(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		profile = &domain.Profile{Address: address, Status: domain.StatusLive}
	} else if profile.Status.IsTombstone() {
		logger.WarnCtx(ctx, "Profile created over a tombstone, keeping tombstone",
			zap.String("address", address),
			zap.String("status", string(profile.Status)),
		)
	}

	profile.Username = e.Username
	profile.Timestamp = e.Timestamp
	if err := m.enrich(ctx, profile, e.BlockNumber); err != nil {
		return err
	}

	return tx.SaveProfile(ctx, profile)
}

func (m *mapper) profileUpdated(ctx context.Context, tx store.Tx, e *domain.ProfileUpdated) error {
	profile, err := getProfile(ctx, tx, e.Address)
	if err != nil {
		return err
	}

	profile.Username = e.Username
	profile.Timestamp = e.Timestamp
	if err := m.enrich(ctx, profile, e.BlockNumber); err != nil {
		return err
	}

	return tx.SaveProfile(ctx, profile)
}

func (m *mapper) tombstoneProfile(ctx context.Context, tx store.Tx, address string, status domain.EntityStatus, reason string, timestamp uint64) error {
	profile, err := getProfile(ctx, tx, address)
	if err != nil {
		return err
	}

	profile.Status = status
	profile.Timestamp = timestamp
	if status == domain.StatusBlacklisted {
		profile.BlacklistReason = reason
	}

	return tx.SaveProfile(ctx, profile)
}

func getProfile(ctx context.Context, tx store.Tx, address string) (*domain.Profile, error) {
	profile, err := tx.GetProfile(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: no profile for %s", domain.ErrOutOfBounds, domain.NormalizeAddress(address))
	}
	return profile, nil
}

func (m *mapper) bestContribution(ctx context.Context, tx store.Tx, e *domain.SBTBestContribution) error {
	day, err := tx.GetCurrentDay(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current day: %w", err)
	}

	if err := m.checkSelection(ctx, tx, day, e); err != nil {
		return err
	}

	contribution, err := tx.GetContribution(ctx, e.TopContributionID)
	if err != nil {
		return fmt.Errorf("failed to get contribution: %w", err)
	}
	if contribution != nil {
		contribution.BestContribution = true
		if err := tx.UpdateContribution(ctx, contribution); err != nil {
			return err
		}
	} else {
		logger.WarnCtx(ctx, "Best contribution is not indexed", zap.Uint64("contributionID", e.TopContributionID))
	}

	if err := tx.SetCurrentDay(ctx, day+1); err != nil {
		return fmt.Errorf("failed to advance current day: %w", err)
	}
	return nil
}

// checkSelection recomputes the winner of day from the projection and reports a disagreement
// with the on-chain winner. A mismatch never fails the event.
func (m *mapper) checkSelection(ctx context.Context, tx store.Tx, day uint64, e *domain.SBTBestContribution) error {
	contributions, err := contributionsOfDay(ctx, tx, day)
	if err != nil {
		return err
	}

	winner, ok := upkeep.SelectTop(contributions, day)
	switch {
	case !ok:
		metrics.SelectionChecksTotal.WithLabelValues("empty").Inc()
		logger.WarnCtx(ctx, "No indexed candidate for the best contribution",
			zap.Uint64("day", day),
			zap.Uint64("onChainWinner", e.TopContributionID),
		)
	case winner.ID != e.TopContributionID:
		metrics.SelectionChecksTotal.WithLabelValues("mismatched").Inc()
		logger.WarnCtx(ctx, "Recomputed best contribution differs from the on-chain winner",
			zap.Uint64("day", day),
			zap.Uint64("onChainWinner", e.TopContributionID),
			zap.Uint64("recomputedWinner", winner.ID),
			zap.Int64("recomputedVotes", winner.Votes),
		)
	default:
		metrics.SelectionChecksTotal.WithLabelValues("matched").Inc()
	}

	return nil
}

// contributionsOfDay pages through every contribution of a day bucket
func contributionsOfDay(ctx context.Context, tx store.Reader, day uint64) ([]domain.Contribution, error) {
	const pageSize = 500

	var all []domain.Contribution
	for offset := 0; ; offset += pageSize {
		page, err := tx.ListContributions(ctx, store.ContributionFilter{
			Day:    &day,
			Limit:  pageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list contributions of day %d: %w", day, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func (m *mapper) sbtMinted(ctx context.Context, tx store.Tx, e *domain.SBTMinted) error {
	owner := domain.NormalizeAddress(e.Owner)

	entry, err := tx.GetLeaderboardEntry(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to get leaderboard entry: %w", err)
	}
	if entry == nil {
		entry = &domain.LeaderboardEntry{Address: owner, TopContributionsCount: 1}
		profile, err := tx.GetProfile(ctx, owner)
		if err != nil {
			return fmt.Errorf("failed to get profile: %w", err)
		}
		if profile != nil && profile.IsLive() {
			entry.Username = profile.Username
		}
	} else {
		entry.TopContributionsCount++
	}
	if err := tx.SaveLeaderboardEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to save leaderboard entry: %w", err)
	}

	tier, err := m.views.GetStatus(ctx, owner, e.BlockNumber)
	if err != nil {
		return fmt.Errorf("failed to read status of %s: %w", owner, err)
	}
	if err := tx.SaveAddressStatus(ctx, &domain.AddressStatus{Address: owner, Tier: tier}); err != nil {
		return fmt.Errorf("failed to save address status: %w", err)
	}

	return nil
}
