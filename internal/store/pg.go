package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/store/schema"
)

// pgReader implements Reader over a gorm handle, which may be a transaction
type pgReader struct {
	db *gorm.DB
}

type pgStore struct {
	pgReader
	CursorStore
}

type pgTx struct {
	pgReader
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{
		pgReader:    pgReader{db: db},
		CursorStore: NewCursorStore(db),
	}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// If any of the pool settings are 0, defaults are used (see NormalizeConnectionPoolSettings).
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 10
//   - MaxIdleConns: 2
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 10
	}
	if maxIdleConns == 0 {
		maxIdleConns = 2
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// WithTx runs fn inside a database transaction
func (s *pgStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pgTx{pgReader: pgReader{db: tx}})
	})
}

// =============================================================================
// Reads
// =============================================================================

// GetContribution retrieves a contribution by id
func (r *pgReader) GetContribution(ctx context.Context, id uint64) (*domain.Contribution, error) {
	var row schema.Contribution
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get contribution: %w", err)
	}
	return fromContributionRow(&row), nil
}

// ListContributions lists contributions ordered by id
func (r *pgReader) ListContributions(ctx context.Context, filter ContributionFilter) ([]domain.Contribution, error) {
	query := r.db.WithContext(ctx).Model(&schema.Contribution{})

	if filter.Day != nil {
		query = query.Where("day_counter = ?", int64(*filter.Day))
	}
	if filter.Category != nil {
		query = query.Where("category = ?", int16(*filter.Category))
	}
	if filter.Author != "" {
		query = query.Where("author = ? AND status = ?", domain.NormalizeAddress(filter.Author), string(domain.StatusLive))
	} else if !filter.IncludeRemoved {
		query = query.Where("status = ?", string(domain.StatusLive))
	}

	var rows []schema.Contribution
	err := query.
		Order("id ASC").
		Limit(normalizeLimit(filter.Limit)).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}

	contributions := make([]domain.Contribution, 0, len(rows))
	for i := range rows {
		contributions = append(contributions, *fromContributionRow(&rows[i]))
	}
	return contributions, nil
}

// GetProfile retrieves a profile by address
func (r *pgReader) GetProfile(ctx context.Context, address string) (*domain.Profile, error) {
	var row schema.Profile
	err := r.db.WithContext(ctx).Where("address = ?", domain.NormalizeAddress(address)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return fromProfileRow(&row), nil
}

// FindProfile retrieves the live profile whose field equals value
func (r *pgReader) FindProfile(ctx context.Context, field ProfileField, value string) (*domain.Profile, error) {
	if !IsValidProfileField(field) {
		return nil, fmt.Errorf("%w: unsupported profile field %q", domain.ErrInvalidInput, field)
	}

	var row schema.Profile
	err := r.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: string(field)}, Value: value}).
		Where("status = ?", string(domain.StatusLive)).
		Order("address ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return fromProfileRow(&row), nil
}

// GetVote retrieves a vote record
func (r *pgReader) GetVote(ctx context.Context, contributionID uint64, voter string, polarity domain.Polarity) (*domain.VoteRecord, error) {
	var row schema.VoteRecord
	err := r.db.WithContext(ctx).
		Where("contribution_id = ? AND voter = ? AND polarity = ?", contributionID, domain.NormalizeAddress(voter), string(polarity)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return fromVoteRow(&row), nil
}

// ListVotes lists all vote records of a contribution
func (r *pgReader) ListVotes(ctx context.Context, contributionID uint64) ([]domain.VoteRecord, error) {
	var rows []schema.VoteRecord
	err := r.db.WithContext(ctx).
		Where("contribution_id = ?", contributionID).
		Order("polarity DESC, voter ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}

	votes := make([]domain.VoteRecord, 0, len(rows))
	for i := range rows {
		votes = append(votes, *fromVoteRow(&rows[i]))
	}
	return votes, nil
}

// GetLeaderboardEntry retrieves the leaderboard entry of an address
func (r *pgReader) GetLeaderboardEntry(ctx context.Context, address string) (*domain.LeaderboardEntry, error) {
	var row schema.SBTLeaderboard
	err := r.db.WithContext(ctx).Where("address = ?", domain.NormalizeAddress(address)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get leaderboard entry: %w", err)
	}
	return fromLeaderboardRow(&row), nil
}

// ListLeaderboard lists entries by count descending then address
func (r *pgReader) ListLeaderboard(ctx context.Context, limit, offset int) ([]domain.LeaderboardEntry, error) {
	var rows []schema.SBTLeaderboard
	err := r.db.WithContext(ctx).
		Order("top_contributions_count DESC, address ASC").
		Limit(normalizeLimit(limit)).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, *fromLeaderboardRow(&rows[i]))
	}
	return entries, nil
}

// GetAddressStatus retrieves the status tier of an address
func (r *pgReader) GetAddressStatus(ctx context.Context, address string) (*domain.AddressStatus, error) {
	var row schema.AddressStatus
	err := r.db.WithContext(ctx).Where("address = ?", domain.NormalizeAddress(address)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return &domain.AddressStatus{Address: row.Address, Tier: domain.StatusTier(row.Tier)}, nil
}

// GetCurrentDay returns the current day bucket, FirstDay when unset
func (r *pgReader) GetCurrentDay(ctx context.Context) (uint64, error) {
	value, err := getKeyValue(ctx, r.db, currentDayKey)
	if err != nil {
		return 0, fmt.Errorf("failed to get current day: %w", err)
	}
	if value == "" {
		return domain.FirstDay, nil
	}

	day, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse current day: %w", err)
	}
	return day, nil
}

// HasEventLog reports whether the event was already applied
func (r *pgReader) HasEventLog(ctx context.Context, txHash string, logIndex uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&schema.EventLog{}).
		Where("tx_hash = ? AND log_index = ?", txHash, int64(logIndex)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check event log: %w", err)
	}
	return count > 0, nil
}

// ListEventLogs lists raw event logs in chain order
func (r *pgReader) ListEventLogs(ctx context.Context, filter EventLogFilter) ([]domain.EventLog, error) {
	query := r.db.WithContext(ctx).Model(&schema.EventLog{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", string(filter.Kind))
	}
	if filter.NaturalKey != "" {
		query = query.Where("natural_key = ?", filter.NaturalKey)
	}

	var rows []schema.EventLog
	err := query.
		Order("block_number ASC, log_index ASC").
		Limit(normalizeLimit(filter.Limit)).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list event logs: %w", err)
	}

	logs := make([]domain.EventLog, 0, len(rows))
	for i := range rows {
		logs = append(logs, *fromEventLogRow(&rows[i]))
	}
	return logs, nil
}

// =============================================================================
// Writes
// =============================================================================

// AppendEventLog appends a raw event log
func (t *pgTx) AppendEventLog(ctx context.Context, log *domain.EventLog) error {
	row := toEventLogRow(log)
	result := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to append event log: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: event log %s-%d", domain.ErrDuplicateEntity, log.TxHash, log.LogIndex)
	}
	return nil
}

// CreateContribution inserts a contribution
func (t *pgTx) CreateContribution(ctx context.Context, contribution *domain.Contribution) error {
	row := toContributionRow(contribution)
	result := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to create contribution: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: contribution %d", domain.ErrDuplicateEntity, contribution.ID)
	}
	return nil
}

// UpdateContribution overwrites every mutable column of a contribution
func (t *pgTx) UpdateContribution(ctx context.Context, contribution *domain.Contribution) error {
	row := toContributionRow(contribution)
	result := t.db.WithContext(ctx).
		Model(&schema.Contribution{}).
		Where("id = ?", row.ID).
		Updates(map[string]interface{}{
			"author":            row.Author,
			"status":            row.Status,
			"category":          row.Category,
			"title":             row.Title,
			"url":               row.URL,
			"timestamp":         row.Timestamp,
			"votes":             row.Votes,
			"day_counter":       row.DayCounter,
			"best_contribution": row.BestContribution,
			"has_profile":       row.HasProfile,
			"username":          row.Username,
			"from_status":       row.FromStatus,
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update contribution: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: contribution %d", domain.ErrOutOfBounds, contribution.ID)
	}
	return nil
}

// SaveProfile upserts a profile
func (t *pgTx) SaveProfile(ctx context.Context, profile *domain.Profile) error {
	row := toProfileRow(profile)
	err := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "username", "lens_handle", "discord_handle", "twitter_handle",
				"email", "website_url", "blacklist_reason", "timestamp", "updated_at",
			}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// SaveVote upserts a vote record
func (t *pgTx) SaveVote(ctx context.Context, vote *domain.VoteRecord) error {
	row := toVoteRow(vote)
	err := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contribution_id"}, {Name: "voter"}, {Name: "polarity"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "timestamp", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save vote: %w", err)
	}
	return nil
}

// SaveLeaderboardEntry upserts a leaderboard entry
func (t *pgTx) SaveLeaderboardEntry(ctx context.Context, entry *domain.LeaderboardEntry) error {
	row := toLeaderboardRow(entry)
	err := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "top_contributions_count", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save leaderboard entry: %w", err)
	}
	return nil
}

// SaveAddressStatus upserts a status tier
func (t *pgTx) SaveAddressStatus(ctx context.Context, status *domain.AddressStatus) error {
	row := schema.AddressStatus{
		Address: domain.NormalizeAddress(status.Address),
		Tier:    int(status.Tier),
	}
	err := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"tier", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

// SetCurrentDay stores the current day bucket
func (t *pgTx) SetCurrentDay(ctx context.Context, day uint64) error {
	if err := setKeyValue(ctx, t.db, currentDayKey, strconv.FormatUint(day, 10)); err != nil {
		return fmt.Errorf("failed to set current day: %w", err)
	}
	return nil
}
