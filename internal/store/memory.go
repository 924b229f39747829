package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// memoryState is the full projection held by the in-memory store
type memoryState struct {
	contributions map[uint64]domain.Contribution
	profiles      map[string]domain.Profile
	votes         map[string]domain.VoteRecord
	leaderboard   map[string]domain.LeaderboardEntry
	statuses      map[string]domain.AddressStatus
	eventLogs     []domain.EventLog
	eventLogIndex map[string]struct{}
	kv            map[string]string
}

func newMemoryState() *memoryState {
	return &memoryState{
		contributions: make(map[uint64]domain.Contribution),
		profiles:      make(map[string]domain.Profile),
		votes:         make(map[string]domain.VoteRecord),
		leaderboard:   make(map[string]domain.LeaderboardEntry),
		statuses:      make(map[string]domain.AddressStatus),
		eventLogIndex: make(map[string]struct{}),
		kv:            make(map[string]string),
	}
}

func voteRowKey(contributionID uint64, voter string, polarity domain.Polarity) string {
	return domain.VoteKey(contributionID, voter) + "-" + string(polarity)
}

func eventLogKey(txHash string, logIndex uint64) string {
	return txHash + "-" + strconv.FormatUint(logIndex, 10)
}

// memoryReader reads from a state snapshot. Callers hold the appropriate lock.
type memoryReader struct {
	state *memoryState
}

type memoryStore struct {
	mu    sync.RWMutex
	state *memoryState
}

// memoryTx writes straight into the state under the store's write lock and journals
// how to revert each touched key
type memoryTx struct {
	memoryReader
	undo []func()
}

// remember journals the current value of key so a rollback can restore it
func remember[K comparable, V any](t *memoryTx, m map[K]V, key K) {
	prev, existed := m[key]
	t.undo = append(t.undo, func() {
		if existed {
			m[key] = prev
			return
		}
		delete(m, key)
	})
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// NewMemoryStore creates a store that keeps everything in process memory.
// Used by tests and the simulator.
func NewMemoryStore() Store {
	return &memoryStore{state: newMemoryState()}
}

// WithTx runs fn under the write lock. If fn fails, every key it touched is restored.
// fn must use the given tx and never call back into the store.
func (s *memoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{memoryReader: s.reader()}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *memoryStore) reader() memoryReader {
	return memoryReader{state: s.state}
}

func (s *memoryStore) GetContribution(ctx context.Context, id uint64) (*domain.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.reader()
	return r.GetContribution(ctx, id)
}

func (s *memoryStore) ListContributions(ctx context.Context, filter ContributionFilter) ([]domain.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.reader()
	return r.ListContributions(ctx, filter)
}

func (s *memoryStore) GetProfile(ctx context.Context, address string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.reader()
	return r.GetProfile(ctx, address)
}

func (s *memoryStore) FindProfile(ctx context.Context, field ProfileField, value string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.reader()
	return r.FindProfile(ctx, field, value)
}

func (s *memoryStore) GetVote(ctx context.Context, contributionID uint64, voter string, polarity domain.Polarity) (*domain.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.reader()
	return r.GetVote(ctx, contributionID, voter, polarity)
}

func (s *memoryStore) ListVotes(ctx context.Context, contributionID uint64) ([]domain.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.reader()
	return r.ListVotes(ctx, contributionID)
}

func (s *memoryStore) GetLeaderboardEntry(ctx context.Context, address string) (*domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.reader()
	return r.GetLeaderboardEntry(ctx, address)
}

func (s *memoryStore) ListLeaderboard(ctx context.Context, limit, offset int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.reader()
	return r.ListLeaderboard(ctx, limit, offset)
}

func (s *memoryStore) GetAddressStatus(ctx context.Context, address string) (*domain.AddressStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.reader()
	return r.GetAddressStatus(ctx, address)
}

func (s *memoryStore) GetCurrentDay(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.reader()
	return r.GetCurrentDay(ctx)
}

func (s *memoryStore) HasEventLog(ctx context.Context, txHash string, logIndex uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.reader()
	return r.HasEventLog(ctx, txHash, logIndex)
}

func (s *memoryStore) ListEventLogs(ctx context.Context, filter EventLogFilter) ([]domain.EventLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.reader()
	return r.ListEventLogs(ctx, filter)
}

func (s *memoryStore) GetBlockCursor(_ context.Context, chain string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.state.kv[blockCursorKey(chain)]
	if !ok {
		return 0, nil
	}
	blockNumber, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block cursor: %w", err)
	}
	return blockNumber, nil
}

func (s *memoryStore) SetBlockCursor(_ context.Context, chain string, blockNumber uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.kv[blockCursorKey(chain)] = strconv.FormatUint(blockNumber, 10)
	return nil
}

// =============================================================================
// Reads
// =============================================================================

func (r *memoryReader) GetContribution(_ context.Context, id uint64) (*domain.Contribution, error) {
	c, ok := r.state.contributions[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *memoryReader) ListContributions(_ context.Context, filter ContributionFilter) ([]domain.Contribution, error) {
	author := domain.NormalizeAddress(filter.Author)

	var result []domain.Contribution
	for _, c := range r.state.contributions {
		if filter.Day != nil && c.DayCounter != *filter.Day {
			continue
		}
		if filter.Category != nil && c.Category != *filter.Category {
			continue
		}
		if filter.Author != "" {
			if c.Author != author || !c.IsLive() {
				continue
			}
		} else if !filter.IncludeRemoved && !c.IsLive() {
			continue
		}
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (r *memoryReader) GetProfile(_ context.Context, address string) (*domain.Profile, error) {
	p, ok := r.state.profiles[domain.NormalizeAddress(address)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memoryReader) FindProfile(_ context.Context, field ProfileField, value string) (*domain.Profile, error) {
	if !IsValidProfileField(field) {
		return nil, fmt.Errorf("%w: unsupported profile field %q", domain.ErrInvalidInput, field)
	}

	var found *domain.Profile
	for _, p := range r.state.profiles {
		if !p.IsLive() || profileFieldValue(&p, field) != value {
			continue
		}
		if found == nil || p.Address < found.Address {
			match := p
			found = &match
		}
	}
	return found, nil
}

func profileFieldValue(p *domain.Profile, field ProfileField) string {
	switch field {
	case ProfileFieldUsername:
		return p.Username
	case ProfileFieldLensHandle:
		return p.LensHandle
	case ProfileFieldDiscordHandle:
		return p.DiscordHandle
	case ProfileFieldTwitterHandle:
		return p.TwitterHandle
	case ProfileFieldEmail:
		return p.Email
	}
	return ""
}

func (r *memoryReader) GetVote(_ context.Context, contributionID uint64, voter string, polarity domain.Polarity) (*domain.VoteRecord, error) {
	v, ok := r.state.votes[voteRowKey(contributionID, voter, polarity)]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *memoryReader) ListVotes(_ context.Context, contributionID uint64) ([]domain.VoteRecord, error) {
	var result []domain.VoteRecord
	for _, v := range r.state.votes {
		if v.ContributionID == contributionID {
			result = append(result, v)
		}
	}

	// "up" sorts before "down" to match the polarity DESC order of the SQL store
	sort.Slice(result, func(i, j int) bool {
		if result[i].Polarity != result[j].Polarity {
			return result[i].Polarity > result[j].Polarity
		}
		return result[i].Voter < result[j].Voter
	})
	return result, nil
}

func (r *memoryReader) GetLeaderboardEntry(_ context.Context, address string) (*domain.LeaderboardEntry, error) {
	e, ok := r.state.leaderboard[domain.NormalizeAddress(address)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *memoryReader) ListLeaderboard(_ context.Context, limit, offset int) ([]domain.LeaderboardEntry, error) {
	result := make([]domain.LeaderboardEntry, 0, len(r.state.leaderboard))
	for _, e := range r.state.leaderboard {
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TopContributionsCount != result[j].TopContributionsCount {
			return result[i].TopContributionsCount > result[j].TopContributionsCount
		}
		return result[i].Address < result[j].Address
	})
	return paginate(result, limit, offset), nil
}

func (r *memoryReader) GetAddressStatus(_ context.Context, address string) (*domain.AddressStatus, error) {
	s, ok := r.state.statuses[domain.NormalizeAddress(address)]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *memoryReader) GetCurrentDay(_ context.Context) (uint64, error) {
	value, ok := r.state.kv[currentDayKey]
	if !ok {
		return domain.FirstDay, nil
	}
	day, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse current day: %w", err)
	}
	return day, nil
}

func (r *memoryReader) HasEventLog(_ context.Context, txHash string, logIndex uint64) (bool, error) {
	_, ok := r.state.eventLogIndex[eventLogKey(txHash, logIndex)]
	return ok, nil
}

func (r *memoryReader) ListEventLogs(_ context.Context, filter EventLogFilter) ([]domain.EventLog, error) {
	var result []domain.EventLog
	for _, l := range r.state.eventLogs {
		if filter.Kind != "" && l.Kind != filter.Kind {
			continue
		}
		if filter.NaturalKey != "" && l.NaturalKey != filter.NaturalKey {
			continue
		}
		result = append(result, l)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber < result[j].BlockNumber
		}
		return result[i].LogIndex < result[j].LogIndex
	})
	return paginate(result, filter.Limit, filter.Offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	limit = normalizeLimit(limit)
	if offset >= len(items) {
		return []T{}
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// =============================================================================
// Writes
// =============================================================================

func (t *memoryTx) AppendEventLog(_ context.Context, log *domain.EventLog) error {
	key := eventLogKey(log.TxHash, log.LogIndex)
	if _, ok := t.state.eventLogIndex[key]; ok {
		return fmt.Errorf("%w: event log %s", domain.ErrDuplicateEntity, key)
	}

	entry := *log
	if len(entry.Payload) == 0 {
		entry.Payload = []byte("{}")
	}
	remember(t, t.state.eventLogIndex, key)
	n := len(t.state.eventLogs)
	t.undo = append(t.undo, func() { t.state.eventLogs = t.state.eventLogs[:n] })

	t.state.eventLogIndex[key] = struct{}{}
	t.state.eventLogs = append(t.state.eventLogs, entry)
	return nil
}

func (t *memoryTx) CreateContribution(_ context.Context, contribution *domain.Contribution) error {
	if _, ok := t.state.contributions[contribution.ID]; ok {
		return fmt.Errorf("%w: contribution %d", domain.ErrDuplicateEntity, contribution.ID)
	}
	c := *contribution
	c.Author = domain.NormalizeAddress(c.Author)
	remember(t, t.state.contributions, c.ID)
	t.state.contributions[c.ID] = c
	return nil
}

func (t *memoryTx) UpdateContribution(_ context.Context, contribution *domain.Contribution) error {
	if _, ok := t.state.contributions[contribution.ID]; !ok {
		return fmt.Errorf("%w: contribution %d", domain.ErrOutOfBounds, contribution.ID)
	}
	c := *contribution
	c.Author = domain.NormalizeAddress(c.Author)
	remember(t, t.state.contributions, c.ID)
	t.state.contributions[c.ID] = c
	return nil
}

func (t *memoryTx) SaveProfile(_ context.Context, profile *domain.Profile) error {
	p := *profile
	p.Address = domain.NormalizeAddress(p.Address)
	remember(t, t.state.profiles, p.Address)
	t.state.profiles[p.Address] = p
	return nil
}

func (t *memoryTx) SaveVote(_ context.Context, vote *domain.VoteRecord) error {
	v := *vote
	v.Voter = domain.NormalizeAddress(v.Voter)
	key := voteRowKey(v.ContributionID, v.Voter, v.Polarity)
	remember(t, t.state.votes, key)
	t.state.votes[key] = v
	return nil
}

func (t *memoryTx) SaveLeaderboardEntry(_ context.Context, entry *domain.LeaderboardEntry) error {
	e := *entry
	e.Address = domain.NormalizeAddress(e.Address)
	remember(t, t.state.leaderboard, e.Address)
	t.state.leaderboard[e.Address] = e
	return nil
}

func (t *memoryTx) SaveAddressStatus(_ context.Context, status *domain.AddressStatus) error {
	s := *status
	s.Address = domain.NormalizeAddress(s.Address)
	remember(t, t.state.statuses, s.Address)
	t.state.statuses[s.Address] = s
	return nil
}

func (t *memoryTx) SetCurrentDay(_ context.Context, day uint64) error {
	remember(t, t.state.kv, currentDayKey)
	t.state.kv[currentDayKey] = strconv.FormatUint(day, 10)
	return nil
}
