package platform

import (
	"fmt"
	"sort"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/upkeep"
	"github.com/amplifrens/amplifrens-indexer/internal/votes"
)

// contributions is the contribution registry. Removed contributions keep their row and id;
// ids are never reused, not even after a reset.
type contributions struct {
	items  map[uint64]*domain.Contribution
	lastID uint64
	live   uint64
	day    uint64
	ledger *votes.Ledger
}

func newContributions() *contributions {
	return &contributions{
		items:  make(map[uint64]*domain.Contribution),
		day:    domain.FirstDay,
		ledger: votes.NewLedger(),
	}
}

func (c *contributions) get(id uint64) (*domain.Contribution, error) {
	item, ok := c.items[id]
	if !ok || !item.IsLive() {
		return nil, fmt.Errorf("%w: contribution %d", domain.ErrOutOfBounds, id)
	}
	return item, nil
}

// authorize allows the author or an admin
func authorize(item *domain.Contribution, caller string, isAdmin bool) error {
	if isAdmin || item.Author == domain.NormalizeAddress(caller) {
		return nil
	}
	return fmt.Errorf("%w: %s is not the author of contribution %d", domain.ErrUnauthorized, caller, item.ID)
}

func (c *contributions) create(tx *txn, caller string, category domain.Category, title, url string) (uint64, error) {
	if !category.Valid() {
		return 0, fmt.Errorf("%w: %d", domain.ErrInvalidCategory, category)
	}
	if title == "" || url == "" {
		return 0, fmt.Errorf("%w: title and url are required", domain.ErrInvalidInput)
	}

	c.lastID++
	item := &domain.Contribution{
		ID:         c.lastID,
		Author:     domain.NormalizeAddress(caller),
		Status:     domain.StatusLive,
		Category:   category,
		Title:      title,
		URL:        url,
		Timestamp:  tx.timestamp,
		DayCounter: c.day,
	}
	c.items[item.ID] = item
	c.live++

	tx.emit(&domain.ContributionCreated{
		LogMeta:        tx.meta(),
		From:           item.Author,
		ContributionID: item.ID,
		Timestamp:      tx.timestamp,
		Category:       category,
		Title:          title,
		URL:            url,
	})
	return item.ID, nil
}

// update overwrites the content; an empty title or url keeps the previous value
func (c *contributions) update(tx *txn, caller string, isAdmin bool, id uint64, category domain.Category, title, url string) error {
	item, err := c.get(id)
	if err != nil {
		return err
	}
	if err := authorize(item, caller, isAdmin); err != nil {
		return err
	}
	if !category.Valid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidCategory, category)
	}

	item.Category = category
	if title != "" {
		item.Title = title
	}
	if url != "" {
		item.URL = url
	}
	item.Timestamp = tx.timestamp

	tx.emit(&domain.ContributionUpdated{
		LogMeta:        tx.meta(),
		From:           domain.NormalizeAddress(caller),
		ContributionID: id,
		Timestamp:      tx.timestamp,
		Category:       item.Category,
		Title:          item.Title,
		URL:            item.URL,
	})
	return nil
}

func (c *contributions) remove(tx *txn, caller string, isAdmin bool, id uint64) error {
	item, err := c.get(id)
	if err != nil {
		return err
	}
	if err := authorize(item, caller, isAdmin); err != nil {
		return err
	}

	c.tombstone(tx, caller, item)
	return nil
}

func (c *contributions) tombstone(tx *txn, caller string, item *domain.Contribution) {
	item.Status = domain.StatusRemoved
	c.live--
	c.ledger.Forget(item.ID)

	tx.emit(&domain.ContributionRemoved{
		LogMeta:        tx.meta(),
		From:           domain.NormalizeAddress(caller),
		ContributionID: item.ID,
		Timestamp:      tx.timestamp,
	})
}

// reset removes every live contribution
func (c *contributions) reset(tx *txn, caller string) {
	for _, id := range c.ids() {
		if item := c.items[id]; item.IsLive() {
			c.tombstone(tx, caller, item)
		}
	}
}

func (c *contributions) vote(tx *txn, caller string, id uint64, polarity domain.Polarity) error {
	item, err := c.get(id)
	if err != nil {
		return err
	}

	transition, err := c.ledger.Cast(id, caller, item.Author, polarity)
	if err != nil {
		return err
	}
	item.Votes += transition.Delta

	voter := domain.NormalizeAddress(caller)
	if polarity == domain.PolarityUp {
		tx.emit(&domain.ContributionUpvoted{LogMeta: tx.meta(), From: voter, ContributionID: id, Timestamp: tx.timestamp})
	} else {
		tx.emit(&domain.ContributionDownvoted{LogMeta: tx.meta(), From: voter, ContributionID: id, Timestamp: tx.timestamp})
	}
	return nil
}

func (c *contributions) ids() []uint64 {
	ids := make([]uint64, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ofDay returns copies of every contribution of a day bucket, removed ones included
func (c *contributions) ofDay(day uint64) []domain.Contribution {
	var result []domain.Contribution
	for _, id := range c.ids() {
		if item := c.items[id]; item.DayCounter == day {
			result = append(result, *item)
		}
	}
	return result
}

func (c *contributions) top() (domain.Contribution, error) {
	winner, ok := upkeep.SelectTop(c.ofDay(c.day), c.day)
	if !ok {
		return domain.Contribution{}, fmt.Errorf("%w: no contribution for day %d", domain.ErrOutOfBounds, c.day)
	}
	return winner, nil
}

// incrementDayCounter moves new contributions to the next day bucket
func (c *contributions) incrementDayCounter() uint64 {
	c.day++
	return c.day
}
