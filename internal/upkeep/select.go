package upkeep

import (
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// SelectTop returns the top contribution of a day bucket.
// Only live contributions of that day compete; the highest vote count wins and
// ties go to the lowest id. Returns false when nothing qualifies.
func SelectTop(contributions []domain.Contribution, day uint64) (domain.Contribution, bool) {
	var (
		best  domain.Contribution
		found bool
	)

	for _, c := range contributions {
		if !c.IsLive() || c.DayCounter != day {
			continue
		}
		if !found || c.Votes > best.Votes || (c.Votes == best.Votes && c.ID < best.ID) {
			best = c
			found = true
		}
	}

	return best, found
}

// Snapshot builds the badge content for a winning contribution
func Snapshot(winner domain.Contribution, tokenID uint64, mintedAt uint64) domain.Badge {
	return domain.Badge{
		TokenID:        tokenID,
		Owner:          domain.NormalizeAddress(winner.Author),
		ContributionID: winner.ID,
		Category:       winner.Category,
		Title:          winner.Title,
		URL:            winner.URL,
		Votes:          winner.Votes,
		Timestamp:      winner.Timestamp,
		MintedAt:       mintedAt,
	}
}
