package store

import (
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/store/schema"
)

func toContributionRow(c *domain.Contribution) schema.Contribution {
	return schema.Contribution{
		ID:               c.ID,
		Author:           domain.NormalizeAddress(c.Author),
		Status:           string(c.Status),
		Category:         int16(c.Category),
		Title:            c.Title,
		URL:              c.URL,
		Timestamp:        int64(c.Timestamp),
		Votes:            c.Votes,
		DayCounter:       int64(c.DayCounter),
		BestContribution: c.BestContribution,
		HasProfile:       c.HasProfile,
		Username:         c.Username,
		FromStatus:       int(c.FromStatus),
	}
}

func fromContributionRow(row *schema.Contribution) *domain.Contribution {
	return &domain.Contribution{
		ID:               row.ID,
		Author:           row.Author,
		Status:           domain.EntityStatus(row.Status),
		Category:         domain.Category(row.Category),
		Title:            row.Title,
		URL:              row.URL,
		Timestamp:        uint64(row.Timestamp),
		Votes:            row.Votes,
		DayCounter:       uint64(row.DayCounter),
		BestContribution: row.BestContribution,
		HasProfile:       row.HasProfile,
		Username:         row.Username,
		FromStatus:       domain.StatusTier(row.FromStatus),
	}
}

func toProfileRow(p *domain.Profile) schema.Profile {
	return schema.Profile{
		Address:         domain.NormalizeAddress(p.Address),
		Status:          string(p.Status),
		Username:        p.Username,
		LensHandle:      p.LensHandle,
		DiscordHandle:   p.DiscordHandle,
		TwitterHandle:   p.TwitterHandle,
		Email:           p.Email,
		WebsiteURL:      p.WebsiteURL,
		BlacklistReason: p.BlacklistReason,
		Timestamp:       int64(p.Timestamp),
	}
}

func fromProfileRow(row *schema.Profile) *domain.Profile {
	return &domain.Profile{
		Address:         row.Address,
		Status:          domain.EntityStatus(row.Status),
		Username:        row.Username,
		LensHandle:      row.LensHandle,
		DiscordHandle:   row.DiscordHandle,
		TwitterHandle:   row.TwitterHandle,
		Email:           row.Email,
		WebsiteURL:      row.WebsiteURL,
		BlacklistReason: row.BlacklistReason,
		Timestamp:       uint64(row.Timestamp),
	}
}

func toVoteRow(v *domain.VoteRecord) schema.VoteRecord {
	return schema.VoteRecord{
		ContributionID: v.ContributionID,
		Voter:          domain.NormalizeAddress(v.Voter),
		Polarity:       string(v.Polarity),
		Status:         string(v.Status),
		Timestamp:      int64(v.Timestamp),
	}
}

func fromVoteRow(row *schema.VoteRecord) *domain.VoteRecord {
	return &domain.VoteRecord{
		ContributionID: row.ContributionID,
		Voter:          row.Voter,
		Polarity:       domain.Polarity(row.Polarity),
		Status:         domain.EntityStatus(row.Status),
		Timestamp:      uint64(row.Timestamp),
	}
}

func toLeaderboardRow(e *domain.LeaderboardEntry) schema.SBTLeaderboard {
	return schema.SBTLeaderboard{
		Address:               domain.NormalizeAddress(e.Address),
		Username:              e.Username,
		TopContributionsCount: int64(e.TopContributionsCount),
	}
}

func fromLeaderboardRow(row *schema.SBTLeaderboard) *domain.LeaderboardEntry {
	return &domain.LeaderboardEntry{
		Address:               row.Address,
		Username:              row.Username,
		TopContributionsCount: uint64(row.TopContributionsCount),
	}
}

func toEventLogRow(l *domain.EventLog) schema.EventLog {
	payload := l.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return schema.EventLog{
		TxHash:          l.TxHash,
		LogIndex:        int64(l.LogIndex),
		BlockNumber:     int64(l.BlockNumber),
		ContractAddress: l.ContractAddress,
		Kind:            string(l.Kind),
		NaturalKey:      l.NaturalKey,
		Payload:         payload,
	}
}

func fromEventLogRow(row *schema.EventLog) *domain.EventLog {
	return &domain.EventLog{
		TxHash:          row.TxHash,
		LogIndex:        uint64(row.LogIndex),
		BlockNumber:     uint64(row.BlockNumber),
		ContractAddress: row.ContractAddress,
		Kind:            domain.EventKind(row.Kind),
		NaturalKey:      row.NaturalKey,
		Payload:         []byte(row.Payload),
	}
}
