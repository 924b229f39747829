package dto

import "github.com/amplifrens/amplifrens-indexer/internal/domain"

// ContributionResponse represents a projected contribution.
// A removed contribution reports the dead address as author.
type ContributionResponse struct {
	ID               string `json:"id"`
	Author           string `json:"author"`
	Status           string `json:"status"`
	Category         uint8  `json:"category"`
	CategoryName     string `json:"category_name"`
	Title            string `json:"title"`
	URL              string `json:"url"`
	Timestamp        uint64 `json:"timestamp"`
	Votes            int64  `json:"votes"`
	DayCounter       uint64 `json:"day_counter"`
	BestContribution bool   `json:"best_contribution"`
	HasProfile       bool   `json:"has_profile"`
	Username         string `json:"username,omitempty"`
	FromStatus       string `json:"from_status"`
}

// ContributionListResponse represents a page of contributions
type ContributionListResponse struct {
	Contributions []ContributionResponse `json:"contributions"`
	Offset        *int                   `json:"offset,omitempty"`
}

// VoteResponse represents one voter's vote on a contribution
type VoteResponse struct {
	ContributionID string `json:"contribution_id"`
	Voter          string `json:"voter"`
	Polarity       string `json:"polarity"`
	Status         string `json:"status"`
	Timestamp      uint64 `json:"timestamp"`
}

// VoteListResponse represents the vote records of a contribution
type VoteListResponse struct {
	Votes []VoteResponse `json:"votes"`
	// Total is the sum of the live votes, equal to the contribution's vote count
	Total int64 `json:"total"`
}

// TopContributionResponse represents the selection outcome of a day bucket
type TopContributionResponse struct {
	Day          uint64                `json:"day"`
	Contribution *ContributionResponse `json:"contribution"`
}

// MapContributionToDTO maps a domain contribution to its response
func MapContributionToDTO(c domain.Contribution) ContributionResponse {
	return ContributionResponse{
		ID:               domain.FormatID(c.ID),
		Author:           c.From(),
		Status:           string(c.Status),
		Category:         uint8(c.Category),
		CategoryName:     c.Category.String(),
		Title:            c.Title,
		URL:              c.URL,
		Timestamp:        c.Timestamp,
		Votes:            c.Votes,
		DayCounter:       c.DayCounter,
		BestContribution: c.BestContribution,
		HasProfile:       c.HasProfile,
		Username:         c.Username,
		FromStatus:       c.FromStatus.String(),
	}
}

// MapVoteToDTO maps a vote record to its response
func MapVoteToDTO(v domain.VoteRecord) VoteResponse {
	return VoteResponse{
		ContributionID: domain.FormatID(v.ContributionID),
		Voter:          v.From(),
		Polarity:       string(v.Polarity),
		Status:         string(v.Status),
		Timestamp:      v.Timestamp,
	}
}
