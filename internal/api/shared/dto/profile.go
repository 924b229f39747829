package dto

import "github.com/amplifrens/amplifrens-indexer/internal/domain"

// ProfileResponse represents a projected profile
type ProfileResponse struct {
	Address         string `json:"address"`
	Status          string `json:"status"`
	Username        string `json:"username"`
	LensHandle      string `json:"lens_handle,omitempty"`
	DiscordHandle   string `json:"discord_handle,omitempty"`
	TwitterHandle   string `json:"twitter_handle,omitempty"`
	Email           string `json:"email,omitempty"`
	WebsiteURL      string `json:"website_url,omitempty"`
	BlacklistReason string `json:"blacklist_reason,omitempty"`
	Timestamp       uint64 `json:"timestamp"`
}

// LeaderboardEntryResponse represents one leaderboard row
type LeaderboardEntryResponse struct {
	Address               string `json:"address"`
	Username              string `json:"username,omitempty"`
	TopContributionsCount uint64 `json:"top_contributions_count"`
	Status                string `json:"status,omitempty"`
}

// LeaderboardResponse represents a page of the leaderboard
type LeaderboardResponse struct {
	Entries []LeaderboardEntryResponse `json:"entries"`
	Offset  *int                       `json:"offset,omitempty"`
}

// StatusResponse represents the status tier of an address
type StatusResponse struct {
	Address string `json:"address"`
	Tier    uint8  `json:"tier"`
	Name    string `json:"name"`
}

// MapProfileToDTO maps a domain profile to its response.
// Tombstoned profiles keep their fields but report the dead address as owner.
func MapProfileToDTO(p domain.Profile) ProfileResponse {
	return ProfileResponse{
		Address:         p.Owner(),
		Status:          string(p.Status),
		Username:        p.Username,
		LensHandle:      p.LensHandle,
		DiscordHandle:   p.DiscordHandle,
		TwitterHandle:   p.TwitterHandle,
		Email:           p.Email,
		WebsiteURL:      p.WebsiteURL,
		BlacklistReason: p.BlacklistReason,
		Timestamp:       p.Timestamp,
	}
}

// MapStatusToDTO maps an address status to its response
func MapStatusToDTO(s domain.AddressStatus) StatusResponse {
	return StatusResponse{
		Address: s.Address,
		Tier:    uint8(s.Tier),
		Name:    s.Tier.String(),
	}
}
