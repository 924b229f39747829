package rest

import (
	"fmt"

	"github.com/amplifrens/amplifrens-indexer/internal/api/shared/constants"
	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/store"
)

// PaginationParams holds the shared paging query parameters
type PaginationParams struct {
	Limit  int `form:"limit,default=20"`
	Offset int `form:"offset,default=0"`
}

// Validate checks the paging bounds
func (p PaginationParams) Validate() error {
	if p.Limit < 1 || p.Limit > constants.MAX_PAGE_SIZE {
		return fmt.Errorf("limit must be between 1 and %d", constants.MAX_PAGE_SIZE)
	}
	if p.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	return nil
}

// ListContributionsQueryParams holds query parameters for GET /contributions
type ListContributionsQueryParams struct {
	PaginationParams
	Day            *uint64 `form:"day"`
	Author         string  `form:"author"`
	Category       *uint8  `form:"category"`
	IncludeRemoved bool    `form:"include_removed,default=false"`
}

// Validate checks the filters
func (p ListContributionsQueryParams) Validate() error {
	if err := p.PaginationParams.Validate(); err != nil {
		return err
	}
	if p.Author != "" && !domain.IsRealAddress(p.Author) {
		return fmt.Errorf("invalid author address: %s", p.Author)
	}
	if p.Category != nil && !domain.Category(*p.Category).Valid() {
		return fmt.Errorf("invalid category: %d", *p.Category)
	}
	return nil
}

// TopContributionQueryParams holds query parameters for GET /contributions/top
type TopContributionQueryParams struct {
	Day *uint64 `form:"day"`
}

// FindProfileQueryParams holds query parameters for GET /profiles.
// Exactly one lookup field must be set.
type FindProfileQueryParams struct {
	Username      string `form:"username"`
	LensHandle    string `form:"lens_handle"`
	DiscordHandle string `form:"discord_handle"`
	TwitterHandle string `form:"twitter_handle"`
	Email         string `form:"email"`
}

// Lookup returns the single field and value to search by
func (p FindProfileQueryParams) Lookup() (store.ProfileField, string, error) {
	candidates := []struct {
		field store.ProfileField
		value string
	}{
		{store.ProfileFieldUsername, p.Username},
		{store.ProfileFieldLensHandle, p.LensHandle},
		{store.ProfileFieldDiscordHandle, p.DiscordHandle},
		{store.ProfileFieldTwitterHandle, p.TwitterHandle},
		{store.ProfileFieldEmail, p.Email},
	}

	var (
		field store.ProfileField
		value string
		set   int
	)
	for _, c := range candidates {
		if c.value != "" {
			field, value = c.field, c.value
			set++
		}
	}
	if set != 1 {
		return "", "", fmt.Errorf("exactly one of username, lens_handle, discord_handle, twitter_handle or email is required")
	}

	return field, value, nil
}

// ListEventsQueryParams holds query parameters for GET /events
type ListEventsQueryParams struct {
	PaginationParams
	Kind string `form:"kind"`
	Key  string `form:"key"`
}
