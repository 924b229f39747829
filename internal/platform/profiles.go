package platform

import (
	"fmt"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/store"
)

// profiles is the profile registry. Deleted and blacklisted profiles keep their row.
type profiles struct {
	items map[string]*domain.Profile
	live  uint64
}

func newProfiles() *profiles {
	return &profiles{items: make(map[string]*domain.Profile)}
}

// uniqueFields are checked against every other live profile
var uniqueFields = []struct {
	field store.ProfileField
	label string
	value func(d domain.ProfileDetails) string
}{
	{store.ProfileFieldUsername, "username", func(d domain.ProfileDetails) string { return d.Username }},
	{store.ProfileFieldEmail, "email", func(d domain.ProfileDetails) string { return d.Email }},
	{store.ProfileFieldDiscordHandle, "discord handle", func(d domain.ProfileDetails) string { return d.DiscordHandle }},
	{store.ProfileFieldTwitterHandle, "twitter handle", func(d domain.ProfileDetails) string { return d.TwitterHandle }},
	{store.ProfileFieldLensHandle, "lens handle", func(d domain.ProfileDetails) string { return d.LensHandle }},
}

func fieldValue(p *domain.Profile, field store.ProfileField) string {
	switch field {
	case store.ProfileFieldUsername:
		return p.Username
	case store.ProfileFieldEmail:
		return p.Email
	case store.ProfileFieldDiscordHandle:
		return p.DiscordHandle
	case store.ProfileFieldTwitterHandle:
		return p.TwitterHandle
	case store.ProfileFieldLensHandle:
		return p.LensHandle
	}
	return ""
}

func (r *profiles) checkUnique(address string, details domain.ProfileDetails) error {
	for _, u := range uniqueFields {
		value := u.value(details)
		if value == "" {
			continue
		}
		if other, err := r.findBy(u.field, value); err == nil && other.Address != address {
			return fmt.Errorf("%w: %s %q", domain.ErrAlreadyExists, u.label, value)
		}
	}
	return nil
}

func (r *profiles) get(address string) (*domain.Profile, error) {
	p, ok := r.items[domain.NormalizeAddress(address)]
	if !ok || !p.IsLive() {
		return nil, fmt.Errorf("%w: no profile for %s", domain.ErrOutOfBounds, address)
	}
	return p, nil
}

func (r *profiles) findBy(field store.ProfileField, value string) (*domain.Profile, error) {
	if !store.IsValidProfileField(field) {
		return nil, fmt.Errorf("%w: unsupported profile field %q", domain.ErrInvalidInput, field)
	}
	for _, p := range r.items {
		if p.IsLive() && value != "" && fieldValue(p, field) == value {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no user with %s %q", domain.ErrOutOfBounds, field, value)
}

// create registers the caller's profile. Tombstones are final: neither a blacklisted
// nor a deleted address may register again, though their handles are free for others.
func (r *profiles) create(tx *txn, caller string, details domain.ProfileDetails) error {
	address := domain.NormalizeAddress(caller)
	if details.Username == "" {
		return fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	if existing, ok := r.items[address]; ok {
		switch existing.Status {
		case domain.StatusLive:
			return fmt.Errorf("%w: profile for %s", domain.ErrAlreadyExists, address)
		case domain.StatusBlacklisted:
			return fmt.Errorf("%w: %s is blacklisted", domain.ErrUnauthorized, address)
		case domain.StatusDeleted:
			return fmt.Errorf("%w: profile of %s was deleted", domain.ErrUnauthorized, address)
		}
	}
	if err := r.checkUnique(address, details); err != nil {
		return err
	}

	p := &domain.Profile{Address: address, Status: domain.StatusLive, Timestamp: tx.timestamp}
	details.Apply(p)
	r.items[address] = p
	r.live++

	tx.emit(&domain.ProfileCreated{LogMeta: tx.meta(), Address: address, Timestamp: tx.timestamp, Username: p.Username})
	return nil
}

func (r *profiles) update(tx *txn, caller string, details domain.ProfileDetails) error {
	p, err := r.get(caller)
	if err != nil {
		return err
	}
	if details.Username == "" {
		return fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	if err := r.checkUnique(p.Address, details); err != nil {
		return err
	}

	details.Apply(p)
	p.Timestamp = tx.timestamp

	tx.emit(&domain.ProfileUpdated{LogMeta: tx.meta(), Address: p.Address, Timestamp: tx.timestamp, Username: p.Username})
	return nil
}

func (r *profiles) delete(tx *txn, address string) error {
	p, err := r.get(address)
	if err != nil {
		return err
	}

	p.Status = domain.StatusDeleted
	p.Timestamp = tx.timestamp
	r.live--

	tx.emit(&domain.ProfileDeleted{LogMeta: tx.meta(), Address: p.Address, Timestamp: tx.timestamp})
	return nil
}

func (r *profiles) blacklist(tx *txn, address, reason string) error {
	p, err := r.get(address)
	if err != nil {
		return err
	}
	if reason == "" {
		return fmt.Errorf("%w: blacklist reason is required", domain.ErrInvalidInput)
	}

	p.Status = domain.StatusBlacklisted
	p.BlacklistReason = reason
	p.Timestamp = tx.timestamp
	r.live--

	tx.emit(&domain.ProfileBlacklisted{LogMeta: tx.meta(), Address: p.Address, Reason: reason, Timestamp: tx.timestamp})
	return nil
}

func (r *profiles) blacklistReason(address string) (string, error) {
	p, ok := r.items[domain.NormalizeAddress(address)]
	if !ok || p.Status != domain.StatusBlacklisted {
		return "", fmt.Errorf("%w: %s", domain.ErrNotBlacklisted, address)
	}
	return p.BlacklistReason, nil
}

func detailsOf(p *domain.Profile) domain.ProfileDetails {
	return domain.ProfileDetails{
		Username:      p.Username,
		LensHandle:    p.LensHandle,
		DiscordHandle: p.DiscordHandle,
		TwitterHandle: p.TwitterHandle,
		Email:         p.Email,
		WebsiteURL:    p.WebsiteURL,
	}
}
