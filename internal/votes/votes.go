package votes

import (
	"fmt"
	"strings"
	"sync"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// Standing is the live vote a voter holds on a contribution, if any
type Standing struct {
	Up   bool
	Down bool
}

// Live returns the polarity of the live vote and whether one exists
func (s Standing) Live() (domain.Polarity, bool) {
	switch {
	case s.Up:
		return domain.PolarityUp, true
	case s.Down:
		return domain.PolarityDown, true
	}
	return "", false
}

// Transition describes the effect of casting a vote on top of a standing
type Transition struct {
	// Polarity is the vote being cast
	Polarity domain.Polarity
	// Supersede is set when the opposite live record must be superseded (a flip)
	Supersede bool
	// Delta is the change applied to the contribution's vote count, always +1 or -1
	Delta int64
}

// Superseded returns the polarity of the record superseded by a flip
func (t Transition) Superseded() (domain.Polarity, bool) {
	if !t.Supersede {
		return "", false
	}
	return t.Polarity.Opposite(), true
}

// Transit computes the transition for an already accepted vote.
// It does not reject repeats; the mapper only observes accepted events.
func Transit(current Standing, polarity domain.Polarity) Transition {
	t := Transition{
		Polarity: polarity,
		Delta:    polarity.Delta(),
	}
	if polarity == domain.PolarityUp {
		t.Supersede = current.Down
	} else {
		t.Supersede = current.Up
	}
	return t
}

// Validate rejects a vote the platform must refuse.
// Self votes are unauthorized and repeating the live polarity is AlreadyVoted; flips are allowed.
func Validate(current Standing, voter, author string, polarity domain.Polarity) error {
	if polarity != domain.PolarityUp && polarity != domain.PolarityDown {
		return fmt.Errorf("%w: polarity %q", domain.ErrInvalidInput, polarity)
	}
	if domain.NormalizeAddress(voter) == domain.NormalizeAddress(author) {
		return fmt.Errorf("%w: cannot vote on own contribution", domain.ErrUnauthorized)
	}
	if live, ok := current.Live(); ok && live == polarity {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyVoted, polarity)
	}
	return nil
}

// Ledger keeps the live vote of every (contribution, voter) pair
type Ledger struct {
	mu    sync.RWMutex
	votes map[string]domain.Polarity
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{votes: make(map[string]domain.Polarity)}
}

// Standing returns the live vote of voter on a contribution
func (l *Ledger) Standing(contributionID uint64, voter string) Standing {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return standingOf(l.votes[domain.VoteKey(contributionID, voter)])
}

// Cast validates and records a vote, returning its transition
func (l *Ledger) Cast(contributionID uint64, voter, author string, polarity domain.Polarity) (Transition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := domain.VoteKey(contributionID, voter)
	current := standingOf(l.votes[key])
	if err := Validate(current, voter, author, polarity); err != nil {
		return Transition{}, err
	}

	l.votes[key] = polarity
	return Transit(current, polarity), nil
}

// Forget drops every vote on a contribution
func (l *Ledger) Forget(contributionID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := domain.FormatID(contributionID) + "-"
	for key := range l.votes {
		if strings.HasPrefix(key, prefix) {
			delete(l.votes, key)
		}
	}
}

func standingOf(p domain.Polarity) Standing {
	return Standing{
		Up:   p == domain.PolarityUp,
		Down: p == domain.PolarityDown,
	}
}
