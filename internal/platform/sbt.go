package platform

import (
	"fmt"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

type token struct {
	badge   domain.Badge
	revoked bool
}

// sbt is the soulbound badge registry. Token ids start at 1 and revoked tokens
// still count towards balances.
type sbt struct {
	tokens  []token
	byOwner map[string][]uint64
}

func newSBT() *sbt {
	return &sbt{byOwner: make(map[string][]uint64)}
}

func (s *sbt) nextID() uint64 {
	return uint64(len(s.tokens)) + 1
}

func (s *sbt) token(id uint64) (*token, error) {
	if id == 0 || id > uint64(len(s.tokens)) {
		return nil, fmt.Errorf("%w: token %d", domain.ErrOutOfBounds, id)
	}
	return &s.tokens[id-1], nil
}

func (s *sbt) mint(tx *txn, badge domain.Badge) uint64 {
	badge.TokenID = s.nextID()
	badge.Owner = domain.NormalizeAddress(badge.Owner)
	s.tokens = append(s.tokens, token{badge: badge})
	s.byOwner[badge.Owner] = append(s.byOwner[badge.Owner], badge.TokenID)
	tx.onRollback(func() {
		s.tokens = s.tokens[:len(s.tokens)-1]
		owned := s.byOwner[badge.Owner][:len(s.byOwner[badge.Owner])-1]
		if len(owned) == 0 {
			delete(s.byOwner, badge.Owner)
			return
		}
		s.byOwner[badge.Owner] = owned
	})

	tx.emit(&domain.SBTMinted{LogMeta: tx.meta(), Owner: badge.Owner, TokenID: badge.TokenID, Timestamp: tx.timestamp})
	return badge.TokenID
}

func (s *sbt) revoke(tx *txn, id uint64) error {
	t, err := s.token(id)
	if err != nil {
		return err
	}
	if t.revoked {
		return fmt.Errorf("%w: token %d is already revoked", domain.ErrInvalidInput, id)
	}
	t.revoked = true
	tx.onRollback(func() { t.revoked = false })

	tx.emit(&domain.SBTRevoked{LogMeta: tx.meta(), Owner: t.badge.Owner, TokenID: id, Timestamp: tx.timestamp})
	return nil
}

func (s *sbt) balanceOf(owner string) uint64 {
	return uint64(len(s.byOwner[domain.NormalizeAddress(owner)]))
}

func (s *sbt) hasValid(owner string) bool {
	for _, id := range s.byOwner[domain.NormalizeAddress(owner)] {
		if !s.tokens[id-1].revoked {
			return true
		}
	}
	return false
}

func (s *sbt) status(owner string) (domain.StatusTier, error) {
	balance := s.balanceOf(owner)
	if balance == 0 {
		return domain.TierRookie, fmt.Errorf("%w: %s", domain.ErrNoTokens, owner)
	}
	return domain.TierForBalance(balance), nil
}

// tokenOfOwnerByIndex uses a zero-based index into the owner's tokens
func (s *sbt) tokenOfOwnerByIndex(owner string, index uint64) (uint64, error) {
	ids := s.byOwner[domain.NormalizeAddress(owner)]
	if index >= uint64(len(ids)) {
		return 0, fmt.Errorf("%w: index %d of %s", domain.ErrOutOfBounds, index, owner)
	}
	return ids[index], nil
}
