package domain

import "strconv"

// StatusTier is the rank derived from the number of badges an address holds
type StatusTier int

const (
	TierRookie StatusTier = iota
	TierAnon
	TierDegen
	TierPepe
	TierContributoor
	TierAggregatoor
	TierOracle
)

var tierThresholds = []struct {
	min  uint64
	tier StatusTier
}{
	{100, TierOracle},
	{60, TierAggregatoor},
	{30, TierContributoor},
	{15, TierPepe},
	{10, TierDegen},
	{5, TierAnon},
}

// TierForBalance maps a badge balance to its tier
func TierForBalance(balance uint64) StatusTier {
	for _, t := range tierThresholds {
		if balance >= t.min {
			return t.tier
		}
	}
	return TierRookie
}

func (t StatusTier) String() string {
	switch t {
	case TierRookie:
		return "Rookie"
	case TierAnon:
		return "Anon"
	case TierDegen:
		return "Degen"
	case TierPepe:
		return "Pepe"
	case TierContributoor:
		return "Contributoor"
	case TierAggregatoor:
		return "Aggregatoor"
	case TierOracle:
		return "Oracle"
	default:
		return "tier(" + strconv.Itoa(int(t)) + ")"
	}
}
