package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// FixtureAccounts is the number of accounts the fixture scenario uses
const FixtureAccounts = 20

// Accounts derives n deterministic participant addresses
func Accounts(n int) []string {
	accounts := make([]string, n)
	for i := range accounts {
		hash := crypto.Keccak256([]byte(fmt.Sprintf("amplifrens-account-%d", i)))
		accounts[i] = domain.NormalizeAddress(common.BytesToAddress(hash[12:]).Hex())
	}
	return accounts
}

// Step is one named action of a scenario
type Step struct {
	Name string
	Run  func(ctx context.Context, p *Platform) error
}

var fixtureContributions = []struct {
	title    string
	category domain.Category
}{
	{"StarkNet Staking Rewards Template", domain.CategoryMisc},
	{"Hyperapps: a primitive for a new internet", domain.CategoryThread},
	{"Ethan Buchman on the BSC Hack", domain.CategorySecurity},
	{"Virtual Society, Blockchains, and The Metaverse", domain.CategoryMetaverse},
	{"$BTRFLY 2.0", domain.CategoryThread},
	{"DeGods removing NFT royalties", domain.CategoryNFT},
	{"Collection.xyz launch", domain.CategoryNFT},
	{"All things NFTs with Kevin rose and Chris Dixon", domain.CategoryPodcast},
	{"Brian Armstrong reflects on Coinbase origin story", domain.CategoryPodcast},
	{"Analysis Binance Bridge hack - open questions & open points", domain.CategorySecurity},
	{"Stablecoins are a misunderstood DeFi primitive", domain.CategoryDeFi},
	{"How a derivative project became arguably the best gaming ecosystem", domain.CategoryGameFi},
	{"X2Y2 P2P NFT loan", domain.CategoryNFT},
	{"Celsius doxxed me", domain.CategoryMisc},
	{"Llamalend contracts", domain.CategoryMisc},
}

// FixtureProfile returns the profile an account registers with in the fixture scenario
func FixtureProfile(name string) domain.ProfileDetails {
	return domain.ProfileDetails{
		Username:      name,
		LensHandle:    name + ".lens",
		DiscordHandle: name + "#1337",
		TwitterHandle: name,
		Email:         name + "@gmail.com",
		WebsiteURL:    "https://www." + name + ".xyz",
	}
}

// FixtureScenario returns the reference local-node scenario: 15 contributions, a round of
// votes, contribution and profile edits, then a day later an upkeep.
// accounts[1] must hold the admin role.
func FixtureScenario(accounts []string, clock *SimulatedClock) []Step {
	var steps []Step

	for i, c := range fixtureContributions {
		author := accounts[i+1]
		c := c
		steps = append(steps, Step{
			Name: fmt.Sprintf("create contribution %q", c.title),
			Run: func(_ context.Context, p *Platform) error {
				_, err := p.CreateContribution(author, c.category, c.title, "https://www.dummy.xyz")
				return err
			},
		})
	}

	for i := 3; i < FixtureAccounts; i++ {
		voter := accounts[i]
		id := uint64(i%2) + 1
		steps = append(steps, Step{
			Name: fmt.Sprintf("upvote contribution %d", id),
			Run: func(_ context.Context, p *Platform) error {
				return p.UpvoteContribution(voter, id)
			},
		})
	}

	steps = append(steps,
		Step{
			Name: "downvote contribution 1",
			Run: func(_ context.Context, p *Platform) error {
				return p.DownvoteContribution(accounts[2], 1)
			},
		},
		Step{
			Name: "update contribution 1",
			Run: func(_ context.Context, p *Platform) error {
				return p.UpdateContribution(accounts[1], 1, domain.CategoryMisc, "TEST update", "https://www.test.xyz")
			},
		},
		Step{
			Name: "remove contribution 3",
			Run: func(_ context.Context, p *Platform) error {
				return p.RemoveContribution(accounts[1], 3)
			},
		},
		Step{
			Name: "create profile of account 2",
			Run: func(_ context.Context, p *Platform) error {
				return p.CreateProfile(accounts[2], FixtureProfile("fren2"))
			},
		},
		Step{
			Name: "update profile of account 2",
			Run: func(_ context.Context, p *Platform) error {
				return p.UpdateProfile(accounts[2], domain.ProfileDetails{
					Username:      "ethernal",
					LensHandle:    "ethernal.lens",
					DiscordHandle: "ethernal#1337",
					TwitterHandle: "ethernal",
					Email:         "ethern@l.com",
					WebsiteURL:    "https://www.anon.xyz",
				})
			},
		},
		Step{
			Name: "blacklist profile of account 2",
			Run: func(_ context.Context, p *Platform) error {
				return p.BlacklistProfile(accounts[1], accounts[2], "Spam")
			},
		},
		Step{
			Name: "create profile of account 4",
			Run: func(_ context.Context, p *Platform) error {
				return p.CreateProfile(accounts[4], FixtureProfile("fren4"))
			},
		},
		Step{
			Name: "delete profile of account 4",
			Run: func(_ context.Context, p *Platform) error {
				return p.DeleteProfile(accounts[1], accounts[4])
			},
		},
		Step{
			Name: "create profile of account 3",
			Run: func(_ context.Context, p *Platform) error {
				return p.CreateProfile(accounts[3], FixtureProfile("fren3"))
			},
		},
		Step{
			Name: "perform upkeep a day later",
			Run: func(ctx context.Context, p *Platform) error {
				// the interval counts from deployment and must be exceeded
				clock.Advance(24*time.Hour + time.Second)
				_, err := p.PerformUpkeep(ctx)
				return err
			},
		},
	)

	return steps
}
