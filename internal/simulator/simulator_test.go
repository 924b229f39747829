package simulator_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
	"github.com/amplifrens/amplifrens-indexer/internal/logger"
	"github.com/amplifrens/amplifrens-indexer/internal/platform"
	"github.com/amplifrens/amplifrens-indexer/internal/simulator"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testConfig() simulator.Config {
	return simulator.Config{
		Platform: platform.Config{
			Chain:           domain.ChainHardhat,
			ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			Admin:           "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
			UpkeepInterval:  24 * time.Hour,
			StartBlock:      1,
		},
		Start:          time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC),
		UpkeepSchedule: "@every 1h",
		ReportWorkers:  4,
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.UpkeepSchedule = "not a schedule"

	_, err := simulator.New(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNew_InvalidPlatform(t *testing.T) {
	cfg := testConfig()
	cfg.Platform.Admin = "0x0000000000000000000000000000000000000000"

	_, err := simulator.New(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSimulator_Run(t *testing.T) {
	ctx := context.Background()

	sim, err := simulator.New(testConfig())
	require.NoError(t, err)
	accounts := sim.Accounts()
	assert.Equal(t, domain.NormalizeAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), accounts[1])

	require.NoError(t, sim.RunFixture(ctx))
	require.NoError(t, sim.RunDays(ctx, 2))

	report, err := sim.Report(ctx)
	require.NoError(t, err)

	t.Run("chain", func(t *testing.T) {
		assert.Equal(t, sim.Platform().Log().Len(), report.Events)
		assert.Equal(t, sim.Platform().CurrentDay(), report.CurrentDay)
		assert.Len(t, report.Contributions, 17)
	})

	t.Run("upkeeps follow the schedule", func(t *testing.T) {
		require.Len(t, report.Upkeeps, 2)
		assert.True(t, report.Upkeeps[0].Minted)
		assert.Equal(t, uint64(16), report.Upkeeps[0].Winner)
		assert.True(t, report.Upkeeps[1].Minted)
		assert.Equal(t, uint64(17), report.Upkeeps[1].Winner)

		gap := report.Upkeeps[1].At.Sub(report.Upkeeps[0].At)
		assert.Greater(t, gap, 24*time.Hour)
		assert.LessOrEqual(t, gap, 25*time.Hour)
	})

	t.Run("profiles", func(t *testing.T) {
		byAddress := map[string]string{}
		for _, p := range report.Profiles {
			byAddress[p.Username] = p.Status
		}
		assert.Equal(t, string(domain.StatusLive), byAddress["fren3"])
		assert.Equal(t, string(domain.StatusBlacklisted), byAddress["ethernal"])
		assert.Equal(t, string(domain.StatusDeleted), byAddress["fren4"])
	})

	t.Run("leaderboard", func(t *testing.T) {
		counts := map[string]uint64{}
		for _, row := range report.Leaderboard {
			counts[row.Address] = row.TopContributionsCount
			assert.NotEmpty(t, row.Status)
		}
		assert.Equal(t, uint64(1), counts[accounts[2]])
		assert.Equal(t, uint64(1), counts[accounts[5]])
		assert.Equal(t, uint64(1), counts[accounts[6]])
	})
}

func TestSimulator_RunDaysCanceled(t *testing.T) {
	sim, err := simulator.New(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = sim.RunDays(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulator_DeletedProfileStaysDeleted(t *testing.T) {
	ctx := context.Background()

	sim, err := simulator.New(testConfig())
	require.NoError(t, err)
	p := sim.Platform()
	accounts := sim.Accounts()
	admin, owner := accounts[1], accounts[7]

	require.NoError(t, p.CreateProfile(owner, platform.FixtureProfile("first")))
	require.NoError(t, sim.Sync(ctx))
	require.NoError(t, p.DeleteProfile(admin, owner))
	require.NoError(t, sim.Sync(ctx))
	assert.ErrorIs(t, p.CreateProfile(owner, platform.FixtureProfile("second")), domain.ErrUnauthorized)
	id, err := p.CreateContribution(owner, domain.CategoryDeFi, "After deletion", "https://www.dummy.xyz")
	require.NoError(t, err)
	require.NoError(t, sim.Sync(ctx))

	profile, err := sim.Store().GetProfile(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, domain.StatusDeleted, profile.Status)
	assert.Equal(t, "first", profile.Username)
	assert.Equal(t, p.HasProfile(owner), profile.IsLive())

	contribution, err := sim.Store().GetContribution(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, contribution)
	assert.False(t, contribution.HasProfile)
	assert.Equal(t, p.HasProfile(owner), contribution.HasProfile)
}
