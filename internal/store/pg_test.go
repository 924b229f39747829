package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// testDB is nil when neither TEST_DB_HOST nor docker is available
var testDB *gorm.DB

func TestMain(m *testing.M) {
	os.Exit(runWithPostgres(m))
}

func runWithPostgres(m *testing.M) int {
	ctx := context.Background()

	dsn, terminate, err := postgresDSN(ctx)
	if err != nil {
		// The memory store suite still runs without docker
		fmt.Printf("PostgreSQL unavailable, skipping PostgreSQL tests: %v\n", err)
		return m.Run()
	}
	defer terminate()

	testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		return 1
	}

	if err := applySchema(testDB); err != nil {
		fmt.Printf("Failed to initialize database: %v\n", err)
		return 1
	}

	return m.Run()
}

// postgresDSN points at TEST_DB_* when TEST_DB_HOST is set, otherwise at a fresh container
func postgresDSN(ctx context.Context) (string, func(), error) {
	if host := os.Getenv("TEST_DB_HOST"); host != "" {
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host,
			envOr("TEST_DB_PORT", "5432"),
			envOr("TEST_DB_USER", "postgres"),
			envOr("TEST_DB_PASSWORD", "postgres"),
			envOr("TEST_DB_NAME", "amplifrens_test"),
		)
		return dsn, func() {}, nil
	}

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("amplifrens_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return "", nil, err
	}
	terminate := func() {
		if err := container.Terminate(context.Background()); err != nil {
			fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
		}
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return "", nil, err
	}
	return dsn, terminate, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func applySchema(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	schemaSQL, err := os.ReadFile(filepath.Join("..", "..", "db", "init_pg_db.sql")) //nolint:gosec,G304
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := sqlDB.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// pgTestTx opens a transaction that is rolled back when the test ends
func pgTestTx(t *testing.T) *gorm.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("PostgreSQL not available")
	}

	tx := testDB.Begin()
	require.NoError(t, tx.Error)
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

func TestPostgreSQLStore(t *testing.T) {
	if testDB == nil {
		t.Skip("PostgreSQL not available")
	}

	RunStoreTests(t,
		func(t *testing.T) Store { return NewPGStore(pgTestTx(t)) },
		func(t *testing.T) {},
	)
}

// The emitter uses the cursor store on its own, without the projection store
func TestPostgreSQLCursorStore(t *testing.T) {
	ctx := context.Background()
	cursors := NewCursorStore(pgTestTx(t))
	chain := string(domain.ChainPolygonMainnet)

	cursor, err := cursors.GetBlockCursor(ctx, chain)
	require.NoError(t, err)
	assert.Zero(t, cursor)

	require.NoError(t, cursors.SetBlockCursor(ctx, chain, 38_000_000))
	cursor, err = cursors.GetBlockCursor(ctx, chain)
	require.NoError(t, err)
	assert.Equal(t, uint64(38_000_000), cursor)
}

func TestPostgreSQLStore_LargeIdentifiers(t *testing.T) {
	ctx := context.Background()
	s := NewPGStore(pgTestTx(t))

	c := buildTestContribution(1<<62, alice, 1<<40)
	c.Votes = -3
	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		return tx.CreateContribution(ctx, c)
	}))

	got, err := s.GetContribution(ctx, 1<<62)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(-3), got.Votes)
	assert.Equal(t, uint64(1<<40), got.DayCounter)
}
