// Package ledgertest opens isolated sqlite ledgers for package tests.
package ledgertest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/talentkonnect/raffle-backend/internal/ledger"
	"github.com/talentkonnect/raffle-backend/pkg/config"
	"github.com/talentkonnect/raffle-backend/pkg/db"
	"github.com/talentkonnect/raffle-backend/pkg/migrate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var nameReplacer = strings.NewReplacer("/", "_", " ", "_", "#", "_")

// NewClient returns a migrated in-memory database private to the test.
func NewClient(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", nameReplacer.Replace(t.Name()))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// sqlite allows one writer; goroutines in tests over this client queue on
	// the single connection. NewPostgresStore exercises real interleaving.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrate.AutoMigrateModels(conn))
	return db.Wrap(conn)
}

// NewStore returns a ledger store over a fresh database.
func NewStore(t testing.TB) (*ledger.Store, *db.Client) {
	t.Helper()
	client := NewClient(t)
	store, err := ledger.NewStore(client)
	require.NoError(t, err)
	return store, client
}

// PostgresDSNEnv names the database used by NewPostgresStore.
const PostgresDSNEnv = "RAFFLE_TEST_POSTGRES_DSN"

// NewPostgresStore returns a ledger store on the Postgres database named by
// RAFFLE_TEST_POSTGRES_DSN with a multi-connection pool, or skips the test
// when the variable is unset. Callers should use ids unique to the run.
func NewPostgresStore(t testing.TB) *ledger.Store {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv(PostgresDSNEnv))
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}

	client, err := db.New(context.Background(), config.DBConfig{
		Driver:       config.DriverPostgres,
		DSN:          dsn,
		MaxOpenConns: 16,
		MaxIdleConns: 16,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, migrate.AutoMigrateModels(client.DB()))
	store, err := ledger.NewStore(client)
	require.NoError(t, err)
	return store
}
