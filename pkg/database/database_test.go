package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contract-flow/pkg/config"
	"contract-flow/pkg/models"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	ctx := context.Background()
	db, closeFn, err := Open(ctx, config.DatabaseConfig{URL: "sqlite://file::memory:?cache=shared"}, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, Migrate(db))
	require.NoError(t, HealthCheck(ctx, db, time.Second))

	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m), "table for %T", m)
	}
	assert.True(t, db.Migrator().HasTable("template_tags"))
}

func TestOpenRejectsBadPostgresURL(t *testing.T) {
	_, _, err := Open(context.Background(), config.DatabaseConfig{URL: "postgres://%zz", DialTimeout: time.Second}, zap.NewNop())
	assert.Error(t, err)
}
