package migrations

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db
}

func TestAllMigrations_VersionsAreUnique(t *testing.T) {
	migrations := AllMigrations()
	versions := make(map[string]bool)

	for _, m := range migrations {
		assert.False(t, versions[m.Version], "duplicate version: %s", m.Version)
		versions[m.Version] = true
	}
}

func TestAllMigrations_VersionsAreOrdered(t *testing.T) {
	migrations := AllMigrations()

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version,
			"migrations should be in ascending version order")
	}
}

func TestMigrator_Up_AllMigrations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	err := migrator.Up(ctx)
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable("requests"))
	assert.True(t, db.Migrator().HasTable("jobs"))
	assert.True(t, db.Migrator().HasTable("parts"))
	assert.True(t, db.Migrator().HasTable("worker_heartbeats"))
}

func TestMigrator_Up_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	err := migrator.Up(ctx)
	require.NoError(t, err)

	err = migrator.Up(ctx)
	require.NoError(t, err)
}

func TestMigrator_Status(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	statuses, err := migrator.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Applied)
	assert.Nil(t, statuses[0].AppliedAt)

	err = migrator.Up(ctx)
	require.NoError(t, err)

	statuses, err = migrator.Status(ctx)
	require.NoError(t, err)
	assert.True(t, statuses[0].Applied)
	assert.NotNil(t, statuses[0].AppliedAt)
}

func TestMigrator_Down_RollsBackLastMigration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	err := migrator.Up(ctx)
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable("jobs"))

	err = migrator.Down(ctx)
	require.NoError(t, err)
	assert.False(t, db.Migrator().HasTable("jobs"))
	assert.False(t, db.Migrator().HasTable("requests"))
}

func TestMigrator_Pending(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	pending, err := migrator.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, migrator.Up(ctx))

	pending, err = migrator.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
