package database

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"week_notification_agent/internal/domain/contract"
	"week_notification_agent/internal/domain/notification"
)

// openTestDB connects to TEST_DATABASE_URL and resets the agent tables.
// Tests are skipped when no database is configured.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := NewPostgresConnection(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE sent_notifications, contracts, notifications`)
	require.NoError(t, err)
	return db
}

func validDate(y int, m time.Month, d int) sql.NullTime {
	return sql.NullTime{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

func TestPostgresContractRepository_UpsertKeepsStartDate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresContractRepository(db)

	c := &contract.Contract{ID: 42, StartDate: validDate(2024, 1, 1), Presets: contract.NewPresets("pregnancy")}
	require.NoError(t, repo.Upsert(ctx, c))

	reactivated := &contract.Contract{ID: 42, Presets: contract.NewPresets("hypertensia", "diabetes")}
	require.NoError(t, repo.Upsert(ctx, reactivated))

	got, err := repo.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, contract.Presets{"hypertensia", "diabetes"}, got.Presets)
	require.True(t, got.StartDate.Valid)
	assert.Equal(t, "2024-01-01", got.StartDate.Time.Format("2006-01-02"))
}

func TestPostgresContractRepository_ListActiveSkipsMissingStart(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresContractRepository(db)

	require.NoError(t, repo.Upsert(ctx, &contract.Contract{ID: 1, StartDate: validDate(2024, 1, 1), Presets: contract.NewPresets("pregnancy")}))
	require.NoError(t, repo.Upsert(ctx, &contract.Contract{ID: 2, Presets: contract.NewPresets("pregnancy")}))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].ID)

	ids, err := repo.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	_, err = repo.GetByID(ctx, 3)
	assert.ErrorIs(t, err, ErrContractNotFound)
}

func TestPostgresLedger_RecordPurgeAndRemovalCascade(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	contracts := NewPostgresContractRepository(db)
	notifications := NewPostgresNotificationRepository(db)

	require.NoError(t, notifications.UpsertRules(ctx, []*notification.Rule{
		{ID: 1, Preset: "pregnancy", WeekOffset: 0, Text: "hello"},
		{ID: 2, Preset: "pregnancy", WeekOffset: 4, Text: "week four", InfoMaterials: sql.NullString{String: "materials", Valid: true}},
	}))
	require.NoError(t, contracts.Upsert(ctx, &contract.Contract{ID: 42, StartDate: validDate(2024, 1, 1), Presets: contract.NewPresets("pregnancy")}))

	rules, err := notifications.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "materials", rules[1].InfoMaterials.String)

	require.NoError(t, notifications.Record(ctx, 1, 42))
	assert.ErrorIs(t, notifications.Record(ctx, 1, 42), ErrAlreadyDelivered)

	has, err := notifications.Has(ctx, 1, 42)
	require.NoError(t, err)
	assert.True(t, has)

	delivered, err := notifications.ListDelivered(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, delivered, 1)

	require.NoError(t, contracts.Upsert(ctx, &contract.Contract{ID: 43, StartDate: validDate(2024, 1, 1), Presets: contract.NewPresets("pregnancy")}))
	require.NoError(t, notifications.Record(ctx, 2, 43))
	require.NoError(t, notifications.Purge(ctx, 42))
	has, err = notifications.Has(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, has, "purge clears the contract's deliveries")
	has, err = notifications.Has(ctx, 2, 43)
	require.NoError(t, err)
	assert.True(t, has, "purge leaves other contracts alone")
	_, err = contracts.GetByID(ctx, 42)
	require.NoError(t, err, "purge keeps the contract")
	require.NoError(t, notifications.Record(ctx, 1, 42), "purged pair can be recorded again")

	require.NoError(t, contracts.Remove(ctx, 42))
	has, err = notifications.Has(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, has)

	assert.NoError(t, contracts.Remove(ctx, 42), "removing an unknown contract is a no-op")
}
