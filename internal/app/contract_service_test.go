package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"week_notification_agent/internal/domain/contract"
	idb "week_notification_agent/internal/infra/database"
	"week_notification_agent/internal/testutil"
)

type countingTrigger struct{ calls int }

func (c *countingTrigger) Trigger() { c.calls++ }

type contractFixture struct {
	store   *testutil.MemStore
	trigger *countingTrigger
	svc     *ContractService
}

func newContractFixture() *contractFixture {
	f := &contractFixture{store: testutil.NewMemStore(), trigger: &countingTrigger{}}
	f.svc = NewContractService(f.store, f.store, NewContractLocks(), f.trigger, testLogger())
	f.svc.now = func() time.Time { return scenarioToday }
	return f
}

func TestParseContractID(t *testing.T) {
	id, err := ParseContractID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "abc", "4.2", "-1", "0"} {
		_, err := ParseContractID(raw)
		assert.ErrorIs(t, err, ErrInvalidContractID, "raw=%q", raw)
	}
}

func TestContractService_RegisterWithStartDateAndInfoFlags(t *testing.T) {
	f := newContractFixture()
	ctx := context.Background()

	c, err := f.svc.Register(ctx, RegisterRequest{
		ContractID: "42",
		Preset:     contract.PresetPregnancy,
		Params: map[string]any{
			"start_date":   "2024-01-01",
			"info_diet":    true,
			"info_sport":   "false",
			"info_allergy": "on",
			"unrelated":    true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, contract.Presets{"pregnancy", "allergy", "diet"}, c.Presets)
	require.True(t, c.StartDate.Valid)
	assert.Equal(t, "2024-01-01", c.StartDate.Time.Format(dateLayout))
	assert.Equal(t, 1, f.trigger.calls, "registration triggers an immediate tick")

	stored, err := f.store.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, c.Presets, stored.Presets)
}

func TestContractService_RegisterWithWeekParam(t *testing.T) {
	f := newContractFixture()

	c, err := f.svc.Register(context.Background(), RegisterRequest{
		ContractID: "5",
		Preset:     contract.PresetPregnancy,
		Params:     map[string]any{"week": float64(6), "start_date": "2020-01-01"},
	})
	require.NoError(t, err)
	require.True(t, c.StartDate.Valid)
	assert.Equal(t, "2024-01-01", c.StartDate.Time.Format(dateLayout), "week wins over start_date")
}

func TestContractService_RegisterIgnoresInvalidParams(t *testing.T) {
	f := newContractFixture()

	for _, params := range []map[string]any{
		{"start_date": "01.01.2024"},
		{"week": "0"},
		{"week": float64(40)},
		{"week": "abc"},
		nil,
	} {
		c, err := f.svc.Register(context.Background(), RegisterRequest{ContractID: "6", Preset: contract.PresetPregnancy, Params: params})
		require.NoError(t, err)
		assert.False(t, c.StartDate.Valid, "params=%v", params)
	}
}

func TestContractService_RegisterRejectsInvalidID(t *testing.T) {
	f := newContractFixture()

	_, err := f.svc.Register(context.Background(), RegisterRequest{ContractID: "abc", Preset: contract.PresetPregnancy})
	assert.ErrorIs(t, err, ErrInvalidContractID)
	assert.Zero(t, f.trigger.calls)
}

func TestContractService_ReactivationKeepsLedgerAndStart(t *testing.T) {
	f := newContractFixture()
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterRequest{ContractID: "42", Preset: contract.PresetPregnancy, Params: map[string]any{"start_date": "2024-01-01"}})
	require.NoError(t, err)
	require.NoError(t, f.store.Record(ctx, 1, 42))

	c, err := f.svc.Register(ctx, RegisterRequest{ContractID: "42", Preset: contract.PresetHypertensia})
	require.NoError(t, err)
	assert.Equal(t, contract.Presets{"hypertensia"}, c.Presets)
	assert.True(t, c.StartDate.Valid, "reactivation without dates keeps the stored start")

	has, err := f.store.Has(ctx, 1, 42)
	require.NoError(t, err)
	assert.True(t, has, "ledger survives reactivation")
}

func TestContractService_RemoveCascadesLedger(t *testing.T) {
	f := newContractFixture()
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterRequest{ContractID: "42", Preset: contract.PresetPregnancy, Params: map[string]any{"start_date": "2024-01-01"}})
	require.NoError(t, err)
	require.NoError(t, f.store.Record(ctx, 1, 42))
	require.NoError(t, f.store.Record(ctx, 2, 42))

	require.NoError(t, f.svc.Remove(ctx, "42"))

	for _, id := range []int64{1, 2} {
		has, err := f.store.Has(ctx, id, 42)
		require.NoError(t, err)
		assert.False(t, has)
	}
	_, err = f.store.GetByID(ctx, 42)
	assert.ErrorIs(t, err, idb.ErrContractNotFound)

	assert.NoError(t, f.svc.Remove(ctx, "42"), "removing twice is fine")
	assert.ErrorIs(t, f.svc.Remove(ctx, "x"), ErrInvalidContractID)
}

func TestContractService_ReRegistrationAfterRemovalStartsClean(t *testing.T) {
	d := newDispatchFixture(t)
	svc := NewContractService(d.store, d.store, d.dispatcher.locks, nil, testLogger())
	ctx := context.Background()

	register := func() {
		_, err := svc.Register(ctx, RegisterRequest{ContractID: "42", Preset: contract.PresetPregnancy, Params: map[string]any{"start_date": "2024-01-01"}})
		require.NoError(t, err)
	}

	register()
	_, err := d.dispatcher.Tick(ctx)
	require.NoError(t, err)
	require.Len(t, d.sink.Sent(), 2)

	require.NoError(t, svc.Remove(ctx, "42"))
	register()
	d.sink.Reset()

	_, err = d.dispatcher.Tick(ctx)
	require.NoError(t, err)
	assert.Len(t, d.sink.Sent(), 2, "a re-registered contract is treated as new")
}

func TestContractService_Status(t *testing.T) {
	f := newContractFixture()
	ctx := context.Background()
	for _, id := range []string{"3", "1"} {
		_, err := f.svc.Register(ctx, RegisterRequest{ContractID: id, Preset: contract.PresetPregnancy})
		require.NoError(t, err)
	}

	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsTrackingData)
	assert.Equal(t, contract.KnownPresets, status.SupportedScenarios)
	assert.Equal(t, []int64{1, 3}, status.TrackedContracts)
}

func TestContractService_Details(t *testing.T) {
	f := newContractFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterRequest{ContractID: "42", Preset: contract.PresetPregnancy})
	require.NoError(t, err)
	require.NoError(t, f.store.Record(ctx, 2, 42))
	require.NoError(t, f.store.Record(ctx, 1, 42))

	details, err := f.svc.Details(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), details.Contract.ID)
	assert.Equal(t, []int64{1, 2}, details.Delivered)

	_, err = f.svc.Details(ctx, "43")
	assert.ErrorIs(t, err, idb.ErrContractNotFound)
}

func TestContractService_UpdateSettings(t *testing.T) {
	f := newContractFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterRequest{ContractID: "42", Preset: contract.PresetPregnancy, Params: map[string]any{"info_diet": true}})
	require.NoError(t, err)

	c, err := f.svc.UpdateSettings(ctx, "42", "2024-01-01", contract.PresetOther)
	require.NoError(t, err)
	assert.Equal(t, contract.Presets{"pregnancy", "diet"}, c.Presets, "other keeps presets")
	assert.Equal(t, "2024-01-01", c.StartDate.Time.Format(dateLayout))

	c, err = f.svc.UpdateSettings(ctx, "42", "2024-02-05", contract.PresetHypertensia)
	require.NoError(t, err)
	assert.Equal(t, contract.Presets{"hypertensia"}, c.Presets)
	assert.Equal(t, "2024-02-05", c.StartDate.Time.Format(dateLayout))

	c, err = f.svc.UpdateSettings(ctx, "42", "2024-02-05", "pregnancy|diet")
	require.NoError(t, err)
	assert.Equal(t, contract.Presets{"pregnancy", "diet"}, c.Presets)
}

func TestContractService_UpdateSettingsValidation(t *testing.T) {
	f := newContractFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterRequest{ContractID: "42", Preset: contract.PresetPregnancy})
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		date    string
		preset  string
		wantErr error
	}{
		{"bad id", "x", "2024-01-01", contract.PresetPregnancy, ErrInvalidContractID},
		{"bad date", "42", "2024-13-01", contract.PresetPregnancy, ErrInvalidDate},
		{"empty date", "42", "", contract.PresetPregnancy, ErrInvalidDate},
		{"unknown preset", "42", "2024-01-01", "diabetes", ErrInvalidPreset},
		{"unknown primary preset", "42", "2024-01-01", "diet|pregnancy", ErrInvalidPreset},
		{"empty preset", "42", "2024-01-01", " ", ErrInvalidPreset},
		{"unknown contract", "43", "2024-01-01", contract.PresetPregnancy, idb.ErrContractNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateSettings(ctx, tt.id, tt.date, tt.preset)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestContractService_ResetDeliveries(t *testing.T) {
	f := newContractFixture()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterRequest{ContractID: "42", Preset: contract.PresetPregnancy})
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, RegisterRequest{ContractID: "43", Preset: contract.PresetPregnancy})
	require.NoError(t, err)
	require.NoError(t, f.store.Record(ctx, 1, 42))
	require.NoError(t, f.store.Record(ctx, 1, 43))

	require.NoError(t, f.svc.ResetDeliveries(ctx, "42"))

	has, err := f.store.Has(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, has)
	has, err = f.store.Has(ctx, 1, 43)
	require.NoError(t, err)
	assert.True(t, has, "other contracts keep their ledger")

	_, err = f.store.GetByID(ctx, 42)
	assert.NoError(t, err, "contract itself stays tracked")

	assert.ErrorIs(t, f.svc.ResetDeliveries(ctx, "44"), idb.ErrContractNotFound)
	assert.ErrorIs(t, f.svc.ResetDeliveries(ctx, "x"), ErrInvalidContractID)
}
