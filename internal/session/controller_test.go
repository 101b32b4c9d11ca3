package session_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beesaferoot/propertyhub/internal/localstore"
	"github.com/beesaferoot/propertyhub/internal/models"
	"github.com/beesaferoot/propertyhub/internal/prefs"
	"github.com/beesaferoot/propertyhub/internal/remote"
	"github.com/beesaferoot/propertyhub/internal/remote/remotetest"
	"github.com/beesaferoot/propertyhub/internal/session"
	"github.com/beesaferoot/propertyhub/internal/syncengine"
)

const identity = "user_2tenant"

type testEnv struct {
	local    *localstore.Store
	server   *remote.GormStore
	recorder *remotetest.Recorder
	engine   *syncengine.Engine
	flags    *prefs.FileStore
	fixture  remotetest.Fixture
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	local, err := localstore.Open(filepath.Join(dir, "offline.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	server := remotetest.NewStore(t)
	return &testEnv{
		local:    local,
		server:   server,
		recorder: remotetest.NewRecorder(server),
		engine:   syncengine.New(local, syncengine.Options{}),
		flags:    prefs.NewFileStore(filepath.Join(dir, "prefs.yaml")),
		fixture:  remotetest.Seed(t, server, identity, 3),
	}
}

func (env *testEnv) controller(t *testing.T, id string, online bool) *session.Controller {
	t.Helper()
	c := session.New(env.engine, env.recorder, env.flags, session.Options{Identity: id, Online: online})
	t.Cleanup(c.Close)
	return c
}

func (env *testEnv) payment(amount int64) session.PaymentInput {
	return session.PaymentInput{
		TenantID:      env.fixture.Tenant.ID,
		BookingID:     &env.fixture.Booking.ID,
		Amount:        decimal.NewFromInt(amount),
		PaymentMethod: "cash",
	}
}

func (env *testEnv) localRows(t *testing.T) int64 {
	t.Helper()
	var total int64
	for _, table := range env.local.Tables() {
		n, err := env.local.Count(context.Background(), table, localstore.Query{})
		require.NoError(t, err)
		total += n
	}
	return total
}

func (env *testEnv) offlineRemotePayments(t *testing.T) []models.Payment {
	t.Helper()
	var rows []models.Payment
	require.NoError(t, env.server.DB().Where("reference_number LIKE ?", session.OfflineReferencePrefix+"%").Find(&rows).Error)
	return rows
}

func TestEnable_Preconditions(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)

	for name, c := range map[string]*session.Controller{
		"offline":         env.controller(t, identity, false),
		"unauthenticated": env.controller(t, "", true),
	} {
		t.Run(name, func(t *testing.T) {
			err := c.Enable(ctx)
			assert.ErrorIs(t, err, session.ErrPreconditionFailed)
			state := c.State()
			assert.False(t, state.OfflineMode)
			assert.False(t, state.Syncing)
			assert.NotEmpty(t, state.LastError)
		})
	}
	assert.Zero(t, env.recorder.Total())
	assert.Zero(t, env.localRows(t))
}

func TestEnable_DownloadsAndPersists(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	c := env.controller(t, identity, true)

	require.NoError(t, c.Enable(ctx))

	state := c.State()
	assert.True(t, state.OfflineMode)
	assert.False(t, state.Syncing)
	assert.True(t, state.Confirmed)
	assert.Empty(t, state.LastError)
	require.NotNil(t, state.LastSyncTime)

	flags, err := env.flags.Load(identity)
	require.NoError(t, err)
	assert.True(t, flags.OfflineMode)
	require.NotNil(t, flags.LastSync)
	assert.True(t, state.LastSyncTime.Equal(*flags.LastSync))

	tenant, ok := c.ReadCached(ctx, session.CachedTenant, env.fixture.Tenant.ID).(*localstore.Tenant)
	require.True(t, ok)
	assert.Equal(t, "Thoko", tenant.FirstName)
}

func TestEnable_FailureLeavesModeDisabled(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	c := env.controller(t, "user_without_record", true)

	err := c.Enable(ctx)
	assert.ErrorIs(t, err, syncengine.ErrNotFound)

	state := c.State()
	assert.False(t, state.OfflineMode)
	assert.False(t, state.Syncing)
	assert.NotEmpty(t, state.LastError)

	flags, err := env.flags.Load("user_without_record")
	require.NoError(t, err)
	assert.False(t, flags.OfflineMode)
}

func TestManualSync_Offline(t *testing.T) {
	env := setupTestEnv(t)
	c := env.controller(t, identity, false)

	_, err := c.ManualSync(context.Background())
	assert.ErrorIs(t, err, session.ErrOffline)
	assert.Equal(t, session.ErrOffline.Error(), c.State().LastError)
	assert.Zero(t, env.recorder.Total())
}

func TestManualSync_SecondCallIsRejectedWhileSyncing(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	c := env.controller(t, identity, true)
	_, err := c.RecordOfflinePayment(ctx, env.payment(5000))
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	env.recorder.BeforeCall = func(string) {
		once.Do(func() {
			close(started)
			<-release
		})
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.ManualSync(ctx)
		done <- err
	}()
	<-started

	assert.True(t, c.State().Syncing)
	_, err = c.ManualSync(ctx)
	assert.ErrorIs(t, err, session.ErrSyncInProgress)

	close(release)
	require.NoError(t, <-done)

	// exactly one upload and one download reached the server
	assert.Equal(t, 1, env.recorder.Calls("insert"))
	assert.Equal(t, 2, env.recorder.Calls("select_where"))
	assert.Len(t, env.offlineRemotePayments(t), 1)
	assert.False(t, c.State().Syncing)
}

func TestDisable_FlushesThenClears(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	c := env.controller(t, identity, true)
	require.NoError(t, c.Enable(ctx))

	for _, amount := range []int64{5000, 7000} {
		_, err := c.RecordOfflinePayment(ctx, env.payment(amount))
		require.NoError(t, err)
	}
	require.Equal(t, int64(2), c.State().PendingSyncCount)

	flush, err := c.Disable(ctx, session.DisableOptions{})
	require.NoError(t, err)
	require.NotNil(t, flush)
	assert.Equal(t, syncengine.Counts{Success: 2}, flush.Payments)

	assert.Equal(t, 2, env.recorder.Calls("insert"))
	assert.Len(t, env.offlineRemotePayments(t), 2)
	assert.Zero(t, env.localRows(t))

	state := c.State()
	assert.False(t, state.OfflineMode)
	assert.Zero(t, state.PendingSyncCount)
	assert.False(t, state.Syncing)

	flags, err := env.flags.Load(identity)
	require.NoError(t, err)
	assert.False(t, flags.OfflineMode)
}

func TestDisable_PurgesEvenWhenFlushFails(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	c := env.controller(t, identity, true)
	require.NoError(t, c.Enable(ctx))
	_, err := c.RecordOfflinePayment(ctx, env.payment(5000))
	require.NoError(t, err)
	env.recorder.FailInsert(1, remote.ErrUnavailable)

	flush, err := c.Disable(ctx, session.DisableOptions{})
	require.NoError(t, err)
	require.NotNil(t, flush)
	assert.Equal(t, 1, flush.Payments.Failed)
	assert.Zero(t, env.localRows(t))
	assert.False(t, c.State().OfflineMode)
}

func TestDisable_KeepOnFlushFailure(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	c := env.controller(t, identity, true)
	require.NoError(t, c.Enable(ctx))
	_, err := c.RecordOfflinePayment(ctx, env.payment(5000))
	require.NoError(t, err)
	env.recorder.FailInsert(1, remote.ErrUnavailable)

	flush, err := c.Disable(ctx, session.DisableOptions{KeepOnFlushFailure: true})
	assert.ErrorIs(t, err, session.ErrFlushIncomplete)
	require.NotNil(t, flush)
	assert.Equal(t, 1, flush.Payments.Failed)

	state := c.State()
	assert.True(t, state.OfflineMode)
	assert.False(t, state.Syncing)
	assert.Equal(t, session.ErrFlushIncomplete.Error(), state.LastError)
	assert.NotZero(t, env.localRows(t))
}

func TestDisable_OfflineKeepOnFlushFailure(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	c := env.controller(t, identity, true)
	require.NoError(t, c.Enable(ctx))
	c.SetOnline(ctx, false)
	_, err := c.RecordOfflinePayment(ctx, env.payment(5000))
	require.NoError(t, err)

	flush, err := c.Disable(ctx, session.DisableOptions{KeepOnFlushFailure: true})
	assert.ErrorIs(t, err, session.ErrFlushIncomplete)
	assert.Nil(t, flush)
	assert.True(t, c.State().OfflineMode)

	// without the option the pending payment is discarded
	flush, err = c.Disable(ctx, session.DisableOptions{})
	require.NoError(t, err)
	assert.Nil(t, flush)
	assert.Zero(t, env.localRows(t))
	assert.Zero(t, env.recorder.Calls("insert"))
}

func TestOfflinePaymentLifecycle(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	c := env.controller(t, identity, true)

	require.NoError(t, c.Enable(ctx))
	assert.True(t, c.State().OfflineMode)
	payments, ok := c.ReadCached(ctx, session.CachedPayments, env.fixture.Tenant.ID).([]localstore.Payment)
	require.True(t, ok)
	assert.Len(t, payments, 3)

	c.SetOnline(ctx, false)
	assert.False(t, c.State().Online)

	localID, err := c.RecordOfflinePayment(ctx, env.payment(5000))
	require.NoError(t, err)
	assert.NotZero(t, localID)
	assert.Equal(t, int64(1), c.State().PendingSyncCount)
	assert.Zero(t, env.recorder.Calls("insert"))

	c.SetOnline(ctx, true)

	state := c.State()
	assert.True(t, state.Online)
	assert.False(t, state.Syncing)
	assert.Zero(t, state.PendingSyncCount)
	assert.Empty(t, state.LastError)

	rows := env.offlineRemotePayments(t)
	require.Len(t, rows, 1)
	assert.True(t, decimal.NewFromInt(5000).Equal(rows[0].Amount))

	var payment localstore.Payment
	require.NoError(t, env.local.Get(ctx, &payment, localID))
	assert.Equal(t, localstore.SyncStatusSynced, payment.SyncStatus)
	require.NotNil(t, payment.ID)
	assert.Equal(t, rows[0].ID, *payment.ID)
}

func TestSetOnline_NoSyncWhenDisabledOrAlreadyOnline(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)

	disabled := env.controller(t, identity, false)
	disabled.SetOnline(ctx, true)
	assert.Zero(t, env.recorder.Total())

	enabled := env.controller(t, identity, true)
	require.NoError(t, enabled.Enable(ctx))
	calls := env.recorder.Total()
	enabled.SetOnline(ctx, true)
	assert.Equal(t, calls, env.recorder.Total())
}

func TestAutoSync_FailureSetsError(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	c := env.controller(t, identity, true)
	require.NoError(t, c.Enable(ctx))
	before := c.State().LastSyncTime

	c.SetOnline(ctx, false)
	localID, err := c.RecordOfflinePayment(ctx, env.payment(5000))
	require.NoError(t, err)
	_, err = c.RecordOfflinePayment(ctx, env.payment(2500))
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.State().PendingSyncCount)
	env.recorder.FailInsert(1, remote.ErrUnavailable)
	c.SetOnline(ctx, true)

	state := c.State()
	assert.Equal(t, session.AutoSyncFailed, state.LastError)
	assert.Equal(t, before, state.LastSyncTime)
	stored, err := env.local.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, stored)
	assert.Equal(t, stored, state.PendingSyncCount)

	var payment localstore.Payment
	require.NoError(t, env.local.Get(ctx, &payment, localID))
	assert.Equal(t, localstore.SyncStatusFailed, payment.SyncStatus)

	c.ClearError()
	assert.Empty(t, c.State().LastError)

	moved, err := c.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)
	assert.Equal(t, int64(1), c.State().PendingSyncCount)

	_, err = c.ManualSync(ctx)
	require.NoError(t, err)
	assert.Zero(t, c.State().PendingSyncCount)
	assert.Len(t, env.offlineRemotePayments(t), 2)
}

func TestRecordOfflinePayment(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)

	_, err := env.controller(t, "", true).RecordOfflinePayment(ctx, env.payment(5000))
	assert.ErrorIs(t, err, session.ErrUnauthenticated)

	c := env.controller(t, identity, false)
	_, err = c.RecordOfflinePayment(ctx, env.payment(0))
	assert.ErrorIs(t, err, session.ErrInvalidInput)

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		localID, err := c.RecordOfflinePayment(ctx, env.payment(1000))
		require.NoError(t, err)

		var p localstore.Payment
		require.NoError(t, env.local.Get(ctx, &p, localID))
		assert.True(t, strings.HasPrefix(p.ReferenceNumber, session.OfflineReferencePrefix))
		assert.False(t, seen[p.ReferenceNumber], "duplicate reference %s", p.ReferenceNumber)
		seen[p.ReferenceNumber] = true
		assert.Equal(t, localstore.SyncStatusPending, p.SyncStatus)
		assert.Equal(t, models.PaymentPending, p.Status)
		assert.Nil(t, p.ID)
	}

	// the count is only shown while offline mode is on
	assert.Zero(t, c.State().PendingSyncCount)
}

func TestReadCached(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	c := env.controller(t, identity, true)
	tenantID := env.fixture.Tenant.ID

	assert.Nil(t, c.ReadCached(ctx, session.CachedBooking, tenantID))
	assert.Nil(t, c.ReadCached(ctx, session.CachedPayments, tenantID))
	assert.Nil(t, c.ReadCached(ctx, session.CachedHostel, tenantID))
	assert.Nil(t, c.ReadCached(ctx, session.CachedTenant, tenantID))

	require.NoError(t, c.Enable(ctx))

	booking, ok := c.ReadCached(ctx, session.CachedBooking, tenantID).(*localstore.Booking)
	require.True(t, ok)
	assert.Equal(t, env.fixture.Booking.ID, booking.ID)

	hostel, ok := c.ReadCached(ctx, session.CachedHostel, tenantID).(*localstore.Hostel)
	require.True(t, ok)
	assert.Equal(t, "Chancellor Hostel", hostel.Name)

	payments, ok := c.ReadCached(ctx, session.CachedPayments, tenantID).([]localstore.Payment)
	require.True(t, ok)
	require.Len(t, payments, 3)
	assert.True(t, payments[0].CreatedAt.After(payments[2].CreatedAt))

	assert.Nil(t, c.ReadCached(ctx, "invoices", tenantID))
	assert.Nil(t, c.ReadCached(ctx, session.CachedBooking, tenantID+100))
}

func TestQueueMutation(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	c := env.controller(t, identity, true)
	require.NoError(t, c.Enable(ctx))
	tenantID := env.fixture.Tenant.ID

	_, err := c.QueueMutation(ctx, "invoices", 1, localstore.ActionDelete, nil)
	assert.ErrorIs(t, err, session.ErrInvalidInput)
	_, err = c.QueueMutation(ctx, models.TableTenants, tenantID, "create", nil)
	assert.ErrorIs(t, err, session.ErrInvalidInput)
	_, err = c.QueueMutation(ctx, models.TableTenants, tenantID, localstore.ActionUpdate, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, session.ErrInvalidInput)

	id, err := c.QueueMutation(ctx, models.TableTenants, tenantID, localstore.ActionUpdate, json.RawMessage(`{"phone":"0888123456"}`))
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, int64(1), c.State().PendingSyncCount)

	_, err = c.ManualSync(ctx)
	require.NoError(t, err)
	assert.Zero(t, c.State().PendingSyncCount)

	var tenant models.Tenant
	require.NoError(t, env.server.DB().First(&tenant, tenantID).Error)
	assert.Equal(t, "0888123456", tenant.Phone)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)

	first := env.controller(t, identity, true)
	require.NoError(t, first.Enable(ctx))
	_, err := first.RecordOfflinePayment(ctx, env.payment(5000))
	require.NoError(t, err)
	saved := first.State().LastSyncTime
	first.Close()

	restarted := env.controller(t, identity, false)
	require.NoError(t, restarted.Restore(ctx))
	state := restarted.State()
	assert.True(t, state.OfflineMode)
	assert.False(t, state.Confirmed)
	assert.Equal(t, int64(1), state.PendingSyncCount)
	require.NotNil(t, state.LastSyncTime)
	assert.True(t, saved.Equal(*state.LastSyncTime))

	restarted.SetOnline(ctx, true)
	state = restarted.State()
	assert.True(t, state.Confirmed)
	assert.Zero(t, state.PendingSyncCount)
	assert.True(t, state.LastSyncTime.After(*saved) || state.LastSyncTime.Equal(*saved))

	other := env.controller(t, "user_other", false)
	require.NoError(t, other.Restore(ctx))
	assert.False(t, other.State().OfflineMode)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	c := env.controller(t, identity, true)

	updates, cancel := c.Subscribe()
	c.SetOnline(ctx, false)

	select {
	case state := <-updates:
		assert.False(t, state.Online)
	case <-time.After(time.Second):
		t.Fatal("no state update received")
	}

	cancel()
	for range updates {
	}
	cancel()
}
