package expiry

import (
	"context"
	"sync"
	"testing"
	"time"

	"discord-modbot/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRescanArmsOneTimerPerActiveRecord(t *testing.T) {
	t.Parallel()

	now := time.Now()
	voided := record("V1", model.ActionBan, now.Add(time.Hour))
	voided.Status = model.StatusVoided
	store := newMemStore(
		record("C1", model.ActionBan, now.Add(time.Hour)),
		record("C2", model.ActionTimeout, now.Add(2*time.Hour)),
		record("C3", model.ActionBan, now.Add(3*time.Hour)),
		voided,
	)
	m := newTestManager(t, store, &fakeGuild{}, nil)

	require.NoError(t, m.Rescan(context.Background()))
	require.NoError(t, m.Rescan(context.Background()))

	assert.Equal(t, 3, m.ScheduledCount())
	for _, id := range []string{"C1", "C2", "C3"} {
		assert.True(t, m.IsScheduled(id), id)
	}
	assert.False(t, m.IsScheduled("V1"))
}

func TestRescanDropsTimersForCasesVoidedSinceLastScan(t *testing.T) {
	t.Parallel()

	now := time.Now()
	store := newMemStore(
		record("C1", model.ActionBan, now.Add(time.Hour)),
		record("C2", model.ActionBan, now.Add(time.Hour)),
	)
	m := newTestManager(t, store, &fakeGuild{}, nil)

	require.NoError(t, m.Rescan(context.Background()))
	require.True(t, m.IsScheduled("C2"))

	store.setStatus("C2", model.StatusVoided)
	require.NoError(t, m.Rescan(context.Background()))

	assert.Equal(t, 1, m.ScheduledCount())
	assert.False(t, m.IsScheduled("C2"))
}

func TestRescanExecutesRecordsThatExpiredWhileLoading(t *testing.T) {
	t.Parallel()

	rec := record("C1", model.ActionBan, time.Now().Add(-time.Second))
	store := newMemStore(rec)
	store.pendingHook = func(time.Time) []model.PunishmentRecord { return []model.PunishmentRecord{rec} }
	guild := &fakeGuild{}
	m := newTestManager(t, store, guild, nil)

	require.NoError(t, m.Rescan(context.Background()))

	got, _ := store.get("C1")
	assert.Equal(t, model.StatusExpired, got.Status)
	assert.Zero(t, m.ScheduledCount())
	assert.Equal(t, 1, guild.count())
}

func TestRescanRetriesOverdueRecords(t *testing.T) {
	t.Parallel()

	store := newMemStore(record("C1", model.ActionTimeout, time.Now().Add(-time.Minute)))
	guild := &fakeGuild{}
	m := newTestManager(t, store, guild, nil)

	require.NoError(t, m.Rescan(context.Background()))

	got, _ := store.get("C1")
	assert.Equal(t, model.StatusExpired, got.Status)
	assert.Len(t, store.synthetics("C1"), 1)
	assert.Equal(t, []call{{op: "untimeout", guildID: "guild-1", userID: "user-C1"}}, guild.calls)
}

func TestRescanReturnsStoreErrors(t *testing.T) {
	t.Parallel()

	store := newMemStore(record("C1", model.ActionBan, time.Now().Add(time.Hour)))
	m := newTestManager(t, store, &fakeGuild{}, nil)
	require.NoError(t, m.Rescan(context.Background()))

	store.mu.Lock()
	store.failLoads = errStoreDown
	store.mu.Unlock()

	err := m.Rescan(context.Background())
	require.ErrorIs(t, err, errStoreDown)
	assert.Zero(t, m.ScheduledCount())
}

func TestTimerFiresAndReleasesItsEntry(t *testing.T) {
	t.Parallel()

	store := newMemStore(record("C1", model.ActionBan, time.Now().Add(50*time.Millisecond)))
	guild := &fakeGuild{}
	m := newTestManager(t, store, guild, nil)

	require.NoError(t, m.Rescan(context.Background()))
	require.True(t, m.IsScheduled("C1"))

	require.Eventually(t, func() bool {
		got, _ := store.get("C1")
		return got.Status == model.StatusExpired && m.ScheduledCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, guild.count())
	assert.Len(t, store.synthetics("C1"), 1)
}

func TestTimerAbortsWhenCaseVoidedBeforeFire(t *testing.T) {
	t.Parallel()

	store := newMemStore(record("C1", model.ActionBan, time.Now().Add(100*time.Millisecond)))
	guild := &fakeGuild{}
	m := newTestManager(t, store, guild, nil)

	require.NoError(t, m.Rescan(context.Background()))
	store.setStatus("C1", model.StatusVoided)

	require.Eventually(t, func() bool { return !m.IsScheduled("C1") }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, guild.count())
	got, _ := store.get("C1")
	assert.Equal(t, model.StatusVoided, got.Status)
	assert.Empty(t, store.synthetics("C1"))
}

func TestOverlappingSweepsWriteOneLift(t *testing.T) {
	t.Parallel()

	rec := record("C1", model.ActionBan, time.Now().Add(-time.Second))
	store := newMemStore(rec)
	store.pendingHook = func(time.Time) []model.PunishmentRecord { return []model.PunishmentRecord{rec} }
	guild := &fakeGuild{delay: 20 * time.Millisecond}
	m := newTestManager(t, store, guild, nil)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Rescan(context.Background()))
		}()
		go func() {
			defer wg.Done()
			_, err := m.ResumeOnStart(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, store.synthetics("C1"), 1)
	assert.Equal(t, 1, guild.count())
}

func TestStartPeriodicSweepIsIdempotent(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, newMemStore(), &fakeGuild{}, nil)
	m.StartPeriodicSweep()
	first := m.cron
	m.StartPeriodicSweep()

	assert.Same(t, first, m.cron)
	assert.Len(t, m.cron.Entries(), 1)
}

func TestNotifySchedulesNewPunishment(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	m := newTestManager(t, store, &fakeGuild{}, nil)
	m.StartPeriodicSweep()

	store.mu.Lock()
	store.records["C9"] = record("C9", model.ActionTimeout, time.Now().Add(time.Hour))
	store.mu.Unlock()
	m.Notify()

	require.Eventually(t, func() bool { return m.IsScheduled("C9") }, 2*time.Second, 10*time.Millisecond)
}

func TestFailedSweepDoesNotBlockTheNext(t *testing.T) {
	t.Parallel()

	store := newMemStore(record("C1", model.ActionBan, time.Now().Add(time.Hour)))
	store.failLoads = errStoreDown
	m := newTestManager(t, store, &fakeGuild{}, nil)
	m.StartPeriodicSweep()

	m.Notify()
	assert.Never(t, func() bool { return m.IsScheduled("C1") }, 100*time.Millisecond, 10*time.Millisecond)

	store.mu.Lock()
	store.failLoads = nil
	store.mu.Unlock()
	m.Notify()

	require.Eventually(t, func() bool { return m.IsScheduled("C1") }, 2*time.Second, 10*time.Millisecond)
}
