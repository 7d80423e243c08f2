package expiry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"discord-modbot/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, store Store, guild GuildActions, audit AuditSink) *Manager {
	t.Helper()
	m := New(store, guild, audit, Options{})
	m.SetActor("bot-1", "modbot#0001")
	t.Cleanup(m.Stop)
	return m
}

func TestExecuteLiftsExpiredBan(t *testing.T) {
	t.Parallel()

	store := newMemStore(record("C1", model.ActionBan, time.Now().Add(-5*time.Second)))
	guild := &fakeGuild{}
	audit := &fakeAudit{}
	m := newTestManager(t, store, guild, audit)

	outcome, err := m.Execute(context.Background(), record("C1", model.ActionBan, time.Now().Add(-5*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, outcome)

	parent, ok := store.get("C1")
	require.True(t, ok)
	assert.Equal(t, model.StatusExpired, parent.Status)
	assert.False(t, parent.EndsAt.Valid)

	lift, ok := store.get("AUTO-UNBAN-C1")
	require.True(t, ok)
	assert.Equal(t, model.ActionUnban, lift.Action)
	assert.Equal(t, model.StatusExecuted, lift.Status)
	assert.Equal(t, "C1", lift.ParentCaseID)
	assert.Equal(t, parent.GuildID, lift.GuildID)
	assert.Equal(t, parent.UserID, lift.UserID)
	assert.Equal(t, "bot-1", lift.ModeratorID)
	assert.False(t, lift.EndsAt.Valid)

	require.Equal(t, []call{{op: "unban", guildID: "guild-1", userID: "user-C1"}}, guild.calls)
	require.Equal(t, 1, audit.count())
	assert.True(t, audit.notices[0].ReversalOK)
}

func TestExecuteTimeoutWritesUnmute(t *testing.T) {
	t.Parallel()

	rec := record("T1", model.ActionTimeout, time.Now().Add(-time.Second))
	store := newMemStore(rec)
	guild := &fakeGuild{}
	m := newTestManager(t, store, guild, nil)

	outcome, err := m.Execute(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, outcome)

	lift, ok := store.get("AUTO-UNMUTE-T1")
	require.True(t, ok)
	assert.Equal(t, model.ActionUnmute, lift.Action)
	assert.Equal(t, "untimeout", guild.calls[0].op)
}

func TestExecuteTwiceRevertsOnce(t *testing.T) {
	t.Parallel()

	rec := record("C1", model.ActionBan, time.Now().Add(-time.Minute))
	store := newMemStore(rec)
	guild := &fakeGuild{}
	m := newTestManager(t, store, guild, nil)

	first, err := m.Execute(context.Background(), rec)
	require.NoError(t, err)
	second, err := m.Execute(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, OutcomeExpired, first)
	assert.Equal(t, OutcomeSkipped, second)
	assert.Equal(t, 1, guild.count())
	assert.Len(t, store.synthetics("C1"), 1)
}

func TestExecuteConcurrentCallsCollapse(t *testing.T) {
	t.Parallel()

	rec := record("C1", model.ActionBan, time.Now().Add(-time.Minute))
	store := newMemStore(rec)
	guild := &fakeGuild{delay: 50 * time.Millisecond}
	m := newTestManager(t, store, guild, nil)

	const callers = 8
	outcomes := make(chan Outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := m.Execute(context.Background(), rec)
			assert.NoError(t, err)
			outcomes <- o
		}()
	}
	wg.Wait()
	close(outcomes)

	expired := 0
	for o := range outcomes {
		if o == OutcomeExpired {
			expired++
		}
	}
	assert.Equal(t, 1, expired)
	assert.Equal(t, 1, guild.count())
	assert.Len(t, store.synthetics("C1"), 1)
}

func TestExecuteSkipsCasesNoLongerActive(t *testing.T) {
	t.Parallel()

	for _, status := range []model.Status{model.StatusVoided, model.StatusRemoved, model.StatusExpired} {
		status := status
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()

			rec := record("C1", model.ActionBan, time.Now().Add(-time.Minute))
			store := newMemStore(rec)
			store.setStatus("C1", status)
			guild := &fakeGuild{}
			m := newTestManager(t, store, guild, nil)

			outcome, err := m.Execute(context.Background(), rec)
			require.NoError(t, err)
			assert.Equal(t, OutcomeSkipped, outcome)
			assert.Zero(t, guild.count())
			assert.Empty(t, store.synthetics("C1"))

			got, _ := store.get("C1")
			assert.Equal(t, status, got.Status)
		})
	}
}

func TestExecuteMissingCaseIsSkipped(t *testing.T) {
	t.Parallel()

	guild := &fakeGuild{}
	m := newTestManager(t, newMemStore(), guild, nil)

	outcome, err := m.Execute(context.Background(), record("gone", model.ActionBan, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Zero(t, guild.count())
}

func TestExecuteReversalFailureStillExpires(t *testing.T) {
	t.Parallel()

	rec := record("C1", model.ActionTimeout, time.Now().Add(-time.Minute))
	store := newMemStore(rec)
	guild := &fakeGuild{err: errors.New("member not found")}
	audit := &fakeAudit{}
	m := newTestManager(t, store, guild, audit)

	outcome, err := m.Execute(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, outcome)

	got, _ := store.get("C1")
	assert.Equal(t, model.StatusExpired, got.Status)
	assert.Len(t, store.synthetics("C1"), 1)
	require.Equal(t, 1, audit.count())
	assert.False(t, audit.notices[0].ReversalOK)
}

func TestExecuteAuditFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	rec := record("C1", model.ActionBan, time.Now().Add(-time.Minute))
	store := newMemStore(rec)
	m := newTestManager(t, store, &fakeGuild{}, &fakeAudit{err: errors.New("missing access")})

	outcome, err := m.Execute(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, outcome)
	assert.Len(t, store.synthetics("C1"), 1)
}

func TestExecuteLosingRaceToManualReversalWritesNothing(t *testing.T) {
	t.Parallel()

	rec := record("C1", model.ActionBan, time.Now().Add(-time.Minute))
	store := newMemStore(rec)
	store.beforeExpire = func(caseID string) { store.setStatus(caseID, model.StatusRemoved) }
	m := newTestManager(t, store, &fakeGuild{}, nil)

	outcome, err := m.Execute(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	got, _ := store.get("C1")
	assert.Equal(t, model.StatusRemoved, got.Status)
	assert.Empty(t, store.synthetics("C1"))
}

func TestExecuteClearsExpiryOnActionsWithoutLift(t *testing.T) {
	t.Parallel()

	rec := record("W1", model.ActionWarn, time.Now().Add(-time.Minute))
	store := newMemStore(rec)
	guild := &fakeGuild{}
	m := newTestManager(t, store, guild, nil)

	outcome, err := m.Execute(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, outcome)

	got, _ := store.get("W1")
	assert.Equal(t, model.StatusExpired, got.Status)
	assert.False(t, got.EndsAt.Valid)
	assert.Zero(t, guild.count())
	assert.Empty(t, store.synthetics("W1"))
}
