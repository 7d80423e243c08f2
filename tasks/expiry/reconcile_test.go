package expiry

import (
	"context"
	"errors"
	"testing"
	"time"

	"discord-modbot/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResumeOnStartLiftsOverdueAndArmsTheRest(t *testing.T) {
	t.Parallel()

	now := time.Now()
	voided := record("V1", model.ActionBan, now.Add(-time.Minute))
	voided.Status = model.StatusVoided
	store := newMemStore(
		record("C1", model.ActionBan, now.Add(-5000*time.Millisecond)),
		record("C2", model.ActionTimeout, now.Add(-time.Second)),
		record("C3", model.ActionBan, now.Add(time.Hour)),
		voided,
	)
	guild := &fakeGuild{}
	m := newTestManager(t, store, guild, &fakeAudit{})

	resolved, err := m.ResumeOnStart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, resolved)

	c1, _ := store.get("C1")
	assert.Equal(t, model.StatusExpired, c1.Status)
	assert.False(t, c1.EndsAt.Valid)

	unban := store.synthetics("C1")
	require.Len(t, unban, 1)
	assert.Equal(t, model.ActionUnban, unban[0].Action)
	assert.Equal(t, model.StatusExecuted, unban[0].Status)
	assert.Equal(t, c1.GuildID, unban[0].GuildID)
	assert.Equal(t, c1.UserID, unban[0].UserID)

	require.Len(t, store.synthetics("C2"), 1)
	assert.Empty(t, store.synthetics("V1"))

	assert.Equal(t, 1, m.ScheduledCount())
	assert.True(t, m.IsScheduled("C3"))
	assert.Equal(t, 2, guild.count())
}

func TestResumeOnStartExpiresEvenWhenReversalFails(t *testing.T) {
	t.Parallel()

	store := newMemStore(record("C1", model.ActionBan, time.Now().Add(-time.Minute)))
	m := newTestManager(t, store, &fakeGuild{err: errors.New("unknown member")}, nil)

	resolved, err := m.ResumeOnStart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Len(t, store.synthetics("C1"), 1)
}

func TestResumeOnStartPropagatesStoreFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.failLoads = errStoreDown
	m := newTestManager(t, store, &fakeGuild{}, nil)

	_, err := m.ResumeOnStart(context.Background())
	require.ErrorIs(t, err, errStoreDown)
}

func TestSummaryListsPendingPunishments(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	rec := record("C1", model.ActionTimeout, now.Add(90*time.Minute))
	rec.Duration = "2h"
	store := newMemStore(rec, record("C2", model.ActionBan, now.Add(-time.Minute)))

	m := New(store, &fakeGuild{}, nil, Options{Now: func() time.Time { return now }})
	t.Cleanup(m.Stop)
	require.NoError(t, m.Rescan(context.Background()))

	summary, err := m.Summary(context.Background(), "guild-1")
	require.NoError(t, err)
	require.Len(t, summary.Entries, 1)

	e := summary.Entries[0]
	assert.Equal(t, "C1", e.CaseID)
	assert.Equal(t, "member#C1", e.User)
	assert.Equal(t, 90*time.Minute, e.Remaining)
	assert.True(t, e.Armed)

	out := summary.String()
	assert.Contains(t, out, "Total Active Timers: 1")
	assert.Contains(t, out, "[TIMER] TIMEOUT | User: member#C1 | Duration: 2h | Case: C1")
	assert.Contains(t, out, "Time Left: 1h30m0s")
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "skipped", OutcomeSkipped.String())
	assert.Equal(t, "expired", OutcomeExpired.String())
	assert.Equal(t, "Outcome(7)", Outcome(7).String())
}

func TestSummaryIsScopedToGuild(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	a1 := record("A1", model.ActionBan, now.Add(time.Hour))
	b1 := record("B1", model.ActionTimeout, now.Add(2*time.Hour))
	b1.GuildID = "guild-2"
	store := newMemStore(a1, b1)

	m := New(store, &fakeGuild{}, nil, Options{Now: func() time.Time { return now }})
	t.Cleanup(m.Stop)

	summary, err := m.Summary(context.Background(), "guild-1")
	require.NoError(t, err)
	require.Len(t, summary.Entries, 1)
	assert.Equal(t, "A1", summary.Entries[0].CaseID)
	assert.NotContains(t, summary.String(), "member#B1")

	summary, err = m.Summary(context.Background(), "guild-2")
	require.NoError(t, err)
	require.Len(t, summary.Entries, 1)
	assert.Equal(t, "B1", summary.Entries[0].CaseID)

	all, err := m.Summary(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all.Entries, 2)
}
