package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	for _, s := range []string{"WARN", "BAN", "TIMEOUT", "KICK", "UNBAN", "UNMUTE"} {
		a, err := ParseAction(s)
		require.NoError(t, err)
		assert.Equal(t, Action(s), a)
	}
	_, err := ParseAction("ban")
	assert.Error(t, err)
	_, err = ParseAction("MUTE")
	assert.Error(t, err)
}

func TestLiftAction(t *testing.T) {
	lift, ok := ActionBan.LiftAction()
	assert.True(t, ok)
	assert.Equal(t, ActionUnban, lift)

	lift, ok = ActionTimeout.LiftAction()
	assert.True(t, ok)
	assert.Equal(t, ActionUnmute, lift)

	for _, a := range []Action{ActionWarn, ActionKick, ActionUnban, ActionUnmute, Action("X")} {
		_, ok := a.LiftAction()
		assert.False(t, ok, a)
		assert.False(t, a.Liftable(), a)
	}
	assert.True(t, ActionBan.Liftable())
	assert.True(t, ActionTimeout.Liftable())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusActive.Terminal())
	for _, s := range []Status{StatusExpired, StatusExecuted, StatusVoided, StatusRemoved} {
		assert.True(t, s.Terminal(), s)
	}

	_, err := ParseStatus("PENDING")
	assert.Error(t, err)
}

func TestExpiry(t *testing.T) {
	var rec PunishmentRecord
	_, ok := rec.Expiry()
	assert.False(t, ok)

	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	rec.SetExpiry(at)
	got, ok := rec.Expiry()
	require.True(t, ok)
	assert.True(t, got.Equal(at))

	rec.SetExpiry(time.Time{})
	assert.False(t, rec.EndsAt.Valid)
}

func TestDisplay(t *testing.T) {
	rec := PunishmentRecord{UserID: "42"}
	assert.Equal(t, "42", rec.Display())
	rec.UserTag = "member#0042"
	assert.Equal(t, "member#0042", rec.Display())
}
