package model

import (
	"database/sql"
	"fmt"
	"time"
)

// Action is the kind of moderation action a record documents.
type Action string

const (
	ActionWarn    Action = "WARN"
	ActionBan     Action = "BAN"
	ActionTimeout Action = "TIMEOUT"
	ActionKick    Action = "KICK"
	ActionUnban   Action = "UNBAN"
	ActionUnmute  Action = "UNMUTE"
)

// ParseAction validates a stored or user supplied action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionWarn, ActionBan, ActionTimeout, ActionKick, ActionUnban, ActionUnmute:
		return a, nil
	default:
		return "", fmt.Errorf("unknown punishment action %q", s)
	}
}

// Liftable reports whether the action has a real-world effect that can expire.
func (a Action) Liftable() bool {
	switch a {
	case ActionBan, ActionTimeout:
		return true
	case ActionWarn, ActionKick, ActionUnban, ActionUnmute:
		return false
	default:
		return false
	}
}

// LiftAction returns the synthetic action recorded when a punishment of kind a expires.
func (a Action) LiftAction() (Action, bool) {
	switch a {
	case ActionBan:
		return ActionUnban, true
	case ActionTimeout:
		return ActionUnmute, true
	case ActionWarn, ActionKick, ActionUnban, ActionUnmute:
		return "", false
	default:
		return "", false
	}
}

// Status is the lifecycle state of a punishment record.
// ACTIVE is the only non-terminal state.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusExpired  Status = "EXPIRED"
	StatusExecuted Status = "EXECUTED"
	StatusVoided   Status = "VOIDED"
	StatusRemoved  Status = "REMOVED"
)

// ParseStatus validates a stored status value.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusActive, StatusExpired, StatusExecuted, StatusVoided, StatusRemoved:
		return st, nil
	default:
		return "", fmt.Errorf("unknown punishment status %q", s)
	}
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusActive:
		return false
	case StatusExpired, StatusExecuted, StatusVoided, StatusRemoved:
		return true
	default:
		return true
	}
}

// PunishmentRecord is one row of the modlogs table.
type PunishmentRecord struct {
	CaseID       string        `db:"case_id"`
	ParentCaseID string        `db:"parent_case_id"`
	GuildID      string        `db:"guild_id"`
	UserID       string        `db:"user_id"`
	UserTag      string        `db:"user_tag"`
	ModeratorID  string        `db:"moderator_id"`
	ModeratorTag string        `db:"moderator_tag"`
	Action       Action        `db:"action"`
	Status       Status        `db:"status"`
	Reason       string        `db:"reason"`
	Duration     string        `db:"action_duration"` // as typed by the moderator, e.g. "7d"
	CreatedAt    int64         `db:"created_at"`      // unix millis
	EndsAt       sql.NullInt64 `db:"ends_at"`         // unix millis
}

// Expiry returns the record's expiry time, if it has one.
func (r PunishmentRecord) Expiry() (time.Time, bool) {
	if !r.EndsAt.Valid {
		return time.Time{}, false
	}
	return time.UnixMilli(r.EndsAt.Int64), true
}

// SetExpiry sets or clears ends_at.
func (r *PunishmentRecord) SetExpiry(t time.Time) {
	if t.IsZero() {
		r.EndsAt = sql.NullInt64{}
		return
	}
	r.EndsAt = sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

// Display returns the best human label for the punished user.
func (r PunishmentRecord) Display() string {
	if r.UserTag != "" {
		return r.UserTag
	}
	return r.UserID
}
