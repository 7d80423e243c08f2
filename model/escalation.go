package model

// EscalationRule maps a count of active warnings to an automatic punishment.
type EscalationRule struct {
	GuildID       string `db:"guild_id"`
	WarningsCount int    `db:"warnings_count"`
	Action        Action `db:"action_type"`
	Duration      string `db:"action_duration"` // empty means permanent
}
