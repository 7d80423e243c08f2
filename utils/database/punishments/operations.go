package punishments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"discord-modbot/model"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when a case, channel or rule does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a case is no longer ACTIVE.
	ErrInvalidTransition = errors.New("case is not active")
)

// LogTypeModlog is the log_channels type used for moderation audit messages.
const LogTypeModlog = "modlog"

const selectColumns = `case_id, parent_case_id, guild_id, user_id, user_tag, moderator_id, moderator_tag,
	action, status, reason, action_duration, created_at, ends_at`

// Store is the durable punishment store backed by the modlogs table.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an initialized database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Insert adds a moderator-issued record.
func (s *Store) Insert(ctx context.Context, rec model.PunishmentRecord) error {
	if err := validateNew(rec); err != nil {
		return err
	}
	query := `INSERT INTO modlogs (case_id, parent_case_id, guild_id, user_id, user_tag, moderator_id, moderator_tag,
				action, status, reason, action_duration, created_at, ends_at)
			  VALUES (:case_id, :parent_case_id, :guild_id, :user_id, :user_tag, :moderator_id, :moderator_tag,
				:action, :status, :reason, :action_duration, :created_at, :ends_at)`
	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to insert punishment record %s: %w", rec.CaseID, err)
	}
	return nil
}

func validateNew(rec model.PunishmentRecord) error {
	if rec.CaseID == "" {
		return errors.New("punishment record has no case id")
	}
	if _, err := model.ParseAction(string(rec.Action)); err != nil {
		return err
	}
	if _, err := model.ParseStatus(string(rec.Status)); err != nil {
		return err
	}
	if rec.EndsAt.Valid && (rec.Status != model.StatusActive || !rec.Action.Liftable()) {
		return fmt.Errorf("case %s: only active %s/%s records may carry an expiry", rec.CaseID, model.ActionBan, model.ActionTimeout)
	}
	return nil
}

// Get loads a single record.
func (s *Store) Get(ctx context.Context, caseID string) (*model.PunishmentRecord, error) {
	var rec model.PunishmentRecord
	err := s.db.GetContext(ctx, &rec, `SELECT `+selectColumns+` FROM modlogs WHERE case_id = ?`, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("case %s: %w", caseID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case %s: %w", caseID, err)
	}
	return &rec, nil
}

// FindActiveDueBy returns ACTIVE records whose expiry is at or before the given time.
func (s *Store) FindActiveDueBy(ctx context.Context, before time.Time) ([]model.PunishmentRecord, error) {
	var records []model.PunishmentRecord
	query := `SELECT ` + selectColumns + ` FROM modlogs
			  WHERE status = 'ACTIVE' AND ends_at IS NOT NULL AND ends_at <= ?
			  ORDER BY ends_at ASC`
	if err := s.db.SelectContext(ctx, &records, query, before.UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to find due punishments: %w", err)
	}
	return records, nil
}

// FindActiveDueNow returns ACTIVE records that have already expired.
func (s *Store) FindActiveDueNow(ctx context.Context) ([]model.PunishmentRecord, error) {
	return s.FindActiveDueBy(ctx, time.Now())
}

// FindActivePending returns ACTIVE records that expire strictly after the given time.
func (s *Store) FindActivePending(ctx context.Context, after time.Time) ([]model.PunishmentRecord, error) {
	var records []model.PunishmentRecord
	query := `SELECT ` + selectColumns + ` FROM modlogs
			  WHERE status = 'ACTIVE' AND ends_at IS NOT NULL AND ends_at > ?
			  ORDER BY ends_at ASC`
	if err := s.db.SelectContext(ctx, &records, query, after.UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to find pending punishments: %w", err)
	}
	return records, nil
}

// GetStatus re-reads the current status of a case.
func (s *Store) GetStatus(ctx context.Context, caseID string) (model.Status, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, `SELECT status FROM modlogs WHERE case_id = ?`, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("case %s: %w", caseID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get status of case %s: %w", caseID, err)
	}
	return model.ParseStatus(raw)
}

// MarkExpired moves an ACTIVE case to EXPIRED and clears its expiry.
// It reports false when the case was not ACTIVE, so a second call is a no-op.
func (s *Store) MarkExpired(ctx context.Context, caseID string) (bool, error) {
	return markExpired(ctx, s.db, caseID)
}

// InsertSynthetic records an automatic lift. Duplicates for the same parent are ignored.
func (s *Store) InsertSynthetic(ctx context.Context, rec model.PunishmentRecord) error {
	return insertSynthetic(ctx, s.db, rec)
}

// ExpireWithSynthetic expires the parent case and records its synthetic lift atomically.
// It reports false, writing nothing, when the parent was no longer ACTIVE.
func (s *Store) ExpireWithSynthetic(ctx context.Context, caseID string, synthetic model.PunishmentRecord) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin expiry transaction for case %s: %w", caseID, err)
	}
	defer tx.Rollback()

	expired, err := markExpired(ctx, tx, caseID)
	if err != nil || !expired {
		return false, err
	}
	if err := insertSynthetic(ctx, tx, synthetic); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit expiry of case %s: %w", caseID, err)
	}
	return true, nil
}

func markExpired(ctx context.Context, ext sqlx.ExtContext, caseID string) (bool, error) {
	result, err := ext.ExecContext(ctx,
		`UPDATE modlogs SET status = 'EXPIRED', ends_at = NULL WHERE case_id = ? AND status = 'ACTIVE'`, caseID)
	if err != nil {
		return false, fmt.Errorf("failed to mark case %s expired: %w", caseID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected for case %s: %w", caseID, err)
	}
	return rowsAffected > 0, nil
}

func insertSynthetic(ctx context.Context, ext sqlx.ExtContext, rec model.PunishmentRecord) error {
	if rec.ParentCaseID == "" {
		return fmt.Errorf("synthetic record %s has no parent case", rec.CaseID)
	}
	if rec.Status != model.StatusExecuted || rec.EndsAt.Valid {
		return fmt.Errorf("synthetic record %s must be %s without expiry", rec.CaseID, model.StatusExecuted)
	}
	query := `INSERT OR IGNORE INTO modlogs (case_id, parent_case_id, guild_id, user_id, user_tag, moderator_id, moderator_tag,
				action, status, reason, action_duration, created_at, ends_at)
			  VALUES (:case_id, :parent_case_id, :guild_id, :user_id, :user_tag, :moderator_id, :moderator_tag,
				:action, :status, :reason, :action_duration, :created_at, NULL)`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, rec); err != nil {
		return fmt.Errorf("failed to insert synthetic record for case %s: %w", rec.ParentCaseID, err)
	}
	return nil
}

// Void annuls an ACTIVE case and rewrites its reason.
func (s *Store) Void(ctx context.Context, guildID, caseID, reason string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE modlogs SET status = 'VOIDED', ends_at = NULL, reason = ?
		 WHERE case_id = ? AND guild_id = ? AND status = 'ACTIVE'`, reason, caseID, guildID)
	if err != nil {
		return fmt.Errorf("failed to void case %s: %w", caseID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for case %s: %w", caseID, err)
	}
	if rowsAffected > 0 {
		return nil
	}

	rec, err := s.Get(ctx, caseID)
	if err != nil {
		return err
	}
	if rec.GuildID != guildID {
		return fmt.Errorf("case %s: %w", caseID, ErrNotFound)
	}
	return fmt.Errorf("case %s is %s: %w", caseID, rec.Status, ErrInvalidTransition)
}

// RemoveActive marks a member's ACTIVE records of one action as REMOVED.
// Only records that are permanent or expire after endingAfter are touched;
// pass the zero time to match all. Used when a moderator reverses a
// punishment outside the bot.
func (s *Store) RemoveActive(ctx context.Context, guildID, userID string, action model.Action, endingAfter time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE modlogs SET status = 'REMOVED', ends_at = NULL
		 WHERE guild_id = ? AND user_id = ? AND action = ? AND status = 'ACTIVE'
		   AND (ends_at IS NULL OR ends_at > ?)`, guildID, userID, action, endingAfter.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to remove active %s for user %s in guild %s: %w", action, userID, guildID, err)
	}
	return result.RowsAffected()
}

// RemoveCase marks one ACTIVE case of the given action as REMOVED.
func (s *Store) RemoveCase(ctx context.Context, guildID, caseID string, action model.Action) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE modlogs SET status = 'REMOVED', ends_at = NULL
		 WHERE case_id = ? AND guild_id = ? AND action = ? AND status = 'ACTIVE'`, caseID, guildID, action)
	if err != nil {
		return fmt.Errorf("failed to remove case %s: %w", caseID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for case %s: %w", caseID, err)
	}
	if rowsAffected > 0 {
		return nil
	}

	rec, err := s.Get(ctx, caseID)
	if err != nil {
		return err
	}
	if rec.GuildID != guildID || rec.Action != action {
		return fmt.Errorf("%s case %s: %w", action, caseID, ErrNotFound)
	}
	return fmt.Errorf("case %s is %s: %w", caseID, rec.Status, ErrInvalidTransition)
}

// PurgeUser deletes every record of a member in a guild, synthetic lifts
// included. It returns how many rows were deleted.
func (s *Store) PurgeUser(ctx context.Context, guildID, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM modlogs WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge records of user %s in guild %s: %w", userID, guildID, err)
	}
	return result.RowsAffected()
}

// CountActive counts a member's ACTIVE records of one action.
func (s *Store) CountActive(ctx context.Context, guildID, userID string, action model.Action) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM modlogs WHERE guild_id = ? AND user_id = ? AND action = ? AND status = 'ACTIVE'`,
		guildID, userID, action)
	if err != nil {
		return 0, fmt.Errorf("failed to count active %s for user %s in guild %s: %w", action, userID, guildID, err)
	}
	return count, nil
}

// SetLogChannel stores the channel used for a log type.
func (s *Store) SetLogChannel(ctx context.Context, guildID, logType, channelID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log_channels (guild_id, log_type, channel_id) VALUES (?, ?, ?)
		 ON CONFLICT (guild_id, log_type) DO UPDATE SET channel_id = excluded.channel_id`,
		guildID, logType, channelID)
	if err != nil {
		return fmt.Errorf("failed to set %s channel for guild %s: %w", logType, guildID, err)
	}
	return nil
}

// LogChannel returns the configured channel for a log type.
func (s *Store) LogChannel(ctx context.Context, guildID, logType string) (string, error) {
	var channelID string
	err := s.db.GetContext(ctx, &channelID,
		`SELECT channel_id FROM log_channels WHERE guild_id = ? AND log_type = ?`, guildID, logType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s channel for guild %s: %w", logType, guildID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s channel for guild %s: %w", logType, guildID, err)
	}
	return channelID, nil
}

// SetEscalationRule creates or replaces the rule for a warning count.
func (s *Store) SetEscalationRule(ctx context.Context, rule model.EscalationRule) error {
	switch rule.Action {
	case model.ActionBan, model.ActionTimeout, model.ActionKick:
	case model.ActionWarn, model.ActionUnban, model.ActionUnmute:
		return fmt.Errorf("escalation cannot apply %s", rule.Action)
	default:
		return fmt.Errorf("unknown escalation action %q", rule.Action)
	}
	query := `INSERT OR REPLACE INTO automod_rules (guild_id, warnings_count, action_type, action_duration)
			  VALUES (:guild_id, :warnings_count, :action_type, :action_duration)`
	if _, err := s.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("failed to save escalation rule for guild %s: %w", rule.GuildID, err)
	}
	return nil
}

// EscalationRule returns the rule that fires at exactly warningsCount active warnings.
func (s *Store) EscalationRule(ctx context.Context, guildID string, warningsCount int) (*model.EscalationRule, error) {
	var rule model.EscalationRule
	err := s.db.GetContext(ctx, &rule,
		`SELECT guild_id, warnings_count, action_type, action_duration FROM automod_rules
		 WHERE guild_id = ? AND warnings_count = ?`, guildID, warningsCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("escalation rule for %d warnings in guild %s: %w", warningsCount, guildID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation rule for guild %s: %w", guildID, err)
	}
	return &rule, nil
}
