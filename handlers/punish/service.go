package punish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"discord-modbot/model"
	"discord-modbot/utils"
	"discord-modbot/utils/database/punishments"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxTimeout is the longest timeout Discord accepts.
const MaxTimeout = 28 * 24 * time.Hour

// TimeoutClearGrace leaves timeouts that are about to end to the scheduler.
const TimeoutClearGrace = 30 * time.Second

// CommandTag marks the audit log reason of every action the bot applies.
const CommandTag = "[CMD]"

// Store is what the moderation service needs from the punishment store.
type Store interface {
	Insert(ctx context.Context, rec model.PunishmentRecord) error
	Void(ctx context.Context, guildID, caseID, reason string) error
	RemoveActive(ctx context.Context, guildID, userID string, action model.Action, endingAfter time.Time) (int64, error)
	CountActive(ctx context.Context, guildID, userID string, action model.Action) (int, error)
	EscalationRule(ctx context.Context, guildID string, warningsCount int) (*model.EscalationRule, error)
	SetEscalationRule(ctx context.Context, rule model.EscalationRule) error
	SetLogChannel(ctx context.Context, guildID, logType, channelID string) error
	RemoveCase(ctx context.Context, guildID, caseID string, action model.Action) error
	PurgeUser(ctx context.Context, guildID, userID string) (int64, error)
}

// SelfActions reports whether a gateway event was caused by the bot's own
// REST call. Each call is reported at most once.
type SelfActions interface {
	ConsumeSelfBan(guildID, userID string) bool
	ConsumeSelfUnban(guildID, userID string) bool
	ConsumeSelfTimeoutClear(guildID, userID string) bool
}

// BanEntry is the audit log entry behind a ban.
type BanEntry struct {
	ModeratorID  string
	ModeratorTag string
	Reason       string
}

// Actions applies punishments on the platform.
type Actions interface {
	SelfActions
	Ban(ctx context.Context, guildID, userID, reason string) error
	Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	NotifyMember(ctx context.Context, rec model.PunishmentRecord) error
	// BanAuditEntry returns nil when no audit log entry matches the ban.
	BanAuditEntry(ctx context.Context, guildID, userID string) (*BanEntry, error)
}

// Notifier is told whenever a punishment with an expiry is stored.
type Notifier interface {
	Notify()
}

// Request describes one moderator action.
type Request struct {
	GuildID      string
	UserID       string
	UserTag      string
	ModeratorID  string
	ModeratorTag string
	Reason       string
	Duration     string // empty means permanent where allowed
}

// Service records moderation actions and hands timed ones to the expiry scheduler.
type Service struct {
	store    Store
	actions  Actions
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time

	mu     sync.RWMutex
	selfID string
}

// NewService creates the moderation service.
func NewService(store Store, actions Actions, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		actions:  actions,
		notifier: notifier,
		log:      logger.Named("punish"),
		now:      time.Now,
	}
}

// SetSelf records the bot's own user id once the gateway session is ready.
func (s *Service) SetSelf(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfID = userID
}

func (s *Service) self() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfID
}

func newCaseID(now time.Time) string {
	return newID("CASE", now)
}

func newID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), strings.ToUpper(uuid.NewString()[:4]))
}

// Ban bans a member, temporarily when req.Duration is set.
func (s *Service) Ban(ctx context.Context, req Request) (*model.PunishmentRecord, error) {
	return s.apply(ctx, model.ActionBan, req)
}

// Timeout times a member out. A duration is required.
func (s *Service) Timeout(ctx context.Context, req Request) (*model.PunishmentRecord, error) {
	return s.apply(ctx, model.ActionTimeout, req)
}

func (s *Service) apply(ctx context.Context, action model.Action, req Request) (*model.PunishmentRecord, error) {
	now := s.now()
	rec := model.PunishmentRecord{
		CaseID:       newCaseID(now),
		GuildID:      req.GuildID,
		UserID:       req.UserID,
		UserTag:      req.UserTag,
		ModeratorID:  req.ModeratorID,
		ModeratorTag: req.ModeratorTag,
		Action:       action,
		Status:       model.StatusActive,
		Reason:       req.Reason,
		Duration:     req.Duration,
		CreatedAt:    now.UnixMilli(),
	}

	var endsAt time.Time
	if req.Duration != "" {
		d, err := utils.ParseDuration(req.Duration)
		if err != nil {
			return nil, err
		}
		endsAt = now.Add(d)
	}

	switch action {
	case model.ActionBan:
	case model.ActionTimeout:
		if endsAt.IsZero() {
			return nil, errors.New("a timeout needs a duration")
		}
		if endsAt.Sub(now) > MaxTimeout {
			return nil, fmt.Errorf("timeouts are limited to %s", utils.FormatRemaining(MaxTimeout))
		}
	case model.ActionKick:
		endsAt = time.Time{}
		rec.Duration = ""
		rec.Status = model.StatusExecuted
	case model.ActionWarn, model.ActionUnban, model.ActionUnmute:
		return nil, fmt.Errorf("%s cannot be applied directly", action)
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
	rec.SetExpiry(endsAt)

	// Members can no longer be reached once banned or kicked.
	s.notifyMember(ctx, rec)

	var err error
	switch action {
	case model.ActionBan:
		err = s.actions.Ban(ctx, req.GuildID, req.UserID, req.Reason)
	case model.ActionTimeout:
		err = s.actions.Timeout(ctx, req.GuildID, req.UserID, endsAt, req.Reason)
	case model.ActionKick:
		err = s.actions.Kick(ctx, req.GuildID, req.UserID, req.Reason)
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		s.log.Error("punishment applied but not recorded", zap.String("case_id", rec.CaseID), zap.Error(err))
		return nil, err
	}
	if rec.EndsAt.Valid {
		s.notifier.Notify()
	}

	s.log.Info("punishment applied",
		zap.String("case_id", rec.CaseID),
		zap.String("action", string(action)),
		zap.String("guild_id", rec.GuildID),
		zap.String("user_id", rec.UserID),
		zap.String("duration", rec.Duration),
	)
	return &rec, nil
}

func (s *Service) notifyMember(ctx context.Context, rec model.PunishmentRecord) {
	if err := s.actions.NotifyMember(ctx, rec); err != nil {
		s.log.Debug("could not DM member", zap.String("case_id", rec.CaseID), zap.String("user_id", rec.UserID), zap.Error(err))
	}
}

// Warn records a warning and applies the guild's escalation rule for the
// member's new active warning count, if one exists.
func (s *Service) Warn(ctx context.Context, req Request) (warn *model.PunishmentRecord, escalated *model.PunishmentRecord, err error) {
	now := s.now()
	rec := model.PunishmentRecord{
		CaseID:       newCaseID(now),
		GuildID:      req.GuildID,
		UserID:       req.UserID,
		UserTag:      req.UserTag,
		ModeratorID:  req.ModeratorID,
		ModeratorTag: req.ModeratorTag,
		Action:       model.ActionWarn,
		Status:       model.StatusActive,
		Reason:       req.Reason,
		CreatedAt:    now.UnixMilli(),
	}
	s.notifyMember(ctx, rec)
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, nil, err
	}

	count, err := s.store.CountActive(ctx, req.GuildID, req.UserID, model.ActionWarn)
	if err != nil {
		return &rec, nil, err
	}
	rule, err := s.store.EscalationRule(ctx, req.GuildID, count)
	if errors.Is(err, punishments.ErrNotFound) {
		return &rec, nil, nil
	}
	if err != nil {
		return &rec, nil, err
	}

	auto := req
	auto.Reason = fmt.Sprintf("Automod: reached %d active warnings (latest: %s)", count, req.Reason)
	auto.Duration = rule.Duration
	escalated, err = s.apply(ctx, rule.Action, auto)
	if err != nil {
		return &rec, nil, fmt.Errorf("escalation to %s failed: %w", rule.Action, err)
	}
	return &rec, escalated, nil
}

// Void annuls an active case. Any pending expiry timer is dropped by the
// rescan this triggers.
func (s *Service) Void(ctx context.Context, guildID, caseID, moderatorTag, reason string) error {
	newReason := fmt.Sprintf("[VOIDED by %s: %s]", moderatorTag, reason)
	if err := s.store.Void(ctx, guildID, caseID, newReason); err != nil {
		return err
	}
	s.notifier.Notify()
	s.log.Info("case voided", zap.String("case_id", caseID), zap.String("guild_id", guildID))
	return nil
}

// RemoveWarning annuls one active warning so it no longer counts towards
// escalation.
func (s *Service) RemoveWarning(ctx context.Context, guildID, caseID string) error {
	if err := s.store.RemoveCase(ctx, guildID, caseID, model.ActionWarn); err != nil {
		return err
	}
	s.log.Info("warning removed", zap.String("case_id", caseID), zap.String("guild_id", guildID))
	return nil
}

// PurgeUser permanently deletes every record of a member in a guild. Timers
// of purged cases are dropped by the rescan this triggers.
func (s *Service) PurgeUser(ctx context.Context, guildID, userID string) (int64, error) {
	n, err := s.store.PurgeUser(ctx, guildID, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.notifier.Notify()
	}
	s.log.Info("records purged", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Int64("records", n))
	return n, nil
}

// BanAdded records a ban issued outside the bot as a permanent BAN. Bans the
// bot applied itself are ignored. It returns nil when nothing was recorded.
func (s *Service) BanAdded(ctx context.Context, guildID, userID, userTag string) (*model.PunishmentRecord, error) {
	if s.actions.ConsumeSelfBan(guildID, userID) {
		return nil, nil
	}
	entry, err := s.actions.BanAuditEntry(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		s.log.Debug("ban without audit log entry", zap.String("guild_id", guildID), zap.String("user_id", userID))
		return nil, nil
	}
	if self := s.self(); (self != "" && entry.ModeratorID == self) || strings.Contains(entry.Reason, CommandTag) {
		return nil, nil
	}

	now := s.now()
	rec := model.PunishmentRecord{
		CaseID:       newID("MANUAL", now),
		GuildID:      guildID,
		UserID:       userID,
		UserTag:      userTag,
		ModeratorID:  entry.ModeratorID,
		ModeratorTag: entry.ModeratorTag,
		Action:       model.ActionBan,
		Status:       model.StatusActive,
		Reason:       strings.TrimSpace(entry.Reason),
		CreatedAt:    now.UnixMilli(),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Info("manual ban recorded",
		zap.String("case_id", rec.CaseID),
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("moderator_id", rec.ModeratorID),
	)
	return &rec, nil
}

// BanRemoved handles a lifted ban. Unbans the bot performed itself are ignored.
func (s *Service) BanRemoved(ctx context.Context, guildID, userID string) error {
	if s.actions.ConsumeSelfUnban(guildID, userID) {
		return nil
	}
	return s.ManualUnban(ctx, guildID, userID)
}

// TimeoutChanged handles a member update. until is the member's current
// timeout end, nil when none. Clears the bot performed itself are ignored.
func (s *Service) TimeoutChanged(ctx context.Context, guildID, userID string, until *time.Time) error {
	if until != nil && until.After(s.now()) {
		return nil
	}
	if s.actions.ConsumeSelfTimeoutClear(guildID, userID) {
		return nil
	}
	return s.ManualTimeoutClear(ctx, guildID, userID, TimeoutClearGrace)
}

// ManualUnban records that a ban was lifted outside the bot.
func (s *Service) ManualUnban(ctx context.Context, guildID, userID string) error {
	n, err := s.store.RemoveActive(ctx, guildID, userID, model.ActionBan, time.Time{})
	if err != nil {
		return err
	}
	if n > 0 {
		s.notifier.Notify()
		s.log.Info("manual unban detected", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Int64("cases", n))
	}
	return nil
}

// ManualTimeoutClear records that a timeout was cleared early outside the bot.
// Timeouts ending within grace of now are left for the scheduler to expire.
func (s *Service) ManualTimeoutClear(ctx context.Context, guildID, userID string, grace time.Duration) error {
	n, err := s.store.RemoveActive(ctx, guildID, userID, model.ActionTimeout, s.now().Add(grace))
	if err != nil {
		return err
	}
	if n > 0 {
		s.notifier.Notify()
		s.log.Info("manual timeout clear detected", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Int64("cases", n))
	}
	return nil
}

// SetEscalationRule validates and stores an automod rule.
func (s *Service) SetEscalationRule(ctx context.Context, rule model.EscalationRule) error {
	if rule.WarningsCount <= 0 {
		return errors.New("warnings count must be positive")
	}
	var d time.Duration
	if rule.Duration != "" {
		var err error
		if d, err = utils.ParseDuration(rule.Duration); err != nil {
			return err
		}
	}
	if rule.Action == model.ActionTimeout {
		if rule.Duration == "" {
			return errors.New("a timeout rule needs a duration")
		}
		if d > MaxTimeout {
			return fmt.Errorf("timeouts are limited to %s", utils.FormatRemaining(MaxTimeout))
		}
	}
	return s.store.SetEscalationRule(ctx, rule)
}

// SetModlogChannel sets where automatic lifts are announced.
func (s *Service) SetModlogChannel(ctx context.Context, guildID, channelID string) error {
	return s.store.SetLogChannel(ctx, guildID, punishments.LogTypeModlog, channelID)
}
