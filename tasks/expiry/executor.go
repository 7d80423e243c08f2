package expiry

import (
	"context"
	"errors"
	"fmt"

	"discord-modbot/model"
	"discord-modbot/utils/database/punishments"

	"go.uber.org/zap"
)

// Outcome is the result of one Execute call.
type Outcome int

const (
	// OutcomeSkipped means the case was no longer active or another
	// caller was already expiring it. Nothing was changed.
	OutcomeSkipped Outcome = iota
	// OutcomeExpired means this call moved the case to EXPIRED.
	OutcomeExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeExpired:
		return "expired"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// SyntheticCaseID is the case id of the audit record written when parent expires.
func SyntheticCaseID(lift model.Action, parentCaseID string) string {
	return "AUTO-" + string(lift) + "-" + parentCaseID
}

// Execute lifts one expired punishment. Concurrent calls for the same case
// collapse into one; every caller but the one that did the work gets
// OutcomeSkipped.
func (m *Manager) Execute(ctx context.Context, rec model.PunishmentRecord) (Outcome, error) {
	led := false
	v, err, _ := m.inflight.Do(rec.CaseID, func() (interface{}, error) {
		led = true
		return m.execute(ctx, rec)
	})
	if !led {
		m.log.Debug("expiry already in flight", zap.String("case_id", rec.CaseID))
		return OutcomeSkipped, nil
	}
	if err != nil {
		return OutcomeSkipped, err
	}
	return v.(Outcome), nil
}

func (m *Manager) execute(ctx context.Context, rec model.PunishmentRecord) (Outcome, error) {
	log := m.log.With(
		zap.String("case_id", rec.CaseID),
		zap.String("action", string(rec.Action)),
		zap.String("guild_id", rec.GuildID),
		zap.String("user_id", rec.UserID),
	)

	status, err := m.store.GetStatus(ctx, rec.CaseID)
	if errors.Is(err, punishments.ErrNotFound) {
		log.Info("case vanished before expiry, skipping")
		return OutcomeSkipped, nil
	}
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to re-read case %s: %w", rec.CaseID, err)
	}
	switch status {
	case model.StatusActive:
	case model.StatusExpired, model.StatusExecuted, model.StatusVoided, model.StatusRemoved:
		log.Debug("case no longer active, skipping", zap.String("status", string(status)))
		return OutcomeSkipped, nil
	default:
		return OutcomeSkipped, fmt.Errorf("case %s has unknown status %q", rec.CaseID, status)
	}

	lift, liftable := rec.Action.LiftAction()
	if !liftable {
		// Nothing to revert; just clear the stale expiry.
		log.Warn("expiry set on an action that cannot be lifted")
		return m.expireOnly(ctx, rec)
	}

	reason := fmt.Sprintf("%s expired (Auto-Lift)", rec.Action)
	reversalOK := true
	if err := m.revert(ctx, rec, reason); err != nil {
		reversalOK = false
		log.Warn("failed to revert punishment, expiring record anyway", zap.Error(err))
	}

	actorID, actorTag := m.actor()
	synthetic := model.PunishmentRecord{
		CaseID:       SyntheticCaseID(lift, rec.CaseID),
		ParentCaseID: rec.CaseID,
		GuildID:      rec.GuildID,
		UserID:       rec.UserID,
		UserTag:      rec.UserTag,
		ModeratorID:  actorID,
		ModeratorTag: actorTag,
		Action:       lift,
		Status:       model.StatusExecuted,
		Reason:       reason,
		CreatedAt:    m.now().UnixMilli(),
	}
	expired, err := m.store.ExpireWithSynthetic(ctx, rec.CaseID, synthetic)
	if err != nil {
		return OutcomeSkipped, err
	}
	if !expired {
		log.Info("case resolved concurrently, nothing written")
		return OutcomeSkipped, nil
	}
	log.Info("auto-expired punishment", zap.String("lift_case_id", synthetic.CaseID), zap.Bool("reverted", reversalOK))

	if m.audit != nil {
		if err := m.audit.PostExpiry(ctx, Notice{Original: rec, Lift: synthetic, ReversalOK: reversalOK}); err != nil {
			log.Warn("audit notice not delivered", zap.Error(err))
		}
	}
	return OutcomeExpired, nil
}

func (m *Manager) revert(ctx context.Context, rec model.PunishmentRecord, reason string) error {
	switch rec.Action {
	case model.ActionBan:
		return m.guild.RemoveBan(ctx, rec.GuildID, rec.UserID, reason)
	case model.ActionTimeout:
		return m.guild.ClearTimeout(ctx, rec.GuildID, rec.UserID, reason)
	case model.ActionWarn, model.ActionKick, model.ActionUnban, model.ActionUnmute:
		return nil
	default:
		return fmt.Errorf("unknown action %q", rec.Action)
	}
}

func (m *Manager) expireOnly(ctx context.Context, rec model.PunishmentRecord) (Outcome, error) {
	expired, err := m.store.MarkExpired(ctx, rec.CaseID)
	if err != nil {
		return OutcomeSkipped, err
	}
	if !expired {
		return OutcomeSkipped, nil
	}
	return OutcomeExpired, nil
}
