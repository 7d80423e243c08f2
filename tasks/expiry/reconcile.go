package expiry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"discord-modbot/model"
	"discord-modbot/utils"

	"go.uber.org/zap"
)

// ResumeOnStart lifts everything that expired while the bot was offline,
// then arms timers for the rest. It returns how many cases it expired.
// Overdue cases are handled one by one before any timer exists, so an
// overdue case can never also be picked up by a timer.
func (m *Manager) ResumeOnStart(ctx context.Context) (int, error) {
	due, err := m.store.FindActiveDueBy(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to load overdue punishments: %w", err)
	}

	resolved := 0
	for _, rec := range due {
		outcome, err := m.Execute(ctx, rec)
		if err != nil {
			m.log.Error("failed to expire overdue punishment", zap.String("case_id", rec.CaseID), zap.Error(err))
			continue
		}
		if outcome == OutcomeExpired {
			resolved++
		}
	}

	if err := m.Rescan(ctx); err != nil {
		return resolved, err
	}

	summary, err := m.Summary(ctx, "")
	if err != nil {
		m.log.Warn("failed to build timer summary", zap.Error(err))
	} else {
		m.log.Info("resumed temporary punishments",
			zap.Int("overdue_resolved", resolved),
			zap.Int("active_timers", len(summary.Entries)),
		)
		if len(summary.Entries) > 0 {
			m.log.Info(summary.String())
		}
	}
	return resolved, nil
}

// SummaryEntry is one pending punishment in a Summary.
type SummaryEntry struct {
	CaseID    string
	Action    model.Action
	User      string
	Duration  string
	Remaining time.Duration
	Armed     bool
}

// Summary lists pending temporary punishments, soonest first.
type Summary struct {
	Entries []SummaryEntry
}

// Summary reports the pending temporary punishments of one guild and whether
// a timer is armed for each. An empty guildID reports every guild.
func (m *Manager) Summary(ctx context.Context, guildID string) (Summary, error) {
	now := m.now()
	records, err := m.store.FindActivePending(ctx, now)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load pending punishments: %w", err)
	}

	s := Summary{Entries: make([]SummaryEntry, 0, len(records))}
	for _, rec := range records {
		if guildID != "" && rec.GuildID != guildID {
			continue
		}
		endsAt, _ := rec.Expiry()
		s.Entries = append(s.Entries, SummaryEntry{
			CaseID:    rec.CaseID,
			Action:    rec.Action,
			User:      rec.Display(),
			Duration:  rec.Duration,
			Remaining: endsAt.Sub(now),
			Armed:     m.timers.has(rec.CaseID),
		})
	}
	return s, nil
}

func (s Summary) String() string {
	var b strings.Builder
	b.WriteString("--- ACTIVE TEMPORARY PUNISHMENTS ---\n")
	fmt.Fprintf(&b, "Total Active Timers: %d\n", len(s.Entries))
	for _, e := range s.Entries {
		duration := e.Duration
		if duration == "" {
			duration = "N/A"
		}
		fmt.Fprintf(&b, "[TIMER] %s | User: %s | Duration: %s | Case: %s\n", e.Action, e.User, duration, e.CaseID)
		fmt.Fprintf(&b, "        > Time Left: %s\n", utils.FormatRemaining(e.Remaining))
	}
	b.WriteString("------------------------------------")
	return b.String()
}
