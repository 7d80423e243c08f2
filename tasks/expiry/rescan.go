package expiry

import (
	"context"
	"fmt"

	"discord-modbot/model"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Rescan rebuilds the timer table from the store. Every armed timer is
// dropped first, so cases voided or removed since the last scan lose their
// timer. Overdue records, including ones whose earlier expiry attempt
// failed, are executed inline.
func (m *Manager) Rescan(ctx context.Context) error {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	cancelled := m.timers.cancelAll()

	now := m.now()
	overdue, err := m.store.FindActiveDueBy(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to load overdue punishments: %w", err)
	}
	pending, err := m.store.FindActivePending(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to load pending punishments: %w", err)
	}
	records := append(overdue, pending...)

	scheduled, executed := 0, 0
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.CaseID]; dup {
			continue
		}
		seen[rec.CaseID] = struct{}{}
		endsAt, ok := rec.Expiry()
		if !ok {
			continue
		}
		remaining := endsAt.Sub(m.now())
		if remaining <= 0 {
			executed++
			if _, err := m.Execute(ctx, rec); err != nil {
				m.log.Error("failed to expire overdue punishment", zap.String("case_id", rec.CaseID), zap.Error(err))
			}
			continue
		}
		m.timers.schedule(rec.CaseID, remaining, m.fireFunc(rec))
		scheduled++
	}

	m.log.Debug("rescan finished",
		zap.Int("cancelled", cancelled),
		zap.Int("scheduled", scheduled),
		zap.Int("executed_inline", executed),
	)
	return nil
}

func (m *Manager) fireFunc(rec model.PunishmentRecord) func() {
	return func() {
		if _, err := m.Execute(m.ctx, rec); err != nil {
			m.log.Error("failed to expire punishment on timer", zap.String("case_id", rec.CaseID), zap.Error(err))
		}
	}
}

// Notify asks for a rescan after a new timed punishment was stored.
// Bursts of calls collapse into a single rescan.
func (m *Manager) Notify() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// StartPeriodicSweep starts the safety-net rescan and the Notify consumer.
// Only the first call has any effect.
func (m *Manager) StartPeriodicSweep() {
	if !m.started.CompareAndSwap(false, true) {
		m.log.Debug("periodic sweep already running")
		return
	}

	logger := cronLogger{m.log.Sugar()}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	c.Schedule(cron.Every(m.interval), cron.FuncJob(m.sweep))

	m.lifecycleMu.Lock()
	m.cron = c
	m.lifecycleMu.Unlock()
	c.Start()

	go func() {
		for {
			select {
			case <-m.ctx.Done():
				return
			case <-m.kick:
				m.sweep()
			}
		}
	}()

	m.log.Info("periodic sweep started", zap.Duration("interval", m.interval))
}

func (m *Manager) sweep() {
	if err := m.Rescan(m.ctx); err != nil {
		m.log.Error("sweep failed, retrying next cycle", zap.Error(err))
	}
}

// Stop halts the sweep and disarms every timer. Punishments left pending
// are picked up by ResumeOnStart on the next boot.
func (m *Manager) Stop() {
	m.cancel()

	m.lifecycleMu.Lock()
	c := m.cron
	m.lifecycleMu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}

	m.sweepMu.Lock()
	n := m.timers.cancelAll()
	m.sweepMu.Unlock()
	m.log.Info("expiry scheduler stopped", zap.Int("timers_dropped", n))
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
