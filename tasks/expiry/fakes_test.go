package expiry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"discord-modbot/model"
	"discord-modbot/utils/database/punishments"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]model.PunishmentRecord

	// pendingHook, when set, replaces the FindActivePending result.
	pendingHook func(after time.Time) []model.PunishmentRecord
	// beforeExpire runs before ExpireWithSynthetic takes the lock.
	beforeExpire func(caseID string)
	failLoads    error
}

func newMemStore(records ...model.PunishmentRecord) *memStore {
	s := &memStore{records: make(map[string]model.PunishmentRecord)}
	for _, r := range records {
		s.records[r.CaseID] = r
	}
	return s
}

func (s *memStore) get(caseID string) (model.PunishmentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[caseID]
	return r, ok
}

func (s *memStore) setStatus(caseID string, status model.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records[caseID]
	r.Status = status
	r.SetExpiry(time.Time{})
	s.records[caseID] = r
}

func (s *memStore) synthetics(parent string) []model.PunishmentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PunishmentRecord
	for _, r := range s.records {
		if r.ParentCaseID == parent {
			out = append(out, r)
		}
	}
	return out
}

func (s *memStore) filter(keep func(model.PunishmentRecord, time.Time) bool, t time.Time) []model.PunishmentRecord {
	var out []model.PunishmentRecord
	for _, r := range s.records {
		if r.Status == model.StatusActive && r.EndsAt.Valid && keep(r, t) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndsAt.Int64 < out[j].EndsAt.Int64 })
	return out
}

func (s *memStore) FindActiveDueBy(_ context.Context, before time.Time) ([]model.PunishmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLoads != nil {
		return nil, s.failLoads
	}
	return s.filter(func(r model.PunishmentRecord, t time.Time) bool { return r.EndsAt.Int64 <= t.UnixMilli() }, before), nil
}

func (s *memStore) FindActivePending(_ context.Context, after time.Time) ([]model.PunishmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLoads != nil {
		return nil, s.failLoads
	}
	if s.pendingHook != nil {
		return s.pendingHook(after), nil
	}
	return s.filter(func(r model.PunishmentRecord, t time.Time) bool { return r.EndsAt.Int64 > t.UnixMilli() }, after), nil
}

func (s *memStore) GetStatus(_ context.Context, caseID string) (model.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[caseID]
	if !ok {
		return "", fmt.Errorf("case %s: %w", caseID, punishments.ErrNotFound)
	}
	return r.Status, nil
}

func (s *memStore) markExpiredLocked(caseID string) bool {
	r, ok := s.records[caseID]
	if !ok || r.Status != model.StatusActive {
		return false
	}
	r.Status = model.StatusExpired
	r.SetExpiry(time.Time{})
	s.records[caseID] = r
	return true
}

func (s *memStore) MarkExpired(_ context.Context, caseID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markExpiredLocked(caseID), nil
}

func (s *memStore) ExpireWithSynthetic(_ context.Context, caseID string, synthetic model.PunishmentRecord) (bool, error) {
	if s.beforeExpire != nil {
		s.beforeExpire(caseID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.markExpiredLocked(caseID) {
		return false, nil
	}
	if _, exists := s.records[synthetic.CaseID]; !exists {
		s.records[synthetic.CaseID] = synthetic
	}
	return true, nil
}

type call struct {
	op      string
	guildID string
	userID  string
}

type fakeGuild struct {
	mu    sync.Mutex
	calls []call
	err   error
	delay time.Duration
}

func (g *fakeGuild) record(op, guildID, userID string) error {
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call{op: op, guildID: guildID, userID: userID})
	return g.err
}

func (g *fakeGuild) RemoveBan(_ context.Context, guildID, userID, _ string) error {
	return g.record("unban", guildID, userID)
}

func (g *fakeGuild) ClearTimeout(_ context.Context, guildID, userID, _ string) error {
	return g.record("untimeout", guildID, userID)
}

func (g *fakeGuild) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeAudit struct {
	mu      sync.Mutex
	notices []Notice
	err     error
}

func (a *fakeAudit) PostExpiry(_ context.Context, n Notice) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notices = append(a.notices, n)
	return a.err
}

func (a *fakeAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.notices)
}

var errStoreDown = errors.New("store unreachable")

func record(caseID string, action model.Action, endsAt time.Time) model.PunishmentRecord {
	r := model.PunishmentRecord{
		CaseID:    caseID,
		GuildID:   "guild-1",
		UserID:    "user-" + caseID,
		UserTag:   "member#" + caseID,
		Action:    action,
		Status:    model.StatusActive,
		CreatedAt: endsAt.Add(-time.Hour).UnixMilli(),
	}
	r.SetExpiry(endsAt)
	return r
}
