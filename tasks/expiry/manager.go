package expiry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"discord-modbot/model"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultSweepInterval is how often the safety-net rescan runs.
const DefaultSweepInterval = 15 * time.Minute

// Store is the subset of the punishment store the scheduler relies on.
type Store interface {
	FindActiveDueBy(ctx context.Context, before time.Time) ([]model.PunishmentRecord, error)
	FindActivePending(ctx context.Context, after time.Time) ([]model.PunishmentRecord, error)
	GetStatus(ctx context.Context, caseID string) (model.Status, error)
	MarkExpired(ctx context.Context, caseID string) (bool, error)
	ExpireWithSynthetic(ctx context.Context, caseID string, synthetic model.PunishmentRecord) (bool, error)
}

// GuildActions reverts punishments on the chat platform. Implementations
// treat "already lifted" as success.
type GuildActions interface {
	RemoveBan(ctx context.Context, guildID, userID, reason string) error
	ClearTimeout(ctx context.Context, guildID, userID, reason string) error
}

// Notice describes one automatic lift for the audit channel.
type Notice struct {
	Original   model.PunishmentRecord
	Lift       model.PunishmentRecord
	ReversalOK bool
}

// AuditSink receives lift notices. Delivery is best-effort: a returned
// error is logged and dropped, never retried.
type AuditSink interface {
	PostExpiry(ctx context.Context, n Notice) error
}

// Options tunes a Manager. Zero values select defaults.
type Options struct {
	SweepInterval time.Duration
	Logger        *zap.Logger
	Now           func() time.Time
}

// Manager owns the in-memory timer table and every code path that lifts
// an expired punishment.
type Manager struct {
	store Store
	guild GuildActions
	audit AuditSink
	log   *zap.Logger
	now   func() time.Time

	interval time.Duration
	timers   *timerTable
	inflight singleflight.Group
	sweepMu  sync.Mutex

	actorMu  sync.RWMutex
	actorID  string
	actorTag string

	ctx     context.Context
	cancel  context.CancelFunc
	kick    chan struct{}
	started atomic.Bool

	lifecycleMu sync.Mutex
	cron        *cron.Cron
}

// New creates a Manager. audit may be nil.
func New(store Store, guild GuildActions, audit AuditSink, opts Options) *Manager {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:    store,
		guild:    guild,
		audit:    audit,
		log:      opts.Logger.Named("expiry"),
		now:      opts.Now,
		interval: opts.SweepInterval,
		timers:   newTimerTable(time.AfterFunc),
		ctx:      ctx,
		cancel:   cancel,
		kick:     make(chan struct{}, 1),
	}
}

// SetActor records the bot account credited on synthetic lift records.
func (m *Manager) SetActor(id, tag string) {
	m.actorMu.Lock()
	defer m.actorMu.Unlock()
	m.actorID, m.actorTag = id, tag
}

func (m *Manager) actor() (string, string) {
	m.actorMu.RLock()
	defer m.actorMu.RUnlock()
	return m.actorID, m.actorTag
}

// ScheduledCount returns the number of armed timers.
func (m *Manager) ScheduledCount() int {
	return m.timers.len()
}

// IsScheduled reports whether a timer is armed for caseID.
func (m *Manager) IsScheduled(caseID string) bool {
	return m.timers.has(caseID)
}
