package bot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// resumeTimeout bounds the startup reconciliation.
const resumeTimeout = 2 * time.Minute

// ExpiryScheduler is the part of the expiry manager the bot drives.
type ExpiryScheduler interface {
	ResumeOnStart(ctx context.Context) (int, error)
	StartPeriodicSweep()
	Stop()
}

// Scheduler starts the expiry machinery once the gateway is ready and stops
// it on shutdown.
type Scheduler struct {
	expiry ExpiryScheduler
	log    *zap.Logger

	once sync.Once
	wg   sync.WaitGroup
	done chan struct{}
}

// NewScheduler creates a new scheduler.
func NewScheduler(expiry ExpiryScheduler, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		expiry: expiry,
		log:    logger.Named("scheduler"),
		done:   make(chan struct{}),
	}
}

// Start reconciles overdue punishments and begins the periodic sweep. Only
// the first call has any effect, so gateway reconnects are harmless.
func (s *Scheduler) Start() {
	s.once.Do(func() {
		s.wg.Add(1)
		go s.resume()
	})
}

func (s *Scheduler) resume() {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), resumeTimeout)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	resolved, err := s.expiry.ResumeOnStart(ctx)
	if err != nil {
		s.log.Error("startup reconciliation failed", zap.Error(err))
	} else {
		s.log.Info("startup reconciliation finished", zap.Int("resolved", resolved))
	}

	select {
	case <-s.done:
		return
	default:
	}
	s.expiry.StartPeriodicSweep()
}

// Stop terminates all scheduled tasks gracefully.
func (s *Scheduler) Stop() {
	s.log.Info("Stopping scheduler...")
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.wg.Wait()
	s.expiry.Stop()
	s.log.Info("Scheduler stopped.")
}
