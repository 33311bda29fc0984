package infra

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"tradejournal/internal/domain"
)

// DefaultPruneSpec runs the revocation pruner at the top of every hour
const DefaultPruneSpec = "0 0 * * * *"

// Scheduler manages scheduled maintenance tasks
type Scheduler struct {
	cron        *cron.Cron
	revocations domain.SessionRevocationRepository
	logger      logrus.FieldLogger
	spec        string
	now         func() time.Time
}

// NewScheduler creates a new scheduler. spec defaults to DefaultPruneSpec if empty.
func NewScheduler(revocations domain.SessionRevocationRepository, logger logrus.FieldLogger, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultPruneSpec
	}
	return &Scheduler{
		cron:        cron.New(cron.WithSeconds()),
		revocations: revocations,
		logger:      logger,
		spec:        spec,
		now:         time.Now,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.WithField("spec", s.spec).Info("Starting scheduler...")

	if _, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.PruneRevocations(ctx)
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Scheduler started successfully")
	return nil
}

// PruneRevocations drops revoked session ids whose tokens have expired
func (s *Scheduler) PruneRevocations(ctx context.Context) int64 {
	n, err := s.revocations.PruneExpired(ctx, s.now())
	if err != nil {
		s.logger.WithError(err).WithField("job", "prune_revocations").Error("Scheduled revocation prune failed")
		return 0
	}
	if n > 0 {
		s.logger.WithFields(logrus.Fields{"job": "prune_revocations", "pruned": n}).Info("Expired session revocations pruned")
	}
	return n
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler...")
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}
