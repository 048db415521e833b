// internal/sweep/scheduler.go
package sweep

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"school-notify/internal/common/logger"
)

// schedule is the fixed daily trigger. Deliberately a constant: changing
// the sweep time is a code change, not a deployment knob.
const schedule = "0 8 * * *"

// Scheduler runs the sweep once a day at the fixed wall-clock time.
type Scheduler struct {
	cron   *cron.Cron
	sweep  *Sweep
	logger logger.Logger
}

func NewScheduler(sweep *Sweep, loc *time.Location, log logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		sweep:  sweep,
		logger: log.WithFields(map[string]interface{}{"component": "sweep-scheduler"}),
	}

	_, err := s.cron.AddFunc(schedule, s.runOnce)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the cron loop; returns immediately.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("sweep scheduled", map[string]interface{}{"schedule": schedule})
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runOnce() {
	// No per-item timeout: a hanging provider call delays the rest of the
	// sweep, matching the sequential fan-out contract.
	summary, err := s.sweep.Run(context.Background(), time.Now())
	if err != nil {
		s.logger.WithError(err).Error("sweep run failed", map[string]interface{}{
			"date": summary.Date,
		})
	}
}
