package supervisor

import (
	"context"
	"time"

	"github.com/tomtom215/opentestimony/internal/logging"
)

// PeriodicService runs a task on a fixed interval under supervision,
// generalizing the backup manager's runScheduler ticker loop into a
// reusable suture.Service: a periodic job (the bridge's face
// re-clustering pass) is just a name, an interval, and a task function.
type PeriodicService struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context) error
	runNow   bool
}

// NewPeriodicService builds a service that calls task once per interval.
// If runNow is true, task also runs immediately on Serve instead of
// waiting out the first interval.
func NewPeriodicService(name string, interval time.Duration, runNow bool, task func(ctx context.Context) error) *PeriodicService {
	return &PeriodicService{name: name, interval: interval, task: task, runNow: runNow}
}

func (p *PeriodicService) Serve(ctx context.Context) error {
	if p.runNow {
		p.runOnce(ctx)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *PeriodicService) runOnce(ctx context.Context) {
	if err := p.task(ctx); err != nil {
		logging.Error().Err(err).Str("service", p.name).Msg("periodic service task failed")
	}
}

func (p *PeriodicService) String() string { return p.name }
