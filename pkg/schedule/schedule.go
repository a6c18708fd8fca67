// Package schedule runs configured jobs on their cron expressions. Every
// entry is wrapped so a run that is still going when the next tick lands
// is skipped rather than overlapped, and a panicking run never takes the
// scheduler down.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/karhuops/bridgerc/pkg/config"
	"github.com/karhuops/bridgerc/pkg/fault"
	"github.com/karhuops/bridgerc/pkg/naming"
	"github.com/karhuops/bridgerc/pkg/pipeline"
)

// ⏰ Scheduler ticks configured jobs through the pipeline runner
type Scheduler struct {
	cron       *cron.Cron
	runner     *pipeline.Runner
	logger     zerolog.Logger
	names      []string
	entryNames map[cron.EntryID]string
}

// New registers every job that carries a schedule. Expressions have six
// fields, seconds first, and are evaluated on the configured application
// timezone.
func New(cfg *config.Config, runner *pipeline.Runner, logger zerolog.Logger) (*Scheduler, error) {
	if cfg == nil {
		return nil, errors.Errorf("config is required")
	}
	if runner == nil {
		return nil, errors.Errorf("runner is required")
	}

	zone := cfg.App.Timezone
	if zone == "" {
		zone = naming.DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, errors.Errorf("%w: loading timezone %q: %v", fault.ErrConfiguration, zone, err)
	}

	cl := cronLogger{log: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		runner:     runner,
		logger:     logger,
		entryNames: map[cron.EntryID]string{},
	}

	for i := range cfg.Jobs {
		job := cfg.Jobs[i]
		if job.Schedule == "" {
			logger.Debug().Str("job", job.Name).Msg("job has no schedule, skipping")
			continue
		}

		name := job.Name
		id, err := s.cron.AddFunc(job.Schedule, func() { s.runJob(name) })
		if err != nil {
			return nil, errors.Errorf("%w: job %q: invalid schedule %q: %v",
				fault.ErrConfiguration, name, job.Schedule, err)
		}
		s.entryNames[id] = name
		s.names = append(s.names, name)
	}

	if len(s.names) == 0 {
		return nil, errors.Errorf("%w: no job has a schedule", fault.ErrConfiguration)
	}
	return s, nil
}

// Jobs returns the names of the registered jobs, in configuration order.
func (s *Scheduler) Jobs() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// Run starts the ticker and blocks until ctx is canceled. Shutdown waits
// for in-flight runs to finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	for _, entry := range s.cron.Entries() {
		s.logger.Info().
			Str("job", s.entryNames[entry.ID]).
			Time("next_run", entry.Next).
			Msg("job scheduled")
	}

	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopping, waiting for running jobs")
	<-s.cron.Stop().Done()
	return nil
}

// runJob executes one scheduled run. Failures are logged, never fatal;
// the job waits for its next tick.
func (s *Scheduler) runJob(name string) {
	ctx := s.logger.WithContext(context.Background())
	if err := s.runner.RunJob(ctx, name); err != nil {
		s.logger.Error().Err(err).Str("job", name).Msg("scheduled run failed")
	}
}

// cronLogger adapts zerolog to the cron logger interface. Cron's per-tick
// chatter (wake, run, skip) lands at debug; panics recovered inside a job
// come through Error and keep their level.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.event(l.log.Debug(), msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.event(l.log.Error().Err(err), msg, keysAndValues)
}

func (l cronLogger) event(ev *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		ev = ev.Interface(fmt.Sprint(kv[i]), kv[i+1])
	}
	ev.Msg(msg)
}
