package pipeline

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/karhuops/bridgerc/pkg/config"
	"github.com/karhuops/bridgerc/pkg/runlog"
)

// 🏃 Runner executes configured jobs
type Runner struct {
	// Config is the application configuration.
	Config *config.Config
	// Logger is the sink run log buffers flush into.
	Logger *zerolog.Logger
	// Async fans RunAll out across jobs instead of running them in order.
	Async bool
	// Dial and NewLibrary are forwarded to every pipeline. Tests inject
	// fakes here; empty means production wiring.
	Dial       DialFunc
	NewLibrary LibraryFunc
}

// 🏗️ NewRunner creates a new runner
func NewRunner(cfg *config.Config, logger *zerolog.Logger, async bool) *Runner {
	return &Runner{
		Config: cfg,
		Logger: logger,
		Async:  async,
	}
}

// RunJob runs one job by name.
func (r *Runner) RunJob(ctx context.Context, name string) error {
	job, err := r.Config.Job(name)
	if err != nil {
		return err
	}
	return r.runOne(ctx, job)
}

// RunAll runs every configured job. Sequential runs keep going after a
// failure and report every error; async runs share the errgroup contract
// and return the first one.
func (r *Runner) RunAll(ctx context.Context) error {
	if r.Async {
		g, ctx := errgroup.WithContext(ctx)
		for i := range r.Config.Jobs {
			job := &r.Config.Jobs[i]
			g.Go(func() error {
				return r.runOne(ctx, job)
			})
		}
		return g.Wait()
	}

	errs := []error{}
	for i := range r.Config.Jobs {
		if err := r.runOne(ctx, &r.Config.Jobs[i]); err != nil {
			errs = append(errs, errors.Errorf("job %s: %w", r.Config.Jobs[i].Name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) runOne(ctx context.Context, job *config.JobConfig) error {
	p, err := New(Options{
		Config:     r.Config,
		Job:        job,
		Buffer:     runlog.New(job.Name, *r.Logger),
		Dial:       r.Dial,
		NewLibrary: r.NewLibrary,
	})
	if err != nil {
		return err
	}
	return p.Run(ctx)
}
