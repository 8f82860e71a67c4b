// Package schedule reruns the fetch, enrich, and publish steps on a cron
// schedule.
package schedule

import (
	"context"
	"time"

	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// DefaultSpec runs at midnight on the first day of every quarter.
const DefaultSpec = "0 0 1 1,4,7,10 *"

// Step is one stage of a scheduled run.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Main holds the options for the scheduler.
type Main struct {
	Spec   string `help:"Standard five field cron expression of when to run."`
	RunNow bool   `help:"Run once at startup before waiting for the schedule."`
	Once   bool   `help:"Run once and exit instead of scheduling."`

	Steps []Step         `flag:"-"`
	Log   jpdata.Logger  `flag:"-"`
	Stats jpdata.Statter `flag:"-"`
}

// NewMain returns a Main with the default schedule.
func NewMain() *Main {
	return &Main{
		Spec:  DefaultSpec,
		Log:   jpdata.NopLogger{},
		Stats: jpdata.NopStatter{},
	}
}

// Run schedules with a background context. It never returns unless the
// schedule is invalid or Once is set.
func (m *Main) Run() error {
	return m.RunContext(context.Background())
}

// RunContext runs the steps on schedule until ctx is done. A failed run is
// logged and the next one still happens; runs never overlap.
func (m *Main) RunContext(ctx context.Context) error {
	if m.Log == nil {
		m.Log = jpdata.NopLogger{}
	}
	if m.Stats == nil {
		m.Stats = jpdata.NopStatter{}
	}
	if m.Once {
		return m.RunSteps(ctx)
	}
	sched, err := cron.ParseStandard(m.Spec)
	if err != nil {
		return errors.Wrapf(err, "parsing schedule %q", m.Spec)
	}
	clog := cron.PrintfLogger(m.Log)
	c := cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
	c.Schedule(sched, cron.FuncJob(func() {
		m.runLogged(ctx)
		m.Log.Printf("next run at %s", sched.Next(time.Now()).Format(time.RFC3339))
	}))
	if m.RunNow {
		m.runLogged(ctx)
	}
	c.Start()
	m.Log.Printf("scheduled with %q, next run at %s", m.Spec, sched.Next(time.Now()).Format(time.RFC3339))
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (m *Main) runLogged(ctx context.Context) {
	if err := m.RunSteps(ctx); err != nil {
		m.Stats.Count("schedule.failures", 1, 1)
		m.Log.Printf("run failed: %v", err)
	}
}

// RunSteps runs every step in order, stopping at the first failure.
func (m *Main) RunSteps(ctx context.Context) error {
	start := time.Now()
	for _, s := range m.Steps {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "canceled")
		}
		stepStart := time.Now()
		if err := s.Run(ctx); err != nil {
			return errors.Wrapf(err, "%s", s.Name)
		}
		m.Stats.Timing("schedule.step", time.Since(stepStart), 1, "step:"+s.Name)
		m.Log.Printf("%s done in %v", s.Name, time.Since(stepStart).Round(time.Millisecond))
	}
	m.Stats.Count("schedule.runs", 1, 1)
	m.Log.Printf("run finished in %v", time.Since(start).Round(time.Millisecond))
	return nil
}
