// Package jobs runs the backend's periodic maintenance: purging expired
// idempotency keys from SQLite and reclaiming Badger value-log space.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Manager owns the cron engine and the jobs registered on it.
type Manager struct {
	engine *cron.Cron
	log    zerolog.Logger
}

// NewManager returns a Manager whose jobs recover from panics and never
// overlap with their own previous run.
func NewManager(log zerolog.Logger) *Manager {
	cl := cronLogger{log}
	return &Manager{
		engine: cron.New(cron.WithLogger(cl), cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		log: log,
	}
}

// Register schedules job on spec, a standard 5-field cron expression or a
// descriptor such as "@every 10m".
func (m *Manager) Register(spec string, job cron.Job) error {
	if _, err := m.engine.AddJob(spec, job); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

// Entries returns the number of scheduled jobs.
func (m *Manager) Entries() int { return len(m.engine.Entries()) }

// Start runs the scheduler in its own goroutine.
func (m *Manager) Start() {
	m.log.Info().Int("jobs", m.Entries()).Msg("cron started")
	m.engine.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (m *Manager) Stop(ctx context.Context) error {
	done := m.engine.Stop()
	select {
	case <-done.Done():
		m.log.Info().Msg("cron stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug().Fields(kv).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error().Err(err).Fields(kv).Msg("cron: " + msg)
}
