package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/elonfeng/dailyscope/pkg/virality"
)

// Output is the ranked result of one run, in rank order.
type Output struct {
	RunID       string                 `json:"run_id"`
	StartedAt   time.Time              `json:"started_at"`
	GeneratedAt time.Time              `json:"generated_at"`
	FailedUnits []string               `json:"failed_units"`
	Stories     []virality.ScoredStory `json:"stories"`
}

// Sink delivers run output to a specific destination.
type Sink interface {
	Name() string
	Write(ctx context.Context, out Output) error
}

// Manager writes output to all registered sinks.
type Manager struct {
	sinks []Sink
	log   *zap.Logger
}

// NewManager creates a new sink manager.
func NewManager(log *zap.Logger, sinks ...Sink) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{sinks: sinks, log: log}
}

// Add registers more sinks.
func (m *Manager) Add(sinks ...Sink) {
	m.sinks = append(m.sinks, sinks...)
}

// HasSinks returns true if at least one sink is configured.
func (m *Manager) HasSinks() bool {
	return m != nil && len(m.sinks) > 0
}

// Names lists the registered sinks in write order.
func (m *Manager) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return names
}

// Write sends out to every sink. A failing sink does not stop the others;
// all failures are joined into the returned error.
func (m *Manager) Write(ctx context.Context, out Output) error {
	if m == nil {
		return nil
	}

	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, out); err != nil {
			m.log.Warn("sink write failed",
				zap.String("sink", s.Name()),
				zap.String("run_id", out.RunID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		m.log.Debug("sink written",
			zap.String("sink", s.Name()),
			zap.String("run_id", out.RunID),
			zap.Int("count", len(out.Stories)))
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, s := range m.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
