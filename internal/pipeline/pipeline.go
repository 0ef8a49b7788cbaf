// Package pipeline exposes the inactivity notification pipeline as three
// on-demand operations. It owns no timers; callers decide the cadence.
package pipeline

import (
	"context"
	"errors"

	"github.com/angelmondragon/puppytalk-backend/internal/dispatch"
	"github.com/angelmondragon/puppytalk-backend/internal/inactivity"
	"github.com/angelmondragon/puppytalk-backend/internal/stats"
)

type scanner interface {
	Run(ctx context.Context) (inactivity.ScanResult, error)
}

type dispatcher interface {
	Run(ctx context.Context) (dispatch.Result, error)
}

type reporter interface {
	Snapshot(ctx context.Context) (stats.Statistics, error)
}

// Pipeline is the facade the scheduler and the ops API drive.
type Pipeline struct {
	detector   scanner
	dispatcher dispatcher
	reporter   reporter
}

func New(detector scanner, d dispatcher, r reporter) (*Pipeline, error) {
	if detector == nil {
		return nil, errors.New("inactivity detector required")
	}
	if d == nil {
		return nil, errors.New("dispatcher required")
	}
	if r == nil {
		return nil, errors.New("statistics reporter required")
	}
	return &Pipeline{detector: detector, dispatcher: d, reporter: r}, nil
}

// RunInactivityScan creates PENDING notifications for idle users.
func (p *Pipeline) RunInactivityScan(ctx context.Context) (inactivity.ScanResult, error) {
	return p.detector.Run(ctx)
}

// RunDispatch delivers due PENDING notifications.
func (p *Pipeline) RunDispatch(ctx context.Context) (dispatch.Result, error) {
	return p.dispatcher.Run(ctx)
}

// GetStatistics reports delivery counts and rates.
func (p *Pipeline) GetStatistics(ctx context.Context) (stats.Statistics, error) {
	return p.reporter.Snapshot(ctx)
}
