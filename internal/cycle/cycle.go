// Package cycle runs one collection pass: gate check, provider collection,
// and append of the current and forecast batches.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/i474232898/weather-tracker/internal/config"
	"github.com/i474232898/weather-tracker/internal/store"
	"github.com/i474232898/weather-tracker/internal/tracking"
	"github.com/i474232898/weather-tracker/internal/weather"
)

// ErrCycleInProgress is returned when a cycle is started while another one runs.
var ErrCycleInProgress = errors.New("collection cycle already in progress")

// SettingsSource yields the settings snapshot for one cycle.
type SettingsSource interface {
	Load() (config.Settings, error)
}

// Collector gathers one batch per record kind. *weather.Aggregator implements it.
type Collector interface {
	CollectCurrent(ctx context.Context, city string) ([]weather.CurrentObservation, []weather.ProviderFailure)
	CollectForecast(ctx context.Context, city string) ([]weather.ForecastObservation, []weather.ProviderFailure)
}

// Publisher receives every batch that was appended.
type Publisher interface {
	PublishCurrent(ctx context.Context, batch []weather.CurrentObservation) error
	PublishForecast(ctx context.Context, batch []weather.ForecastObservation) error
}

// Report summarizes a finished (or skipped) cycle.
type Report struct {
	ID               string                    `json:"id"`
	StartedAt        time.Time                 `json:"startedAt"`
	FinishedAt       time.Time                 `json:"finishedAt"`
	City             string                    `json:"city,omitempty"`
	Active           bool                      `json:"active"`
	Reason           string                    `json:"reason,omitempty"`
	CurrentAppended  int                       `json:"currentAppended"`
	ForecastAppended int                       `json:"forecastAppended"`
	Failures         []weather.ProviderFailure `json:"failures,omitempty"`
	Errors           []string                  `json:"errors,omitempty"`
	Abandoned        bool                      `json:"abandoned,omitempty"`
}

// Options configures optional collaborators.
type Options struct {
	Publisher Publisher
	// Now is the clock used for the tracking gate and report times.
	Now func() time.Time
}

// Cycle is the single entry point invoked by the scheduler.
// At most one run is in flight; overlapping calls are skipped, not queued.
type Cycle struct {
	settings  SettingsSource
	store     *store.Store
	collector Collector
	publisher Publisher
	now       func() time.Time

	running atomic.Bool

	mu   sync.RWMutex
	last *Report
}

// New creates a Cycle.
func New(settings SettingsSource, st *store.Store, collector Collector, opts Options) *Cycle {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cycle{
		settings:  settings,
		store:     st,
		collector: collector,
		publisher: opts.Publisher,
		now:       now,
	}
}

// Running reports whether a cycle is in flight.
func (c *Cycle) Running() bool {
	return c.running.Load()
}

// LastReport returns the report of the most recent cycle, if any.
func (c *Cycle) LastReport() (Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Report{}, false
	}
	return *c.last, true
}

// Run executes one cycle in the background context and logs the outcome.
func (c *Cycle) Run() {
	c.RunLogged(context.Background())
}

// RunLogged executes one cycle and logs any error instead of returning it.
func (c *Cycle) RunLogged(ctx context.Context) {
	if _, err := c.RunContext(ctx); err != nil {
		if errors.Is(err, ErrCycleInProgress) {
			log.Println("cycle: previous cycle still running; skipping this tick")
			return
		}
		log.Printf("cycle: %v", err)
	}
}

// RunContext executes one cycle. An inactive tracking gate makes it a no-op.
// Provider failures are part of the report, not of the returned error; the
// error is set only for cycle-level problems (settings, persistence, cancel).
func (c *Cycle) RunContext(ctx context.Context) (Report, error) {
	if !c.running.CompareAndSwap(false, true) {
		return Report{}, ErrCycleInProgress
	}
	defer c.running.Store(false)

	rep := Report{ID: uuid.NewString(), StartedAt: c.now()}
	err := c.run(ctx, &rep)
	rep.FinishedAt = c.now()

	c.mu.Lock()
	c.last = &rep
	c.mu.Unlock()

	return rep, err
}

func (c *Cycle) run(ctx context.Context, rep *Report) error {
	settings, err := c.settings.Load()
	if err != nil {
		rep.Reason = "settings unavailable"
		rep.Errors = append(rep.Errors, err.Error())
		return fmt.Errorf("load settings: %w", err)
	}
	rep.City = settings.City

	status := tracking.Evaluate(settings.TrackingStart, rep.StartedAt.In(c.store.Location()))
	if status.Err != nil {
		log.Printf("tracking: %v; treating tracking as inactive", status.Err)
	}
	rep.Active = status.Active
	rep.Reason = status.Reason
	if !status.Active {
		log.Printf("cycle %s: tracking inactive (%s); nothing to do", rep.ID, status.Reason)
		return nil
	}

	log.Printf("cycle %s: collecting for %s", rep.ID, settings.City)

	var errs []error

	current, failures := c.collector.CollectCurrent(ctx, settings.City)
	rep.Failures = append(rep.Failures, failures...)
	if err := ctx.Err(); err != nil {
		return c.abandon(rep, err)
	}
	n, err := appendBatch(c.store.Current(settings.CurrentTablePath), current)
	if err != nil {
		errs = append(errs, fmt.Errorf("append current: %w", err))
	} else {
		rep.CurrentAppended = n
		if n > 0 && c.publisher != nil {
			if err := c.publisher.PublishCurrent(ctx, current); err != nil {
				log.Printf("cycle %s: publish current: %v", rep.ID, err)
			}
		}
	}

	forecast, failures := c.collector.CollectForecast(ctx, settings.City)
	rep.Failures = append(rep.Failures, failures...)
	if err := ctx.Err(); err != nil {
		return c.abandon(rep, errors.Join(append(errs, err)...))
	}
	n, err = appendBatch(c.store.Forecast(settings.ForecastTablePath), forecast)
	if err != nil {
		errs = append(errs, fmt.Errorf("append forecast: %w", err))
	} else {
		rep.ForecastAppended = n
		if n > 0 && c.publisher != nil {
			if err := c.publisher.PublishForecast(ctx, forecast); err != nil {
				log.Printf("cycle %s: publish forecast: %v", rep.ID, err)
			}
		}
	}

	for _, err := range errs {
		rep.Errors = append(rep.Errors, err.Error())
	}
	log.Printf("cycle %s: done: %d current, %d forecast rows appended, %d provider failures",
		rep.ID, rep.CurrentAppended, rep.ForecastAppended, len(rep.Failures))
	return errors.Join(errs...)
}

func (c *Cycle) abandon(rep *Report, err error) error {
	rep.Abandoned = true
	rep.Errors = append(rep.Errors, err.Error())
	log.Printf("cycle %s: abandoned before append: %v", rep.ID, err)
	return fmt.Errorf("cycle abandoned: %w", err)
}

// appendBatch appends a batch and returns how many rows were written.
func appendBatch[T any](t *store.Table[T], batch []T) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	if _, err := t.Append(batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}
