package weather

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// ProviderFailure records a provider that was excluded from a batch.
type ProviderFailure struct {
	Provider string    `json:"provider"`
	Record   string    `json:"record"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
}

// AggregatorOptions tunes how providers are driven.
type AggregatorOptions struct {
	// Timeout bounds a single provider call (0 = only the parent context applies).
	Timeout time.Duration
	// Parallelism bounds how many providers run at once (<= 1 = sequential).
	Parallelism int
}

// Aggregator drives one collection pass over a fixed, ordered provider list.
// A failing provider never affects the others; the batch keeps configured order.
type Aggregator struct {
	providers []Provider
	timeout   time.Duration
	limit     int
}

// NewAggregator creates a new Aggregator.
func NewAggregator(providers []Provider, opts AggregatorOptions) *Aggregator {
	limit := opts.Parallelism
	if limit < 1 {
		limit = 1
	}
	return &Aggregator{
		providers: providers,
		timeout:   opts.Timeout,
		limit:     limit,
	}
}

// Providers returns the configured provider names in collection order.
func (a *Aggregator) Providers() []string {
	names := make([]string, 0, len(a.providers))
	for _, p := range a.providers {
		names = append(names, p.Name())
	}
	return names
}

// CollectCurrent fetches current observations from every provider.
// It never fails: providers that error are reported in the failure list and left out.
func (a *Aggregator) CollectCurrent(ctx context.Context, city string) ([]CurrentObservation, []ProviderFailure) {
	return collect(ctx, a, city, "current", func(ctx context.Context, p Provider) (CurrentObservation, error) {
		obs, err := p.FetchCurrent(ctx, city)
		if err != nil {
			return obs, err
		}
		if obs.Source == "" {
			obs.Source = p.Name()
		}
		if obs.City == "" {
			obs.City = city
		}
		if obs.CollectedAt.IsZero() {
			obs.CollectedAt = time.Now()
		}
		return obs, nil
	})
}

// CollectForecast is the forecast counterpart of CollectCurrent.
func (a *Aggregator) CollectForecast(ctx context.Context, city string) ([]ForecastObservation, []ProviderFailure) {
	return collect(ctx, a, city, "forecast", func(ctx context.Context, p Provider) (ForecastObservation, error) {
		obs, err := p.FetchForecast(ctx, city)
		if err != nil {
			return obs, err
		}
		if obs.Source == "" {
			obs.Source = p.Name()
		}
		if obs.City == "" {
			obs.City = city
		}
		if obs.CollectedAt.IsZero() {
			obs.CollectedAt = time.Now()
		}
		return obs, nil
	})
}

type outcome[T any] struct {
	rec T
	err error
}

func collect[T any](
	ctx context.Context,
	a *Aggregator,
	city, record string,
	fetch func(context.Context, Provider) (T, error),
) ([]T, []ProviderFailure) {
	results := make([]outcome[T], len(a.providers))

	var g errgroup.Group
	g.SetLimit(a.limit)
	for i, p := range a.providers {
		i, p := i, p
		g.Go(func() error {
			results[i] = call(ctx, a.timeout, p, fetch)
			return nil
		})
	}
	_ = g.Wait()

	batch := make([]T, 0, len(a.providers))
	var failures []ProviderFailure
	for i, res := range results {
		name := a.providers[i].Name()
		if res.err != nil {
			pe := Classify(name, record, res.err)
			log.Printf("aggregator: provider %s %s failed for %s: %v", name, record, city, pe)
			failures = append(failures, ProviderFailure{
				Provider: name,
				Record:   record,
				Kind:     pe.Kind,
				Message:  pe.Error(),
			})
			continue
		}
		batch = append(batch, res.rec)
	}

	log.Printf("aggregator: %s pass for %s: %d ok, %d failed", record, city, len(batch), len(failures))
	return batch, failures
}

// call runs one provider fetch under its own deadline. A provider that ignores
// its context is abandoned once the deadline passes; a panic becomes an error.
func call[T any](
	parent context.Context,
	timeout time.Duration,
	p Provider,
	fetch func(context.Context, Provider) (T, error),
) outcome[T] {
	if err := parent.Err(); err != nil {
		return outcome[T]{err: TransportError(p.Name(), "fetch", err)}
	}

	ctx, cancel := parent, context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	}
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		rec, err := fetch(ctx, p)
		done <- outcome[T]{rec: rec, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil {
			return outcome[T]{err: TransportError(p.Name(), "fetch", fmt.Errorf("%w: %v", ctx.Err(), res.err))}
		}
		return res
	case <-ctx.Done():
		return outcome[T]{err: TransportError(p.Name(), "fetch", ctx.Err())}
	}
}
