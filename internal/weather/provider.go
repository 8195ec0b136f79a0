package weather

import (
	"context"
	"errors"
	"fmt"
)

// Provider abstracts one upstream weather site (e.g. Gismeteo, Yandex.Weather, AccuWeather).
//
// Each fetch either returns a usable record, with unreadable fields left nil,
// or fails as a whole with a *ProviderError.
type Provider interface {
	Name() string
	FetchCurrent(ctx context.Context, city string) (CurrentObservation, error)
	FetchForecast(ctx context.Context, city string) (ForecastObservation, error)
}

// ErrorKind classifies a whole-call provider failure.
type ErrorKind string

const (
	// KindLookup means the free-text city could not be resolved by the source.
	KindLookup ErrorKind = "lookup"
	// KindExtraction means the page itself, or its identity element, was not found.
	KindExtraction ErrorKind = "extraction"
	// KindTransport covers network errors, bad status codes and timeouts.
	KindTransport ErrorKind = "transport"
	// KindUnsupported means the source does not offer that record kind.
	KindUnsupported ErrorKind = "unsupported"
)

var (
	// ErrCityNotFound is returned when a lookup yields no result.
	ErrCityNotFound = errors.New("city not found")
	// ErrPageNotFound is returned when the primary page element is missing.
	ErrPageNotFound = errors.New("page element not found")
	// ErrUnsupported is returned by providers that cannot produce a record kind.
	ErrUnsupported = errors.New("not supported by provider")
)

// ProviderError describes a whole-call failure of a single provider.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Provider, e.Op, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// LookupError builds a KindLookup failure.
func LookupError(provider, city string, err error) *ProviderError {
	if err == nil {
		err = ErrCityNotFound
	}
	return &ProviderError{Provider: provider, Kind: KindLookup, Op: "lookup " + city, Err: err}
}

// ExtractionError builds a KindExtraction failure.
func ExtractionError(provider, op string, err error) *ProviderError {
	if err == nil {
		err = ErrPageNotFound
	}
	return &ProviderError{Provider: provider, Kind: KindExtraction, Op: op, Err: err}
}

// TransportError builds a KindTransport failure.
func TransportError(provider, op string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindTransport, Op: op, Err: err}
}

// UnsupportedError builds a KindUnsupported failure.
func UnsupportedError(provider, op string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindUnsupported, Op: op, Err: ErrUnsupported}
}

// Classify returns a *ProviderError for any error returned by a provider.
// Errors that are not already classified are treated as transport failures,
// which includes context deadline and cancellation.
func Classify(provider, op string, err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, ErrCityNotFound) {
		return &ProviderError{Provider: provider, Kind: KindLookup, Op: op, Err: err}
	}
	if errors.Is(err, ErrPageNotFound) {
		return ExtractionError(provider, op, err)
	}
	if errors.Is(err, ErrUnsupported) {
		return &ProviderError{Provider: provider, Kind: KindUnsupported, Op: op, Err: err}
	}
	return TransportError(provider, op, err)
}
