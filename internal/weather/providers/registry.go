package providers

import (
	"fmt"
	"slices"
	"strings"

	"github.com/i474232898/weather-tracker/internal/weather"
)

type constructor func(Options) weather.Provider

// registry lists every known provider in collection order.
var registry = []struct {
	key string
	new constructor
}{
	{"gismeteo", func(o Options) weather.Provider { return NewGismeteoProvider(o) }},
	{"yandex", func(o Options) weather.Provider { return NewYandexProvider(o) }},
	{"accuweather", func(o Options) weather.Provider { return NewAccuWeatherProvider(o) }},
	{"rp5", func(o Options) weather.Provider { return NewRP5Provider(o) }},
}

// Names returns the registry keys in collection order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for _, r := range registry {
		out = append(out, r.key)
	}
	return out
}

// Build creates the enabled providers. The result always follows registry
// order regardless of the order of enabled; an empty list enables all.
func Build(enabled []string, opts Options) ([]weather.Provider, error) {
	want := make([]string, 0, len(enabled))
	for _, key := range enabled {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if !slices.Contains(Names(), key) {
			return nil, fmt.Errorf("unknown provider %q (known: %s)", key, strings.Join(Names(), ", "))
		}
		want = append(want, key)
	}

	var out []weather.Provider
	for _, r := range registry {
		if len(want) == 0 || slices.Contains(want, r.key) {
			out = append(out, r.new(opts))
		}
	}
	return out, nil
}
