package providers

import (
	"context"
	"errors"
	"net/url"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// RP5Provider scrapes rp5.ru. The city page is addressed by name directly,
// so an unknown city shows up as a 404. Only current conditions are offered.
type RP5Provider struct {
	site
}

// NewRP5Provider creates a provider for rp5.ru.
func NewRP5Provider(opts Options) *RP5Provider {
	return &RP5Provider{site: newSite("RP5", "rp5", "https://rp5.ru", opts)}
}

func (p *RP5Provider) Name() string {
	return p.name
}

func (p *RP5Provider) FetchCurrent(ctx context.Context, city string) (weather.CurrentObservation, error) {
	doc, err := p.document(ctx, "current", p.baseURL+"/"+url.PathEscape("Погода_в_"+city))
	if err != nil {
		if errors.Is(err, errNotFound) {
			return weather.CurrentObservation{}, weather.LookupError(p.name, city, nil)
		}
		return weather.CurrentObservation{}, err
	}

	arch := doc.Find("#ArchTemp")
	if arch.Length() == 0 {
		return weather.CurrentObservation{}, p.missingPage("current", "#ArchTemp")
	}

	f := newFields(p.name, "current")
	obs := weather.NewCurrent(p.name, city, p.now())
	obs.TemperatureC = f.float("temperature", text(arch.Find("span.t_0")))
	obs.PressureMmHg = f.float("pressure", text(doc.Find("span.p_0")))
	obs.HumidityPct = f.int("humidity", text(doc.Find("span.h_0")))
	f.log(city)

	return obs, nil
}

func (p *RP5Provider) FetchForecast(context.Context, string) (weather.ForecastObservation, error) {
	return weather.ForecastObservation{}, weather.UnsupportedError(p.name, "forecast")
}
