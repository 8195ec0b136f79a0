package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/i474232898/weather-tracker/internal/common"
	"github.com/i474232898/weather-tracker/internal/weather"
)

// The 3-days widget has four columns per day: night, morning, day, evening.
// Tomorrow is the second day.
const (
	gismeteoColumnsPerDay = 4
	gismeteoTomorrow      = 1
)

// GismeteoProvider scrapes gismeteo.ru.
type GismeteoProvider struct {
	site
}

// NewGismeteoProvider creates a provider for gismeteo.ru.
func NewGismeteoProvider(opts Options) *GismeteoProvider {
	return &GismeteoProvider{site: newSite("Gismeteo", "gismeteo", "https://www.gismeteo.ru", opts)}
}

func (p *GismeteoProvider) Name() string {
	return p.name
}

// cityURL resolves a free-text city to its page root, e.g. /weather-moscow-4368.
func (p *GismeteoProvider) cityURL(ctx context.Context, city string) (string, error) {
	u := fmt.Sprintf("%s/mq/city/q/%s/", p.baseURL, url.PathEscape(city))

	var payload []struct {
		ID   flexInt `json:"id"`
		Slug string  `json:"slug"`
	}
	if err := p.json(ctx, "lookup", u, &payload); err != nil {
		if errors.Is(err, errNotFound) {
			return "", weather.LookupError(p.name, city, nil)
		}
		return "", err
	}
	if len(payload) == 0 {
		return "", weather.LookupError(p.name, city, nil)
	}
	if payload[0].Slug == "" || payload[0].ID == 0 {
		return "", weather.LookupError(p.name, city, fmt.Errorf("%w: no slug or id in lookup result", weather.ErrCityNotFound))
	}
	return fmt.Sprintf("%s/weather-%s-%d", p.baseURL, payload[0].Slug, payload[0].ID), nil
}

func (p *GismeteoProvider) FetchCurrent(ctx context.Context, city string) (weather.CurrentObservation, error) {
	root, err := p.cityURL(ctx, city)
	if err != nil {
		return weather.CurrentObservation{}, err
	}
	doc, err := p.document(ctx, "current", root+"/now/")
	if err != nil {
		return weather.CurrentObservation{}, err
	}

	now := doc.Find("div.now-weather")
	if now.Length() == 0 {
		return weather.CurrentObservation{}, p.missingPage("current", "div.now-weather")
	}

	f := newFields(p.name, "current")
	obs := weather.NewCurrent(p.name, city, p.now())
	obs.TemperatureC = f.float("temperature", attr(now.Find("temperature-value"), "value"))
	obs.Conditions = f.text("conditions", text(doc.Find("div.now-desc")))

	doc.Find("div.now-info-item").Each(func(_ int, item *goquery.Selection) {
		title := text(item.Find(".item-title"))
		switch {
		case common.HasAny(title, "влажность"):
			obs.HumidityPct = f.int("humidity", text(item.Find(".item-value")))
		case common.HasAny(title, "давление"):
			obs.PressureMmHg = f.float("pressure", attr(item.Find("pressure-value"), "value"))
		case common.HasAny(title, "ветер"):
			obs.WindSpeedKmh = scaled(f.float("wind speed", attr(item.Find("speed-value"), "value")), msToKmh)
			obs.WindDirection = f.wind("wind direction", text(item.Find("direction-value")))
		case common.HasAny(title, "уф", "ультрафиолет"):
			obs.UVIndex = f.int("uv index", text(item.Find(".item-value")))
		}
	})
	if obs.HumidityPct == nil && !slices.Contains(f.missing, "humidity") {
		f.miss("humidity")
	}
	if obs.PressureMmHg == nil && !slices.Contains(f.missing, "pressure") {
		f.miss("pressure")
	}
	f.log(city)

	return obs, nil
}

func (p *GismeteoProvider) FetchForecast(ctx context.Context, city string) (weather.ForecastObservation, error) {
	root, err := p.cityURL(ctx, city)
	if err != nil {
		return weather.ForecastObservation{}, err
	}
	doc, err := p.document(ctx, "forecast", root+"/3-days/")
	if err != nil {
		return weather.ForecastObservation{}, err
	}

	if doc.Find(".widget-row-chart-temperature-air").Length() == 0 {
		return weather.ForecastObservation{}, p.missingPage("forecast", ".widget-row-chart-temperature-air")
	}

	f := newFields(p.name, "forecast")
	fc := weather.NewForecast(p.name, city, p.now())

	temps := tomorrow(doc.Find(".widget-row-chart-temperature-air .value temperature-value"), func(s *goquery.Selection) string {
		return attr(s, "value")
	})
	conds := tomorrow(doc.Find(".widget-row-icon .row-item"), func(s *goquery.Selection) string {
		return attr(s, "data-tooltip")
	})
	winds := tomorrow(doc.Find(".widget-row-wind .row-item"), func(s *goquery.Selection) string {
		return attr(s.Find("speed-value"), "value")
	})
	windDirs := tomorrow(doc.Find(".widget-row-wind .row-item"), func(s *goquery.Selection) string {
		return text(s.Find(".direction"))
	})
	pressures := tomorrow(doc.Find(".widget-row-chart-pressure .value pressure-value"), func(s *goquery.Selection) string {
		return attr(s, "value")
	})
	humidity := tomorrow(doc.Find(".widget-row-humidity .row-item"), text)
	uv := tomorrow(doc.Find(".widget-row-radiation .row-item"), text)

	// Column order on the page is night, morning, day, evening.
	slots := []*weather.Daypart{&fc.Night, &fc.Morning, &fc.Day, &fc.Evening}
	labels := []string{"night", "morning", "day", "evening"}
	for i, slot := range slots {
		slot.TemperatureC = f.float(labels[i]+" temperature", temps[i])
		slot.Conditions = f.text(labels[i]+" conditions", conds[i])
		slot.WindSpeedKmh = scaled(f.float(labels[i]+" wind speed", winds[i]), msToKmh)
		slot.WindDirection = f.wind(labels[i]+" wind direction", windDirs[i])
		slot.PressureMmHg = f.float(labels[i]+" pressure", pressures[i])
		slot.HumidityPct = f.int(labels[i]+" humidity", humidity[i])
	}

	var uvs []int
	for _, raw := range uv {
		if v, ok := common.ParseInt(raw); ok {
			uvs = append(uvs, v)
		}
	}
	if len(uvs) > 0 {
		lo, hi := uvs[0], uvs[0]
		for _, v := range uvs[1:] {
			lo, hi = min(lo, v), max(hi, v)
		}
		fc.MinUVIndex, fc.MaxUVIndex = weather.Int(lo), weather.Int(hi)
	} else {
		f.miss("uv index")
	}
	f.log(city)

	return fc, nil
}

// tomorrow returns the four raw values of tomorrow's columns; missing columns are "".
func tomorrow(sel *goquery.Selection, read func(*goquery.Selection) string) [gismeteoColumnsPerDay]string {
	var out [gismeteoColumnsPerDay]string
	start := gismeteoTomorrow * gismeteoColumnsPerDay
	for i := range out {
		if start+i < sel.Length() {
			out[i] = read(sel.Eq(start + i))
		}
	}
	return out
}

// flexInt accepts both 4368 and "4368" in lookup payloads.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}
