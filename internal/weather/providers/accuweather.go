package providers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/i474232898/weather-tracker/internal/common"
	"github.com/i474232898/weather-tracker/internal/weather"
)

// mbarPerMmHg converts the pressure AccuWeather reports in mbar.
const mbarPerMmHg = 1.333

// AccuWeatherProvider scrapes accuweather.com (Russian locale).
type AccuWeatherProvider struct {
	site
}

// NewAccuWeatherProvider creates a provider for AccuWeather.
func NewAccuWeatherProvider(opts Options) *AccuWeatherProvider {
	return &AccuWeatherProvider{site: newSite("AccuWeather", "accuweather", "https://www.accuweather.com", opts)}
}

func (p *AccuWeatherProvider) Name() string {
	return p.name
}

// currentURL resolves a city to its current-weather page. The location key
// comes from the autocomplete endpoint; the page path is taken from the
// redirect page's current conditions card.
func (p *AccuWeatherProvider) currentURL(ctx context.Context, city string) (string, error) {
	q := url.Values{}
	q.Set("query", city)
	q.Set("language", "ru")

	var payload []struct {
		Key string `json:"key"`
	}
	if err := p.json(ctx, "lookup", p.baseURL+"/web-api/autocomplete?"+q.Encode(), &payload); err != nil {
		if errors.Is(err, errNotFound) {
			return "", weather.LookupError(p.name, city, nil)
		}
		return "", err
	}
	if len(payload) == 0 || payload[0].Key == "" {
		return "", weather.LookupError(p.name, city, nil)
	}

	doc, err := p.document(ctx, "lookup", p.baseURL+"/web-api/three-day-redirect?key="+url.QueryEscape(payload[0].Key))
	if err != nil {
		return "", err
	}
	href := attr(doc.Find("a.cur-con-weather-card"), "href")
	if href == "" {
		return "", weather.LookupError(p.name, city, fmt.Errorf("%w: no current conditions link for key %s", weather.ErrCityNotFound, payload[0].Key))
	}
	if strings.HasPrefix(href, "http") {
		return href, nil
	}
	return p.baseURL + href, nil
}

func (p *AccuWeatherProvider) FetchCurrent(ctx context.Context, city string) (weather.CurrentObservation, error) {
	pageURL, err := p.currentURL(ctx, city)
	if err != nil {
		return weather.CurrentObservation{}, err
	}
	doc, err := p.document(ctx, "current", pageURL)
	if err != nil {
		return weather.CurrentObservation{}, err
	}

	cur := doc.Find("div.current-weather")
	if cur.Length() == 0 {
		return weather.CurrentObservation{}, p.missingPage("current", "div.current-weather")
	}

	f := newFields(p.name, "current")
	obs := weather.NewCurrent(p.name, city, p.now())
	obs.TemperatureC = f.float("temperature", text(cur.Find("div.display-temp")))
	obs.Conditions = f.text("conditions", text(cur.Find("div.phrase")))

	details := make(map[string]string)
	doc.Find("div.current-weather-details div.detail-item").Each(func(_ int, item *goquery.Selection) {
		cells := item.Find("div")
		if cells.Length() < 2 {
			return
		}
		details[strings.ToLower(text(cells.Eq(0)))] = text(cells.Eq(1))
	})
	obs.UVIndex = f.int("uv index", detail(details, "уф-индекс"))
	obs.HumidityPct = f.int("humidity", detail(details, "влажность"))
	if mbar := f.float("pressure", detail(details, "давление")); mbar != nil {
		obs.PressureMmHg = weather.Float(math.Floor(*mbar / mbarPerMmHg))
	}
	wind := detail(details, "ветер")
	obs.WindSpeedKmh = f.float("wind speed", wind)
	obs.WindDirection = f.wind("wind direction", wind)

	p.airQuality(ctx, strings.Replace(pageURL, "current-weather", "air-quality-index", 1), &obs, f)
	f.log(city)

	return obs, nil
}

// airQuality fills the index and pollutants from the air quality page. The
// page is optional: any failure only leaves the fields empty.
func (p *AccuWeatherProvider) airQuality(ctx context.Context, pageURL string, obs *weather.CurrentObservation, f *fields) {
	doc, err := p.document(ctx, "air quality", pageURL)
	if err != nil {
		log.Printf("%s: air quality page unavailable: %v", p.name, err)
		f.miss("air quality")
		return
	}

	obs.AirQualityIndex = f.int("air quality index", text(doc.Find("div.aq-number")))

	targets := map[string]**float64{
		"pm2.5": &obs.Pollutants.PM25,
		"pm10":  &obs.Pollutants.PM10,
		"no2":   &obs.Pollutants.NO2,
		"o3":    &obs.Pollutants.O3,
		"co":    &obs.Pollutants.CO,
		"so2":   &obs.Pollutants.SO2,
	}
	doc.Find("div.air-quality-pollutant").Each(func(_ int, item *goquery.Selection) {
		name := pollutantKey(text(item.Find(".display-type")))
		dst, ok := targets[name]
		if !ok || *dst != nil {
			return
		}
		if v, ok := common.ParseNumber(text(item.Find(".pollutant-index"))); ok {
			*dst = weather.Float(v)
		}
	})
	for _, name := range []string{"pm2.5", "pm10", "no2", "o3", "co", "so2"} {
		if *targets[name] == nil {
			f.miss(name)
		}
	}
}

var subscriptDigits = strings.NewReplacer("₂", "2", "₃", "3", "₅", "5", "₁", "1", "₀", "0", " ", "")

// pollutantKey normalizes labels like "PM 2.5" or "NO₂".
func pollutantKey(label string) string {
	return strings.ToLower(subscriptDigits.Replace(label))
}

func (p *AccuWeatherProvider) FetchForecast(ctx context.Context, city string) (weather.ForecastObservation, error) {
	pageURL, err := p.currentURL(ctx, city)
	if err != nil {
		return weather.ForecastObservation{}, err
	}
	doc, err := p.document(ctx, "forecast", strings.Replace(pageURL, "current-weather", "weather-tomorrow", 1))
	if err != nil {
		return weather.ForecastObservation{}, err
	}

	cards := doc.Find("div.half-day-card")
	if cards.Length() == 0 {
		return weather.ForecastObservation{}, p.missingPage("forecast", "div.half-day-card")
	}

	f := newFields(p.name, "forecast")
	fc := weather.NewForecast(p.name, city, p.now())

	// The page has a day half and a night half only.
	halves := []struct {
		label string
		slot  *weather.Daypart
	}{
		{"day", &fc.Day},
		{"night", &fc.Night},
	}
	var uvs []int
	for i, half := range halves {
		if i >= cards.Length() {
			f.miss(half.label)
			continue
		}
		card := cards.Eq(i)
		panel := panelItems(card)

		half.slot.TemperatureC = f.float(half.label+" temperature", text(card.Find("div.temperature")))
		half.slot.Conditions = f.text(half.label+" conditions", text(card.Find("div.phrase")))
		wind := detail(panel, "ветер")
		half.slot.WindSpeedKmh = f.float(half.label+" wind speed", wind)
		half.slot.WindDirection = f.wind(half.label+" wind direction", wind)
		if raw := detail(panel, "влажность"); raw != "" {
			half.slot.HumidityPct = f.int(half.label+" humidity", raw)
		}
		if v, ok := common.ParseInt(detail(panel, "уф-индекс")); ok {
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

// panelItems maps the lowercased labels of a card's "p.panel-item" rows to their values.
func panelItems(card *goquery.Selection) map[string]string {
	out := make(map[string]string)
	card.Find("p.panel-item").Each(func(_ int, item *goquery.Selection) {
		value := text(item.Find("span.value"))
		label := strings.TrimSpace(strings.TrimSuffix(common.Squash(item.Text()), value))
		out[strings.ToLower(label)] = value
	})
	return out
}

// detail returns the value whose label contains key.
func detail(items map[string]string, key string) string {
	if v, ok := items[key]; ok {
		return v
	}
	for label, v := range items {
		if strings.Contains(label, key) {
			return v
		}
	}
	return ""
}
