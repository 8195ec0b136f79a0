package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/i474232898/weather-tracker/internal/common"
	"github.com/i474232898/weather-tracker/internal/weather"
)

// YandexProvider scrapes Yandex.Weather. Cities are resolved to coordinates
// through the suggest endpoint.
type YandexProvider struct {
	site
}

// NewYandexProvider creates a provider for Yandex.Weather.
func NewYandexProvider(opts Options) *YandexProvider {
	return &YandexProvider{site: newSite("Яндекс.Погода", "yandex", "https://yandex.ru", opts)}
}

func (p *YandexProvider) Name() string {
	return p.name
}

// coords resolves a city to the "?lat=..&lon=.." query of the weather pages.
func (p *YandexProvider) coords(ctx context.Context, city string) (string, error) {
	q := url.Values{}
	q.Set("part", city)
	q.Set("type", "weather")
	u := fmt.Sprintf("%s/weather/api/suggest?%s", p.baseURL, q.Encode())

	var payload []struct {
		URI    string `json:"uri"`
		Coords *struct {
			Lat *float64 `json:"lat"`
			Lon *float64 `json:"lon"`
		} `json:"coords"`
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
	c := payload[0].Coords
	if c == nil || c.Lat == nil || c.Lon == nil {
		return "", weather.LookupError(p.name, city, fmt.Errorf("%w: no coordinates in suggest result", weather.ErrCityNotFound))
	}

	v := url.Values{}
	v.Set("lat", fmt.Sprintf("%g", *c.Lat))
	v.Set("lon", fmt.Sprintf("%g", *c.Lon))
	return "?" + v.Encode(), nil
}

func (p *YandexProvider) FetchCurrent(ctx context.Context, city string) (weather.CurrentObservation, error) {
	query, err := p.coords(ctx, city)
	if err != nil {
		return weather.CurrentObservation{}, err
	}
	doc, err := p.document(ctx, "current", p.baseURL+"/pogoda/ru/"+query)
	if err != nil {
		return weather.CurrentObservation{}, err
	}

	fact := doc.Find(`[class*="AppFact_fact"]`)
	if fact.Length() == 0 {
		return weather.CurrentObservation{}, p.missingPage("current", "AppFact_fact")
	}

	f := newFields(p.name, "current")
	obs := weather.NewCurrent(p.name, city, p.now())
	obs.TemperatureC = f.float("temperature", text(fact.Find(`[class*="AppFactTemperature_value"]`)))
	obs.Conditions = f.text("conditions", text(fact.Find(`[class*="AppFact_warning"]`)))

	var pressure, humidity, wind string
	fact.Find(`li[class*="AppFact_details__item"]`).Each(func(_ int, item *goquery.Selection) {
		v := common.Squash(item.Text())
		switch {
		case common.HasAny(v, "мм рт"):
			pressure = v
		case strings.Contains(v, "%"):
			humidity = v
		case common.HasAny(v, "м/с"):
			wind = v
		}
	})
	obs.PressureMmHg = f.float("pressure", pressure)
	obs.HumidityPct = f.int("humidity", humidity)
	obs.WindSpeedKmh = scaled(f.float("wind speed", wind), msToKmh)
	obs.WindDirection = f.wind("wind direction", wind)

	today := dayCard(doc.Find(`a[class*="AppForecastDay_dayCard"]`), "Сегодня")
	if uv := uvNumbers(today); len(uv) > 0 {
		obs.UVIndex = weather.Int(uv[len(uv)-1])
	} else {
		f.miss("uv index")
	}
	f.log(city)

	return obs, nil
}

func (p *YandexProvider) FetchForecast(ctx context.Context, city string) (weather.ForecastObservation, error) {
	query, err := p.coords(ctx, city)
	if err != nil {
		return weather.ForecastObservation{}, err
	}
	doc, err := p.document(ctx, "forecast", p.baseURL+"/pogoda/ru/details/3-day-weather"+query)
	if err != nil {
		return weather.ForecastObservation{}, err
	}

	card := dayCard(doc.Find(`div[class*="AppForecastDay_dayCard"]`), "Завтра")
	if card == nil {
		return weather.ForecastObservation{}, p.missingPage("forecast", "tomorrow day card")
	}

	f := newFields(p.name, "forecast")
	fc := weather.NewForecast(p.name, city, p.now())

	parts := map[string]*weather.Daypart{
		"утро":  &fc.Morning,
		"день":  &fc.Day,
		"вечер": &fc.Evening,
		"ночь":  &fc.Night,
	}
	seen := make(map[string]bool)
	card.Find(`[class*="AppForecastDayPart_part"]`).Each(func(_ int, row *goquery.Selection) {
		label := strings.ToLower(text(row.Find(`[class*="AppForecastDayPart_name"]`)))
		slot, ok := parts[label]
		if !ok || seen[label] {
			return
		}
		seen[label] = true

		wind := text(row.Find(`[class*="AppForecastDayPart_wind"]`))
		slot.TemperatureC = f.float(label+" temperature", text(row.Find(`[class*="AppForecastDayPart_temp"]`)))
		slot.Conditions = f.text(label+" conditions", text(row.Find(`[class*="AppForecastDayPart_text"]`)))
		slot.WindSpeedKmh = scaled(f.float(label+" wind speed", wind), msToKmh)
		slot.WindDirection = f.wind(label+" wind direction", wind)
		slot.PressureMmHg = f.float(label+" pressure", text(row.Find(`[class*="AppForecastDayPart_pressure"]`)))
		slot.HumidityPct = f.int(label+" humidity", text(row.Find(`[class*="AppForecastDayPart_humidity"]`)))
	})
	for label := range parts {
		if !seen[label] {
			f.miss(label)
		}
	}

	if uv := uvNumbers(card); len(uv) > 0 {
		lo, hi := uv[0], uv[0]
		for _, v := range uv[1:] {
			lo, hi = min(lo, v), max(hi, v)
		}
		fc.MinUVIndex, fc.MaxUVIndex = weather.Int(lo), weather.Int(hi)
	} else {
		f.miss("uv index")
	}
	f.log(city)

	return fc, nil
}

// dayCard returns the card whose heading contains title, or nil.
func dayCard(cards *goquery.Selection, title string) *goquery.Selection {
	var found *goquery.Selection
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if strings.Contains(card.Find("h3").First().Text(), title) {
			found = card
			return false
		}
		return true
	})
	return found
}

// uvNumbers reads the "УФ-индекс" duration item of a day card ("3" or "2–5").
func uvNumbers(card *goquery.Selection) []int {
	if card == nil {
		return nil
	}
	var out []int
	card.Find(`div[class*="AppForecastDayDuration_item"]`).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		caption := text(item.Find(`[class*="AppForecastDayDuration_caption"]`))
		if !common.HasAny(caption, "УФ-индекс") {
			return true
		}
		for _, v := range common.Numbers(text(item.Find(`[class*="AppForecastDayDuration_value"]`))) {
			out = append(out, int(v))
		}
		return false
	})
	return out
}
