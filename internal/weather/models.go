package weather

import (
	"time"
)

// WindDirection is a compass point as reported by a source ("N", "SW", "С", "ЮЗ", ...).
// Sources use different alphabets; the text is stored verbatim.
type WindDirection string

// Pollutants holds air pollutant concentrations in µg/m³.
// A nil field means the source did not report that pollutant.
type Pollutants struct {
	PM25 *float64 `json:"pm25"`
	PM10 *float64 `json:"pm10"`
	NO2  *float64 `json:"no2"`
	O3   *float64 `json:"o3"`
	CO   *float64 `json:"co"`
	SO2  *float64 `json:"so2"`
}

// CurrentObservation is the canonical "weather now" record produced by a provider.
// Every measurement is optional: a provider fills only what it can read.
type CurrentObservation struct {
	CollectedAt time.Time `json:"collectedAt"`
	City        string    `json:"city"`
	Source      string    `json:"source"`

	TemperatureC    *float64       `json:"temperatureC"`
	PressureMmHg    *float64       `json:"pressureMmHg"`
	HumidityPct     *int           `json:"humidityPct"`
	WindSpeedKmh    *float64       `json:"windSpeedKmh"`
	WindDirection   *WindDirection `json:"windDirection"`
	UVIndex         *int           `json:"uvIndex"`
	Conditions      *string        `json:"conditions"`
	AirQualityIndex *int           `json:"airQualityIndex"`

	Pollutants Pollutants `json:"pollutants"`
}

// Daypart is one slot (morning, day, evening, night) of a next-day forecast.
type Daypart struct {
	TemperatureC  *float64       `json:"temperatureC"`
	HumidityPct   *int           `json:"humidityPct"`
	PressureMmHg  *float64       `json:"pressureMmHg"`
	WindSpeedKmh  *float64       `json:"windSpeedKmh"`
	WindDirection *WindDirection `json:"windDirection"`
	Conditions    *string        `json:"conditions"`
}

// ForecastObservation is the canonical next-day forecast record produced by a provider.
type ForecastObservation struct {
	CollectedAt time.Time `json:"collectedAt"`
	City        string    `json:"city"`
	Source      string    `json:"source"`

	Morning Daypart `json:"morning"`
	Day     Daypart `json:"day"`
	Evening Daypart `json:"evening"`
	Night   Daypart `json:"night"`

	MaxUVIndex *int `json:"maxUvIndex"`
	MinUVIndex *int `json:"minUvIndex"`
}

// Dayparts returns the four forecast slots in morning, day, evening, night order.
func (f *ForecastObservation) Dayparts() [4]*Daypart {
	return [4]*Daypart{&f.Morning, &f.Day, &f.Evening, &f.Night}
}

// NewCurrent starts a current observation for a source with only identity fields set.
func NewCurrent(source, city string, at time.Time) CurrentObservation {
	return CurrentObservation{CollectedAt: at, City: city, Source: source}
}

// NewForecast starts a forecast observation for a source with only identity fields set.
func NewForecast(source, city string, at time.Time) ForecastObservation {
	return ForecastObservation{CollectedAt: at, City: city, Source: source}
}

// Float returns a pointer to v. Handy for filling optional fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Text returns a pointer to s, or nil when s is empty.
func Text(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Wind returns a pointer to a wind direction, or nil when s is empty.
func Wind(s string) *WindDirection {
	if s == "" {
		return nil
	}
	d := WindDirection(s)
	return &d
}
