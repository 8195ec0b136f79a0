package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-tracker/internal/weather"
)

// timestampLayouts are accepted when reading collected_at; the first one is written.
var timestampLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// CurrentColumns are the columns of the current observations table.
var CurrentColumns = []string{
	"collected_at", "city", "source",
	"temperature_c", "pressure_mmhg", "humidity_pct",
	"wind_speed_kmh", "wind_direction", "uv_index",
	"conditions", "air_quality_index",
	"pm2_5", "pm10", "no2", "o3", "co", "so2",
}

// ForecastColumns are the columns of the next-day forecast table.
var ForecastColumns = forecastColumns()

func forecastColumns() []string {
	cols := []string{"collected_at", "city", "source"}
	for _, part := range []string{"morning", "day", "evening", "night"} {
		cols = append(cols,
			part+"_temperature_c",
			part+"_humidity_pct",
			part+"_pressure_mmhg",
			part+"_wind_speed_kmh",
			part+"_wind_direction",
			part+"_conditions",
		)
	}
	return append(cols, "max_uv_index", "min_uv_index")
}

// CurrentSchema maps weather.CurrentObservation onto CurrentColumns.
func CurrentSchema(loc *time.Location) Schema[weather.CurrentObservation] {
	if loc == nil {
		loc = time.Local
	}
	return Schema[weather.CurrentObservation]{
		Columns: CurrentColumns,
		Encode: func(o weather.CurrentObservation) []any {
			return []any{
				o.CollectedAt.Format(timestampLayouts[0]), o.City, o.Source,
				floatCell(o.TemperatureC), floatCell(o.PressureMmHg), intCell(o.HumidityPct),
				floatCell(o.WindSpeedKmh), windCell(o.WindDirection), intCell(o.UVIndex),
				textCell(o.Conditions), intCell(o.AirQualityIndex),
				floatCell(o.Pollutants.PM25), floatCell(o.Pollutants.PM10), floatCell(o.Pollutants.NO2),
				floatCell(o.Pollutants.O3), floatCell(o.Pollutants.CO), floatCell(o.Pollutants.SO2),
			}
		},
		Decode: func(cells []string) (weather.CurrentObservation, error) {
			r := &cellReader{cells: cells, loc: loc}
			o := weather.CurrentObservation{
				CollectedAt:     r.time(),
				City:            r.str(),
				Source:          r.str(),
				TemperatureC:    r.float(),
				PressureMmHg:    r.float(),
				HumidityPct:     r.int(),
				WindSpeedKmh:    r.float(),
				WindDirection:   r.wind(),
				UVIndex:         r.int(),
				Conditions:      r.text(),
				AirQualityIndex: r.int(),
			}
			o.Pollutants = weather.Pollutants{
				PM25: r.float(),
				PM10: r.float(),
				NO2:  r.float(),
				O3:   r.float(),
				CO:   r.float(),
				SO2:  r.float(),
			}
			return o, r.err
		},
		CollectedAt: func(o weather.CurrentObservation) time.Time { return o.CollectedAt },
	}
}

// ForecastSchema maps weather.ForecastObservation onto ForecastColumns.
func ForecastSchema(loc *time.Location) Schema[weather.ForecastObservation] {
	if loc == nil {
		loc = time.Local
	}
	return Schema[weather.ForecastObservation]{
		Columns: ForecastColumns,
		Encode: func(o weather.ForecastObservation) []any {
			row := []any{o.CollectedAt.Format(timestampLayouts[0]), o.City, o.Source}
			for _, p := range o.Dayparts() {
				row = append(row,
					floatCell(p.TemperatureC),
					intCell(p.HumidityPct),
					floatCell(p.PressureMmHg),
					floatCell(p.WindSpeedKmh),
					windCell(p.WindDirection),
					textCell(p.Conditions),
				)
			}
			return append(row, intCell(o.MaxUVIndex), intCell(o.MinUVIndex))
		},
		Decode: func(cells []string) (weather.ForecastObservation, error) {
			r := &cellReader{cells: cells, loc: loc}
			o := weather.ForecastObservation{
				CollectedAt: r.time(),
				City:        r.str(),
				Source:      r.str(),
			}
			for _, p := range o.Dayparts() {
				p.TemperatureC = r.float()
				p.HumidityPct = r.int()
				p.PressureMmHg = r.float()
				p.WindSpeedKmh = r.float()
				p.WindDirection = r.wind()
				p.Conditions = r.text()
			}
			o.MaxUVIndex = r.int()
			o.MinUVIndex = r.int()
			return o, r.err
		},
		CollectedAt: func(o weather.ForecastObservation) time.Time { return o.CollectedAt },
	}
}

func floatCell(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func intCell(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func textCell(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func windCell(v *weather.WindDirection) any {
	if v == nil {
		return nil
	}
	return string(*v)
}

// cellReader decodes a row left to right and keeps the first error.
type cellReader struct {
	cells []string
	pos   int
	loc   *time.Location
	err   error
}

func (r *cellReader) next() (string, string) {
	col := ""
	if r.pos < len(r.cells) {
		col = strings.TrimSpace(r.cells[r.pos])
	}
	r.pos++
	return col, fmt.Sprintf("column %d", r.pos)
}

func (r *cellReader) fail(where string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %w", where, err)
	}
}

func (r *cellReader) str() string {
	s, _ := r.next()
	return s
}

func (r *cellReader) text() *string {
	s, _ := r.next()
	return weather.Text(s)
}

func (r *cellReader) wind() *weather.WindDirection {
	s, _ := r.next()
	return weather.Wind(s)
}

func (r *cellReader) float() *float64 {
	s, where := r.next()
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(where, err)
		return nil
	}
	return &v
}

func (r *cellReader) int() *int {
	s, where := r.next()
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(where, err)
		return nil
	}
	if v != math.Trunc(v) {
		r.fail(where, fmt.Errorf("%q is not an integer", s))
		return nil
	}
	n := int(v)
	return &n
}

func (r *cellReader) time() time.Time {
	s, where := r.next()
	if s == "" {
		r.fail(where, fmt.Errorf("empty timestamp"))
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, r.loc); err == nil {
			return ts
		}
	}
	r.fail(where, fmt.Errorf("unparseable timestamp %q", s))
	return time.Time{}
}
