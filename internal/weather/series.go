package weather

import (
	"sort"
	"time"
)

// SeriesTimeLayout is the textual form of a series point timestamp.
const SeriesTimeLayout = "2006-01-02T15:04:05"

// Point is one (timestamp, temperature) sample of a chart series.
type Point struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// Series is the temperature history of a single source.
type Series struct {
	Source string  `json:"source"`
	Points []Point `json:"points"`
}

// TemperatureSeries groups rows by source and returns one series per source.
// Rows without a source or temperature are skipped. Points keep row order and
// series are ordered by the first appearance of their source.
func TemperatureSeries(rows []CurrentObservation, loc *time.Location) []Series {
	if loc == nil {
		loc = time.Local
	}

	index := make(map[string]int)
	var out []Series
	for _, r := range rows {
		if r.Source == "" || r.TemperatureC == nil || r.CollectedAt.IsZero() {
			continue
		}
		i, ok := index[r.Source]
		if !ok {
			i = len(out)
			index[r.Source] = i
			out = append(out, Series{Source: r.Source})
		}
		out[i].Points = append(out[i].Points, Point{
			X: r.CollectedAt.In(loc).Format(SeriesTimeLayout),
			Y: *r.TemperatureC,
		})
	}
	return out
}

// SeriesBySource is TemperatureSeries keyed by source name.
func SeriesBySource(rows []CurrentObservation, loc *time.Location) map[string][]Point {
	m := make(map[string][]Point)
	for _, s := range TemperatureSeries(rows, loc) {
		m[s.Source] = s.Points
	}
	return m
}

// NewestFirstCurrent returns a copy of rows sorted by collection time, newest first.
// Rows with equal timestamps keep their relative order.
func NewestFirstCurrent(rows []CurrentObservation) []CurrentObservation {
	out := append([]CurrentObservation(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CollectedAt.After(out[j].CollectedAt)
	})
	return out
}

// NewestFirstForecast is NewestFirstCurrent for forecast rows.
func NewestFirstForecast(rows []ForecastObservation) []ForecastObservation {
	out := append([]ForecastObservation(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CollectedAt.After(out[j].CollectedAt)
	})
	return out
}
