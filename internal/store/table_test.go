package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/i474232898/weather-tracker/internal/weather"
)

func obs(source string, at time.Time, temp *float64) weather.CurrentObservation {
	o := weather.NewCurrent(source, "Москва", at)
	o.TemperatureC = temp
	return o
}

func TestAppendToMissingFileCreatesTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "current.xlsx")
	s := New(time.UTC)
	table := s.Current(path)

	rows, err := table.Load("")
	if err != nil {
		t.Fatalf("load missing table: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty table, got %d rows", len(rows))
	}

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	full := weather.NewCurrent("AccuWeather", "Москва", at)
	full.TemperatureC = weather.Float(12.5)
	full.PressureMmHg = weather.Float(747)
	full.HumidityPct = weather.Int(65)
	full.WindSpeedKmh = weather.Float(11)
	full.WindDirection = weather.Wind("СЗ")
	full.UVIndex = weather.Int(3)
	full.Conditions = weather.Text("Облачно")
	full.AirQualityIndex = weather.Int(42)
	full.Pollutants.PM25 = weather.Float(7.1)
	full.Pollutants.SO2 = weather.Float(1)

	n, err := table.Append([]weather.CurrentObservation{full})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row after append, got %d", n)
	}

	rows, err = table.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got := rows[0]
	if !got.CollectedAt.Equal(at) {
		t.Errorf("collectedAt = %v, want %v", got.CollectedAt, at)
	}
	// Normalize the zone so the structs can be compared as a whole.
	got.CollectedAt = at
	if !reflect.DeepEqual(got, full) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, full)
	}
	if got.Pollutants.PM10 != nil || got.Pollutants.NO2 != nil {
		t.Errorf("unset pollutants should stay nil: %+v", got.Pollutants)
	}
}

func TestAppendKeepsExistingRowsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "current.xlsx")
	table := New(time.UTC).Current(path)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	first := []weather.CurrentObservation{
		obs("A", base, weather.Float(10)),
		obs("B", base, nil),
		obs("C", base, weather.Float(-3.5)),
	}
	if _, err := table.Append(first); err != nil {
		t.Fatalf("append first batch: %v", err)
	}
	before, err := table.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	second := []weather.CurrentObservation{
		obs("B", base.Add(time.Hour), weather.Float(20)),
		obs("A", base.Add(time.Hour), weather.Float(12)),
	}
	n, err := table.Append(second)
	if err != nil {
		t.Fatalf("append second batch: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 rows, got %d", n)
	}

	after, err := table.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(after) != len(before)+len(second) {
		t.Fatalf("expected %d rows, got %d", len(before)+len(second), len(after))
	}
	if !reflect.DeepEqual(after[:len(before)], before) {
		t.Errorf("existing rows changed after append")
	}
	for i, want := range second {
		got := after[len(before)+i]
		if got.Source != want.Source || !got.CollectedAt.Equal(want.CollectedAt) || *got.TemperatureC != *want.TemperatureC {
			t.Errorf("appended row %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "current.xlsx")
	table := New(time.UTC).Current(path)
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	if _, err := table.Append([]weather.CurrentObservation{obs("A", at, weather.Float(1)), obs("B", at, nil)}); err != nil {
		t.Fatalf("append: %v", err)
	}

	a, err := table.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b, err := table.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("two loads differ:\n%+v\n%+v", a, b)
	}
}

func TestAppendEmptyBatchIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "current.xlsx")
	table := New(time.UTC).Current(path)

	if _, err := table.Append(nil); err != nil {
		t.Fatalf("append empty to missing table: %v", err)
	}
	if table.Exists() {
		t.Fatalf("empty append must not create the table file")
	}

	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	if _, err := table.Append([]weather.CurrentObservation{obs("A", at, weather.Float(1))}); err != nil {
		t.Fatalf("append: %v", err)
	}
	before, _ := table.Load("")
	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	n, err := table.Append([]weather.CurrentObservation{})
	if err != nil {
		t.Fatalf("append empty: %v", err)
	}
	if n != 1 {
		t.Errorf("expected row count 1, got %d", n)
	}
	after, _ := table.Load("")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("empty append changed content")
	}
	stat2, _ := os.Stat(path)
	if !stat2.ModTime().Equal(stat.ModTime()) {
		t.Errorf("empty append rewrote the file")
	}
}

func TestLoadDateFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "current.xlsx")
	table := New(time.UTC).Current(path)

	batch := []weather.CurrentObservation{
		obs("A", time.Date(2024, 4, 30, 23, 59, 0, 0, time.UTC), weather.Float(1)),
		obs("A", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), weather.Float(2)),
		obs("B", time.Date(2024, 5, 1, 13, 30, 0, 0, time.UTC), weather.Float(3)),
		obs("A", time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC), weather.Float(4)),
	}
	if _, err := table.Append(batch); err != nil {
		t.Fatalf("append: %v", err)
	}

	tests := []struct {
		name   string
		filter string
		want   []float64
	}{
		{name: "single day", filter: "2024-05-01", want: []float64{2, 3}},
		{name: "whole month", filter: "2024-05", want: []float64{2, 3, 4}},
		{name: "no filter", filter: "", want: []float64{1, 2, 3, 4}},
		{name: "no match", filter: "2023-01-01", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := table.Load(tt.filter)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			var got []float64
			for _, r := range rows {
				got = append(got, *r.TemperatureC)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Load(%q) temperatures = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestLoadDateFilterUsesStoreLocation(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	path := filepath.Join(t.TempDir(), "current.xlsx")
	table := New(msk).Current(path)

	// 22:30 UTC on April 30th is already May 1st in Moscow.
	at := time.Date(2024, 4, 30, 22, 30, 0, 0, time.UTC)
	if _, err := table.Append([]weather.CurrentObservation{obs("A", at, weather.Float(5))}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := table.Load("2024-05-01")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected row to match local date, got %d rows", len(rows))
	}
}

func TestCorruptFileFailsLoudly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "current.xlsx")
	if err := os.WriteFile(path, []byte("definitely not a workbook"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	table := New(time.UTC).Current(path)

	if _, err := table.Load(""); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt from load, got %v", err)
	}

	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	if _, err := table.Append([]weather.CurrentObservation{obs("A", at, weather.Float(1))}); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt from append, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "definitely not a workbook" {
		t.Errorf("append overwrote an unreadable table")
	}
}

func TestForecastRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.xlsx")
	table := New(time.UTC).Forecast(path)

	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	f := weather.NewForecast("Яндекс.Погода", "Москва", at)
	f.Morning.TemperatureC = weather.Float(9)
	f.Day.TemperatureC = weather.Float(17)
	f.Day.Conditions = weather.Text("Ясно")
	f.Evening.WindSpeedKmh = weather.Float(14.4)
	f.Night.WindDirection = weather.Wind("Ю")
	f.Night.HumidityPct = weather.Int(88)
	f.Day.PressureMmHg = weather.Float(744)
	f.MaxUVIndex = weather.Int(5)

	if _, err := table.Append([]weather.ForecastObservation{f}); err != nil {
		t.Fatalf("append: %v", err)
	}
	rows, err := table.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got := rows[0]
	got.CollectedAt = at
	if !reflect.DeepEqual(got, f) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, f)
	}
}

func TestStoreSharesTablesByPath(t *testing.T) {
	dir := t.TempDir()
	s := New(time.UTC)
	a := s.Current(filepath.Join(dir, "current.xlsx"))
	b := s.Current(filepath.Join(dir, ".", "current.xlsx"))
	if a != b {
		t.Errorf("expected the same table for equivalent paths")
	}
	if s.Forecast(filepath.Join(dir, "forecast.xlsx")) == nil {
		t.Errorf("forecast table is nil")
	}
}
