package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSettingsSaveLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	f := NewSettingsFile(path)

	saved, err := f.Save(Settings{
		City:            "Казань",
		TrackingStart:   "2024-05-01T09:30",
		IntervalSeconds: 60,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.TrackingStart != "2024-05-01 09:30" {
		t.Errorf("tracking start not normalized: %q", saved.TrackingStart)
	}
	if saved.CurrentTablePath != DefaultCurrentTable || saved.ForecastTablePath != DefaultForecastTable {
		t.Errorf("default table paths not applied: %+v", saved)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"weather_current_database"`) {
		t.Errorf("unexpected settings file content: %s", data)
	}

	loaded, err := f.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != saved {
		t.Errorf("loaded %+v, want %+v", loaded, saved)
	}
	if loaded.Interval() != time.Minute {
		t.Errorf("interval = %v, want 1m", loaded.Interval())
	}
}

func TestSettingsSaveLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	f := NewSettingsFile(path)

	want := Settings{
		City:              "Самара",
		TrackingStart:     "2000-01-01 00:00",
		CurrentTablePath:  "cur.xlsx",
		ForecastTablePath: "fc.xlsx",
		IntervalSeconds:   30,
	}
	if _, err := f.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "server_interval: 30") {
		t.Errorf("expected YAML output, got: %s", data)
	}

	got, err := f.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Errorf("loaded %+v, want %+v", got, want)
	}
}

func TestSettingsValidation(t *testing.T) {
	tests := []struct {
		name string
		s    Settings
	}{
		{name: "missing city", s: Settings{IntervalSeconds: 10}},
		{name: "bad tracking start", s: Settings{City: "Москва", TrackingStart: "tomorrow"}},
		{name: "same table for both kinds", s: Settings{City: "Москва", CurrentTablePath: "a.xlsx", ForecastTablePath: "a.xlsx"}},
		{name: "negative interval", s: Settings{City: "Москва", IntervalSeconds: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewSettingsFile(filepath.Join(t.TempDir(), "settings.json"))
			_, err := f.Save(tt.s)
			if !errors.Is(err, ErrInvalidSettings) {
				t.Fatalf("expected ErrInvalidSettings, got %v", err)
			}
			if _, statErr := os.Stat(f.Path()); !errors.Is(statErr, os.ErrNotExist) {
				t.Errorf("invalid settings must not be written")
			}
		})
	}
}

func TestSettingsLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := NewSettingsFile(path).Load()
	if !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestSettingsLoadKeepsUnparsableTrackingStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	body := `{"city":"Москва","tracking_start":"not-a-date","weather_current_database":"c.xlsx","weather_forecast_database":"f.xlsx","server_interval":10}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := NewSettingsFile(path).Load()
	if err != nil {
		t.Fatalf("load must not reject a hand-edited tracking start: %v", err)
	}
	if s.TrackingStart != "not-a-date" {
		t.Fatalf("tracking start = %q", s.TrackingStart)
	}

	if _, err := NewSettingsFile(path).Save(s); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("save must still reject it, got %v", err)
	}
}

func TestEnsureExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	f := NewSettingsFile(path)

	if err := f.EnsureExists(DefaultSettings()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	s, err := f.Load()
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if s.IntervalSeconds != DefaultInterval {
		t.Errorf("interval = %d, want %d", s.IntervalSeconds, DefaultInterval)
	}

	s.City = "Тверь"
	if _, err := f.Save(s); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := f.EnsureExists(DefaultSettings()); err != nil {
		t.Fatalf("ensure existing: %v", err)
	}
	again, _ := f.Load()
	if again.City != "Тверь" {
		t.Errorf("EnsureExists overwrote existing settings")
	}
}

func TestLoadAppConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PROVIDERS", "gismeteo, accuweather,,")
	t.Setenv("PROVIDER_TIMEOUT", "5s")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %q", cfg.Port)
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0] != "gismeteo" || cfg.Providers[1] != "accuweather" {
		t.Errorf("providers = %v", cfg.Providers)
	}
	if cfg.ProviderTimeout != 5*time.Second {
		t.Errorf("provider timeout = %v", cfg.ProviderTimeout)
	}
	if cfg.Location != time.UTC {
		t.Errorf("location = %v", cfg.Location)
	}

	t.Setenv("HTTP_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Errorf("expected error for malformed HTTP_TIMEOUT")
	}
}
