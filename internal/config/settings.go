package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-tracker/internal/tracking"
)

const (
	DefaultCurrentTable  = "weather_report_current.xlsx"
	DefaultForecastTable = "weather_report_forecast.xlsx"
	DefaultInterval      = 10
)

// ErrInvalidSettings wraps every settings validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the user-editable snapshot read at the start of every cycle.
type Settings struct {
	City              string `json:"city" yaml:"city" validate:"required"`
	TrackingStart     string `json:"tracking_start" yaml:"tracking_start" validate:"omitempty,trackstart"`
	CurrentTablePath  string `json:"weather_current_database" yaml:"weather_current_database" validate:"required"`
	ForecastTablePath string `json:"weather_forecast_database" yaml:"weather_forecast_database" validate:"required,nefield=CurrentTablePath"`
	IntervalSeconds   int    `json:"server_interval" yaml:"server_interval" validate:"gte=1,lte=86400"`
}

// DefaultSettings returns the settings written on first start.
func DefaultSettings() Settings {
	return Settings{
		City:              "Москва",
		CurrentTablePath:  DefaultCurrentTable,
		ForecastTablePath: DefaultForecastTable,
		IntervalSeconds:   DefaultInterval,
	}
}

// Interval is the cycle interval as a duration.
func (s Settings) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// Normalize trims fields, fills empty table paths and interval with defaults
// and rewrites a "YYYY-MM-DDTHH:MM" tracking start into "YYYY-MM-DD HH:MM".
func (s Settings) Normalize() Settings {
	s.City = strings.TrimSpace(s.City)
	s.TrackingStart = strings.Replace(strings.TrimSpace(s.TrackingStart), "T", " ", 1)
	s.CurrentTablePath = strings.TrimSpace(s.CurrentTablePath)
	s.ForecastTablePath = strings.TrimSpace(s.ForecastTablePath)
	if s.CurrentTablePath == "" {
		s.CurrentTablePath = DefaultCurrentTable
	}
	if s.ForecastTablePath == "" {
		s.ForecastTablePath = DefaultForecastTable
	}
	if s.IntervalSeconds == 0 {
		s.IntervalSeconds = DefaultInterval
	}
	return s
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("trackstart", func(fl validator.FieldLevel) bool {
		_, err := tracking.ParseStart(fl.Field().String(), time.UTC)
		return err == nil
	})
	return v
}

// Validate checks the settings; failures wrap ErrInvalidSettings.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

// validateStored is Validate without the tracking start check. A hand-edited
// start that does not parse is left for the tracking gate, which treats it as
// inactive.
func (s Settings) validateStored() error {
	if err := validate.StructExcept(s, "TrackingStart"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

// SettingsFile loads and saves Settings as JSON, or YAML for .yaml/.yml paths.
type SettingsFile struct {
	mu   sync.Mutex
	path string
}

// NewSettingsFile creates a SettingsFile bound to path.
func NewSettingsFile(path string) *SettingsFile {
	return &SettingsFile{path: path}
}

// Path returns the settings file path.
func (f *SettingsFile) Path() string {
	return f.path
}

func (f *SettingsFile) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(f.path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads and validates the current settings snapshot. The tracking start
// is returned as stored, even when it does not parse.
func (f *SettingsFile) Load() (Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings %s: %w", f.path, err)
	}

	var s Settings
	if f.isYAML() {
		err = yaml.Unmarshal(data, &s)
	} else {
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidSettings, f.path, err)
	}

	s = s.Normalize()
	if err := s.validateStored(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save normalizes, validates and atomically writes s. It returns what was saved.
func (f *SettingsFile) Save(s Settings) (Settings, error) {
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	var (
		data []byte
		err  error
	)
	if f.isYAML() {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return Settings{}, fmt.Errorf("encode settings: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return s, nil
}

// EnsureExists writes defaults when the settings file is missing.
func (f *SettingsFile) EnsureExists(defaults Settings) error {
	if _, err := os.Stat(f.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat settings: %w", err)
	}
	_, err := f.Save(defaults)
	return err
}
