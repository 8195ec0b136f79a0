package httpapi

import (
	"errors"
	"log"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-tracker/internal/config"
	"github.com/i474232898/weather-tracker/internal/cycle"
	"github.com/i474232898/weather-tracker/internal/store"
	"github.com/i474232898/weather-tracker/internal/tracking"
	"github.com/i474232898/weather-tracker/internal/weather"
)

var validate = newValidator()

// datePrefix accepts "2024", "2024-05" or "2024-05-01".
var datePrefix = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("dateprefix", func(fl validator.FieldLevel) bool {
		return datePrefix.MatchString(fl.Field().String())
	})
	return v
}

// Rescheduler changes the collection interval after a settings update.
type Rescheduler interface {
	Reschedule(interval time.Duration) error
}

// Deps are the collaborators the query layer reads from.
type Deps struct {
	Settings  *config.SettingsFile
	Store     *store.Store
	Cycle     *cycle.Cycle
	Scheduler Rescheduler
	// Now is the clock used for the tracking status (nil = time.Now).
	Now func() time.Time
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	h := &handlers{Deps: deps}
	if h.Now == nil {
		h.Now = time.Now
	}

	v1 := app.Group("/api/v1")
	v1.Get("/weather/current", h.current)
	v1.Get("/weather/forecast", h.forecast)
	v1.Get("/weather/series", h.series)
	v1.Get("/tracking-status", h.trackingStatus)
	v1.Get("/cycle/status", h.cycleStatus)
	v1.Get("/settings", h.getSettings)
	v1.Put("/settings", h.putSettings)

	app.Get("/download/current", h.downloadCurrent)
	app.Get("/download/forecast", h.downloadForecast)
}

type handlers struct {
	Deps
}

// dateQuery holds the optional date filter of the history endpoints.
type dateQuery struct {
	Date string `validate:"omitempty,dateprefix"`
}

func parseDateQuery(c *fiber.Ctx) (string, error) {
	q := dateQuery{Date: c.Query("date")}
	if err := validate.Struct(q); err != nil {
		return "", errors.New("date must look like YYYY, YYYY-MM or YYYY-MM-DD")
	}
	return q.Date, nil
}

func (h *handlers) settings() (config.Settings, error) {
	s, err := h.Settings.Load()
	if err != nil {
		log.Printf("ERROR: load settings: %v", err)
		return config.Settings{}, fiber.NewError(fiber.StatusInternalServerError, "settings are unavailable")
	}
	return s, nil
}

func loadError(err error) error {
	log.Printf("ERROR: load history: %v", err)
	if errors.Is(err, store.ErrCorrupt) {
		return fiber.NewError(fiber.StatusInternalServerError, "history table is unreadable")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to load weather history")
}

func (h *handlers) current(c *fiber.Ctx) error {
	date, err := parseDateQuery(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s, err := h.settings()
	if err != nil {
		return err
	}

	rows, err := h.Store.Current(s.CurrentTablePath).Load(date)
	if err != nil {
		return loadError(err)
	}
	return c.JSON(fiber.Map{
		"date": date,
		"rows": weather.NewestFirstCurrent(rows),
	})
}

func (h *handlers) forecast(c *fiber.Ctx) error {
	date, err := parseDateQuery(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s, err := h.settings()
	if err != nil {
		return err
	}

	rows, err := h.Store.Forecast(s.ForecastTablePath).Load(date)
	if err != nil {
		return loadError(err)
	}
	return c.JSON(fiber.Map{
		"date": date,
		"rows": weather.NewestFirstForecast(rows),
	})
}

func (h *handlers) series(c *fiber.Ctx) error {
	date, err := parseDateQuery(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s, err := h.settings()
	if err != nil {
		return err
	}

	rows, err := h.Store.Current(s.CurrentTablePath).Load(date)
	if err != nil {
		return loadError(err)
	}
	series := weather.TemperatureSeries(rows, h.Store.Location())
	if series == nil {
		series = []weather.Series{}
	}
	return c.JSON(fiber.Map{
		"date":   date,
		"series": series,
	})
}

func (h *handlers) trackingStatus(c *fiber.Ctx) error {
	s, err := h.settings()
	if err != nil {
		return err
	}
	st := tracking.Evaluate(s.TrackingStart, h.Now().In(h.Store.Location()))
	if st.Err != nil {
		log.Printf("tracking: %v", st.Err)
	}
	return c.JSON(fiber.Map{
		"city":          s.City,
		"trackingStart": s.TrackingStart,
		"active":        st.Active,
		"reason":        st.Reason,
	})
}

func (h *handlers) cycleStatus(c *fiber.Ctx) error {
	resp := fiber.Map{"running": h.Cycle.Running()}
	if rep, ok := h.Cycle.LastReport(); ok {
		resp["last"] = rep
	}
	return c.JSON(resp)
}

func (h *handlers) getSettings(c *fiber.Ctx) error {
	s, err := h.settings()
	if err != nil {
		return err
	}
	return c.JSON(s)
}

func (h *handlers) putSettings(c *fiber.Ctx) error {
	var req config.Settings
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid settings body")
	}

	saved, err := h.Settings.Save(req)
	if err != nil {
		if errors.Is(err, config.ErrInvalidSettings) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		log.Printf("ERROR: save settings: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to save settings")
	}

	if h.Scheduler != nil {
		if err := h.Scheduler.Reschedule(saved.Interval()); err != nil {
			log.Printf("ERROR: reschedule: %v", err)
			return fiber.NewError(fiber.StatusInternalServerError, "settings saved but scheduler could not be updated")
		}
	}
	log.Printf("INFO: settings updated: city=%s tracking_start=%q interval=%ds",
		saved.City, saved.TrackingStart, saved.IntervalSeconds)
	return c.JSON(saved)
}

func (h *handlers) downloadCurrent(c *fiber.Ctx) error {
	s, err := h.settings()
	if err != nil {
		return err
	}
	t := h.Store.Current(s.CurrentTablePath)
	return download(c, t.Path(), t.Exists())
}

func (h *handlers) downloadForecast(c *fiber.Ctx) error {
	s, err := h.settings()
	if err != nil {
		return err
	}
	t := h.Store.Forecast(s.ForecastTablePath)
	return download(c, t.Path(), t.Exists())
}

func download(c *fiber.Ctx, path string, exists bool) error {
	if !exists {
		return fiber.NewError(fiber.StatusNotFound, "no data has been collected yet")
	}
	return c.Download(path, filepath.Base(path))
}
