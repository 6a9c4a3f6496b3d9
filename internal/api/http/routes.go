package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/ims-weather/internal/aggregate"
	"github.com/i474232898/ims-weather/internal/forecast"
	"github.com/i474232898/ims-weather/internal/season"
	"github.com/i474232898/ims-weather/internal/store"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// cycle: a "YYYY-YYYY" label of two consecutive years
	_ = v.RegisterValidation("cycle", func(fl validator.FieldLevel) bool {
		_, _, err := season.Parse(fl.Field().String())
		return err == nil
	})
	return v
}

// Summaries is the read side served over HTTP.
type Summaries interface {
	RegionalRain(region, winter string) ([]aggregate.RainMonth, error)
	RegionalTemp(kind aggregate.TempKind, region, cycle string) ([]aggregate.TempMonth, error)
	StationMonthly(station, measure string) ([]aggregate.StationMonth, error)
	Comparison(location string) ([]forecast.Comparison, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, summaries Summaries) {
	v1 := app.Group("/api/v1")

	v1.Get("/regional/rain", func(c *fiber.Ctx) error {
		q := rainQuery{Region: c.Query("region"), Winter: c.Query("winter")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		rows, err := summaries.RegionalRain(q.Region, q.Winter)
		if err != nil {
			return lookupError(err, "no regional rain for query")
		}
		return c.JSON(fiber.Map{"region": q.Region, "winter": q.Winter, "months": rows})
	})

	v1.Get("/regional/temp/:kind", func(c *fiber.Ctx) error {
		q := tempQuery{Kind: c.Params("kind"), Region: c.Query("region"), Cycle: c.Query("cycle")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		rows, err := summaries.RegionalTemp(aggregate.TempKind(q.Kind), q.Region, q.Cycle)
		if err != nil {
			return lookupError(err, "no regional temperature for query")
		}
		return c.JSON(fiber.Map{"kind": q.Kind, "region": q.Region, "cycle": q.Cycle, "months": rows})
	})

	v1.Get("/stations/:name/monthly", func(c *fiber.Ctx) error {
		q := monthlyQuery{Station: c.Params("name"), Measure: c.Query("measure")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		rows, err := summaries.StationMonthly(q.Station, q.Measure)
		if err != nil {
			return lookupError(err, "no monthly data for station")
		}
		return c.JSON(fiber.Map{"station": q.Station, "measure": q.Measure, "months": rows})
	})

	v1.Get("/forecast/comparison", func(c *fiber.Ctx) error {
		location := c.Query("location")
		rows, err := summaries.Comparison(location)
		if err != nil {
			return lookupError(err, "no forecast comparison for location")
		}
		return c.JSON(fiber.Map{"location": location, "days": rows})
	})
}

func lookupError(err error, notFound string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, notFound)
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to read summaries")
}

type rainQuery struct {
	Region string
	Winter string `validate:"omitempty,cycle"`
}

type tempQuery struct {
	Kind   string `validate:"required,oneof=min max"`
	Region string
	Cycle  string `validate:"omitempty,cycle"`
}

type monthlyQuery struct {
	Station string `validate:"required"`
	Measure string `validate:"omitempty,oneof=Rain MinTemp MaxTemp"`
}
