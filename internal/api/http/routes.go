package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/frost-ingest/internal/ingest"
	"github.com/i474232898/frost-ingest/internal/store"
	"github.com/i474232898/frost-ingest/internal/weather"
)

var validate = validator.New()

// ObservationReader serves stored observations.
type ObservationReader interface {
	GetRange(stationID string, from, to time.Time) ([]weather.Observation, error)
	GetLatest(stationID string) (weather.Observation, error)
}

// Ingester runs an ingest request.
type Ingester interface {
	Run(ctx context.Context, req ingest.Request) (*ingest.Result, error)
}

// Deps are the collaborators the routes need.
type Deps struct {
	Catalog      *weather.Catalog
	Observations ObservationReader
	Ingester     Ingester
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/stations", func(c *fiber.Ctx) error {
		stations := deps.Catalog.Stations()
		if a := c.Query("area"); a != "" {
			area, err := weather.ParseArea(a)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			stations = deps.Catalog.ForAreas([]weather.Area{area})
		}
		return c.JSON(fiber.Map{
			"count":    len(stations),
			"stations": stations,
		})
	})

	v1.Get("/observations", func(c *fiber.Ctx) error {
		var q observationsQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		station, ok := deps.Catalog.ByID(q.Station)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "unknown station "+q.Station)
		}

		rows, err := deps.Observations.GetRange(station.ID, q.from, q.to)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no observations for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read observations")
		}

		return c.JSON(fiber.Map{
			"station":      station,
			"from":         q.From,
			"to":           q.To,
			"observations": rows,
		})
	})

	v1.Get("/observations/latest", func(c *fiber.Ctx) error {
		id := c.Query("station")
		if id == "" {
			return fiber.NewError(fiber.StatusBadRequest, "station is required")
		}
		station, ok := deps.Catalog.ByID(id)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "unknown station "+id)
		}
		obs, err := deps.Observations.GetLatest(station.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no observations for station")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read observations")
		}
		return c.JSON(fiber.Map{
			"station":     station,
			"observation": obs,
		})
	})

	v1.Post("/ingest", func(c *fiber.Ctx) error {
		var req ingest.Request
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		res, err := deps.Ingester.Run(c.UserContext(), req)
		if err != nil {
			var aggErr *weather.AggregateError
			switch {
			case errors.Is(err, weather.ErrInvalidInput):
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			case errors.As(err, &aggErr):
				return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
					"error":    true,
					"message":  "fetch failed",
					"failures": aggErr.Count(),
					"details":  aggErr.Message(),
				})
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(res)
	})
}

// observationsQuery holds query parameters for the observations endpoint.
type observationsQuery struct {
	Station string `validate:"required"`
	From    string `validate:"required,datetime=2006-01-02"`
	To      string `validate:"required,datetime=2006-01-02"`

	from, to time.Time
}

func (q *observationsQuery) bind(c *fiber.Ctx) error {
	q.Station = c.Query("station")
	q.From = c.Query("from")
	q.To = c.Query("to")
	if err := validate.Struct(q); err != nil {
		return err
	}

	var err error
	q.from, q.to, err = weather.ParseRange(q.From, q.To)
	return err
}
