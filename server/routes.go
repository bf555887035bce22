package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/meikuraledutech/rbd"
	"github.com/meikuraledutech/rbd/metrics"
)

var validate = validator.New()

type nodeRequest struct {
	Name string `json:"name" validate:"required"`
}

type componentRequest struct {
	Name               string   `json:"name" validate:"required"`
	FailureProbability *float64 `json:"failure_probability" validate:"required,gte=0,lte=1"`
}

type probabilityRequest struct {
	FailureProbability *float64 `json:"failure_probability" validate:"required,gte=0,lte=1"`
}

type connectionRequest struct {
	ID        string `json:"id"`
	From      string `json:"from" validate:"required"`
	To        string `json:"to" validate:"required"`
	Component string `json:"component" validate:"required"`
}

// newApp wires the HTTP routes over store. analyzer supplies the default
// analysis settings; registry collects request and analysis metrics.
func newApp(store rbd.Store, analyzer *rbd.Analyzer, registry *metrics.Registry, logger *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "rbd",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var ferr *fiber.Error
			if errors.As(err, &ferr) {
				code = ferr.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(requestMetrics(registry, logger))
	app.Get("/metrics", adaptor.HTTPHandler(registry.Handler()))

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := store.CreateSchema(c.Context()); err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := store.DropSchema(c.Context()); err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Diagrams (bulk) ───────────────────────────────────────────────
	app.Get("/diagrams", func(c fiber.Ctx) error {
		ids, err := store.ListDiagrams(c.Context())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"diagrams": ids})
	})

	app.Post("/diagrams", func(c fiber.Ctx) error {
		var d rbd.Diagram
		if err := c.Bind().JSON(&d); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid body")
		}
		saved, err := store.SaveDiagram(c.Context(), &d)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(201).JSON(saved)
	})

	app.Put("/diagrams/:id", func(c fiber.Ctx) error {
		var d rbd.Diagram
		if err := c.Bind().JSON(&d); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid body")
		}
		d.ID = c.Params("id")
		saved, err := store.SaveDiagram(c.Context(), &d)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(saved)
	})

	app.Get("/diagrams/:id", func(c fiber.Ctx) error {
		d, err := store.GetDiagram(c.Context(), c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		if d == nil {
			return c.Status(404).JSON(fiber.Map{"error": "diagram not found"})
		}
		return c.JSON(d)
	})

	app.Delete("/diagrams/:id", func(c fiber.Ctx) error {
		if err := store.DeleteDiagram(c.Context(), c.Params("id")); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(204)
	})

	// ── Nodes ─────────────────────────────────────────────────────────
	app.Post("/diagrams/:id/nodes", func(c fiber.Ctx) error {
		var req nodeRequest
		if err := bindValid(c, &req); err != nil {
			return err
		}
		if err := store.AddNode(c.Context(), c.Params("id"), &rbd.Node{Name: req.Name}); err != nil {
			return writeError(c, err)
		}
		return c.Status(201).JSON(fiber.Map{"name": req.Name})
	})

	app.Delete("/diagrams/:id/nodes/:name", func(c fiber.Ctx) error {
		if err := store.DeleteNode(c.Context(), c.Params("id"), c.Params("name")); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(204)
	})

	// ── Components ────────────────────────────────────────────────────
	app.Post("/diagrams/:id/components", func(c fiber.Ctx) error {
		var req componentRequest
		if err := bindValid(c, &req); err != nil {
			return err
		}
		comp := &rbd.Component{Name: req.Name, FailureProbability: *req.FailureProbability}
		if err := store.AddComponent(c.Context(), c.Params("id"), comp); err != nil {
			return writeError(c, err)
		}
		return c.Status(201).JSON(comp)
	})

	app.Put("/diagrams/:id/components/:name", func(c fiber.Ctx) error {
		var req probabilityRequest
		if err := bindValid(c, &req); err != nil {
			return err
		}
		comp := &rbd.Component{Name: c.Params("name"), FailureProbability: *req.FailureProbability}
		if err := store.UpdateComponent(c.Context(), c.Params("id"), comp); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(204)
	})

	app.Delete("/diagrams/:id/components/:name", func(c fiber.Ctx) error {
		if err := store.DeleteComponent(c.Context(), c.Params("id"), c.Params("name")); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(204)
	})

	// ── Connections ───────────────────────────────────────────────────
	app.Post("/diagrams/:id/connections", func(c fiber.Ctx) error {
		var req connectionRequest
		if err := bindValid(c, &req); err != nil {
			return err
		}
		id, err := store.AddConnection(c.Context(), c.Params("id"), &rbd.Connection{
			ID:        req.ID,
			From:      req.From,
			To:        req.To,
			Component: req.Component,
		})
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(201).JSON(fiber.Map{"id": id})
	})

	app.Delete("/diagrams/:id/connections/:cid", func(c fiber.Ctx) error {
		if err := store.DeleteConnection(c.Context(), c.Params("id"), c.Params("cid")); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(204)
	})

	// ── Analysis ──────────────────────────────────────────────────────
	analyze := func(c fiber.Ctx) (*rbd.Result, error) {
		a := analyzer
		if mode := c.Query("mode"); mode != "" {
			m, err := rbd.ParseMode(mode)
			if err != nil {
				return nil, err
			}
			a = analyzer.With(rbd.WithMode(m))
		}
		d, err := store.GetDiagram(c.Context(), c.Params("id"))
		if err != nil {
			return nil, err
		}
		if d == nil {
			return nil, rbd.ErrDiagramNotFound
		}
		return a.Analyze(c.Context(), d)
	}

	app.Post("/diagrams/:id/analysis", func(c fiber.Ctx) error {
		res, err := analyze(c)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(res)
	})

	app.Get("/diagrams/:id/expression", func(c fiber.Ctx) error {
		res, err := analyze(c)
		if err != nil {
			return writeError(c, err)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(rbd.FormatExpression(res.CutSets))
	})

	app.Get("/diagrams/:id/report", func(c fiber.Ctx) error {
		res, err := analyze(c)
		if err != nil {
			return writeError(c, err)
		}
		var b strings.Builder
		if err := rbd.WriteReport(&b, res); err != nil {
			return writeError(c, err)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(b.String())
	})

	return app
}

// bindValid decodes the JSON body into req and validates it. The returned
// error is a 400 *fiber.Error for the error handler to render.
func bindValid(c fiber.Ctx, req any) error {
	if err := c.Bind().JSON(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// writeError maps domain error kinds to HTTP status codes.
func writeError(c fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rbd.ErrDiagramNotFound),
		errors.Is(err, rbd.ErrNodeNotFound),
		errors.Is(err, rbd.ErrComponentNotFound),
		errors.Is(err, rbd.ErrConnectionNotFound):
		return 404
	case errors.Is(err, rbd.ErrDuplicateNode),
		errors.Is(err, rbd.ErrDuplicateComponent),
		errors.Is(err, rbd.ErrConnectionExists),
		errors.Is(err, rbd.ErrComponentInUse):
		return 409
	case errors.Is(err, rbd.ErrMissingTerminalNode),
		errors.Is(err, rbd.ErrNoPathFound),
		errors.Is(err, rbd.ErrUnknownComponent),
		errors.Is(err, rbd.ErrInvalidProbability),
		errors.Is(err, rbd.ErrSystemTooLarge),
		errors.Is(err, rbd.ErrUnknownMode),
		errors.Is(err, rbd.ErrInvalidDiagram),
		errors.Is(err, rbd.ErrProtectedNode),
		errors.Is(err, rbd.ErrSelfLoop):
		return 422
	case errors.Is(err, context.DeadlineExceeded):
		return 504
	default:
		return 500
	}
}

// requestMetrics counts every request by method, route pattern and status
// and logs it at debug level.
func requestMetrics(registry *metrics.Registry, logger *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			status = ferr.Code
		}
		route := c.Route().Path
		elapsed := time.Since(start)

		registry.RecordHTTPRequest(c.Method(), route, strconv.Itoa(status), elapsed)
		logger.Debug("http request",
			slog.String("method", c.Method()),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("duration", elapsed),
		)
		return err
	}
}
