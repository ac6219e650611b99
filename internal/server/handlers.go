// Package server exposes the stored academic data over HTTP.
package server

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/godilite/academic-insights/internal/repository/models"
)

const statsCacheTTL = 5 * time.Minute

// Handlers serves the read API. The cache is optional; without it every
// request goes straight to the store.
type Handlers struct {
	store  Store
	cache  Cacher
	logger *zap.Logger
	sf     singleflight.Group
}

func NewHandlers(store Store, cache Cacher, logger *zap.Logger) *Handlers {
	if store == nil {
		panic("store must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Register mounts every route on the app.
func (h *Handlers) Register(app *fiber.App) {
	app.Get("/", h.Root)
	app.Get("/health", h.Health)

	v1 := app.Group("/api/v1")
	v1.Get("/subjects", h.GetSubjects)
	v1.Get("/subjects/:code", h.GetSubject)
	v1.Get("/subjects/:code/historical", h.GetSubjectHistorical)
	v1.Get("/faculty/changes", h.GetFacultyChanges)
	v1.Get("/evaluation/changes", h.GetEvaluationChanges)
	v1.Get("/correlations", h.GetCorrelations)
	v1.Get("/significance", h.GetSignificanceResults)
	v1.Get("/trends", h.GetTrendResults)
	v1.Get("/stats", h.GetStats)
	v1.Get("/search", h.SearchSubjects)
}

func (h *Handlers) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":    "Academic Insights API",
		"version": "1.0.0",
		"endpoints": fiber.Map{
			"subjects": "/api/v1/subjects",
			"stats":    "/api/v1/stats",
			"health":   "/health",
		},
	})
}

func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"database": "connected",
	})
}

func (h *Handlers) GetSubjects(c *fiber.Ctx) error {
	subjects, err := h.store.GetSubjects(c.Context(), c.Query("academic_year"), c.Query("semester"))
	if err != nil {
		return h.internalError(c, "list subjects", err)
	}
	return c.JSON(emptyIfNil(subjects))
}

func (h *Handlers) GetSubject(c *fiber.Ctx) error {
	code := c.Params("code")

	subject, err := h.store.GetSubject(c.Context(), code, c.Query("academic_year"))
	if errors.Is(err, sql.ErrNoRows) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "subject with code " + code + " not found",
		})
	}
	if err != nil {
		return h.internalError(c, "get subject", err)
	}
	return c.JSON(subject)
}

func (h *Handlers) GetSubjectHistorical(c *fiber.Ctx) error {
	rates, err := h.store.GetHistoricalRates(c.Context(), c.Params("code"), c.Query("rate_type"))
	if err != nil {
		return h.internalError(c, "get historical rates", err)
	}
	return c.JSON(emptyIfNil(rates))
}

func (h *Handlers) GetFacultyChanges(c *fiber.Ctx) error {
	changes, err := h.store.GetFacultyChanges(c.Context(), c.Query("subject_code"))
	if err != nil {
		return h.internalError(c, "get faculty changes", err)
	}
	return c.JSON(emptyIfNil(changes))
}

func (h *Handlers) GetEvaluationChanges(c *fiber.Ctx) error {
	changes, err := h.store.GetEvaluationChanges(c.Context(), c.Query("subject_code"))
	if err != nil {
		return h.internalError(c, "get evaluation changes", err)
	}
	return c.JSON(emptyIfNil(changes))
}

func (h *Handlers) GetCorrelations(c *fiber.Ctx) error {
	rows, err := h.store.GetCorrelations(c.Context(), c.Query("subject_code"))
	if err != nil {
		return h.internalError(c, "get correlations", err)
	}
	return c.JSON(emptyIfNil(rows))
}

func (h *Handlers) GetSignificanceResults(c *fiber.Ctx) error {
	results, err := h.store.GetSignificanceResults(c.Context(), c.Query("subject_code"))
	if err != nil {
		return h.internalError(c, "get significance results", err)
	}
	return c.JSON(emptyIfNil(results))
}

func (h *Handlers) GetTrendResults(c *fiber.Ctx) error {
	results, err := h.store.GetTrendResults(c.Context(), c.Query("subject_code"))
	if err != nil {
		return h.internalError(c, "get trend results", err)
	}
	return c.JSON(emptyIfNil(results))
}

func (h *Handlers) GetStats(c *fiber.Ctx) error {
	if h.cache == nil {
		stats, err := h.store.GetStats(c.Context())
		if err != nil {
			return h.internalError(c, "get stats", err)
		}
		return c.JSON(stats)
	}

	stats, err := findAndCache(c.Context(), h.cache, &h.sf, "stats", statsCacheTTL, h.logger,
		func(ctx context.Context) (models.StatsSummary, error) {
			return h.store.GetStats(ctx)
		})
	if err != nil {
		return h.internalError(c, "get stats", err)
	}
	return c.JSON(stats)
}

func (h *Handlers) SearchSubjects(c *fiber.Ctx) error {
	term := c.Query("q")
	if term == "" {
		return c.JSON([]models.Subject{})
	}

	subjects, err := h.store.SearchSubjects(c.Context(), term)
	if err != nil {
		return h.internalError(c, "search subjects", err)
	}
	return c.JSON(emptyIfNil(subjects))
}

func (h *Handlers) internalError(c *fiber.Ctx, op string, err error) error {
	h.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

// emptyIfNil keeps empty collections serializing as [] instead of null.
func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
