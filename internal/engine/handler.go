package engine

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"modeladmin/internal/config"
	"modeladmin/internal/logger"
	"modeladmin/internal/metadata"
	"modeladmin/internal/store"
)

type Handler struct {
	engine *Engine
	store  store.Store
	list   config.ListConfig
}

func NewHandler(e *Engine, s store.Store, list config.ListConfig) *Handler {
	return &Handler{engine: e, store: s, list: list}
}

// List handles GET /api/:entity
func (h *Handler) List(c *fiber.Ctx) error {
	m, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	plan, err := ParseQueryParams(c, m, h.list)
	if err != nil {
		return err
	}
	expand, err := ParseExpand(c)
	if err != nil {
		return err
	}

	rows, total, err := h.store.List(c.Context(), m.Entity, plan.Query())
	if err != nil {
		return fmt.Errorf("list %s: %w", m.Entity.Name, err)
	}

	reg := h.engine.Introspector().Registry()
	packs := h.engine.newPacker(h.store)
	for i, row := range rows {
		if rows[i], err = Materialize(c.Context(), h.store, reg, m, row); err != nil {
			return err
		}
		if expand {
			if rows[i], err = packs.expand(c.Context(), m, rows[i]); err != nil {
				return err
			}
		}
	}

	// Ensure non-nil slice for JSON
	if rows == nil {
		rows = []store.Record{}
	}

	return c.JSON(fiber.Map{
		"data": rows,
		"meta": fiber.Map{
			"page":     plan.Page,
			"per_page": plan.PerPage,
			"total":    total,
		},
	})
}

// GetByID handles GET /api/:entity/:id
func (h *Handler) GetByID(c *fiber.Ctx) error {
	m, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	expand, err := ParseExpand(c)
	if err != nil {
		return err
	}

	id := c.Params("id")
	key, ok := coerceKey(m.Entity, id)
	if !ok {
		return respondError(c, NotFoundError(m.Entity.Name, id))
	}

	row, err := h.store.Get(c.Context(), m.Entity, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, NotFoundError(m.Entity.Name, id))
		}
		return fmt.Errorf("get %s/%s: %w", m.Entity.Name, id, err)
	}

	row, err = Materialize(c.Context(), h.store, h.engine.Introspector().Registry(), m, row)
	if err != nil {
		return err
	}
	return h.respondRecord(c, m, row, expand, fiber.StatusOK)
}

// Create handles POST /api/:entity
func (h *Handler) Create(c *fiber.Ctx) error {
	m, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	expand, err := ParseExpand(c)
	if err != nil {
		return err
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	record, err := h.engine.Upsert(c.Context(), m.Entity.Name, body, nil)
	if err != nil {
		return handleWriteError(c, m.Entity.Name, "", err)
	}

	return h.respondRecord(c, m, record, expand, fiber.StatusCreated)
}

// Update handles PUT /api/:entity/:id
func (h *Handler) Update(c *fiber.Ctx) error {
	m, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	expand, err := ParseExpand(c)
	if err != nil {
		return err
	}

	id := c.Params("id")

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	record, err := h.engine.Upsert(c.Context(), m.Entity.Name, body, id)
	if err != nil {
		return handleWriteError(c, m.Entity.Name, id, err)
	}

	return h.respondRecord(c, m, record, expand, fiber.StatusOK)
}

func (h *Handler) respondRecord(c *fiber.Ctx, m *metadata.Model, rec store.Record, expand bool, status int) error {
	if expand {
		var err error
		if rec, err = h.engine.Expand(c.Context(), m, rec); err != nil {
			return err
		}
	}
	return c.Status(status).JSON(fiber.Map{"data": rec})
}

func (h *Handler) resolveEntity(c *fiber.Ctx) (*metadata.Model, error) {
	name := c.Params("entity")
	m, err := h.engine.Introspector().Model(name)
	if err != nil {
		if errors.Is(err, metadata.ErrUnknownEntity) {
			return nil, respondError(c, UnknownEntityError(name))
		}
		return nil, err
	}
	return m, nil
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
}

// handleWriteError maps upsert failures onto API errors. Anything it does not
// recognise is passed on to the app's error handler.
func handleWriteError(c *fiber.Ctx, entity, id string, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respondError(c, appErr)
	}

	var relErr *RelationError
	if errors.As(err, &relErr) {
		return respondError(c, PartialUpsertError(entity, relErr))
	}

	switch {
	case errors.Is(err, ErrRelationTargetNotFound):
		return respondError(c, &AppError{
			Code:    "RELATION_TARGET_NOT_FOUND",
			Status:  422,
			Message: err.Error(),
		})
	case errors.Is(err, store.ErrNotFound):
		return respondError(c, NotFoundError(entity, id))
	case errors.Is(err, store.ErrConstraintViolation):
		msg := "A record with this value already exists"
		var cErr *store.ConstraintError
		if errors.As(err, &cErr) && cErr.Detail != "" {
			msg = cErr.Detail
		}
		return respondError(c, ConflictError(msg))
	}

	return err
}

// ErrorHandler renders errors returned from handlers. AppErrors keep their
// status and body; anything else is logged and reported as INTERNAL_ERROR.
func ErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return respondError(c, appErr)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{
				Error: &AppError{Code: "HTTP_ERROR", Message: fiberErr.Message},
			})
		}

		log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: &AppError{Code: "INTERNAL_ERROR", Message: "Internal server error"},
		})
	}
}
