package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/gofiber/fiber/v2"

	"modeladmin/internal/engine"
	"modeladmin/internal/form"
	"modeladmin/internal/logger"
	"modeladmin/internal/metadata"
)

// DefinitionStore persists entity and relation definitions.
type DefinitionStore interface {
	SaveDefinitions(ctx context.Context, entities []*metadata.Entity, relations []*metadata.Relation) error
}

// SchemaMigrator creates the tables a registry needs.
type SchemaMigrator interface {
	MigrateAll(ctx context.Context, reg *metadata.Registry) error
}

type Handler struct {
	engine   *engine.Engine
	defs     DefinitionStore
	migrator SchemaMigrator
	log      *logger.Logger
}

func NewHandler(e *engine.Engine, defs DefinitionStore, mig SchemaMigrator, log *logger.Logger) *Handler {
	return &Handler{engine: e, defs: defs, migrator: mig, log: log}
}

// RegisterMetaRoutes mounts the read-only metadata endpoints. They must be
// registered before the dynamic /api/:entity routes.
func RegisterMetaRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	meta := app.Group("/api/_meta", middleware...)

	meta.Get("/entities", h.ListEntities)
	meta.Get("/:entity/form", h.Form)
	meta.Get("/:entity/columns", h.Columns)
}

// RegisterAdminRoutes mounts the definition management endpoints.
func RegisterAdminRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	admin := app.Group("/api/_admin", middleware...)

	admin.Get("/definitions", h.GetDefinitions)
	admin.Put("/definitions", h.PutDefinitions)
}

type fieldSummary struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Required    bool   `json:"required"`
	Generated   bool   `json:"generated,omitempty"`
	Cardinality string `json:"cardinality,omitempty"`
	Target      string `json:"target,omitempty"`
}

type entitySummary struct {
	Name       string         `json:"name"`
	PrimaryKey string         `json:"primary_key"`
	Icon       string         `json:"icon,omitempty"`
	Order      int            `json:"order"`
	Hidden     bool           `json:"hidden"`
	Fields     []fieldSummary `json:"fields"`
}

// ListEntities handles GET /api/_meta/entities. Entities are sorted by their
// menu order, ties keeping load order.
func (h *Handler) ListEntities(c *fiber.Ctx) error {
	intro := h.engine.Introspector()
	entities := intro.Registry().AllEntities()
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Position < entities[j].Position
	})

	out := make([]entitySummary, 0, len(entities))
	for _, e := range entities {
		m, err := intro.Model(e.Name)
		if err != nil {
			return err
		}
		summary := entitySummary{
			Name:       e.Name,
			PrimaryKey: m.PrimaryKey,
			Icon:       e.Icon,
			Order:      e.Position,
			Hidden:     e.Hidden,
		}
		for _, f := range m.Fields {
			fs := fieldSummary{Name: f.Name, Kind: f.Kind.String(), Required: f.Required(), Generated: f.Generated}
			if f.Relation != nil {
				fs.Cardinality = f.Relation.Cardinality().String()
				fs.Target = f.Relation.Target
			}
			summary.Fields = append(summary.Fields, fs)
		}
		out = append(out, summary)
	}
	return c.JSON(fiber.Map{"data": out})
}

// Form handles GET /api/_meta/:entity/form
func (h *Handler) Form(c *fiber.Ctx) error {
	name := c.Params("entity")
	m, descriptors, err := h.engine.Describe(c.Context(), name)
	if err != nil {
		return metaError(name, err)
	}

	order := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		order[i] = f.Name
	}
	return c.JSON(fiber.Map{"data": descriptors, "order": order})
}

// Columns handles GET /api/_meta/:entity/columns
func (h *Handler) Columns(c *fiber.Ctx) error {
	name := c.Params("entity")
	m, err := h.engine.Introspector().Model(name)
	if err != nil {
		return metaError(name, err)
	}
	return c.JSON(fiber.Map{"data": form.DescribeColumns(m)})
}

// GetDefinitions handles GET /api/_admin/definitions
func (h *Handler) GetDefinitions(c *fiber.Ctx) error {
	reg := h.engine.Introspector().Registry()
	entities, relations := reg.AllEntities(), reg.AllRelations()
	if relations == nil {
		relations = []*metadata.Relation{}
	}
	return c.JSON(fiber.Map{"data": metadata.Definitions{Entities: entities, Relations: relations}})
}

// PutDefinitions handles PUT /api/_admin/definitions. The definitions are
// validated, persisted, loaded into the registry and any missing tables are
// created.
func (h *Handler) PutDefinitions(c *fiber.Ctx) error {
	var defs metadata.Definitions
	if err := c.BodyParser(&defs); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}

	if err := metadata.Validate(defs.Entities, defs.Relations); err != nil {
		return engine.ValidationError([]engine.ErrorDetail{{Rule: "definition", Message: err.Error()}})
	}

	ctx := c.Context()
	if err := h.defs.SaveDefinitions(ctx, defs.Entities, defs.Relations); err != nil {
		return fmt.Errorf("save definitions: %w", err)
	}

	reg := h.engine.Introspector().Registry()
	reg.Load(defs.Entities, defs.Relations)
	if err := h.migrator.MigrateAll(ctx, reg); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	h.log.Info("definitions replaced", "entities", len(defs.Entities), "relations", len(defs.Relations))
	return c.JSON(fiber.Map{"data": fiber.Map{"entities": len(defs.Entities), "relations": len(defs.Relations)}})
}

func metaError(name string, err error) error {
	switch {
	case errors.Is(err, metadata.ErrUnknownEntity):
		return engine.UnknownEntityError(name)
	case errors.Is(err, form.ErrUnclassifiableField):
		return &engine.AppError{Code: "UNCLASSIFIABLE_FIELD", Status: 422, Message: err.Error()}
	case errors.Is(err, form.ErrOptionsNotLoaded):
		return &engine.AppError{Code: "OPTIONS_NOT_LOADED", Status: 500, Message: err.Error()}
	}
	return err
}
