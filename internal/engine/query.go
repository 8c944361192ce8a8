package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"modeladmin/internal/config"
	"modeladmin/internal/form"
	"modeladmin/internal/metadata"
	"modeladmin/internal/store"
)

// ListPlan is a parsed listing request.
type ListPlan struct {
	Page    int
	PerPage int
	Sort    []store.SortField
}

// Query converts the plan into a store listing query.
func (p *ListPlan) Query() store.ListQuery {
	return store.ListQuery{
		Sort:   p.Sort,
		Limit:  p.PerPage,
		Offset: (p.Page - 1) * p.PerPage,
	}
}

// ParseQueryParams reads page, per_page and sort from the request.
// sort=-created_at,customer sorts descending on created_at, then on the
// customer foreign key. Only orderable columns may be sorted on.
func ParseQueryParams(c *fiber.Ctx, m *metadata.Model, cfg config.ListConfig) (*ListPlan, error) {
	plan := &ListPlan{Page: 1, PerPage: cfg.PerPage}
	if plan.PerPage <= 0 {
		plan.PerPage = 25
	}

	if sortParam := c.Query("sort"); sortParam != "" {
		for _, part := range strings.Split(sortParam, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			desc := strings.HasPrefix(part, "-")
			name := strings.TrimPrefix(part, "-")

			column, err := sortColumn(m, name)
			if err != nil {
				return nil, err
			}
			plan.Sort = append(plan.Sort, store.SortField{Column: column, Desc: desc})
		}
	}

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			plan.Page = v
		}
	}
	if pp := c.Query("per_page"); pp != "" {
		if v, err := strconv.Atoi(pp); err == nil && v > 0 {
			plan.PerPage = v
		}
	}
	if cfg.MaxPerPage > 0 && plan.PerPage > cfg.MaxPerPage {
		plan.PerPage = cfg.MaxPerPage
	}

	return plan, nil
}

// sortColumn maps a public field name to the column it is ordered by.
func sortColumn(m *metadata.Model, name string) (string, error) {
	if _, ok := m.Field(name); !ok {
		return "", &AppError{
			Code:    "UNKNOWN_FIELD",
			Status:  400,
			Message: fmt.Sprintf("Unknown sort field: %s", name),
		}
	}
	if !form.Orderable(m, name) {
		return "", &AppError{
			Code:    "UNSORTABLE_FIELD",
			Status:  400,
			Message: fmt.Sprintf("Field %s cannot be sorted on", name),
		}
	}
	if rel := m.Relation(name); rel != nil {
		return rel.ForeignKeyColumn(), nil
	}
	return name, nil
}

// ParseExpand reads the expand query parameter. "repr" renders relations as
// RelationPacks; empty keeps plain ids.
func ParseExpand(c *fiber.Ctx) (bool, error) {
	switch v := c.Query("expand"); v {
	case "":
		return false, nil
	case "repr":
		return true, nil
	default:
		return false, NewAppError("UNKNOWN_EXPAND", 400, fmt.Sprintf("Unknown expand value: %s", v))
	}
}
