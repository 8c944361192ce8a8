package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modeladmin/internal/config"
	"modeladmin/internal/engine"
	"modeladmin/internal/logger"
	"modeladmin/internal/metadata"
	"modeladmin/internal/store"
)

const definitionsYAML = `
entities:
  - name: customer
    table: customers
    primary_key: {field: id, type: int, generated: true}
    fields:
      - {name: id, type: int}
      - {name: name, type: string, required: true}
  - name: order
    table: orders
    primary_key: {field: id, type: int, generated: true}
    fields:
      - {name: id, type: int}
      - {name: notes, type: text}
      - {name: span, type: range, precision: 2}
      - {name: customer_id, type: int, nullable: true}
      - {name: created_at, type: timestamp, auto: create}
relations:
  - {name: customer, type: many_to_one, source: order, target: customer, nullable: true}
  - {name: orders, type: reverse_one_to_many, source: customer, target: order, foreign_key: customer_id}
`

func testApp(t *testing.T) (*fiber.App, *store.SQLStore, *metadata.Registry) {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx))

	defs, err := metadata.ParseDefinitions([]byte(definitionsYAML))
	require.NoError(t, err)
	reg := metadata.NewRegistry()
	reg.Load(defs.Entities, defs.Relations)

	mig := store.NewMigrator(s, logger.Nop())
	require.NoError(t, mig.MigrateAll(ctx, reg))

	e := engine.New(s, metadata.NewIntrospector(reg))
	h := NewHandler(e, s, mig, logger.Nop())

	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler(logger.Nop())})
	RegisterMetaRoutes(app, h)
	RegisterAdminRoutes(app, h)
	engine.RegisterDynamicRoutes(app, engine.NewHandler(e, s, config.ListConfig{PerPage: 10}))
	return app, s, reg
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestMeta_Entities(t *testing.T) {
	app, _, _ := testApp(t)

	status, body := doRequest(t, app, "GET", "/api/_meta/entities", nil)
	require.Equal(t, 200, status)
	data := body["data"].([]any)
	require.Len(t, data, 2)

	order := data[1].(map[string]any)
	assert.Equal(t, "order", order["name"])
	var names []string
	for _, f := range order["fields"].([]any) {
		names = append(names, f.(map[string]any)["name"].(string))
	}
	assert.Equal(t, []string{"id", "notes", "span", "created_at", "customer"}, names)
}

func TestMeta_Form(t *testing.T) {
	app, _, _ := testApp(t)

	status, _ := doRequest(t, app, "POST", "/api/customer", map[string]any{"name": "Ada"})
	require.Equal(t, 201, status)

	status, body := doRequest(t, app, "GET", "/api/_meta/order/form", nil)
	require.Equal(t, 200, status, body)
	inputs := body["data"].(map[string]any)

	notes := inputs["notes"].(map[string]any)
	assert.Equal(t, "multiline", notes["input"])
	assert.Equal(t, "2", notes["rows"])

	span := inputs["span"].(map[string]any)
	assert.Equal(t, "composite", span["input"])
	assert.Equal(t, "0.01", span["step"])
	assert.Equal(t, []any{"from", "to"}, span["labels"])

	created := inputs["created_at"].(map[string]any)
	assert.Equal(t, true, created["auto"])

	customer := inputs["customer"].(map[string]any)
	assert.Equal(t, "select", customer["input"])
	assert.Equal(t, "customer_id", customer["source_field"])
	assert.Equal(t, []any{
		map[string]any{"value": "", "label": "Empty"},
		map[string]any{"value": float64(1), "label": "Ada"},
	}, customer["options"])

	assert.Equal(t, []any{"id", "notes", "span", "created_at", "customer"}, body["order"])
}

func TestMeta_Columns(t *testing.T) {
	app, _, _ := testApp(t)

	status, body := doRequest(t, app, "GET", "/api/_meta/customer/columns", nil)
	require.Equal(t, 200, status)
	assert.Equal(t, []any{
		map[string]any{"name": "id", "orderable": true},
		map[string]any{"name": "name", "orderable": true},
		map[string]any{"name": "orders", "orderable": false},
	}, body["data"])

	status, body = doRequest(t, app, "GET", "/api/_meta/ghost/columns", nil)
	assert.Equal(t, 404, status)
	assert.Equal(t, "UNKNOWN_ENTITY", body["error"].(map[string]any)["code"])
}

func TestAdmin_PutDefinitions(t *testing.T) {
	app, s, reg := testApp(t)

	defs := map[string]any{
		"entities": []any{
			map[string]any{
				"name": "tag", "table": "tags",
				"primary_key": map[string]any{"field": "id", "type": "ulid", "generated": true},
				"fields": []any{
					map[string]any{"name": "id", "type": "string"},
					map[string]any{"name": "label", "type": "string", "required": true},
				},
			},
		},
		"relations": []any{},
	}
	status, body := doRequest(t, app, "PUT", "/api/_admin/definitions", defs)
	require.Equal(t, 200, status, body)
	assert.NotNil(t, reg.GetEntity("tag"))
	assert.Nil(t, reg.GetEntity("customer"))

	status, body = doRequest(t, app, "POST", "/api/tag", map[string]any{"label": "rush"})
	require.Equal(t, 201, status, body)
	assert.Len(t, body["data"].(map[string]any)["id"], 26)

	fresh := metadata.NewRegistry()
	require.NoError(t, metadata.LoadAll(context.Background(), s.DB, fresh, logger.Nop()))
	assert.NotNil(t, fresh.GetEntity("tag"))
}

func TestAdmin_PutDefinitionsRejectsInvalid(t *testing.T) {
	app, _, reg := testApp(t)

	defs := map[string]any{
		"entities": []any{
			map[string]any{"name": "broken", "table": "broken", "primary_key": map[string]any{"field": "id"}},
		},
	}
	status, body := doRequest(t, app, "PUT", "/api/_admin/definitions", defs)
	assert.Equal(t, 422, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])
	assert.NotNil(t, reg.GetEntity("customer"), "registry is untouched")
}

func TestMeta_EntitiesMenuHints(t *testing.T) {
	app, _, _ := testApp(t)

	entity := func(name string, extra map[string]any) map[string]any {
		e := map[string]any{
			"name": name, "table": name + "s",
			"primary_key": map[string]any{"field": "id", "type": "int", "generated": true},
			"fields":      []any{map[string]any{"name": "id", "type": "int"}},
		}
		for k, v := range extra {
			e[k] = v
		}
		return e
	}
	defs := map[string]any{
		"entities": []any{
			entity("audit", map[string]any{"order": 3, "hidden": true}),
			entity("user", map[string]any{"order": 1, "icon": "user"}),
			entity("team", nil),
		},
		"relations": []any{},
	}
	status, body := doRequest(t, app, "PUT", "/api/_admin/definitions", defs)
	require.Equal(t, 200, status, body)

	status, body = doRequest(t, app, "GET", "/api/_meta/entities", nil)
	require.Equal(t, 200, status)
	data := body["data"].([]any)
	require.Len(t, data, 3)

	var names []string
	for _, d := range data {
		names = append(names, d.(map[string]any)["name"].(string))
	}
	assert.Equal(t, []string{"team", "user", "audit"}, names)

	user := data[1].(map[string]any)
	assert.Equal(t, "user", user["icon"])
	assert.Equal(t, false, user["hidden"])
	assert.Equal(t, true, data[2].(map[string]any)["hidden"])
}
