package engine

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modeladmin/internal/config"
	"modeladmin/internal/logger"
	"modeladmin/internal/store"
)

func testApp(t *testing.T) (*fiber.App, *Engine, *memStore) {
	t.Helper()
	e, s := newTestEngine()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger.Nop())})
	RegisterDynamicRoutes(app, NewHandler(e, s, config.ListConfig{PerPage: 2, MaxPerPage: 3}))
	return app, e, s
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
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected an error body, got %v", body)
	return errBody["code"].(string)
}

func TestHandler_UnknownEntity(t *testing.T) {
	app, _, _ := testApp(t)

	status, body := doRequest(t, app, "GET", "/api/nonexistent", nil)
	assert.Equal(t, 404, status)
	assert.Equal(t, "UNKNOWN_ENTITY", errorCode(t, body))
	assert.Contains(t, body["error"].(map[string]any)["message"], "nonexistent")
}

func TestHandler_CreateAndGet(t *testing.T) {
	app, e, s := testApp(t)
	seed(s, e, "tag", store.Record{"label": "rush"})

	status, body := doRequest(t, app, "POST", "/api/order", map[string]any{"total": 12.5, "tags": []int{1}})
	require.Equal(t, 201, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["id"])
	assert.Equal(t, []any{float64(1)}, data["tags"])
	assert.Equal(t, []any{}, data["items"])

	status, body = doRequest(t, app, "GET", "/api/order/1", nil)
	require.Equal(t, 200, status)
	assert.Equal(t, 12.5, body["data"].(map[string]any)["total"])

	status, body = doRequest(t, app, "GET", "/api/order/9", nil)
	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestHandler_Update(t *testing.T) {
	app, _, _ := testApp(t)

	status, _ := doRequest(t, app, "POST", "/api/order", map[string]any{"total": 1})
	require.Equal(t, 201, status)

	status, body := doRequest(t, app, "PUT", "/api/order/1", map[string]any{"status": "closed"})
	require.Equal(t, 200, status, body)
	assert.Equal(t, "closed", body["data"].(map[string]any)["status"])

	status, body = doRequest(t, app, "PUT", "/api/order/5", map[string]any{"status": "closed"})
	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestHandler_ValidationFailed(t *testing.T) {
	app, _, _ := testApp(t)

	status, body := doRequest(t, app, "POST", "/api/order", map[string]any{"total": 1, "nope": true})
	assert.Equal(t, 422, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))
	details := body["error"].(map[string]any)["details"].([]any)
	require.Len(t, details, 1)
	assert.Equal(t, "unknown", details[0].(map[string]any)["rule"])
}

func TestHandler_PartialUpsert(t *testing.T) {
	app, _, _ := testApp(t)

	status, body := doRequest(t, app, "POST", "/api/order", map[string]any{"total": 1, "items": []int{4}})
	assert.Equal(t, 409, status)
	assert.Equal(t, "PARTIAL_UPSERT", errorCode(t, body))
}

func TestHandler_ListPagingAndSort(t *testing.T) {
	app, e, s := testApp(t)
	for _, name := range []string{"Ada", "Grace", "Linus"} {
		seed(s, e, "customer", store.Record{"name": name})
	}

	status, body := doRequest(t, app, "GET", "/api/customer?page=2", nil)
	require.Equal(t, 200, status)
	rows := body["data"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "Linus", rows[0].(map[string]any)["name"])
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(3), meta["total"])
	assert.Equal(t, float64(2), meta["per_page"])

	_, body = doRequest(t, app, "GET", "/api/customer?per_page=50", nil)
	assert.Equal(t, float64(3), body["meta"].(map[string]any)["per_page"])

	status, body = doRequest(t, app, "GET", "/api/order?sort=-items", nil)
	assert.Equal(t, 400, status)
	assert.Equal(t, "UNSORTABLE_FIELD", errorCode(t, body))

	status, body = doRequest(t, app, "GET", "/api/order?sort=missing", nil)
	assert.Equal(t, 400, status)
	assert.Equal(t, "UNKNOWN_FIELD", errorCode(t, body))

	status, _ = doRequest(t, app, "GET", "/api/order?sort=-customer,total", nil)
	assert.Equal(t, 200, status)
}

func TestHandler_ExpandRelations(t *testing.T) {
	app, e, s := testApp(t)
	seed(s, e, "customer", store.Record{"name": "Ada"})
	seed(s, e, "tag", store.Record{"label": "rush"})
	seed(s, e, "item", store.Record{"name": "bolt"})

	status, body := doRequest(t, app, "POST", "/api/order?expand=repr", map[string]any{
		"total": 3, "customer": 1, "tags": []int{1}, "items": []int{1},
	})
	require.Equal(t, 201, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, map[string]any{"id": float64(1), "type": "customer", "repr": "Ada"}, data["customer"])
	assert.Equal(t, []any{map[string]any{"id": float64(1), "type": "tag", "repr": "rush"}}, data["tags"])
	assert.Equal(t, []any{map[string]any{"id": float64(1), "type": "item", "repr": "bolt"}}, data["items"])
	assert.Equal(t, "", data["invoice"])

	status, body = doRequest(t, app, "GET", "/api/order/1?expand=repr", nil)
	require.Equal(t, 200, status)
	assert.Equal(t, "Ada", body["data"].(map[string]any)["customer"].(map[string]any)["repr"])

	_, body = doRequest(t, app, "GET", "/api/order?expand=repr", nil)
	rows := body["data"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "rush", rows[0].(map[string]any)["tags"].([]any)[0].(map[string]any)["repr"])

	_, body = doRequest(t, app, "GET", "/api/order/1", nil)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["customer"], "plain ids without expand")

	status, body = doRequest(t, app, "GET", "/api/order/1?expand=everything", nil)
	assert.Equal(t, 400, status)
	assert.Equal(t, "UNKNOWN_EXPAND", errorCode(t, body))
}
