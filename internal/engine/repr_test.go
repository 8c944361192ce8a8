package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modeladmin/internal/form"
	"modeladmin/internal/logger"
	"modeladmin/internal/metadata"
	"modeladmin/internal/store"
)

func TestRepr(t *testing.T) {
	r := NewRepresenter(logger.Nop())
	entities, _ := orderDefinitions()
	byName := map[string]*metadata.Entity{}
	for _, e := range entities {
		byName[e.Name] = e
	}

	tests := []struct {
		name   string
		entity string
		rec    store.Record
		want   string
	}{
		{"expression", "order", store.Record{"id": int64(7)}, "Order 7"},
		{"name field", "customer", store.Record{"id": int64(1), "name": "Ada"}, "Ada"},
		{"custom name field", "tag", store.Record{"id": int64(2), "label": "rush"}, "rush"},
		{"fallback", "item", store.Record{"id": int64(3)}, "item #3"},
		{"empty name", "customer", store.Record{"id": int64(4), "name": ""}, "customer #4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Repr(byName[tt.entity], tt.rec))
		})
	}
}

func TestRepr_BrokenExpressionFallsBack(t *testing.T) {
	r := NewRepresenter(nil)
	e := &metadata.Entity{Name: "thing", PrimaryKey: metadata.PrimaryKey{Field: "id"}, Repr: "name +"}
	assert.Equal(t, "Widget", r.Repr(e, store.Record{"id": 1, "name": "Widget"}))
}

func TestLoadOptions(t *testing.T) {
	e, s := newTestEngine()
	seed(s, e, "customer", store.Record{"name": "Ada"})
	seed(s, e, "customer", store.Record{"name": "Grace"})
	seed(s, e, "tag", store.Record{"label": "rush"})

	m, err := e.intro.Model("order")
	require.NoError(t, err)

	opts, err := NewRepresenter(nil).LoadOptions(context.Background(), s, e.intro.Registry(), m)
	require.NoError(t, err)
	assert.Equal(t, []form.Option{{Value: int64(1), Label: "Ada"}, {Value: int64(2), Label: "Grace"}}, opts["customer"])
	assert.Equal(t, []form.Option{{Value: int64(1), Label: "rush"}}, opts["tags"])
	assert.Empty(t, opts["items"])
	assert.Contains(t, opts, "items")

	descriptors, err := form.ClassifyAll(m, opts)
	require.NoError(t, err)
	assert.Equal(t, form.EmptyOption, descriptors["customer"].Options[0])
	assert.True(t, descriptors["tags"].Multiple)
}

func TestExpand(t *testing.T) {
	e, s := newTestEngine()
	seed(s, e, "tag", store.Record{"label": "rush"})
	seed(s, e, "tag", store.Record{"label": "fragile"})

	m, err := e.intro.Model("order")
	require.NoError(t, err)

	rec, err := e.Expand(context.Background(), m, store.Record{
		"id":       int64(1),
		"customer": int64(7),
		"items":    []any{},
		"tags":     []any{int64(2), int64(1)},
		"invoice":  nil,
	})
	require.NoError(t, err)

	assert.Equal(t, RelationPack{ID: int64(7), Type: "customer", Repr: "customer #7"}, rec["customer"], "dangling ids keep the fallback label")
	assert.Equal(t, []RelationPack{}, rec["items"])
	assert.Equal(t, []RelationPack{
		{ID: int64(2), Type: "tag", Repr: "fragile"},
		{ID: int64(1), Type: "tag", Repr: "rush"},
	}, rec["tags"])
	assert.Equal(t, "", rec["invoice"])
}
