package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
)

type stubCatalog map[string]catalog.Product

func (s stubCatalog) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	p, ok := s[id]
	if !ok {
		return catalog.Product{}, apperr.NotFound("stub", "product %s not found", id)
	}
	return p, nil
}

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	cat := stubCatalog{
		"tee": {
			ID: "tee", SKU: "TEE", Name: "Tee", Price: 50000, TrackStock: true,
			Variants: []catalog.SizeVariant{{Size: "M", Stock: 3}, {Size: "L", Stock: 1}},
		},
		"mug": {ID: "mug", SKU: "MUG", Name: "Mug", Price: 25000, TrackStock: true, Stock: 10},
	}
	store := NewMemoryStore()
	n := 0
	svc, err := NewService(Deps{
		Store:   store,
		Catalog: cat,
		Clock:   func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) },
		IDGenerator: func() string {
			n++
			return fmt.Sprintf("line-%d", n)
		},
	})
	require.NoError(t, err)
	return svc, store
}

func TestAddItemMergesMatchingLines(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", AddItemInput{ProductID: "tee", Quantity: 1, Options: Options{"size": "M"}})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "u1", AddItemInput{ProductID: "tee", Quantity: 1, Options: Options{"size": "m"}})
	require.NoError(t, err)
	c, err := svc.AddItem(ctx, "u1", AddItemInput{ProductID: "tee", Quantity: 1, Options: Options{"size": "L"}})
	require.NoError(t, err)

	require.Len(t, c.Items, 2)
	require.Equal(t, 2, c.Items[0].Quantity)
	require.EqualValues(t, 100000, c.Items[0].TotalPrice)
	require.Equal(t, 3, c.TotalQty)
	require.EqualValues(t, 150000, c.Subtotal)
	require.Equal(t, c.Subtotal, c.GrandTotal)
}

func TestAddItemRejectsOverAvailability(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", AddItemInput{ProductID: "tee", Quantity: 2, Options: Options{"size": "M"}})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, "u1", AddItemInput{ProductID: "tee", Quantity: 2, Options: Options{"size": "M"}})
	var ise *catalog.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	require.Equal(t, 4, ise.Requested)
	require.Equal(t, 3, ise.Available)
	require.Equal(t, "M", ise.Size)

	c, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, c.Items[0].Quantity, "rejected add must not change the cart")
}

func TestAvailabilityCountsLinesSharingStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", AddItemInput{ProductID: "tee", Quantity: 2, Options: Options{"size": "M", "color": "red"}})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, "u1", AddItemInput{ProductID: "tee", Quantity: 2, Options: Options{"size": "m", "color": "blue"}})
	var ise *catalog.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	require.Equal(t, 4, ise.Requested)
	require.Equal(t, 3, ise.Available)

	// other sizes have their own counter
	c, err := svc.AddItem(ctx, "u1", AddItemInput{ProductID: "tee", Quantity: 1, Options: Options{"size": "L", "color": "blue"}})
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, "u1", AddItemInput{ProductID: "tee", Quantity: 1, Options: Options{"size": "M", "color": "blue"}})
	require.NoError(t, err)
	require.Len(t, c.Items, 3)

	_, err = svc.SetQuantity(ctx, "u1", c.Items[0].ID, 3)
	require.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))

	// simple products share one counter whatever the options
	_, err = svc.AddItem(ctx, "u1", AddItemInput{ProductID: "mug", Quantity: 6, Options: Options{"gift": "yes"}})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "u1", AddItemInput{ProductID: "mug", Quantity: 5})
	require.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))

	c, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 10, c.TotalQty)
}

func TestAddItemValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", AddItemInput{})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.Contains(t, apperr.FieldsOf(err), "product_id")
	require.Contains(t, apperr.FieldsOf(err), "quantity")

	_, err = svc.AddItem(ctx, "u1", AddItemInput{ProductID: "tee", Quantity: 1})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err), "size is required for variant products")

	_, err = svc.AddItem(ctx, "u1", AddItemInput{ProductID: "ghost", Quantity: 1})
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSetQuantityRemoveClear(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.AddItem(ctx, "u1", AddItemInput{ProductID: "mug", Quantity: 1})
	require.NoError(t, err)
	id := c.Items[0].ID

	c, err = svc.SetQuantity(ctx, "u1", id, 4)
	require.NoError(t, err)
	require.EqualValues(t, 100000, c.Subtotal)

	_, err = svc.SetQuantity(ctx, "u1", id, 11)
	require.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))

	_, err = svc.SetQuantity(ctx, "u1", "nope", 1)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	c, err = svc.Remove(ctx, "u1", id)
	require.NoError(t, err)
	require.Empty(t, c.Items)
	require.Zero(t, c.Subtotal)

	_, err = svc.AddItem(ctx, "u1", AddItemInput{ProductID: "mug", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "u1"))
	c, err = svc.Get(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, c.Items)
}

func TestParseOptionsShapes(t *testing.T) {
	flat, err := ParseOptions(json.RawMessage(`{"Size":" M ","color":"red","gift":true}`))
	require.NoError(t, err)
	require.Equal(t, Options{"size": "M", "color": "red", "gift": "true"}, flat)

	list, err := ParseOptions(json.RawMessage(`[{"name":"color","value":"red"},{"name":"size","value":"M"}]`))
	require.NoError(t, err)
	require.Equal(t, Options{"color": "red", "size": "M"}, list)
	require.Equal(t, "color=red;gift=true;size=m", flat.Key())

	empty, err := ParseOptions(json.RawMessage(`null`))
	require.NoError(t, err)
	require.Empty(t, empty)

	_, err = ParseOptions(json.RawMessage(`"M"`))
	require.Error(t, err)
	_, err = ParseOptions(json.RawMessage(`{"size":{"v":"M"}}`))
	require.Error(t, err)
}
