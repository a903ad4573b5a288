package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

func seed() *Store {
	s := New()
	s.PutProduct(catalog.Product{ID: "cap", Name: "Cap", TrackStock: true, Stock: 4})
	s.PutProduct(catalog.Product{
		ID: "tee", Name: "Tee", TrackStock: true,
		Variants: []catalog.SizeVariant{{ID: "tee-s", ProductID: "tee", Size: "S", Stock: 2}},
	})
	s.PutProduct(catalog.Product{ID: "pin", Name: "Pin"})
	return s
}

func TestLedgerReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	s := seed()

	err := s.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		l := tx.Ledger()
		require.NoError(t, l.Reserve(ctx, catalog.Line{ProductID: "cap", Qty: 3}))
		require.NoError(t, l.Reserve(ctx, catalog.Line{ProductID: "tee", Size: "s", Qty: 2}))
		require.NoError(t, l.Reserve(ctx, catalog.Line{ProductID: "pin", Qty: 100}))
		require.NoError(t, l.Release(ctx, catalog.Line{ProductID: "cap", Qty: 1}))
		return l.AddSales(ctx, "cap", 2)
	})
	require.NoError(t, err)

	c, _ := s.GetProduct(ctx, "cap")
	require.Equal(t, 2, c.Stock)
	require.Equal(t, 2, c.SalesCount)
	tee, _ := s.GetProduct(ctx, "tee")
	require.Equal(t, 0, tee.Variants[0].Stock)
}

func TestLedgerReserveInsufficient(t *testing.T) {
	ctx := context.Background()
	s := seed()

	err := s.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.Ledger().Reserve(ctx, catalog.Line{ProductID: "cap", Qty: 5})
	})
	var ise *catalog.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	require.Equal(t, 4, ise.Available)
	require.Equal(t, 5, ise.Requested)
	require.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))
}

func TestLedgerRejectsMissingSize(t *testing.T) {
	ctx := context.Background()
	s := seed()

	err := s.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.Ledger().Reserve(ctx, catalog.Line{ProductID: "tee", Qty: 1})
	})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = s.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.Ledger().Reserve(ctx, catalog.Line{ProductID: "tee", Size: "XL", Qty: 1})
	})
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSalesCountNeverNegative(t *testing.T) {
	ctx := context.Background()
	s := seed()

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.Ledger().AddSales(ctx, "cap", -3)
	}))
	c, _ := s.GetProduct(ctx, "cap")
	require.Equal(t, 0, c.SalesCount)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := seed()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		require.NoError(t, tx.Ledger().Reserve(ctx, catalog.Line{ProductID: "cap", Qty: 4}))
		require.NoError(t, tx.Ledger().Reserve(ctx, catalog.Line{ProductID: "tee", Size: "S", Qty: 1}))
		require.NoError(t, tx.InsertOrder(ctx, orders.Order{ID: "o1", Number: "ORD-1", UserID: "u1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	c, _ := s.GetProduct(ctx, "cap")
	require.Equal(t, 4, c.Stock)
	tee, _ := s.GetProduct(ctx, "tee")
	require.Equal(t, 2, tee.Variants[0].Stock)
	_, err = s.Get(ctx, "o1")
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	s := seed()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"o1", "o2"} {
		o := orders.Order{
			ID: id, Number: "ORD-" + id, UserID: "u1", Status: orders.StatusPending,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
			Items:     []orders.Item{{ProductID: "cap", Quantity: 1, Options: map[string]string{"color": "red"}}},
		}
		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
			return tx.InsertOrder(ctx, o)
		}))
	}

	err := s.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.InsertOrder(ctx, orders.Order{ID: "o3", Number: "ORD-o1"})
	})
	require.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	got, err := s.GetByNumber(ctx, "ORD-o1")
	require.NoError(t, err)
	got.Items[0].Options["color"] = "blue"
	again, _ := s.Get(ctx, "o1")
	require.Equal(t, "red", again.Items[0].Options["color"])

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		o, err := tx.LockOrder(ctx, "o1")
		if err != nil {
			return err
		}
		o.Status = orders.StatusCancelled
		o.Items = nil
		return tx.UpdateOrder(ctx, o)
	}))
	again, _ = s.Get(ctx, "o1")
	require.Equal(t, orders.StatusCancelled, again.Status)
	require.Len(t, again.Items, 1)

	list, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "o2", list[0].ID)

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.DeleteOrder(ctx, "o1")
	}))
	_, err = s.GetByNumber(ctx, "ORD-o1")
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	require.ErrorIs(t, err, orders.ErrDeleted)

	_, err = s.GetByNumber(ctx, "ORD-never")
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	require.False(t, errors.Is(err, orders.ErrDeleted))
}
