package orders

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
)

// ErrDeleted is wrapped by the not_found error returned for an order
// number that belonged to a deleted order.
var ErrDeleted = errors.New("order was deleted")

func DeletedError(number string) error {
	return &apperr.Error{Op: "order.get", Kind: apperr.KindNotFound, Message: "order " + number + " not found", Err: ErrDeleted}
}

// Store is the unit-of-work boundary for orders. Everything done through
// the Tx handed to fn commits together or not at all.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Get(ctx context.Context, id string) (Order, error)
	GetByNumber(ctx context.Context, number string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}

// Tx locks order rows for the lifetime of the unit of work. Lock methods
// return an apperr not_found error for unknown orders. DeleteOrder keeps
// the order number, and lookups by that number wrap ErrDeleted.
type Tx interface {
	LockOrder(ctx context.Context, id string) (Order, error)
	LockOrderByNumber(ctx context.Context, number string) (Order, error)
	InsertOrder(ctx context.Context, o Order) error
	UpdateOrder(ctx context.Context, o Order) error
	DeleteOrder(ctx context.Context, id string) error
	Ledger() catalog.Ledger
}
