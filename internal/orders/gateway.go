package orders

import "context"

// SessionItem prices are whole currency units; the gateway rejects
// sessions whose items do not add up to GrossAmount.
type SessionItem struct {
	ID       string
	Name     string
	Price    int64
	Quantity int
}

type SessionRequest struct {
	OrderNumber string
	GrossAmount int64
	Customer    Address
	Shipping    Address
	Billing     Address
	Items       []SessionItem
}

type Session struct {
	Token       string
	RedirectURL string
}

// Gateway opens payment sessions for orders paid through the gateway.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// CartClearer empties a user's active cart once their payment is confirmed.
type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

func sessionRequest(o Order) SessionRequest {
	items := make([]SessionItem, 0, len(o.Items)+2)
	for _, it := range o.Items {
		name := it.ProductName
		if it.Size != "" {
			name += " (" + it.Size + ")"
		}
		items = append(items, SessionItem{ID: it.SKU, Name: name, Price: it.UnitPrice, Quantity: it.Quantity})
	}
	if o.Totals.Shipping > 0 {
		items = append(items, SessionItem{ID: "SHIPPING", Name: "Shipping", Price: o.Totals.Shipping, Quantity: 1})
	}
	if o.Totals.Tax > 0 {
		items = append(items, SessionItem{ID: "TAX", Name: "Tax", Price: o.Totals.Tax, Quantity: 1})
	}
	return SessionRequest{
		OrderNumber: o.Number,
		GrossAmount: o.Totals.Total,
		Customer:    o.Billing,
		Shipping:    o.Shipping,
		Billing:     o.Billing,
		Items:       items,
	}
}
