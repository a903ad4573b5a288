package memstore

import (
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

func copyProduct(p catalog.Product) catalog.Product {
	if p.Variants != nil {
		p.Variants = append([]catalog.SizeVariant(nil), p.Variants...)
	}
	return p
}

func copyOrder(o orders.Order) orders.Order {
	items := make([]orders.Item, len(o.Items))
	for i, it := range o.Items {
		if it.Options != nil {
			opts := make(map[string]string, len(it.Options))
			for k, v := range it.Options {
				opts[k] = v
			}
			it.Options = opts
		}
		items[i] = it
	}
	o.Items = items
	o.PaidAt = copyTime(o.PaidAt)
	o.ShippedAt = copyTime(o.ShippedAt)
	o.DeliveredAt = copyTime(o.DeliveredAt)
	return o
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
