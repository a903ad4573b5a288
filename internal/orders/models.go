package orders

import (
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
)

type PaymentMethod string

const (
	// PaymentMidtrans redirects to the gateway; stock is committed when the
	// gateway confirms payment.
	PaymentMidtrans PaymentMethod = "midtrans"
	// PaymentManual covers bank transfer and cash on delivery; stock is
	// committed when the order is placed.
	PaymentManual PaymentMethod = "manual"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case PaymentMidtrans, PaymentManual:
		return m, true
	case "":
		return PaymentMidtrans, true
	}
	return "", false
}

type Address struct {
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country,omitempty"`
}

func (a Address) IsZero() bool { return a == Address{} }

type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// Item is a snapshot taken at checkout and never updated from the catalog.
type Item struct {
	ID          string            `json:"id"`
	OrderID     string            `json:"order_id"`
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	SKU         string            `json:"sku"`
	Size        string            `json:"size,omitempty"`
	Quantity    int               `json:"quantity"`
	UnitPrice   int64             `json:"unit_price"`
	TotalPrice  int64             `json:"total_price"`
	Options     map[string]string `json:"options,omitempty"`
}

type Order struct {
	ID             string        `json:"id"`
	Number         string        `json:"order_number"`
	UserID         string        `json:"user_id"`
	Status         Status        `json:"status"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	PaymentToken   string        `json:"payment_token,omitempty"`
	PaymentType    string        `json:"payment_type,omitempty"`
	TransactionID  string        `json:"transaction_id,omitempty"`
	StockCommitted bool          `json:"-"`
	Totals         Totals        `json:"totals"`
	Shipping       Address       `json:"shipping_address"`
	Billing        Address       `json:"billing_address"`
	TrackingNumber string        `json:"tracking_number,omitempty"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
	ShippedAt      *time.Time    `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time    `json:"delivered_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Items          []Item        `json:"items"`
}

func (o Order) stockLines() []catalog.Line {
	out := make([]catalog.Line, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, catalog.Line{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Size:        it.Size,
			Qty:         it.Quantity,
		})
	}
	return out
}
