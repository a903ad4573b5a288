package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type snapClient interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// Midtrans opens Snap sessions. Configuration is passed in explicitly; the
// SDK's package-level globals are never touched.
type Midtrans struct {
	client snapClient
}

type MidtransConfig struct {
	ServerKey  string
	Production bool
}

func NewMidtrans(cfg MidtransConfig) (*Midtrans, error) {
	if strings.TrimSpace(cfg.ServerKey) == "" {
		return nil, errors.New("midtrans: server key is required")
	}
	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}
	var c snap.Client
	c.New(cfg.ServerKey, env)
	return &Midtrans{client: &c}, nil
}

func (m *Midtrans) CreateSession(_ context.Context, req orders.SessionRequest) (orders.Session, error) {
	resp, mErr := m.client.CreateTransaction(snapRequest(req))
	if mErr != nil {
		return orders.Session{}, fmt.Errorf("midtrans: create transaction: %w", mErr)
	}
	if resp == nil || resp.Token == "" {
		return orders.Session{}, errors.New("midtrans: empty snap token")
	}
	return orders.Session{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func snapRequest(req orders.SessionRequest) *snap.Request {
	items := make([]midtrans.ItemDetails, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, midtrans.ItemDetails{
			ID:    it.ID,
			Name:  truncate(it.Name, 50),
			Price: it.Price,
			Qty:   int32(it.Quantity),
		})
	}
	first, last := splitName(req.Customer.Name)
	return &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderNumber,
			GrossAmt: req.GrossAmount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName:    first,
			LName:    last,
			Email:    req.Customer.Email,
			Phone:    req.Customer.Phone,
			BillAddr: customerAddress(req.Billing),
			ShipAddr: customerAddress(req.Shipping),
		},
		Items: &items,
	}
}

func customerAddress(a orders.Address) *midtrans.CustomerAddress {
	first, last := splitName(a.Name)
	line := a.Line1
	if a.Line2 != "" {
		line += ", " + a.Line2
	}
	country := a.Country
	if country == "" {
		country = "IDN"
	}
	return &midtrans.CustomerAddress{
		FName:       first,
		LName:       last,
		Phone:       a.Phone,
		Address:     line,
		City:        a.City,
		Postcode:    a.PostalCode,
		CountryCode: country,
	}
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if i := strings.LastIndexByte(full, ' '); i > 0 {
		return full[:i], full[i+1:]
	}
	return full, ""
}

// Snap rejects item names longer than 50 characters.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
