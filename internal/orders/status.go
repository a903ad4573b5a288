package orders

import "strings"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusShipped: true, StatusCancelled: true, StatusRefunded: true},
	StatusProcessing: {StatusShipped: true, StatusDelivered: true, StatusCancelled: true, StatusRefunded: true},
	StatusShipped:    {StatusDelivered: true, StatusCancelled: true, StatusRefunded: true},
	StatusDelivered:  {StatusShipped: true, StatusRefunded: true},
	StatusCancelled:  {StatusProcessing: true, StatusShipped: true},
	StatusRefunded:   {},
}

// final statuses end payment-driven processing: webhooks are acknowledged
// without effect once an order reaches one of them.
var final = map[Status]bool{
	StatusDelivered: true,
	StatusCancelled: true,
	StatusRefunded:  true,
}

// settled statuses already reflect a confirmed payment.
var settled = map[Status]bool{
	StatusProcessing: true,
	StatusShipped:    true,
	StatusDelivered:  true,
}

// fulfilling statuses require the order's stock to be committed.
var fulfilling = map[Status]bool{
	StatusProcessing: true,
	StatusShipped:    true,
	StatusDelivered:  true,
}

func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	_, ok := validNext[st]
	return st, ok
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) IsFinal() bool   { return final[s] }
func (s Status) IsSettled() bool { return settled[s] }

// Cancellable by the customer.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusProcessing
}
