package redisx

import "time"

const (
	// Active cart per user: cart:{user_id} -> JSON cart
	KeyCart = "cart:%s"

	// Cached order status: order_status:{order_number} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup marker: dedup:{scope}:{id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLCart        = 7 * 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
