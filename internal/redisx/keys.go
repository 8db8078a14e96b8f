package redisx

import "time"

const (
	// Checkout idempotency: idem:checkout:{user_id}:{idempotency_key} -> order_id
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Cache status order: order_status:{order_id} -> {"status": "...", "payment_status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Product read cache: product:{product_id} -> product json, or "notfound"
	KeyProduct = "product:%s"
)

const productMissing = "notfound"

var (
	TTLIdempotency    = 24 * time.Hour
	TTLStatusCache    = 5 * time.Minute
	TTLDedup          = 48 * time.Hour
	TTLProduct        = 5 * time.Minute
	TTLProductMissing = 1 * time.Minute
)
