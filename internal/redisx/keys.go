package redisx

import "time"

const (
	// Idempotent order creation: idem:order:create:{external_id} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Order status read cache: order_status:{order_id}
	KeyOrderStatus = "order_status:%s"

	// Event dedup per consuming service: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Product read-model projection: productcache:{service}:{product_id}
	KeyProductCache = "productcache:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
