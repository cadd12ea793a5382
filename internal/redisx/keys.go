package redisx

import "time"

const (
	// Per-user checkout lock: lock:checkout:{user_id} -> random token
	KeyCheckoutLock = "lock:checkout:%s"

	// Per-order status transition lock: lock:order:{order_id} -> random token
	KeyOrderLock = "lock:order:%s"

	// Cache status order: order_status:{order_id} -> hash {status, at}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Push subscriptions: hash user_id -> endpoint
	KeyPushEndpoints = "push_endpoints"
)

var (
	TTLOrderLock   = 15 * time.Second
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
