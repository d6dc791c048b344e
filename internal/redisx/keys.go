package redisx

import "time"

const (
	// Cart contents per customer: cart:{customer_id} -> JSON item list.
	KeyCart = "cart:%s"

	// Dedup event processing: dedup:{service}:{event_id}.
	KeyDedup = "dedup:%s:%s"
)

var (
	// TTLCart is refreshed on every cart write so abandoned carts expire.
	TTLCart = 7 * 24 * time.Hour

	TTLDedup = 48 * time.Hour
)
