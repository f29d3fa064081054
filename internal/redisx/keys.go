package redisx

import (
	"fmt"
	"time"
)

const (
	// Prefix for every key written by the entity cache.
	CachePrefix = "shop:"

	// Entity cache: entity:{kind}:{id} -> JSON of the entity
	KeyEntity = "entity:%s:%s"

	// Dedup event processing: dedup:{service}:{id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLEntity = time.Hour
	TTLDedup  = 48 * time.Hour

	// TTLClaim bounds how long an in-flight claim blocks redelivery of the
	// same event if its holder dies.
	TTLClaim = time.Minute
)

func EntityKey(kind, id string) string { return fmt.Sprintf(KeyEntity, kind, id) }

func DedupKey(service, id string) string { return fmt.Sprintf(KeyDedup, service, id) }
