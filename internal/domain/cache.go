package domain

import (
	"context"
	"time"
)

// AlertDeduper suppresses duplicate alerts. Seen records the key and returns
// true when the key was already recorded within the TTL window. A cache
// failure is reported as (false, err): callers deliver rather than drop when
// dedup state is unavailable.
type AlertDeduper interface {
	Seen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RateLimiter bounds how often an action may run for a given key, using a
// sliding window. Allow counts the request when permitted.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ImagePicker supplies the media attached to image-bearing alert deliveries.
// Random returns one image's raw bytes and its filename; ErrNoImages means
// the library is empty and delivery should be text-only.
type ImagePicker interface {
	Random(ctx context.Context) (data []byte, name string, err error)
}
