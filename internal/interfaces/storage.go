package interfaces

import "context"

// KeyValueStore is the durable storage boundary: string keys to serialized
// values, surviving process restarts. Get returns an error for missing
// keys; callers that only need fallback semantics can treat any error as
// "no stored value".
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
