package store

import "context"

// KV is a byte-oriented key/value store.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

var (
	_ KV = (*Store)(nil)
	_ KV = (*MemoryStore)(nil)
	_ KV = (*RedisStore)(nil)
)

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
