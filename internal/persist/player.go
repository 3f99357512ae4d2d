package persist

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/verte-zerg/stockle/internal/store"
)

// PlayerKey holds the anonymous player id.
const PlayerKey = "stockle:player-id"

// PlayerID returns the stored player id, creating and saving one on first use.
func PlayerID(ctx context.Context, kv store.KV) (string, error) {
	raw, ok, err := kv.Get(ctx, PlayerKey)
	if err != nil {
		return "", fmt.Errorf("failed to read player id: %w", err)
	}
	if ok {
		if id, perr := uuid.Parse(strings.TrimSpace(string(raw))); perr == nil {
			return id.String(), nil
		}
	}
	id := uuid.NewString()
	if err := kv.Set(ctx, PlayerKey, []byte(id)); err != nil {
		return "", fmt.Errorf("failed to save player id: %w", err)
	}
	return id, nil
}
