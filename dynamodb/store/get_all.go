package store

import (
	"context"
	"fmt"
)

// GetAll reads keys in chunks of MaxBatchGet, re-requesting unprocessed
// keys with backoff. Missing items are absent from the result and the
// result order is unspecified. maxRetries bounds the re-request passes.
func GetAll(ctx context.Context, c Client, keys []Key, maxRetries int, backoff BackoffFunc) ([]Item, error) {
	if backoff == nil {
		backoff = DefaultBackoff
	}
	keys = dedupeKeys(keys)
	var items []Item
	for start := 0; start < len(keys); start += MaxBatchGet {
		pending := keys[start:min(start+MaxBatchGet, len(keys))]
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt > maxRetries {
				return items, fmt.Errorf("%w: %d keys unprocessed after %d retries", ErrUnavailable, len(pending), maxRetries)
			}
			if attempt > 0 {
				if err := Sleep(ctx, backoff(attempt)); err != nil {
					return items, err
				}
			}
			out, err := c.BatchGet(ctx, pending)
			if err != nil {
				return items, fmt.Errorf("batch get: %w", err)
			}
			items = append(items, out.Items...)
			pending = out.Unprocessed
		}
	}
	return items, nil
}

func dedupeKeys(keys []Key) []Key {
	seen := make(map[Key]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
