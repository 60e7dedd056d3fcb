package api

import (
	"context"
	"fmt"
	"humidcast/internal/models"
)

// ListSensors returns the identifiers of every sensor the telemetry API
// knows, in the order it reports them. An empty catalog is an error.
func (c *Client) ListSensors(ctx context.Context, token string) ([]string, error) {
	var catalog models.CatalogResponse
	if err := c.getJSON(ctx, "catalog", "/", nil, token, &catalog); err != nil {
		return nil, fmt.Errorf("%w: failed to fetch sensors: %w", ErrEnumeration, err)
	}

	if catalog.EntriesByIdentifier == nil {
		return nil, fmt.Errorf("%w: response does not contain entries_by_identifier", ErrEnumeration)
	}

	entries := *catalog.EntriesByIdentifier
	ids := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, entry := range entries {
		if entry.UniqueIdentifier == nil || *entry.UniqueIdentifier == "" {
			return nil, fmt.Errorf("%w: entry %d has no unique_identifier", ErrEnumeration, i)
		}
		id := *entry.UniqueIdentifier
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: No sensors found", ErrEnumeration)
	}
	return ids, nil
}
