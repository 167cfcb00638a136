package query

import (
	"context"
	"strings"
	"time"

	"github.com/tartampluch/go-contacts/internal/config"
	"github.com/tartampluch/go-contacts/internal/contact"
)

// SearchAPI is the subset of the contacts gateway used for search.
type SearchAPI interface {
	Search(ctx context.Context, q string) ([]any, error)
}

// NewContactSearch builds the remote contact search engine. Results are
// normalized, entries without an id are dropped and the rest is sorted by
// name.
func NewContactSearch(api SearchAPI, delay time.Duration) *Engine[contact.Contact] {
	if delay <= 0 {
		delay = config.DefaultSearchDelay
	}
	return New(config.EngineSearch,
		func(ctx context.Context, p Params) ([]contact.Contact, error) {
			raw, err := api.Search(ctx, strings.TrimSpace(p.Query))
			if err != nil {
				return nil, err
			}
			found := make([]contact.Contact, 0, len(raw))
			for _, c := range contact.NormalizeAll(raw) {
				if c.ID != "" {
					found = append(found, c)
				}
			}
			contact.SortByName(found)
			return found, nil
		},
		Options[contact.Contact]{
			Delay:     delay,
			MinLength: config.MinQueryLength,
		})
}
