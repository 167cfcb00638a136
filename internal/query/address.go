package query

import (
	"context"
	"net/url"
	"time"

	"github.com/tartampluch/go-contacts/internal/config"
	"github.com/tartampluch/go-contacts/internal/contact"
)

// AddressAPI is the subset of the address gateway used for suggestions.
type AddressAPI interface {
	FetchPostalCode(ctx context.Context, cep string) (*contact.Address, error)
	Suggest(ctx context.Context, params url.Values) ([]contact.Address, error)
}

// IsPostalCode reports whether q reduces to exactly one 8-digit CEP.
func IsPostalCode(q string) bool {
	return len(contact.Digits(q)) == config.PostalCodeLength
}

// NewAddressSuggestions builds the address autocomplete engine. A complete
// CEP is looked up at once through the single-result endpoint; free text
// needs at least MinQueryLength characters and a state or locality.
func NewAddressSuggestions(api AddressAPI, delay time.Duration) *Engine[contact.Address] {
	if delay <= 0 {
		delay = config.DefaultSuggestDelay
	}
	return New(config.EngineSuggest,
		func(ctx context.Context, p Params) ([]contact.Address, error) {
			return api.Suggest(ctx, p.Values())
		},
		Options[contact.Address]{
			Delay:     delay,
			MinLength: config.MinQueryLength,
			Immediate: func(p Params) bool { return IsPostalCode(p.Query) },
			ImmediateLookup: func(ctx context.Context, p Params) ([]contact.Address, error) {
				addr, err := api.FetchPostalCode(ctx, contact.Digits(p.Query))
				if err != nil {
					return nil, err
				}
				if addr == nil {
					return []contact.Address{}, nil
				}
				return []contact.Address{*addr}, nil
			},
			Gate:         Params.Scoped,
			ResetToEmpty: true,
		})
}
