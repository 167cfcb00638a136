package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tartampluch/go-contacts/internal/config"
	"github.com/tartampluch/go-contacts/internal/contact"
)

// AddressAPI exposes postal code lookup and address autocomplete.
type AddressAPI struct {
	client *Client
}

// NewAddressAPI binds the address endpoints to client.
func NewAddressAPI(client *Client) *AddressAPI {
	return &AddressAPI{client: client}
}

// FetchPostalCode resolves an 8-digit CEP to a single address. A nil address
// with a nil error means the backend returned no record.
func (a *AddressAPI) FetchPostalCode(ctx context.Context, cep string) (*contact.Address, error) {
	resp, err := a.client.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   config.RouteAddresses + "/" + url.PathEscape(contact.Digits(cep)),
	})
	if err != nil {
		return nil, err
	}
	rec := ExtractObject(resp)
	if len(rec) == 0 {
		return nil, nil
	}
	addr := contact.NormalizeAddress(rec)
	return &addr, nil
}

// Suggest returns autocomplete suggestions. params is sent verbatim, so the
// caller includes every alias the endpoint may expect.
func (a *AddressAPI) Suggest(ctx context.Context, params url.Values) ([]contact.Address, error) {
	resp, err := a.client.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   config.RouteSuggest,
		Query:  params,
	})
	if err != nil {
		return nil, err
	}
	return contact.NormalizeAddresses(ExtractList(resp)), nil
}
