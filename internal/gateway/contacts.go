package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tartampluch/go-contacts/internal/config"
	"github.com/tartampluch/go-contacts/internal/contact"
)

// ContactsAPI exposes the /contacts endpoints. Responses are returned raw so
// the caller decides how to normalize them.
type ContactsAPI struct {
	client *Client
}

// NewContactsAPI binds the contacts endpoints to client.
func NewContactsAPI(client *Client) *ContactsAPI {
	return &ContactsAPI{client: client}
}

// List returns every contact record of the authenticated user.
func (a *ContactsAPI) List(ctx context.Context) ([]any, error) {
	resp, err := a.client.Do(ctx, Request{Method: http.MethodGet, Path: config.RouteContacts})
	if err != nil {
		return nil, err
	}
	return ExtractList(resp), nil
}

// Search runs the backend full-text search.
func (a *ContactsAPI) Search(ctx context.Context, q string) ([]any, error) {
	resp, err := a.client.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   config.RouteContactSearch,
		Query:  url.Values{config.FieldQ: {q}},
	})
	if err != nil {
		return nil, err
	}
	return ExtractList(resp), nil
}

// Create stores a new contact and returns the created record, unwrapped from
// its envelope when there is one.
func (a *ContactsAPI) Create(ctx context.Context, c contact.Contact) (any, error) {
	resp, err := a.client.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   config.RouteContacts,
		Body:   payload(c.Record(), true),
	})
	if err != nil {
		return nil, err
	}
	return unwrap(resp), nil
}

// Update sends the fields carried by p.
func (a *ContactsAPI) Update(ctx context.Context, id string, p contact.Patch) (any, error) {
	resp, err := a.client.Do(ctx, Request{
		Method: http.MethodPut,
		Path:   config.RouteContacts + "/" + url.PathEscape(id),
		Body:   payload(p.Record(), false),
	})
	if err != nil {
		return nil, err
	}
	return unwrap(resp), nil
}

// Remove deletes a contact.
func (a *ContactsAPI) Remove(ctx context.Context, id string) error {
	_, err := a.client.Do(ctx, Request{
		Method: http.MethodDelete,
		Path:   config.RouteContacts + "/" + url.PathEscape(id),
	})
	return err
}

// unwrap returns {data: x} as x and anything else unchanged.
func unwrap(resp any) any {
	if inner := dig(resp, config.FieldData); inner != nil {
		return inner
	}
	return resp
}

// payload maps a canonical record to the field names the backend writes.
// With full set, zip code and neighborhood are always sent (as "" when
// unknown); otherwise only the fields present in rec travel.
func payload(rec map[string]any, full bool) map[string]any {
	out := make(map[string]any, len(rec))
	for _, k := range []string{
		config.FieldName, config.FieldCPF, config.FieldPhone, config.FieldEmail,
		config.FieldState, config.FieldAddress, config.FieldNumber, config.FieldComplement,
	} {
		if v, ok := rec[k]; ok {
			out[k] = v
		}
	}

	if v, ok := rec[config.FieldZipCode]; ok || full {
		s, _ := v.(string)
		out[config.FieldZipCodeSnake] = contact.Digits(s)
	}
	if v, ok := rec[config.FieldCity]; ok {
		out[config.FieldCity] = v
	} else if v, ok := rec[config.FieldLocality]; ok {
		out[config.FieldCity] = v
	}
	if v, ok := rec[config.FieldNeighborhood]; ok || full {
		s, _ := v.(string)
		out[config.FieldNeighborhood] = s
	}
	if lat, ok := rec[config.FieldLat].(float64); ok {
		out[config.FieldLatitudeReal] = contact.ScaleCoord(lat)
	}
	if lng, ok := rec[config.FieldLng].(float64); ok {
		out[config.FieldLongitudeReal] = contact.ScaleCoord(lng)
	}
	return out
}
