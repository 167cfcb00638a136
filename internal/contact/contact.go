// Package contact defines the canonical in-memory contact shape and the pure
// functions around it: normalization of backend records, the non-destructive
// merge used after updates, document validation and vCard interchange.
package contact

import (
	"strings"

	"github.com/tartampluch/go-contacts/internal/config"
)

// Contact is the canonical contact record shared by the store, the query
// engine and the UI. String fields are never absent: missing values are "".
type Contact struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	CPF          string   `json:"cpf"`
	Phone        string   `json:"phone"`
	Email        string   `json:"email"`
	ZipCode      string   `json:"zipCode"`
	State        string   `json:"state"`
	City         string   `json:"city"`
	Neighborhood string   `json:"neighborhood"`
	Address      string   `json:"address"`
	Number       string   `json:"number"`
	Complement   string   `json:"complement"`
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
}

// IsTemporary reports whether the id was assigned locally and still awaits
// the server-issued one.
func (c Contact) IsTemporary() bool {
	return strings.HasPrefix(c.ID, config.TempIDPrefix)
}

// HasLocation reports whether both coordinates are known.
func (c Contact) HasLocation() bool {
	return c.Lat != nil && c.Lng != nil
}

// Equal compares two contacts field by field, including coordinate values.
func (c Contact) Equal(o Contact) bool {
	if c.ID != o.ID || c.Name != o.Name || c.CPF != o.CPF || c.Phone != o.Phone ||
		c.Email != o.Email || c.ZipCode != o.ZipCode || c.State != o.State ||
		c.City != o.City || c.Neighborhood != o.Neighborhood || c.Address != o.Address ||
		c.Number != o.Number || c.Complement != o.Complement {
		return false
	}
	return floatPtrEqual(c.Lat, o.Lat) && floatPtrEqual(c.Lng, o.Lng)
}

// Record re-emits the contact with canonical field names. Normalizing the
// result yields the same contact.
func (c Contact) Record() map[string]any {
	rec := map[string]any{
		config.FieldID:           c.ID,
		config.FieldName:         c.Name,
		config.FieldCPF:          c.CPF,
		config.FieldPhone:        c.Phone,
		config.FieldEmail:        c.Email,
		config.FieldZipCode:      c.ZipCode,
		config.FieldState:        c.State,
		config.FieldCity:         c.City,
		config.FieldNeighborhood: c.Neighborhood,
		config.FieldAddress:      c.Address,
		config.FieldNumber:       c.Number,
		config.FieldComplement:   c.Complement,
		config.FieldLat:          nil,
		config.FieldLng:          nil,
	}
	if c.Lat != nil {
		rec[config.FieldLat] = *c.Lat
	}
	if c.Lng != nil {
		rec[config.FieldLng] = *c.Lng
	}
	return rec
}

// Float returns a pointer to v, for building coordinates inline.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to s, for building patches inline.
func String(s string) *string {
	return &s
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
