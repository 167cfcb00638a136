package contact

import (
	"regexp"
	"strings"

	"github.com/tartampluch/go-contacts/internal/config"
)

// Address is a lookup result: either an autocomplete suggestion or the
// single record returned for a postal code.
type Address struct {
	ID            string   `json:"id"`
	PlaceID       string   `json:"placeId"`
	Description   string   `json:"description"`
	MainText      string   `json:"mainText"`
	SecondaryText string   `json:"secondaryText"`
	ZipCode       string   `json:"zipCode"`
	State         string   `json:"state"`
	City          string   `json:"city"`
	Neighborhood  string   `json:"neighborhood"`
	Address       string   `json:"address"`
	Lat           *float64 `json:"lat"`
	Lng           *float64 `json:"lng"`
}

var (
	// "Rua X, Centro, Curitiba - PR" -> Curitiba
	secondaryCityRe = regexp.MustCompile(`,\s*([^,-]+?)\s*-\s*[A-Z]{2}`)
	// "... - PR" -> PR
	secondaryStateRe = regexp.MustCompile(`-\s*([A-Z]{2})\b`)
)

// NormalizeAddress maps a suggestion or postal code record onto Address.
// City, state and neighborhood fall back to heuristics over secondaryText
// when the backend does not send them explicitly.
func NormalizeAddress(rec map[string]any) Address {
	secondary := text(rec, config.FieldSecondaryText)
	description := text(rec, config.FieldDescription)
	id := text(rec, config.FieldPlaceID, config.FieldID)

	a := Address{
		ID:            id,
		PlaceID:       id,
		Description:   description,
		MainText:      text(rec, config.FieldMainText),
		SecondaryText: secondary,
		ZipCode:       Digits(text(rec, config.FieldZipCode, config.FieldZipCodeSnake, config.FieldCEP)),
		State:         text(rec, config.FieldState, config.FieldUF),
		City:          text(rec, config.FieldCity, config.FieldLocality, config.FieldLocalidade, config.FieldCidade),
		Neighborhood:  text(rec, config.FieldNeighborhood, config.FieldBairro),
		Address:       text(rec, config.FieldAddress, config.FieldLogradouro),
		Lat:           coord(rec, config.FieldLatitudeReal, config.FieldLat, config.FieldLatitude),
		Lng:           coord(rec, config.FieldLongitudeReal, config.FieldLng, config.FieldLongitude),
	}

	if a.MainText == "" {
		a.MainText = termValue(rec, 0)
	}
	if a.City == "" {
		if m := secondaryCityRe.FindStringSubmatch(secondary); m != nil {
			a.City = strings.TrimSpace(m[1])
		}
	}
	if a.State == "" {
		if m := secondaryStateRe.FindStringSubmatch(secondary); m != nil {
			a.State = m[1]
		}
	}
	if a.Neighborhood == "" {
		a.Neighborhood = termValue(rec, 1)
	}
	if a.Neighborhood == "" && secondary != "" {
		a.Neighborhood = strings.TrimSpace(strings.Split(secondary, ",")[0])
	}
	if a.Address == "" {
		a.Address = a.MainText
	}
	if a.Address == "" && description != "" {
		a.Address = strings.Split(description, " - ")[0]
	}
	return a
}

// NormalizeAddresses normalizes every object in list.
func NormalizeAddresses(list []any) []Address {
	out := make([]Address, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, NormalizeAddress(rec))
		}
	}
	return out
}

// ApplyTo copies the address fields of a onto c, keeping what a lacks.
func (a Address) ApplyTo(c Contact) Contact {
	return Merge(c, Contact{
		ZipCode:      a.ZipCode,
		State:        a.State,
		City:         a.City,
		Neighborhood: a.Neighborhood,
		Address:      a.Address,
		Lat:          a.Lat,
		Lng:          a.Lng,
	})
}

// termValue reads terms[i].value from autocomplete payloads.
func termValue(rec map[string]any, i int) string {
	terms, ok := rec[config.FieldTerms].([]any)
	if !ok || i >= len(terms) {
		return ""
	}
	term, ok := terms[i].(map[string]any)
	if !ok {
		return ""
	}
	return text(term, config.FieldValue)
}
