package contact

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/emersion/go-vcard"
	"github.com/tartampluch/go-contacts/internal/config"
)

// EncodeVCards writes contacts as a vCard 4.0 stream.
func EncodeVCards(w io.Writer, list []Contact) error {
	enc := vcard.NewEncoder(w)
	for _, c := range list {
		if err := enc.Encode(ToCard(c)); err != nil {
			return fmt.Errorf("%s: %w", config.ErrVCardEncode, err)
		}
	}
	return nil
}

// ToCard converts a contact into a vCard.
func ToCard(c Contact) vcard.Card {
	card := make(vcard.Card)
	card.SetValue(vcard.FieldFormattedName, c.Name)
	if c.ID != "" && !c.IsTemporary() {
		card.SetValue(vcard.FieldUID, c.ID)
	}
	if c.Email != "" {
		card.SetValue(vcard.FieldEmail, c.Email)
	}
	if c.Phone != "" {
		card.SetValue(vcard.FieldTelephone, c.Phone)
	}
	if c.CPF != "" {
		card.SetValue(config.VCardXCPF, c.CPF)
	}
	if c.Number != "" {
		card.SetValue(config.VCardXNumber, c.Number)
	}
	if c.Neighborhood != "" {
		card.SetValue(config.VCardXNeighborhood, c.Neighborhood)
	}
	if c.Address != "" || c.City != "" || c.State != "" || c.ZipCode != "" || c.Complement != "" {
		card.AddAddress(&vcard.Address{
			ExtendedAddress: c.Complement,
			StreetAddress:   c.Address,
			Locality:        c.City,
			Region:          c.State,
			PostalCode:      c.ZipCode,
			Country:         config.VCardCountry,
		})
	}
	if c.HasLocation() {
		card.SetValue(vcard.FieldGeolocation, fmt.Sprintf(config.VCardGeoURI, *c.Lat, *c.Lng))
	}
	vcard.ToV4(card)
	return card
}

// DecodeVCards reads every card of r. Malformed cards are skipped and logged
// so a single bad entry does not abort an import; a stream that keeps failing
// is reported as an error.
func DecodeVCards(r io.Reader) ([]Contact, error) {
	dec := vcard.NewDecoder(r)
	var out []Contact
	failures := 0
	for {
		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			failures++
			if failures >= config.MaxVCardFailures {
				return out, fmt.Errorf("%s: %w", config.ErrVCardParse, err)
			}
			slog.Warn(config.MsgSkippedCard,
				config.LogKeyComponent, config.CompContact,
				config.LogKeyError, err)
			continue
		}
		failures = 0
		out = append(out, FromCard(card))
	}
	return out, nil
}

// FromCard converts a vCard into a contact draft.
func FromCard(card vcard.Card) Contact {
	c := Contact{
		ID:           card.Value(vcard.FieldUID),
		Name:         card.Value(vcard.FieldFormattedName),
		Email:        card.PreferredValue(vcard.FieldEmail),
		Phone:        card.PreferredValue(vcard.FieldTelephone),
		CPF:          card.Value(config.VCardXCPF),
		Number:       card.Value(config.VCardXNumber),
		Neighborhood: card.Value(config.VCardXNeighborhood),
	}
	if c.Name == "" {
		if n := card.Name(); n != nil {
			c.Name = strings.TrimSpace(n.GivenName + " " + n.FamilyName)
		}
	}
	if addr := card.Address(); addr != nil {
		c.Address = addr.StreetAddress
		c.Complement = addr.ExtendedAddress
		c.City = addr.Locality
		c.State = addr.Region
		c.ZipCode = addr.PostalCode
	}
	c.Lat, c.Lng = parseGeo(card.Value(vcard.FieldGeolocation))
	return c
}

// parseGeo reads "geo:lat,lng" (RFC 5870), ignoring any parameters.
func parseGeo(v string) (*float64, *float64) {
	v = strings.TrimPrefix(strings.TrimSpace(v), config.VCardGeoPfx)
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	parts := strings.Split(v, ",")
	if len(parts) < 2 {
		return nil, nil
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	return &lat, &lng
}
