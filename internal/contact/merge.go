package contact

import "github.com/tartampluch/go-contacts/internal/config"

// Merge applies incoming over local without destroying data: a field of
// incoming wins only when it is non-empty (strings) or non-nil (coordinates).
func Merge(local, incoming Contact) Contact {
	out := local
	pick(&out.ID, incoming.ID)
	pick(&out.Name, incoming.Name)
	pick(&out.CPF, incoming.CPF)
	pick(&out.Phone, incoming.Phone)
	pick(&out.Email, incoming.Email)
	pick(&out.ZipCode, incoming.ZipCode)
	pick(&out.State, incoming.State)
	pick(&out.City, incoming.City)
	pick(&out.Neighborhood, incoming.Neighborhood)
	pick(&out.Address, incoming.Address)
	pick(&out.Number, incoming.Number)
	pick(&out.Complement, incoming.Complement)
	if incoming.Lat != nil {
		out.Lat = incoming.Lat
	}
	if incoming.Lng != nil {
		out.Lng = incoming.Lng
	}
	return out
}

func pick(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Patch is a partial update. Nil fields are left untouched; a non-nil field
// overwrites, including with the empty string.
type Patch struct {
	Name         *string
	CPF          *string
	Phone        *string
	Email        *string
	ZipCode      *string
	State        *string
	City         *string
	Neighborhood *string
	Address      *string
	Number       *string
	Complement   *string
	Lat          *float64
	Lng          *float64
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Record()) == 0
}

// Apply returns c with the patch applied.
func (p Patch) Apply(c Contact) Contact {
	set(&c.Name, p.Name)
	set(&c.CPF, p.CPF)
	set(&c.Phone, p.Phone)
	set(&c.Email, p.Email)
	set(&c.ZipCode, p.ZipCode)
	set(&c.State, p.State)
	set(&c.City, p.City)
	set(&c.Neighborhood, p.Neighborhood)
	set(&c.Address, p.Address)
	set(&c.Number, p.Number)
	set(&c.Complement, p.Complement)
	if p.Lat != nil {
		c.Lat = Float(*p.Lat)
	}
	if p.Lng != nil {
		c.Lng = Float(*p.Lng)
	}
	return c
}

// Record lists the fields carried by the patch under canonical names.
func (p Patch) Record() map[string]any {
	rec := make(map[string]any)
	put := func(key string, v *string) {
		if v != nil {
			rec[key] = *v
		}
	}
	put(config.FieldName, p.Name)
	put(config.FieldCPF, p.CPF)
	put(config.FieldPhone, p.Phone)
	put(config.FieldEmail, p.Email)
	put(config.FieldZipCode, p.ZipCode)
	put(config.FieldState, p.State)
	put(config.FieldCity, p.City)
	put(config.FieldNeighborhood, p.Neighborhood)
	put(config.FieldAddress, p.Address)
	put(config.FieldNumber, p.Number)
	put(config.FieldComplement, p.Complement)
	if p.Lat != nil {
		rec[config.FieldLat] = *p.Lat
	}
	if p.Lng != nil {
		rec[config.FieldLng] = *p.Lng
	}
	return rec
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
