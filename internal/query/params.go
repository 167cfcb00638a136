package query

import (
	"net/url"
	"strings"

	"github.com/tartampluch/go-contacts/internal/config"
)

// Params is the canonical lookup input. Every accepted alias is folded into
// these three fields before any other logic runs.
type Params struct {
	Query    string
	State    string
	Locality string
}

// ParseParams accepts the historical parameter names: state or uf, locality
// or city or cidade, query or q. The first non-empty alias wins.
func ParseParams(m map[string]string) Params {
	return Params{
		Query:    firstOf(m, config.FieldQuery, config.FieldQ),
		State:    firstOf(m, config.FieldState, config.FieldUF),
		Locality: firstOf(m, config.FieldLocality, config.FieldCity, config.FieldCidade),
	}
}

// Scoped reports whether a state or a locality narrows the lookup.
func (p Params) Scoped() bool {
	return strings.TrimSpace(p.State) != "" || strings.TrimSpace(p.Locality) != ""
}

// Values emits the parameters under every name the suggestion endpoint has
// understood over time. Empty fields are omitted.
func (p Params) Values() url.Values {
	v := url.Values{}
	add := func(value string, keys ...string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		for _, k := range keys {
			v.Set(k, value)
		}
	}
	add(p.State, config.FieldUF, config.FieldState)
	add(p.Locality, config.FieldCidade, config.FieldCity, config.FieldLocality)
	add(p.Query, config.FieldQ, config.FieldQuery)
	return v
}

func firstOf(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}
