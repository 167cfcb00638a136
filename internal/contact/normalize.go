package contact

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/tartampluch/go-contacts/internal/config"
)

// NormalizeValue normalizes raw when it is a JSON object. For any other input
// it returns false and the caller keeps the raw value as is.
func NormalizeValue(raw any) (Contact, bool) {
	rec, ok := raw.(map[string]any)
	if !ok || rec == nil {
		return Contact{}, false
	}
	return Normalize(rec), true
}

// Normalize maps a backend record onto the canonical Contact. It tolerates
// snake_case and camelCase names, locality aliases and both coordinate
// encodings. It never fails: missing or invalid fields become "" or nil.
func Normalize(rec map[string]any) Contact {
	return Contact{
		ID:           text(rec, config.FieldID),
		Name:         text(rec, config.FieldName),
		CPF:          text(rec, config.FieldCPF),
		Phone:        text(rec, config.FieldPhone),
		Email:        text(rec, config.FieldEmail),
		ZipCode:      text(rec, config.FieldZipCode, config.FieldZipCodeSnake),
		State:        text(rec, config.FieldState),
		City:         text(rec, config.FieldCity, config.FieldLocality, config.FieldCidade),
		Neighborhood: text(rec, config.FieldNeighborhood),
		Address:      text(rec, config.FieldAddress),
		Number:       text(rec, config.FieldNumber),
		Complement:   text(rec, config.FieldComplement),
		Lat:          coord(rec, config.FieldLatitudeReal, config.FieldLat, config.FieldLatitude),
		Lng:          coord(rec, config.FieldLongitudeReal, config.FieldLng, config.FieldLongitude),
	}
}

// NormalizeAll normalizes every object in list, dropping entries that are not
// objects.
func NormalizeAll(list []any) []Contact {
	out := make([]Contact, 0, len(list))
	for _, item := range list {
		if c, ok := NormalizeValue(item); ok {
			out = append(out, c)
		}
	}
	return out
}

// RescaleCoord converts a 1e6 fixed-point coordinate to degrees. Values whose
// magnitude is at most 1000 are already degrees and pass through.
func RescaleCoord(v float64) float64 {
	if math.Abs(v) > config.CoordScaledThreshold {
		return v / config.CoordScale
	}
	return v
}

// ScaleCoord is the inverse encoding used by the backend write path.
func ScaleCoord(v float64) int64 {
	return int64(math.Round(v * config.CoordScale))
}

// Text returns the first non-empty value among keys, rendering numbers as
// strings. Other value types are ignored.
func Text(rec map[string]any, keys ...string) string {
	return text(rec, keys...)
}

func text(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(rec[k]); s != "" {
			return s
		}
	}
	return ""
}

// coord returns the first numeric value among keys, rescaled to degrees.
func coord(rec map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		if v, ok := asNumber(rec[k]); ok {
			v = RescaleCoord(v)
			return &v
		}
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func asNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
