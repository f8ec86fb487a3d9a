// Package phone turns phone numbers typed by people or stored in the sheet
// into the digit-only international form the WhatsApp API expects.
//
// Normalization is purely textual. It never validates that the result is a
// dialable number; IsValidWhatsAppPhone is the separate, opt-in check.
package phone

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"
)

// DefaultCountryCode is used by the helpers that take no explicit code.
const DefaultCountryCode = "212"

var digitsOnly = regexp.MustCompile(`^\d+$`)

// Normalize converts raw into digits prefixed with a country code.
//
// The length checks are exact: a 10 character number starting with 0 is
// treated as a national number, a 9 character number without the country
// code gets it prepended, anything else is returned as cleaned.
func Normalize(raw, defaultCountryCode string) string {
	if raw == "" {
		return ""
	}

	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, cleaned)

	cleaned = strings.TrimPrefix(cleaned, "+")
	cleaned = strings.TrimPrefix(cleaned, "00")

	length := utf8.RuneCountInString(cleaned)
	if strings.HasPrefix(cleaned, "0") && length == 10 {
		cleaned = defaultCountryCode + cleaned[1:]
	} else if !strings.HasPrefix(cleaned, defaultCountryCode) && length == 9 {
		cleaned = defaultCountryCode + cleaned
	}

	return cleaned
}

// IsValidWhatsAppPhone reports whether raw normalizes to 10 to 15 digits.
func IsValidWhatsAppPhone(raw string) bool {
	return IsValidNormalized(Normalize(raw, DefaultCountryCode))
}

// IsValidNormalized applies the WhatsApp check to a number that was already
// normalized, with whatever country code the caller used.
func IsValidNormalized(normalized string) bool {
	n := len(normalized)
	return n >= 10 && n <= 15 && digitsOnly.MatchString(normalized)
}

// FormatDisplay renders a number for people, e.g. "+212 679752339".
// The first three digits are assumed to be the country code. Never compare
// or send the returned value.
func FormatDisplay(raw string) string {
	if raw == "" {
		return ""
	}
	return DisplayNormalized(Normalize(raw, DefaultCountryCode))
}

// DisplayNormalized renders an already normalized number without running
// Normalize again.
func DisplayNormalized(normalized string) string {
	if normalized == "" {
		return ""
	}
	if utf8.RuneCountInString(normalized) >= 10 {
		runes := []rune(normalized)
		return "+" + string(runes[:3]) + " " + string(runes[3:])
	}
	return "+" + normalized
}

// DigitsOnly drops every non-digit character.
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// Region returns the ISO region code of a normalized number ("MA" for
// 212...), or "" when the number cannot be attributed.
func Region(normalized string) string {
	if normalized == "" {
		return ""
	}
	num, err := phonenumbers.Parse("+"+DigitsOnly(normalized), "")
	if err != nil {
		return ""
	}
	return phonenumbers.GetRegionCodeForNumber(num)
}

// Row is a loosely typed record as delivered by the sheet endpoint.
type Row map[string]any

// NormalizeBatch returns copies of rows with field replaced by its
// normalized value. The input slice and its rows are left untouched.
func NormalizeBatch(rows []Row, field, defaultCountryCode string) []Row {
	out := make([]Row, len(rows))
	for i, row := range rows {
		cp := make(Row, len(row)+1)
		for k, v := range row {
			cp[k] = v
		}
		cp[field] = Normalize(text(row[field]), defaultCountryCode)
		out[i] = cp
	}
	return out
}

// text coerces a sheet cell to a string. Sheets hand numeric-looking phone
// cells back as JSON numbers.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		if s, ok := v.(interface{ String() string }); ok {
			return s.String()
		}
		return ""
	}
}
