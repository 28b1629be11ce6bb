package identifiers

import (
	"strings"
	"unicode"
)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "", "\t", "")

// Normalize returns the canonical form of value for kind so that equal
// identifiers compare equal regardless of formatting. It is idempotent.
func Normalize(kind Kind, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	switch kind {
	case KindNRC:
		return strings.ToUpper(strings.Join(strings.Fields(value), ""))
	case KindTPIN:
		return digitsOnly(value)
	case KindPhone:
		p := phoneSeparators.Replace(value)
		if strings.HasPrefix(p, "0") {
			p = "+260" + p[1:]
		}
		return p
	case KindEmail:
		return strings.ToLower(value)
	default:
		return value
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}
