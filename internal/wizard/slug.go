package wizard

import (
	"strings"
	"unicode"
)

const maxSlugBase = 48

// Slug derives the human-readable identifier of a draft from the
// organization name and the draft id, e.g. "kibera-youth-group-3f2a9c1d".
// Without a usable name it falls back to "ga-<8 hex>".
func Slug(organizationName, id string) string {
	suffix := shortID(id)
	base := kebab(organizationName)
	if base == "" {
		return "ga-" + suffix
	}
	return base + "-" + suffix
}

func shortID(id string) string {
	s := strings.ReplaceAll(id, "-", "")
	if len(s) > 8 {
		s = s[:8]
	}
	return strings.ToLower(s)
}

func kebab(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
		if b.Len() >= maxSlugBase {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
