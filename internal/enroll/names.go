package enroll

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// IdentityKey normalizes a name to the registry key: lowercase ASCII
// letters and digits joined by single underscores.
func IdentityKey(name string) string {
	name = strings.ToLower(RemoveDiacritics(name))
	var b strings.Builder
	pendingSep := false
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}

// DisplayName turns a photo file stem into a human name ("jiri-novak" -> "Jiri Novak").
// Diacritics are kept.
func DisplayName(stem string) string {
	fields := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})
	return cases.Title(language.Und).String(strings.Join(fields, " "))
}

// NameFromFile returns the identity key and display name for a labeled photo.
func NameFromFile(path string) (key, display string) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return IdentityKey(stem), DisplayName(stem)
}
