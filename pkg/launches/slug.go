package launches

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, drops combining marks, and recomposes, so
// accented characters slug to their plain ASCII base.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify converts a mission name into a lowercase-hyphenated slug.
func Slugify(name string) string {
	if folded, _, err := transform.String(stripMarks, name); err == nil {
		name = folded
	}
	var b strings.Builder
	b.Grow(len(name))
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// DeriveSlug builds a slug for a record that arrived without one. The launch
// date, when known, is appended so that reflown mission names (Starlink
// batches, CRS flights) stay distinct.
func DeriveSlug(missionName, launchDate string) string {
	slug := Slugify(missionName)
	if slug == "" {
		return ""
	}
	if date := Slugify(launchDate); len(date) >= 10 {
		// keep just the date portion of a timestamp
		return slug + "-" + date[:10]
	}
	return slug
}
