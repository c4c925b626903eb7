package cfb

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// upperFold applies cases.Upper with language.Und, which does not depend on
// any platform locale. It is the full Unicode uppercase mapping, not the
// simple one-to-one mapping: a few characters expand to several code units
// (for example ß becomes SS), so names containing them are compared over
// their expanded uppercase forms.
var upperFold = cases.Upper(language.Und)

// compareNames implements CFB's directory name ordering (spec.md §4.4):
// shorter UTF-16 code-unit length sorts first; on equal length, compare the
// upperFold forms code unit by code unit. It returns a value <0, 0,
// or >0, the same convention as strings.Compare, and is total, transitive,
// and case-insensitive.
func compareNames(a, b string) int {
	au, bu := utf16Units(a), utf16Units(b)
	if len(au) != len(bu) {
		if len(au) < len(bu) {
			return -1
		}
		return 1
	}
	af, bf := upperFold.String(a), upperFold.String(b)
	afu, bfu := utf16Units(af), utf16Units(bf)
	n := len(afu)
	if len(bfu) < n {
		n = len(bfu)
	}
	for i := 0; i < n; i++ {
		if afu[i] != bfu[i] {
			if afu[i] < bfu[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(afu) < len(bfu):
		return -1
	case len(afu) > len(bfu):
		return 1
	default:
		return 0
	}
}

// utf16Units returns s's UTF-16 code units, matching the on-disk
// representation the CFB ordering rule compares over.
func utf16Units(s string) []uint16 {
	units := make([]uint16, 0, len(s))
	for _, r := range s {
		if r <= 0xFFFF {
			units = append(units, uint16(r))
			continue
		}
		r -= 0x10000
		units = append(units, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return units
}
