// Package language defines the closed set of subtitle languages the service
// supports and the normalization policy applied wherever a language code
// enters the system.
package language

import "strings"

const (
	// Primary is the default subtitle language.
	Primary = "en"
	// Secondary is the only other supported subtitle language.
	Secondary = "ko"
)

// Supported reports whether code names one of the two supported languages.
// Comparison is case-insensitive and tolerates region suffixes ("en-US").
func Supported(code string) bool {
	c := base(code)
	return c == Primary || c == Secondary
}

// Normalize maps any language code onto the supported pair. Unknown, empty or
// malformed codes fall back to the primary language; they are never passed
// through unchanged.
func Normalize(code string) string {
	c := base(code)
	if c == Secondary {
		return Secondary
	}
	return Primary
}

func base(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(c, "-_"); i > 0 {
		c = c[:i]
	}
	return c
}
