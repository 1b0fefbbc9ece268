// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textclean normalizes free text returned by the directory:
// compatibility normalization, mojibake and typographic punctuation
// replacement, and whitespace collapsing.
package textclean

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var punct = strings.NewReplacer(
	"‚Äì", "-", // UTF-8 en dash decoded as Mac Roman
	"–", "-",
	"—", "-",
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
)

// Clean applies NFKC, replaces dashes and curly quotes with ASCII, and
// collapses runs of whitespace to a single space.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	t := punct.Replace(norm.NFKC.String(s))
	return strings.Join(strings.Fields(t), " ")
}

// Normalizer adapts Clean to the fetcher's normalizer interface.
type Normalizer struct{}

// Normalize implements fetch.Normalizer.
func (Normalizer) Normalize(s string) string { return Clean(s) }

var (
	slugDrop  = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpace = regexp.MustCompile(`\s+`)
	slugDash  = regexp.MustCompile(`-{2,}`)
)

// Slugify returns a lowercase ASCII, hyphen-separated form of s suitable
// for filenames.
func Slugify(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	ascii, _, err := transform.String(t, s)
	if err != nil {
		ascii = s
	}
	ascii = slugDrop.ReplaceAllString(strings.ToLower(ascii), "")
	ascii = slugSpace.ReplaceAllString(ascii, "-")
	return strings.Trim(slugDash.ReplaceAllString(ascii, "-"), "-")
}
