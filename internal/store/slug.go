package store

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxSlugPrefix bounds the readable part of a public slug.
const maxSlugPrefix = 40

var slugEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewPublicSlug mints a public slug: the slugified title followed by 128 random
// bits, so the link is readable but cannot be guessed or enumerated.
func NewPublicSlug(title string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating slug: %w", err)
	}
	suffix := strings.ToLower(slugEncoding.EncodeToString(buf))

	prefix := Slugify(title)
	if prefix == "" {
		return suffix, nil
	}
	return prefix + "-" + suffix, nil
}

// Slugify lowercases s, strips diacritics and joins the remaining ASCII
// letters and digits with single dashes.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	pendingDash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			if b.Len() >= maxSlugPrefix {
				break
			}
			continue
		}
		pendingDash = true
	}
	return b.String()
}
