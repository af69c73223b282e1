// Package contacts maps display names to email addresses.
package contacts

import "strings"

// Directory is an immutable name -> email lookup. Names are matched
// case-insensitively; unknown tokens are returned unchanged on the
// assumption that they already are addresses.
type Directory struct {
	byName map[string]string
}

// NewDirectory copies entries, lowercasing the names. When two names only
// differ by case the later one in iteration order wins, so configs should
// not rely on that.
func NewDirectory(entries map[string]string) *Directory {
	d := &Directory{byName: make(map[string]string, len(entries))}
	for name, email := range entries {
		d.byName[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(email)
	}
	return d
}

// Resolve never fails.
func (d *Directory) Resolve(token string) string {
	if email, ok := d.byName[strings.ToLower(strings.TrimSpace(token))]; ok {
		return email
	}
	return token
}

// ResolveAll keeps order and duplicates.
func (d *Directory) ResolveAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = d.Resolve(t)
	}
	return out
}

// Len returns the number of known names.
func (d *Directory) Len() int { return len(d.byName) }
