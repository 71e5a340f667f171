package utils

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// TrimHostname strips surrounding whitespace and any trailing root dots.
// Unlike a canonical DNS name, case is preserved: records keys are
// case-sensitive.
func TrimHostname(name string) string {
	name = strings.TrimSpace(name)
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// MatchesHost reports whether name is key itself or a subdomain of key.
func MatchesHost(name, key string) bool {
	if key == "" {
		return false
	}
	return name == key || strings.HasSuffix(name, "."+key)
}

// Ancestors returns name followed by every parent domain obtained by dropping
// the leftmost label, most specific first: "a.b.local" yields
// ["a.b.local", "b.local", "local"].
func Ancestors(name string) []string {
	if name == "" {
		return nil
	}
	out := []string{name}
	for {
		i := strings.IndexByte(name, '.')
		if i < 0 || i == len(name)-1 {
			return out
		}
		name = name[i+1:]
		out = append(out, name)
	}
}

// IsICANNSuffix reports whether suffix names a domain managed under the ICANN
// section of the public suffix list, such as ".com". Serving such a suffix
// locally shadows real internet names.
func IsICANNSuffix(suffix string) bool {
	name := strings.ToLower(strings.Trim(suffix, ". "))
	if name == "" {
		return false
	}
	ps, icann := publicsuffix.PublicSuffix(name)
	return icann && ps == name
}
