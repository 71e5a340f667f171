package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimHostname(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"host.local", "host.local"},
		{"host.local.", "host.local"},
		{"  Host.Local..  ", "Host.Local"},
		{"", ""},
		{".", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, TrimHostname(tt.input))
		})
	}
}

func TestMatchesHost(t *testing.T) {
	tests := []struct {
		name  string
		query string
		key   string
		want  bool
	}{
		{"exact", "registered.local", "registered.local", true},
		{"subdomain", "sub.registered.local", "registered.local", true},
		{"deep subdomain", "a.b.registered.local", "registered.local", true},
		{"shares tail without dot", "not-registered.local", "registered.local", false},
		{"different", "other.local", "registered.local", false},
		{"case sensitive", "Registered.local", "registered.local", false},
		{"empty key", "registered.local", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesHost(tt.query, tt.key))
		})
	}
}

func TestAncestors(t *testing.T) {
	assert.Equal(t, []string{"a.b.local", "b.local", "local"}, Ancestors("a.b.local"))
	assert.Equal(t, []string{"local"}, Ancestors("local"))
	assert.Equal(t, []string{"trailing."}, Ancestors("trailing."))
	assert.Nil(t, Ancestors(""))
}

func TestIsICANNSuffix(t *testing.T) {
	tests := []struct {
		suffix string
		want   bool
	}{
		{".com", true},
		{".org", true},
		{".local", false},
		{".loc", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.suffix, func(t *testing.T) {
			assert.Equal(t, tt.want, IsICANNSuffix(tt.suffix))
		})
	}
}
