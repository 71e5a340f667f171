package records

import (
	"fmt"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addrs(m map[string]string) map[string]netip.Addr {
	out := make(map[string]netip.Addr, len(m))
	for k, v := range m {
		out[k] = netip.MustParseAddr(v)
	}
	return out
}

func TestStore_Lookup(t *testing.T) {
	store := New(addrs(map[string]string{
		"registered.local": "192.168.0.1",
		"b.local":          "10.0.0.2",
		"a.b.local":        "10.0.0.1",
	}), "src")

	tests := []struct {
		name   string
		query  string
		want   string
		wantOK bool
	}{
		{"exact", "registered.local", "192.168.0.1", true},
		{"subdomain", "sub.registered.local", "192.168.0.1", true},
		{"deep subdomain", "x.y.registered.local", "192.168.0.1", true},
		{"longest match wins", "x.a.b.local", "10.0.0.1", true},
		{"shorter key", "x.b.local", "10.0.0.2", true},
		{"exact shorter key", "b.local", "10.0.0.2", true},
		{"label boundary", "notregistered.local", "", false},
		{"unknown", "other.local", "", false},
		{"suffix only", "local", "", false},
		{"empty", "", "", false},
		{"case sensitive", "Registered.local", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// twice, so the second pass is served by the memo
			for i := 0; i < 2; i++ {
				got, ok := store.Lookup(tt.query)
				assert.Equal(t, tt.wantOK, ok)
				if tt.wantOK {
					assert.Equal(t, netip.MustParseAddr(tt.want), got)
				}
			}
		})
	}
}

func TestStore_LookupWithoutMemo(t *testing.T) {
	store := New(addrs(map[string]string{"host.local": "10.0.0.1"}), "src", WithCacheSize(0))
	assert.Nil(t, store.index.memo)
	got, ok := store.Lookup("www.host.local")
	assert.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), got)
}

func TestStore_LookupManyKeys(t *testing.T) {
	entries := make(map[string]netip.Addr)
	for i := 0; i < 1000; i++ {
		entries[fmt.Sprintf("h%04d.local", i)] = netip.AddrFrom4([4]byte{10, 0, byte(i >> 8), byte(i)})
	}
	store := New(entries, "src", WithCacheSize(8), WithFalsePositiveRate(0.05))

	for host, want := range entries {
		got, ok := store.Lookup("www." + host)
		require.True(t, ok, host)
		assert.Equal(t, want, got)
	}
	_, ok := store.Lookup("h9999.local")
	assert.False(t, ok)
}

func TestStore_Accessors(t *testing.T) {
	var nilStore *Store
	assert.Equal(t, 0, nilStore.Len())
	assert.Nil(t, nilStore.Hosts())
	assert.Empty(t, nilStore.Entries())
	_, ok := nilStore.Lookup("a.local")
	assert.False(t, ok)
	_, ok = nilStore.Get("a.local")
	assert.False(t, ok)

	in := addrs(map[string]string{"b.local": "10.0.0.2", "a.local": "10.0.0.1"})
	store := New(in, "src")
	in["c.local"] = netip.MustParseAddr("10.0.0.3")
	assert.Equal(t, 2, store.Len(), "input map is copied")

	assert.Equal(t, []string{"a.local", "b.local"}, store.Hosts())

	entries := store.Entries()
	delete(entries, "a.local")
	_, ok = store.Get("a.local")
	assert.True(t, ok, "Entries returns a copy")

	hosts := store.Hosts()
	hosts[0] = "mutated"
	assert.Equal(t, "a.local", store.Hosts()[0], "Hosts returns a copy")

	other := New(nil, "src")
	assert.Greater(t, other.Version(), store.Version())
}

func TestMerge(t *testing.T) {
	existing := New(addrs(map[string]string{
		"keep.local":  "10.0.0.1",
		"clash.local": "10.0.0.2",
	}), "existing-src")
	incoming := New(addrs(map[string]string{
		"clash.local": "192.168.1.2",
		"new.local":   "192.168.1.3",
	}), "incoming-src")

	merged := Merge(existing, incoming)

	assert.Equal(t, addrs(map[string]string{
		"keep.local":  "10.0.0.1",
		"clash.local": "192.168.1.2",
		"new.local":   "192.168.1.3",
	}), merged.Entries())
	assert.Equal(t, "existing-src", merged.Source())
	assert.Greater(t, merged.Version(), incoming.Version())

	// inputs untouched
	got, _ := existing.Get("clash.local")
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), got)
	_, ok := existing.Get("new.local")
	assert.False(t, ok)
	assert.Equal(t, 2, incoming.Len())

	// lookups on the merged store see the new keys
	addr, ok := merged.Lookup("www.new.local")
	assert.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("192.168.1.3"), addr)

	assert.Equal(t, 2, Merge(nil, incoming).Len())
	assert.Equal(t, 2, Merge(existing, nil).Len())
}

func TestSize(t *testing.T) {
	tests := []struct {
		n     uint64
		p     float64
		wantM uint64
		wantK uint8
	}{
		{n: 1000, p: 0.01, wantM: 9586, wantK: 7},
		{n: 0, p: 0.01, wantM: 10, wantK: 7},
		{n: 100, p: 2, wantM: 959, wantK: 7},
	}
	for _, tt := range tests {
		m, k := size(tt.n, tt.p)
		assert.Equal(t, tt.wantM, m, "m for n=%d p=%v", tt.n, tt.p)
		assert.Equal(t, tt.wantK, k, "k for n=%d p=%v", tt.n, tt.p)
	}
}
