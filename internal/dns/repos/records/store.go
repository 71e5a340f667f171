// Package records holds the hostname to IPv4 table the responder serves.
//
// A Store is immutable once built. Reload and merge produce a new Store with
// a new version; the previous one stays valid for anyone still holding it.
package records

import (
	"net/netip"
	"sort"
	"sync/atomic"
	"time"
)

var versionSeq atomic.Uint64

// Store is one immutable version of the records table.
type Store struct {
	entries  map[string]netip.Addr
	hosts    []string
	source   string
	loadedAt time.Time
	version  uint64
	index    *index
	opts     options
}

// New builds a Store from entries as given; no suffix filtering is applied.
// The map is copied.
func New(entries map[string]netip.Addr, source string, opts ...Option) *Store {
	o := buildOptions(opts)
	copied := make(map[string]netip.Addr, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return newStore(copied, source, o)
}

// newStore takes ownership of entries.
func newStore(entries map[string]netip.Addr, source string, o options) *Store {
	hosts := make([]string, 0, len(entries))
	for h := range entries {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	s := &Store{
		entries:  entries,
		hosts:    hosts,
		source:   source,
		loadedAt: o.clock.Now(),
		version:  versionSeq.Add(1),
		opts:     o,
	}
	s.index = newIndex(hosts, o)
	return s
}

// Merge returns a new Store holding every entry of existing, overwritten by
// every entry of incoming. Neither input is modified. The result keeps the
// source and options of existing.
func Merge(existing, incoming *Store) *Store {
	if existing == nil {
		existing = New(nil, "")
	}
	merged := make(map[string]netip.Addr, existing.Len()+incoming.Len())
	for k, v := range existing.entries {
		merged[k] = v
	}
	if incoming != nil {
		for k, v := range incoming.entries {
			merged[k] = v
		}
	}
	return newStore(merged, existing.source, existing.opts)
}

// Get returns the address stored for exactly host.
func (s *Store) Get(host string) (netip.Addr, bool) {
	if s == nil {
		return netip.Addr{}, false
	}
	addr, ok := s.entries[host]
	return addr, ok
}

// Lookup returns the address for name or its closest registered parent
// domain. When several keys match, the longest one wins.
func (s *Store) Lookup(name string) (netip.Addr, bool) {
	if s == nil || len(s.entries) == 0 {
		return netip.Addr{}, false
	}
	return s.index.lookup(name, s.entries)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Hosts returns the hostnames in sorted order.
func (s *Store) Hosts() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.hosts))
	copy(out, s.hosts)
	return out
}

// Entries returns a copy of the table.
func (s *Store) Entries() map[string]netip.Addr {
	out := make(map[string]netip.Addr, s.Len())
	if s == nil {
		return out
	}
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Source is the path the store was loaded from.
func (s *Store) Source() string { return s.source }

// LoadedAt is when the store was built.
func (s *Store) LoadedAt() time.Time { return s.loadedAt }

// Version increases with every Store built in this process.
func (s *Store) Version() uint64 { return s.version }
