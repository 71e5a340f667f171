package server

import "net/netip"

// Notification is a control message for the server loop.
type Notification interface {
	isNotification()
}

// Shutdown stops the loop. It has no reply.
type Shutdown struct{}

// Reload re-reads the records file the server was started with. It has no
// reply; failures are reported through the Notifier.
type Reload struct{}

// ARecordQuery resolves Host against the live records. The result is sent on
// Reply, which should have room for one value.
type ARecordQuery struct {
	Host  string
	Reply chan<- LookupResult
}

// LookupResult answers an ARecordQuery.
type LookupResult struct {
	Addr netip.Addr
	Err  error
}

// MergeRecords loads Path and merges it over the live records. The load
// error, or nil, is sent on Reply, which should have room for one value.
type MergeRecords struct {
	Path  string
	Reply chan<- error
}

func (Shutdown) isNotification()     {}
func (Reload) isNotification()       {}
func (ARecordQuery) isNotification() {}
func (MergeRecords) isNotification() {}
