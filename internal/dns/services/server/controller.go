package server

import (
	"context"
	"net/netip"
)

// Controller sends control notifications to a running Server. It is a small
// value and may be copied freely.
type Controller struct {
	ch   chan<- Notification
	done <-chan struct{}
}

// Shutdown asks the server to stop.
func (c Controller) Shutdown(ctx context.Context) error {
	return c.send(ctx, Shutdown{})
}

// Reload asks the server to re-read its records file. Load failures are
// reported by the server, not returned here.
func (c Controller) Reload(ctx context.Context) error {
	return c.send(ctx, Reload{})
}

// Lookup resolves host the way a DNS client querying the server would see it.
func (c Controller) Lookup(ctx context.Context, host string) (netip.Addr, error) {
	reply := make(chan LookupResult, 1)
	if err := c.send(ctx, ARecordQuery{Host: host, Reply: reply}); err != nil {
		return netip.Addr{}, err
	}
	select {
	case res := <-reply:
		return res.Addr, res.Err
	case <-c.done:
		select {
		case res := <-reply:
			return res.Addr, res.Err
		default:
			return netip.Addr{}, ErrServerStopped
		}
	case <-ctx.Done():
		return netip.Addr{}, ctx.Err()
	}
}

// Merge loads the records file at path and merges it over the live records.
func (c Controller) Merge(ctx context.Context, path string) error {
	reply := make(chan error, 1)
	if err := c.send(ctx, MergeRecords{Path: path, Reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrServerStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c Controller) send(ctx context.Context, n Notification) error {
	select {
	case <-c.done:
		return ErrServerStopped
	default:
	}
	select {
	case c.ch <- n:
		return nil
	case <-c.done:
		return ErrServerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
