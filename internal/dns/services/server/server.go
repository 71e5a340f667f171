// Package server runs the responder: one goroutine owns the records table,
// answers datagrams from the transport, and applies control notifications.
// Pending notifications are always handled before the next datagram.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/haukened/localdns/internal/dns/common/clock"
	"github.com/haukened/localdns/internal/dns/common/log"
	"github.com/haukened/localdns/internal/dns/gateways/transport"
	"github.com/haukened/localdns/internal/dns/gateways/wire"
	"github.com/haukened/localdns/internal/dns/repos/records"
	"github.com/haukened/localdns/internal/dns/repos/records/bolt"
	"github.com/haukened/localdns/internal/dns/services/resolver"
)

const DefaultControlBuffer = 4

// Snapshotter keeps a last-known-good copy of the records table.
type Snapshotter interface {
	Save(store *records.Store) error
	Load(opts ...records.Option) (*records.Store, bolt.Meta, error)
}

// Options configures a Server. Address, RecordsPath and Suffix are required;
// the rest have defaults.
type Options struct {
	Address       string
	RecordsPath   string
	Suffix        string
	ControlBuffer int
	CacheSize     int

	Logger    log.Logger
	Clock     clock.Clock
	Breaker   Breaker
	Notifier  Notifier
	Snapshots Snapshotter
	Transport transport.ServerTransport
	Codec     wire.DNSCodec
}

// Server is the DNS responder. Run it once.
type Server struct {
	path      string
	store     *records.Store
	resolver  *resolver.Resolver
	codec     wire.DNSCodec
	transport transport.ServerTransport
	breaker   Breaker
	notifier  Notifier
	snapshots Snapshotter
	logger    log.Logger
	clock     clock.Clock
	cacheSize int

	notify   chan Notification
	ready    chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New builds a Server and loads the initial records. A missing records file
// is an empty table. When the file exists but cannot be parsed, the saved
// snapshot is used if one is configured; otherwise New fails.
func New(opts Options) (*Server, error) {
	if opts.Address == "" {
		return nil, errors.New("server address must not be empty")
	}
	if opts.Suffix == "" {
		return nil, errors.New("records suffix must not be empty")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	logger = log.With(logger, map[string]any{"component": "server"})

	s := &Server{
		path:      opts.RecordsPath,
		resolver:  resolver.NewResolver(resolver.Options{Suffix: opts.Suffix, Logger: log.With(logger, map[string]any{"component": "resolver"})}),
		codec:     opts.Codec,
		transport: opts.Transport,
		breaker:   opts.Breaker,
		notifier:  opts.Notifier,
		snapshots: opts.Snapshots,
		logger:    logger,
		clock:     opts.Clock,
		cacheSize: opts.CacheSize,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}

	if s.codec == nil {
		s.codec = wire.NewUDPCodec(logger)
	}
	if s.transport == nil {
		s.transport = transport.NewUDPTransport(opts.Address, logger)
	}
	if s.breaker == nil {
		s.breaker = NewBreaker(DefaultBreakerThreshold, DefaultBreakerCooldown, logger)
	}
	if s.notifier == nil {
		s.notifier = NewLogNotifier(logger)
	}
	if s.clock == nil {
		s.clock = clock.RealClock{}
	}
	if s.cacheSize == 0 {
		s.cacheSize = 256
	}
	buf := opts.ControlBuffer
	if buf <= 0 {
		buf = DefaultControlBuffer
	}
	s.notify = make(chan Notification, buf)

	store, err := records.Load(s.path, opts.Suffix, s.recordOptions()...)
	if err != nil {
		store, err = s.fallback(err)
		if err != nil {
			return nil, err
		}
	} else {
		s.persist(store)
	}
	s.store = store

	logger.Info(map[string]any{
		"path":    s.path,
		"suffix":  opts.Suffix,
		"records": store.Len(),
	}, "Records loaded")

	return s, nil
}

func (s *Server) recordOptions() []records.Option {
	return []records.Option{
		records.WithLogger(log.With(s.logger, map[string]any{"component": "records"})),
		records.WithClock(s.clock),
		records.WithCacheSize(s.cacheSize),
	}
}

func (s *Server) fallback(loadErr error) (*records.Store, error) {
	if s.snapshots == nil {
		return nil, fmt.Errorf("failed to load records: %w", loadErr)
	}
	store, meta, err := s.snapshots.Load(s.recordOptions()...)
	if err != nil {
		return nil, multierr.Append(
			fmt.Errorf("failed to load records: %w", loadErr),
			fmt.Errorf("failed to load snapshot: %w", err),
		)
	}
	s.logger.Warn(map[string]any{
		"error":   loadErr,
		"records": meta.Count,
		"updated": meta.Updated,
	}, "Records file unreadable, serving last known good snapshot")
	s.notifier.Notify("Records file could not be loaded", loadErr.Error())
	return store, nil
}

func (s *Server) persist(store *records.Store) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(store); err != nil {
		s.logger.Warn(map[string]any{"error": err}, "Failed to save records snapshot")
	}
}

// Notifications returns the send side of the control channel.
func (s *Server) Notifications() chan<- Notification {
	return s.notify
}

// Controller returns a handle for sending control notifications.
func (s *Server) Controller() Controller {
	return Controller{ch: s.notify, done: s.done}
}

// Ready is closed once the socket is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address once Ready is closed.
func (s *Server) Addr() string {
	return s.transport.Address()
}

// Run serves until a Shutdown notification arrives or ctx is cancelled, both
// of which return nil. It returns an error when the socket cannot be bound,
// when the socket fails, or when the breaker rejects a request.
func (s *Server) Run(ctx context.Context) (err error) {
	defer s.stopOnce.Do(func() { close(s.done) })

	packets, err := s.transport.Start(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.transport.Stop())
	}()
	close(s.ready)

	s.logger.Info(map[string]any{"address": s.transport.Address()}, "DNS server serving")

	for {
		select {
		case n := <-s.notify:
			if s.handleNotification(n) {
				return nil
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			s.logger.Info(nil, "DNS server stopping due to context cancellation")
			return nil
		case n := <-s.notify:
			if s.handleNotification(n) {
				return nil
			}
		case d, ok := <-packets:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrTransportClosed
			}
			if err := s.handleDatagram(d); err != nil {
				return err
			}
		}
	}
}

// handleNotification applies n and reports whether the loop should stop.
func (s *Server) handleNotification(n Notification) bool {
	switch n := n.(type) {
	case Shutdown:
		s.logger.Info(nil, "Shutdown requested")
		return true
	case Reload:
		s.reload()
	case MergeRecords:
		err := s.merge(n.Path)
		deliver(s, n.Reply, err, "merge")
	case ARecordQuery:
		addr, err := s.resolver.ResolveName(n.Host, s.store)
		deliver(s, n.Reply, LookupResult{Addr: addr, Err: err}, "lookup")
	default:
		s.logger.Warn(map[string]any{"type": fmt.Sprintf("%T", n)}, "Ignoring unknown notification")
	}
	return false
}

func (s *Server) reload() {
	store, err := records.Load(s.path, s.resolver.Suffix(), s.recordOptions()...)
	if err != nil {
		s.logger.Error(map[string]any{"path": s.path, "error": err}, "Failed to reload records")
		s.notifier.Notify("Failed to reload records", err.Error())
		return
	}
	s.store = store
	s.persist(store)
	s.logger.Info(map[string]any{"path": s.path, "records": store.Len(), "version": store.Version()}, "Records reloaded")
}

func (s *Server) merge(path string) error {
	incoming, err := records.LoadStrict(path, s.resolver.Suffix(), s.recordOptions()...)
	if err != nil {
		s.logger.Warn(map[string]any{"path": path, "error": err}, "Failed to merge records")
		return err
	}
	s.store = records.Merge(s.store, incoming)
	s.persist(s.store)
	s.logger.Info(map[string]any{"path": path, "merged": incoming.Len(), "records": s.store.Len()}, "Records merged")
	return nil
}

// deliver sends v without blocking; a reply nobody can receive is logged.
func deliver[T any](s *Server, reply chan<- T, v T, kind string) {
	if reply == nil {
		s.logger.Error(map[string]any{"kind": kind}, "Notification has no reply channel")
		return
	}
	select {
	case reply <- v:
	default:
		s.logger.Error(map[string]any{"kind": kind}, "Reply receiver unavailable, dropping reply")
	}
}

// handleDatagram runs one request through the breaker. Only a breaker
// rejection is returned; every other failure is logged.
func (s *Server) handleDatagram(d transport.Datagram) error {
	err := s.breaker.Execute(func() error {
		return s.handleRequest(d)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrBreakerOpen):
		s.logger.Error(map[string]any{"client": d.Peer.String()}, "Circuit breaker rejected request")
		return err
	default:
		s.logger.Warn(map[string]any{
			"client":  d.Peer.String(),
			"error":   err,
			"breaker": s.breaker.State(),
		}, "Failed to handle request")
		return nil
	}
}

func (s *Server) handleRequest(d transport.Datagram) error {
	if d.Err != nil {
		return d.Err
	}

	request, err := s.codec.Decode(d.Data)
	if err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}

	response := s.resolver.Resolve(request, s.store)

	data, err := s.codec.Encode(response)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	if err := s.transport.Send(data, d.Peer); err != nil {
		return err
	}

	s.logger.Debug(map[string]any{
		"client":  d.Peer.String(),
		"id":      response.Header.ID,
		"rcode":   response.Header.RCode.String(),
		"answers": len(response.Answers),
	}, "Sent DNS response")
	return nil
}
