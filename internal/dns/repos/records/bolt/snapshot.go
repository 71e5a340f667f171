// Package bolt persists the last successfully loaded records table in a
// bbolt file, so the daemon can still serve when the records file is broken
// at startup.
package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/localdns/internal/dns/repos/records"
)

var (
	bucketRecords = []byte("records")
	bucketMeta    = []byte("meta")

	keySource  = []byte("source")
	keyVersion = []byte("version")
	keyUpdated = []byte("updated")
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no records snapshot")

// SnapshotStore is a bbolt-backed last-known-good copy of a records.Store.
type SnapshotStore struct {
	db *bbolt.DB
}

// Meta describes the saved snapshot.
type Meta struct {
	Source  string
	Version uint64
	Updated time.Time
	Count   int
}

// Open opens (or creates) a Bolt database at path and ensures buckets exist.
func Open(path string) (*SnapshotStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot db %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRecords); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SnapshotStore{db: db}, nil
}

// Close releases the database file.
func (s *SnapshotStore) Close() error { return s.db.Close() }

// Save replaces the stored snapshot with the entries of store in one transaction.
func (s *SnapshotStore) Save(store *records.Store) error {
	entries := store.Entries()
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketRecords); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(bucketRecords)
		if err != nil {
			return err
		}
		for host, addr := range entries {
			v := addr.As4()
			if err := b.Put([]byte(host), v[:]); err != nil {
				return err
			}
		}

		meta := tx.Bucket(bucketMeta)
		vbuf := make([]byte, 8)
		ubuf := make([]byte, 8)
		binary.BigEndian.PutUint64(vbuf, store.Version())
		binary.BigEndian.PutUint64(ubuf, uint64(store.LoadedAt().Unix()))
		if err := meta.Put(keySource, []byte(store.Source())); err != nil {
			return err
		}
		if err := meta.Put(keyVersion, vbuf); err != nil {
			return err
		}
		return meta.Put(keyUpdated, ubuf)
	})
}

// Load rebuilds a records.Store from the snapshot. Entries are trusted as
// saved; no suffix filtering is repeated.
func (s *SnapshotStore) Load(opts ...records.Option) (*records.Store, Meta, error) {
	entries := make(map[string]netip.Addr)
	var meta Meta

	err := s.db.View(func(tx *bbolt.Tx) error {
		m := tx.Bucket(bucketMeta)
		if m == nil || m.Get(keyUpdated) == nil {
			return ErrNoSnapshot
		}
		meta.Source = string(m.Get(keySource))
		if v := m.Get(keyVersion); len(v) == 8 {
			meta.Version = binary.BigEndian.Uint64(v)
		}
		if v := m.Get(keyUpdated); len(v) == 8 {
			meta.Updated = time.Unix(int64(binary.BigEndian.Uint64(v)), 0)
		}

		b := tx.Bucket(bucketRecords)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if len(v) != 4 {
				return fmt.Errorf("corrupt snapshot value for %q: %d bytes", k, len(v))
			}
			entries[string(k)] = netip.AddrFrom4([4]byte(v))
			return nil
		})
	})
	if err != nil {
		return nil, Meta{}, err
	}

	meta.Count = len(entries)
	return records.New(entries, meta.Source, opts...), meta, nil
}
