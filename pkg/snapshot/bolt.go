package snapshot

import (
	"context"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
)

var snapshotBucket = []byte("snapshots")

// boltRecord wraps a snapshot with its expiry for storage.
type boltRecord struct {
	ExpiresAt time.Time       `json:"expires_at"`
	Snapshot  json.RawMessage `json:"snapshot"`
}

// BoltStore persists snapshots in a bbolt file. Snapshots survive restarts
// of a single server instance.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltStore opens (or creates) the database file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db, now: time.Now}, nil
}

func (b *BoltStore) Save(_ context.Context, snap *Snapshot, expiresAt time.Time) error {
	encoded, err := snap.Encode()
	if err != nil {
		return err
	}
	record, err := json.Marshal(boltRecord{ExpiresAt: expiresAt, Snapshot: encoded})
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotBucket).Put([]byte(snap.SessionID), record)
	})
}

func (b *BoltStore) Load(_ context.Context, sessionID string) (*Snapshot, error) {
	var record *boltRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(snapshotBucket).Get([]byte(sessionID))
		if data == nil {
			return nil
		}
		var r boltRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		record = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	if b.now().After(record.ExpiresAt) {
		// Expired; drop it lazily.
		if err := b.Delete(context.Background(), sessionID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return Decode(record.Snapshot)
}

func (b *BoltStore) Delete(_ context.Context, sessionID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotBucket).Delete([]byte(sessionID))
	})
}

func (b *BoltStore) Touch(_ context.Context, sessionID string, expiresAt time.Time) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(snapshotBucket)
		data := bucket.Get([]byte(sessionID))
		if data == nil {
			return nil
		}
		var r boltRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		r.ExpiresAt = expiresAt
		updated, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(sessionID), updated)
	})
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}
