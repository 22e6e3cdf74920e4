package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/Tchoumis/Projet-scripting-securise-v1/internal/domain"
)

var (
	BanBucket     = []byte("banstate")
	banCurrentKey = []byte("current")
	banUpdatedKey = []byte("updated_at")
)

// BoltBanState persists the last observed ban set.
type BoltBanState struct {
	db   *bolt.DB
	path string
}

func OpenBoltBanState(path string) (*BoltBanState, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(BanBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltBanState{db: db, path: path}, nil
}

// OpenBoltBanStateReadOnly opens an existing state database for reading.
// It waits at most one second for a running agent to release its lock.
func OpenBoltBanStateReadOnly(path string) (*BoltBanState, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	return &BoltBanState{db: db, path: path}, nil
}

// LoadBanState returns the stored set, or the empty set on first start.
func (s *BoltBanState) LoadBanState(ctx context.Context) (domain.BanSet, error) {
	if err := ctx.Err(); err != nil {
		return domain.BanSet{}, err
	}

	var addrs []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(BanBucket)
		if b == nil {
			return nil
		}
		data := b.Get(banCurrentKey)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &addrs)
	})
	if err != nil {
		return domain.BanSet{}, fmt.Errorf("load ban state: %w", err)
	}
	return domain.NewBanSet(addrs...), nil
}

func (s *BoltBanState) SaveBanState(ctx context.Context, set domain.BanSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(set.Addrs())
	if err != nil {
		return fmt.Errorf("encode ban state: %w", err)
	}
	stamp := []byte(time.Now().UTC().Format(time.RFC3339))

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(BanBucket)
		if err := b.Put(banCurrentKey, data); err != nil {
			return err
		}
		return b.Put(banUpdatedKey, stamp)
	})
	if err != nil {
		return fmt.Errorf("save ban state: %w", err)
	}
	return nil
}

// UpdatedAt returns when the state was last saved (zero if never).
func (s *BoltBanState) UpdatedAt() time.Time {
	var t time.Time
	s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(BanBucket); b != nil {
			if v := b.Get(banUpdatedKey); v != nil {
				t, _ = time.Parse(time.RFC3339, string(v))
			}
		}
		return nil
	})
	return t
}

func (s *BoltBanState) Close() error {
	return s.db.Close()
}
