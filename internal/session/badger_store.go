package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
)

const keyPrefix = "session:"

// OpenBadger opens the session database in dir. An empty dir keeps
// everything in memory, which is what tests and single-node demos use.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if strings.TrimSpace(dir) == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return db, nil
}

// BadgerStore is a Store backed by Badger. Entries expire after TTL.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerStore wraps db. A non-positive ttl stores sessions without expiry.
func NewBadgerStore(db *badger.DB, ttl time.Duration) *BadgerStore {
	return &BadgerStore{db: db, ttl: ttl}
}

func sessionKey(token string) []byte { return []byte(keyPrefix + token) }

// Save writes s under token, replacing any previous value and restarting its TTL.
func (b *BadgerStore) Save(ctx context.Context, token string, s UserSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(token) == "" {
		return ErrNotFound
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(sessionKey(token), data)
		if b.ttl > 0 {
			e = e.WithTTL(b.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Load returns the session stored under token or ErrNotFound.
func (b *BadgerStore) Load(ctx context.Context, token string) (UserSession, error) {
	var s UserSession
	if err := ctx.Err(); err != nil {
		return s, err
	}
	if strings.TrimSpace(token) == "" {
		return s, ErrNotFound
	}
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(token))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return UserSession{}, ErrNotFound
	}
	return s, err
}

// Clear deletes the session stored under token. Clearing an unknown token is
// not an error.
func (b *BadgerStore) Clear(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(token))
	})
}
