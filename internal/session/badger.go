package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

const (
	badgerKeyPrefix    = "session/"
	valueLogDiscardPct = 0.5
)

// BadgerStore keeps sessions in an embedded badger database. Entries carry a
// native TTL so expired sessions disappear without an explicit delete.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// OpenBadgerStore opens (or creates) a badger database at path. An empty path
// opens an in-memory database.
func OpenBadgerStore(path string, log *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{log.Sugar()})
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &BadgerStore{db: db, now: time.Now}, nil
}

func (b *BadgerStore) Get(_ context.Context, id string) (Session, bool, error) {
	var s Session
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("get session: %w", err)
	}
	// badger TTLs have second granularity
	if s.Expired(b.now()) {
		return Session{}, false, nil
	}
	return s, true, nil
}

func (b *BadgerStore) Set(_ context.Context, s Session) error {
	ttl := s.ExpiresAt.Sub(b.now())
	if ttl <= 0 {
		return b.Destroy(context.Background(), s.ID)
	}

	val, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(badgerKey(s.ID), val).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (b *BadgerStore) Destroy(_ context.Context, id string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(id))
	})
	if err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// Sweep reclaims value-log space left behind by expired and destroyed sessions.
// Expiry itself is handled by badger; the count is always zero.
func (b *BadgerStore) Sweep(_ context.Context) (int, error) {
	if b.db.Opts().InMemory {
		return 0, nil
	}
	for {
		err := b.db.RunValueLogGC(valueLogDiscardPct)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("value log gc: %w", err)
		}
	}
}

// Close flushes and closes the database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func badgerKey(id string) []byte {
	return []byte(badgerKeyPrefix + id)
}

// badgerLogger routes badger's internal logging through zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.s.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }
