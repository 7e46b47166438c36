package cache

import (
	"bytes"
	"encoding/gob"
	"log/slog"

	"github.com/dgraph-io/badger/v3"
)

var _ Store = (*BadgerStore)(nil)

// BadgerStore implements Store on a local Badger database. Badger gives us
// atomic per-key transactions, so concurrent probe completions writing
// different recordings never clobber each other.
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
}

// badgerLogger adapts slog for Badger's logger interface.
type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.log.Error(f, "args", v)
}

func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.log.Warn(f, "args", v)
}

func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.log.Info(f, "args", v)
}

func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.log.Debug(f, "args", v)
}

// NewBadgerStore opens the duration cache at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	log := slog.With("component", "duration-cache")

	opts := badger.DefaultOptions(path).
		WithLogger(&badgerLogger{log: log}).
		WithValueLogFileSize(1<<26 - 1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	// Run garbage collection
	err = db.RunValueLogGC(0.5)
	if err != nil && err != badger.ErrNoRewrite {
		db.Close()
		return nil, err
	}

	return &BadgerStore{db: db, log: log}, nil
}

// Get retrieves a cached duration by recording id.
func (s *BadgerStore) Get(id string) (int64, bool, error) {
	tx := s.db.NewTransaction(false)
	defer tx.Discard()

	item, err := tx.Get([]byte(id))
	if err == badger.ErrKeyNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	valb, err := item.ValueCopy(nil)
	if err != nil {
		return 0, false, err
	}

	var seconds int64
	dec := gob.NewDecoder(bytes.NewBuffer(valb))
	if err := dec.Decode(&seconds); err != nil {
		return 0, false, err
	}
	return seconds, true, nil
}

// Set stores a detected duration.
func (s *BadgerStore) Set(id string, seconds int64) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	var value bytes.Buffer
	enc := gob.NewEncoder(&value)
	if err := enc.Encode(seconds); err != nil {
		return err
	}

	if err := tx.Set([]byte(id), value.Bytes()); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes an entry so the recording gets re-probed.
func (s *BadgerStore) Delete(id string) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	if err := tx.Delete([]byte(id)); err != nil {
		return err
	}
	return tx.Commit()
}

// All returns every cached entry.
func (s *BadgerStore) All() (map[string]int64, error) {
	out := make(map[string]int64)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			valb, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var seconds int64
			dec := gob.NewDecoder(bytes.NewBuffer(valb))
			if err := dec.Decode(&seconds); err != nil {
				return err
			}
			out[string(item.KeyCopy(nil))] = seconds
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close shuts down the Badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
