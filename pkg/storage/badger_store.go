package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-relay/pkg/log"
	"github.com/Sriram-PR/img-relay/pkg/utils"
)

const (
	imageKeyPrefix = "img:"     // Prefix for cached image keys
	badgerDBDir    = "image_db" // Subdirectory within the cache dir for Badger files
)

// BadgerStore implements BlobStore on an embedded BadgerDB
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Entry
}

// NewBadgerStore opens (or creates) the database under dir/image_db
func NewBadgerStore(ctx context.Context, dir string, logger *logrus.Entry) (*BadgerStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: badger store directory is empty", utils.ErrFilesystem)
	}
	dbPath := filepath.Join(dir, badgerDBDir)
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create cache directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogrusAdapter(logger)).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}
	logger.Infof("Image cache database: %s", dbPath)
	return &BadgerStore{db: db, log: logger}, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for transaction conflicts.
// Two first requests for one reference race on the same key.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Exists implements BlobStore
func (s *BadgerStore) Exists(_ context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(imageKeyPrefix + key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: exists %s: %w", utils.ErrDatabase, key, err)
	}
	return true, nil
}

// Get implements BlobStore
func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(imageKeyPrefix + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", utils.ErrCacheMiss, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", utils.ErrDatabase, key, err)
	}
	return data, nil
}

// Put implements BlobStore
func (s *BadgerStore) Put(_ context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := s.dbUpdate(func(txn *badger.Txn) error {
		return txn.Set([]byte(imageKeyPrefix+key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %w", utils.ErrDatabase, key, err)
	}
	return nil
}

// RunGC runs value log garbage collection every interval until ctx is done
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			s.runGCCycle()
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

func (s *BadgerStore) runGCCycle() {
	if s.db == nil || s.db.IsClosed() {
		return
	}
	rewrites := 0
	var err error
	for {
		// Rewrite while at least half of a value log file is reclaimable
		if err = s.db.RunValueLogGC(0.5); err != nil {
			break
		}
		rewrites++
	}
	if errors.Is(err, badger.ErrNoRewrite) {
		s.log.Debugf("BadgerDB GC finished after %d rewrites", rewrites)
		return
	}
	s.log.Errorf("BadgerDB GC error: %v", err)
}

// Close implements BlobStore
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing image cache DB: %v", err)
		return err
	}
	s.log.Debug("Image cache DB closed.")
	return nil
}
