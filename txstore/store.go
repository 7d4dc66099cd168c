package txstore

import (
	"context"
	"errors"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
)

var (
	ErrTxNotFound = errors.New("transaction not found in store")
)

// Store is the in-memory ordered transaction collection, mirrored to the
// configured persistence backends. The collection is always replaced as
// a whole snapshot (copy-on-write) rather than mutated in place, so a
// List caller never observes a partial update.
type Store struct {
	mu    sync.RWMutex
	txs   []*Transaction
	owner string

	backends []Backend
}

func New(owner string, backends ...Backend) *Store {
	return &Store{
		owner:    owner,
		backends: backends,
	}
}

// Load replaces the in-memory collection with the records persisted for
// the store's identity. The first backend that answers wins; later
// backends are only consulted if earlier ones fail.
func (s *Store) Load(ctx context.Context) error {
	var lastErr error
	for _, b := range s.backends {
		txs, err := b.QueryByOwner(ctx, s.owner)
		if err != nil {
			lastErr = err
			logger.WithField("owner", s.owner).Warnf("backend query failed: %v", err)
			continue
		}
		s.mu.Lock()
		s.txs = txs
		s.mu.Unlock()
		return nil
	}
	return lastErr
}

// Add appends a new transaction. Adding an id that already exists is a
// no-op; a persisted transaction is never overwritten via Add.
func (s *Store) Add(ctx context.Context, tx *Transaction) {
	s.mu.Lock()
	if s.indexOf(tx.ID) >= 0 {
		s.mu.Unlock()
		logger.WithField("id", tx.ID).Debug("add skipped, id already present")
		return
	}

	now := time.Now()
	tx = tx.Clone()
	tx.Created = now
	tx.Updated = now

	next := make([]*Transaction, len(s.txs), len(s.txs)+1)
	copy(next, s.txs)
	s.txs = append(next, tx)
	s.mu.Unlock()

	for _, b := range s.backends {
		if err := b.AddRecord(ctx, s.owner, tx); err != nil {
			logger.WithField("id", tx.ID).Errorf("backend add failed: %v", err)
		}
	}
}

// Update replaces the record matching the transaction's id. A missing id
// is a logic error and is logged, never silently inserted.
func (s *Store) Update(ctx context.Context, tx *Transaction) *Transaction {
	s.mu.Lock()
	i := s.indexOf(tx.ID)
	if i < 0 {
		s.mu.Unlock()
		logger.WithField("id", tx.ID).Error("update of a transaction not in store")
		return tx
	}

	tx = tx.Clone()
	tx.Updated = time.Now()

	next := make([]*Transaction, len(s.txs))
	copy(next, s.txs)
	next[i] = tx
	s.txs = next
	s.mu.Unlock()

	for _, b := range s.backends {
		if err := b.UpdateRecord(ctx, s.owner, tx); err != nil {
			logger.WithField("id", tx.ID).Errorf("backend update failed: %v", err)
		}
	}

	return tx
}

// WithLatest re-reads the current record for id and applies fn to a
// fresh clone before installing it. Every mutation that originates from
// a long-lived listener or poller goes through here, so a stale closure
// snapshot can never clobber newer state.
func (s *Store) WithLatest(ctx context.Context, id string, fn func(*Transaction)) (*Transaction, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, ErrTxNotFound
	}

	tx := s.txs[i].Clone()
	fn(tx)
	tx.Updated = time.Now()

	next := make([]*Transaction, len(s.txs))
	copy(next, s.txs)
	next[i] = tx
	s.txs = next
	s.mu.Unlock()

	for _, b := range s.backends {
		if err := b.UpdateRecord(ctx, s.owner, tx); err != nil {
			logger.WithField("id", id).Errorf("backend update failed: %v", err)
		}
	}

	return tx, nil
}

// Remove deletes by id from memory and from every backend.
func (s *Store) Remove(ctx context.Context, id string) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	next := make([]*Transaction, 0, len(s.txs)-1)
	next = append(next, s.txs[:i]...)
	next = append(next, s.txs[i+1:]...)
	s.txs = next
	s.mu.Unlock()

	for _, b := range s.backends {
		if err := b.DeleteRecord(ctx, s.owner, id); err != nil {
			logger.WithField("id", id).Errorf("backend delete failed: %v", err)
		}
	}
}

// Get returns a copy of the record, or (nil, false) for absence. Absence
// is not an error.
func (s *Store) Get(id string) (*Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return s.txs[i].Clone(), true
}

func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id) >= 0
}

// List returns the current snapshot in insertion order. The returned
// slice is private to the caller.
func (s *Store) List() []*Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Transaction, len(s.txs))
	for i, tx := range s.txs {
		out[i] = tx.Clone()
	}
	return out
}

// Reset deletes every record for the current identity from all backends
// before clearing memory. A failed remote deletion leaves the undeleted
// items on the remote for a later retry; the in-memory clear still
// happens so the account reset is locally complete.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.RLock()
	ids := make([]string, len(s.txs))
	for i, tx := range s.txs {
		ids[i] = tx.ID
	}
	s.mu.RUnlock()

	var lastErr error
	for _, b := range s.backends {
		for _, id := range ids {
			if err := b.DeleteRecord(ctx, s.owner, id); err != nil {
				lastErr = err
				logger.WithField("id", id).Errorf("backend reset delete failed: %v", err)
			}
		}
	}

	s.mu.Lock()
	s.txs = nil
	s.mu.Unlock()

	return lastErr
}

// indexOf must be called with the lock held.
func (s *Store) indexOf(id string) int {
	for i, tx := range s.txs {
		if tx.ID == id {
			return i
		}
	}
	return -1
}
