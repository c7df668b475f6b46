package bids

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bidwatch/bidwatch/internal/types"
)

// Store is the idempotency source of truth: the durable mapping from bid key
// to bid outcome. The in-memory map is authoritative; sqlite writes are
// best-effort and a failure is logged, never raised to the caller.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
	db      *gorm.DB
}

// NewStore hydrates previously recorded bids so restarts stay idempotent.
// A nil db gives a memory-only store.
func NewStore(db *gorm.DB) *Store {
	s := &Store{
		records: make(map[string]Record),
		db:      db,
	}
	s.hydrate()
	return s
}

func (s *Store) hydrate() {
	if s.db == nil {
		return
	}
	var stored []Record
	if err := s.db.Find(&stored).Error; err != nil {
		log.Warn().Err(err).Msg("failed loading bid records, starting empty")
		return
	}
	for _, r := range stored {
		s.records[r.BidKey] = r
	}
}

// Contains reports whether a bid was already decided for the key, in any
// status.
func (s *Store) Contains(bidKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[bidKey]
	return ok
}

// PutPending records the bid decision. It must run before any blocking step
// of the execution pipeline so the idempotency window closes at decision
// time.
func (s *Store) PutPending(l types.Listing) Record {
	rec := Record{
		BidKey:    l.BidKey(),
		Status:    StatusPending,
		Listing:   l,
		DecidedAt: time.Now(),
	}

	s.mu.Lock()
	s.records[rec.BidKey] = rec
	s.mu.Unlock()

	s.persist(rec)
	return rec
}

// MarkSuccess finalizes a record with the accepted transaction hash.
func (s *Store) MarkSuccess(bidKey, txHash string) {
	s.update(bidKey, func(rec *Record) {
		rec.Status = StatusSuccess
		rec.TxHash = txHash
		rec.ErrorMessage = ""
	})
}

// MarkError finalizes a record with the failure message.
func (s *Store) MarkError(bidKey, msg string) {
	s.update(bidKey, func(rec *Record) {
		rec.Status = StatusError
		rec.ErrorMessage = msg
	})
}

func (s *Store) update(bidKey string, mutate func(*Record)) {
	s.mu.Lock()
	rec, ok := s.records[bidKey]
	if !ok {
		s.mu.Unlock()
		log.Warn().Str("bid_key", bidKey).Msg("update for unknown bid record")
		return
	}
	mutate(&rec)
	s.records[bidKey] = rec
	s.mu.Unlock()

	s.persist(rec)
}

// Get returns one record by key.
func (s *Store) Get(bidKey string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[bidKey]
	return rec, ok
}

// Snapshot returns all records, most recent decision first.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DecidedAt.After(out[j].DecidedAt) })
	return out
}

func (s *Store) persist(rec Record) {
	if s.db == nil {
		return
	}

	var existing Record
	err := s.db.Where("bid_key = ?", rec.BidKey).First(&existing).Error
	switch {
	case err == nil:
		rec.ID = existing.ID
		err = s.db.Save(&rec).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = s.db.Create(&rec).Error
	}
	if err != nil {
		log.Warn().Err(err).Str("bid_key", rec.BidKey).Msg("failed persisting bid record")
	}
}
