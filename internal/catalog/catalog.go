package catalog

import (
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Snapshot is one immutable generation of catalog metadata. The store swaps
// whole snapshots; readers never see a partially refreshed catalog.
type Snapshot struct {
	Momos map[int64]MomoMeta `json:"momos"`
	Gems  map[int64]GemMeta  `json:"gems"`
}

// Empty reports whether the snapshot carries no metadata at all.
func (s Snapshot) Empty() bool {
	return len(s.Momos) == 0 && len(s.Gems) == 0
}

// MomoQuality looks up the quality tier of a momo prototype.
func (s Snapshot) MomoQuality(prototype int64) (int64, bool) {
	meta, ok := s.Momos[prototype]
	if !ok {
		return 0, false
	}
	return meta.Quality, true
}

// Store holds the current catalog snapshot. Writes replace the snapshot
// wholesale and persist it best-effort; bidding never blocks on catalog
// state, an empty snapshot just disables quality filtering.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
	db   *gorm.DB
}

// NewStore hydrates the last persisted snapshot, if any. A nil db gives a
// memory-only store.
func NewStore(db *gorm.DB) *Store {
	s := &Store{
		snap: Snapshot{Momos: map[int64]MomoMeta{}, Gems: map[int64]GemMeta{}},
		db:   db,
	}
	s.hydrate()
	return s
}

// Snapshot returns the current catalog generation.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Replace installs a new catalog generation and persists it. A persistence
// failure is logged as a warning; the in-memory snapshot stays authoritative.
func (s *Store) Replace(snap Snapshot) {
	if snap.Momos == nil {
		snap.Momos = map[int64]MomoMeta{}
	}
	if snap.Gems == nil {
		snap.Gems = map[int64]GemMeta{}
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	if err := s.persist(snap); err != nil {
		log.Warn().Err(err).Msg("failed persisting catalog snapshot")
	}
}

func (s *Store) hydrate() {
	if s.db == nil {
		return
	}

	var entries []Entry
	if err := s.db.Find(&entries).Error; err != nil {
		log.Warn().Err(err).Msg("failed loading catalog snapshot, starting empty")
		return
	}

	for _, e := range entries {
		switch e.Class {
		case "momo":
			s.snap.Momos[e.ItemID] = MomoMeta{
				Prototype: e.ItemID,
				TokenName: e.TokenName,
				Name:      e.Name,
				Quality:   e.Quality,
				Category:  e.Category,
				MmNum:     e.MmNum,
			}
		case "gem":
			s.snap.Gems[e.ItemID] = GemMeta{
				ID:    e.ItemID,
				Name:  e.Name,
				Level: e.Level,
				Color: e.Color,
			}
		}
	}
}

func (s *Store) persist(snap Snapshot) error {
	if s.db == nil {
		return nil
	}

	entries := make([]Entry, 0, len(snap.Momos)+len(snap.Gems))
	for _, m := range snap.Momos {
		entries = append(entries, Entry{
			Class:     "momo",
			ItemID:    m.Prototype,
			TokenName: m.TokenName,
			Name:      m.Name,
			Quality:   m.Quality,
			Category:  m.Category,
			MmNum:     m.MmNum,
		})
	}
	for _, g := range snap.Gems {
		entries = append(entries, Entry{
			Class:  "gem",
			ItemID: g.ID,
			Name:   g.Name,
			Level:  g.Level,
			Color:  g.Color,
		})
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&Entry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.CreateInBatches(entries, 200).Error
	})
}
