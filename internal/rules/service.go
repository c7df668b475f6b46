package rules

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bidwatch/bidwatch/internal/catalog"
)

var (
	ErrUnknownKind      = errors.New("unknown rule kind")
	ErrNoConstraints    = errors.New("momo rule needs at least one constraint")
	ErrMixedConstraints = errors.New("rule mixes momo and gem constraints")
	ErrUnknownQuality   = errors.New("unknown quality id")
	ErrUnknownPrototype = errors.New("unknown momo prototype")
	ErrUnknownGem       = errors.New("unknown gem id")
	ErrMissingGemFields = errors.New("gem rule needs gem id and per-unit ceiling")
	ErrBadCeiling       = errors.New("ceiling must be positive")
	ErrRuleNotFound     = errors.New("rule not found")
)

// Store holds the active rule set: an insertion-ordered mapping keyed by a
// synthetic, monotonically increasing id. Mutations persist best-effort; the
// in-memory set stays authoritative.
type Store struct {
	mu      sync.RWMutex
	rules   map[int64]Rule
	db      *gorm.DB
	catalog *catalog.Store
}

// NewStore hydrates persisted rules. A nil db gives a memory-only store.
func NewStore(db *gorm.DB, cat *catalog.Store) *Store {
	s := &Store{
		rules:   make(map[int64]Rule),
		db:      db,
		catalog: cat,
	}
	s.hydrate()
	return s
}

func (s *Store) hydrate() {
	if s.db == nil {
		return
	}
	var stored []Rule
	if err := s.db.Find(&stored).Error; err != nil {
		log.Warn().Err(err).Msg("failed loading rules, starting empty")
		return
	}
	for _, r := range stored {
		s.rules[r.RuleID] = r
	}
}

// Add validates a rule and appends it under the next free id: max existing
// id plus one, 0 when the set is empty. Deleted ids are never reused unless
// the deleted id was the maximum.
func (s *Store) Add(rule Rule) (Rule, error) {
	if err := s.validate(rule); err != nil {
		return Rule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := int64(0)
	for id := range s.rules {
		if id >= next {
			next = id + 1
		}
	}
	rule.RuleID = next
	s.rules[next] = rule

	if s.db != nil {
		if err := s.db.Create(&rule).Error; err != nil {
			log.Warn().Err(err).Int64("rule_id", next).Msg("failed persisting rule")
		}
	}
	return rule, nil
}

// Delete removes one rule by id.
func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return ErrRuleNotFound
	}
	delete(s.rules, id)

	if s.db != nil {
		if err := s.db.Unscoped().Where("rule_id = ?", id).Delete(&Rule{}).Error; err != nil {
			log.Warn().Err(err).Int64("rule_id", id).Msg("failed deleting persisted rule")
		}
	}
	return nil
}

// List returns the rule set in insertion (id) order.
func (s *Store) List() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}

// validate rejects malformed submissions before any state mutation; no
// partial rule is ever stored.
func (s *Store) validate(rule Rule) error {
	hasMomo := rule.Prototype != nil || rule.Quality != nil || rule.PriceCeiling != nil || rule.HashrateCeiling != nil
	hasGem := rule.GemID != nil || rule.PerUnitCeiling != nil

	switch rule.Kind {
	case KindMomo:
		if hasGem {
			return ErrMixedConstraints
		}
		if !hasMomo {
			return ErrNoConstraints
		}
		if rule.Quality != nil && !catalog.KnownQuality(*rule.Quality) {
			return ErrUnknownQuality
		}
		if rule.Prototype != nil && s.catalog != nil {
			// The catalog is eventually consistent; only a loaded snapshot
			// can refute a prototype id.
			snap := s.catalog.Snapshot()
			if !snap.Empty() {
				if _, ok := snap.Momos[*rule.Prototype]; !ok {
					return ErrUnknownPrototype
				}
			}
		}
		if rule.PriceCeiling != nil && !rule.PriceCeiling.IsPositive() {
			return ErrBadCeiling
		}
		if rule.HashrateCeiling != nil && !rule.HashrateCeiling.IsPositive() {
			return ErrBadCeiling
		}
		return nil

	case KindGem:
		if hasMomo {
			return ErrMixedConstraints
		}
		if rule.GemID == nil || rule.PerUnitCeiling == nil {
			return ErrMissingGemFields
		}
		if _, ok := catalog.GemMetaFor(*rule.GemID); !ok {
			return ErrUnknownGem
		}
		if !rule.PerUnitCeiling.IsPositive() {
			return ErrBadCeiling
		}
		return nil

	default:
		return ErrUnknownKind
	}
}

// GinHandlers contains the control-surface handlers for rule mutations.
type GinHandlers struct {
	store *Store
}

func NewGinHandlers(store *Store) *GinHandlers {
	return &GinHandlers{store: store}
}

// AddHandler handles POST /filter: validate and append one rule.
func (h *GinHandlers) AddHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var rule Rule
		if err := c.ShouldBindJSON(&rule); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "wrong input"})
			return
		}

		added, err := h.store.Add(rule)
		if err != nil {
			log.Debug().Err(err).Msg("rejected rule submission")
			c.JSON(http.StatusBadRequest, gin.H{"msg": "wrong input"})
			return
		}

		log.Info().Int64("rule_id", added.RuleID).Str("kind", string(added.Kind)).Msg("rule added")
		c.JSON(http.StatusOK, gin.H{"msg": "added"})
	}
}

// DeleteHandler handles POST /filter/:id: delete one rule by id.
func (h *GinHandlers) DeleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "wrong input"})
			return
		}

		if err := h.store.Delete(id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"msg": "not found"})
			return
		}

		log.Info().Int64("rule_id", id).Msg("rule deleted")
		c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
	}
}
