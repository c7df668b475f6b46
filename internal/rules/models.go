package rules

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Kind tags the rule variant.
type Kind string

const (
	KindMomo Kind = "momo"
	KindGem  Kind = "gem"
)

// Rule is one user-defined acquisition criterion. It is a tagged variant
// stored flat: momo rules use the optional constraint columns, gem rules use
// GemID and PerUnitCeiling. A nil constraint means unconstrained, never
// "always false".
type Rule struct {
	gorm.Model `json:"-"`
	RuleID     int64 `gorm:"uniqueIndex" json:"rule_id"`
	Kind       Kind  `json:"kind"`

	// Momo constraints, any subset present.
	Prototype       *int64           `json:"prototype,omitempty"`
	Quality         *int64           `json:"quality,omitempty"`
	PriceCeiling    *decimal.Decimal `gorm:"type:text" json:"price_ceiling,omitempty"`
	HashrateCeiling *decimal.Decimal `gorm:"type:text" json:"hashrate_ceiling,omitempty"`

	// Gem constraints, both required.
	GemID          *int64           `json:"gem_id,omitempty"`
	PerUnitCeiling *decimal.Decimal `gorm:"type:text" json:"per_unit_ceiling,omitempty"`
}
